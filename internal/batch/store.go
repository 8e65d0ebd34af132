package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"squeeze/internal/codec"
	"squeeze/internal/metadata"
	"squeeze/internal/observability"
	"squeeze/pkg/imgutil"
)

type entry struct {
	Record
	// issued counts encode requests; a completion carrying an older value
	// has been superseded.
	issued uint64
}

// Store owns the batch. Every mutation of the record list happens under mu;
// decode and encode work runs in goroutines that hand results back through
// apply.
type Store struct {
	mu      sync.Mutex
	records []*entry
	index   map[string]*entry
	quality int

	cfg     Config
	encoder Encoder
	sem     *semaphore.Weighted

	// pending counts dispatched tasks; idle is closed whenever it is zero.
	taskMu  sync.Mutex
	pending int
	idle    chan struct{}

	logger  *zap.Logger
	metrics *observability.Metrics
	updates chan<- Update
	newID   func() string
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Store) { s.metrics = metrics }
}

// WithUpdates makes the store send an Update after each mutation. Sends
// block, so the consumer must keep draining until Wait returns.
func WithUpdates(updates chan<- Update) Option {
	return func(s *Store) { s.updates = updates }
}

func WithIDFunc(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func NewStore(cfg Config, encoder Encoder, opts ...Option) (*Store, error) {
	if encoder == nil {
		return nil, errors.New("encoder is required")
	}
	if err := validQuality(cfg.Quality); err != nil {
		return nil, err
	}
	if cfg.BudgetKB <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %v KB", cfg.BudgetKB)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Stagger < 0 {
		cfg.Stagger = 0
	}

	s := &Store{
		index:   make(map[string]*entry),
		quality: cfg.Quality,
		cfg:     cfg,
		encoder: encoder,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		idle:    make(chan struct{}),
		logger:  zap.NewNop(),
		newID:   uuid.NewString,
	}
	close(s.idle)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func validQuality(q int) error {
	if q < MinQuality || q > MaxQuality {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidQuality, q, MinQuality, MaxQuality)
	}
	return nil
}

// Ingest accepts image files into the batch and starts decoding and
// compressing them in the background. Non-images are rejected and skipped.
// The first file that would push the summed original size over the budget
// is rejected together with every file after it.
func (s *Store) Ingest(files []File) IngestReport {
	report := IngestReport{}

	s.mu.Lock()
	total := s.originalTotalLocked()
	var added []*entry
	overBudget := false
	for _, f := range files {
		if overBudget {
			report.Rejected = append(report.Rejected, Rejection{Name: f.Name, Err: fmt.Errorf("%s: %w", f.Name, ErrBudgetExceeded)})
			continue
		}

		kind := imgutil.Detect(f.Data)
		if !isImage(f, kind) {
			report.Rejected = append(report.Rejected, Rejection{Name: f.Name, Err: fmt.Errorf("%s (%q): %w", f.Name, f.MIMEType, ErrUnsupportedType)})
			continue
		}

		sizeKB := f.SizeKB()
		if total+sizeKB > s.cfg.BudgetKB {
			overBudget = true
			report.Rejected = append(report.Rejected, Rejection{Name: f.Name, Err: fmt.Errorf("%s: %w", f.Name, ErrBudgetExceeded)})
			continue
		}
		total += sizeKB

		mimeType := f.MIMEType
		if mimeType == "" {
			mimeType = kind.MIME()
		}
		e := &entry{Record: Record{
			ID:             s.newID(),
			Name:           f.Name,
			MIMEType:       mimeType,
			Kind:           kind,
			Source:         f.Data,
			OriginalSizeKB: sizeKB,
			Status:         StatusLoading,
		}}
		s.records = append(s.records, e)
		s.index[e.ID] = e
		added = append(added, e)
		report.Accepted = append(report.Accepted, Accepted{ID: e.ID, Name: e.Name, SizeKB: sizeKB})
	}
	stats := s.statsLocked()
	s.mu.Unlock()

	for _, rej := range report.Rejected {
		s.logger.Warn("file rejected", zap.String("name", rej.Name), zap.Error(rej.Err))
		s.metrics.IncIngestRejected(rejectionLabel(rej.Err))
	}

	for _, e := range added {
		s.logger.Debug("record added", zap.String("id", e.ID), zap.String("name", e.Name), zap.Float64("sizeKB", e.OriginalSizeKB))
		s.publish(Update{Kind: UpdateAdded, ID: e.ID, Name: e.Name, Status: StatusLoading, Stats: stats})

		src, kind := e.Source, e.Kind
		s.dispatch(0, func() { s.load(e, src, kind) })
	}

	return report
}

func isImage(f File, kind imgutil.Kind) bool {
	if f.MIMEType != "" {
		return imgutil.IsImageMIME(f.MIMEType)
	}
	return kind != imgutil.KindUnknown
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, ErrBudgetExceeded):
		return "budget_exceeded"
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported_type"
	default:
		return "unknown"
	}
}

// load decodes the original once, then issues the first compression at the
// quality current when decoding finished.
func (s *Store) load(e *entry, src []byte, kind imgutil.Kind) {
	preview, err := s.encoder.Decode(context.Background(), src)

	var analysis metadata.Analysis
	if err == nil {
		var metaErr error
		analysis, metaErr = metadata.Inspect(kind, src)
		if metaErr != nil {
			s.logger.Debug("metadata inspection failed", zap.String("id", e.ID), zap.Error(metaErr))
		}
	}

	s.mu.Lock()
	if !s.liveLocked(e) {
		s.mu.Unlock()
		s.logger.Debug("discarding decode for removed record", zap.String("id", e.ID))
		return
	}
	if err != nil {
		e.Status = StatusErrored
		e.Error = err.Error()
		u := s.statusUpdateLocked(e)
		s.mu.Unlock()

		s.logger.Warn("decode failed", zap.String("id", e.ID), zap.String("name", e.Name), zap.Error(err))
		s.publish(u)
		return
	}
	e.Preview = &preview
	e.Metadata = analysis
	seq := s.beginCompressLocked(e)
	quality := s.quality
	u := s.statusUpdateLocked(e)
	s.mu.Unlock()

	s.publish(u)
	s.compress(e, src, quality, seq)
}

func (s *Store) beginCompressLocked(e *entry) uint64 {
	e.issued++
	e.Status = StatusCompressing
	e.Error = ""
	return e.issued
}

func (s *Store) compress(e *entry, src []byte, quality int, seq uint64) {
	start := time.Now()
	res := s.encoder.Compress(context.Background(), src, quality)
	elapsed := time.Since(start)
	s.metrics.ObserveEncode(res.Err == nil, elapsed, int64(len(src)-len(res.Bytes)))

	s.apply(e, seq, res, elapsed)
}

// apply merges one encode completion. Completions for records no longer in
// the batch are dropped, as are superseded ones when DiscardStale is set.
func (s *Store) apply(e *entry, seq uint64, res codec.Result, elapsed time.Duration) {
	s.mu.Lock()
	if !s.liveLocked(e) {
		s.mu.Unlock()
		s.logger.Debug("discarding encode for removed record", zap.String("id", e.ID))
		return
	}
	if s.cfg.DiscardStale && seq != e.issued {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded encode",
			zap.String("id", e.ID),
			zap.Uint64("seq", seq),
			zap.Uint64("latest", e.issued),
		)
		return
	}

	if res.Err != nil {
		e.Status = StatusErrored
		e.Error = res.Err.Error()
	} else {
		e.Compressed = res.Bytes
		e.CompressedSizeKB = res.SizeKB
		e.CompressedQuality = res.Quality
		e.Status = StatusReady
		e.Error = ""
	}
	u := s.statusUpdateLocked(e)
	s.mu.Unlock()

	if res.Err != nil {
		s.logger.Warn("compression failed",
			zap.String("id", e.ID),
			zap.String("name", e.Name),
			zap.Int("quality", res.Quality),
			zap.Error(res.Err),
		)
	} else {
		s.logger.Debug("compression finished",
			zap.String("id", e.ID),
			zap.Int("quality", res.Quality),
			zap.Float64("sizeKB", res.SizeKB),
			zap.Duration("elapsed", elapsed),
		)
	}
	s.publish(u)
}

// SetQuality changes the shared quality and re-encodes every record whose
// original has been decoded. The first such record starts at once; the
// rest are staggered. It does not wait for the encodes.
func (s *Store) SetQuality(q int) error {
	if err := validQuality(q); err != nil {
		return err
	}

	type job struct {
		e   *entry
		src []byte
		seq uint64
	}

	s.mu.Lock()
	s.quality = q
	var jobs []job
	var updates []Update
	for _, e := range s.records {
		if e.Preview == nil {
			continue
		}
		seq := s.beginCompressLocked(e)
		jobs = append(jobs, job{e: e, src: e.Source, seq: seq})
		updates = append(updates, s.statusUpdateLocked(e))
	}
	s.mu.Unlock()

	s.logger.Info("quality changed", zap.Int("quality", q), zap.Int("records", len(jobs)))
	for _, u := range updates {
		s.publish(u)
	}
	for i, j := range jobs {
		s.dispatch(time.Duration(i)*s.cfg.Stagger, func() { s.compress(j.e, j.src, q, j.seq) })
	}
	return nil
}

func (s *Store) Quality() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality
}

// Remove drops the record with id. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	e, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.index, id)
	for i, rec := range s.records {
		if rec == e {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	stats := s.statsLocked()
	s.mu.Unlock()

	s.logger.Debug("record removed", zap.String("id", id))
	s.publish(Update{Kind: UpdateRemoved, ID: id, Name: e.Name, Stats: stats})
}

// Reset drops every record.
func (s *Store) Reset() {
	s.mu.Lock()
	s.records = nil
	s.index = make(map[string]*entry)
	stats := s.statsLocked()
	s.mu.Unlock()

	s.logger.Debug("batch reset")
	s.publish(Update{Kind: UpdateReset, Stats: stats})
}

// Snapshot returns copies of all records in insertion order.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.records))
	for _, e := range s.records {
		out = append(out, e.Record)
	}
	return out
}

func (s *Store) Record(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return Record{}, false
	}
	return e.Record, true
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// Wait blocks until no decode or encode task is outstanding, or ctx ends.
// Tasks dispatched while Wait is blocked extend the wait. Abandoning a Wait
// leaves nothing behind, so it may be retried freely.
func (s *Store) Wait(ctx context.Context) error {
	s.taskMu.Lock()
	idle := s.idle
	s.taskMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) taskStarted() {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
}

func (s *Store) taskDone() {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
}

func (s *Store) dispatch(delay time.Duration, fn func()) {
	s.taskStarted()
	s.metrics.IncInflight()

	run := func() {
		defer s.taskDone()
		defer s.metrics.DecInflight()

		if err := s.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer s.sem.Release(1)
		fn()
	}

	if delay <= 0 {
		go run()
		return
	}
	time.AfterFunc(delay, run)
}

func (s *Store) publish(u Update) {
	if s.updates == nil {
		return
	}
	s.updates <- u
}

func (s *Store) liveLocked(e *entry) bool {
	return s.index[e.ID] == e
}

func (s *Store) statusUpdateLocked(e *entry) Update {
	return Update{Kind: UpdateStatus, ID: e.ID, Name: e.Name, Status: e.Status, Stats: s.statsLocked()}
}

func (s *Store) originalTotalLocked() float64 {
	total := 0.0
	for _, e := range s.records {
		total += e.OriginalSizeKB
	}
	return total
}

func (s *Store) statsLocked() Stats {
	st := Stats{Count: len(s.records)}
	for _, e := range s.records {
		st.OriginalTotalKB += e.OriginalSizeKB
		st.CompressedTotalKB += e.CompressedSizeKB

		switch e.Status {
		case StatusLoading:
			st.Loading++
		case StatusCompressing:
			st.Compressing++
		case StatusReady:
			st.Ready++
		case StatusErrored:
			st.Errored++
		}
		if e.HasOutput() && e.Metadata.Identifying() {
			st.MetadataStripped++
		}
	}

	st.SavedKB = st.OriginalTotalKB - st.CompressedTotalKB
	if st.SavedKB < 0 {
		st.SavedKB = 0
	}
	if st.OriginalTotalKB > 0 {
		st.ReductionPercent = st.SavedKB / st.OriginalTotalKB * 100
	}
	st.AllDone = st.Count > 0 && st.Loading == 0 && st.Compressing == 0
	return st
}
