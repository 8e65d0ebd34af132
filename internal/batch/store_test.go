package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"squeeze/internal/codec"
)

var errFakeDecode = errors.New("fake decode failure")

// scaleEncoder answers instantly with an output whose length is quality
// percent of the input. Sources starting with "bad" fail to decode and
// the quality in failAt fails to encode.
type scaleEncoder struct {
	mu      sync.Mutex
	failAt  int
	sources [][]byte
}

func (f *scaleEncoder) Decode(_ context.Context, src []byte) (codec.Preview, error) {
	if bytes.HasPrefix(src, []byte("bad")) {
		return codec.Preview{}, fmt.Errorf("%w: %v", codec.ErrDecode, errFakeDecode)
	}
	return codec.Preview{Format: "fake", Width: 1, Height: 1}, nil
}

func (f *scaleEncoder) Compress(_ context.Context, src []byte, q int) codec.Result {
	f.mu.Lock()
	f.sources = append(f.sources, src)
	failAt := f.failAt
	f.mu.Unlock()

	if failAt != 0 && q == failAt {
		return codec.Result{Quality: q, Err: fmt.Errorf("%w: quality %d", codec.ErrEncode, q)}
	}
	out := make([]byte, len(src)*q/100)
	return codec.Result{Bytes: out, SizeKB: codec.SizeKB(out), Quality: q}
}

func (f *scaleEncoder) compressedSources() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sources...)
}

// gateEncoder parks every Compress call until the test releases it.
type gateEncoder struct {
	calls chan *pendingCall
}

type pendingCall struct {
	quality int
	size    int
	done    chan codec.Result
}

func (c *pendingCall) succeed() {
	out := make([]byte, c.size*c.quality/100)
	c.done <- codec.Result{Bytes: out, SizeKB: codec.SizeKB(out), Quality: c.quality}
}

func newGateEncoder() *gateEncoder {
	return &gateEncoder{calls: make(chan *pendingCall, 16)}
}

func (g *gateEncoder) Decode(context.Context, []byte) (codec.Preview, error) {
	return codec.Preview{Format: "fake", Width: 1, Height: 1}, nil
}

func (g *gateEncoder) Compress(_ context.Context, src []byte, q int) codec.Result {
	c := &pendingCall{quality: q, size: len(src), done: make(chan codec.Result)}
	g.calls <- c
	return <-c.done
}

func (g *gateEncoder) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an encode call")
		return nil
	}
}

func newTestStore(t *testing.T, enc Encoder, mutate func(*Config), opts ...Option) *Store {
	t.Helper()
	cfg := Config{Quality: 70, BudgetKB: DefaultBudgetKB, Workers: 4}
	if mutate != nil {
		mutate(&cfg)
	}
	var n atomic.Int64
	opts = append([]Option{WithIDFunc(func() string { return fmt.Sprintf("rec-%d", n.Add(1)) })}, opts...)
	s, err := NewStore(cfg, enc, opts...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func waitIdle(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func jpegFile(name string, sizeBytes int) File {
	data := make([]byte, sizeBytes)
	copy(data, []byte{0xff, 0xd8, 0xff, 0xe0})
	return File{Name: name, MIMEType: "image/jpeg", Data: data}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(Config{Quality: 0, BudgetKB: 1}, &scaleEncoder{}); !errors.Is(err, ErrInvalidQuality) {
		t.Fatalf("err = %v, want ErrInvalidQuality", err)
	}
	if _, err := NewStore(Config{Quality: 50}, &scaleEncoder{}); err == nil {
		t.Fatal("expected error for zero budget")
	}
	if _, err := NewStore(DefaultConfig(), nil); err == nil {
		t.Fatal("expected error for nil encoder")
	}
}

func TestIngestCompressesRecord(t *testing.T) {
	updates := make(chan Update, 64)
	s := newTestStore(t, &scaleEncoder{}, nil, WithUpdates(updates))

	report := s.Ingest([]File{jpegFile("photo.jpg", 1000*1024)})
	if len(report.Accepted) != 1 || len(report.Rejected) != 0 {
		t.Fatalf("report = %+v", report)
	}
	waitIdle(t, s)

	records := s.Snapshot()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Status != StatusReady {
		t.Fatalf("status = %s, want ready", rec.Status)
	}
	if rec.OriginalSizeKB != 1000 {
		t.Fatalf("original = %v, want 1000", rec.OriginalSizeKB)
	}
	if rec.CompressedSizeKB <= 0 || rec.CompressedSizeKB > rec.OriginalSizeKB {
		t.Fatalf("compressed = %v", rec.CompressedSizeKB)
	}
	if rec.CompressedQuality != 70 || rec.Preview == nil {
		t.Fatalf("record = %+v", rec)
	}

	close(updates)
	var seen []Status
	for u := range updates {
		if u.ID == rec.ID {
			seen = append(seen, u.Status)
		}
	}
	want := []Status{StatusLoading, StatusCompressing, StatusReady}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
}

func TestIngestRejectsNonImage(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, nil)

	report := s.Ingest([]File{{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("hello")}})
	if len(report.Accepted) != 0 {
		t.Fatalf("accepted = %+v", report.Accepted)
	}
	if len(report.Rejected) != 1 || !errors.Is(report.Rejected[0].Err, ErrUnsupportedType) {
		t.Fatalf("rejected = %+v", report.Rejected)
	}
	if report.Rejected[0].Name != "notes.txt" {
		t.Fatalf("rejected name = %q", report.Rejected[0].Name)
	}
	if got := len(s.Snapshot()); got != 0 {
		t.Fatalf("records = %d, want 0", got)
	}
}

func TestIngestSniffsMissingMIME(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, nil)

	png := File{Name: "a.png", Data: []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}}
	blob := File{Name: "b.bin", Data: []byte("plain bytes here")}
	report := s.Ingest([]File{png, blob})
	waitIdle(t, s)

	if len(report.Accepted) != 1 || report.Accepted[0].Name != "a.png" {
		t.Fatalf("accepted = %+v", report.Accepted)
	}
	rec, ok := s.Record(report.Accepted[0].ID)
	if !ok || rec.MIMEType != "image/png" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestIngestBudgetRejectsRest(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, func(c *Config) { c.BudgetKB = 51200 })

	report := s.Ingest([]File{
		jpegFile("first.jpg", 30000*1024),
		jpegFile("second.jpg", 30000*1024),
		jpegFile("tiny.jpg", 1024),
		{Name: "readme.txt", MIMEType: "text/plain", Data: []byte("x")},
	})
	waitIdle(t, s)

	if len(report.Accepted) != 1 || report.Accepted[0].Name != "first.jpg" {
		t.Fatalf("accepted = %+v", report.Accepted)
	}
	if len(report.Rejected) != 3 {
		t.Fatalf("rejected = %+v", report.Rejected)
	}
	for _, rej := range report.Rejected {
		if !errors.Is(rej.Err, ErrBudgetExceeded) {
			t.Fatalf("rejection %s: %v, want ErrBudgetExceeded", rej.Name, rej.Err)
		}
	}
	if got := len(s.Snapshot()); got != 1 {
		t.Fatalf("records = %d, want 1", got)
	}
	if total := s.Stats().OriginalTotalKB; total > 51200 {
		t.Fatalf("original total %v exceeds budget", total)
	}
}

func TestIngestBudgetAcrossCalls(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, func(c *Config) { c.BudgetKB = 100 })

	if r := s.Ingest([]File{jpegFile("a.jpg", 60*1024)}); len(r.Accepted) != 1 {
		t.Fatalf("first call = %+v", r)
	}
	r := s.Ingest([]File{jpegFile("b.jpg", 60*1024)})
	if len(r.Accepted) != 0 || len(r.Rejected) != 1 {
		t.Fatalf("second call = %+v", r)
	}

	// Exactly at the ceiling is allowed.
	if r := s.Ingest([]File{jpegFile("c.jpg", 40*1024)}); len(r.Accepted) != 1 {
		t.Fatalf("third call = %+v", r)
	}
	waitIdle(t, s)
}

func TestOriginalSizeKBRounding(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, nil)

	sizes := []int{1, 1023, 1500, 2048, 123457}
	var files []File
	for i, n := range sizes {
		files = append(files, jpegFile(fmt.Sprintf("f%d.jpg", i), n))
	}
	s.Ingest(files)
	waitIdle(t, s)

	for i, rec := range s.Snapshot() {
		want := math.Round(float64(sizes[i])/1024*100) / 100
		if rec.OriginalSizeKB != want {
			t.Errorf("%s: original = %v, want %v", rec.Name, rec.OriginalSizeKB, want)
		}
	}
}

func TestAllDoneTracksInflightWork(t *testing.T) {
	enc := newGateEncoder()
	s := newTestStore(t, enc, nil)

	if s.Stats().AllDone {
		t.Fatal("empty batch must not be done")
	}

	s.Ingest([]File{jpegFile("a.jpg", 2048)})
	call := enc.next(t)

	st := s.Stats()
	if st.AllDone || st.Compressing != 1 {
		t.Fatalf("stats while compressing = %+v", st)
	}

	call.succeed()
	waitIdle(t, s)

	st = s.Stats()
	if !st.AllDone || st.Ready != 1 {
		t.Fatalf("stats after compress = %+v", st)
	}
}

func TestStatsTotals(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, func(c *Config) { c.Quality = 50 })

	s.Ingest([]File{jpegFile("a.jpg", 4096), jpegFile("b.jpg", 2048)})
	waitIdle(t, s)

	st := s.Stats()
	if st.Count != 2 || st.OriginalTotalKB != 6 || st.CompressedTotalKB != 3 {
		t.Fatalf("stats = %+v", st)
	}
	if st.SavedKB != 3 || st.ReductionPercent != 50 {
		t.Fatalf("saved = %v, reduction = %v", st.SavedKB, st.ReductionPercent)
	}
}

func TestStatsNeverNegative(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, nil)
	st := s.Stats()
	if st.SavedKB != 0 || st.ReductionPercent != 0 {
		t.Fatalf("empty stats = %+v", st)
	}

	grow := &growEncoder{}
	s = newTestStore(t, grow, nil)
	s.Ingest([]File{jpegFile("a.jpg", 1024)})
	waitIdle(t, s)

	st = s.Stats()
	if st.SavedKB != 0 || st.ReductionPercent != 0 {
		t.Fatalf("stats with growth = %+v", st)
	}
}

type growEncoder struct{ scaleEncoder }

func (g *growEncoder) Compress(_ context.Context, src []byte, q int) codec.Result {
	out := make([]byte, len(src)*2)
	return codec.Result{Bytes: out, SizeKB: codec.SizeKB(out), Quality: q}
}

func TestRemoveRecomputesStats(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, nil)

	report := s.Ingest([]File{jpegFile("a.jpg", 4096), jpegFile("b.jpg", 2048)})
	waitIdle(t, s)

	s.Remove(report.Accepted[0].ID)

	records := s.Snapshot()
	if len(records) != 1 || records[0].Name != "b.jpg" {
		t.Fatalf("records = %+v", records)
	}
	st := s.Stats()
	if st.OriginalTotalKB != 2 || st.CompressedTotalKB != 1.4 {
		t.Fatalf("stats = %+v", st)
	}

	s.Remove("no-such-id")
	if got := len(s.Snapshot()); got != 1 {
		t.Fatalf("records after unknown remove = %d", got)
	}
}

func TestRemoveDiscardsLateCompletion(t *testing.T) {
	enc := newGateEncoder()
	s := newTestStore(t, enc, nil)

	report := s.Ingest([]File{jpegFile("a.jpg", 2048)})
	call := enc.next(t)

	s.Remove(report.Accepted[0].ID)
	call.succeed()
	waitIdle(t, s)

	if _, ok := s.Record(report.Accepted[0].ID); ok {
		t.Fatal("late completion resurrected a removed record")
	}
	if st := s.Stats(); st.Count != 0 || st.CompressedTotalKB != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestResetDiscardsLateCompletion(t *testing.T) {
	enc := newGateEncoder()
	s := newTestStore(t, enc, nil)

	s.Ingest([]File{jpegFile("a.jpg", 2048), jpegFile("b.jpg", 2048)})
	first, second := enc.next(t), enc.next(t)

	s.Reset()
	first.succeed()
	second.succeed()
	waitIdle(t, s)

	if got := len(s.Snapshot()); got != 0 {
		t.Fatalf("records = %d after reset", got)
	}
	if s.Stats().AllDone {
		t.Fatal("empty batch must not be done")
	}
}

func TestSetQualityRecompresses(t *testing.T) {
	updates := make(chan Update, 64)
	s := newTestStore(t, &scaleEncoder{}, nil, WithUpdates(updates))

	report := s.Ingest([]File{jpegFile("a.jpg", 100*1024)})
	waitIdle(t, s)
	before, _ := s.Record(report.Accepted[0].ID)

	if err := s.SetQuality(30); err != nil {
		t.Fatalf("SetQuality: %v", err)
	}
	waitIdle(t, s)

	after, _ := s.Record(report.Accepted[0].ID)
	if after.Status != StatusReady || after.CompressedQuality != 30 {
		t.Fatalf("record = %+v", after)
	}
	if after.CompressedSizeKB > before.CompressedSizeKB {
		t.Fatalf("q30 = %v KB, q70 = %v KB", after.CompressedSizeKB, before.CompressedSizeKB)
	}
	if s.Quality() != 30 {
		t.Fatalf("quality = %d", s.Quality())
	}

	close(updates)
	var seen []Status
	for u := range updates {
		seen = append(seen, u.Status)
	}
	tail := seen[len(seen)-2:]
	if tail[0] != StatusCompressing || tail[1] != StatusReady {
		t.Fatalf("transitions = %v", seen)
	}
}

func TestSetQualityInvalid(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, nil)
	for _, q := range []int{0, -1, 101} {
		if err := s.SetQuality(q); !errors.Is(err, ErrInvalidQuality) {
			t.Fatalf("SetQuality(%d) = %v, want ErrInvalidQuality", q, err)
		}
	}
	if s.Quality() != 70 {
		t.Fatalf("quality changed to %d", s.Quality())
	}
}

func TestSetQualityPrioritisesFirstRecord(t *testing.T) {
	enc := &scaleEncoder{}
	s := newTestStore(t, enc, func(c *Config) { c.Stagger = 30 * time.Millisecond })

	a := jpegFile("a.jpg", 1024)
	b := jpegFile("b.jpg", 2048)
	c := jpegFile("c.jpg", 3072)
	s.Ingest([]File{a, b, c})
	waitIdle(t, s)

	if err := s.SetQuality(40); err != nil {
		t.Fatalf("SetQuality: %v", err)
	}
	waitIdle(t, s)

	sources := enc.compressedSources()
	if len(sources) != 6 {
		t.Fatalf("compress calls = %d, want 6", len(sources))
	}
	if !bytes.Equal(sources[3], a.Data) {
		t.Fatalf("first recompression was %d bytes, want the first record", len(sources[3]))
	}
}

func TestSetQualitySkipsUndecodedRecords(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, nil)

	bad := File{Name: "broken.jpg", MIMEType: "image/jpeg", Data: []byte("bad bytes")}
	report := s.Ingest([]File{bad})
	waitIdle(t, s)

	rec, _ := s.Record(report.Accepted[0].ID)
	if rec.Status != StatusErrored || rec.Error == "" || rec.Preview != nil {
		t.Fatalf("record = %+v", rec)
	}

	if err := s.SetQuality(20); err != nil {
		t.Fatalf("SetQuality: %v", err)
	}
	waitIdle(t, s)

	rec, _ = s.Record(report.Accepted[0].ID)
	if rec.Status != StatusErrored {
		t.Fatalf("status = %s, want errored", rec.Status)
	}
	if !s.Stats().AllDone {
		t.Fatal("errored-only batch should be done")
	}
}

func TestEncodeFailureKeepsPreviousOutput(t *testing.T) {
	enc := &scaleEncoder{failAt: 13}
	s := newTestStore(t, enc, nil)

	report := s.Ingest([]File{jpegFile("a.jpg", 10*1024)})
	waitIdle(t, s)
	ready, _ := s.Record(report.Accepted[0].ID)

	if err := s.SetQuality(13); err != nil {
		t.Fatalf("SetQuality: %v", err)
	}
	waitIdle(t, s)

	failed, _ := s.Record(report.Accepted[0].ID)
	if failed.Status != StatusErrored || failed.Error == "" {
		t.Fatalf("record = %+v", failed)
	}
	if !bytes.Equal(failed.Compressed, ready.Compressed) || failed.CompressedSizeKB != ready.CompressedSizeKB {
		t.Fatal("encode failure dropped the previous compressed result")
	}

	if err := s.SetQuality(40); err != nil {
		t.Fatalf("SetQuality: %v", err)
	}
	waitIdle(t, s)

	recovered, _ := s.Record(report.Accepted[0].ID)
	if recovered.Status != StatusReady || recovered.Error != "" || recovered.CompressedQuality != 40 {
		t.Fatalf("record = %+v", recovered)
	}
}

func overlappingEncodes(t *testing.T, discardStale bool) Record {
	t.Helper()
	enc := newGateEncoder()
	s := newTestStore(t, enc, func(c *Config) { c.DiscardStale = discardStale })

	report := s.Ingest([]File{jpegFile("a.jpg", 10*1024)})
	enc.next(t).succeed()
	waitIdle(t, s)

	if err := s.SetQuality(30); err != nil {
		t.Fatalf("SetQuality: %v", err)
	}
	if err := s.SetQuality(50); err != nil {
		t.Fatalf("SetQuality: %v", err)
	}

	calls := map[int]*pendingCall{}
	for len(calls) < 2 {
		c := enc.next(t)
		calls[c.quality] = c
	}

	// The newer request finishes first.
	calls[50].succeed()
	calls[30].succeed()
	waitIdle(t, s)

	rec, _ := s.Record(report.Accepted[0].ID)
	return rec
}

func TestOverlappingEncodesLastCompletionWins(t *testing.T) {
	rec := overlappingEncodes(t, false)
	if rec.CompressedQuality != 30 || rec.Status != StatusReady {
		t.Fatalf("record = %+v, want last completion (q30) to win", rec)
	}
}

func TestOverlappingEncodesDiscardStale(t *testing.T) {
	rec := overlappingEncodes(t, true)
	if rec.CompressedQuality != 50 || rec.Status != StatusReady {
		t.Fatalf("record = %+v, want newest request (q50) to win", rec)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, nil)
	s.Ingest([]File{jpegFile("a.jpg", 1024), jpegFile("b.jpg", 1024), jpegFile("c.jpg", 1024)})
	waitIdle(t, s)

	snap := s.Snapshot()
	if snap[0].Name != "a.jpg" || snap[1].Name != "b.jpg" || snap[2].Name != "c.jpg" {
		t.Fatalf("order = %s, %s, %s", snap[0].Name, snap[1].Name, snap[2].Name)
	}
	snap[0].Status = StatusLoading
	if rec, _ := s.Record(snap[0].ID); rec.Status != StatusReady {
		t.Fatal("mutating a snapshot changed the store")
	}

	ids := map[string]bool{}
	for _, rec := range snap {
		if ids[rec.ID] {
			t.Fatalf("duplicate id %s", rec.ID)
		}
		ids[rec.ID] = true
	}
}

func TestRejectionsAreLogged(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	s := newTestStore(t, &scaleEncoder{}, nil, WithLogger(zap.New(core)))

	s.Ingest([]File{{Name: "doc.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")}})

	entries := recorded.FilterMessage("file rejected").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["name"]; got != "doc.pdf" {
		t.Fatalf("name = %v", got)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	enc := newGateEncoder()
	s := newTestStore(t, enc, nil)
	s.Ingest([]File{jpegFile("a.jpg", 1024)})
	call := enc.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}

	call.succeed()
	waitIdle(t, s)
}

func TestWaitOnEmptyStoreReturnsImmediately(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, nil)
	waitIdle(t, s)

	s.Ingest([]File{jpegFile("a.jpg", 1024)})
	waitIdle(t, s)
	waitIdle(t, s)
}

func TestAbandonedWaitDoesNotBlockLaterWork(t *testing.T) {
	enc := newGateEncoder()
	s := newTestStore(t, enc, nil)
	s.Ingest([]File{jpegFile("a.jpg", 1024)})
	first := enc.next(t)

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			cancel()
			t.Fatalf("Wait = %v, want deadline exceeded", err)
		}
		cancel()
	}

	// The batch drains and refills while the abandoned waits are gone.
	first.succeed()
	waitIdle(t, s)
	s.Ingest([]File{jpegFile("b.jpg", 1024)})
	second := enc.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait with new work pending = %v, want deadline exceeded", err)
	}

	second.succeed()
	waitIdle(t, s)
	if st := s.Stats(); st.Ready != 2 || !st.AllDone {
		t.Fatalf("stats = %+v", st)
	}
}

func TestIngestBudgetUsesDeclaredSize(t *testing.T) {
	s := newTestStore(t, &scaleEncoder{}, func(c *Config) { c.BudgetKB = 51200 })

	report := s.Ingest([]File{
		jpegFile("first.jpg", 30*1024*1024),
		{Name: "unread.jpg", MIMEType: "image/jpeg", Size: 30 * 1024 * 1024},
	})
	waitIdle(t, s)

	if len(report.Accepted) != 1 || report.Accepted[0].Name != "first.jpg" {
		t.Fatalf("accepted = %+v", report.Accepted)
	}
	if len(report.Rejected) != 1 || !errors.Is(report.Rejected[0].Err, ErrBudgetExceeded) {
		t.Fatalf("rejected = %+v", report.Rejected)
	}
}

func TestFileSizeKB(t *testing.T) {
	if got := (File{Size: 2048}).SizeKB(); got != 2 {
		t.Fatalf("declared size = %v, want 2", got)
	}
	if got := (File{Size: 4096, Data: make([]byte, 1024)}).SizeKB(); got != 1 {
		t.Fatalf("read data wins, got %v", got)
	}
}
