package batch

import (
	"context"
	"errors"
	"runtime"
	"time"

	"squeeze/internal/codec"
	"squeeze/internal/metadata"
	"squeeze/pkg/imgutil"
)

var (
	ErrInvalidQuality  = errors.New("quality out of range")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrBudgetExceeded  = errors.New("batch budget exceeded")
)

const (
	MinQuality = 1
	MaxQuality = 100

	DefaultQuality  = 70
	DefaultBudgetKB = 50 * 1024
	DefaultStagger  = 100 * time.Millisecond
)

// Status is the lifecycle state of one record.
type Status string

const (
	StatusLoading     Status = "loading"
	StatusCompressing Status = "compressing"
	StatusReady       Status = "ready"
	StatusErrored     Status = "errored"
)

func (s Status) String() string { return string(s) }

// Settled reports whether no work is outstanding for the record.
func (s Status) Settled() bool {
	return s == StatusReady || s == StatusErrored
}

// Encoder is the codec the store drives. *codec.Encoder satisfies it.
type Encoder interface {
	Decode(ctx context.Context, src []byte) (codec.Preview, error)
	Compress(ctx context.Context, src []byte, qualityPercent int) codec.Result
}

// File is one raw input handed to Ingest. Size carries the byte length when
// Data has not been read, which is enough for Ingest to reject the file.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

// SizeKB is the original size used for budgeting.
func (f File) SizeKB() float64 {
	if f.Data == nil && f.Size > 0 {
		return codec.LengthKB(f.Size)
	}
	return codec.SizeKB(f.Data)
}

// Record is the per-image state. Values returned by the store are copies;
// Source and Compressed are shared and must not be modified.
type Record struct {
	ID                string
	Name              string
	MIMEType          string
	Kind              imgutil.Kind
	Source            []byte
	OriginalSizeKB    float64
	Preview           *codec.Preview
	Compressed        []byte
	CompressedSizeKB  float64
	CompressedQuality int
	Status            Status
	Error             string
	Metadata          metadata.Analysis
}

// HasOutput reports whether a compressed result is held.
func (r Record) HasOutput() bool {
	return r.Compressed != nil
}

type Accepted struct {
	ID     string
	Name   string
	SizeKB float64
}

// Rejection names a file Ingest refused. Err wraps ErrUnsupportedType or
// ErrBudgetExceeded.
type Rejection struct {
	Name string
	Err  error
}

type IngestReport struct {
	Accepted []Accepted
	Rejected []Rejection
}

// Stats aggregates the batch.
type Stats struct {
	Count             int
	OriginalTotalKB   float64
	CompressedTotalKB float64
	SavedKB           float64
	ReductionPercent  float64
	AllDone           bool

	Loading          int
	Compressing      int
	Ready            int
	Errored          int
	MetadataStripped int
}

type UpdateKind int

const (
	UpdateAdded UpdateKind = iota
	UpdateStatus
	UpdateRemoved
	UpdateReset
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateAdded:
		return "added"
	case UpdateStatus:
		return "status"
	case UpdateRemoved:
		return "removed"
	case UpdateReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Update is published after every mutation.
type Update struct {
	Kind   UpdateKind
	ID     string
	Name   string
	Status Status
	Stats  Stats
}

type Config struct {
	Quality  int
	BudgetKB float64
	Workers  int
	// Stagger delays re-encodes after a quality change: the record at
	// position i starts i*Stagger after the first.
	Stagger time.Duration
	// DiscardStale drops encode completions that were superseded by a newer
	// request for the same record. Off means the last completion wins.
	DiscardStale bool
}

func DefaultConfig() Config {
	return Config{
		Quality:  DefaultQuality,
		BudgetKB: DefaultBudgetKB,
		Workers:  runtime.NumCPU(),
		Stagger:  DefaultStagger,
	}
}
