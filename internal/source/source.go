// Package source supplies raw delimited text to the analysis pipeline from
// local files, stdin, HTTP(S) URLs and XLSX workbooks.
package source

import (
	"context"
	"errors"
	"io"
	"time"
)

// Input is raw text ready for parsing.
type Input struct {
	Name string
	Text string
}

// Options configures loaders. Zero values fall back to defaults.
type Options struct {
	// XLSX sheet selection; SheetName wins over SheetIndex (1-based).
	SheetName  string
	SheetIndex int
	// MaxBytes caps how much is read from any source.
	MaxBytes int64
	// Stdin is read when the reference is "-".
	Stdin io.Reader
	HTTP  HTTPOptions
}

// HTTPOptions controls remote fetches.
type HTTPOptions struct {
	Timeout   time.Duration
	RetryMax  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultMaxBytes bounds inputs at 10 MiB.
const DefaultMaxBytes int64 = 10 << 20

// Loader resolves one kind of reference.
type Loader interface {
	CanLoad(ref string) bool
	Load(ctx context.Context, ref string, opt Options) (*Input, error)
}

var registry []Loader

// Register adds a loader. Earlier registrations win.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates no loader accepts the reference.
var ErrUnsupported = errors.New("unsupported input")

// ErrTooLarge indicates the input exceeds Options.MaxBytes.
var ErrTooLarge = errors.New("input exceeds size limit")

// Load picks the first loader that accepts ref.
func Load(ctx context.Context, ref string, opt Options) (*Input, error) {
	if opt.MaxBytes <= 0 {
		opt.MaxBytes = DefaultMaxBytes
	}
	for _, l := range registry {
		if l.CanLoad(ref) {
			return l.Load(ctx, ref, opt)
		}
	}
	return nil, ErrUnsupported
}

func init() {
	Register(stdinLoader{})
	Register(httpLoader{})
	Register(xlsxLoader{})
	Register(fileLoader{})
}

// readLimited reads at most limit bytes and fails if more remain.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, ErrTooLarge
	}
	return b, nil
}
