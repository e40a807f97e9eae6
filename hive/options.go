package hive

import (
	"io"
	"log/slog"
	"time"

	"github.com/joshuapare/offreg/pkg/ast"
)

// DefaultMaxCellSize bounds a single cell accepted by the loader.
const DefaultMaxCellSize = 64 << 20

// Options configures the provider.
type Options struct {
	// Logger receives load/save diagnostics.
	// Default: discards everything
	Logger *slog.Logger

	// Clock stamps last-write times on keys and files.
	// Default: time.Now
	Clock func() time.Time

	// MaxCellSize rejects files whose cells claim more bytes than this.
	// Default: DefaultMaxCellSize
	MaxCellSize int

	// StrictChecksum fails OpenHive on a header checksum mismatch instead of
	// logging a warning.
	// Default: false
	StrictChecksum bool

	// Limits bounds names, classes and value sizes accepted by CreateKey and
	// SetValue.
	// Default: ast.DefaultLimits()
	Limits ast.Limits

	// FullSync asks the file writer for a cache-flushing sync on save.
	// Default: false
	FullSync bool
}

// DefaultOptions returns the recommended provider options.
func DefaultOptions() *Options {
	return &Options{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:       time.Now,
		MaxCellSize: DefaultMaxCellSize,
		Limits:      ast.DefaultLimits(),
	}
}

func (o *Options) withDefaults() Options {
	def := DefaultOptions()
	if o == nil {
		return *def
	}
	out := *o
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	if out.Clock == nil {
		out.Clock = def.Clock
	}
	if out.MaxCellSize <= 0 {
		out.MaxCellSize = def.MaxCellSize
	}
	if out.Limits == (ast.Limits{}) {
		out.Limits = def.Limits
	}
	return out
}
