package offreg

import (
	"io"
	"log/slog"
)

// Version is the OS version pair handed to the provider on save. The pure-Go
// provider also accepts major 1 as a direct hive format version.
type Version struct {
	Major uint32
	Minor uint32
}

// Options configures a Session.
type Options struct {
	// Logger receives diagnostics: unknown value types, create dispositions,
	// tolerated races during recursive delete.
	// Default: discards everything
	Logger *slog.Logger

	// SaveVersion is used by Hive.SaveVersion.
	// Default: 6.1 (format 1.5)
	SaveVersion Version
}

// DefaultOptions returns the recommended session options.
func DefaultOptions() *Options {
	return &Options{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		SaveVersion: Version{Major: 6, Minor: 1},
	}
}
