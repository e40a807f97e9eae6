package offreg

import (
	"log/slog"

	"github.com/joshuapare/offreg/pkg/types"
)

// Session binds a provider to the options every hive opened through it
// shares. It holds no key state.
type Session struct {
	p    types.Provider
	log  *slog.Logger
	opts Options
}

// NewSession wraps p. A nil opts uses DefaultOptions.
func NewSession(p types.Provider, opts *Options) *Session {
	o := *DefaultOptions()
	if opts != nil {
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
		if opts.SaveVersion != (Version{}) {
			o.SaveVersion = opts.SaveVersion
		}
	}
	return &Session{p: p, log: o.Logger, opts: o}
}

// Provider returns the underlying provider.
func (s *Session) Provider() types.Provider { return s.p }

// Create makes a new empty hive.
func (s *Session) Create() (*Hive, error) {
	h, err := s.p.CreateHive()
	if err != nil {
		return nil, nativeError("create hive", "", err)
	}
	hv, err := newHive(s, h, "")
	if err != nil {
		return nil, err
	}
	s.log.Debug("hive created")
	return hv, nil
}

// Open loads the hive file at path.
func (s *Session) Open(path string) (*Hive, error) {
	h, err := s.p.OpenHive(path)
	if err != nil {
		return nil, types.FromStatus("open hive", path, err)
	}
	hv, err := newHive(s, h, path)
	if err != nil {
		return nil, err
	}
	s.log.Debug("hive opened", "path", path)
	return hv, nil
}

// nativeError classifies err like FromStatus but never as not-found.
func nativeError(op, path string, err error) error {
	err = types.FromStatus(op, path, err)
	if te, ok := err.(*types.Error); ok && te.Kind == types.ErrKindNotFound {
		cp := *te
		cp.Kind = types.ErrKindNative
		return &cp
	}
	return err
}
