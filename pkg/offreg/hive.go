package offreg

import (
	"errors"

	"github.com/joshuapare/offreg/pkg/types"
)

// Hive owns one provider hive handle, its root key and the arena of keys
// opened under it.
type Hive struct {
	s      *Session
	handle types.Handle
	path   string
	nodes  arena
	root   *Key
	closed bool
}

func newHive(s *Session, h types.Handle, path string) (*Hive, error) {
	hv := &Hive{s: s, handle: h, path: path}
	n := &keyNode{handle: h, parent: noRef, root: true}
	hv.root = &Key{h: hv, ref: hv.nodes.alloc(n)}
	if err := hv.root.Refresh(); err != nil {
		_ = s.p.CloseHive(h)
		hv.closed = true
		return nil, err
	}
	return hv, nil
}

// Root returns the root key. Closing it closes the hive.
func (hv *Hive) Root() *Key { return hv.root }

// Path is the file the hive was opened from or last saved to, or "".
func (hv *Hive) Path() string { return hv.path }

// Session returns the session the hive belongs to.
func (hv *Hive) Session() *Session { return hv.s }

// Closed reports whether Close has run.
func (hv *Hive) Closed() bool { return hv.closed }

// OpenKeys reports how many keys, the root included, are still open.
func (hv *Hive) OpenKeys() int { return hv.nodes.live }

// Save writes the hive to path, which must not exist yet. major and minor
// are the target OS version.
func (hv *Hive) Save(path string, major, minor uint32) error {
	if hv.closed {
		return closedError("save hive", path)
	}
	if err := hv.s.p.SaveHive(hv.handle, path, major, minor); err != nil {
		return nativeError("save hive", path, err)
	}
	hv.path = path
	hv.s.log.Debug("hive saved", "path", path, "major", major, "minor", minor)
	return nil
}

// SaveVersion saves with the session's configured version.
func (hv *Hive) SaveVersion(path string) error {
	v := hv.s.opts.SaveVersion
	return hv.Save(path, v.Major, v.Minor)
}

// Close releases every key still open under the hive, then the hive itself.
// Calling it again is a no-op.
func (hv *Hive) Close() error {
	if hv.closed {
		return nil
	}
	hv.closed = true

	var errs []error
	hv.nodes.each(func(r ref, n *keyNode) {
		if !n.root {
			if err := hv.s.p.CloseKey(n.handle); err != nil {
				errs = append(errs, nativeError("close key", n.path, err))
			}
		}
		hv.nodes.release(r)
	})
	if err := hv.s.p.CloseHive(hv.handle); err != nil {
		errs = append(errs, nativeError("close hive", hv.path, err))
	}
	hv.s.log.Debug("hive closed", "path", hv.path)
	return errors.Join(errs...)
}

func closedError(op, path string) error {
	return &types.Error{Kind: types.ErrKindClosed, Op: op, Path: path}
}
