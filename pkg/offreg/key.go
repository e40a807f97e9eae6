package offreg

import (
	"time"

	"github.com/joshuapare/offreg/pkg/ast"
	"github.com/joshuapare/offreg/pkg/types"
)

// KeyInfo is the cached metadata of an open key. Name and class lengths are
// UTF-16 code units; MaxValueLen and SecurityDescriptorSize are bytes.
type KeyInfo struct {
	Class                  string
	SubKeys                uint32
	MaxSubKeyLen           uint32
	MaxClassLen            uint32
	Values                 uint32
	MaxValueNameLen        uint32
	MaxValueLen            uint32
	SecurityDescriptorSize uint32
	LastWriteTime          time.Time
}

// keyNode is the arena payload behind a Key.
type keyNode struct {
	name   string
	path   string
	handle types.Handle
	parent ref
	root   bool
	info   KeyInfo
}

// Key is an open registry key. Keys must be closed; closing the root key
// closes the hive. A Key is not safe for concurrent use.
type Key struct {
	h   *Hive
	ref ref
}

// SubKeyInfo describes one enumerated subkey.
type SubKeyInfo struct {
	Name          string
	Class         string
	LastWriteTime time.Time
}

func (k *Key) node(op string) (*keyNode, error) {
	if k.h.closed {
		return nil, closedError(op, "")
	}
	n := k.h.nodes.get(k.ref)
	if n == nil {
		return nil, closedError(op, "")
	}
	return n, nil
}

func (k *Key) provider() types.Provider { return k.h.s.p }

// Hive returns the owning hive.
func (k *Key) Hive() *Hive { return k.h }

// Open reports whether the key is still usable.
func (k *Key) Open() bool {
	_, err := k.node("")
	return err == nil
}

// Name is the key's own path segment; "" for the root.
func (k *Key) Name() string {
	if n, err := k.node(""); err == nil {
		return n.name
	}
	return ""
}

// FullName is the path from the root joined with backslashes; "" for the
// root.
func (k *Key) FullName() string {
	if n, err := k.node(""); err == nil {
		return n.path
	}
	return ""
}

// IsRoot reports whether k is the hive's root key.
func (k *Key) IsRoot() bool {
	n, err := k.node("")
	return err == nil && n.root
}

// Info returns the cached metadata snapshot.
func (k *Key) Info() KeyInfo {
	if n, err := k.node(""); err == nil {
		return n.info
	}
	return KeyInfo{}
}

func (k *Key) SubkeyCount() int         { return int(k.Info().SubKeys) }
func (k *Key) ValueCount() int          { return int(k.Info().Values) }
func (k *Key) Class() string            { return k.Info().Class }
func (k *Key) LastWriteTime() time.Time { return k.Info().LastWriteTime }

// Parent returns the parent key when it is still open.
func (k *Key) Parent() (*Key, bool) {
	n, err := k.node("")
	if err != nil || k.h.nodes.get(n.parent) == nil {
		return nil, false
	}
	return &Key{h: k.h, ref: n.parent}, true
}

// Close releases the key's handle. Closing the root closes the hive; closing
// twice is a no-op.
func (k *Key) Close() error {
	if k.h.closed {
		return nil
	}
	n := k.h.nodes.get(k.ref)
	if n == nil {
		return nil
	}
	if n.root {
		return k.h.Close()
	}
	k.h.nodes.release(k.ref)
	if err := k.provider().CloseKey(n.handle); err != nil {
		return nativeError("close key", n.path, err)
	}
	return nil
}

// Refresh reloads the cached metadata from the provider.
func (k *Key) Refresh() error {
	n, err := k.node("query key")
	if err != nil {
		return err
	}
	return k.h.refresh(n)
}

func (hv *Hive) refresh(n *keyNode) error {
	var (
		res   types.KeyInfoResult
		class []uint16
	)
	err := probeFetch(func(probe bool) error {
		if !probe {
			class = make([]uint16, res.ClassLen+1)
		}
		var err error
		res, err = hv.s.p.QueryInfoKey(n.handle, class)
		return err
	})
	if err != nil {
		return types.FromStatus("query key", n.path, err)
	}
	n.info = KeyInfo{
		Class:                  utf16String(class, res.ClassLen),
		SubKeys:                res.SubKeys,
		MaxSubKeyLen:           res.MaxSubKeyLen,
		MaxClassLen:            res.MaxClassLen,
		Values:                 res.Values,
		MaxValueNameLen:        res.MaxValueNameLen,
		MaxValueLen:            res.MaxValueLen,
		SecurityDescriptorSize: res.SecurityDescriptorSize,
		LastWriteTime:          res.LastWriteTime,
	}
	return nil
}

// refreshParent refreshes n's parent when it is still open.
func (hv *Hive) refreshParent(n *keyNode) error {
	if p := hv.nodes.get(n.parent); p != nil {
		return hv.refresh(p)
	}
	return nil
}

func childPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + ast.RegistryPathSeparator + name
}

// adopt registers a freshly opened handle as a child of parent.
func (hv *Hive) adopt(parent ref, parentPath string, h types.Handle, name string) (*Key, error) {
	n := &keyNode{name: name, path: childPath(parentPath, name), handle: h, parent: parent}
	if err := hv.refresh(n); err != nil {
		_ = hv.s.p.CloseKey(h)
		return nil, err
	}
	return &Key{h: hv, ref: hv.nodes.alloc(n)}, nil
}

// -----------------------------------------------------------------------------
// Navigation
// -----------------------------------------------------------------------------

// OpenSubKey opens path below k. Segments are separated by '\' or '/'; empty
// segments are ignored and an empty path opens a new handle to k itself.
// Intermediate keys are released as the walk moves past them.
func (k *Key) OpenSubKey(path string) (*Key, error) {
	return k.walk("open key", path, func(parent types.Handle, seg string, _ bool) (types.Handle, error) {
		return k.provider().OpenKey(parent, seg)
	})
}

// TryOpenSubKey is OpenSubKey with not-found reported as false.
func (k *Key) TryOpenSubKey(path string) (*Key, bool, error) {
	sub, err := k.OpenSubKey(path)
	if types.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return sub, true, nil
}

// CreateSubKey opens path below k, creating missing segments. Existing keys
// are opened unchanged.
func (k *Key) CreateSubKey(path string) (*Key, error) {
	return k.CreateSubKeyClass(path, "", types.OptionNonVolatile)
}

// CreateSubKeyClass is CreateSubKey with a class and options applied to
// keys this call creates. Only the deepest segment receives the class.
func (k *Key) CreateSubKeyClass(path, class string, opts types.KeyOptions) (*Key, error) {
	created := false
	sub, err := k.walk("create key", path, func(parent types.Handle, seg string, last bool) (types.Handle, error) {
		cls := ""
		if last {
			cls = class
		}
		h, disp, err := k.provider().CreateKey(parent, seg, cls, opts)
		if err != nil {
			return h, err
		}
		k.h.s.log.Debug("create key", "key", seg, "disposition", disp)
		if disp == types.CreatedNewKey {
			created = true
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		if n, nerr := k.node("create key"); nerr == nil {
			if err := k.h.refresh(n); err != nil {
				_ = sub.Close()
				return nil, err
			}
		}
	}
	return sub, nil
}

type stepFunc func(parent types.Handle, seg string, last bool) (types.Handle, error)

func (k *Key) walk(op, path string, step stepFunc) (*Key, error) {
	start, err := k.node(op)
	if err != nil {
		return nil, err
	}
	segs := ast.SplitPath(path)
	if len(segs) == 0 {
		h, err := k.provider().OpenKey(start.handle, "")
		if err != nil {
			return nil, types.FromStatus(op, start.path, err)
		}
		if start.root {
			return k.h.adopt(noRef, "", h, "")
		}
		return k.h.adopt(start.parent, parentPath(start.path), h, start.name)
	}

	var (
		cur     *Key
		curNode = start
		curRef  = k.ref
	)
	for i, seg := range segs {
		h, err := step(curNode.handle, seg, i == len(segs)-1)
		if err != nil {
			err = types.FromStatus(op, childPath(curNode.path, seg), err)
			if cur != nil {
				_ = cur.Close()
			}
			return nil, err
		}
		next, err := k.h.adopt(curRef, curNode.path, h, seg)
		if cur != nil {
			_ = cur.Close()
		}
		if err != nil {
			return nil, err
		}
		cur = next
		curNode = k.h.nodes.get(next.ref)
		curRef = next.ref
	}
	return cur, nil
}

func parentPath(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '\\' {
			return path[:i]
		}
	}
	return ""
}

// IsExistSubKey reports whether path exists below k.
func (k *Key) IsExistSubKey(path string) (bool, error) {
	sub, ok, err := k.TryOpenSubKey(path)
	if !ok {
		return false, err
	}
	return true, sub.Close()
}

// SubkeyExist reports whether k has a direct subkey called name.
func (k *Key) SubkeyExist(name string) (bool, error) {
	n, err := k.node("open key")
	if err != nil {
		return false, err
	}
	h, err := k.provider().OpenKey(n.handle, name)
	if types.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, types.FromStatus("open key", childPath(n.path, name), err)
	}
	if err := k.provider().CloseKey(h); err != nil {
		return true, nativeError("close key", childPath(n.path, name), err)
	}
	return true, nil
}

// EnumerateSubKeys lists the direct subkeys in provider order.
func (k *Key) EnumerateSubKeys() ([]SubKeyInfo, error) {
	n, err := k.node("enumerate keys")
	if err != nil {
		return nil, err
	}
	if err := k.h.refresh(n); err != nil {
		return nil, err
	}
	return k.h.enumKeys(n.handle, n.path, n.info, true)
}

// GetSubKeyNames lists the names of the direct subkeys in provider order.
func (k *Key) GetSubKeyNames() ([]string, error) {
	n, err := k.node("enumerate keys")
	if err != nil {
		return nil, err
	}
	if err := k.h.refresh(n); err != nil {
		return nil, err
	}
	subs, err := k.h.enumKeys(n.handle, n.path, n.info, false)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.Name
	}
	return names, nil
}

// enumKeys walks EnumKey with buffers sized from info, falling back to a
// probe for any entry that outgrew them.
func (hv *Hive) enumKeys(h types.Handle, path string, info KeyInfo, withClass bool) ([]SubKeyInfo, error) {
	name := make([]uint16, info.MaxSubKeyLen+1)
	var class []uint16
	if withClass {
		class = make([]uint16, info.MaxClassLen+1)
	}
	out := make([]SubKeyInfo, 0, info.SubKeys)
	for i := uint32(0); i < info.SubKeys; i++ {
		res, err := hv.s.p.EnumKey(h, i, name, class)
		nameBuf, classBuf := name, class
		if types.IsMoreData(err) {
			err = probeFetch(func(probe bool) error {
				nameBuf, classBuf = nil, nil
				if !probe {
					nameBuf = make([]uint16, res.NameLen+1)
					if withClass {
						classBuf = make([]uint16, res.ClassLen+1)
					}
				}
				var err error
				res, err = hv.s.p.EnumKey(h, i, nameBuf, classBuf)
				return err
			})
		}
		if isNoMoreItems(err) {
			break
		}
		if err != nil {
			return nil, types.FromStatus("enumerate keys", path, err)
		}
		sub := SubKeyInfo{Name: utf16String(nameBuf, res.NameLen), LastWriteTime: res.LastWriteTime}
		if withClass {
			sub.Class = utf16String(classBuf, res.ClassLen)
		}
		out = append(out, sub)
	}
	return out, nil
}

func isNoMoreItems(err error) bool {
	return types.StatusOf(err) == types.StatusNoMoreItems
}
