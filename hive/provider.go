package hive

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/joshuapare/offreg/internal/format"
	"github.com/joshuapare/offreg/internal/mmfile"
	"github.com/joshuapare/offreg/internal/writer"
	"github.com/joshuapare/offreg/pkg/ast"
	"github.com/joshuapare/offreg/pkg/types"
)

// store is one open hive.
type store struct {
	tree *ast.Tree
	path string
}

// entry is one open handle.
type entry struct {
	store  *store
	node   *ast.Node
	isHive bool
}

// Provider implements types.Provider on in-memory trees.
type Provider struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	next    types.Handle
	handles map[types.Handle]*entry
}

var _ types.Provider = (*Provider)(nil)

// New creates a provider. A nil opts uses DefaultOptions.
func New(opts *Options) *Provider {
	o := opts.withDefaults()
	return &Provider{
		opts:    o,
		log:     o.Logger,
		handles: make(map[types.Handle]*entry),
	}
}

func (p *Provider) now() time.Time {
	return p.opts.Clock()
}

// register must be called with p.mu held.
func (p *Provider) register(e *entry) types.Handle {
	p.next++
	p.handles[p.next] = e
	return p.next
}

// lookup must be called with p.mu held. Handles to deleted keys fail.
func (p *Provider) lookup(h types.Handle) (*entry, error) {
	e, ok := p.handles[h]
	if !ok {
		return nil, types.StatusInvalidHandle
	}
	if e.node.Deleted {
		return nil, types.StatusKeyDeleted
	}
	return e, nil
}

// OpenHandles reports how many handles are outstanding, hive handles
// included.
func (p *Provider) OpenHandles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// -----------------------------------------------------------------------------
// Hive lifecycle
// -----------------------------------------------------------------------------

// CreateHive creates an empty hive whose root carries the default security
// descriptor.
func (p *Provider) CreateHive() (types.Handle, error) {
	tree := ast.NewTree(p.now())
	tree.Root.Security = DefaultSecurityDescriptor()

	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.register(&entry{store: &store{tree: tree}, node: tree.Root, isHive: true})
	p.log.Debug("hive created", "handle", h)
	return h, nil
}

// OpenHive loads the hive file at path into memory.
func (p *Provider) OpenHive(path string) (types.Handle, error) {
	data, release, err := mmfile.Map(path)
	if err != nil {
		return types.InvalidHandle, fileStatus(err)
	}
	tree, hdr, err := load(data, p.opts)
	_ = release()
	if err != nil {
		return types.InvalidHandle, &types.Error{
			Kind:   loadErrKind(err),
			Op:     "open hive",
			Path:   path,
			Status: types.StatusBadDB,
			Err:    err,
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.register(&entry{store: &store{tree: tree, path: path}, node: tree.Root, isHive: true})
	p.log.Debug("hive loaded", "handle", h, "path", path,
		"version", fmt.Sprintf("%d.%d", hdr.MajorVersion, hdr.MinorVersion))
	return h, nil
}

// CloseHive releases the hive and every key handle opened under it.
func (p *Provider) CloseHive(h types.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.handles[h]
	if !ok || !e.isHive {
		return types.StatusInvalidHandle
	}
	for k, other := range p.handles {
		if other.store == e.store {
			delete(p.handles, k)
		}
	}
	p.log.Debug("hive closed", "handle", h, "path", e.store.path)
	return nil
}

// SaveHive serializes the hive to a new file at path. The OS version pair
// selects the format: major 1 names the format minor version directly
// (1.2 through 1.6), 5.x writes 1.3 and 6.x or later writes 1.5.
func (p *Provider) SaveHive(h types.Handle, path string, majorVersion, minorVersion uint32) error {
	minor, err := formatMinor(majorVersion, minorVersion)
	if err != nil {
		return err
	}

	p.mu.Lock()
	e, ok := p.handles[h]
	if !ok || !e.isHive {
		p.mu.Unlock()
		return types.StatusInvalidHandle
	}
	buf, err := save(e.store.tree, minor, path, p.now())
	p.mu.Unlock()
	if err != nil {
		return &types.Error{Kind: types.ErrKindNative, Op: "save hive", Path: path,
			Status: types.StatusInvalidParameter, Err: err}
	}

	w := &writer.FileWriter{Path: path, Exclusive: true, FullSync: p.opts.FullSync}
	if err := w.WriteHive(buf); err != nil {
		return fileStatus(err)
	}

	p.mu.Lock()
	e.store.path = path
	p.mu.Unlock()
	p.log.Debug("hive saved", "handle", h, "path", path, "bytes", len(buf),
		"version", fmt.Sprintf("1.%d", minor))
	return nil
}

func formatMinor(major, minor uint32) (uint32, error) {
	switch {
	case major == 1 && minor >= 2 && minor <= 6:
		return minor, nil
	case major == 5:
		return 3, nil
	case major >= 6:
		return 5, nil
	}
	return 0, types.StatusInvalidParameter
}

// fileStatus maps filesystem errors to provider codes.
func fileStatus(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return types.StatusFileNotFound
	case errors.Is(err, fs.ErrExist):
		return types.StatusFileExists
	case errors.Is(err, fs.ErrPermission):
		return types.StatusAccessDenied
	}
	return &types.Error{Kind: types.ErrKindNative, Err: err}
}

func loadErrKind(err error) types.ErrKind {
	switch {
	case errors.Is(err, format.ErrUnsupported):
		return types.ErrKindUnsupported
	case errors.Is(err, errBadBaseBlock):
		return types.ErrKindFormat
	}
	return types.ErrKindCorrupt
}

// -----------------------------------------------------------------------------
// Keys
// -----------------------------------------------------------------------------

// CreateKey opens or creates every segment of subPath below parent. The
// class and options apply only to keys this call creates.
func (p *Provider) CreateKey(parent types.Handle, subPath, class string, opts types.KeyOptions) (types.Handle, types.Disposition, error) {
	if opts&types.OptionCreateLink != 0 {
		return types.InvalidHandle, 0, types.StatusInvalidParameter
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(parent)
	if err != nil {
		return types.InvalidHandle, 0, err
	}

	segs := ast.SplitPath(subPath)
	depth := e.node.Depth()
	for i, seg := range segs {
		cls := ""
		if i == len(segs)-1 {
			cls = class
		}
		if err := p.opts.Limits.ValidateKey(seg, cls, depth+i+1); err != nil {
			p.log.Debug("create key rejected", "path", subPath, "err", err)
			return types.InvalidHandle, 0, types.StatusInvalidParameter
		}
	}

	disp := types.OpenedExistingKey
	cur := e.node
	now := p.now()
	for i, seg := range segs {
		child := cur.Child(seg)
		if child == nil {
			cls := ""
			if i == len(segs)-1 {
				cls = class
			}
			child = cur.AddChild(seg, cls, now)
			child.Volatile = opts&types.OptionVolatile != 0
			disp = types.CreatedNewKey
		}
		cur = child
	}
	return p.register(&entry{store: e.store, node: cur}), disp, nil
}

// OpenKey opens subPath below parent. An empty subPath opens a new handle to
// parent itself.
func (p *Provider) OpenKey(parent types.Handle, subPath string) (types.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(parent)
	if err != nil {
		return types.InvalidHandle, err
	}
	n := e.node.Find(subPath)
	if n == nil {
		return types.InvalidHandle, types.StatusFileNotFound
	}
	return p.register(&entry{store: e.store, node: n}), nil
}

// CloseKey releases a key handle. Hive handles are released with CloseHive.
func (p *Provider) CloseKey(h types.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.handles[h]
	if !ok || e.isHive {
		return types.StatusInvalidHandle
	}
	delete(p.handles, h)
	return nil
}

// DeleteKey removes a key that has no subkeys.
func (p *Provider) DeleteKey(h types.Handle, subName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return err
	}
	target := e.node
	if subName != "" {
		if target = target.Find(subName); target == nil {
			return types.StatusFileNotFound
		}
	}
	if target.Parent == nil || len(target.Children) > 0 {
		return types.StatusAccessDenied
	}
	target.Parent.RemoveChild(target, p.now())
	return nil
}

// EnumKey describes the index-th subkey.
func (p *Provider) EnumKey(h types.Handle, index uint32, name, class []uint16) (types.EnumKeyResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return types.EnumKeyResult{}, err
	}
	if int(index) >= len(e.node.Children) {
		return types.EnumKeyResult{}, types.StatusNoMoreItems
	}
	c := e.node.Children[index]
	res := types.EnumKeyResult{
		NameLen:       uint32(format.UTF16Len(c.Name)),
		ClassLen:      uint32(format.UTF16Len(c.Class)),
		LastWriteTime: c.LastWrite,
	}
	if !putString(name, c.Name) {
		return res, types.StatusMoreData
	}
	if class != nil && !putString(class, c.Class) {
		return res, types.StatusMoreData
	}
	return res, nil
}

// QueryInfoKey reports the key's counts, size bounds and class.
func (p *Provider) QueryInfoKey(h types.Handle, class []uint16) (types.KeyInfoResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return types.KeyInfoResult{}, err
	}
	n := e.node
	st := n.Stats()
	res := types.KeyInfoResult{
		ClassLen:               uint32(format.UTF16Len(n.Class)),
		SubKeys:                uint32(len(n.Children)),
		MaxSubKeyLen:           uint32(st.MaxSubkeyNameLen),
		MaxClassLen:            uint32(st.MaxClassLen),
		Values:                 uint32(len(n.Values)),
		MaxValueNameLen:        uint32(st.MaxValueNameLen),
		MaxValueLen:            uint32(st.MaxValueDataLen),
		SecurityDescriptorSize: uint32(len(effectiveSecurity(n))),
		LastWriteTime:          n.LastWrite,
	}
	if !putString(class, n.Class) {
		return res, types.StatusMoreData
	}
	return res, nil
}

// -----------------------------------------------------------------------------
// Values
// -----------------------------------------------------------------------------

// GetValue reads a value of the key at subPath below h.
func (p *Provider) GetValue(h types.Handle, subPath, name string, data []byte) (types.RegType, uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return types.REG_NONE, 0, err
	}
	n := e.node.Find(subPath)
	if n == nil {
		return types.REG_NONE, 0, types.StatusFileNotFound
	}
	v := n.Value(name)
	if v == nil {
		return types.REG_NONE, 0, types.StatusFileNotFound
	}
	size := uint32(len(v.Data))
	if data == nil {
		return v.Type, size, nil
	}
	if len(data) < len(v.Data) {
		return v.Type, size, types.StatusMoreData
	}
	copy(data, v.Data)
	return v.Type, size, nil
}

// SetValue creates or replaces a value.
func (p *Provider) SetValue(h types.Handle, name string, t types.RegType, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return err
	}
	if err := p.opts.Limits.ValidateValue(name, len(data)); err != nil {
		p.log.Debug("set value rejected", "name", name, "err", err)
		return types.StatusInvalidParameter
	}
	e.node.SetValue(name, t, data, p.now())
	return nil
}

// DeleteValue removes a value.
func (p *Provider) DeleteValue(h types.Handle, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return err
	}
	if !e.node.RemoveValue(name, p.now()) {
		return types.StatusFileNotFound
	}
	return nil
}

// EnumValue describes the index-th value.
func (p *Provider) EnumValue(h types.Handle, index uint32, name []uint16, data []byte) (types.EnumValueResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return types.EnumValueResult{}, err
	}
	if int(index) >= len(e.node.Values) {
		return types.EnumValueResult{}, types.StatusNoMoreItems
	}
	v := e.node.Values[index]
	res := types.EnumValueResult{
		NameLen: uint32(format.UTF16Len(v.Name)),
		Type:    v.Type,
		DataLen: uint32(len(v.Data)),
	}
	if !putString(name, v.Name) {
		return res, types.StatusMoreData
	}
	if data != nil {
		if len(data) < len(v.Data) {
			return res, types.StatusMoreData
		}
		copy(data, v.Data)
	}
	return res, nil
}

// -----------------------------------------------------------------------------
// Security
// -----------------------------------------------------------------------------

// GetKeySecurity returns the parts of the key's descriptor selected by info.
func (p *Provider) GetKeySecurity(h types.Handle, info types.SecurityInformation, sd []byte) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return 0, err
	}
	d, err := parseDescriptor(effectiveSecurity(e.node))
	if err != nil {
		return 0, &types.Error{Kind: types.ErrKindCorrupt, Op: "get key security",
			Status: types.StatusBadKey, Err: err}
	}
	out := d.filter(info).bytes()
	size := uint32(len(out))
	if sd == nil {
		return size, nil
	}
	if len(sd) < len(out) {
		return size, types.StatusMoreData
	}
	copy(sd, out)
	return size, nil
}

// SetKeySecurity replaces the parts of the key's descriptor selected by info.
func (p *Provider) SetKeySecurity(h types.Handle, info types.SecurityInformation, sd []byte) error {
	src, err := parseDescriptor(sd)
	if err != nil {
		return types.StatusInvalidParameter
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(h)
	if err != nil {
		return err
	}
	cur, err := parseDescriptor(effectiveSecurity(e.node))
	if err != nil {
		cur = descriptor{control: seSelfRelative}
	}
	e.node.Security = cur.merge(src, info).bytes()
	e.node.LastWrite = p.now()
	return nil
}

func effectiveSecurity(n *ast.Node) []byte {
	if len(n.Security) == 0 {
		return defaultSecurity
	}
	return n.Security
}

// putString writes s plus a terminator into dst. Reports false when dst is
// too short; a nil dst suffices for an empty string.
func putString(dst []uint16, s string) bool {
	units := utf16.Encode([]rune(s))
	if len(units) == 0 {
		if len(dst) > 0 {
			dst[0] = 0
		}
		return true
	}
	if len(dst) < len(units)+1 {
		return false
	}
	copy(dst, units)
	dst[len(units)] = 0
	return true
}
