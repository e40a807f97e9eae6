package hive

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshuapare/offreg/internal/format"
	"github.com/joshuapare/offreg/pkg/ast"
	"github.com/joshuapare/offreg/pkg/types"
)

var (
	errBadBaseBlock = errors.New("bad base block")
	errCorrupt      = errors.New("corrupt hive")
)

// loader turns a REGF image into an ast.Tree. Every byte slice kept in the
// tree is copied out of the image, which may be an mmap released right after.
type loader struct {
	image   []byte
	minor   uint32
	opts    Options
	log     *slog.Logger
	visited map[uint32]bool
	sk      map[uint32][]byte
	keys    int
}

func load(image []byte, opts Options) (*ast.Tree, format.Header, error) {
	hdr, checksumOK, err := format.ParseHeader(image)
	if err != nil {
		return nil, hdr, fmt.Errorf("%w: %w", errBadBaseBlock, err)
	}
	if !checksumOK {
		if opts.StrictChecksum {
			return nil, hdr, fmt.Errorf("%w: %w", errBadBaseBlock, format.ErrBadChecksum)
		}
		opts.Logger.Warn("hive header checksum mismatch", "stored", hdr.CheckSum,
			"computed", format.Checksum(image))
	}
	if hdr.MajorVersion != 1 {
		return nil, hdr, fmt.Errorf("regf version %d.%d: %w", hdr.MajorVersion, hdr.MinorVersion, format.ErrUnsupported)
	}
	if hdr.Dirty() {
		opts.Logger.Warn("hive was not cleanly written; transaction logs are not replayed",
			"primary", hdr.PrimarySequence, "secondary", hdr.SecondarySequence)
	}

	end, err := checkBins(image, hdr)
	if err != nil {
		return nil, hdr, err
	}

	l := &loader{
		image:   image[:end],
		minor:   hdr.MinorVersion,
		opts:    opts,
		log:     opts.Logger,
		visited: make(map[uint32]bool),
		sk:      make(map[uint32][]byte),
	}
	root, err := l.readKey(hdr.RootCellOffset, 0)
	if err != nil {
		return nil, hdr, err
	}
	l.log.Debug("hive parsed", "keys", l.keys, "security_cells", len(l.sk))
	return &ast.Tree{Root: root}, hdr, nil
}

// checkBins walks the HBIN chain and returns the absolute end of hive data.
func checkBins(image []byte, hdr format.Header) (int, error) {
	if hdr.HiveBinsDataSize == 0 {
		return 0, fmt.Errorf("%w: no hive bins", errBadBaseBlock)
	}
	end := format.HeaderSize + int(hdr.HiveBinsDataSize)
	if end > len(image) {
		return 0, fmt.Errorf("hive bins end at %#x past file size %#x: %w", end, len(image), format.ErrTruncated)
	}
	for off := format.HeaderSize; off < end; {
		hb, next, err := format.NextHBIN(image, off)
		if err != nil {
			return 0, err
		}
		if int(hb.FileOffset) != off-format.HeaderSize {
			return 0, fmt.Errorf("%w: hbin at %#x claims offset %#x", errCorrupt, off, hb.FileOffset)
		}
		off = next
	}
	return end, nil
}

func (l *loader) cell(off uint32) ([]byte, error) {
	b, err := format.CellPayload(l.image, off)
	if err != nil {
		return nil, err
	}
	if len(b) > l.opts.MaxCellSize {
		return nil, fmt.Errorf("cell %#x size %d: %w", off, len(b), format.ErrSanityLimit)
	}
	return b, nil
}

func (l *loader) readKey(off uint32, depth int) (*ast.Node, error) {
	if depth > l.opts.Limits.MaxTreeDepth {
		return nil, fmt.Errorf("%w: key nesting deeper than %d", errCorrupt, l.opts.Limits.MaxTreeDepth)
	}
	if l.visited[off] {
		return nil, fmt.Errorf("%w: key %#x referenced twice", errCorrupt, off)
	}
	l.visited[off] = true
	l.keys++

	payload, err := l.cell(off)
	if err != nil {
		return nil, fmt.Errorf("key %#x: %w", off, err)
	}
	nk, err := format.DecodeNK(payload)
	if err != nil {
		return nil, fmt.Errorf("key %#x: %w", off, err)
	}
	name, err := format.DecodeName(nk.NameRaw, nk.NameIsCompressed())
	if err != nil {
		return nil, fmt.Errorf("key %#x: %w", off, err)
	}
	node := &ast.Node{
		Name:      name,
		LastWrite: format.FiletimeToTime(nk.LastWriteRaw),
		Volatile:  nk.Flags&format.NKFlagVolatile != 0,
	}

	if nk.ClassLength > 0 && nk.ClassNameOffset != format.InvalidOffset {
		if node.Class, err = l.readClass(nk); err != nil {
			return nil, fmt.Errorf("key %q class: %w", name, err)
		}
	}
	if nk.SecurityOffset != format.InvalidOffset && nk.SecurityOffset != 0 {
		if node.Security, err = l.readSecurity(nk.SecurityOffset); err != nil {
			return nil, fmt.Errorf("key %q security: %w", name, err)
		}
	}
	if nk.ValueCount > 0 {
		if err := l.readValues(node, nk); err != nil {
			return nil, fmt.Errorf("key %q: %w", name, err)
		}
	}
	if nk.SubkeyCount > 0 && nk.SubkeyListOffset != format.InvalidOffset {
		offsets, err := l.subkeyOffsets(nk.SubkeyListOffset, 0)
		if err != nil {
			return nil, fmt.Errorf("key %q subkeys: %w", name, err)
		}
		if len(offsets) != int(nk.SubkeyCount) {
			l.log.Warn("subkey count mismatch", "key", name, "header", nk.SubkeyCount, "list", len(offsets))
		}
		for _, childOff := range offsets {
			child, err := l.readKey(childOff, depth+1)
			if err != nil {
				return nil, err
			}
			if !node.Attach(child) {
				l.log.Warn("duplicate subkey skipped", "key", name, "subkey", child.Name)
			}
		}
	}
	return node, nil
}

func (l *loader) readClass(nk format.NKRecord) (string, error) {
	b, err := l.cell(nk.ClassNameOffset)
	if err != nil {
		return "", err
	}
	if int(nk.ClassLength) > len(b) {
		return "", fmt.Errorf("class length %d: %w", nk.ClassLength, format.ErrTruncated)
	}
	return format.DecodeName(b[:nk.ClassLength], false)
}

func (l *loader) readSecurity(off uint32) ([]byte, error) {
	if sd, ok := l.sk[off]; ok {
		return sd, nil
	}
	b, err := l.cell(off)
	if err != nil {
		return nil, err
	}
	sk, err := format.DecodeSK(b)
	if err != nil {
		return nil, err
	}
	sd := bytes.Clone(sk.Descriptor)
	l.sk[off] = sd
	return sd, nil
}

func (l *loader) readValues(node *ast.Node, nk format.NKRecord) error {
	b, err := l.cell(nk.ValueListOffset)
	if err != nil {
		return fmt.Errorf("value list: %w", err)
	}
	offsets, err := format.DecodeValueList(b, nk.ValueCount)
	if err != nil {
		return err
	}
	for _, off := range offsets {
		v, err := l.readValue(off)
		if err != nil {
			return fmt.Errorf("value %#x: %w", off, err)
		}
		if node.Value(v.Name) != nil {
			l.log.Warn("duplicate value skipped", "key", node.Name, "value", v.Name)
			continue
		}
		node.Values = append(node.Values, v)
	}
	return nil
}

func (l *loader) readValue(off uint32) (*ast.Value, error) {
	b, err := l.cell(off)
	if err != nil {
		return nil, err
	}
	vk, err := format.DecodeVK(b)
	if err != nil {
		return nil, err
	}
	name, err := format.DecodeName(vk.NameRaw, vk.NameIsCompressed())
	if err != nil {
		return nil, err
	}
	data, err := l.readData(vk)
	if err != nil {
		return nil, fmt.Errorf("%q data: %w", name, err)
	}
	return &ast.Value{Name: name, Type: types.RegType(vk.Type), Data: data}, nil
}

func (l *loader) readData(vk format.VKRecord) ([]byte, error) {
	size := vk.Size()
	switch {
	case vk.DataInline():
		if size > format.VKInlineMax {
			return nil, fmt.Errorf("%w: inline data of %d bytes", errCorrupt, size)
		}
		return vk.InlineData(), nil
	case size == 0:
		return nil, nil
	}
	b, err := l.cell(vk.DataOffset)
	if err != nil {
		return nil, err
	}
	if l.minor >= format.DBMinMinorVersion && size > format.DBChunkSize && format.IsDBRecord(b) {
		return l.readBigData(b, size)
	}
	if len(b) < size {
		return nil, fmt.Errorf("data cell holds %d of %d bytes: %w", len(b), size, format.ErrTruncated)
	}
	return bytes.Clone(b[:size]), nil
}

func (l *loader) readBigData(b []byte, size int) ([]byte, error) {
	db, err := format.DecodeDB(b)
	if err != nil {
		return nil, err
	}
	list, err := l.cell(db.BlocklistOffset)
	if err != nil {
		return nil, fmt.Errorf("db segment list: %w", err)
	}
	segs, err := format.DecodeValueList(list, uint32(db.NumBlocks))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, size)
	for i, segOff := range segs {
		seg, err := l.cell(segOff)
		if err != nil {
			return nil, fmt.Errorf("db segment %d: %w", i, err)
		}
		n := min(format.DBChunkSize, size-len(out), len(seg))
		out = append(out, seg[:n]...)
		if len(out) == size {
			break
		}
	}
	if len(out) != size {
		return nil, fmt.Errorf("big data holds %d of %d bytes: %w", len(out), size, format.ErrTruncated)
	}
	return out, nil
}

// subkeyOffsets flattens a subkey list into NK offsets. RI lists may only
// point at leaf lists.
func (l *loader) subkeyOffsets(off uint32, depth int) ([]uint32, error) {
	b, err := l.cell(off)
	if err != nil {
		return nil, err
	}
	kind, offsets, err := format.DecodeSubkeyList(b)
	if err != nil {
		return nil, err
	}
	if kind != format.ListRI {
		return offsets, nil
	}
	if depth > 0 {
		return nil, fmt.Errorf("%w: nested ri list at %#x", errCorrupt, off)
	}
	var out []uint32
	for _, leaf := range offsets {
		sub, err := l.subkeyOffsets(leaf, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}
