package hive

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/joshuapare/offreg/internal/format"
	"github.com/joshuapare/offreg/pkg/ast"
)

// maxLeafEntries is the largest leaf list written before switching to RI.
const maxLeafEntries = 512

// allocator lays cells out back to back in freshly appended bins. Cell
// slices are only valid until the next alloc; callers fill a cell before
// allocating again or come back to it through cell(rel).
type allocator struct {
	buf    []byte
	binEnd int
	pos    int
	stamp  uint64
}

// newAllocator reserves room for sizeHint bytes of cells up front.
func newAllocator(stamp uint64, sizeHint int) *allocator {
	return &allocator{
		buf:    make([]byte, format.HeaderSize, format.HeaderSize+format.AlignHBIN(sizeHint)),
		binEnd: format.HeaderSize,
		pos:    format.HeaderSize,
		stamp:  stamp,
	}
}

// alloc reserves a cell for payload bytes and returns its relative offset.
func (a *allocator) alloc(payload int) uint32 {
	size := format.CellSize(payload)
	if a.pos+size > a.binEnd {
		a.newBin(size)
	}
	rel := uint32(a.pos - format.HeaderSize)
	format.EncodeCellHeader(a.buf[a.pos:], size)
	a.pos += size
	return rel
}

// cell returns the payload of an allocated cell.
func (a *allocator) cell(rel uint32) []byte {
	abs := format.HeaderSize + int(rel)
	size := int(-format.ReadI32(a.buf, abs))
	return a.buf[abs+format.CellHeaderSize : abs+size]
}

func (a *allocator) closeBin() {
	if rest := a.binEnd - a.pos; rest > 0 {
		format.EncodeFreeCell(a.buf[a.pos:], rest)
	}
	a.pos = a.binEnd
}

func (a *allocator) newBin(need int) {
	a.closeBin()
	size := format.AlignHBIN(max(format.HBINAlignment, need+format.HBINHeaderSize))
	start := a.binEnd
	a.buf = append(a.buf, make([]byte, size)...)
	format.EncodeHBIN(a.buf[start:], uint32(start-format.HeaderSize), uint32(size), a.stamp)
	a.binEnd = start + size
	a.pos = start + format.HBINHeaderSize
}

// finish closes the last bin and returns the image, header area included.
func (a *allocator) finish() []byte {
	a.closeBin()
	return a.buf
}

type saver struct {
	a     *allocator
	minor uint32
	sks   map[string]uint32
	order []uint32
	refs  map[uint32]uint32
}

// save serializes tree as a format 1.minor hive. fileName only feeds the
// informational name field of the base block.
func save(tree *ast.Tree, minor uint32, fileName string, now time.Time) ([]byte, error) {
	stamp := format.TimeToFiletime(now)
	s := &saver{
		a:     newAllocator(stamp, tree.Root.EstimateSize()),
		minor: minor,
		sks:   make(map[string]uint32),
		refs:  make(map[uint32]uint32),
	}
	rootOff, err := s.writeKey(tree.Root, format.InvalidOffset, true)
	if err != nil {
		return nil, err
	}
	s.linkSecurity()
	buf := s.a.finish()

	name, err := format.EncodeUTF16(filepath.Base(fileName))
	if err != nil {
		return nil, err
	}
	hdr := format.Header{
		PrimarySequence:   1,
		SecondarySequence: 1,
		LastWriteRaw:      stamp,
		MajorVersion:      1,
		MinorVersion:      minor,
		Format:            1,
		RootCellOffset:    rootOff,
		HiveBinsDataSize:  uint32(len(buf) - format.HeaderSize),
		ClusteringFactor:  1,
		FileName:          name,
	}
	if err := format.EncodeHeader(buf[:format.HeaderSize], hdr); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *saver) writeKey(n *ast.Node, parentOff uint32, root bool) (uint32, error) {
	nameRaw, compressed, err := format.EncodeName(n.Name)
	if err != nil {
		return 0, fmt.Errorf("key %q: %w", n.Path(), err)
	}
	nk := format.NKRecord{
		LastWriteRaw:     format.TimeToFiletime(n.LastWrite),
		ParentOffset:     parentOff,
		SubkeyListOffset: format.InvalidOffset,
		ValueListOffset:  format.InvalidOffset,
		ClassNameOffset:  format.InvalidOffset,
		NameRaw:          nameRaw,
	}
	if compressed {
		nk.Flags |= format.NKFlagCompressedName
	}
	if root {
		nk.Flags |= format.NKFlagHiveEntry | format.NKFlagNoDelete
	}
	off := s.a.alloc(format.NKSize(nk))

	if n.Class != "" {
		raw, err := format.EncodeUTF16(n.Class)
		if err != nil {
			return 0, fmt.Errorf("key %q class: %w", n.Path(), err)
		}
		nk.ClassNameOffset = s.a.alloc(len(raw))
		nk.ClassLength = uint16(len(raw))
		copy(s.a.cell(nk.ClassNameOffset), raw)
	}

	nk.SecurityOffset = s.security(effectiveSecurity(n))

	if len(n.Values) > 0 {
		offs := make([]uint32, len(n.Values))
		for i, v := range n.Values {
			if offs[i], err = s.writeValue(v); err != nil {
				return 0, fmt.Errorf("key %q: %w", n.Path(), err)
			}
		}
		nk.ValueCount = uint32(len(offs))
		nk.ValueListOffset = s.a.alloc(len(offs) * format.OffsetFieldSize)
		if err := format.EncodeOffsets(s.a.cell(nk.ValueListOffset), offs); err != nil {
			return 0, err
		}
	}

	var (
		childOffs []uint32
		hashes    []uint32
	)
	for _, c := range n.Children {
		if c.Volatile {
			continue
		}
		co, err := s.writeKey(c, off, false)
		if err != nil {
			return 0, err
		}
		childOffs = append(childOffs, co)
		hashes = append(hashes, s.hash(c.Name))
	}
	if len(childOffs) > 0 {
		nk.SubkeyCount = uint32(len(childOffs))
		if nk.SubkeyListOffset, err = s.writeSubkeyList(childOffs, hashes); err != nil {
			return 0, err
		}
	}

	st := n.Stats()
	nk.MaxNameLength = uint32(2 * st.MaxSubkeyNameLen)
	nk.MaxClassLength = uint32(2 * st.MaxClassLen)
	nk.MaxValueNameLength = uint32(2 * st.MaxValueNameLen)
	nk.MaxValueDataLength = uint32(st.MaxValueDataLen)
	if err := format.EncodeNK(s.a.cell(off), nk); err != nil {
		return 0, fmt.Errorf("key %q: %w", n.Path(), err)
	}
	return off, nil
}

func (s *saver) hash(name string) uint32 {
	if s.minor < 5 {
		return format.LFHint(name)
	}
	return format.NameHash(name)
}

func (s *saver) encodeLeaf(b []byte, offs, hashes []uint32) error {
	if s.minor < 5 {
		return format.EncodeLF(b, offs, hashes)
	}
	return format.EncodeLH(b, offs, hashes)
}

func (s *saver) writeSubkeyList(offs, hashes []uint32) (uint32, error) {
	if len(offs) <= maxLeafEntries {
		rel := s.a.alloc(format.LHSize(len(offs)))
		return rel, s.encodeLeaf(s.a.cell(rel), offs, hashes)
	}
	var leaves []uint32
	for i := 0; i < len(offs); i += maxLeafEntries {
		j := min(i+maxLeafEntries, len(offs))
		rel := s.a.alloc(format.LHSize(j - i))
		if err := s.encodeLeaf(s.a.cell(rel), offs[i:j], hashes[i:j]); err != nil {
			return 0, err
		}
		leaves = append(leaves, rel)
	}
	rel := s.a.alloc(format.RISize(len(leaves)))
	return rel, format.EncodeRI(s.a.cell(rel), leaves)
}

func (s *saver) writeValue(v *ast.Value) (uint32, error) {
	nameRaw, compressed, err := format.EncodeName(v.Name)
	if err != nil {
		return 0, fmt.Errorf("value %q: %w", v.Name, err)
	}
	vk := format.VKRecord{Type: uint32(v.Type), NameRaw: nameRaw}
	if compressed {
		vk.Flags = format.VKFlagCompressedName
	}

	n := len(v.Data)
	switch {
	case n > format.MaxValueDataLen:
		return 0, fmt.Errorf("value %q: %d bytes: %w", v.Name, n, format.ErrSanityLimit)
	case n <= format.VKInlineMax:
		vk.DataLength, vk.DataOffset = format.PackInline(v.Data)
	case n > format.DBChunkSize && s.minor >= format.DBMinMinorVersion:
		vk.DataLength = uint32(n)
		if vk.DataOffset, err = s.writeBigData(v.Data); err != nil {
			return 0, fmt.Errorf("value %q: %w", v.Name, err)
		}
	default:
		vk.DataLength = uint32(n)
		vk.DataOffset = s.a.alloc(n)
		copy(s.a.cell(vk.DataOffset), v.Data)
	}

	rel := s.a.alloc(format.VKSize(vk))
	return rel, format.EncodeVK(s.a.cell(rel), vk)
}

func (s *saver) writeBigData(data []byte) (uint32, error) {
	segs := make([]uint32, 0, format.DBBlockCount(len(data)))
	for i := 0; i < len(data); i += format.DBChunkSize {
		chunk := data[i:min(i+format.DBChunkSize, len(data))]
		rel := s.a.alloc(len(chunk))
		copy(s.a.cell(rel), chunk)
		segs = append(segs, rel)
	}
	list := s.a.alloc(len(segs) * format.OffsetFieldSize)
	if err := format.EncodeOffsets(s.a.cell(list), segs); err != nil {
		return 0, err
	}
	rel := s.a.alloc(format.DBHeaderSize)
	return rel, format.EncodeDB(s.a.cell(rel), format.DBRecord{
		NumBlocks:       uint16(len(segs)),
		BlocklistOffset: list,
	})
}

// security returns the SK cell for desc, sharing identical descriptors.
func (s *saver) security(desc []byte) uint32 {
	if rel, ok := s.sks[string(desc)]; ok {
		s.refs[rel]++
		return rel
	}
	sk := format.SKRecord{Descriptor: desc}
	rel := s.a.alloc(format.SKSize(sk))
	_ = format.EncodeSK(s.a.cell(rel), sk)
	s.sks[string(desc)] = rel
	s.refs[rel] = 1
	s.order = append(s.order, rel)
	return rel
}

// linkSecurity closes the SK ring and stamps reference counts.
func (s *saver) linkSecurity() {
	n := len(s.order)
	for i, rel := range s.order {
		b := s.a.cell(rel)
		format.PutU32(b, format.SKFlinkOffset, s.order[(i+1)%n])
		format.PutU32(b, format.SKBlinkOffset, s.order[(i+n-1)%n])
		format.PutU32(b, format.SKReferenceCountOffset, s.refs[rel])
	}
}
