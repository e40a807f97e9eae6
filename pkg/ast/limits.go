package ast

import (
	"fmt"

	"github.com/joshuapare/offreg/internal/format"
)

const (
	// WindowsMaxKeyNameLen is the key name limit in characters.
	WindowsMaxKeyNameLen = 255
	// WindowsMaxValueNameLen is the value name limit in characters.
	WindowsMaxValueNameLen = 16383
	// WindowsMaxClassLen is the class name limit in characters.
	WindowsMaxClassLen = 255
	// WindowsMaxValueSize is the largest value the big data format can carry.
	WindowsMaxValueSize = 0xFFFF * format.DBChunkSize
	// WindowsMaxTreeDepth is the kernel's nesting limit.
	WindowsMaxTreeDepth = 512
)

// Limits bounds what a tree may hold.
type Limits struct {
	MaxKeyNameLen   int // characters (UTF-16 units)
	MaxValueNameLen int // characters (UTF-16 units)
	MaxClassLen     int // characters (UTF-16 units)
	MaxValueSize    int // bytes
	MaxTreeDepth    int
}

// DefaultLimits returns the Windows limits.
func DefaultLimits() Limits {
	return Limits{
		MaxKeyNameLen:   WindowsMaxKeyNameLen,
		MaxValueNameLen: WindowsMaxValueNameLen,
		MaxClassLen:     WindowsMaxClassLen,
		MaxValueSize:    WindowsMaxValueSize,
		MaxTreeDepth:    WindowsMaxTreeDepth,
	}
}

// ValidationError represents a limit validation failure.
type ValidationError struct {
	Limit    string // Name of the limit that was exceeded
	Current  int64
	Maximum  int64
	NodePath string
}

func (e *ValidationError) Error() string {
	if e.NodePath != "" {
		return fmt.Sprintf("registry limit exceeded at '%s': %s is %d (max %d)",
			e.NodePath, e.Limit, e.Current, e.Maximum)
	}
	return fmt.Sprintf("registry limit exceeded: %s is %d (max %d)",
		e.Limit, e.Current, e.Maximum)
}

func check(limit string, current, maximum int) error {
	if maximum > 0 && current > maximum {
		return &ValidationError{Limit: limit, Current: int64(current), Maximum: int64(maximum)}
	}
	return nil
}

// ValidateKey checks a new key's name, class and depth.
func (l Limits) ValidateKey(name, class string, depth int) error {
	if name == "" {
		return &ValidationError{Limit: "MinKeyNameLen", Current: 0, Maximum: 1}
	}
	if err := check("MaxKeyNameLen", format.UTF16Len(name), l.MaxKeyNameLen); err != nil {
		return err
	}
	if err := check("MaxClassLen", format.UTF16Len(class), l.MaxClassLen); err != nil {
		return err
	}
	return check("MaxTreeDepth", depth, l.MaxTreeDepth)
}

// ValidateValue checks a value's name and data size.
func (l Limits) ValidateValue(name string, size int) error {
	if err := check("MaxValueNameLen", format.UTF16Len(name), l.MaxValueNameLen); err != nil {
		return err
	}
	return check("MaxValueSize", size, l.MaxValueSize)
}

// Depth returns the number of edges between n and the root.
func (n *Node) Depth() int {
	d := 0
	for cur := n; cur.Parent != nil; cur = cur.Parent {
		d++
	}
	return d
}

// EstimateSize approximates the serialized size of the subtree under n,
// including cell headers and alignment. Shared security cells are not
// counted.
func (n *Node) EstimateSize() int {
	var size int
	n.Walk(func(d *Node) bool {
		size += format.CellSize(format.NKFixedHeaderSize + 2*len(d.Name))
		if d.Class != "" {
			size += format.CellSize(2 * len(d.Class))
		}
		if len(d.Children) > 0 {
			size += format.CellSize(format.LHSize(len(d.Children)))
		}
		if len(d.Values) > 0 {
			size += format.CellSize(len(d.Values) * format.OffsetFieldSize)
		}
		for _, v := range d.Values {
			size += format.CellSize(format.VKFixedHeaderSize + 2*len(v.Name))
			if len(v.Data) > format.VKInlineMax {
				size += format.CellSize(len(v.Data))
			}
		}
		return true
	})
	return size
}
