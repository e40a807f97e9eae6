package ast

import (
	"bytes"
	"slices"
	"strings"
	"time"

	"github.com/joshuapare/offreg/internal/format"
	"github.com/joshuapare/offreg/pkg/types"
)

// RegistryPathSeparator separates components in registry paths.
const RegistryPathSeparator = "\\"

// Tree is a complete hive: the root key and everything under it.
type Tree struct {
	Root *Node
}

// Node is a registry key.
type Node struct {
	Name      string
	Class     string
	LastWrite time.Time
	Volatile  bool
	// Security is the self-relative security descriptor. Nodes created under
	// a parent inherit the parent's descriptor.
	Security []byte

	Parent   *Node
	Children []*Node // sorted by upper-cased name
	Values   []*Value

	// Deleted is set once the node has been detached from its tree.
	Deleted bool
}

// Value is a named, typed datum on a key.
type Value struct {
	Name string // "" for the default value
	Type types.RegType
	Data []byte
}

// NewTree creates a tree holding only an unnamed root key.
func NewTree(now time.Time) *Tree {
	return &Tree{Root: &Node{LastWrite: now}}
}

// FindNode resolves path from the root. Returns nil if any segment is missing.
func (t *Tree) FindNode(path string) *Node {
	return t.Root.Find(path)
}

// SplitPath splits a registry path on both separators, dropping empty
// segments.
func SplitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '\\' || r == '/' })
}

// sortKey is the ordering key for children.
func sortKey(name string) string {
	return strings.ToUpper(name)
}

func (n *Node) search(name string) (int, bool) {
	key := sortKey(name)
	return slices.BinarySearchFunc(n.Children, key, func(c *Node, k string) int {
		return strings.Compare(sortKey(c.Name), k)
	})
}

// Child returns the direct child called name (case-insensitive), or nil.
func (n *Node) Child(name string) *Node {
	if i, ok := n.search(name); ok {
		return n.Children[i]
	}
	// Upper-casing is not a full case fold; fall back to a scan.
	for _, c := range n.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// Find resolves a relative path below n.
func (n *Node) Find(path string) *Node {
	cur := n
	for _, seg := range SplitPath(path) {
		if cur = cur.Child(seg); cur == nil {
			return nil
		}
	}
	return cur
}

// AddChild inserts a new child in sorted position and touches n. The caller
// checks for an existing child first.
func (n *Node) AddChild(name, class string, now time.Time) *Node {
	child := &Node{
		Name:      name,
		Class:     class,
		LastWrite: now,
		Parent:    n,
		Security:  bytes.Clone(n.Security),
	}
	i, _ := n.search(name)
	n.Children = slices.Insert(n.Children, i, child)
	n.LastWrite = now
	return child
}

// Attach links an existing node under n in sorted position without touching
// either last-write time. Reports false, attaching nothing, when n already
// has a child of that name.
func (n *Node) Attach(child *Node) bool {
	if n.Child(child.Name) != nil {
		return false
	}
	i, _ := n.search(child.Name)
	n.Children = slices.Insert(n.Children, i, child)
	child.Parent = n
	return true
}

// RemoveChild detaches child from n, flags its whole subtree deleted and
// touches n. Reports whether child was found.
func (n *Node) RemoveChild(child *Node, now time.Time) bool {
	i := slices.Index(n.Children, child)
	if i < 0 {
		return false
	}
	n.Children = slices.Delete(n.Children, i, i+1)
	n.LastWrite = now
	child.Walk(func(d *Node) bool {
		d.Deleted = true
		return true
	})
	child.Parent = nil
	return true
}

// Value returns the value called name (case-insensitive), or nil.
func (n *Node) Value(name string) *Value {
	for _, v := range n.Values {
		if strings.EqualFold(v.Name, name) {
			return v
		}
	}
	return nil
}

// SetValue creates or replaces a value and touches n. Replacing keeps the
// value's position and its original name spelling.
func (n *Node) SetValue(name string, t types.RegType, data []byte, now time.Time) {
	n.LastWrite = now
	if v := n.Value(name); v != nil {
		v.Type = t
		v.Data = bytes.Clone(data)
		return
	}
	n.Values = append(n.Values, &Value{Name: name, Type: t, Data: bytes.Clone(data)})
}

// RemoveValue deletes a value by name and touches n.
func (n *Node) RemoveValue(name string, now time.Time) bool {
	for i, v := range n.Values {
		if strings.EqualFold(v.Name, name) {
			n.Values = slices.Delete(n.Values, i, i+1)
			n.LastWrite = now
			return true
		}
	}
	return false
}

// Path returns the node's path from the root, without a leading separator.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil && cur.Parent != nil; cur = cur.Parent {
		parts = append(parts, cur.Name)
	}
	slices.Reverse(parts)
	return strings.Join(parts, RegistryPathSeparator)
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Stats are the size bounds reported for a key. Lengths are UTF-16 code
// units; MaxValueDataLen is bytes.
type Stats struct {
	MaxSubkeyNameLen int
	MaxClassLen      int
	MaxValueNameLen  int
	MaxValueDataLen  int
}

// Stats computes the bounds over n's direct children and values.
func (n *Node) Stats() Stats {
	var s Stats
	for _, c := range n.Children {
		s.MaxSubkeyNameLen = max(s.MaxSubkeyNameLen, format.UTF16Len(c.Name))
		s.MaxClassLen = max(s.MaxClassLen, format.UTF16Len(c.Class))
	}
	for _, v := range n.Values {
		s.MaxValueNameLen = max(s.MaxValueNameLen, format.UTF16Len(v.Name))
		s.MaxValueDataLen = max(s.MaxValueDataLen, len(v.Data))
	}
	return s
}
