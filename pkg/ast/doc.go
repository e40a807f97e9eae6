// Package ast is the in-memory representation of a registry hive: a tree of
// key nodes carrying class names, timestamps, security descriptors and
// values.
//
// # Core Types
//
// Tree owns the root Node. Children of a node are kept sorted by their
// upper-cased name, the order the on-disk subkey lists use, and are looked up
// case-insensitively. Values keep insertion order, like the value list cell
// of a key node.
//
// Nodes removed from the tree are flagged Deleted so that any handle still
// pointing at them can tell the key is gone.
//
// # Validation
//
// Limits bounds names and data to what the on-disk format and Windows accept;
// DefaultLimits matches Windows.
//
// # Usage Example
//
//	tree := ast.NewTree(time.Now())
//	sw := tree.Root.AddChild("Software", "", time.Now())
//	sw.SetValue("Path", types.REG_SZ, data, time.Now())
//	node := tree.FindNode(`Software`)
//
// The hive package loads trees from REGF files and serializes them back.
package ast
