// Package hive is a pure-Go implementation of the offline registry provider
// (types.Provider). It keeps every open hive as an in-memory ast.Tree, loads
// trees from REGF files and writes them back out.
//
// # Overview
//
// A hive file consists of:
//
//	[REGF Header - 4KB] [HBIN 0] [HBIN 1] ... [HBIN N]
//
// Each HBIN holds cells for key nodes (nk), values (vk), subkey lists
// (lf/lh/li/ri), shared security descriptors (sk) and big data (db). Cells are
// addressed by offsets relative to the first HBIN (0x1000).
//
// Loading walks the cell graph from the root key and builds the tree;
// nothing stays mapped once OpenHive returns. Saving lays the tree out from
// scratch with a bump allocator: no free cells except bin tails, one LH list
// per key (RI above 512 subkeys), shared SK cells with reference counts, and
// big data segments for large values on formats 1.4 and later.
//
// # Handles
//
// Handles are small integers from a table guarded by a mutex, so separate
// hives can be used from separate goroutines. A hive handle is also the
// handle of its root key. Handles to keys that have since been deleted fail
// with types.StatusKeyDeleted.
//
// # Usage
//
//	p := hive.New(nil)
//	h, err := p.OpenHive("/path/to/SOFTWARE")
//	if err != nil {
//	    return err
//	}
//	defer p.CloseHive(h)
//
// Most callers use it through package offreg:
//
//	s := offreg.NewSession(hive.New(nil), nil)
package hive
