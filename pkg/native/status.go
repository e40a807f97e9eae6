package native

import "github.com/joshuapare/offreg/pkg/types"

// DefaultDLL is the library name Load resolves when no path is given.
const DefaultDLL = "offreg.dll"

// statusError turns a library return code into the provider error
// convention: nil for success, a types.Status otherwise.
func statusError(code uintptr) error {
	if st := types.Status(uint32(code)); st != types.StatusSuccess {
		return st
	}
	return nil
}

// unsupported is what Load reports when the library cannot be used.
func unsupported(path string, err error) error {
	return &types.Error{
		Kind: types.ErrKindUnsupported,
		Op:   "load offline registry library",
		Path: path,
		Err:  err,
	}
}
