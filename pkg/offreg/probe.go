package offreg

import (
	"unicode/utf16"

	"github.com/joshuapare/offreg/pkg/types"
)

// probeFetch runs the two-call sizing convention. The first call (probe
// true) passes nil buffers and records the sizes the provider reports,
// either with StatusMoreData or with success. The second call fills buffers
// allocated from those sizes. A second StatusMoreData means the object
// changed between the calls and is not retried.
func probeFetch(call func(probe bool) error) error {
	if err := call(true); err != nil && !types.IsMoreData(err) {
		return err
	}
	err := call(false)
	if types.IsMoreData(err) {
		return &types.Error{
			Kind:   types.ErrKindNative,
			Status: types.StatusMoreData,
			Msg:    "size changed between probe and fetch",
			Err:    err,
		}
	}
	return err
}

// utf16String decodes the first n units of buf.
func utf16String(buf []uint16, n uint32) string {
	if int(n) > len(buf) {
		n = uint32(len(buf))
	}
	return string(utf16.Decode(buf[:n]))
}
