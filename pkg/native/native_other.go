//go:build !windows

package native

import (
	"errors"

	"github.com/joshuapare/offreg/pkg/types"
)

// Load fails: the offline registry library only exists on Windows.
func Load(dllPath string) (types.Provider, error) {
	if dllPath == "" {
		dllPath = DefaultDLL
	}
	return nil, unsupported(dllPath, errors.New("not available on this platform"))
}
