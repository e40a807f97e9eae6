package offreg

import "github.com/joshuapare/offreg/pkg/types"

// GetSecurity returns the parts of the key's self-relative security
// descriptor selected by info.
func (k *Key) GetSecurity(info types.SecurityInformation) ([]byte, error) {
	n, err := k.node("get key security")
	if err != nil {
		return nil, err
	}
	var (
		size uint32
		buf  []byte
	)
	err = probeFetch(func(probe bool) error {
		if !probe {
			buf = make([]byte, size)
		}
		var err error
		size, err = k.provider().GetKeySecurity(n.handle, info, buf)
		return err
	})
	if err != nil {
		return nil, types.FromStatus("get key security", n.path, err)
	}
	return buf[:size], nil
}

// SetSecurity replaces the parts of the key's descriptor selected by info.
func (k *Key) SetSecurity(info types.SecurityInformation, sd []byte) error {
	n, err := k.node("set key security")
	if err != nil {
		return err
	}
	if err := k.provider().SetKeySecurity(n.handle, info, sd); err != nil {
		return types.FromStatus("set key security", n.path, err)
	}
	return k.h.refresh(n)
}
