package offreg

import (
	"bytes"
	"errors"

	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/types"
)

// Value is one enumerated value. Raw always holds the stored bytes; Data is
// their decoded form, or Binary(Raw) when OK is false.
type Value struct {
	Name string
	Type types.RegType
	Raw  []byte
	Data codec.Value
	OK   bool
}

// getValueRaw fetches a value's type and bytes.
func (k *Key) getValueRaw(op, name string) (types.RegType, []byte, error) {
	n, err := k.node(op)
	if err != nil {
		return 0, nil, err
	}
	var (
		t    types.RegType
		size uint32
		buf  []byte
	)
	err = probeFetch(func(probe bool) error {
		if !probe {
			buf = make([]byte, size)
		}
		var err error
		t, size, err = k.provider().GetValue(n.handle, "", name, buf)
		return err
	})
	if err != nil {
		return 0, nil, types.FromStatus(op, valuePath(n.path, name), err)
	}
	return t, buf[:size], nil
}

func valuePath(keyPath, name string) string {
	return keyPath + ":" + name
}

// GetValueKind returns the type tag of a value.
func (k *Key) GetValueKind(name string) (types.RegType, error) {
	n, err := k.node("get value")
	if err != nil {
		return 0, err
	}
	t, _, err := k.provider().GetValue(n.handle, "", name, nil)
	if err != nil {
		return 0, types.FromStatus("get value", valuePath(n.path, name), err)
	}
	return t, nil
}

// ValueExist reports whether a value called name exists.
func (k *Key) ValueExist(name string) (bool, error) {
	_, err := k.GetValueKind(name)
	if types.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// GetValueBytes returns a value's raw bytes.
func (k *Key) GetValueBytes(name string) ([]byte, error) {
	_, raw, err := k.getValueRaw("get value", name)
	return raw, err
}

// GetValue returns the decoded value. Bytes that do not fit their type come
// back as Binary; REG_NONE comes back as None.
func (k *Key) GetValue(name string) (codec.Value, error) {
	t, raw, err := k.getValueRaw("get value", name)
	if err != nil {
		return codec.Value{}, err
	}
	v, err := codec.Decode(t, raw)
	if errors.Is(err, codec.ErrNoData) {
		return codec.None(), nil
	}
	if err != nil {
		k.decodeWarning(name, err)
	}
	return v, nil
}

// TryParseValue decodes a value and reports whether decoding succeeded.
// When it did not, the returned value is Binary holding the raw bytes.
func (k *Key) TryParseValue(name string) (codec.Value, bool, error) {
	t, raw, err := k.getValueRaw("get value", name)
	if err != nil {
		return codec.Value{}, false, err
	}
	v, err := codec.Decode(t, raw)
	if err != nil {
		return codec.Binary(raw), false, nil
	}
	return v, true, nil
}

func (k *Key) decodeWarning(name string, err error) {
	var de *codec.DecodeError
	if !errors.As(err, &de) {
		return
	}
	if errors.Is(err, types.ErrUnknownType) {
		k.h.s.log.Warn("unknown value type", "key", k.FullName(), "value", name, "type", uint32(de.Type))
		return
	}
	k.h.s.log.Debug("undecodable value", "key", k.FullName(), "value", name, "type", de.Type, "reason", de.Reason)
}

// -----------------------------------------------------------------------------
// Writers
// -----------------------------------------------------------------------------

// SetRaw stores raw under name with tag t and refreshes the key's metadata.
func (k *Key) SetRaw(name string, t types.RegType, raw []byte) error {
	n, err := k.node("set value")
	if err != nil {
		return err
	}
	if err := k.provider().SetValue(n.handle, name, t, raw); err != nil {
		return types.FromStatus("set value", valuePath(n.path, name), err)
	}
	return k.h.refresh(n)
}

// SetTypedValue encodes v as t and stores it.
func (k *Key) SetTypedValue(name string, t types.RegType, v codec.Value) error {
	raw, err := codec.Encode(t, v)
	if err != nil {
		return withPath(err, "set value", k.FullName())
	}
	return k.SetRaw(name, t, raw)
}

// SetValue stores v under the tag that matches its kind: REG_SZ, REG_MULTI_SZ,
// REG_DWORD, REG_QWORD, REG_BINARY or REG_NONE.
func (k *Key) SetValue(name string, v codec.Value) error {
	return k.SetTypedValue(name, defaultTag(v.Kind()), v)
}

func defaultTag(kind codec.Kind) types.RegType {
	switch kind {
	case codec.KindString:
		return types.REG_SZ
	case codec.KindMultiString:
		return types.REG_MULTI_SZ
	case codec.KindDWord:
		return types.REG_DWORD
	case codec.KindQWord:
		return types.REG_QWORD
	case codec.KindBinary:
		return types.REG_BINARY
	}
	return types.REG_NONE
}

func (k *Key) SetString(name, s string) error {
	return k.SetTypedValue(name, types.REG_SZ, codec.String(s))
}

func (k *Key) SetExpandString(name, s string) error {
	return k.SetTypedValue(name, types.REG_EXPAND_SZ, codec.String(s))
}

// SetMultiString rejects empty elements with ErrInvalidArgument.
func (k *Key) SetMultiString(name string, ss []string) error {
	return k.SetTypedValue(name, types.REG_MULTI_SZ, codec.MultiString(ss))
}

func (k *Key) SetBinary(name string, b []byte) error {
	return k.SetRaw(name, types.REG_BINARY, b)
}

func (k *Key) SetDWord(name string, v uint32) error {
	return k.SetRaw(name, types.REG_DWORD, codec.EncodeDWord(v))
}

func (k *Key) SetDWordBigEndian(name string, v uint32) error {
	return k.SetRaw(name, types.REG_DWORD_BE, codec.EncodeDWordBE(v))
}

func (k *Key) SetQWord(name string, v uint64) error {
	return k.SetRaw(name, types.REG_QWORD, codec.EncodeQWord(v))
}

// SetNone stores an empty REG_NONE value.
func (k *Key) SetNone(name string) error {
	return k.SetRaw(name, types.REG_NONE, nil)
}

// DeleteValue removes a value and refreshes the key's metadata.
func (k *Key) DeleteValue(name string) error {
	n, err := k.node("delete value")
	if err != nil {
		return err
	}
	if err := k.provider().DeleteValue(n.handle, name); err != nil {
		return types.FromStatus("delete value", valuePath(n.path, name), err)
	}
	return k.h.refresh(n)
}

func withPath(err error, op, path string) error {
	var te *types.Error
	if errors.As(err, &te) {
		cp := *te
		cp.Op, cp.Path = op, path
		return &cp
	}
	return err
}

// -----------------------------------------------------------------------------
// Enumeration
// -----------------------------------------------------------------------------

// EnumerateValues reads every value in provider order. Values that do not
// decode, including unknown type tags, come back with OK false and Binary
// data; enumeration carries on past them.
func (k *Key) EnumerateValues() ([]Value, error) {
	n, err := k.node("enumerate values")
	if err != nil {
		return nil, err
	}
	if err := k.h.refresh(n); err != nil {
		return nil, err
	}
	name := make([]uint16, n.info.MaxValueNameLen+1)
	data := make([]byte, n.info.MaxValueLen)

	out := make([]Value, 0, n.info.Values)
	for i := uint32(0); i < n.info.Values; i++ {
		res, nameBuf, dataBuf, err := k.enumValue(n, i, name, data, true)
		if isNoMoreItems(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		v := Value{
			Name: utf16String(nameBuf, res.NameLen),
			Type: res.Type,
			Raw:  bytes.Clone(dataBuf[:res.DataLen]),
		}
		v.Data, err = codec.Decode(v.Type, v.Raw)
		v.OK = err == nil
		if err != nil && !errors.Is(err, codec.ErrNoData) {
			k.decodeWarning(v.Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// GetValueNames lists value names in provider order.
func (k *Key) GetValueNames() ([]string, error) {
	n, err := k.node("enumerate values")
	if err != nil {
		return nil, err
	}
	if err := k.h.refresh(n); err != nil {
		return nil, err
	}
	name := make([]uint16, n.info.MaxValueNameLen+1)
	out := make([]string, 0, n.info.Values)
	for i := uint32(0); i < n.info.Values; i++ {
		res, nameBuf, _, err := k.enumValue(n, i, name, nil, false)
		if isNoMoreItems(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, utf16String(nameBuf, res.NameLen))
	}
	return out, nil
}

// enumValue reads entry i into the shared buffers, probing for fresh ones
// when the entry does not fit.
func (k *Key) enumValue(n *keyNode, i uint32, name []uint16, data []byte, withData bool) (types.EnumValueResult, []uint16, []byte, error) {
	res, err := k.provider().EnumValue(n.handle, i, name, data)
	if types.IsMoreData(err) {
		err = probeFetch(func(probe bool) error {
			name, data = nil, nil
			if !probe {
				name = make([]uint16, res.NameLen+1)
				if withData {
					data = make([]byte, res.DataLen)
				}
			}
			var err error
			res, err = k.provider().EnumValue(n.handle, i, name, data)
			return err
		})
	}
	if err != nil {
		return res, nil, nil, types.FromStatus("enumerate values", n.path, err)
	}
	return res, name, data, nil
}
