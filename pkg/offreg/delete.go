package offreg

import (
	"github.com/joshuapare/offreg/pkg/types"
)

// DeleteSubKey removes the subkey called name and everything below it, then
// refreshes k's metadata once.
func (k *Key) DeleteSubKey(name string) error {
	n, err := k.node("delete key")
	if err != nil {
		return err
	}
	path := childPath(n.path, name)
	if name == "" {
		return &types.Error{Kind: types.ErrKindInvalidArgument, Op: "delete key", Path: path,
			Msg: "empty subkey name"}
	}
	h, err := k.provider().OpenKey(n.handle, name)
	if err != nil {
		return types.FromStatus("delete key", path, err)
	}
	err = k.h.deleteChildren(h, path)
	if cerr := k.provider().CloseKey(h); err == nil && cerr != nil {
		err = nativeError("delete key", path, cerr)
	}
	if err != nil {
		return err
	}
	if err := k.provider().DeleteKey(n.handle, name); err != nil && !types.IsNotFound(err) {
		return types.FromStatus("delete key", path, err)
	}
	return k.h.refresh(n)
}

// Delete removes k and its subtree, refreshes the parent if it is still open
// and closes k. The root cannot be deleted.
func (k *Key) Delete() error {
	n, err := k.node("delete key")
	if err != nil {
		return err
	}
	if n.root || n.path == "" {
		return &types.Error{Kind: types.ErrKindInvalidArgument, Op: "delete key",
			Msg: "the root key cannot be deleted"}
	}
	if err := k.h.deleteChildren(n.handle, n.path); err != nil {
		return err
	}
	if err := k.provider().DeleteKey(n.handle, ""); err != nil {
		return types.FromStatus("delete key", n.path, err)
	}
	perr := k.h.refreshParent(n)
	if err := k.Close(); err != nil {
		return err
	}
	return perr
}

// deleteChildren removes every subkey of h, depth first. The child list is
// read once up front; a child that has vanished by the time it is opened
// counts as already deleted.
func (hv *Hive) deleteChildren(h types.Handle, path string) error {
	res, err := hv.s.p.QueryInfoKey(h, nil)
	if err != nil && !types.IsMoreData(err) {
		return types.FromStatus("delete key", path, err)
	}
	subs, err := hv.enumKeys(h, path, KeyInfo{
		SubKeys:      res.SubKeys,
		MaxSubKeyLen: res.MaxSubKeyLen,
	}, false)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		subPath := childPath(path, sub.Name)
		ch, err := hv.s.p.OpenKey(h, sub.Name)
		if types.IsNotFound(err) {
			hv.s.log.Debug("subkey already gone", "key", subPath)
			continue
		}
		if err != nil {
			return types.FromStatus("delete key", subPath, err)
		}
		err = hv.deleteChildren(ch, subPath)
		if cerr := hv.s.p.CloseKey(ch); err == nil && cerr != nil {
			err = nativeError("delete key", subPath, cerr)
		}
		if err != nil {
			return err
		}
		if err := hv.s.p.DeleteKey(h, sub.Name); err != nil {
			if types.IsNotFound(err) {
				hv.s.log.Debug("subkey already gone", "key", subPath)
				continue
			}
			return types.FromStatus("delete key", subPath, err)
		}
	}
	return nil
}
