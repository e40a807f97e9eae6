// Package offreg edits offline Windows registry hives through a
// types.Provider.
//
// A Session wraps one provider. Hives come from Session.Create or
// Session.Open; every Key reached from a hive's root must be closed, and
// closing the root (or the Hive) releases whatever is still open:
//
//	s := offreg.NewSession(hive.New(nil), nil)
//	hv, err := s.Create()
//	if err != nil {
//	    return err
//	}
//	defer hv.Close()
//
//	k, err := hv.Root().CreateSubKey(`Software\Vendor`)
//	if err != nil {
//	    return err
//	}
//	defer k.Close()
//	if err := k.SetString("Version", "1.0"); err != nil {
//	    return err
//	}
//	return hv.Save("SOFTWARE", 6, 1)
//
// Keys are slots in a per-hive arena. A key keeps a snapshot of its
// metadata (counts and size bounds) that mutating calls refresh; buffers
// for enumeration are sized from it. Variable-length results go through a
// probe-then-fetch pair of provider calls.
//
// Errors are *types.Error values: match them with errors.Is against
// types.ErrNotFound, types.ErrInvalidArgument, types.ErrClosed and friends.
// Value bytes that do not fit their type are not errors; they come back as
// Binary with a false OK flag.
package offreg
