// Package native exposes the Windows offline registry library (offreg.dll)
// as a types.Provider.
//
// Load binds the library's exports once; the returned provider forwards each
// call and reports the library's return codes as types.Status values. On
// other platforms Load always fails with an unsupported error, so callers can
// fall back to the pure-Go provider in package hive:
//
//	p, err := native.Load("")
//	if err != nil {
//	    p = hive.New(nil)
//	}
//	s := offreg.NewSession(p, nil)
package native
