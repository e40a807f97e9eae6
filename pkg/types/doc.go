// Package types defines the shared vocabulary of offreg: registry value type
// tags, the provider status codes, typed errors, and the Provider interface
// that every hive backend implements.
//
// A Provider is the primitive, handle-based surface modelled on the Windows
// offline registry library (offreg.dll). Higher layers (package offreg) add
// ownership tracking, navigation and value decoding on top of it.
//
// Design goals:
//   - Small copyable handles instead of object graphs at the provider seam.
//   - Caller-supplied buffers so variable-length results follow one sizing
//     convention (probe with nil, allocate, fetch).
//   - Typed errors with stable categories (not-found/invalid/native/...).
//
// This package has no dependencies beyond the standard library.
package types
