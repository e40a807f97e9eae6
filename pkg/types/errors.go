package types

import (
	"errors"
	"fmt"
)

// Status is a provider result code. Values follow the Win32 error numbering
// used by offreg.dll so native codes pass through unchanged.
type Status uint32

const (
	StatusSuccess          Status = 0
	StatusFileNotFound     Status = 2
	StatusPathNotFound     Status = 3
	StatusAccessDenied     Status = 5
	StatusInvalidHandle    Status = 6
	StatusNotEnoughMemory  Status = 8
	StatusFileExists       Status = 80
	StatusInvalidParameter Status = 87
	StatusInsufficientBuf  Status = 122
	StatusAlreadyExists    Status = 183
	StatusMoreData         Status = 234
	StatusNoMoreItems      Status = 259
	StatusBadDB            Status = 1009
	StatusBadKey           Status = 1010
	StatusKeyDeleted       Status = 1018
)

var statusText = map[Status]string{
	StatusSuccess:          "success",
	StatusFileNotFound:     "file not found",
	StatusPathNotFound:     "path not found",
	StatusAccessDenied:     "access denied",
	StatusInvalidHandle:    "invalid handle",
	StatusNotEnoughMemory:  "not enough memory",
	StatusFileExists:       "file exists",
	StatusInvalidParameter: "invalid parameter",
	StatusInsufficientBuf:  "insufficient buffer",
	StatusAlreadyExists:    "already exists",
	StatusMoreData:         "more data is available",
	StatusNoMoreItems:      "no more items",
	StatusBadDB:            "registry database is corrupt",
	StatusBadKey:           "registry key is invalid",
	StatusKeyDeleted:       "key marked for deletion",
}

func (s Status) Error() string {
	if txt, ok := statusText[s]; ok {
		return fmt.Sprintf("status %d: %s", uint32(s), txt)
	}
	return fmt.Sprintf("status %d", uint32(s))
}

// NotFound reports whether s is one of the "absent" codes.
func (s Status) NotFound() bool {
	return s == StatusFileNotFound || s == StatusPathNotFound
}

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindNative          ErrKind = iota // any other non-success provider status
	ErrKindNotFound                       // missing key/value/path/file
	ErrKindInvalidArgument                // root delete, empty multi-string element, bad path
	ErrKindUndecodable                    // value bytes don't match their type tag
	ErrKindUnknownType                    // type tag outside the fixed taxonomy
	ErrKindClosed                         // hive or key already released
	ErrKindFormat                         // malformed headers/signatures (e.g., bad "regf")
	ErrKindCorrupt                        // structural corruption (bad sizes/offsets/tags)
	ErrKindUnsupported                    // valid feature we don't support (yet)
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNative:
		return "native failure"
	case ErrKindNotFound:
		return "not found"
	case ErrKindInvalidArgument:
		return "invalid argument"
	case ErrKindUndecodable:
		return "undecodable value"
	case ErrKindUnknownType:
		return "unknown type tag"
	case ErrKindClosed:
		return "closed"
	case ErrKindFormat:
		return "format"
	case ErrKindCorrupt:
		return "corrupt"
	case ErrKindUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind   ErrKind
	Op     string // operation, e.g. "open key"
	Path   string // key path or file path, when known
	Status Status // provider code for ErrKindNative / ErrKindNotFound
	Msg    string
	Err    error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind so errors.Is(err, ErrNotFound) works for any
// not-found error regardless of operation or path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrNotFound        = &Error{Kind: ErrKindNotFound}
	ErrInvalidArgument = &Error{Kind: ErrKindInvalidArgument}
	ErrNative          = &Error{Kind: ErrKindNative}
	ErrClosed          = &Error{Kind: ErrKindClosed}
	ErrUndecodable     = &Error{Kind: ErrKindUndecodable}
	ErrUnknownType     = &Error{Kind: ErrKindUnknownType}
)

// FromStatus classifies a provider error. Status codes become ErrKindNotFound
// or ErrKindNative; *Error values pass through with Op/Path filled in when empty.
func FromStatus(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		if te.Op != "" || te.Path != "" {
			return err
		}
		cp := *te
		cp.Op, cp.Path = op, path
		return &cp
	}
	var st Status
	if errors.As(err, &st) {
		kind := ErrKindNative
		if st.NotFound() {
			kind = ErrKindNotFound
		}
		return &Error{Kind: kind, Op: op, Path: path, Status: st, Err: err}
	}
	return &Error{Kind: ErrKindNative, Op: op, Path: path, Err: err}
}

// StatusOf extracts the provider Status from err, or StatusSuccess for nil.
// Errors that carry no status report StatusInvalidParameter.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var te *Error
	if errors.As(err, &te) && te.Status != StatusSuccess {
		return te.Status
	}
	var st Status
	if errors.As(err, &st) {
		return st
	}
	return StatusInvalidParameter
}

// IsMoreData reports whether err carries StatusMoreData.
func IsMoreData(err error) bool {
	var st Status
	return errors.As(err, &st) && st == StatusMoreData
}

// IsNotFound reports whether err is a not-found condition at any layer.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var st Status
	return errors.As(err, &st) && st.NotFound()
}

// KindOf returns the ErrKind of err, or ErrKindNative for foreign errors.
func KindOf(err error) ErrKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if IsNotFound(err) {
		return ErrKindNotFound
	}
	return ErrKindNative
}
