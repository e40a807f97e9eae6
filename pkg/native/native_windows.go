//go:build windows

package native

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/joshuapare/offreg/pkg/types"
)

// provider forwards every call to offreg.dll.
type provider struct {
	dll *windows.LazyDLL

	createHive     *windows.LazyProc
	openHive       *windows.LazyProc
	closeHive      *windows.LazyProc
	saveHive       *windows.LazyProc
	createKey      *windows.LazyProc
	openKey        *windows.LazyProc
	closeKey       *windows.LazyProc
	deleteKey      *windows.LazyProc
	enumKey        *windows.LazyProc
	queryInfoKey   *windows.LazyProc
	getValue       *windows.LazyProc
	setValue       *windows.LazyProc
	deleteValue    *windows.LazyProc
	enumValue      *windows.LazyProc
	getKeySecurity *windows.LazyProc
	setKeySecurity *windows.LazyProc
}

var _ types.Provider = (*provider)(nil)

// Load binds offreg.dll from dllPath, or from the system directory when
// dllPath is empty. Every export is resolved up front.
func Load(dllPath string) (types.Provider, error) {
	var dll *windows.LazyDLL
	if dllPath == "" {
		dllPath = DefaultDLL
		dll = windows.NewLazySystemDLL(dllPath)
	} else {
		dll = windows.NewLazyDLL(dllPath)
	}
	if err := dll.Load(); err != nil {
		return nil, unsupported(dllPath, err)
	}

	p := &provider{dll: dll}
	procs := []struct {
		dst  **windows.LazyProc
		name string
	}{
		{&p.createHive, "ORCreateHive"},
		{&p.openHive, "OROpenHive"},
		{&p.closeHive, "ORCloseHive"},
		{&p.saveHive, "ORSaveHive"},
		{&p.createKey, "ORCreateKey"},
		{&p.openKey, "OROpenKey"},
		{&p.closeKey, "ORCloseKey"},
		{&p.deleteKey, "ORDeleteKey"},
		{&p.enumKey, "OREnumKey"},
		{&p.queryInfoKey, "ORQueryInfoKey"},
		{&p.getValue, "ORGetValue"},
		{&p.setValue, "ORSetValue"},
		{&p.deleteValue, "ORDeleteValue"},
		{&p.enumValue, "OREnumValue"},
		{&p.getKeySecurity, "ORGetKeySecurity"},
		{&p.setKeySecurity, "ORSetKeySecurity"},
	}
	for _, pr := range procs {
		proc := dll.NewProc(pr.name)
		if err := proc.Find(); err != nil {
			return nil, unsupported(dllPath, err)
		}
		*pr.dst = proc
	}
	return p, nil
}

// call invokes proc and maps its return code.
func call(proc *windows.LazyProc, args ...uintptr) error {
	r, _, _ := proc.Call(args...)
	return statusError(r)
}

// wstr converts s for the library. Strings with embedded NULs are rejected.
func wstr(s string) (*uint16, error) {
	p, err := windows.UTF16PtrFromString(s)
	if err != nil {
		return nil, types.StatusInvalidParameter
	}
	return p, nil
}

// optWstr is wstr with "" passed as NULL.
func optWstr(s string) (*uint16, error) {
	if s == "" {
		return nil, nil
	}
	return wstr(s)
}

func bufPtr[T any](b []T) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func filetime(ft windows.Filetime) time.Time {
	if ft.HighDateTime == 0 && ft.LowDateTime == 0 {
		return time.Time{}
	}
	return time.Unix(0, ft.Nanoseconds()).UTC()
}

// -----------------------------------------------------------------------------
// Hive lifecycle
// -----------------------------------------------------------------------------

func (p *provider) CreateHive() (types.Handle, error) {
	var h types.Handle
	err := call(p.createHive, uintptr(unsafe.Pointer(&h)))
	return h, err
}

func (p *provider) OpenHive(path string) (types.Handle, error) {
	name, err := wstr(path)
	if err != nil {
		return types.InvalidHandle, err
	}
	var h types.Handle
	err = call(p.openHive, uintptr(unsafe.Pointer(name)), uintptr(unsafe.Pointer(&h)))
	return h, err
}

func (p *provider) CloseHive(h types.Handle) error {
	return call(p.closeHive, uintptr(h))
}

func (p *provider) SaveHive(h types.Handle, path string, majorVersion, minorVersion uint32) error {
	name, err := wstr(path)
	if err != nil {
		return err
	}
	return call(p.saveHive, uintptr(h), uintptr(unsafe.Pointer(name)),
		uintptr(majorVersion), uintptr(minorVersion))
}

// -----------------------------------------------------------------------------
// Keys
// -----------------------------------------------------------------------------

func (p *provider) CreateKey(parent types.Handle, subPath, class string, opts types.KeyOptions) (types.Handle, types.Disposition, error) {
	sub, err := wstr(subPath)
	if err != nil {
		return types.InvalidHandle, 0, err
	}
	cls, err := optWstr(class)
	if err != nil {
		return types.InvalidHandle, 0, err
	}
	var (
		h    types.Handle
		disp uint32
	)
	err = call(p.createKey, uintptr(parent), uintptr(unsafe.Pointer(sub)), uintptr(unsafe.Pointer(cls)),
		uintptr(opts), 0, uintptr(unsafe.Pointer(&h)), uintptr(unsafe.Pointer(&disp)))
	return h, types.Disposition(disp), err
}

func (p *provider) OpenKey(parent types.Handle, subPath string) (types.Handle, error) {
	sub, err := optWstr(subPath)
	if err != nil {
		return types.InvalidHandle, err
	}
	var h types.Handle
	err = call(p.openKey, uintptr(parent), uintptr(unsafe.Pointer(sub)), uintptr(unsafe.Pointer(&h)))
	return h, err
}

func (p *provider) CloseKey(h types.Handle) error {
	return call(p.closeKey, uintptr(h))
}

func (p *provider) DeleteKey(h types.Handle, subName string) error {
	sub, err := optWstr(subName)
	if err != nil {
		return err
	}
	return call(p.deleteKey, uintptr(h), uintptr(unsafe.Pointer(sub)))
}

// EnumKey reports the key's maximum lengths as the required sizes when the
// library answers ERROR_MORE_DATA without them.
func (p *provider) EnumKey(h types.Handle, index uint32, name, class []uint16) (types.EnumKeyResult, error) {
	nameLen := uint32(len(name))
	classLen := uint32(len(class))
	var (
		ft       windows.Filetime
		classPtr uintptr
		lenPtr   uintptr
	)
	if class != nil {
		classPtr = bufPtr(class)
		lenPtr = uintptr(unsafe.Pointer(&classLen))
	}
	err := call(p.enumKey, uintptr(h), uintptr(index),
		bufPtr(name), uintptr(unsafe.Pointer(&nameLen)),
		classPtr, lenPtr, uintptr(unsafe.Pointer(&ft)))
	res := types.EnumKeyResult{NameLen: nameLen, ClassLen: classLen, LastWriteTime: filetime(ft)}
	if err == nil {
		if class == nil {
			res.ClassLen = 0
		}
		return res, nil
	}
	if types.IsMoreData(err) {
		info, qerr := p.QueryInfoKey(h, nil)
		if qerr != nil && !types.IsMoreData(qerr) {
			return res, qerr
		}
		res.NameLen, res.ClassLen = info.MaxSubKeyLen, info.MaxClassLen
	}
	return res, err
}

func (p *provider) QueryInfoKey(h types.Handle, class []uint16) (types.KeyInfoResult, error) {
	var (
		res      types.KeyInfoResult
		ft       windows.Filetime
		classLen = uint32(len(class))
	)
	err := call(p.queryInfoKey, uintptr(h),
		bufPtr(class), uintptr(unsafe.Pointer(&classLen)),
		uintptr(unsafe.Pointer(&res.SubKeys)),
		uintptr(unsafe.Pointer(&res.MaxSubKeyLen)),
		uintptr(unsafe.Pointer(&res.MaxClassLen)),
		uintptr(unsafe.Pointer(&res.Values)),
		uintptr(unsafe.Pointer(&res.MaxValueNameLen)),
		uintptr(unsafe.Pointer(&res.MaxValueLen)),
		uintptr(unsafe.Pointer(&res.SecurityDescriptorSize)),
		uintptr(unsafe.Pointer(&ft)))
	res.ClassLen = classLen
	res.LastWriteTime = filetime(ft)
	return res, err
}

// -----------------------------------------------------------------------------
// Values
// -----------------------------------------------------------------------------

func (p *provider) GetValue(h types.Handle, subPath, name string, data []byte) (types.RegType, uint32, error) {
	sub, err := optWstr(subPath)
	if err != nil {
		return types.REG_NONE, 0, err
	}
	val, err := wstr(name)
	if err != nil {
		return types.REG_NONE, 0, err
	}
	var t uint32
	size := uint32(len(data))
	var dataPtr uintptr
	if data != nil {
		// A zero-length buffer still asks for the data.
		var empty byte
		dataPtr = uintptr(unsafe.Pointer(&empty))
		if len(data) > 0 {
			dataPtr = bufPtr(data)
		}
	}
	err = call(p.getValue, uintptr(h), uintptr(unsafe.Pointer(sub)), uintptr(unsafe.Pointer(val)),
		uintptr(unsafe.Pointer(&t)), dataPtr, uintptr(unsafe.Pointer(&size)))
	return types.RegType(t), size, err
}

func (p *provider) SetValue(h types.Handle, name string, t types.RegType, data []byte) error {
	val, err := wstr(name)
	if err != nil {
		return err
	}
	return call(p.setValue, uintptr(h), uintptr(unsafe.Pointer(val)), uintptr(t),
		bufPtr(data), uintptr(len(data)))
}

func (p *provider) DeleteValue(h types.Handle, name string) error {
	val, err := wstr(name)
	if err != nil {
		return err
	}
	return call(p.deleteValue, uintptr(h), uintptr(unsafe.Pointer(val)))
}

// EnumValue reports the key's maximum name length as the required size when
// the name does not fit.
func (p *provider) EnumValue(h types.Handle, index uint32, name []uint16, data []byte) (types.EnumValueResult, error) {
	var (
		t       uint32
		nameLen = uint32(len(name))
		dataLen = uint32(len(data))
		dataPtr uintptr
		lenPtr  uintptr
		empty   byte
	)
	if data != nil {
		dataPtr = uintptr(unsafe.Pointer(&empty))
		if len(data) > 0 {
			dataPtr = bufPtr(data)
		}
	}
	lenPtr = uintptr(unsafe.Pointer(&dataLen))
	err := call(p.enumValue, uintptr(h), uintptr(index),
		bufPtr(name), uintptr(unsafe.Pointer(&nameLen)),
		uintptr(unsafe.Pointer(&t)), dataPtr, lenPtr)
	res := types.EnumValueResult{NameLen: nameLen, Type: types.RegType(t), DataLen: dataLen}
	if types.IsMoreData(err) && uint32(len(name)) <= nameLen {
		info, qerr := p.QueryInfoKey(h, nil)
		if qerr != nil && !types.IsMoreData(qerr) {
			return res, qerr
		}
		res.NameLen = info.MaxValueNameLen
		if res.DataLen < info.MaxValueLen && dataPtr != 0 {
			res.DataLen = info.MaxValueLen
		}
	}
	return res, err
}

// -----------------------------------------------------------------------------
// Security
// -----------------------------------------------------------------------------

func (p *provider) GetKeySecurity(h types.Handle, info types.SecurityInformation, sd []byte) (uint32, error) {
	size := uint32(len(sd))
	err := call(p.getKeySecurity, uintptr(h), uintptr(info), bufPtr(sd), uintptr(unsafe.Pointer(&size)))
	if sd == nil && (types.IsMoreData(err) || types.StatusOf(err) == types.StatusInsufficientBuf) {
		return size, nil
	}
	if types.StatusOf(err) == types.StatusInsufficientBuf {
		err = types.StatusMoreData
	}
	return size, err
}

func (p *provider) SetKeySecurity(h types.Handle, info types.SecurityInformation, sd []byte) error {
	if len(sd) == 0 {
		return types.StatusInvalidParameter
	}
	return call(p.setKeySecurity, uintptr(h), uintptr(info), bufPtr(sd))
}
