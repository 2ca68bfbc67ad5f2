//go:build windows
// +build windows

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/isesword/arrow-cdata-bridge/cdata"
)

// Engine wraps a dynamically loaded native engine exposing the engine_*
// FFI surface.
type Engine struct {
	lib            *syscall.DLL
	abiVersion     *syscall.Proc
	engineVersion  *syscall.Proc
	capabilities   *syscall.Proc
	lastError      *syscall.Proc
	lastErrorFree  *syscall.Proc
	transformArrow *syscall.Proc
}

// LoadEngine loads the engine shared library. An empty libPath falls back
// to the ARROW_ENGINE_LIB environment variable, then to the executable's
// directory.
func LoadEngine(libPath string) (*Engine, error) {
	if libPath == "" {
		libPath = os.Getenv("ARROW_ENGINE_LIB")
		if libPath == "" {
			exePath, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("failed to get executable path: %w", err)
			}
			exeDir := filepath.Dir(exePath)
			libPath = filepath.Join(exeDir, getLibName())
		}
	}

	if _, err := os.Stat(libPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("library not found: %s", libPath)
	}

	lib, err := syscall.LoadDLL(libPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load library %s: %w", libPath, err)
	}

	e := &Engine{lib: lib}

	if e.abiVersion, err = lib.FindProc("engine_abi_version"); err != nil {
		return nil, fmt.Errorf("failed to find engine_abi_version: %w", err)
	}
	if e.engineVersion, err = lib.FindProc("engine_version"); err != nil {
		return nil, fmt.Errorf("failed to find engine_version: %w", err)
	}
	if e.capabilities, err = lib.FindProc("engine_capabilities"); err != nil {
		return nil, fmt.Errorf("failed to find engine_capabilities: %w", err)
	}
	if e.lastError, err = lib.FindProc("engine_last_error"); err != nil {
		return nil, fmt.Errorf("failed to find engine_last_error: %w", err)
	}
	if e.lastErrorFree, err = lib.FindProc("engine_last_error_free"); err != nil {
		return nil, fmt.Errorf("failed to find engine_last_error_free: %w", err)
	}
	if e.transformArrow, err = lib.FindProc("engine_transform_arrow"); err != nil {
		return nil, fmt.Errorf("failed to find engine_transform_arrow: %w", err)
	}

	abiVer := e.AbiVersion()
	if abiVer != supportedABIVersion {
		return nil, fmt.Errorf("ABI version mismatch: expected %d, got %d", supportedABIVersion, abiVer)
	}

	return e, nil
}

func getLibName() string {
	switch runtime.GOOS {
	case "windows":
		return "arrow_engine.dll"
	case "darwin":
		return "libarrow_engine.dylib"
	default:
		return "libarrow_engine.so"
	}
}

// AbiVersion reports the FFI contract version of the loaded library.
func (e *Engine) AbiVersion() uint32 {
	ret, _, _ := e.abiVersion.Call()
	return uint32(ret)
}

// EngineVersion reports the engine's own version string.
func (e *Engine) EngineVersion() (string, error) {
	var ptr uintptr
	var length uintptr
	ret, _, _ := e.engineVersion.Call(uintptr(unsafe.Pointer(&ptr)), uintptr(unsafe.Pointer(&length)))
	if ret != 0 {
		return "", e.getLastError()
	}
	return ptrToString(ptr, int(length)), nil
}

// Capabilities reports the engine's capability description.
func (e *Engine) Capabilities() (string, error) {
	var ptr uintptr
	var length uintptr
	ret, _, _ := e.capabilities.Call(uintptr(unsafe.Pointer(&ptr)), uintptr(unsafe.Pointer(&length)))
	if ret != 0 {
		return "", e.getLastError()
	}
	return ptrToString(ptr, int(length)), nil
}

// TransformArrow hands one exported (schema, array) pair to the engine
// and receives the transformed pair back through outSchema/outArray.
// Ownership of the inputs transfers to the engine on success, so the
// caller must not release them afterwards. On failure the inputs remain
// the caller's to release. The caller releases the outputs once consumed.
func (e *Engine) TransformArrow(
	inSchema *cdata.CArrowSchema,
	inArr *cdata.CArrowArray,
	outSchema *cdata.CArrowSchema,
	outArr *cdata.CArrowArray,
) error {
	if !cgoEnabled {
		return fmt.Errorf("TransformArrow requires cgo (set CGO_ENABLED=1)")
	}

	ret, _, _ := e.transformArrow.Call(
		uintptr(unsafe.Pointer(inSchema)),
		uintptr(unsafe.Pointer(inArr)),
		uintptr(unsafe.Pointer(outSchema)),
		uintptr(unsafe.Pointer(outArr)),
	)
	if ret != 0 {
		return e.getLastError()
	}
	return nil
}

func (e *Engine) getLastError() error {
	var ptr uintptr
	var length uintptr
	e.lastError.Call(uintptr(unsafe.Pointer(&ptr)), uintptr(unsafe.Pointer(&length)))

	if ptr == 0 {
		return fmt.Errorf("unknown engine error")
	}

	msg := ptrToString(ptr, int(length))
	e.lastErrorFree.Call(ptr, uintptr(length))
	return fmt.Errorf("%s", msg)
}

func ptrToString(ptr uintptr, length int) string {
	if ptr == 0 || length == 0 {
		return ""
	}
	bytes := make([]byte, length)
	for i := 0; i < length; i++ {
		bytes[i] = *(*byte)(unsafe.Pointer(ptr + uintptr(i)))
	}
	return string(bytes)
}
