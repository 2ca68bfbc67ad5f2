//go:build !windows
// +build !windows

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/isesword/arrow-cdata-bridge/cdata"
)

// Engine wraps a dynamically loaded native engine exposing the engine_*
// FFI surface.
type Engine struct {
	lib            uintptr
	abiVersion     func() uint32
	engineVersion  func(*uintptr, *uintptr) int32
	capabilities   func(*uintptr, *uintptr) int32
	lastError      func(*uintptr, *uintptr) int32
	lastErrorFree  func(uintptr, uintptr)
	transformArrow func(*cdata.CArrowSchema, *cdata.CArrowArray, *cdata.CArrowSchema, *cdata.CArrowArray) int32
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

	lib, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("failed to load library %s: %w", libPath, err)
	}

	e := &Engine{lib: lib}

	purego.RegisterLibFunc(&e.abiVersion, lib, "engine_abi_version")
	purego.RegisterLibFunc(&e.engineVersion, lib, "engine_version")
	purego.RegisterLibFunc(&e.capabilities, lib, "engine_capabilities")
	purego.RegisterLibFunc(&e.lastError, lib, "engine_last_error")
	purego.RegisterLibFunc(&e.lastErrorFree, lib, "engine_last_error_free")
	purego.RegisterLibFunc(&e.transformArrow, lib, "engine_transform_arrow")

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
	return e.abiVersion()
}

// EngineVersion reports the engine's own version string.
func (e *Engine) EngineVersion() (string, error) {
	var ptr uintptr
	var length uintptr
	ret := e.engineVersion(&ptr, &length)
	if ret != 0 {
		return "", e.getLastError()
	}
	return ptrToString(ptr, int(length)), nil
}

// Capabilities reports the engine's capability description.
func (e *Engine) Capabilities() (string, error) {
	var ptr uintptr
	var length uintptr
	ret := e.capabilities(&ptr, &length)
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

	if ret := e.transformArrow(inSchema, inArr, outSchema, outArr); ret != 0 {
		return e.getLastError()
	}
	return nil
}

func (e *Engine) getLastError() error {
	var ptr uintptr
	var length uintptr
	e.lastError(&ptr, &length)

	if ptr == 0 {
		return fmt.Errorf("unknown engine error")
	}

	// copy before handing the engine's buffer back
	msg := string([]byte(ptrToString(ptr, int(length))))
	e.lastErrorFree(ptr, length)
	return fmt.Errorf("%s", msg)
}

func ptrToString(ptr uintptr, length int) string {
	if ptr == 0 || length == 0 {
		return ""
	}
	return unsafe.String((*byte)(unsafe.Pointer(ptr)), length)
}
