//go:build cgo
// +build cgo

package cdata

// #include <stdlib.h>
// #include "abi.h"
import "C"

import "unsafe"

// C-heap slice allocators for the export path. The returned slices view
// zeroed calloc memory, so the structs are safe to hand out even before
// finish() fills them in; ownership passes to the exported node's release
// callback.

func allocateArrowSchemaArr(n int) (out []CArrowSchema) {
	return unsafe.Slice((*CArrowSchema)(C.calloc(C.size_t(n),
		C.sizeof_struct_ArrowSchema)), n)
}

func allocateArrowSchemaPtrArr(n int) (out []*CArrowSchema) {
	return unsafe.Slice((**CArrowSchema)(C.calloc(C.size_t(n),
		C.size_t(unsafe.Sizeof((*CArrowSchema)(nil))))), n)
}

func allocateArrowArrayArr(n int) (out []CArrowArray) {
	return unsafe.Slice((*CArrowArray)(C.calloc(C.size_t(n),
		C.sizeof_struct_ArrowArray)), n)
}

func allocateArrowArrayPtrArr(n int) (out []*CArrowArray) {
	return unsafe.Slice((**CArrowArray)(C.calloc(C.size_t(n),
		C.size_t(unsafe.Sizeof((*CArrowArray)(nil))))), n)
}

func allocateBufferPtrArr(n int) (out []*C.void) {
	return unsafe.Slice((**C.void)(C.calloc(C.size_t(n),
		C.size_t(unsafe.Sizeof((*C.void)(nil))))), n)
}
