//go:build cgo
// +build cgo

package cdata

// #include <stdlib.h>
// #include "abi.h"
// #include "helpers.h"
import "C"

import (
	"sync/atomic"
	"unsafe"
)

// importAllocator ties the lifetime of an imported ArrowArray to the
// foreign buffer views taken from it. Each view bumps bufCount; the view
// whose Free drops the count to zero invokes the producer's release
// callback exactly once and frees the moved struct.
type importAllocator struct {
	bufCount int64

	arr *CArrowArray
}

func (i *importAllocator) addBuffer() {
	atomic.AddInt64(&i.bufCount, 1)
}

func (*importAllocator) Allocate(int) []byte {
	panic("cannot allocate from importAllocator")
}

func (*importAllocator) Reallocate(int, []byte) []byte {
	panic("cannot reallocate from importAllocator")
}

func (i *importAllocator) Free([]byte) {
	if atomic.AddInt64(&i.bufCount, -1) == 0 {
		defer C.free(unsafe.Pointer(i.arr))
		C.ArrowArrayRelease(i.arr)
	}
}
