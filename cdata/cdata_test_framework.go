//go:build cgo
// +build cgo

package cdata

// accessors used by the package tests to inspect and perturb the ABI
// structs, since cgo cannot be used directly inside _test.go files.

// #include "abi.h"
import "C"

import "unsafe"

func carrLength(a *CArrowArray) int64      { return int64(a.length) }
func carrNullCount(a *CArrowArray) int64   { return int64(a.null_count) }
func carrOffset(a *CArrowArray) int64      { return int64(a.offset) }
func carrNumBuffers(a *CArrowArray) int64  { return int64(a.n_buffers) }
func carrNumChildren(a *CArrowArray) int64 { return int64(a.n_children) }

func setCArrNullCount(a *CArrowArray, n int64) { a.null_count = C.int64_t(n) }
func setCArrLength(a *CArrowArray, n int64)    { a.length = C.int64_t(n) }
func setCArrOffset(a *CArrowArray, n int64)    { a.offset = C.int64_t(n) }

// carrBufferBytes copies n bytes out of buffer i of a.
func carrBufferBytes(a *CArrowArray, i, n int) []byte {
	bufs := unsafe.Slice((*unsafe.Pointer)(unsafe.Pointer(a.buffers)), int(a.n_buffers))
	if bufs[i] == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(bufs[i]), n))
	return out
}

func cschemaFormat(s *CArrowSchema) string     { return C.GoString(s.format) }
func cschemaName(s *CArrowSchema) string       { return C.GoString(s.name) }
func cschemaFlags(s *CArrowSchema) int64       { return int64(s.flags) }
func cschemaNumChildren(s *CArrowSchema) int64 { return int64(s.n_children) }

func cschemaChild(s *CArrowSchema, i int) *CArrowSchema {
	return unsafe.Slice(s.children, int(s.n_children))[i]
}
