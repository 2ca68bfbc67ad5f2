//go:build !cgo
// +build !cgo

package cdata

// CArrowSchema represents an ArrowSchema in C (cgo disabled placeholder).
type CArrowSchema struct{}

// CArrowArray represents an ArrowArray in C (cgo disabled placeholder).
type CArrowArray struct{}

// ReleaseCArrowSchema is a no-op when cgo is disabled.
func ReleaseCArrowSchema(_ *CArrowSchema) {}

// ReleaseCArrowArray is a no-op when cgo is disabled.
func ReleaseCArrowArray(_ *CArrowArray) {}
