//go:build cgo
// +build cgo

package bridge

const cgoEnabled = true
