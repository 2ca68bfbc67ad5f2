//go:build !cgo
// +build !cgo

package main

import "log"

func main() {
	log.Fatal("the demos require cgo (set CGO_ENABLED=1)")
}
