// Package cdata implements the Arrow C Data Interface bridge: it exports
// in-process arrow-go arrays as the two C-compatible ABI structs
// (ArrowSchema / ArrowArray) without copying buffer contents, and imports
// pairs of those structs produced by a foreign runtime back into arrow-go
// arrays.
//
// This package contains:
//   - the format-string codec mapping arrow data types to and from the
//     compact ABI type tokens (format.go)
//   - schema export/import, recursive over nested and dictionary types
//   - zero-copy array export with a reference-counted ownership token
//     behind each struct's private_data pointer
//   - array import that takes over exactly one release invocation per
//     consumed struct and keeps the foreign buffers alive for as long as
//     any Go-side view references them
//
// Everything except the format codec requires cgo; the ABI structs are
// real C structs so their layout is bit-exact with what foreign consumers
// expect. Memory for arrays that will be exported should come from
// memory/mallocator so the buffer pointers handed across the boundary are
// not subject to the Go garbage collector.
package cdata
