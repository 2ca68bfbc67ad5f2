// Package bridge loads a native Arrow engine shared library at runtime
// and exchanges data with it through the C Data Interface structs from
// the cdata package. The library is located via an explicit path, the
// ARROW_ENGINE_LIB environment variable, or next to the executable, and
// is bound with purego on unix and syscall on windows, so no C compiler
// is needed to link against the engine itself.
package bridge
