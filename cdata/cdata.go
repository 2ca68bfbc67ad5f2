//go:build cgo
// +build cgo

package cdata

// consuming side of the C Data Interface: decode foreign ArrowSchema
// trees and wrap foreign ArrowArray buffers as arrow-go arrays.

// #include "abi.h"
// #include "helpers.h"
// #include <stdlib.h>
// #include <string.h>
//
// struct ArrowArray* alloc_arr() {
//	struct ArrowArray* out = (struct ArrowArray*)(malloc(sizeof(struct ArrowArray)));
//	memset(out, 0, sizeof(struct ArrowArray));
//	return out;
// }
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

type (
	// CArrowSchema is the C Data Interface for ArrowSchemas defined in abi.h
	CArrowSchema = C.struct_ArrowSchema
	// CArrowArray is the C Data Interface object for Arrow Arrays defined in abi.h
	CArrowArray = C.struct_ArrowArray
)

// decode metadata from C which is encoded as
//
//	 [int32] -> number of metadata pairs
//		for 0..n
//			[int32] -> number of bytes in key
//			[n bytes] -> key value
//			[int32] -> number of bytes in value
//			[n bytes] -> value
func decodeCMetadata(md *C.char) arrow.Metadata {
	if md == nil {
		return arrow.Metadata{}
	}

	// don't copy the bytes, just reference them directly
	const maxlen = 0x7fffffff
	data := (*[maxlen]byte)(unsafe.Pointer(md))[:]

	readint32 := func() int32 {
		v := *(*int32)(unsafe.Pointer(&data[0]))
		data = data[arrow.Int32SizeBytes:]
		return v
	}

	readstr := func() string {
		l := readint32()
		s := string(data[:l])
		data = data[l:]
		return s
	}

	npairs := readint32()
	if npairs == 0 {
		return arrow.Metadata{}
	}

	keys := make([]string, npairs)
	vals := make([]string, npairs)

	for i := int32(0); i < npairs; i++ {
		keys[i] = readstr()
		vals[i] = readstr()
	}

	return arrow.NewMetadata(keys, vals)
}

// convert a CArrowSchema to an arrow.Field to maintain metadata with the
// schema. Importing consumes the foreign node: everything is copied out
// and the node is released before returning, success or not.
func importSchema(schema *CArrowSchema) (ret arrow.Field, err error) {
	if C.ArrowSchemaIsReleased(schema) == 1 {
		return ret, fmt.Errorf("%w: cannot import ArrowSchema", ErrReleasedSchema)
	}
	defer C.ArrowSchemaRelease(schema)

	var childFields []arrow.Field
	if schema.n_children > 0 {
		// call ourselves recursively if there are children
		schemaChildren := unsafe.Slice(schema.children, int(schema.n_children))
		childFields = make([]arrow.Field, schema.n_children)
		for i, c := range schemaChildren {
			if childFields[i], err = importSchema((*CArrowSchema)(c)); err != nil {
				return
			}
		}
	}

	flags := int64(schema.flags)

	// copy the name and metadata from the c-strings
	ret.Name = C.GoString(schema.name)
	ret.Nullable = flags&flagNullable != 0
	ret.Metadata = decodeCMetadata(schema.metadata)

	// copies the format here, but it's very small
	f := C.GoString(schema.format)
	dt, err := decodeFormat(f, childFields, flags)
	if err != nil {
		return ret, err
	}

	if schema.dictionary != nil {
		valueField, err := importSchema(schema.dictionary)
		if err != nil {
			return ret, err
		}
		dt = &arrow.DictionaryType{
			IndexType: dt,
			ValueType: valueField.Type,
			Ordered:   flags&flagDictionaryOrdered != 0,
		}
	} else if flags&flagDictionaryOrdered != 0 {
		return ret, fmt.Errorf("%w: dictionary-ordered flag set without a dictionary child", ErrInvalidSchema)
	}

	ret.Type = dt
	return
}

// importer to keep track when importing C ArrowArray objects.
type cimporter struct {
	dt       arrow.DataType
	arr      *CArrowArray
	data     arrow.ArrayData
	parent   *cimporter
	children []cimporter
	cbuffers []*C.void
	alloc    *importAllocator
	// foreign buffer views taken at this node; their collective lifetime
	// decides when the foreign release callback runs.
	imported []*memory.Buffer
}

func (imp *cimporter) importChild(parent *cimporter, src *CArrowArray) error {
	imp.parent = parent
	return imp.doImport(src)
}

// import any child arrays for lists, structs and unions, pairing each C
// child with the corresponding child of the decoded type.
func (imp *cimporter) doImportChildren() error {
	var children []*CArrowArray
	if imp.arr.n_children > 0 {
		children = unsafe.Slice(imp.arr.children, int(imp.arr.n_children))
		imp.children = make([]cimporter, len(children))
	}

	switch imp.dt.ID() {
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.MAP: // one child
		if err := imp.checkNumChildren(1); err != nil {
			return err
		}
		switch dt := imp.dt.(type) {
		case *arrow.ListType:
			imp.children[0].dt = dt.Elem()
		case *arrow.LargeListType:
			imp.children[0].dt = dt.Elem()
		case *arrow.FixedSizeListType:
			imp.children[0].dt = dt.Elem()
		case *arrow.MapType:
			imp.children[0].dt = dt.ValueType()
		}
		if err := imp.children[0].importChild(imp, children[0]); err != nil {
			return err
		}
	case arrow.STRUCT: // import all the children
		st := imp.dt.(*arrow.StructType)
		if err := imp.checkNumChildren(int64(st.NumFields())); err != nil {
			return err
		}
		for i, c := range children {
			imp.children[i].dt = st.Field(i).Type
			if err := imp.children[i].importChild(imp, c); err != nil {
				return err
			}
		}
	case arrow.DENSE_UNION, arrow.SPARSE_UNION:
		dt := imp.dt.(arrow.UnionType)
		if err := imp.checkNumChildren(int64(len(dt.Fields()))); err != nil {
			return err
		}
		for i, c := range children {
			imp.children[i].dt = dt.Fields()[i].Type
			if err := imp.children[i].importChild(imp, c); err != nil {
				return err
			}
		}
	}

	return nil
}

// doImport is called recursively as needed for importing an array and its
// children in order to generate ArrayData objects. The source struct is
// moved into an importer-owned allocation first, so the caller observes
// the node as consumed the moment import begins; the foreign release
// callback runs exactly once, when the last view of the moved node's
// buffers goes away.
func (imp *cimporter) doImport(src *CArrowArray) error {
	if C.ArrowArrayIsReleased(src) == 1 {
		return fmt.Errorf("%w: cannot import ArrowArray", ErrUseAfterRelease)
	}

	imp.arr = C.alloc_arr()
	C.ArrowArrayMove(src, imp.arr)
	imp.alloc = &importAllocator{arr: imp.arr}

	if err := imp.build(); err != nil {
		imp.cleanup()
		return err
	}

	// the parent (or the entry point) owns one reference on imp.data;
	// drop our references on the child data now that imp.data retains them.
	for i := range imp.children {
		if imp.children[i].data != nil {
			imp.children[i].data.Release()
		}
	}

	// imp.data also holds its own reference on every imported buffer view;
	// drop the creator references so releasing the array drains the view
	// count and fires the foreign release callback.
	for _, buf := range imp.imported {
		buf.Release()
	}

	if len(imp.imported) == 0 {
		// no foreign buffer views were taken at this node. Children and
		// the dictionary were moved into their own allocations, so nothing
		// borrowed remains behind this struct and it can be released now.
		defer C.free(unsafe.Pointer(imp.arr))
		C.ArrowArrayRelease(imp.arr)
	}
	return nil
}

// cleanup releases everything constructed before a failed import so the
// error path neither leaks nor leaves the release protocol ambiguous.
func (imp *cimporter) cleanup() {
	for i := range imp.children {
		if imp.children[i].data != nil {
			imp.children[i].data.Release()
		}
	}
	if len(imp.imported) > 0 {
		// drop the creator references; freeing the last view releases the
		// foreign array through the import allocator
		for _, buf := range imp.imported {
			buf.Release()
		}
		return
	}
	defer C.free(unsafe.Pointer(imp.arr))
	C.ArrowArrayRelease(imp.arr)
}

func (imp *cimporter) build() error {
	if imp.arr.length < 0 || imp.arr.offset < 0 {
		return fmt.Errorf("%w: negative length (%d) or offset (%d)", ErrBoundsViolation, imp.arr.length, imp.arr.offset)
	}
	if int64(imp.arr.null_count) > int64(imp.arr.length) {
		return fmt.Errorf("%w: null_count %d exceeds length %d", ErrBoundsViolation, imp.arr.null_count, imp.arr.length)
	}

	if err := imp.doImportChildren(); err != nil {
		return err
	}

	if imp.arr.n_buffers > 0 {
		// get a view of the buffer pointers, zero-copy
		imp.cbuffers = unsafe.Slice((**C.void)(unsafe.Pointer(imp.arr.buffers)), int(imp.arr.n_buffers))
	}

	// handle each of our type cases
	switch dt := imp.dt.(type) {
	case *arrow.NullType:
		if err := imp.checkNoChildren(); err != nil {
			return err
		}
		imp.data = array.NewData(dt, int(imp.arr.length), nil, nil, imp.nullCount(), int(imp.arr.offset))
	case arrow.FixedWidthDataType:
		return imp.importFixedSizePrimitive()
	case *arrow.StringType:
		return imp.importStringLike(int64(arrow.Int32SizeBytes))
	case *arrow.BinaryType:
		return imp.importStringLike(int64(arrow.Int32SizeBytes))
	case *arrow.LargeStringType:
		return imp.importStringLike(int64(arrow.Int64SizeBytes))
	case *arrow.LargeBinaryType:
		return imp.importStringLike(int64(arrow.Int64SizeBytes))
	case *arrow.ListType:
		return imp.importListLike()
	case *arrow.LargeListType:
		return imp.importListLike()
	case *arrow.MapType:
		return imp.importListLike()
	case *arrow.FixedSizeListType:
		if err := imp.checkNumBuffers(1); err != nil {
			return err
		}

		nulls, err := imp.importNullBitmap(0)
		if err != nil {
			return err
		}

		imp.data = array.NewData(dt, int(imp.arr.length), []*memory.Buffer{nulls}, []arrow.ArrayData{imp.children[0].data}, imp.nullCount(), int(imp.arr.offset))
	case *arrow.StructType:
		if err := imp.checkNumBuffers(1); err != nil {
			return err
		}

		nulls, err := imp.importNullBitmap(0)
		if err != nil {
			return err
		}

		children := make([]arrow.ArrayData, len(imp.children))
		for i := range imp.children {
			children[i] = imp.children[i].data
		}

		imp.data = array.NewData(dt, int(imp.arr.length), []*memory.Buffer{nulls}, children, imp.nullCount(), int(imp.arr.offset))
	case *arrow.DenseUnionType:
		if err := imp.checkNoNulls(); err != nil {
			return err
		}

		bufs := []*memory.Buffer{nil, nil, nil}
		var err error
		if imp.arr.n_buffers == 3 {
			// legacy format exported by older producers includes a shifted
			// (and unused) validity slot
			if bufs[1], err = imp.importFixedSizeBuffer(1, 1); err != nil {
				return err
			}
			if bufs[2], err = imp.importFixedSizeBuffer(2, int64(arrow.Int32SizeBytes)); err != nil {
				return err
			}
		} else {
			if err := imp.checkNumBuffers(2); err != nil {
				return err
			}
			if bufs[1], err = imp.importFixedSizeBuffer(0, 1); err != nil {
				return err
			}
			if bufs[2], err = imp.importFixedSizeBuffer(1, int64(arrow.Int32SizeBytes)); err != nil {
				return err
			}
		}

		children := make([]arrow.ArrayData, len(imp.children))
		for i := range imp.children {
			children[i] = imp.children[i].data
		}
		imp.data = array.NewData(dt, int(imp.arr.length), bufs, children, 0, int(imp.arr.offset))
	case *arrow.SparseUnionType:
		if err := imp.checkNoNulls(); err != nil {
			return err
		}

		var buf *memory.Buffer
		var err error
		if imp.arr.n_buffers == 2 {
			// legacy format with a shifted validity slot
			if buf, err = imp.importFixedSizeBuffer(1, 1); err != nil {
				return err
			}
		} else {
			if err := imp.checkNumBuffers(1); err != nil {
				return err
			}
			if buf, err = imp.importFixedSizeBuffer(0, 1); err != nil {
				return err
			}
		}

		children := make([]arrow.ArrayData, len(imp.children))
		for i := range imp.children {
			children[i] = imp.children[i].data
		}
		imp.data = array.NewData(dt, int(imp.arr.length), []*memory.Buffer{nil, buf}, children, 0, int(imp.arr.offset))
	default:
		return fmt.Errorf("%w: unimplemented type %s", ErrUnsupportedType, dt)
	}

	return nil
}

func (imp *cimporter) importStringLike(offsetByteWidth int64) (err error) {
	if err = imp.checkNoChildren(); err != nil {
		return
	}

	if err = imp.checkNumBuffers(3); err != nil {
		return
	}

	var nulls, offsets, values *memory.Buffer
	if nulls, err = imp.importNullBitmap(0); err != nil {
		return
	}

	if offsets, err = imp.importOffsetsBuffer(1, offsetByteWidth); err != nil {
		return
	}

	var nvals int64
	switch offsetByteWidth {
	case 4:
		typedOffsets := arrow.Int32Traits.CastFromBytes(offsets.Bytes())
		if len(typedOffsets) > 0 {
			nvals = int64(typedOffsets[imp.arr.offset+imp.arr.length])
		}
	case 8:
		typedOffsets := arrow.Int64Traits.CastFromBytes(offsets.Bytes())
		if len(typedOffsets) > 0 {
			nvals = typedOffsets[imp.arr.offset+imp.arr.length]
		}
	}
	if values, err = imp.importVariableValuesBuffer(2, 1, nvals); err != nil {
		return
	}

	imp.data = array.NewData(imp.dt, int(imp.arr.length), []*memory.Buffer{nulls, offsets, values}, nil, imp.nullCount(), int(imp.arr.offset))
	return
}

func (imp *cimporter) importListLike() (err error) {
	if err = imp.checkNumBuffers(2); err != nil {
		return
	}

	var nulls, offsets *memory.Buffer
	if nulls, err = imp.importNullBitmap(0); err != nil {
		return
	}

	offsetSize := imp.dt.Layout().Buffers[1].ByteWidth
	if offsets, err = imp.importOffsetsBuffer(1, int64(offsetSize)); err != nil {
		return
	}

	imp.data = array.NewData(imp.dt, int(imp.arr.length), []*memory.Buffer{nulls, offsets}, []arrow.ArrayData{imp.children[0].data}, imp.nullCount(), int(imp.arr.offset))
	return
}

func (imp *cimporter) importFixedSizePrimitive() error {
	if err := imp.checkNoChildren(); err != nil {
		return err
	}

	if err := imp.checkNumBuffers(2); err != nil {
		return err
	}

	nulls, err := imp.importNullBitmap(0)
	if err != nil {
		return err
	}

	var values *memory.Buffer

	fw := imp.dt.(arrow.FixedWidthDataType)
	if bitutil.IsMultipleOf8(int64(fw.BitWidth())) {
		values, err = imp.importFixedSizeBuffer(1, bitutil.BytesForBits(int64(fw.BitWidth())))
	} else {
		if fw.BitWidth() != 1 {
			return fmt.Errorf("%w: invalid bitwidth %d", ErrStructuralMismatch, fw.BitWidth())
		}
		values, err = imp.importBitsBuffer(1)
	}
	if err != nil {
		return err
	}

	if dt, ok := imp.dt.(*arrow.DictionaryType); ok {
		if imp.arr.dictionary == nil {
			return fmt.Errorf("%w: dictionary type %s without dictionary values array", ErrStructuralMismatch, dt)
		}

		dictImp := &cimporter{dt: dt.ValueType}
		if err := dictImp.doImport(imp.arr.dictionary); err != nil {
			return err
		}
		defer dictImp.data.Release()

		imp.data = array.NewDataWithDictionary(dt, int(imp.arr.length), []*memory.Buffer{nulls, values}, imp.nullCount(), int(imp.arr.offset), dictImp.data.(*array.Data))
		return nil
	}

	imp.data = array.NewData(imp.dt, int(imp.arr.length), []*memory.Buffer{nulls, values}, nil, imp.nullCount(), int(imp.arr.offset))
	return nil
}

func (imp *cimporter) nullCount() int {
	if imp.arr.null_count < 0 {
		// unknown sentinel: let the array layer recompute lazily
		return array.UnknownNullCount
	}
	return int(imp.arr.null_count)
}

func (imp *cimporter) checkNoChildren() error { return imp.checkNumChildren(0) }

func (imp *cimporter) checkNoNulls() error {
	if imp.arr.null_count != 0 {
		return fmt.Errorf("%w: unexpected non-zero null count for imported type %s", ErrStructuralMismatch, imp.dt)
	}
	return nil
}

func (imp *cimporter) checkNumChildren(n int64) error {
	if int64(imp.arr.n_children) != n {
		return fmt.Errorf("%w: expected %d children for imported type %s, ArrowArray has %d", ErrStructuralMismatch, n, imp.dt, imp.arr.n_children)
	}
	return nil
}

func (imp *cimporter) checkNumBuffers(n int64) error {
	if int64(imp.arr.n_buffers) != n {
		return fmt.Errorf("%w: expected %d buffers for imported type %s, ArrowArray has %d", ErrStructuralMismatch, n, imp.dt, imp.arr.n_buffers)
	}
	return nil
}

// importBuffer wraps a foreign buffer pointer as a borrowed view. This is
// not a copy: the bytes stay owned by the foreign producer until the
// import allocator fires the release callback.
func (imp *cimporter) importBuffer(bufferID int, sz int64) (*memory.Buffer, error) {
	if imp.cbuffers[bufferID] == nil {
		if sz != 0 && imp.arr.length != 0 {
			return nil, fmt.Errorf("%w: buffer %d for type %s is unexpectedly null", ErrStructuralMismatch, bufferID, imp.dt)
		}
		return memory.NewBufferBytes([]byte{}), nil
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(imp.cbuffers[bufferID])), int(sz))
	buf := memory.NewBufferWithAllocator(data, imp.alloc)
	imp.alloc.addBuffer()
	imp.imported = append(imp.imported, buf)
	return buf, nil
}

func (imp *cimporter) importBitsBuffer(bufferID int) (*memory.Buffer, error) {
	bufsize := bitutil.BytesForBits(int64(imp.arr.length) + int64(imp.arr.offset))
	return imp.importBuffer(bufferID, bufsize)
}

func (imp *cimporter) importNullBitmap(bufferID int) (*memory.Buffer, error) {
	if imp.cbuffers[bufferID] == nil {
		if imp.arr.null_count > 0 {
			return nil, fmt.Errorf("%w: ArrowArray has null validity bitmap, but non-zero null_count %d", ErrStructuralMismatch, imp.arr.null_count)
		}
		// no bitmap means no nulls, even when the producer reports the
		// count as unknown
		return nil, nil
	}

	return imp.importBitsBuffer(bufferID)
}

func (imp *cimporter) importFixedSizeBuffer(bufferID int, byteWidth int64) (*memory.Buffer, error) {
	bufsize := byteWidth * int64(imp.arr.length+imp.arr.offset)
	return imp.importBuffer(bufferID, bufsize)
}

func (imp *cimporter) importOffsetsBuffer(bufferID int, offsetsize int64) (*memory.Buffer, error) {
	bufsize := offsetsize * int64(imp.arr.length+imp.arr.offset+1)
	return imp.importBuffer(bufferID, bufsize)
}

func (imp *cimporter) importVariableValuesBuffer(bufferID int, byteWidth, nvals int64) (*memory.Buffer, error) {
	return imp.importBuffer(bufferID, byteWidth*nvals)
}

func importCArrayAsType(arr *CArrowArray, dt arrow.DataType) (imp *cimporter, err error) {
	imp = &cimporter{dt: dt}
	err = imp.doImport(arr)
	return
}

func releaseArr(arr *CArrowArray) {
	C.ArrowArrayRelease(arr)
}

func releaseSchema(schema *CArrowSchema) {
	C.ArrowSchemaRelease(schema)
}

func cSchemaIsReleased(s *CArrowSchema) bool {
	return C.ArrowSchemaIsReleased(s) == 1
}

func cArrayIsReleased(a *CArrowArray) bool {
	return C.ArrowArrayIsReleased(a) == 1
}
