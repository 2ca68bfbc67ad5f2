//go:build cgo
// +build cgo

package cdata

import (
	"fmt"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// SchemaFromPtr is a simple helper function to cast a uintptr to a *CArrowSchema
func SchemaFromPtr(ptr uintptr) *CArrowSchema { return (*CArrowSchema)(unsafe.Pointer(ptr)) }

// ArrayFromPtr is a simple helper function to cast a uintptr to a *CArrowArray
func ArrayFromPtr(ptr uintptr) *CArrowArray { return (*CArrowArray)(unsafe.Pointer(ptr)) }

// SchemaIsReleased reports whether the release callback on s has already
// run, i.e. whether s is a tombstone.
func SchemaIsReleased(s *CArrowSchema) bool {
	return cSchemaIsReleased(s)
}

// ArrayIsReleased reports whether the release callback on a has already
// run, i.e. whether a is a tombstone.
func ArrayIsReleased(a *CArrowArray) bool {
	return cArrayIsReleased(a)
}

// ExportField populates out with the ABI description of field: format
// token, name, flags, encoded metadata and recursively exported children
// and dictionary. All memory hangs off malloc and is freed by the struct's
// release callback. Nothing is written to out if the field's type has no
// format-token mapping.
func ExportField(field arrow.Field, out *CArrowSchema) error {
	if err := typeSupported(field.Type); err != nil {
		return err
	}
	exportField(field, out)
	return nil
}

// ExportArrowSchema populates the passed in CArrowSchema with the schema
// passed in so that it can be passed to some consumer of the C Data
// Interface. A record batch schema is represented as a non-nullable struct
// of the schema's fields.
func ExportArrowSchema(schema *arrow.Schema, out *CArrowSchema) error {
	dummy := arrow.Field{Type: arrow.StructOf(schema.Fields()...), Metadata: schema.Metadata()}
	return ExportField(dummy, out)
}

// ExportToC exports arr as an (ArrowSchema, ArrowArray) pair without
// copying any buffer contents. The exported ArrowArray holds one retained
// reference to arr's underlying data; the consumer gives it back by
// invoking the release callback, after which arr's buffers may be freed
// once no other references remain. outSchema may be nil to skip the
// schema half.
//
// Memory for arr should come from an allocator whose buffers are not
// moved by the Go garbage collector (see memory/mallocator) whenever the
// consumer will hold the pointers past the exporting cgo call.
func ExportToC(arr arrow.Array, out *CArrowArray, outSchema *CArrowSchema) error {
	if err := typeSupported(arr.DataType()); err != nil {
		return err
	}
	exportArray(arr, out, outSchema)
	return nil
}

// ExportArrowArray is ExportToC under the name used by consumers porting
// from other Arrow implementations.
func ExportArrowArray(arr arrow.Array, out *CArrowArray, outSchema *CArrowSchema) error {
	return ExportToC(arr, out, outSchema)
}

// ExportArrowRecordBatch populates the passed in CArrowArray (and
// optionally the schema too) by sharing the memory used for the buffers of
// each column's arrays. The record is exported as a struct array whose
// fields are the record's columns, per the C Data Interface convention.
func ExportArrowRecordBatch(rb arrow.RecordBatch, out *CArrowArray, outSchema *CArrowSchema) error {
	children := make([]arrow.ArrayData, rb.NumCols())
	for i := range rb.Columns() {
		children[i] = rb.Column(i).Data()
	}

	data := array.NewData(arrow.StructOf(rb.Schema().Fields()...), int(rb.NumRows()),
		[]*memory.Buffer{nil}, children, 0, 0)
	defer data.Release()
	arr := array.NewStructData(data)
	defer arr.Release()

	if outSchema != nil {
		if err := ExportArrowSchema(rb.Schema(), outSchema); err != nil {
			return err
		}
	}
	return ExportToC(arr, out, nil)
}

// CreateEmpty populates out (and optionally outSchema) with a length-zero
// array of the given type, built from mem. The result is a fully valid
// export: a consumer importing it sees zero rows, a zero null count and a
// working release callback.
func CreateEmpty(mem memory.Allocator, dt arrow.DataType, out *CArrowArray, outSchema *CArrowSchema) error {
	if err := typeSupported(dt); err != nil {
		return err
	}

	bldr := array.NewBuilder(mem, dt)
	defer bldr.Release()
	arr := bldr.NewArray()
	defer arr.Release()

	exportArray(arr, out, outSchema)
	return nil
}

// ImportCArrowField takes in an ArrowSchema from the C Data interface; it
// copies the metadata and type definitions rather than keeping direct
// references to them, and consumes the schema: its release callback is
// invoked before returning, on success and on error alike.
func ImportCArrowField(out *CArrowSchema) (arrow.Field, error) {
	return importSchema(out)
}

// ImportCArrowSchema takes in an ArrowSchema describing a record batch,
// i.e. a struct of the schema's fields, and consumes it like
// ImportCArrowField. Use ImportCArrowField for a single array's schema.
func ImportCArrowSchema(out *CArrowSchema) (*arrow.Schema, error) {
	ret, err := importSchema(out)
	if err != nil {
		return nil, err
	}

	st, ok := ret.Type.(*arrow.StructType)
	if !ok {
		return nil, fmt.Errorf("%w: record batch schema must be a struct, got %s", ErrInvalidSchema, ret.Type)
	}
	return arrow.NewSchema(st.Fields(), &ret.Metadata), nil
}

// ImportCArrayWithType takes a pointer to a C Data ArrowArray and
// interprets the values as an array with the given datatype.
//
// The underlying buffers are not copied; the resulting array references
// them directly. The passed in ArrowArray is consumed via ArrowArrayMove:
// the caller's struct is a tombstone when this returns, whether or not an
// error occurred, and the producer's release callback will run exactly
// once, when the last Go-side reference to the imported buffers drops.
func ImportCArrayWithType(arr *CArrowArray, dt arrow.DataType) (arrow.Array, error) {
	imp, err := importCArrayAsType(arr, dt)
	if err != nil {
		return nil, err
	}
	defer imp.data.Release()
	return array.MakeFromData(imp.data), nil
}

// FromC imports a (schema, array) pair produced by a foreign runtime. The
// schema is decoded first and fully copied; the array then borrows the
// foreign buffers zero-copy per ImportCArrayWithType. Both structs are
// consumed.
func FromC(schema *CArrowSchema, arr *CArrowArray) (arrow.Field, arrow.Array, error) {
	field, err := importSchema(schema)
	if err != nil {
		return field, nil, err
	}

	ret, err := ImportCArrayWithType(arr, field.Type)
	return field, ret, err
}

// ImportCArray is FromC under the name used by consumers porting from
// other Arrow implementations.
func ImportCArray(arr *CArrowArray, schema *CArrowSchema) (arrow.Field, arrow.Array, error) {
	return FromC(schema, arr)
}

// ImportCRecordBatchWithSchema is used for importing a record batch array
// when the schema is already known, such as when receiving batches through
// a stream. The ownership semantics are those of ImportCArrayWithType.
func ImportCRecordBatchWithSchema(arr *CArrowArray, sc *arrow.Schema) (arrow.RecordBatch, error) {
	imp, err := importCArrayAsType(arr, arrow.StructOf(sc.Fields()...))
	if err != nil {
		return nil, err
	}

	st := array.NewStructData(imp.data)
	defer st.Release()
	imp.data.Release()

	// split the struct fields back out into record batch columns
	cols := make([]arrow.Array, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		cols[i] = st.Field(i)
	}

	return array.NewRecordBatch(sc, cols, int64(st.Len())), nil
}

// ImportCRecordBatch imports an ArrowArray from C as a record batch. The
// batch is represented as a struct array whose fields are the columns, so
// a schema whose top level is not a struct is rejected. Both structs are
// consumed as per FromC.
func ImportCRecordBatch(arr *CArrowArray, sc *CArrowSchema) (arrow.RecordBatch, error) {
	field, err := importSchema(sc)
	if err != nil {
		return nil, err
	}

	if field.Type.ID() != arrow.STRUCT {
		return nil, fmt.Errorf("%w: record batch import must be of struct type, got %s", ErrInvalidSchema, field.Type)
	}

	return ImportCRecordBatchWithSchema(arr, arrow.NewSchema(field.Type.(*arrow.StructType).Fields(), &field.Metadata))
}

// ReleaseCArrowArray invokes the release callback on the passed in array
// if it has not already run.
func ReleaseCArrowArray(arr *CArrowArray) { releaseArr(arr) }

// ReleaseCArrowSchema invokes the release callback on the passed in schema
// if it has not already run.
func ReleaseCArrowSchema(schema *CArrowSchema) { releaseSchema(schema) }
