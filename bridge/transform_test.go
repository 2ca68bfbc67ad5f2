//go:build cgo
// +build cgo

package bridge

import (
	"os"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory/mallocator"
)

func buildTestBatch() arrow.RecordBatch {
	mem := mallocator.NewMallocator()

	sc := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "age", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	bldr := array.NewRecordBuilder(mem, sc)
	defer bldr.Release()

	bldr.Field(0).(*array.StringBuilder).AppendValues([]string{"alice", "bob", "carl"}, nil)
	bldr.Field(1).(*array.Int64Builder).AppendValues([]int64{34, 21, 45}, nil)

	return bldr.NewRecordBatch()
}

func TestTransformRecordBatch(t *testing.T) {
	libPath := os.Getenv("ARROW_ENGINE_LIB")
	if libPath == "" {
		t.Skip("ARROW_ENGINE_LIB not set, skipping test")
	}

	eng, err := LoadEngine(libPath)
	if err != nil {
		t.Fatalf("Failed to load engine: %v", err)
	}

	rb := buildTestBatch()
	defer rb.Release()

	out, err := eng.TransformRecordBatch(rb)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	defer out.Release()

	if out.NumRows() == 0 {
		t.Error("Expected transformed batch to have rows")
	}

	t.Logf("Transformed batch: %d rows, %d cols", out.NumRows(), out.NumCols())
}
