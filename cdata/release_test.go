//go:build cgo
// +build cgo

package cdata

import (
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/memory/mallocator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseReturnsOwnership(t *testing.T) {
	mem := memory.NewCheckedAllocator(mallocator.NewMallocator())
	defer mem.AssertSize(t, 0)

	arr := buildInt32WithNull(t, mem)

	var (
		carr CArrowArray
		csch CArrowSchema
	)
	require.NoError(t, ExportToC(arr, &carr, &csch))

	// the export holds its own reference, dropping ours must not free
	arr.Release()
	assert.False(t, ArrayIsReleased(&carr))

	ReleaseCArrowArray(&carr)
	ReleaseCArrowSchema(&csch)

	assert.True(t, ArrayIsReleased(&carr))
	assert.True(t, SchemaIsReleased(&csch))
}

func TestImportReleaseRunsProducerCallback(t *testing.T) {
	mem := memory.NewCheckedAllocator(mallocator.NewMallocator())

	bldr := array.NewInt32Builder(mem)
	bldr.AppendValues([]int32{1, 2, 3}, nil)
	arr := bldr.NewArray()
	bldr.Release()

	var carr CArrowArray
	require.NoError(t, ExportToC(arr, &carr, nil))
	arr.Release()

	imported, err := ImportCArrayWithType(&carr, arrow.PrimitiveTypes.Int32)
	require.NoError(t, err)

	// dropping the last Go-side reference must run the producer's release
	// callback and hand every exported buffer back to the allocator
	imported.Release()
	mem.AssertSize(t, 0)
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	mem := memory.NewCheckedAllocator(mallocator.NewMallocator())
	defer mem.AssertSize(t, 0)

	arr := buildInt32WithNull(t, mem)

	var (
		carr CArrowArray
		csch CArrowSchema
	)
	require.NoError(t, ExportToC(arr, &carr, &csch))
	arr.Release()

	ReleaseCArrowArray(&carr)
	ReleaseCArrowArray(&carr)
	ReleaseCArrowSchema(&csch)
	ReleaseCArrowSchema(&csch)

	assert.True(t, ArrayIsReleased(&carr))
	assert.True(t, SchemaIsReleased(&csch))
}

func TestImportReleasedSchema(t *testing.T) {
	var csch CArrowSchema
	require.NoError(t, ExportField(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int32}, &csch))

	ReleaseCArrowSchema(&csch)

	_, err := ImportCArrowField(&csch)
	assert.ErrorIs(t, err, ErrReleasedSchema)
}

func TestImportReleasedArray(t *testing.T) {
	mem := memory.NewCheckedAllocator(mallocator.NewMallocator())
	defer mem.AssertSize(t, 0)

	arr := buildInt32WithNull(t, mem)

	var carr CArrowArray
	require.NoError(t, ExportToC(arr, &carr, nil))
	arr.Release()
	ReleaseCArrowArray(&carr)

	_, err := ImportCArrayWithType(&carr, arrow.PrimitiveTypes.Int32)
	assert.ErrorIs(t, err, ErrUseAfterRelease)
}

func TestImportStructuralMismatch(t *testing.T) {
	tests := []struct {
		name string
		as   arrow.DataType
	}{
		// a string array needs 3 buffers, an int32 export has 2
		{"wrong_buffer_count", arrow.BinaryTypes.String},
		// a struct needs child arrays, an int32 export has none
		{"wrong_child_count", arrow.StructOf(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int32})},
		// a dictionary import needs a dictionary values array
		{"missing_dictionary", &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.NewCheckedAllocator(mallocator.NewMallocator())
			defer mem.AssertSize(t, 0)

			arr := buildInt32WithNull(t, mem)

			var carr CArrowArray
			require.NoError(t, ExportToC(arr, &carr, nil))
			arr.Release()

			_, err := ImportCArrayWithType(&carr, tt.as)
			assert.ErrorIs(t, err, ErrStructuralMismatch)

			// a failed import still consumed the struct and released the
			// foreign memory
			assert.True(t, ArrayIsReleased(&carr))
		})
	}
}

func TestImportBoundsViolation(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(*CArrowArray)
	}{
		{"negative_length", func(a *CArrowArray) { setCArrLength(a, -1) }},
		{"negative_offset", func(a *CArrowArray) { setCArrOffset(a, -3) }},
		{"null_count_exceeds_length", func(a *CArrowArray) { setCArrNullCount(a, 17) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.NewCheckedAllocator(mallocator.NewMallocator())
			defer mem.AssertSize(t, 0)

			arr := buildInt32WithNull(t, mem)

			var carr CArrowArray
			require.NoError(t, ExportToC(arr, &carr, nil))
			arr.Release()

			tt.tamper(&carr)

			_, err := ImportCArrayWithType(&carr, arrow.PrimitiveTypes.Int32)
			assert.ErrorIs(t, err, ErrBoundsViolation)
			assert.True(t, ArrayIsReleased(&carr))
		})
	}
}

func TestConcurrentExportImport(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			mem := memory.NewCheckedAllocator(mallocator.NewMallocator())
			defer mem.AssertSize(t, 0)

			bldr := array.NewInt64Builder(mem)
			for j := 0; j < 100; j++ {
				bldr.Append(int64(id*1000 + j))
			}
			arr := bldr.NewArray()
			bldr.Release()

			var (
				carr CArrowArray
				csch CArrowSchema
			)
			if err := ExportToC(arr, &carr, &csch); err != nil {
				t.Errorf("export: %v", err)
				return
			}
			arr.Release()

			_, imported, err := FromC(&csch, &carr)
			if err != nil {
				t.Errorf("import: %v", err)
				return
			}

			if imported.Len() != 100 {
				t.Errorf("expected 100 rows, got %d", imported.Len())
			}
			imported.Release()
		}(i)
	}
	wg.Wait()
}
