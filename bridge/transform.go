//go:build cgo
// +build cgo

package bridge

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/isesword/arrow-cdata-bridge/cdata"
)

// TransformRecordBatch runs rb through the engine and imports the result.
// The input is exported zero-copy; its buffers must come from an allocator
// the Go garbage collector won't move (memory/mallocator). On success the
// engine owns the exported input and releases it itself; the returned
// batch owns the engine's output buffers and releasing it hands them back.
func (e *Engine) TransformRecordBatch(rb arrow.RecordBatch) (arrow.RecordBatch, error) {
	var (
		inSchema, outSchema cdata.CArrowSchema
		inArr, outArr       cdata.CArrowArray
	)

	if err := cdata.ExportArrowRecordBatch(rb, &inArr, &inSchema); err != nil {
		return nil, err
	}

	if err := e.TransformArrow(&inSchema, &inArr, &outSchema, &outArr); err != nil {
		cdata.ReleaseCArrowSchema(&inSchema)
		cdata.ReleaseCArrowArray(&inArr)
		return nil, err
	}

	return cdata.ImportCRecordBatch(&outArr, &outSchema)
}
