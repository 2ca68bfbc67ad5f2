//go:build cgo
// +build cgo

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory/mallocator"

	"github.com/isesword/arrow-cdata-bridge/bridge"
	"github.com/isesword/arrow-cdata-bridge/cdata"
)

func main() {
	fmt.Println("=== Arrow C Data Interface round trip ===")
	if err := demoRoundTrip(); err != nil {
		log.Fatalf("Round trip failed: %v", err)
	}

	fmt.Println("\n=== Empty array export ===")
	if err := demoCreateEmpty(); err != nil {
		log.Fatalf("Empty export failed: %v", err)
	}

	// the engine demo only runs when a native library is available
	if os.Getenv("ARROW_ENGINE_LIB") != "" {
		fmt.Println("\n=== Native engine transform ===")
		if err := demoEngine(); err != nil {
			log.Fatalf("Engine transform failed: %v", err)
		}
	}

	fmt.Println("\nAll demos passed")
}

func demoRoundTrip() error {
	mem := mallocator.NewMallocator()

	bldr := array.NewInt32Builder(mem)
	defer bldr.Release()
	bldr.Append(1)
	bldr.AppendNull()
	bldr.Append(3)

	arr := bldr.NewArray()
	defer arr.Release()
	fmt.Printf("source:   %v\n", arr)

	var (
		carr cdata.CArrowArray
		csch cdata.CArrowSchema
	)
	if err := cdata.ExportToC(arr, &carr, &csch); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	field, imported, err := cdata.FromC(&csch, &carr)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer imported.Release()

	fmt.Printf("imported: %v (type %s, nulls %d)\n", imported, field.Type, imported.NullN())
	return nil
}

func demoCreateEmpty() error {
	mem := mallocator.NewMallocator()

	var (
		carr cdata.CArrowArray
		csch cdata.CArrowSchema
	)
	if err := cdata.CreateEmpty(mem, arrow.ListOf(arrow.BinaryTypes.String), &carr, &csch); err != nil {
		return fmt.Errorf("create: %w", err)
	}

	field, imported, err := cdata.FromC(&csch, &carr)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer imported.Release()

	fmt.Printf("empty %s array imported with %d rows\n", field.Type, imported.Len())
	return nil
}

func demoEngine() error {
	eng, err := bridge.LoadEngine("")
	if err != nil {
		return fmt.Errorf("load engine: %w", err)
	}

	version, err := eng.EngineVersion()
	if err != nil {
		return fmt.Errorf("engine version: %w", err)
	}
	fmt.Printf("engine version: %s\n", version)

	mem := mallocator.NewMallocator()
	sc := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "age", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	bldr := array.NewRecordBuilder(mem, sc)
	defer bldr.Release()
	bldr.Field(0).(*array.StringBuilder).AppendValues([]string{"alice", "bob", "carl"}, nil)
	bldr.Field(1).(*array.Int64Builder).AppendValues([]int64{34, 21, 45}, nil)

	rb := bldr.NewRecordBatch()
	defer rb.Release()

	out, err := eng.TransformRecordBatch(rb)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	defer out.Release()

	fmt.Printf("transformed batch: %d rows, %d cols\n", out.NumRows(), out.NumCols())
	return nil
}
