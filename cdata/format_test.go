package cdata

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		dt  arrow.DataType
		fmt string
	}{
		{arrow.Null, "n"},
		{arrow.FixedWidthTypes.Boolean, "b"},
		{arrow.PrimitiveTypes.Int8, "c"},
		{arrow.PrimitiveTypes.Uint8, "C"},
		{arrow.PrimitiveTypes.Int16, "s"},
		{arrow.PrimitiveTypes.Uint16, "S"},
		{arrow.PrimitiveTypes.Int32, "i"},
		{arrow.PrimitiveTypes.Uint32, "I"},
		{arrow.PrimitiveTypes.Int64, "l"},
		{arrow.PrimitiveTypes.Uint64, "L"},
		{arrow.FixedWidthTypes.Float16, "e"},
		{arrow.PrimitiveTypes.Float32, "f"},
		{arrow.PrimitiveTypes.Float64, "g"},
		{arrow.BinaryTypes.Binary, "z"},
		{arrow.BinaryTypes.LargeBinary, "Z"},
		{arrow.BinaryTypes.String, "u"},
		{arrow.BinaryTypes.LargeString, "U"},
		{&arrow.FixedSizeBinaryType{ByteWidth: 16}, "w:16"},
		{&arrow.Decimal128Type{Precision: 38, Scale: 10}, "d:38,10"},
		{&arrow.Decimal256Type{Precision: 76, Scale: 20}, "d:76,20,256"},
		{arrow.FixedWidthTypes.Date32, "tdD"},
		{arrow.FixedWidthTypes.Date64, "tdm"},
		{arrow.FixedWidthTypes.Time32s, "tts"},
		{arrow.FixedWidthTypes.Time32ms, "ttm"},
		{arrow.FixedWidthTypes.Time64us, "ttu"},
		{arrow.FixedWidthTypes.Time64ns, "ttn"},
		{&arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, "tsu:UTC"},
		{&arrow.TimestampType{Unit: arrow.Second}, "tss:"},
		{arrow.FixedWidthTypes.Duration_ms, "tDm"},
		{arrow.FixedWidthTypes.MonthInterval, "tiM"},
		{arrow.FixedWidthTypes.DayTimeInterval, "tiD"},
		{arrow.FixedWidthTypes.MonthDayNanoInterval, "tin"},
		{arrow.ListOf(arrow.PrimitiveTypes.Int32), "+l"},
		{arrow.LargeListOf(arrow.BinaryTypes.String), "+L"},
		{arrow.FixedSizeListOf(3, arrow.PrimitiveTypes.Float64), "+w:3"},
		{arrow.StructOf(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int8}), "+s"},
		{arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int32), "+m"},
		{arrow.SparseUnionOf(
			[]arrow.Field{{Name: "i", Type: arrow.PrimitiveTypes.Int32}, {Name: "s", Type: arrow.BinaryTypes.String}},
			[]arrow.UnionTypeCode{0, 1}), "+us:0,1"},
		{arrow.DenseUnionOf(
			[]arrow.Field{{Name: "i", Type: arrow.PrimitiveTypes.Int32}, {Name: "s", Type: arrow.BinaryTypes.String}},
			[]arrow.UnionTypeCode{5, 9}), "+ud:5,9"},
	}

	for _, tt := range tests {
		t.Run(tt.fmt, func(t *testing.T) {
			f, _, err := formatOf(tt.dt)
			require.NoError(t, err)
			assert.Equal(t, tt.fmt, f)
		})
	}
}

func TestFormatRoundTripLeafTypes(t *testing.T) {
	for _, dt := range []arrow.DataType{
		arrow.Null,
		arrow.FixedWidthTypes.Boolean,
		arrow.PrimitiveTypes.Int32,
		arrow.PrimitiveTypes.Uint64,
		arrow.PrimitiveTypes.Float64,
		arrow.BinaryTypes.String,
		arrow.BinaryTypes.LargeBinary,
		&arrow.FixedSizeBinaryType{ByteWidth: 7},
		&arrow.Decimal128Type{Precision: 12, Scale: 2},
		&arrow.Decimal256Type{Precision: 40, Scale: 4},
		&arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "America/New_York"},
		arrow.FixedWidthTypes.Duration_us,
		arrow.FixedWidthTypes.Date32,
	} {
		f, flags, err := formatOf(dt)
		require.NoError(t, err)

		got, err := decodeFormat(f, nil, flags)
		require.NoError(t, err)
		assert.True(t, arrow.TypeEqual(dt, got), "round trip of %s gave %s", dt, got)
	}
}

func TestDecodeFormatNested(t *testing.T) {
	itemField := arrow.Field{Name: "item", Type: arrow.PrimitiveTypes.Int32, Nullable: true}

	dt, err := decodeFormat("+l", []arrow.Field{itemField}, 0)
	require.NoError(t, err)
	assert.Equal(t, arrow.LIST, dt.ID())
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int32, dt.(*arrow.ListType).Elem()))

	dt, err = decodeFormat("+w:4", []arrow.Field{itemField}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(4), dt.(*arrow.FixedSizeListType).Len())

	dt, err = decodeFormat("+s", []arrow.Field{
		{Name: "a", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "b", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, arrow.STRUCT, dt.ID())
	assert.Equal(t, 2, dt.(*arrow.StructType).NumFields())

	entries := arrow.Field{Name: "entries", Type: arrow.StructOf(
		arrow.Field{Name: "key", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "value", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	)}
	dt, err = decodeFormat("+m", []arrow.Field{entries}, flagMapKeysSorted)
	require.NoError(t, err)
	assert.True(t, dt.(*arrow.MapType).KeysSorted)

	dt, err = decodeFormat("+ud:2,7", []arrow.Field{
		{Name: "i", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, []arrow.UnionTypeCode{2, 7}, dt.(*arrow.DenseUnionType).TypeCodes())
}

func TestDecodeFormatMalformed(t *testing.T) {
	child := []arrow.Field{{Name: "item", Type: arrow.PrimitiveTypes.Int32}}

	for _, f := range []string{
		"",
		"x",
		"t",
		"w:abc",
		"d:10",
		"d:10,2,99",
		"d:a,b",
		"+",
		"+z",
		"+us:1,x",
	} {
		var children []arrow.Field
		if len(f) > 1 && f[0] == '+' {
			children = child
		}
		_, err := decodeFormat(f, children, 0)
		assert.ErrorIs(t, err, ErrMalformedFormat, "format %q", f)
	}
}

func TestDecodeFormatChildArity(t *testing.T) {
	child := []arrow.Field{{Name: "item", Type: arrow.PrimitiveTypes.Int32}}

	// leaf token with children
	_, err := decodeFormat("i", child, 0)
	assert.ErrorIs(t, err, ErrChildArity)

	// list token without a child
	_, err = decodeFormat("+l", nil, 0)
	assert.ErrorIs(t, err, ErrChildArity)

	// map entries must be a two-field struct
	_, err = decodeFormat("+m", child, 0)
	assert.ErrorIs(t, err, ErrChildArity)

	// union with fewer children than type codes
	_, err = decodeFormat("+us:0,1", child, 0)
	assert.ErrorIs(t, err, ErrChildArity)
}

func TestFormatOfUnsupported(t *testing.T) {
	_, _, err := formatOf(arrow.BinaryTypes.StringView)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	// nested occurrences are caught by the recursive check
	err = typeSupported(arrow.ListOf(arrow.BinaryTypes.StringView))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	err = typeSupported(arrow.StructOf(arrow.Field{Name: "v", Type: arrow.BinaryTypes.BinaryView}))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFormatFlags(t *testing.T) {
	m := arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int32)
	m.KeysSorted = true
	_, flags, err := formatOf(m)
	require.NoError(t, err)
	assert.EqualValues(t, flagMapKeysSorted, flags)

	dict := &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Int16,
		ValueType: arrow.BinaryTypes.String,
		Ordered:   true,
	}
	f, flags, err := formatOf(dict)
	require.NoError(t, err)
	// the parent carries the index type's token; the value type travels
	// on the dictionary child schema
	assert.Equal(t, "s", f)
	assert.EqualValues(t, flagDictionaryOrdered, flags)
}
