package cdata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Schema flag bits defined by the C Data Interface. They mirror the
// ARROW_FLAG_* constants in abi.h; kept as Go constants so the codec can
// be used and tested without cgo.
const (
	flagDictionaryOrdered int64 = 1
	flagNullable          int64 = 2
	flagMapKeysSorted     int64 = 4
)

// Map from the defined strings to their corresponding arrow.DataType
// interface object instances, for types that don't require params.
var formatToSimpleType = map[string]arrow.DataType{
	"n":   arrow.Null,
	"b":   arrow.FixedWidthTypes.Boolean,
	"c":   arrow.PrimitiveTypes.Int8,
	"C":   arrow.PrimitiveTypes.Uint8,
	"s":   arrow.PrimitiveTypes.Int16,
	"S":   arrow.PrimitiveTypes.Uint16,
	"i":   arrow.PrimitiveTypes.Int32,
	"I":   arrow.PrimitiveTypes.Uint32,
	"l":   arrow.PrimitiveTypes.Int64,
	"L":   arrow.PrimitiveTypes.Uint64,
	"e":   arrow.FixedWidthTypes.Float16,
	"f":   arrow.PrimitiveTypes.Float32,
	"g":   arrow.PrimitiveTypes.Float64,
	"z":   arrow.BinaryTypes.Binary,
	"Z":   arrow.BinaryTypes.LargeBinary,
	"u":   arrow.BinaryTypes.String,
	"U":   arrow.BinaryTypes.LargeString,
	"tdD": arrow.FixedWidthTypes.Date32,
	"tdm": arrow.FixedWidthTypes.Date64,
	"tts": arrow.FixedWidthTypes.Time32s,
	"ttm": arrow.FixedWidthTypes.Time32ms,
	"ttu": arrow.FixedWidthTypes.Time64us,
	"ttn": arrow.FixedWidthTypes.Time64ns,
	"tDs": arrow.FixedWidthTypes.Duration_s,
	"tDm": arrow.FixedWidthTypes.Duration_ms,
	"tDu": arrow.FixedWidthTypes.Duration_us,
	"tDn": arrow.FixedWidthTypes.Duration_ns,
	"tiM": arrow.FixedWidthTypes.MonthInterval,
	"tiD": arrow.FixedWidthTypes.DayTimeInterval,
	"tin": arrow.FixedWidthTypes.MonthDayNanoInterval,
}

// formatOf returns the C Data Interface format token for dt plus any extra
// schema flag bits the type implies (ordered dictionaries, sorted map keys).
// Every supported type has exactly one token; anything else reports
// ErrUnsupportedType so callers can reject a type before any ABI memory is
// allocated.
func formatOf(dt arrow.DataType) (string, int64, error) {
	switch dt := dt.(type) {
	case *arrow.NullType:
		return "n", 0, nil
	case *arrow.BooleanType:
		return "b", 0, nil
	case *arrow.Int8Type:
		return "c", 0, nil
	case *arrow.Uint8Type:
		return "C", 0, nil
	case *arrow.Int16Type:
		return "s", 0, nil
	case *arrow.Uint16Type:
		return "S", 0, nil
	case *arrow.Int32Type:
		return "i", 0, nil
	case *arrow.Uint32Type:
		return "I", 0, nil
	case *arrow.Int64Type:
		return "l", 0, nil
	case *arrow.Uint64Type:
		return "L", 0, nil
	case *arrow.Float16Type:
		return "e", 0, nil
	case *arrow.Float32Type:
		return "f", 0, nil
	case *arrow.Float64Type:
		return "g", 0, nil
	case *arrow.BinaryType:
		return "z", 0, nil
	case *arrow.LargeBinaryType:
		return "Z", 0, nil
	case *arrow.StringType:
		return "u", 0, nil
	case *arrow.LargeStringType:
		return "U", 0, nil
	case *arrow.FixedSizeBinaryType:
		return fmt.Sprintf("w:%d", dt.ByteWidth), 0, nil
	case *arrow.Decimal128Type:
		return fmt.Sprintf("d:%d,%d", dt.Precision, dt.Scale), 0, nil
	case *arrow.Decimal256Type:
		return fmt.Sprintf("d:%d,%d,256", dt.Precision, dt.Scale), 0, nil
	case *arrow.Date32Type:
		return "tdD", 0, nil
	case *arrow.Date64Type:
		return "tdm", 0, nil
	case *arrow.Time32Type:
		switch dt.Unit {
		case arrow.Second:
			return "tts", 0, nil
		case arrow.Millisecond:
			return "ttm", 0, nil
		}
		return "", 0, fmt.Errorf("%w: invalid time unit for time32: %s", ErrUnsupportedType, dt.Unit)
	case *arrow.Time64Type:
		switch dt.Unit {
		case arrow.Microsecond:
			return "ttu", 0, nil
		case arrow.Nanosecond:
			return "ttn", 0, nil
		}
		return "", 0, fmt.Errorf("%w: invalid time unit for time64: %s", ErrUnsupportedType, dt.Unit)
	case *arrow.TimestampType:
		var b strings.Builder
		switch dt.Unit {
		case arrow.Second:
			b.WriteString("tss:")
		case arrow.Millisecond:
			b.WriteString("tsm:")
		case arrow.Microsecond:
			b.WriteString("tsu:")
		case arrow.Nanosecond:
			b.WriteString("tsn:")
		default:
			return "", 0, fmt.Errorf("%w: invalid time unit for timestamp: %s", ErrUnsupportedType, dt.Unit)
		}
		b.WriteString(dt.TimeZone)
		return b.String(), 0, nil
	case *arrow.DurationType:
		switch dt.Unit {
		case arrow.Second:
			return "tDs", 0, nil
		case arrow.Millisecond:
			return "tDm", 0, nil
		case arrow.Microsecond:
			return "tDu", 0, nil
		case arrow.Nanosecond:
			return "tDn", 0, nil
		}
		return "", 0, fmt.Errorf("%w: invalid time unit for duration: %s", ErrUnsupportedType, dt.Unit)
	case *arrow.MonthIntervalType:
		return "tiM", 0, nil
	case *arrow.DayTimeIntervalType:
		return "tiD", 0, nil
	case *arrow.MonthDayNanoIntervalType:
		return "tin", 0, nil
	case *arrow.ListType:
		return "+l", 0, nil
	case *arrow.LargeListType:
		return "+L", 0, nil
	case *arrow.FixedSizeListType:
		return fmt.Sprintf("+w:%d", dt.Len()), 0, nil
	case *arrow.StructType:
		return "+s", 0, nil
	case *arrow.MapType:
		var flags int64
		if dt.KeysSorted {
			flags |= flagMapKeysSorted
		}
		return "+m", flags, nil
	case *arrow.DictionaryType:
		// the dictionary's index type is the parent's format token; the
		// value type travels on the dictionary child schema.
		f, _, err := formatOf(dt.IndexType)
		if err != nil {
			return "", 0, err
		}
		var flags int64
		if dt.Ordered {
			flags |= flagDictionaryOrdered
		}
		return f, flags, nil
	case arrow.UnionType:
		var b strings.Builder
		if dt.Mode() == arrow.SparseMode {
			b.WriteString("+us:")
		} else {
			b.WriteString("+ud:")
		}
		for i, c := range dt.TypeCodes() {
			if i != 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(c)))
		}
		return b.String(), 0, nil
	}
	return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
}

// typeSupported walks dt and its nested/dictionary types and reports the
// first type with no format-token mapping. Exporters call this before any
// ABI struct is allocated.
func typeSupported(dt arrow.DataType) error {
	if _, _, err := formatOf(dt); err != nil {
		return err
	}

	switch dt := dt.(type) {
	case *arrow.DictionaryType:
		return typeSupported(dt.ValueType)
	case arrow.NestedType:
		for _, f := range dt.Fields() {
			if err := typeSupported(f.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeFormat is the left inverse of formatOf: it parses a received
// format token into the data type it denotes, given the already-imported
// child fields of the node and its schema flags. Dictionary types are not
// assembled here; the caller wraps the decoded index type once it has
// imported the dictionary child.
func decodeFormat(f string, children []arrow.Field, flags int64) (arrow.DataType, error) {
	if f == "" {
		return nil, fmt.Errorf("%w: empty format string", ErrMalformedFormat)
	}

	if dt, ok := formatToSimpleType[f]; ok {
		if len(children) != 0 {
			return nil, fmt.Errorf("%w: format '%s' admits no children, got %d", ErrChildArity, f, len(children))
		}
		return dt, nil
	}

	// handle types with params via colon
	if strings.ContainsRune(f, ':') {
		typs := strings.SplitN(f, ":", 2)
		switch typs[0] {
		case "tss", "tsm", "tsu", "tsn":
			unit := map[string]arrow.TimeUnit{
				"tss": arrow.Second, "tsm": arrow.Millisecond,
				"tsu": arrow.Microsecond, "tsn": arrow.Nanosecond,
			}[typs[0]]
			return &arrow.TimestampType{Unit: unit, TimeZone: typs[1]}, nil
		case "w": // fixed size binary is "w:##" where ## is the byteWidth
			byteWidth, err := strconv.Atoi(typs[1])
			if err != nil {
				return nil, fmt.Errorf("%w: invalid fixed size binary spec '%s'", ErrMalformedFormat, f)
			}
			return &arrow.FixedSizeBinaryType{ByteWidth: byteWidth}, nil
		case "d": // decimal is d:<precision>,<scale>[,<bitsize>], 128 if left out
			return decodeDecimal(f, typs[1])
		}
	}

	if f[0] == '+' && len(f) > 1 { // types with children
		return decodeNested(f, children, flags)
	}

	return nil, fmt.Errorf("%w: unrecognized format '%s'", ErrMalformedFormat, f)
}

func decodeDecimal(f, props string) (arrow.DataType, error) {
	propList := strings.Split(props, ",")
	bitwidth := 128

	if len(propList) < 2 || len(propList) > 3 {
		return nil, fmt.Errorf("%w: invalid decimal spec '%s': wrong number of properties", ErrMalformedFormat, f)
	}
	if len(propList) == 3 {
		var err error
		if bitwidth, err = strconv.Atoi(propList[2]); err != nil {
			return nil, fmt.Errorf("%w: could not parse decimal bitwidth in '%s'", ErrMalformedFormat, f)
		}
	}

	precision, err := strconv.Atoi(propList[0])
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse decimal precision in '%s'", ErrMalformedFormat, f)
	}
	scale, err := strconv.Atoi(propList[1])
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse decimal scale in '%s'", ErrMalformedFormat, f)
	}

	switch bitwidth {
	case 128:
		return &arrow.Decimal128Type{Precision: int32(precision), Scale: int32(scale)}, nil
	case 256:
		return &arrow.Decimal256Type{Precision: int32(precision), Scale: int32(scale)}, nil
	}
	return nil, fmt.Errorf("%w: only decimal128 and decimal256 are supported, got '%s'", ErrMalformedFormat, f)
}

func decodeNested(f string, children []arrow.Field, flags int64) (arrow.DataType, error) {
	oneChild := func() error {
		if len(children) != 1 {
			return fmt.Errorf("%w: format '%s' requires exactly 1 child, got %d", ErrChildArity, f, len(children))
		}
		return nil
	}

	switch f[1] {
	case 'l': // list
		if err := oneChild(); err != nil {
			return nil, err
		}
		return arrow.ListOfField(children[0]), nil
	case 'L': // large list
		if err := oneChild(); err != nil {
			return nil, err
		}
		return arrow.LargeListOfField(children[0]), nil
	case 'w': // fixed size list is +w:# where # is the list size
		if err := oneChild(); err != nil {
			return nil, err
		}
		parts := strings.SplitN(f, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: missing fixed size list length in '%s'", ErrMalformedFormat, f)
		}
		listSize, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid fixed size list length in '%s'", ErrMalformedFormat, f)
		}
		return arrow.FixedSizeListOfField(int32(listSize), children[0]), nil
	case 's': // struct
		return arrow.StructOf(children...), nil
	case 'm': // map type is basically a list of structs
		if err := oneChild(); err != nil {
			return nil, err
		}
		st, ok := children[0].Type.(*arrow.StructType)
		if !ok || st.NumFields() != 2 {
			return nil, fmt.Errorf("%w: map entries must be a struct of two fields", ErrChildArity)
		}
		dt := arrow.MapOf(st.Field(0).Type, st.Field(1).Type)
		dt.KeysSorted = flags&flagMapKeysSorted != 0
		return dt, nil
	case 'u': // union is +us:<codes> or +ud:<codes>
		return decodeUnion(f, children)
	}

	return nil, fmt.Errorf("%w: unrecognized format '%s'", ErrMalformedFormat, f)
}

func decodeUnion(f string, children []arrow.Field) (arrow.DataType, error) {
	var mode arrow.UnionMode
	switch {
	case strings.HasPrefix(f, "+us:"):
		mode = arrow.SparseMode
	case strings.HasPrefix(f, "+ud:"):
		mode = arrow.DenseMode
	default:
		return nil, fmt.Errorf("%w: invalid union format '%s'", ErrMalformedFormat, f)
	}

	codes := strings.Split(f[len("+us:"):], ",")
	typeCodes := make([]arrow.UnionTypeCode, 0, len(codes))
	for _, c := range codes {
		v, err := strconv.ParseInt(c, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid union type code '%s'", ErrMalformedFormat, c)
		}
		if v < 0 {
			return nil, fmt.Errorf("%w: negative type code in '%s'", ErrMalformedFormat, f)
		}
		typeCodes = append(typeCodes, arrow.UnionTypeCode(v))
	}

	if len(children) != len(typeCodes) {
		return nil, fmt.Errorf("%w: union '%s' requires %d children, got %d", ErrChildArity, f, len(typeCodes), len(children))
	}

	return arrow.UnionOf(mode, children, typeCodes), nil
}

// hasValidityBitmap reports whether arrays of the given type carry a
// leading validity bitmap buffer in the ABI layout. Null and union arrays
// do not.
func hasValidityBitmap(id arrow.Type) bool {
	switch id {
	case arrow.NULL, arrow.DENSE_UNION, arrow.SPARSE_UNION:
		return false
	}
	return true
}
