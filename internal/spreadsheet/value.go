package spreadsheet

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/xuri/excelize/v2"
)

// MaxTextLength is the longest string a cell holds, in UTF-16 code units.
const MaxTextLength = excelize.TotalCellChars

// UnsupportedMarker replaces a cell value that has no Value variant on read.
const UnsupportedMarker = "[Unsupported Type]"

// Kind identifies a Value variant
type Kind int

const (
	KindEmpty Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a typed cell value. The set of implementations is closed:
// Empty, Bool, Int, Float and Text.
type Value interface {
	Kind() Kind
	sealed()
}

// Empty is an absent or blank cell.
type Empty struct{}

// Bool is a boolean cell.
type Bool bool

// Int is an integral numeric cell.
type Int int64

// Float is a non-integral numeric cell, or one written as a float.
type Float float64

// Text is a string cell.
type Text string

func (Empty) Kind() Kind { return KindEmpty }
func (Bool) Kind() Kind  { return KindBool }
func (Int) Kind() Kind   { return KindInt }
func (Float) Kind() Kind { return KindFloat }
func (Text) Kind() Kind  { return KindText }

func (Empty) sealed() {}
func (Bool) sealed()  {}
func (Int) sealed()   {}
func (Float) sealed() {}
func (Text) sealed()  {}

// IsEmpty reports whether v is nil or the Empty variant.
func IsEmpty(v Value) bool {
	return v == nil || v.Kind() == KindEmpty
}

// ToGeneric converts a Value to its boundary representation:
// nil, bool, int64, float64 or string.
func ToGeneric(v Value) any {
	switch x := v.(type) {
	case nil, Empty:
		return nil
	case Bool:
		return bool(x)
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case Text:
		return string(x)
	default:
		panic(fmt.Sprintf("spreadsheet: unknown Value implementation %T", v))
	}
}

// FromGeneric converts a loosely typed value into a Value. Anything that is not
// null, a boolean, a number or a string fails with ErrUnsupportedValueType.
func FromGeneric(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Empty{}, nil
	case Text:
		if err := checkTextLength(x); err != nil {
			return nil, err
		}
		return x, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		if err := checkTextLength(Text(x)); err != nil {
			return nil, err
		}
		return Text(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return Int(x), nil
	case uint16:
		return Int(x), nil
	case uint32:
		return Int(x), nil
	case uint64:
		return uintValue(x)
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: malformed number %q", ErrUnsupportedValueType, x.String())
		}
		return floatValue(f)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValueType, raw)
	}
}

// checkTextLength rejects text the workbook would truncate on write.
func checkTextLength(t Text) error {
	n := 0
	for _, r := range t {
		n += utf16.RuneLen(r)
	}
	if n > MaxTextLength {
		return fmt.Errorf("%w: text of %d characters exceeds the cell limit of %d", ErrUnsupportedValueType, n, MaxTextLength)
	}
	return nil
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows a 64-bit signed integer", ErrUnsupportedValueType, u)
	}
	return Int(int64(u)), nil
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v is not a finite number", ErrUnsupportedValueType, f)
	}
	return Float(f), nil
}

// DecodeMatrix converts a generic two-dimensional array into typed values.
// The whole matrix is converted before anything is returned, so a caller that
// writes the result never writes a prefix of a matrix that contains a bad cell.
func DecodeMatrix(raw any) ([][]Value, error) {
	switch m := raw.(type) {
	case [][]Value:
		for r, row := range m {
			for c, v := range row {
				if t, ok := v.(Text); ok {
					if err := checkTextLength(t); err != nil {
						return nil, &ValueError{
							Operation: "decode",
							Location:  fmt.Sprintf("row %d, column %d", r+1, c+1),
							Value:     v,
							Cause:     err,
						}
					}
				}
			}
		}
		return m, nil
	case [][]any:
		out := make([][]Value, len(m))
		for r, row := range m {
			decoded, err := decodeRow(r, row)
			if err != nil {
				return nil, err
			}
			out[r] = decoded
		}
		return out, nil
	case []any:
		out := make([][]Value, len(m))
		for r, rawRow := range m {
			row, ok := rawRow.([]any)
			if !ok {
				return nil, &ValueError{
					Operation: "decode",
					Location:  fmt.Sprintf("row %d", r+1),
					Value:     rawRow,
					Cause:     fmt.Errorf("%w: each row must be an array", ErrUnsupportedValueType),
				}
			}
			decoded, err := decodeRow(r, row)
			if err != nil {
				return nil, err
			}
			out[r] = decoded
		}
		return out, nil
	default:
		return nil, &ValueError{
			Operation: "decode",
			Location:  "values",
			Value:     raw,
			Cause:     fmt.Errorf("%w: values must be a two-dimensional array", ErrUnsupportedValueType),
		}
	}
}

func decodeRow(r int, row []any) ([]Value, error) {
	out := make([]Value, len(row))
	for c, cell := range row {
		v, err := FromGeneric(cell)
		if err != nil {
			return nil, &ValueError{
				Operation: "decode",
				Location:  fmt.Sprintf("row %d, column %d", r+1, c+1),
				Value:     cell,
				Cause:     err,
			}
		}
		out[c] = v
	}
	return out, nil
}

// EncodeMatrix converts typed values to their generic representation.
func EncodeMatrix(m [][]Value) [][]any {
	out := make([][]any, len(m))
	for r, row := range m {
		out[r] = make([]any, len(row))
		for c, v := range row {
			out[r][c] = ToGeneric(v)
		}
	}
	return out
}

// FormatToken renders a value the way sparse output shows it.
func FormatToken(v Value) string {
	switch x := v.(type) {
	case nil, Empty:
		return ""
	case Bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		return strconv.FormatFloat(float64(x), 'f', -1, 64)
	case Text:
		return string(x)
	default:
		return UnsupportedMarker
	}
}

// parseNumber interprets a raw numeric cell value, preferring an integer.
func parseNumber(raw string) (Value, bool) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Int(i), true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Float(f), true
	}
	return nil, false
}

// formatFloat renders a float so that it reads back as a Float, never an Int.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
