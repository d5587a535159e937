package ingest

import (
	"strconv"
	"strings"
)

// Kind discriminates the small tagged-value variant a cell can hold.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
)

// Value is one table cell: a string, an integer, a decimal, or null.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
}

func Null() Value { return Value{Kind: KindNull} }

func String(s string) Value { return Value{Kind: KindString, Str: s} }

func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Text renders the cell for detectors. Null renders empty.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	default:
		return ""
	}
}

// Row is one record, aligned with its Table's Columns.
type Row []Value

// Table is an ordered set of named columns and rows. Column names are
// lower-cased and trimmed before the scanning engine sees them.
type Table struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the table carries no data at all.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// normalizeColumns lower-cases and trims column names in place.
func normalizeColumns(cols []string) []string {
	for i, c := range cols {
		cols[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return cols
}

// coerceCell turns raw text into the closest typed value: integer first,
// then decimal, else string.
func coerceCell(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed != "" {
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return Int(i)
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return Float(f)
		}
	}
	return String(s)
}
