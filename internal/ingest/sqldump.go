package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// insertStmtRe tolerantly locates INSERT INTO ... VALUES ...; statements,
// capturing the table name, the optional column list, and the raw VALUES
// payload. It is deliberately not a SQL grammar; the payload is split by the
// quote-aware state machine below.
var insertStmtRe = regexp.MustCompile(
	"(?is)INSERT\\s+INTO\\s+([`\"\\[]?[\\w.]+[`\"\\]]?)\\s*(?:\\(([^)]*)\\))?\\s*VALUES\\s*(.+?);",
)

// ExtractSQLInserts recovers tabular rows from raw SQL dump text. Malformed
// SQL never fails: at worst zero rows come back. Rows whose field count does
// not match the declared column list get synthesized positional column names
// rather than being dropped.
func ExtractSQLInserts(sqlText string) Table {
	if sqlText == "" {
		return Table{}
	}

	type namedRow struct {
		cols []string
		vals []Value
	}
	var rows []namedRow

	for _, m := range insertStmtRe.FindAllStringSubmatch(sqlText, -1) {
		var cols []string
		if m[2] != "" {
			cols = parseColumnList(m[2])
		}

		for _, tuple := range splitValueTuples(m[3]) {
			fields := splitTupleFields(tuple)
			vals := make([]Value, len(fields))
			for i, f := range fields {
				vals[i] = coerceSQLValue(f)
			}

			if len(cols) > 0 && len(cols) == len(vals) {
				rows = append(rows, namedRow{cols: cols, vals: vals})
				continue
			}
			generic := make([]string, len(vals))
			for i := range vals {
				generic[i] = fmt.Sprintf("col_%d", i+1)
			}
			rows = append(rows, namedRow{cols: generic, vals: vals})
		}
	}

	if len(rows) == 0 {
		return Table{}
	}

	// Union of column names in first-seen order; missing cells become null.
	var columns []string
	index := make(map[string]int)
	for _, r := range rows {
		for _, c := range r.cols {
			if _, ok := index[c]; !ok {
				index[c] = len(columns)
				columns = append(columns, c)
			}
		}
	}

	table := Table{Columns: columns}
	for _, r := range rows {
		row := make(Row, len(columns))
		for i := range row {
			row[i] = Null()
		}
		for i, c := range r.cols {
			row[index[c]] = r.vals[i]
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func parseColumnList(raw string) []string {
	var cols []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.Trim(strings.TrimSpace(c), "`\"[] ")
		if c != "" {
			cols = append(cols, strings.ToLower(c))
		}
	}
	return cols
}

// splitValueTuples walks the VALUES payload character by character, tracking
// parenthesis depth outside string literals and SQL's doubled-quote escape
// inside them. A tuple is the span between a depth 0->1 transition and the
// matching 1->0 transition.
func splitValueTuples(payload string) []string {
	var out []string
	depth := 0
	start := -1
	inStr := false
	var quote byte

	for i := 0; i < len(payload); i++ {
		ch := payload[i]

		if inStr {
			if ch == quote {
				if i+1 < len(payload) && payload[i+1] == quote {
					i++ // doubled quote stays inside the literal
				} else {
					inStr = false
				}
			}
			continue
		}

		switch ch {
		case '\'', '"':
			inStr = true
			quote = ch
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				out = append(out, payload[start:i])
				start = -1
			}
		}
	}
	return out
}

// splitTupleFields splits one tuple's content on top-level commas using the
// same quote-escape logic. The last field is flushed at end of input even
// without a trailing comma.
func splitTupleFields(tuple string) []string {
	var fields []string
	var cur strings.Builder
	inStr := false
	var quote byte

	for i := 0; i < len(tuple); i++ {
		ch := tuple[i]

		if inStr {
			cur.WriteByte(ch)
			if ch == quote {
				if i+1 < len(tuple) && tuple[i+1] == quote {
					cur.WriteByte(tuple[i+1])
					i++
				} else {
					inStr = false
				}
			}
			continue
		}

		switch ch {
		case '\'', '"':
			inStr = true
			quote = ch
			cur.WriteByte(ch)
		case ',':
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, strings.TrimSpace(cur.String()))
	}
	return fields
}

// coerceSQLValue maps one raw SQL literal to a typed cell: NULL, quoted
// string (doubled-quote escapes collapsed), integer, decimal, or bare string.
func coerceSQLValue(raw string) Value {
	v := strings.TrimSpace(raw)
	if v == "" {
		return String("")
	}
	if strings.EqualFold(v, "NULL") {
		return Null()
	}

	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			inner := v[1 : len(v)-1]
			inner = strings.ReplaceAll(inner, "''", "'")
			inner = strings.ReplaceAll(inner, `""`, `"`)
			return String(inner)
		}
	}

	if intLitRe.MatchString(v) || floatLitRe.MatchString(v) {
		return coerceCell(v)
	}
	return String(v)
}

var (
	intLitRe   = regexp.MustCompile(`^-?\d+$`)
	floatLitRe = regexp.MustCompile(`^-?\d+\.\d+$`)
)
