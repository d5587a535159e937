package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// supportedExtensions lists the file types the reader understands.
var supportedExtensions = map[string]bool{
	".csv":     true,
	".json":    true,
	".jsonl":   true,
	".txt":     true,
	".sql":     true,
	".parquet": true,
}

// SupportedFile reports whether a path has an ingestible extension.
func SupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Reader turns files into Tables. Parse failures are reported as errors so a
// directory walk can skip the file; callers that scan a single file treat an
// error as an empty table.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a file reader.
func NewReader(logger *zap.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadFile parses the file according to its extension.
func (r *Reader) ReadFile(path string) (Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return Table{}, fmt.Errorf("unsupported file type %q", ext)
	}

	var (
		table Table
		err   error
	)
	switch ext {
	case ".csv":
		table, err = r.readDelimited(path, ',')
	case ".txt":
		table, err = r.readDelimited(path, '\t')
	case ".json", ".jsonl":
		table, err = r.readJSON(path)
	case ".sql":
		table, err = r.readSQL(path)
	case ".parquet":
		table, err = r.readParquet(path)
	}
	if err != nil {
		r.logger.Debug("File parse failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return Table{}, err
	}

	table.Columns = normalizeColumns(table.Columns)
	return table, nil
}

func (r *Reader) readDelimited(path string, comma rune) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = comma

	header, err := cr.Read()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read header: %w", err)
	}

	table := Table{Columns: header}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("malformed record: %w", err)
		}
		row := make(Row, len(record))
		for i, cell := range record {
			row[i] = coerceCell(cell)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func (r *Reader) readJSON(path string) (Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	raw := strings.TrimSpace(string(content))
	if raw == "" {
		return Table{}, nil
	}

	var objects []map[string]any
	switch raw[0] {
	case '{':
		// Either a single object or JSONL starting with an object per line.
		var one map[string]any
		if err := json.Unmarshal([]byte(raw), &one); err == nil {
			objects = append(objects, one)
			break
		}
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var obj map[string]any
			if err := json.Unmarshal([]byte(line), &obj); err != nil {
				return Table{}, fmt.Errorf("malformed JSON line: %w", err)
			}
			objects = append(objects, obj)
		}
	case '[':
		if err := json.Unmarshal([]byte(raw), &objects); err != nil {
			return Table{}, fmt.Errorf("malformed JSON array: %w", err)
		}
	default:
		return Table{}, fmt.Errorf("unrecognized JSON document")
	}

	return tableFromObjects(objects), nil
}

// tableFromObjects builds a table over the union of keys, sorted for a
// deterministic column order. Missing cells become null.
func tableFromObjects(objects []map[string]any) Table {
	keys := make(map[string]struct{})
	for _, obj := range objects {
		for k := range obj {
			keys[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(keys))
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	table := Table{Columns: columns}
	for _, obj := range objects {
		row := make(Row, len(columns))
		for i, c := range columns {
			row[i] = jsonValue(obj[c])
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func jsonValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case string:
		return String(x)
	case float64:
		if x == float64(int64(x)) {
			return Int(int64(x))
		}
		return Float(x)
	case bool:
		if x {
			return String("true")
		}
		return String("false")
	default:
		// Nested structures are flattened to their JSON text.
		b, err := json.Marshal(x)
		if err != nil {
			return Null()
		}
		return String(string(b))
	}
}

func (r *Reader) readSQL(path string) (Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	return ExtractSQLInserts(string(content)), nil
}

func (r *Reader) readParquet(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Table{}, err
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return Table{}, fmt.Errorf("failed to open parquet file: %w", err)
	}

	fields := pf.Schema().Fields()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = field.Name()
	}
	table := Table{Columns: columns}

	for _, rowGroup := range pf.RowGroups() {
		rows := rowGroup.Rows()
		buf := make([]parquet.Row, 64)
		for {
			n, err := rows.ReadRows(buf)
			for _, prow := range buf[:n] {
				row := make(Row, len(fields))
				for i := range row {
					row[i] = Null()
				}
				for _, pv := range prow {
					if ci := pv.Column(); ci >= 0 && ci < len(row) {
						row[ci] = parquetValue(pv)
					}
				}
				table.Rows = append(table.Rows, row)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return Table{}, fmt.Errorf("failed to read parquet rows: %w", err)
			}
		}
		rows.Close()
	}
	return table, nil
}

func parquetValue(v parquet.Value) Value {
	if v.IsNull() {
		return Null()
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return String("true")
		}
		return String("false")
	case parquet.Int32:
		return Int(int64(v.Int32()))
	case parquet.Int64:
		return Int(v.Int64())
	case parquet.Float:
		return Float(float64(v.Float()))
	case parquet.Double:
		return Float(v.Double())
	default:
		return String(v.String())
	}
}
