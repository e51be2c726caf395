package dataio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// LoadTable reads a numeric table from path and returns it column-major.
// Fields split on whitespace, commas or semicolons; blank lines and lines
// starting with '#' are skipped, and one leading header line is tolerated.
// Every data row must carry the same number of fields.
func LoadTable(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cols, err := ParseTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cols, nil
}

// ParseTable reads a numeric table from r. See LoadTable for the format.
func ParseTable(r io.Reader) ([][]float64, error) {
	sc := bufio.NewScanner(r)
	var cols [][]float64
	line := 0
	headerSkipped := false

	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := splitFields(text)
		if len(fields) == 0 {
			continue
		}
		vals := make([]float64, len(fields))
		ok := true
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			if cols == nil && !headerSkipped {
				headerSkipped = true
				continue
			}
			return nil, fmt.Errorf("dataio: line %d: non-numeric field", line)
		}

		if cols == nil {
			cols = make([][]float64, len(vals))
		} else if len(vals) != len(cols) {
			return nil, fmt.Errorf("dataio: line %d: %d fields, want %d", line, len(vals), len(cols))
		}
		for i, v := range vals {
			cols[i] = append(cols[i], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, fmt.Errorf("dataio: no numeric rows")
	}
	return cols, nil
}

func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

// LoadColumns reads an observation file with two or three columns:
// abscissa, data and optionally per-datum errors. The error slice is nil
// when the file has no third column.
func LoadColumns(path string) (x, y, e []float64, err error) {
	cols, err := LoadTable(path)
	if err != nil {
		return nil, nil, nil, err
	}
	switch len(cols) {
	case 2:
		return cols[0], cols[1], nil, nil
	case 3:
		return cols[0], cols[1], cols[2], nil
	}
	return nil, nil, nil, fmt.Errorf("%s: %d columns, want 2 (x, y) or 3 (x, y, err)", path, len(cols))
}

// SaveTable writes columns as CSV with a header row. All columns must
// share one length.
func SaveTable(path string, header []string, cols ...[]float64) error {
	if len(cols) == 0 {
		return fmt.Errorf("dataio: no columns")
	}
	if len(header) != len(cols) {
		return fmt.Errorf("dataio: %d header fields for %d columns", len(header), len(cols))
	}
	n := len(cols[0])
	for i, c := range cols {
		if len(c) != n {
			return fmt.Errorf("dataio: column %d has %d rows, want %d", i, len(c), n)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for i := 0; i < n; i++ {
		for j, c := range cols {
			row[j] = strconv.FormatFloat(c[i], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// SaveVector writes one value per line, full float precision.
func SaveVector(path string, v []float64) error {
	var b strings.Builder
	for _, x := range v {
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// LoadVector reads a one-column file written by SaveVector.
func LoadVector(path string) ([]float64, error) {
	cols, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	if len(cols) != 1 {
		return nil, fmt.Errorf("%s: %d columns, want 1", path, len(cols))
	}
	return cols[0], nil
}
