// Package catalog maps free-text object names to canonical catalog ids and
// loads the optional reference spreadsheet that annotates them.
package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"github.com/astrogalery/astrogalery/internal/models"
)

// ErrUnsupportedFormat is returned for reference files that are not .xlsx,
// .csv or .parquet.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

type field int

const (
	fieldDesignation field = iota
	fieldCrossID
	fieldName
	fieldType
	fieldConstellation
	fieldMagnitude
	fieldSize
	fieldDistance
)

// Header variants seen in hand-maintained spreadsheets, compared after
// normalizeHeader.
var synonyms = map[field][]string{
	fieldDesignation:   {"designation", "désignation", "messier", "catalog id", "catalogue", "id", "objet", "object"},
	fieldCrossID:       {"cross id", "cross-id", "crossid", "ngc", "ngc/ic", "autre désignation", "other designation"},
	fieldName:          {"name", "nom", "common name", "nom commun", "nom usuel"},
	fieldType:          {"type", "object type", "type d'objet", "nature"},
	fieldConstellation: {"constellation", "const", "const."},
	fieldMagnitude:     {"magnitude", "mag", "mag.", "vmag", "magnitude apparente"},
	fieldSize:          {"size", "taille", "angular size", "taille apparente", "dimensions", "dimension"},
	fieldDistance:      {"distance", "distance (al)", "distance (ly)", "dist", "distance al", "distance ly"},
}

// Table is the spreadsheet catalog keyed by normalized designation.
type Table struct {
	entries map[string]models.CatalogFields
	aliases map[string]string
}

// Lookup returns the entry for a normalized id, matching either the primary
// designation or the cross id column.
func (t *Table) Lookup(id string) (models.CatalogFields, bool) {
	if t == nil || t.entries == nil {
		return models.CatalogFields{}, false
	}
	key := strings.ToUpper(strings.TrimSpace(id))
	if e, ok := t.entries[key]; ok {
		return e, true
	}
	if primary, ok := t.aliases[key]; ok {
		e, ok := t.entries[primary]
		return e, ok
	}
	return models.CatalogFields{}, false
}

// Len returns the number of designations loaded.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// EmptyTable returns a table with no entries.
func EmptyTable() *Table {
	return &Table{entries: map[string]models.CatalogFields{}, aliases: map[string]string{}}
}

// LoadTable reads the reference catalog at path. A missing file yields an
// empty table and no error.
func LoadTable(path string) (*Table, error) {
	empty := EmptyTable()
	if path == "" {
		return empty, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("Catalog spreadsheet not found, continuing without it", "path", path)
			return empty, nil
		}
		return nil, fmt.Errorf("failed to stat catalog: %w", err)
	}

	var (
		rows [][]string
		err  error
	)
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	case ".csv", ".tsv":
		rows, err = readCSV(path)
	case ".parquet":
		rows, err = readParquet(path)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .xlsx, .csv, .parquet)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	t := buildTable(rows)
	slog.Debug("Loaded catalog spreadsheet", "path", path, "entries", t.Len())
	return t, nil
}

func buildTable(rows [][]string) *Table {
	t := EmptyTable()
	if len(rows) == 0 {
		return t
	}

	cols := mapColumns(rows[0])
	if _, ok := cols[fieldDesignation]; !ok {
		slog.Warn("Catalog spreadsheet has no designation column", "header", rows[0])
		return t
	}

	skipped := 0
	for i, row := range rows[1:] {
		cell := func(f field) string {
			idx, ok := cols[f]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		key, ok := NormalizeID(cell(fieldDesignation))
		if !ok {
			skipped++
			slog.Debug("Skipping catalog row without a usable designation", "row", i+2, "value", cell(fieldDesignation))
			continue
		}

		entry := models.CatalogFields{
			Designation:   key,
			CrossID:       cell(fieldCrossID),
			Name:          cell(fieldName),
			Type:          cell(fieldType),
			Constellation: cell(fieldConstellation),
			Size:          cell(fieldSize),
		}
		if mag, ok := ParseMagnitude(cell(fieldMagnitude)); ok {
			entry.Magnitude = &mag
		}
		if dist, ok := ParseDistance(cell(fieldDistance)); ok {
			entry.Distance = &dist
		}

		t.entries[key] = entry
		if alias, ok := NormalizeID(entry.CrossID); ok && alias != key {
			t.aliases[alias] = key
		}
	}

	if skipped > 0 {
		slog.Info("Skipped catalog rows", "count", skipped)
	}
	return t
}

// mapColumns resolves each known field to the first header column matching
// one of its synonyms.
func mapColumns(header []string) map[field]int {
	cols := make(map[field]int)
	for idx, raw := range header {
		h := normalizeHeader(raw)
		if h == "" {
			continue
		}
		for f, names := range synonyms {
			if _, taken := cols[f]; taken {
				continue
			}
			for _, name := range names {
				if h == name {
					cols[f] = idx
					break
				}
			}
		}
	}
	return cols
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	// Raw values keep date-formatted cells as serial numbers so that
	// ParseMagnitude can recover the day and month.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("Skipping malformed catalog line", "path", path, "error", err)
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// sniffDelimiter picks the separator that occurs most in the header line.
// Spreadsheets exported with a French locale use ';'.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, count := ',', bytes.Count(line, []byte{','})
	for _, c := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > count {
			best, count = c, n
		}
	}
	return best
}

func readParquet(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	var header []string
	for _, col := range pf.Schema().Columns() {
		header = append(header, col[len(col)-1])
	}
	out := [][]string{header}

	buf := make([]parquet.Row, 128)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				cells := make([]string, len(header))
				for _, v := range row {
					c := v.Column()
					if c < 0 || c >= len(cells) || v.IsNull() {
						continue
					}
					cells[c] = strings.Clone(v.String())
				}
				out = append(out, cells)
			}
			if err != nil {
				break
			}
		}
		rows.Close()
	}

	slog.Debug("Read parquet catalog", "rows", len(out)-1, "columns", len(header))
	return out, nil
}

// ParseDistance reads a distance cell and rounds it to an integer. Thousand
// separators (spaces, apostrophes, repeated commas) and trailing units are
// tolerated.
func ParseDistance(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "'", "").Replace(s)
	if strings.Count(s, ",") > 1 || (strings.Contains(s, ",") && strings.Contains(s, ".")) {
		s = strings.ReplaceAll(s, ",", "")
	}
	m := leadingNumber.FindString(strings.ReplaceAll(s, ",", "."))
	if m == "" {
		return 0, false
	}
	v, ok := parseFloat(m)
	if !ok {
		return 0, false
	}
	return int(math.Round(v)), true
}
