package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
)

// ErrLoad marks a source file that cannot be turned into a snapshot.
var ErrLoad = errors.New("catalog load failure")

// Product and consultant column names, compared after normalizeHeader.
const (
	colSKU         = "CV"
	colDescription = "DESCRIPCION"
	colPrice       = "PRECIO"
	colImage       = "IMAGEN"
	colBrand       = "MARCA"

	colID    = "ID"
	colName  = "NOMBRE"
	colPhone = "TELEFONO"
	colEmail = "EMAIL"
)

// row is one record keyed by normalized column name.
type row map[string]string

func (r row) get(col string) string {
	v := strings.TrimSpace(r[col])
	if isNullToken(v) {
		return ""
	}
	return v
}

// ResolveOptions controls how product cells are turned into values.
type ResolveOptions struct {
	StaticPrefix     string
	PlaceholderImage string
}

// table is a parsed source file: its normalized header and the data rows.
type table struct {
	path   string
	header map[string]bool
	rows   []row
}

// readTable reads a CSV or .xlsx file. The first line is the header.
func readTable(path string) (*table, error) {
	var (
		lines [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		lines, err = readWorkbook(path)
	default:
		lines, err = readCSV(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}

	t := &table{path: path, header: map[string]bool{}}
	if len(lines) == 0 {
		return t, nil
	}
	cols := make([]string, len(lines[0]))
	for i, h := range lines[0] {
		cols[i] = normalizeHeader(h)
		t.header[cols[i]] = true
	}
	t.rows = make([]row, 0, len(lines)-1)
	for _, cells := range lines[1:] {
		r := make(row, len(cols))
		for i, c := range cols {
			if i < len(cells) {
				r[c] = cells[i]
			} else {
				r[c] = ""
			}
		}
		t.rows = append(t.rows, r)
	}
	return t, nil
}

// require fails when the header lacks any of cols, whether or not the file
// has data rows.
func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if !t.header[c] {
			return fmt.Errorf("%w: %s: missing column %s", ErrLoad, t.path, c)
		}
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return gocsv.LazyCSVReader(f).ReadAll()
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

// loadProducts reads the products file. Rows without a CV are skipped; bad
// prices and images degrade to defaults instead of failing the load.
func loadProducts(path string, opts ResolveOptions) ([]Product, int, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, 0, err
	}
	if err := t.require(colSKU, colDescription); err != nil {
		return nil, 0, err
	}
	rows := t.rows

	products := make([]Product, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		sku := r.get(colSKU)
		if sku == "" {
			skipped++
			continue
		}
		brand := normalizeBrand(r.get(colBrand))
		if brand == "" {
			brand = DefaultBrand
		}
		products = append(products, Product{
			SKU:         sku,
			Description: r.get(colDescription),
			Price:       ParsePrice(r[colPrice]),
			ImageURL:    ResolveImageURL(r[colImage], opts.StaticPrefix, opts.PlaceholderImage),
			Brand:       brand,
		})
	}
	return products, skipped, nil
}

// loadConsultants reads the consultants file. An invalid email fails the
// whole load: a consultant that cannot be notified must not take orders.
func loadConsultants(path string, v *validatorv10.Validate) (map[string]Consultant, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(colID, colName, colPhone, colEmail); err != nil {
		return nil, err
	}
	rows := t.rows

	out := make(map[string]Consultant, len(rows))
	for i, r := range rows {
		id := r.get(colID)
		if id == "" {
			continue
		}
		email := r.get(colEmail)
		if err := v.Var(email, "required,email"); err != nil {
			// +2: header line and 1-based numbering
			return nil, fmt.Errorf("%w: %s line %d: invalid email %q for consultant %s", ErrLoad, path, i+2, email, id)
		}
		out[id] = Consultant{
			ID:    id,
			Name:  r.get(colName),
			Phone: r.get(colPhone),
			Email: email,
		}
	}
	return out, nil
}
