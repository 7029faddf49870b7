package refdata

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
)

// Files names the CSV files making up the reference data set.
type Files struct {
	Products     string
	Outlets      string
	Personnel    string
	Distributors string
	Locations    string
}

// DefaultFiles returns the conventional file names inside dir.
func DefaultFiles(dir string) Files {
	return Files{
		Products:     filepath.Join(dir, "products.csv"),
		Outlets:      filepath.Join(dir, "outlets.csv"),
		Personnel:    filepath.Join(dir, "personnel.csv"),
		Distributors: filepath.Join(dir, "distributors.csv"),
		Locations:    filepath.Join(dir, "locations.csv"),
	}
}

// productStandardColumns are never treated as discount tiers.
var productStandardColumns = map[string]bool{
	"Product ID":       true,
	"Product Name":     true,
	"Product Category": true,
	"Price":            true,
}

// Load reads every file and builds the catalog. Distributors and locations
// are optional; a missing file yields an empty table.
func Load(files Files) (*Catalog, error) {
	var t Tables
	var err error
	if t.Products, err = loadFile(files.Products, true, ParseProducts); err != nil {
		return nil, err
	}
	if t.Employees, err = loadFile(files.Personnel, true, ParsePersonnel); err != nil {
		return nil, err
	}
	if t.Outlets, err = loadFile(files.Outlets, true, ParseOutlets); err != nil {
		return nil, err
	}
	if t.Distributors, err = loadFile(files.Distributors, false, ParseDistributors); err != nil {
		return nil, err
	}
	if t.Locations, err = loadFile(files.Locations, false, ParseLocations); err != nil {
		return nil, err
	}
	return NewCatalog(t)
}

func loadFile[T any](path string, required bool, parse func(io.Reader) ([]T, error)) ([]T, error) {
	if strings.TrimSpace(path) == "" {
		if required {
			return nil, errors.New("refdata: required file path is empty")
		}
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("refdata: open %s: %w", path, err)
	}
	defer f.Close()
	rows, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("refdata: %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// ParseProducts reads the products table. Every column other than the
// standard ones is a discount tier price column; blank cells mean the
// product has no price for that tier.
func ParseProducts(r io.Reader) ([]Product, error) {
	header, records, err := readAll(r, "Product Name", "Price")
	if err != nil {
		return nil, err
	}
	var tiers []string
	for _, col := range header {
		if !productStandardColumns[col] && col != "" {
			tiers = append(tiers, col)
		}
	}
	idx := columnIndex(header)
	out := make([]Product, 0, len(records))
	for i, rec := range records {
		get := getter(idx, rec)
		name := get("Product Name")
		if name == "" {
			continue
		}
		base, err := parsePrice(get("Price"))
		if err != nil {
			return nil, fmt.Errorf("line %d: price: %w", i+2, err)
		}
		p := Product{
			ID:         get("Product ID"),
			Name:       name,
			Category:   get("Product Category"),
			BasePrice:  base,
			TierPrices: map[string]decimal.Decimal{},
		}
		for _, tier := range tiers {
			raw := get(tier)
			if raw == "" {
				continue
			}
			price, err := parsePrice(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: tier %q: %w", i+2, tier, err)
			}
			p.TierPrices[tier] = price
		}
		out = append(out, p)
	}
	return out, nil
}

// ParsePersonnel reads the personnel table.
func ParsePersonnel(r io.Reader) ([]Employee, error) {
	header, records, err := readAll(r, "Employee Name", "Employee Code")
	if err != nil {
		return nil, err
	}
	idx := columnIndex(header)
	out := make([]Employee, 0, len(records))
	for _, rec := range records {
		get := getter(idx, rec)
		if get("Employee Name") == "" {
			continue
		}
		out = append(out, Employee{
			Name:             get("Employee Name"),
			Code:             get("Employee Code"),
			Designation:      get("Designation"),
			DiscountCategory: get("Discount Category"),
		})
	}
	return out, nil
}

// ParseOutlets reads the outlet table.
func ParseOutlets(r io.Reader) ([]Outlet, error) {
	header, records, err := readAll(r, "Shop Name")
	if err != nil {
		return nil, err
	}
	idx := columnIndex(header)
	out := make([]Outlet, 0, len(records))
	for _, rec := range records {
		get := getter(idx, rec)
		if get("Shop Name") == "" {
			continue
		}
		out = append(out, Outlet{
			Name:    get("Shop Name"),
			Contact: get("Contact"),
			Address: get("Address"),
			State:   get("State"),
			City:    get("City"),
			GST:     get("GST"),
		})
	}
	return out, nil
}

// ParseDistributors reads the distributor table.
func ParseDistributors(r io.Reader) ([]Distributor, error) {
	header, records, err := readAll(r, "Firm Name")
	if err != nil {
		return nil, err
	}
	idx := columnIndex(header)
	out := make([]Distributor, 0, len(records))
	for _, rec := range records {
		get := getter(idx, rec)
		if get("Firm Name") == "" {
			continue
		}
		out = append(out, Distributor{
			FirmName:      get("Firm Name"),
			ID:            get("Distributor ID"),
			ContactPerson: get("Contact Person"),
			ContactNumber: get("Contact Number"),
			Email:         get("Email ID"),
			Territory:     get("Territory"),
		})
	}
	return out, nil
}

// ParseLocations reads the city/state lookup table.
func ParseLocations(r io.Reader) ([]Location, error) {
	header, records, err := readAll(r, "State", "City")
	if err != nil {
		return nil, err
	}
	idx := columnIndex(header)
	out := make([]Location, 0, len(records))
	for _, rec := range records {
		get := getter(idx, rec)
		out = append(out, Location{State: get("State"), City: get("City")})
	}
	return out, nil
}

func readAll(r io.Reader, required ...string) ([]string, [][]string, error) {
	reader := csv.NewReader(skipBOM(r))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.New("empty file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	idx := columnIndex(header)
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", col)
		}
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return header, records, nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		if _, seen := idx[col]; !seen {
			idx[col] = i
		}
	}
	return idx
}

func getter(idx map[string]int, rec []string) func(string) string {
	return func(key string) string {
		if i, ok := idx[key]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, errors.New("empty value")
	}
	return decimal.NewFromString(cleaned)
}
