package refdata

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound is wrapped by every failed catalog lookup.
var ErrNotFound = errors.New("refdata: not found")

// LookupError reports which reference table was missing a key.
type LookupError struct {
	Kind string
	Key  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("refdata: %s %q not found", e.Kind, e.Key)
}

// Unwrap allows errors.Is(err, ErrNotFound).
func (e *LookupError) Unwrap() error { return ErrNotFound }

// Product is an immutable catalog row. TierPrices maps a discount tier name
// to the override price for that tier.
type Product struct {
	ID         string
	Name       string
	Category   string
	BasePrice  decimal.Decimal
	TierPrices map[string]decimal.Decimal
}

// TierPrice returns the override price for tier when the product defines one.
func (p Product) TierPrice(tier string) (decimal.Decimal, bool) {
	if tier == "" || p.TierPrices == nil {
		return decimal.Zero, false
	}
	price, ok := p.TierPrices[tier]
	return price, ok
}

// UnitPrice resolves the tier price, falling back to the base price.
func (p Product) UnitPrice(tier string) decimal.Decimal {
	if price, ok := p.TierPrice(tier); ok {
		return price
	}
	return p.BasePrice
}

// Employee is a row of the personnel table.
type Employee struct {
	Name             string
	Code             string
	Designation      string
	DiscountCategory string
}

// Outlet is a retail outlet the field force sells to or visits.
type Outlet struct {
	Name    string
	Contact string
	Address string
	State   string
	City    string
	GST     string
}

// Distributor is a row of the distributor table.
type Distributor struct {
	FirmName      string
	ID            string
	ContactPerson string
	ContactNumber string
	Email         string
	Territory     string
}

// Location is one city/state pair.
type Location struct {
	State string
	City  string
}

// Catalog holds every reference table. It is built once at startup and
// never mutated, so it is safe for concurrent use.
type Catalog struct {
	products        map[string]Product
	productOrder    []string
	employees       map[string]Employee
	employeesByCode map[string]Employee
	employeeOrder   []string
	outlets         map[string]Outlet
	outletOrder     []string
	distributors    map[string]Distributor
	distOrder       []string
	cities          map[string][]string
}

// Tables groups the raw rows used to construct a Catalog.
type Tables struct {
	Products     []Product
	Employees    []Employee
	Outlets      []Outlet
	Distributors []Distributor
	Locations    []Location
}

// NewCatalog indexes the provided tables. Product names and employee names
// must be unique.
func NewCatalog(t Tables) (*Catalog, error) {
	c := &Catalog{
		products:        make(map[string]Product, len(t.Products)),
		employees:       make(map[string]Employee, len(t.Employees)),
		employeesByCode: make(map[string]Employee, len(t.Employees)),
		outlets:         make(map[string]Outlet, len(t.Outlets)),
		distributors:    make(map[string]Distributor, len(t.Distributors)),
		cities:          make(map[string][]string),
	}
	for _, p := range t.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, errors.New("refdata: product without name")
		}
		if _, dup := c.products[name]; dup {
			return nil, fmt.Errorf("refdata: duplicate product name %q", name)
		}
		p.Name = name
		c.products[name] = p
		c.productOrder = append(c.productOrder, name)
	}
	for _, e := range t.Employees {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, errors.New("refdata: employee without name")
		}
		if _, dup := c.employees[name]; dup {
			return nil, fmt.Errorf("refdata: duplicate employee name %q", name)
		}
		e.Name = name
		c.employees[name] = e
		if code := strings.TrimSpace(e.Code); code != "" {
			c.employeesByCode[code] = e
		}
		c.employeeOrder = append(c.employeeOrder, name)
	}
	for _, o := range t.Outlets {
		name := strings.TrimSpace(o.Name)
		if name == "" {
			continue
		}
		if _, dup := c.outlets[name]; !dup {
			c.outletOrder = append(c.outletOrder, name)
		}
		o.Name = name
		c.outlets[name] = o
	}
	for _, d := range t.Distributors {
		name := strings.TrimSpace(d.FirmName)
		if name == "" {
			continue
		}
		if _, dup := c.distributors[name]; !dup {
			c.distOrder = append(c.distOrder, name)
		}
		d.FirmName = name
		c.distributors[name] = d
	}
	for _, l := range t.Locations {
		state := strings.TrimSpace(l.State)
		city := strings.TrimSpace(l.City)
		if state == "" || city == "" {
			continue
		}
		c.cities[state] = append(c.cities[state], city)
	}
	for state := range c.cities {
		sort.Strings(c.cities[state])
	}
	return c, nil
}

// Product looks a product up by exact name.
func (c *Catalog) Product(name string) (Product, error) {
	if p, ok := c.products[name]; ok {
		return p, nil
	}
	return Product{}, &LookupError{Kind: "product", Key: name}
}

// Products returns every product in file order.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.productOrder))
	for _, name := range c.productOrder {
		out = append(out, c.products[name])
	}
	return out
}

// Employee looks an employee up by exact name.
func (c *Catalog) Employee(name string) (Employee, error) {
	if e, ok := c.employees[name]; ok {
		return e, nil
	}
	return Employee{}, &LookupError{Kind: "employee", Key: name}
}

// EmployeeByCode looks an employee up by employee code.
func (c *Catalog) EmployeeByCode(code string) (Employee, error) {
	if e, ok := c.employeesByCode[code]; ok {
		return e, nil
	}
	return Employee{}, &LookupError{Kind: "employee code", Key: code}
}

// Employees returns every employee in file order.
func (c *Catalog) Employees() []Employee {
	out := make([]Employee, 0, len(c.employeeOrder))
	for _, name := range c.employeeOrder {
		out = append(out, c.employees[name])
	}
	return out
}

// Outlet looks an outlet up by shop name.
func (c *Catalog) Outlet(name string) (Outlet, error) {
	if o, ok := c.outlets[name]; ok {
		return o, nil
	}
	return Outlet{}, &LookupError{Kind: "outlet", Key: name}
}

// Outlets returns every outlet in file order.
func (c *Catalog) Outlets() []Outlet {
	out := make([]Outlet, 0, len(c.outletOrder))
	for _, name := range c.outletOrder {
		out = append(out, c.outlets[name])
	}
	return out
}

// Distributor looks a distributor up by firm name.
func (c *Catalog) Distributor(firm string) (Distributor, error) {
	if d, ok := c.distributors[firm]; ok {
		return d, nil
	}
	return Distributor{}, &LookupError{Kind: "distributor", Key: firm}
}

// Distributors returns every distributor in file order.
func (c *Catalog) Distributors() []Distributor {
	out := make([]Distributor, 0, len(c.distOrder))
	for _, name := range c.distOrder {
		out = append(out, c.distributors[name])
	}
	return out
}

// States lists the known states alphabetically.
func (c *Catalog) States() []string {
	out := make([]string, 0, len(c.cities))
	for state := range c.cities {
		out = append(out, state)
	}
	sort.Strings(out)
	return out
}

// Cities lists the cities of a state.
func (c *Catalog) Cities(state string) []string {
	return append([]string(nil), c.cities[state]...)
}

// OutletRef picks a catalog outlet by name or, with Manual set, describes a
// new outlet inline.
type OutletRef struct {
	Name    string `json:"name" validate:"required"`
	Manual  bool   `json:"manual"`
	Contact string `json:"contact"`
	Address string `json:"address"`
	State   string `json:"state"`
	City    string `json:"city"`
	GST     string `json:"gst"`
}

// ErrIncompleteOutlet rejects manual outlets missing contact details.
var ErrIncompleteOutlet = errors.New("refdata: manual outlet needs contact, state and city")

// ResolveOutlet returns the catalog outlet, or the manual one as given.
func (c *Catalog) ResolveOutlet(ref OutletRef) (Outlet, error) {
	name := strings.TrimSpace(ref.Name)
	if !ref.Manual {
		return c.Outlet(name)
	}
	if ref.Contact == "" || ref.State == "" || ref.City == "" {
		return Outlet{}, ErrIncompleteOutlet
	}
	return Outlet{Name: name, Contact: ref.Contact, Address: ref.Address, State: ref.State, City: ref.City, GST: ref.GST}, nil
}
