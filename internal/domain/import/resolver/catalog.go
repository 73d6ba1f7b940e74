package resolver

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// LoanProduct is a financing product the cooperative offers.
type LoanProduct struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Loan products known to the catalog.
var (
	ProductGeneral   = LoanProduct{Code: "umum", Name: "Pinjaman Umum"}
	ProductBusiness  = LoanProduct{Code: "usaha", Name: "Pinjaman Usaha"}
	ProductEducation = LoanProduct{Code: "pendidikan", Name: "Pinjaman Pendidikan"}
	ProductEmergency = LoanProduct{Code: "darurat", Name: "Pinjaman Darurat"}
	ProductConsumer  = LoanProduct{Code: "konsumtif", Name: "Pinjaman Konsumtif"}
	ProductVehicle   = LoanProduct{Code: "kendaraan", Name: "Pinjaman Kendaraan"}
)

// defaultLoanTerms maps lowercased label fragments onto products. Longer
// fragments win, so "pinjaman usaha" beats the bare "pinjaman".
var defaultLoanTerms = map[string]LoanProduct{
	"pinjaman":              ProductGeneral,
	"pembiayaan":            ProductGeneral,
	"loan":                  ProductGeneral,
	"pinjaman umum":         ProductGeneral,
	"pembiayaan umum":       ProductGeneral,
	"general loan":          ProductGeneral,
	"pinjaman usaha":        ProductBusiness,
	"pembiayaan usaha":      ProductBusiness,
	"modal usaha":           ProductBusiness,
	"business loan":         ProductBusiness,
	"pinjaman pendidikan":   ProductEducation,
	"pembiayaan pendidikan": ProductEducation,
	"education loan":        ProductEducation,
	"pinjaman darurat":      ProductEmergency,
	"pembiayaan darurat":    ProductEmergency,
	"emergency loan":        ProductEmergency,
	"pinjaman konsumtif":    ProductConsumer,
	"pembiayaan konsumtif":  ProductConsumer,
	"consumer loan":         ProductConsumer,
	"pinjaman kendaraan":    ProductVehicle,
	"pembiayaan kendaraan":  ProductVehicle,
	"kredit kendaraan":      ProductVehicle,
	"vehicle loan":          ProductVehicle,
}

// LoanCatalog decides whether an account label refers to a loan. All terms
// are matched in one pass over the label.
type LoanCatalog struct {
	// ahocorasick.Matcher keeps per-call state, so Match is serialized.
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
	terms    []string
	products []LoanProduct
}

// NewLoanCatalog builds a catalog from lowercase term to product.
func NewLoanCatalog(terms map[string]LoanProduct) *LoanCatalog {
	c := &LoanCatalog{}
	patterns := make([][]byte, 0, len(terms))
	for term, product := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		c.terms = append(c.terms, term)
		c.products = append(c.products, product)
		patterns = append(patterns, []byte(term))
	}
	if len(patterns) > 0 {
		c.matcher = ahocorasick.NewMatcher(patterns)
	}
	return c
}

// DefaultLoanCatalog returns the cooperative's standard loan products.
func DefaultLoanCatalog() *LoanCatalog {
	return NewLoanCatalog(defaultLoanTerms)
}

// Classify returns the most specific product named in label and the term
// that matched it.
func (c *LoanCatalog) Classify(label string) (LoanProduct, string, bool) {
	if c == nil || c.matcher == nil {
		return LoanProduct{}, "", false
	}
	input := strings.ToLower(strings.Join(strings.Fields(label), " "))
	if input == "" {
		return LoanProduct{}, "", false
	}

	c.mu.Lock()
	hits := c.matcher.Match([]byte(input))
	c.mu.Unlock()

	best := -1
	for _, idx := range hits {
		if idx < 0 || idx >= len(c.terms) {
			continue
		}
		if best < 0 || len(c.terms[idx]) > len(c.terms[best]) ||
			(len(c.terms[idx]) == len(c.terms[best]) && c.terms[idx] < c.terms[best]) {
			best = idx
		}
	}
	if best < 0 {
		return LoanProduct{}, "", false
	}
	return c.products[best], c.terms[best], true
}

// IsLoan reports whether label names any loan product.
func (c *LoanCatalog) IsLoan(label string) bool {
	_, _, ok := c.Classify(label)
	return ok
}
