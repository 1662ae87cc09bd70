// Package model defines the part lookup types shared by providers, the store and the API.
package model

// MaxParts is the largest number of parts resolved in a single request.
// Surplus queries are dropped before they reach a provider.
const MaxParts = 10

// Status is the lifecycle status of a part.
type Status string

const (
	StatusActive   Status = "Active"
	StatusNRND     Status = "NRND"
	StatusObsolete Status = "Obsolete"
)

// PartQuery identifies a part by manufacturer part number and manufacturer name.
type PartQuery struct {
	MPN          string `json:"mpn" yaml:"mpn"`
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`
}

// Price is a single price break.
type Price struct {
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Resource is a downloadable document attached to a part.
type Resource struct {
	Name      string `json:"name"`
	MediaType string `json:"mediatype"`
	URL       string `json:"url"`
}

// PartResult is the resolved information for one queried part. Results is 1
// when a matching product was found and 0 otherwise; all other fields are only
// present for found parts.
type PartResult struct {
	MPN          string     `json:"mpn"`
	Manufacturer string     `json:"manufacturer"`
	Results      int        `json:"results"`
	Status       Status     `json:"status,omitempty"`
	Availability *int       `json:"availability,omitempty"`
	Prices       []Price    `json:"prices,omitempty"`
	PricingURL   string     `json:"pricing_url,omitempty"`
	PictureURL   string     `json:"picture_url,omitempty"`
	Resources    []Resource `json:"resources,omitempty"`
}

// NotFound returns an empty result for q.
func NotFound(q PartQuery) PartResult {
	return PartResult{MPN: q.MPN, Manufacturer: q.Manufacturer, Results: 0}
}

// Query returns the query the result answers.
func (r PartResult) Query() PartQuery {
	return PartQuery{MPN: r.MPN, Manufacturer: r.Manufacturer}
}

// Found reports whether a matching product was found.
func (r PartResult) Found() bool {
	return r.Results > 0
}
