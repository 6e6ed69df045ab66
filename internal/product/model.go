package product

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Final price with tax already applied. NUMERIC in Postgres.
	Price decimal.Decimal `json:"price"`
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// Error message
	// example: Product not found
	Error string `json:"error"`
}

// ProductRequest payload of creation and update.
// swagger:model ProductRequest
type ProductRequest struct {
	Name  string           `json:"name"  binding:"required" example:"Monitor"`
	Price *decimal.Decimal `json:"price" binding:"required" swaggertype:"number" example:"1500.0"`
	// Optional tax added to price. Null or absent adds nothing.
	Tax *decimal.Decimal `json:"tax,omitempty" swaggertype:"number" example:"110.0"`
}

// ProductResponse is the product as returned to clients.
// swagger:model ProductResponse
type ProductResponse struct {
	ID    int64           `json:"id"    example:"1"`
	Name  string          `json:"name"  example:"Monitor"`
	Price decimal.Decimal `json:"price" swaggertype:"number" example:"1610.0"`
}

// MarshalJSON writes prices as JSON numbers.
func (r ProductRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string       `json:"name"`
		Price *json.Number `json:"price"`
		Tax   *json.Number `json:"tax,omitempty"`
	}{r.Name, jsonNumber(r.Price), jsonNumber(r.Tax)})
}

// MarshalJSON writes the price as a JSON number.
func (r ProductResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID    int64       `json:"id"`
		Name  string      `json:"name"`
		Price json.Number `json:"price"`
	}{r.ID, r.Name, json.Number(r.Price.String())})
}

func jsonNumber(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := json.Number(d.String())
	return &n
}

// ToResponse maps a persisted entity to its response DTO.
func ToResponse(p *Product) ProductResponse {
	return ProductResponse{ID: p.ID, Name: p.Name, Price: p.Price}
}

// FinalPrice adds tax to price. A nil tax contributes zero; a negative
// tax is added as is.
func FinalPrice(price decimal.Decimal, tax *decimal.Decimal) decimal.Decimal {
	if tax == nil {
		return price
	}
	return price.Add(*tax)
}
