// File: internal/product/repo.go
// Package product provides the product domain: entity, service and the
// repository contract with its PostgreSQL, Redis and in-memory implementations.
package product

import "context"

// Repository is the storage capability set the service relies on.
type Repository interface {
	// Persist stores a new product and assigns its ID.
	Persist(ctx context.Context, p *Product) error
	// FindByID returns ErrNotFound when no product has the id.
	FindByID(ctx context.Context, id int64) (*Product, error)
	// ListAll returns every product in insertion order.
	ListAll(ctx context.Context) ([]Product, error)
	// Update writes name and price of an already persisted product.
	Update(ctx context.Context, p *Product) error
	// DeleteByID reports whether a product existed and was removed.
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

// TxFunc runs inside a transaction scope. The repository it receives is
// bound to that scope.
type TxFunc func(ctx context.Context, repo Repository) error

// Store is a Repository that can open transaction scopes.
type Store interface {
	Repository
	// WithTx commits when fn returns nil and rolls back otherwise,
	// including when fn panics.
	WithTx(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
}
