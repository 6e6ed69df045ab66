package product

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

const queryTimeout = 5 * time.Second

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGRepo struct {
	pool *pgxpool.Pool
	db   querier
	// true when db is a transaction; lookups then lock the row
	inTx bool
}

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{pool: db, db: db} }

// EnsureSchema creates the products table when it does not exist yet.
func (r *PGRepo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure products schema: %w", err)
	}
	return nil
}

func (r *PGRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.pool.Ping(ctx)
}

func (r *PGRepo) WithTx(ctx context.Context, fn TxFunc) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &PGRepo{pool: r.pool, db: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Persist inserts p and sets its ID. The price is read back so p holds
// exactly what the row stores.
func (r *PGRepo) Persist(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var price string
	err := r.db.QueryRow(ctx, `
		INSERT INTO products (name, price)
		VALUES ($1, $2)
		RETURNING id, price::text
	`, p.Name, p.Price.String()).Scan(&p.ID, &price)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return setPrice(p, price)
}

func (r *PGRepo) FindByID(ctx context.Context, id int64) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT id, name, price::text FROM products WHERE id = $1`
	if r.inTx {
		q += ` FOR UPDATE`
	}
	p, err := scanProduct(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select product %d: %w", id, err)
	}
	return p, nil
}

func (r *PGRepo) ListAll(ctx context.Context) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, name, price::text
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var price string
	err := r.db.QueryRow(ctx, `
		UPDATE products
		SET name = $2,
		    price = $3
		WHERE id = $1
		RETURNING price::text
	`, p.ID, p.Name, p.Price.String()).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return setPrice(p, price)
}

func (r *PGRepo) DeleteByID(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete product %d: %w", id, err)
	}
	return cmd.RowsAffected() > 0, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price); err != nil {
		return nil, err
	}
	if err := setPrice(&p, price); err != nil {
		return nil, err
	}
	return &p, nil
}

func setPrice(p *Product, price string) error {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d
	return nil
}
