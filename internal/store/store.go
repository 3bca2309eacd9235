package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store wraps the Postgres connection pool. Every order-affecting
// operation runs inside one transaction obtained via WithTx; row locks
// taken there are the only concurrency control in the system.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a transaction. Any error rolls the whole unit
// back; a failed commit is surfaced as a StorageError like any other
// infrastructure fault.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &models.StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &models.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.ProductUnavailableError{ProductID: id}
	}
	if err != nil {
		return nil, &models.StorageError{Op: "get product", Err: err}
	}
	return &product, nil
}

// LockProducts loads the requested products inside tx with FOR UPDATE row
// locks, in id order to keep lock acquisition deterministic. Concurrent
// order creations against the same product serialize here.
func (s *Store) LockProducts(ctx context.Context, tx *sqlx.Tx, ids []int64) (map[int64]*models.Product, error) {
	if len(ids) == 0 {
		return map[int64]*models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, &models.StorageError{Op: "lock products", Err: err}
	}
	query = tx.Rebind(query)

	var products []models.Product
	if err := tx.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, &models.StorageError{Op: "lock products", Err: err}
	}

	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID, nil
}

// DecrementStock reserves stock inside tx. The caller must already hold
// the product row lock and have verified availability; the WHERE clause
// is a second line of defense against driving stock negative.
func (s *Store) DecrementStock(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		quantity, productID)
	if err != nil {
		return &models.StorageError{Op: "decrement stock", Err: err}
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return &models.StorageError{Op: "decrement stock", Err: err}
	}
	if rows == 0 {
		return &models.InsufficientStockError{ProductID: productID, Requested: quantity}
	}
	return nil
}

// IncrementStock restores reserved stock inside tx (cancellation path).
func (s *Store) IncrementStock(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return &models.StorageError{Op: "increment stock", Err: err}
	}
	return nil
}
