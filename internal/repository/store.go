package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store is the injected data-access handle.  It hands out repositories bound
// to its connection, which is either the pool or an open transaction.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an opened database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Users() *UserRepo       { return &UserRepo{db: s.db} }
func (s *Store) Invoices() *InvoiceRepo { return &InvoiceRepo{db: s.db} }
func (s *Store) Tokens() *TokenRepo     { return &TokenRepo{db: s.db} }

// Tx runs fn inside a transaction.  The Store passed to fn must be used for
// every read and write that belongs to the transaction.
func (s *Store) Tx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}
