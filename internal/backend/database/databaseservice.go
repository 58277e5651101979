package database

import (
	"context"
	"database/sql"
)

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// CreateBula inserts a new row and returns the id assigned by the store.
	CreateBula(ctx context.Context, bula *Bula) (int64, error)
	// GetBulaByID returns nil without an error when no row has the given id.
	GetBulaByID(ctx context.Context, id int64) (*Bula, error)
	GetAllBulas(ctx context.Context) ([]*Bula, error)
	// UpdateBula overwrites every text field of the row with bula.ID. Updating a missing id is not an error.
	UpdateBula(ctx context.Context, bula *Bula) error
	DeleteBula(ctx context.Context, id int64) error
	SetImageExtension(ctx context.Context, id int64, extension string) error
}
