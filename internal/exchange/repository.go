package exchange

import (
	"context"

	platformerrors "github.com/jmgilman/go/errors"
)

var (
	ErrNotFound = platformerrors.New(platformerrors.CodeNotFound, "currency exchange not found")

	ErrConcurrentModification = platformerrors.New(platformerrors.CodeConflict,
		"CurrencyExchange has been modified by another request. Please reload and retry.")

	ErrDuplicate = platformerrors.New(platformerrors.CodeAlreadyExists,
		"a currency exchange for this currency pair already exists")
)

// Repository persists CurrencyExchange rows.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*CurrencyExchange, error)
	FindByFromAndTo(ctx context.Context, from, to string) (*CurrencyExchange, error)
	FindAll(ctx context.Context) ([]CurrencyExchange, error)

	// Create inserts e. A zero ID is assigned by the database. The
	// returned row has version 0.
	Create(ctx context.Context, e *CurrencyExchange) (*CurrencyExchange, error)

	// Update writes e if the stored version still equals e.Version and
	// returns the row with the bumped version.
	Update(ctx context.Context, e *CurrencyExchange) (*CurrencyExchange, error)

	DeleteByID(ctx context.Context, id int64) error
}
