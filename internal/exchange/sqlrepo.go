package exchange

import (
	"context"
	"database/sql"
	"errors"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/angeloszaimis/currency-exchange/internal/database"
)

const selectColumns = "SELECT id, currency_from, currency_to, conversion_multiple, version FROM currency_exchange"

// SQLRepository is the Repository backed by the currency_exchange table.
type SQLRepository struct {
	db *database.DB
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) FindByID(ctx context.Context, id int64) (*CurrencyExchange, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(selectColumns+" WHERE id = ?"), id)
	return r.scanOne(row, "find currency exchange by id")
}

func (r *SQLRepository) FindByFromAndTo(ctx context.Context, from, to string) (*CurrencyExchange, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.Rebind(selectColumns+" WHERE currency_from = ? AND currency_to = ?"), from, to)
	return r.scanOne(row, "find currency exchange by pair")
}

func (r *SQLRepository) FindAll(ctx context.Context) ([]CurrencyExchange, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY id")
	if err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeDatabase, "list currency exchanges")
	}
	defer rows.Close()

	all := []CurrencyExchange{}
	for rows.Next() {
		var e CurrencyExchange
		if err := rows.Scan(&e.ID, &e.From, &e.To, &e.ConversionMultiple, &e.Version); err != nil {
			return nil, platformerrors.Wrap(err, platformerrors.CodeDatabase, "list currency exchanges")
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeDatabase, "list currency exchanges")
	}
	return all, nil
}

func (r *SQLRepository) Create(ctx context.Context, e *CurrencyExchange) (*CurrencyExchange, error) {
	created := *e
	created.Version = 0
	created.Environment = ""

	var err error
	if e.ID > 0 {
		_, err = r.db.ExecContext(ctx, r.db.Rebind(
			"INSERT INTO currency_exchange (id, currency_from, currency_to, conversion_multiple, version) VALUES (?, ?, ?, ?, 0)"),
			e.ID, e.From, e.To, e.ConversionMultiple)
	} else {
		err = r.db.QueryRowContext(ctx, r.db.Rebind(
			"INSERT INTO currency_exchange (currency_from, currency_to, conversion_multiple, version) VALUES (?, ?, ?, 0) RETURNING id"),
			e.From, e.To, e.ConversionMultiple).Scan(&created.ID)
	}
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, platformerrors.Wrap(err, platformerrors.CodeDatabase, "create currency exchange")
	}
	return &created, nil
}

func (r *SQLRepository) Update(ctx context.Context, e *CurrencyExchange) (*CurrencyExchange, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE currency_exchange SET currency_from = ?, currency_to = ?, conversion_multiple = ?, version = version + 1 WHERE id = ? AND version = ?"),
		e.From, e.To, e.ConversionMultiple, e.ID, e.Version)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, platformerrors.Wrap(err, platformerrors.CodeDatabase, "update currency exchange")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeDatabase, "update currency exchange")
	}
	if n == 0 {
		if _, err := r.FindByID(ctx, e.ID); err != nil {
			return nil, err
		}
		return nil, ErrConcurrentModification
	}

	updated := *e
	updated.Version = e.Version + 1
	updated.Environment = ""
	return &updated, nil
}

func (r *SQLRepository) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM currency_exchange WHERE id = ?"), id)
	if err != nil {
		return platformerrors.Wrap(err, platformerrors.CodeDatabase, "delete currency exchange")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return platformerrors.Wrap(err, platformerrors.CodeDatabase, "delete currency exchange")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) scanOne(row *sql.Row, op string) (*CurrencyExchange, error) {
	var e CurrencyExchange
	err := row.Scan(&e.ID, &e.From, &e.To, &e.ConversionMultiple, &e.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeDatabase, op)
	}
	return &e, nil
}
