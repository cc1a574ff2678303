package exchange

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// CacheName is the cache holding exchange rates.
const CacheName = "exchangeValue"

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// CurrencyExchange is the conversion rate from one currency to another.
// Version is bumped by every update and guards against lost updates.
// Environment is filled in by the HTTP layer and never stored.
type CurrencyExchange struct {
	ID                 int64           `json:"id"`
	From               string          `json:"from"`
	To                 string          `json:"to"`
	ConversionMultiple decimal.Decimal `json:"conversionMultiple"`
	Version            int64           `json:"version"`
	Environment        string          `json:"environment,omitempty"`
}

// Key returns the cache key of a currency pair.
func Key(from, to string) string {
	return from + "_" + to
}

func (e *CurrencyExchange) Key() string {
	return Key(e.From, e.To)
}

func (e CurrencyExchange) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.From, validation.Required, validation.Match(currencyCode).Error("must be a 3-letter upper-case currency code")),
		validation.Field(&e.To, validation.Required, validation.Match(currencyCode).Error("must be a 3-letter upper-case currency code")),
		validation.Field(&e.ConversionMultiple, validation.By(positive)),
		validation.Field(&e.ID, validation.Min(int64(0))),
		validation.Field(&e.Version, validation.Min(int64(0))),
	)
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	From               *string          `json:"from,omitempty"`
	To                 *string          `json:"to,omitempty"`
	ConversionMultiple *decimal.Decimal `json:"conversionMultiple,omitempty"`
}

func (p Patch) Empty() bool {
	return p.From == nil && p.To == nil && p.ConversionMultiple == nil
}

// Apply copies the set fields onto e.
func (p Patch) Apply(e *CurrencyExchange) {
	if p.From != nil {
		e.From = *p.From
	}
	if p.To != nil {
		e.To = *p.To
	}
	if p.ConversionMultiple != nil {
		e.ConversionMultiple = *p.ConversionMultiple
	}
}

func positive(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return validation.NewError("validation_invalid_decimal", "must be a decimal")
	}
	if !d.IsPositive() {
		return validation.NewError("validation_not_positive", "must be greater than zero")
	}
	return nil
}
