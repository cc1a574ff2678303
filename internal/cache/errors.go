package cache

import (
	"errors"
	"fmt"
)

// ValueRetrievalError reports that the value for Key could not be
// produced because the loader itself failed.
type ValueRetrievalError struct {
	Key string
	Err error
}

func (e *ValueRetrievalError) Error() string {
	return fmt.Sprintf("cache: value for key %q could not be loaded: %v", e.Key, e.Err)
}

func (e *ValueRetrievalError) Unwrap() error {
	return e.Err
}

// IsValueRetrieval reports whether err is or wraps a *ValueRetrievalError.
func IsValueRetrieval(err error) bool {
	var vre *ValueRetrievalError
	return errors.As(err, &vre)
}
