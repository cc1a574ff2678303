package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/angeloszaimis/currency-exchange/internal/cache"
)

// Service is the cache-aware entry point for currency exchanges.
type Service struct {
	repo   Repository
	cache  cache.Cache
	logger *slog.Logger
}

// NewService binds the service to the CacheName cache of caches.
func NewService(repo Repository, caches cache.Manager, logger *slog.Logger) (*Service, error) {
	c, ok := caches.GetCache(CacheName)
	if !ok {
		return nil, fmt.Errorf("cache %q is not available", CacheName)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, cache: c, logger: logger}, nil
}

// Retrieve returns the exchange for a currency pair, or nil when there is
// none. Absence is cached like any other result.
func (s *Service) Retrieve(ctx context.Context, from, to string) (*CurrencyExchange, error) {
	return cache.Load(ctx, s.cache, Key(from, to), func(ctx context.Context) (*CurrencyExchange, error) {
		e, err := s.repo.FindByFromAndTo(ctx, from, to)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return e, err
	})
}

func (s *Service) List(ctx context.Context) ([]CurrencyExchange, error) {
	return s.repo.FindAll(ctx)
}

func (s *Service) Create(ctx context.Context, e *CurrencyExchange) (*CurrencyExchange, error) {
	if err := e.Validate(); err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, err.Error())
	}

	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, err
	}
	s.put(ctx, created)
	return created, nil
}

// Update replaces the exchange with the given id. e.Version must be the
// version the caller last read. It returns nil when id does not exist.
func (s *Service) Update(ctx context.Context, id int64, e *CurrencyExchange) (*CurrencyExchange, error) {
	replacement := *e
	replacement.ID = id
	if err := replacement.Validate(); err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, err.Error())
	}

	existing, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s.save(ctx, existing, &replacement)
}

// Patch applies the set fields of p to the exchange with the given id. It
// returns nil when id does not exist.
func (s *Service) Patch(ctx context.Context, id int64, p Patch) (*CurrencyExchange, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	patched := *existing
	p.Apply(&patched)
	if err := patched.Validate(); err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, err.Error())
	}

	return s.save(ctx, existing, &patched)
}

// Delete removes the exchange for a currency pair and evicts its cache
// entry whether or not a row existed.
func (s *Service) Delete(ctx context.Context, from, to string) (bool, error) {
	deleted, err := s.delete(ctx, from, to)
	if err != nil {
		return false, err
	}
	s.evict(ctx, Key(from, to))
	return deleted, nil
}

func (s *Service) delete(ctx context.Context, from, to string) (bool, error) {
	e, err := s.repo.FindByFromAndTo(ctx, from, to)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = s.repo.DeleteByID(ctx, e.ID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) save(ctx context.Context, existing, next *CurrencyExchange) (*CurrencyExchange, error) {
	updated, err := s.repo.Update(ctx, next)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if oldKey := existing.Key(); oldKey != updated.Key() {
		s.evict(ctx, oldKey)
	}
	s.put(ctx, updated)
	return updated, nil
}

func (s *Service) put(ctx context.Context, e *CurrencyExchange) {
	if err := s.cache.Put(ctx, e.Key(), e); err != nil {
		s.logger.Warn("Failed to cache currency exchange",
			slog.String("key", e.Key()),
			slog.String("error", err.Error()))
	}
}

func (s *Service) evict(ctx context.Context, key string) {
	if err := s.cache.Evict(ctx, key); err != nil {
		s.logger.Warn("Failed to evict currency exchange",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}
