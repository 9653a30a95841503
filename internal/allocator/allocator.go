// Package allocator reserves short codes by atomically creating the mapping
// that carries them. Uniqueness comes from the store's create-if-absent;
// the allocator never checks before inserting.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/darkodi/linkify/internal/codegen"
	"github.com/darkodi/linkify/internal/logger"
	"github.com/darkodi/linkify/internal/model"
	"github.com/darkodi/linkify/internal/repository"
	"github.com/darkodi/linkify/internal/validator"
)

// DefaultMaxAttempts bounds generated-code retries.
const DefaultMaxAttempts = 10

var (
	// ErrCodeTaken is returned when a custom code already belongs to another mapping.
	ErrCodeTaken = errors.New("custom code is already taken")

	// ErrExhaustedRetries is returned when every generated candidate collided.
	ErrExhaustedRetries = errors.New("could not allocate a unique short code")

	// ErrInvalidCode is returned for custom codes outside the allowed shape.
	ErrInvalidCode = errors.New("invalid custom code")
)

// Allocator hands out short codes backed by a Store.
type Allocator struct {
	store       repository.Store
	gen         codegen.Generator
	maxAttempts int
	log         *logger.Logger
	now         func() time.Time
}

// New creates an Allocator. maxAttempts < 1 means DefaultMaxAttempts.
func New(store repository.Store, gen codegen.Generator, maxAttempts int, log *logger.Logger) *Allocator {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{
		store:       store,
		gen:         gen,
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
	}
}

// Reserve creates the mapping for originalURL and returns the stored record.
// A non-empty custom code gets exactly one attempt; otherwise generated
// candidates are tried until one is free or the attempt bound is reached.
// Store faults are returned unchanged.
func (a *Allocator) Reserve(ctx context.Context, originalURL, custom string) (*model.URLMapping, error) {
	if custom != "" {
		if err := checkCustom(custom); err != nil {
			return nil, err
		}
		m, err := a.store.TryCreate(ctx, a.mapping(originalURL, custom))
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrCodeTaken
		}
		return m, err
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code := a.gen.Generate()

		m, err := a.store.TryCreate(ctx, a.mapping(originalURL, code))
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}

		a.log.WithContext(ctx).Debug("short code collision, retrying",
			"short_code", code,
			"attempt", attempt,
		)
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrExhaustedRetries, a.maxAttempts)
}

func (a *Allocator) mapping(originalURL, code string) *model.URLMapping {
	now := a.now().UTC()
	return &model.URLMapping{
		ID:          uuid.NewString(),
		OriginalURL: originalURL,
		ShortCode:   code,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func checkCustom(code string) error {
	n := len(code)
	if n < validator.MinCustomCodeLength || n > validator.MaxCustomCodeLength || !codegen.IsAlphanumericString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return nil
}
