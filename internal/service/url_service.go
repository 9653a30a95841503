package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/darkodi/linkify/internal/allocator"
	apperrors "github.com/darkodi/linkify/internal/errors"
	"github.com/darkodi/linkify/internal/logger"
	"github.com/darkodi/linkify/internal/model"
	"github.com/darkodi/linkify/internal/repository"
	"github.com/darkodi/linkify/internal/validator"
)

// Paging defaults for ListURLs
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ErrURLNotFound is returned when a short code has no mapping.
var ErrURLNotFound = fmt.Errorf("short URL not found: %w", repository.ErrNotFound)

// ClickRecorder takes clicks off the redirect path.
type ClickRecorder interface {
	Record(code string) bool
}

// URLService handles business logic for URL operations
type URLService struct {
	store     repository.Store
	allocator *allocator.Allocator
	clicks    ClickRecorder
	validator *validator.URLValidator
	baseURL   string // e.g., "http://localhost:8080/api"
	log       *logger.Logger
}

// NewURLService creates a new service instance
func NewURLService(
	store repository.Store,
	alloc *allocator.Allocator,
	clicks ClickRecorder,
	v *validator.URLValidator,
	baseURL string,
	log *logger.Logger,
) *URLService {
	return &URLService{
		store:     store,
		allocator: alloc,
		clicks:    clicks,
		validator: v,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       log,
	}
}

// CreateShortURL validates the request and reserves a code for it.
// Validation failures come back as *apperrors.AppError.
func (s *URLService) CreateShortURL(ctx context.Context, req model.CreateURLRequest) (*model.URLResponse, error) {
	// ============ STEP 1: Validation ============
	originalURL, appErr := s.validator.NormalizeURL(req.URL)
	if appErr != nil {
		return nil, appErr
	}

	custom := req.Custom()
	if req.CustomCode != nil {
		if appErr := s.validator.ValidateCustomCode(custom); appErr != nil {
			return nil, appErr
		}
	}

	// ============ STEP 2: Reserve the code ============
	m, err := s.allocator.Reserve(ctx, originalURL, custom)
	if err != nil {
		if !errors.Is(err, allocator.ErrCodeTaken) && !errors.Is(err, allocator.ErrInvalidCode) {
			s.fault(ctx, "create", custom, err)
		}
		return nil, err
	}

	s.log.WithContext(ctx).Info("Short URL created",
		"short_code", m.ShortCode,
		"custom", custom != "",
	)

	// ============ STEP 3: Build response ============
	return s.response(m), nil
}

// Resolve returns the target of code and records a click without waiting for it.
func (s *URLService) Resolve(ctx context.Context, code string) (string, error) {
	if appErr := s.validator.ValidateShortCode(code); appErr != nil {
		return "", appErr
	}

	m, err := s.find(ctx, "resolve", code)
	if err != nil {
		return "", err
	}

	s.clicks.Record(code)
	return m.OriginalURL, nil
}

// GetURLStats returns the mapping for code, including its click count.
func (s *URLService) GetURLStats(ctx context.Context, code string) (*model.URLResponse, error) {
	if appErr := s.validator.ValidateShortCode(code); appErr != nil {
		return nil, appErr
	}

	m, err := s.find(ctx, "stats", code)
	if err != nil {
		return nil, err
	}
	return s.response(m), nil
}

// ListURLs returns one page of mappings, newest first.
func (s *URLService) ListURLs(ctx context.Context, page, limit int) (*model.ListURLsResponse, error) {
	page, limit = NormalizePage(page, limit)

	urls, total, err := s.store.List(ctx, pageOffset(page, limit), limit)
	if err != nil {
		s.fault(ctx, "list", "", err)
		return nil, err
	}

	resp := &model.ListURLsResponse{
		URLs: make([]model.URLResponse, 0, len(urls)),
		Pagination: model.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}
	for i := range urls {
		resp.URLs = append(resp.URLs, *s.response(&urls[i]))
	}
	return resp, nil
}

// Health reports whether the store is reachable.
func (s *URLService) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		s.fault(ctx, "ping", "", err)
		return err
	}
	return nil
}

// ShortURL builds the public short link for code.
func (s *URLService) ShortURL(code string) string {
	return s.baseURL + "/redirect/" + code
}

// NormalizePage applies the paging defaults and the page size cap.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// pageOffset saturates at math.MaxInt so huge pages read as empty.
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

func (s *URLService) find(ctx context.Context, op, code string) (*model.URLMapping, error) {
	m, err := s.store.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrURLNotFound
	}
	if err != nil {
		s.fault(ctx, op, code, err)
		return nil, err
	}
	return m, nil
}

func (s *URLService) response(m *model.URLMapping) *model.URLResponse {
	return &model.URLResponse{
		URLMapping: *m,
		ShortURL:   s.ShortURL(m.ShortCode),
	}
}

// fault logs a storage or allocation failure; callers only see a generic error.
func (s *URLService) fault(ctx context.Context, op, code string, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return
	}
	s.log.WithContext(ctx).Error("operation failed",
		"op", op,
		"short_code", code,
		"error", err,
	)
}
