package model

import "time"

// URLMapping is a stored short code -> original URL association
type URLMapping struct {
	ID          string    `json:"id"`          // UUID, assigned at creation
	OriginalURL string    `json:"originalUrl"` // normalized, always http:// or https://
	ShortCode   string    `json:"shortCode"`   // globally unique
	Clicks      int64     `json:"clicks"`      // only advanced by click increments
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateURLRequest is the API request body
type CreateURLRequest struct {
	URL        string  `json:"url"`                  // original long URL
	CustomCode *string `json:"customCode,omitempty"` // optional custom short code; nil when absent
}

// Custom returns the requested custom code, or "" when none was sent.
func (r CreateURLRequest) Custom() string {
	if r.CustomCode == nil {
		return ""
	}
	return *r.CustomCode
}

// URLResponse is a mapping plus its full short URL
type URLResponse struct {
	URLMapping
	ShortURL string `json:"shortUrl"`
}

// Pagination describes one page of a listing
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// ListURLsResponse is the API response for GET /api/urls
type ListURLsResponse struct {
	URLs       []URLResponse `json:"urls"`
	Pagination Pagination    `json:"pagination"`
}
