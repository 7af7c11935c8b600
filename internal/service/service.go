package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mkravets/shortener/internal/cachestore"
	"github.com/mkravets/shortener/internal/database"
	"github.com/mkravets/shortener/internal/models"
	"github.com/mkravets/shortener/internal/shortcode"
)

var (
	// ErrInvalidURL is returned when the input is not an absolute URL with
	// an http or https scheme. No record is created for invalid input.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidArgument is returned for bad count parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrURLExpired is returned by RecordAccess when the code exists but is
	// past its expiration. Read paths report expired codes as not found;
	// only the access-recording path distinguishes the two.
	ErrURLExpired = errors.New("url expired")
)

// URLRepository defines the persistence operations the service relies on.
// The store must enforce code uniqueness at commit time and must implement
// RecordAccess as a single atomic unit.
type URLRepository interface {
	// Create inserts a new shortened URL.
	// Returns database.ErrCodeExists when the code is already claimed.
	Create(ctx context.Context, code, originalURL string, expiresAt *time.Time) (*models.URL, error)

	// GetByCode retrieves a URL by its short code.
	// Returns database.ErrURLNotFound if no record exists.
	GetByCode(ctx context.Context, code string) (*models.URL, error)

	// GetByCodeWithEvents retrieves a URL along with its access events,
	// ordered oldest first.
	GetByCodeWithEvents(ctx context.Context, code string) (*models.URL, error)

	// GetByOriginalURL retrieves the most recent record for an original URL.
	GetByOriginalURL(ctx context.Context, originalURL string) (*models.URL, error)

	// CodeExists reports whether a code is already claimed.
	CodeExists(ctx context.Context, code string) (bool, error)

	// RecordAccess atomically bumps the access counter and persists the
	// event, returning the event with its store-assigned fields. The two
	// writes must commit together.
	RecordAccess(ctx context.Context, event *models.AccessEvent) (*models.AccessEvent, error)

	// ListRecent returns up to count URLs ordered by creation time descending.
	ListRecent(ctx context.Context, count int) ([]models.URL, error)
}

// URLCache is a look-aside cache for resolved URLs. It is advisory: a miss
// or failure never stands in for the store's answer.
type URLCache interface {
	// GetURL returns a cached URL or cachestore.ErrCacheMiss.
	GetURL(ctx context.Context, code string) (*models.URL, error)

	// SetURL caches a resolved URL.
	SetURL(ctx context.Context, url *models.URL) error
}

// AccessDetails carries the optional request attributes recorded with an
// access event. Empty fields are stored as such.
type AccessDetails struct {
	OriginAddr string
	UserAgent  string
	Referrer   string
}

// URLService implements the URL shortening core: code resolution, persistence,
// soft expiry and access accounting. It owns no mutable state of its own and
// is safe for concurrent use.
type URLService struct {
	repo        URLRepository
	cache       URLCache
	resolver    *shortcode.Resolver
	logger      *slog.Logger
	codeLength  int
	maxAttempts int
	dedupURLs   bool
}

type Option func(*URLService)

// WithCache decorates the resolve path with a look-aside cache.
// The write path never touches the cache.
func WithCache(cache URLCache) Option {
	return func(s *URLService) {
		s.cache = cache
	}
}

// WithCodeLength sets the length of generated short codes.
func WithCodeLength(length int) Option {
	return func(s *URLService) {
		s.codeLength = length
	}
}

// WithMaxAttempts sets the retry budget for code generation and for
// commit-time unique violations.
func WithMaxAttempts(n int) Option {
	return func(s *URLService) {
		s.maxAttempts = n
	}
}

// WithDedupURLs makes Shorten return the existing live record when the same
// original URL was already shortened, instead of creating a new one.
func WithDedupURLs() Option {
	return func(s *URLService) {
		s.dedupURLs = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *URLService) {
		s.logger = logger
	}
}

func New(repo URLRepository, opts ...Option) *URLService {
	s := &URLService{
		repo:        repo,
		logger:      slog.Default(),
		codeLength:  shortcode.DefaultLength,
		maxAttempts: shortcode.DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.resolver = shortcode.NewResolver(repo, s.codeLength, s.maxAttempts)

	return s
}

// Shorten validates the original URL, resolves a unique code for it and
// persists the mapping. A nil ttl means the URL never expires.
//
// The resolver's existence check and the insert are not atomic, so a resolved
// code can still lose the race at commit time. The store signals that with
// database.ErrCodeExists and resolution is retried from scratch, bounded by
// the attempt budget.
func (s *URLService) Shorten(ctx context.Context, originalURL string, ttl *time.Duration) (*models.URL, error) {
	const op = "service.URLService.Shorten"

	if err := validateURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.dedupURLs {
		existing, err := s.repo.GetByOriginalURL(ctx, originalURL)
		switch {
		case err == nil:
			if !existing.Expired(time.Now()) {
				return existing, nil
			}
		case !errors.Is(err, database.ErrURLNotFound):
			return nil, fmt.Errorf("%s: failed to look up original url: %w", op, err)
		}
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().Add(*ttl)
		expiresAt = &t
	}

	for i := 0; i < s.maxAttempts; i++ {
		code, err := s.resolver.UniqueCode(ctx, originalURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		url, err := s.repo.Create(ctx, code, originalURL, expiresAt)
		if err != nil {
			if errors.Is(err, database.ErrCodeExists) {
				// Lost the race between the existence check and the insert.
				continue
			}

			return nil, fmt.Errorf("%s: failed to persist url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, shortcode.ErrCodeSpaceExhausted)
}

// Resolve returns the URL for a code. Absent and expired codes are both
// reported as database.ErrURLNotFound. When a cache is configured it is
// consulted first and populated on miss; cache failures degrade to a store
// read.
func (s *URLService) Resolve(ctx context.Context, code string) (*models.URL, error) {
	const op = "service.URLService.Resolve"

	if s.cache != nil {
		cached, err := s.cache.GetURL(ctx, code)
		switch {
		case err == nil:
			if cached.Expired(time.Now()) {
				return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
			}
			return cached, nil
		case !errors.Is(err, cachestore.ErrCacheMiss):
			s.logger.Warn("cache read failed, falling back to store", slog.Any("err", err))
		}
	}

	url, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve code: %w", op, err)
	}

	if url.Expired(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	if s.cache != nil {
		if err := s.cache.SetURL(ctx, url); err != nil {
			s.logger.Warn("failed to populate cache", slog.Any("err", err))
		}
	}

	return url, nil
}

// ResolveWithHistory returns the URL for a code along with its recorded
// access events, oldest first. The history always comes from the store.
func (s *URLService) ResolveWithHistory(ctx context.Context, code string) (*models.URL, error) {
	const op = "service.URLService.ResolveWithHistory"

	url, err := s.repo.GetByCodeWithEvents(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve code: %w", op, err)
	}

	if url.Expired(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return url, nil
}

// RecordAccess increments the access counter for a code and appends an
// access event in a single store transaction. It returns the URL it resolved
// so callers acting on the access, like the redirect path, need no second
// lookup. Expired codes fail with ErrURLExpired, distinguishable from absent
// ones.
func (s *URLService) RecordAccess(ctx context.Context, code string, details AccessDetails) (*models.URL, *models.AccessEvent, error) {
	const op = "service.URLService.RecordAccess"

	url, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to resolve code: %w", op, err)
	}

	if url.Expired(time.Now()) {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrURLExpired)
	}

	event, err := s.repo.RecordAccess(ctx, &models.AccessEvent{
		URLID:      url.ID,
		OccurredAt: time.Now().UTC(),
		OriginAddr: details.OriginAddr,
		UserAgent:  details.UserAgent,
		Referrer:   details.Referrer,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to record access: %w", op, err)
	}

	url.AccessCount++

	return url, event, nil
}

// ListRecent returns up to count URLs ordered by creation time descending.
// Negative counts fail with ErrInvalidArgument; zero returns an empty list.
func (s *URLService) ListRecent(ctx context.Context, count int) ([]models.URL, error) {
	const op = "service.URLService.ListRecent"

	if count < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}
	if count == 0 {
		return []models.URL{}, nil
	}

	urls, err := s.repo.ListRecent(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list recent urls: %w", op, err)
	}

	return urls, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}

	if !u.IsAbs() || u.Host == "" {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}

	return nil
}
