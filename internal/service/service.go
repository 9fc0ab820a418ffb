package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/database"
	"github.com/vadimbarashkov/shortlink/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrMaxAttemptsExceeded is returned when the maximum number of attempts
// for allocating a unique short code is exceeded.
var ErrMaxAttemptsExceeded = errors.New("maximum attempts exceeded for allocating short code")

const (
	codeLockKeyPrefix = "shortLinkCodeLock:"
	cacheKeyPrefix    = "shortLink:"
)

// LinkRepository defines the interface for working with short link records
// at the business logic layer.
type LinkRepository interface {
	// Create inserts a new short link record.
	// Returns database.ErrCodeExists if the code is already taken.
	Create(ctx context.Context, link *models.ShortLink) error

	// ExistsByCode reports whether any record holds the given code.
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// GetByCode retrieves a link by its code.
	// Returns database.ErrLinkNotFound if no record holds the code.
	GetByCode(ctx context.Context, code string) (*models.ShortLink, error)

	// GetOriginalURL resolves a code to the original URL, applying the
	// expiry filter. Returns database.ErrLinkNotFound for unknown or
	// expired codes.
	GetOriginalURL(ctx context.Context, code string) (string, error)

	// Update persists mutable fields of an existing record.
	Update(ctx context.Context, link *models.ShortLink) error
}

// AccessLogRepository persists access log entries.
type AccessLogRepository interface {
	Create(ctx context.Context, entry *models.ShortLinkAccessLog) error
}

// Locker is the cross-process mutual exclusion primitive used to serialize
// the generate-check-create sequence for a candidate code. It is an
// optimization to reduce contention on the store's unique constraint,
// not a replacement for it.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) (bool, error)
}

// Cache is a read-through string cache. An empty string is a valid cached
// value marking a code that resolves to nothing.
type Cache interface {
	GetOrCreate(ctx context.Context, key string, populate func(ctx context.Context) (string, error)) (string, error)
	Delete(ctx context.Context, key string) error
}

// ShortLinkService provides the core short link operations: allocating
// globally unique codes, resolving codes through the cache and recording
// accesses synchronously.
type ShortLinkService struct {
	linkRepo    LinkRepository
	logRepo     AccessLogRepository
	locker      Locker
	cache       Cache
	baseURL     string
	codeLength  int
	lockTTL     time.Duration
	maxAttempts int

	// generate produces candidate codes; overridable in tests to force
	// colliding candidates.
	generate func(length int) (string, error)
}

// NewShortLinkService creates a ShortLinkService.
// The lockTTL must be finite; it bounds how long a leaked candidate lock can
// block a code. maxAttempts bounds the allocation loop.
func NewShortLinkService(
	linkRepo LinkRepository,
	logRepo AccessLogRepository,
	locker Locker,
	cache Cache,
	baseURL string,
	codeLength int,
	lockTTL time.Duration,
	maxAttempts int,
) *ShortLinkService {
	return &ShortLinkService{
		linkRepo:    linkRepo,
		logRepo:     logRepo,
		locker:      locker,
		cache:       cache,
		baseURL:     baseURL,
		codeLength:  codeLength,
		lockTTL:     lockTTL,
		maxAttempts: maxAttempts,
		generate: func(length int) (string, error) {
			return gonanoid.New(length)
		},
	}
}

// CreateShortLink allocates a unique code and persists a new short link
// record under it.
//
// Contention (another allocator holds the candidate's lock) and collision
// (the candidate is already allocated) are consumed inside the loop by
// retrying with a fresh candidate; infrastructure failures surface
// immediately. The lock held for a collided candidate is deliberately not
// released: it self-expires via TTL, which bounds the window without a
// cleanup path. The store's unique constraint remains the final backstop.
func (s *ShortLinkService) CreateShortLink(ctx context.Context, longURL string, isExpiring bool, expiresAt *time.Time) (*models.ShortLink, error) {
	const op = "service.ShortLinkService.CreateShortLink"

	code, err := s.allocateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to allocate short code: %w", op, err)
	}

	shortURL := s.baseURL + "/" + code
	link := models.NewShortLink(longURL, shortURL, code, isExpiring, expiresAt)

	if err := s.linkRepo.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("%s: failed to create short link: %w", op, err)
	}

	// A prior lookup may have cached the empty-string sentinel for this
	// code; evict it so the new mapping is visible immediately.
	if err := s.cache.Delete(ctx, cacheKeyPrefix+code); err != nil {
		return nil, fmt.Errorf("%s: failed to invalidate cache entry: %w", op, err)
	}

	if _, err := s.locker.Release(ctx, codeLockKeyPrefix+code); err != nil {
		return nil, fmt.Errorf("%s: failed to release code lock: %w", op, err)
	}

	return link, nil
}

func (s *ShortLinkService) allocateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := s.generate(s.codeLength)
		if err != nil {
			return "", err
		}

		acquired, err := s.locker.TryAcquire(ctx, codeLockKeyPrefix+code, s.lockTTL)
		if err != nil {
			return "", err
		}
		if !acquired {
			// Another allocator is racing on this candidate.
			continue
		}

		exists, err := s.linkRepo.ExistsByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if exists {
			// Already allocated by a prior run. The lock stays held and
			// expires on its own.
			continue
		}

		return code, nil
	}

	return "", ErrMaxAttemptsExceeded
}

// GetOriginalURL resolves a code to the original URL through the cache.
// The empty-string sentinel marks a code known to resolve to nothing, so
// repeated lookups of unknown codes don't hit the store.
func (s *ShortLinkService) GetOriginalURL(ctx context.Context, code string) (string, bool, error) {
	const op = "service.ShortLinkService.GetOriginalURL"

	originalURL, err := s.cache.GetOrCreate(ctx, cacheKeyPrefix+code, func(ctx context.Context) (string, error) {
		longURL, err := s.linkRepo.GetOriginalURL(ctx, code)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				return "", nil
			}

			return "", err
		}

		return longURL, nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return originalURL, originalURL != "", nil
}

// GetShortLinkStats returns the link record holding access statistics for
// a code. It reads the store directly, bypassing the cache, so the attempt
// counter is current. A missing code reports found=false without error.
func (s *ShortLinkService) GetShortLinkStats(ctx context.Context, code string) (*models.ShortLink, bool, error) {
	const op = "service.ShortLinkService.GetShortLinkStats"

	link, err := s.linkRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%s: failed to get short link: %w", op, err)
	}

	return link, true, nil
}

// TrackAccess records one access to a code: it increments the link's
// attempt counter and appends an access log entry. A missing code is an
// expected outcome, reported as false without error and without writes.
func (s *ShortLinkService) TrackAccess(ctx context.Context, code, ipAddress, userAgent string, accessedAt time.Time) (bool, error) {
	const op = "service.ShortLinkService.TrackAccess"

	link, err := s.linkRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("%s: failed to get short link: %w", op, err)
	}

	link.IncrementAttemptCount()

	if err := s.linkRepo.Update(ctx, link); err != nil {
		return false, fmt.Errorf("%s: failed to update attempt count: %w", op, err)
	}

	entry := models.NewShortLinkAccessLog(link.ID, link.Code, ipAddress, userAgent, accessedAt)

	if err := s.logRepo.Create(ctx, entry); err != nil {
		return false, fmt.Errorf("%s: failed to create access log entry: %w", op, err)
	}

	return true, nil
}
