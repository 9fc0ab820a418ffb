package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/database"
	"github.com/vadimbarashkov/shortlink/internal/models"
)

type shortLinkRecord struct {
	ID           uuid.UUID    `db:"id"`
	LongURL      string       `db:"long_url"`
	ShortURL     string       `db:"short_url"`
	Code         string       `db:"code"`
	IsExpiring   bool         `db:"is_expiring"`
	ExpiresAt    sql.NullTime `db:"expires_at"`
	AttemptCount int64        `db:"attempt_count"`
	CreatedAt    time.Time    `db:"created_at"`
}

func (r *shortLinkRecord) ToShortLink() *models.ShortLink {
	link := &models.ShortLink{
		ID:           r.ID,
		LongURL:      r.LongURL,
		ShortURL:     r.ShortURL,
		Code:         r.Code,
		IsExpiring:   r.IsExpiring,
		AttemptCount: r.AttemptCount,
		CreatedAt:    r.CreatedAt,
	}

	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		link.ExpiresAt = &t
	}

	return link
}

// ShortLinkRepository provides durable keyed storage for short link records.
// The unique constraint on the code column is the authoritative arbiter of
// allocation correctness; callers treat database.ErrCodeExists as a collision.
type ShortLinkRepository struct {
	db *sqlx.DB
}

func NewShortLinkRepository(db *sqlx.DB) *ShortLinkRepository {
	return &ShortLinkRepository{
		db: db,
	}
}

func (r *ShortLinkRepository) Create(ctx context.Context, link *models.ShortLink) error {
	const op = "database.postgres.ShortLinkRepository.Create"

	query := `INSERT INTO short_links(id, long_url, short_url, code, is_expiring, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var expiresAt sql.NullTime
	if link.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *link.ExpiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		link.ID, link.LongURL, link.ShortURL, link.Code, link.IsExpiring, expiresAt, link.CreatedAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return fmt.Errorf("%s: %w", op, database.ErrCodeExists)
		}

		return fmt.Errorf("%s: failed to create short link record: %w", op, err)
	}

	return nil
}

func (r *ShortLinkRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const op = "database.postgres.ShortLinkRepository.ExistsByCode"

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM short_links WHERE code = $1)`

	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("%s: failed to check code existence: %w", op, err)
	}

	return exists, nil
}

func (r *ShortLinkRepository) GetByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	const op = "database.postgres.ShortLinkRepository.GetByCode"

	rec := new(shortLinkRecord)
	query := `SELECT * FROM short_links WHERE code = $1`

	err := r.db.GetContext(ctx, rec, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get short link record: %w", op, err)
	}

	return rec.ToShortLink(), nil
}

func (r *ShortLinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ShortLink, error) {
	const op = "database.postgres.ShortLinkRepository.GetByID"

	rec := new(shortLinkRecord)
	query := `SELECT * FROM short_links WHERE id = $1`

	err := r.db.GetContext(ctx, rec, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get short link record: %w", op, err)
	}

	return rec.ToShortLink(), nil
}

// GetOriginalURL resolves a code to its original URL, filtering out links
// whose expiry timestamp has passed. Expired links resolve as not found
// even though the record still exists in storage.
func (r *ShortLinkRepository) GetOriginalURL(ctx context.Context, code string) (string, error) {
	const op = "database.postgres.ShortLinkRepository.GetOriginalURL"

	var longURL string
	query := `SELECT long_url FROM short_links
		WHERE code = $1 AND (NOT is_expiring OR expires_at > now())`

	err := r.db.GetContext(ctx, &longURL, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return "", fmt.Errorf("%s: failed to get original url: %w", op, err)
	}

	return longURL, nil
}

func (r *ShortLinkRepository) Update(ctx context.Context, link *models.ShortLink) error {
	const op = "database.postgres.ShortLinkRepository.Update"

	query := `UPDATE short_links
		SET long_url = $1, attempt_count = $2
		WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, link.LongURL, link.AttemptCount, link.ID)
	if err != nil {
		return fmt.Errorf("%s: failed to update short link record: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

// AccessLogRepository persists immutable access log entries.
type AccessLogRepository struct {
	db *sqlx.DB
}

func NewAccessLogRepository(db *sqlx.DB) *AccessLogRepository {
	return &AccessLogRepository{
		db: db,
	}
}

func (r *AccessLogRepository) Create(ctx context.Context, entry *models.ShortLinkAccessLog) error {
	const op = "database.postgres.AccessLogRepository.Create"

	query := `INSERT INTO short_link_access_logs(id, short_link_id, code, ip_address, user_agent, accessed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.ShortLinkID, entry.Code, entry.IPAddress, entry.UserAgent, entry.AccessedAt, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: failed to create access log record: %w", op, err)
	}

	return nil
}
