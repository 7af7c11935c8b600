package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mkravets/shortener/internal/database"
	"github.com/mkravets/shortener/internal/models"
)

type urlRecord struct {
	ID          int64      `db:"id"`
	Code        string     `db:"code"`
	OriginalURL string     `db:"original_url"`
	AccessCount int64      `db:"access_count"`
	CreatedAt   time.Time  `db:"created_at"`
	ExpiresAt   *time.Time `db:"expires_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	return &models.URL{
		ID:          r.ID,
		Code:        r.Code,
		OriginalURL: r.OriginalURL,
		AccessCount: r.AccessCount,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}

type accessEventRecord struct {
	ID         int64     `db:"id"`
	URLID      int64     `db:"url_id"`
	OccurredAt time.Time `db:"occurred_at"`
	OriginAddr string    `db:"origin_addr"`
	UserAgent  string    `db:"user_agent"`
	Referrer   string    `db:"referrer"`
}

func (r *accessEventRecord) ToAccessEvent() models.AccessEvent {
	return models.AccessEvent{
		ID:         r.ID,
		URLID:      r.URLID,
		OccurredAt: r.OccurredAt,
		OriginAddr: r.OriginAddr,
		UserAgent:  r.UserAgent,
		Referrer:   r.Referrer,
	}
}

// URLRepository persists shortened URLs and their access events in PostgreSQL.
// The UNIQUE constraint on urls.code is the authoritative uniqueness guarantee;
// violations surface as database.ErrCodeExists.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

func (r *URLRepository) Create(ctx context.Context, code, originalURL string, expiresAt *time.Time) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(code, original_url, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, code, originalURL, expiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

func (r *URLRepository) GetByCode(ctx context.Context, code string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE code = $1`

	err := r.db.GetContext(ctx, rec, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

func (r *URLRepository) GetByCodeWithEvents(ctx context.Context, code string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByCodeWithEvents"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE code = $1`

	err := r.db.GetContext(ctx, rec, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	var eventRecs []accessEventRecord
	query = `SELECT * FROM url_access_events
		WHERE url_id = $1
		ORDER BY occurred_at`

	if err := r.db.SelectContext(ctx, &eventRecs, query, rec.ID); err != nil {
		return nil, fmt.Errorf("%s: failed to get access events: %w", op, err)
	}

	url := rec.ToURL()
	url.AccessEvents = make([]models.AccessEvent, 0, len(eventRecs))
	for _, eventRec := range eventRecs {
		url.AccessEvents = append(url.AccessEvents, eventRec.ToAccessEvent())
	}

	return url, nil
}

func (r *URLRepository) GetByOriginalURL(ctx context.Context, originalURL string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByOriginalURL"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE original_url = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, rec, query, originalURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

func (r *URLRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const op = "database.postgres.URLRepository.CodeExists"

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM urls WHERE code = $1)`

	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("%s: failed to check code existence: %w", op, err)
	}

	return exists, nil
}

// RecordAccess bumps the access counter and appends the access event in one
// transaction, so the counter never runs ahead of the event log. The counter
// update is a single atomic UPDATE, so concurrent increments are never lost.
func (r *URLRepository) RecordAccess(ctx context.Context, event *models.AccessEvent) (*models.AccessEvent, error) {
	const op = "database.postgres.URLRepository.RecordAccess"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE urls
		SET access_count = access_count + 1
		WHERE id = $1`

	res, err := tx.ExecContext(ctx, query, event.URLID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to increment access count: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	rec := new(accessEventRecord)
	query = `INSERT INTO url_access_events(url_id, occurred_at, origin_addr, user_agent, referrer)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`

	err = tx.GetContext(ctx, rec, query,
		event.URLID, event.OccurredAt, event.OriginAddr, event.UserAgent, event.Referrer)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to append access event: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	persisted := rec.ToAccessEvent()

	return &persisted, nil
}

func (r *URLRepository) ListRecent(ctx context.Context, count int) ([]models.URL, error) {
	const op = "database.postgres.URLRepository.ListRecent"

	var recs []urlRecord
	query := `SELECT * FROM urls
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	if err := r.db.SelectContext(ctx, &recs, query, count); err != nil {
		return nil, fmt.Errorf("%s: failed to list recent urls: %w", op, err)
	}

	urls := make([]models.URL, 0, len(recs))
	for _, rec := range recs {
		urls = append(urls, *rec.ToURL())
	}

	return urls, nil
}
