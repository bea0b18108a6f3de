package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrShortIDTaken = errors.New("short id already taken")
)

// LinkRepository is the durable record store. It is the single source of
// truth: uniqueness of short_id and the visit_count/clicks coupling are
// enforced here, not in service code.
type LinkRepository interface {
	Insert(ctx context.Context, link *models.Link) error
	FindByShortID(ctx context.Context, shortID string) (*models.Link, error)
	DeleteByShortID(ctx context.Context, shortID string) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	IncrementVisit(ctx context.Context, shortID string, click *models.Click) error
	UpdateOriginalURL(ctx context.Context, shortID string, newURL string) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error)
	ListClicks(ctx context.Context, linkID int64) ([]models.Click, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Insert(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (short_id, original_url, owner_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.ShortID,
		link.OriginalURL,
		link.OwnerID,
		link.CreatedAt,
		link.ExpiresAt,
	).Scan(&link.ID, &link.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrShortIDTaken
		}
		return fmt.Errorf("failed to insert link: %w", err)
	}

	return nil
}

// FindByShortID returns the record regardless of expiry; the caller decides
// what an expired record means.
func (r *linkRepository) FindByShortID(ctx context.Context, shortID string) (*models.Link, error) {
	query := `
		SELECT id, short_id, original_url, owner_id, visit_count, expires_at, created_at
		FROM links
		WHERE short_id = $1
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, shortID).Scan(
		&link.ID,
		&link.ShortID,
		&link.OriginalURL,
		&link.OwnerID,
		&link.VisitCount,
		&link.ExpiresAt,
		&link.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) DeleteByShortID(ctx context.Context, shortID string) (int64, error) {
	query := `DELETE FROM links WHERE short_id = $1`

	result, err := r.db.Pool.Exec(ctx, query, shortID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete link: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *linkRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM links WHERE expires_at IS NOT NULL AND expires_at <= $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired links: %w", err)
	}

	return result.RowsAffected(), nil
}

// IncrementVisit bumps visit_count and appends the click row in one
// statement, so concurrent resolves never lose an increment and the
// counter stays equal to the click log length.
func (r *linkRepository) IncrementVisit(ctx context.Context, shortID string, click *models.Click) error {
	query := `
		WITH bumped AS (
			UPDATE links
			SET visit_count = visit_count + 1
			WHERE short_id = $1
			RETURNING id
		)
		INSERT INTO clicks (link_id, ip_address, clicked_at)
		SELECT id, $2, $3 FROM bumped
	`

	result, err := r.db.Pool.Exec(ctx, query, shortID, click.IPAddress, click.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record visit: %w", err)
	}

	// Ссылка могла исчезнуть между чтением и инкрементом (delete или sweep)
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) UpdateOriginalURL(ctx context.Context, shortID string, newURL string) error {
	query := `UPDATE links SET original_url = $2 WHERE short_id = $1`

	result, err := r.db.Pool.Exec(ctx, query, shortID, newURL)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	query := `
		SELECT id, short_id, original_url, owner_id, visit_count, expires_at, created_at
		FROM links
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(
			&link.ID,
			&link.ShortID,
			&link.OriginalURL,
			&link.OwnerID,
			&link.VisitCount,
			&link.ExpiresAt,
			&link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

func (r *linkRepository) ListClicks(ctx context.Context, linkID int64) ([]models.Click, error) {
	query := `
		SELECT id, link_id, ip_address, clicked_at
		FROM clicks
		WHERE link_id = $1
		ORDER BY clicked_at, id
	`

	rows, err := r.db.Pool.Query(ctx, query, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	defer rows.Close()

	var clicks []models.Click
	for rows.Next() {
		var click models.Click
		if err := rows.Scan(&click.ID, &click.LinkID, &click.IPAddress, &click.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, click)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clicks: %w", err)
	}

	return clicks, nil
}

// isUniqueViolation распознаёт нарушение уникального ограничения short_id
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
