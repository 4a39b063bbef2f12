package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"link-shortener/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound sentinel
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by Save when the identifier is already taken.
var ErrConflict = errors.New("identifier already exists")

// PostgreSQL unique_violation
const uniqueViolation = "23505"

type Repo struct {
	DB *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{DB: db}
}

// NewPool opens a connection pool capped at maxConns and verifies it with a ping.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (r *Repo) Save(ctx context.Context, id, targetURL string, expiration time.Time) (*model.Link, error) {
	q := `INSERT INTO links (id, target_url, expiration) VALUES ($1, $2, $3) RETURNING id, target_url, expiration`
	rows, _ := r.DB.Query(ctx, q, id, targetURL, expiration)
	link, err := collectLink(rows)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("save link %q: %w", id, ErrConflict)
		}
		return nil, fmt.Errorf("save link %q: %w", id, err)
	}
	return link, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*model.Link, error) {
	q := `SELECT id, target_url, expiration FROM links WHERE id = $1`
	rows, _ := r.DB.Query(ctx, q, id)
	link, err := collectLink(rows)
	if err != nil {
		return nil, fmt.Errorf("get link %q: %w", id, err)
	}
	return link, nil
}

func (r *Repo) Update(ctx context.Context, id, targetURL string, expiration time.Time) (*model.Link, error) {
	q := `UPDATE links SET target_url = $1, expiration = $2 WHERE id = $3 RETURNING id, target_url, expiration`
	rows, _ := r.DB.Query(ctx, q, targetURL, expiration, id)
	link, err := collectLink(rows)
	if err != nil {
		return nil, fmt.Errorf("update link %q: %w", id, err)
	}
	return link, nil
}

// DeleteExpired removes every link whose expiration is at or before now and
// reports how many rows went away.
func (r *Repo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM links WHERE expiration <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired links: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) SaveStatistics(ctx context.Context, event model.StatisticsEvent) error {
	q := `INSERT INTO link_statistics (link_id, referer, user_agent, recorded_at) VALUES ($1, $2, $3, $4)`
	recordedAt := event.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	if _, err := r.DB.Exec(ctx, q, event.LinkID, event.Referer, event.UserAgent, recordedAt); err != nil {
		return fmt.Errorf("save statistics for %q: %w", event.LinkID, err)
	}
	return nil
}

// GetStatistics filters on link_id before grouping, so links sharing a
// referer and user agent never pool their counts.
func (r *Repo) GetStatistics(ctx context.Context, linkID string) ([]model.LinkStatistics, error) {
	q := `
		SELECT count(*) AS hits, referer, user_agent
		FROM link_statistics
		WHERE link_id = $1
		GROUP BY referer, user_agent
		ORDER BY hits DESC
	`
	rows, _ := r.DB.Query(ctx, q, linkID)
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.LinkStatistics])
	if err != nil {
		return nil, fmt.Errorf("get statistics for %q: %w", linkID, err)
	}
	if stats == nil {
		stats = []model.LinkStatistics{}
	}
	return stats, nil
}

func collectLink(rows pgx.Rows) (*model.Link, error) {
	link, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.Link])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	link.Expiration = link.Expiration.UTC()
	return &link, nil
}
