// README: Extraction quota persistence with lazy monthly reset.
package aiusage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"routedesk/internal/storeutil"
)

// Store handles extraction_quota persistence.
type Store struct {
	db     *pgxpool.Pool
	retry  storeutil.Retrier
	tokens int
}

// NewStore returns a Store granting tokens extractions per month.
func NewStore(db *pgxpool.Pool, retry storeutil.Retrier, tokens int) *Store {
	if tokens <= 0 {
		tokens = DefaultTokens
	}
	return &Store{db: db, retry: retry, tokens: tokens}
}

// UseToken atomically checks the monthly quota and deducts one token,
// resetting the counter when last_reset_month is behind the current month.
// Returns ErrInsufficientTokens when no row is updated (quota exhausted or user absent).
func (s *Store) UseToken(ctx context.Context, uid string, now time.Time) error {
	month := now.Format(monthLayout)
	return s.retry.Do(ctx, "aiusage.use_token", func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `
			UPDATE extraction_quota SET
				tokens_remaining = CASE WHEN last_reset_month <> $1 THEN $2 - 1 ELSE tokens_remaining - 1 END,
				last_reset_month = $1
			WHERE uid = $3 AND (last_reset_month < $1 OR tokens_remaining > 0)
		`, month, s.tokens, uid)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storeutil.Domain(ErrInsufficientTokens)
		}
		return nil
	})
}

// EnsureUser inserts a row with the full allowance; an existing row is left alone.
func (s *Store) EnsureUser(ctx context.Context, uid string, now time.Time) error {
	return s.retry.Do(ctx, "aiusage.ensure_user", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO extraction_quota (uid, tokens_remaining, last_reset_month)
			VALUES ($1, $2, $3)
			ON CONFLICT (uid) DO NOTHING
		`, uid, s.tokens, now.Format(monthLayout))
		return err
	})
}

// Remaining reports the tokens left this month without consuming one.
func (s *Store) Remaining(ctx context.Context, uid string, now time.Time) (int, error) {
	month := now.Format(monthLayout)
	var remaining int
	err := s.retry.Do(ctx, "aiusage.remaining", func(ctx context.Context) error {
		var last string
		err := s.db.QueryRow(ctx,
			`SELECT tokens_remaining, last_reset_month FROM extraction_quota WHERE uid = $1`, uid,
		).Scan(&remaining, &last)
		if storeutil.IsNoRows(err) {
			remaining = s.tokens
			return nil
		}
		if err != nil {
			return err
		}
		if last < month {
			remaining = s.tokens
		}
		return nil
	})
	return remaining, err
}
