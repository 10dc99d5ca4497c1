// README: Extraction quota tests (lazy reset and quota boundary logic).
package aiusage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/storeutil"
	"routedesk/internal/storeutil/storetest"
)

// TestUseTokenCrossMonthReset verifies that a user with 0 tokens left from a previous month
// is automatically reset and the request succeeds.
func TestUseTokenCrossMonthReset(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, "INSERT INTO extraction_quota VALUES ('user_reset', 0, '2000-01')")
	require.NoError(t, err)

	require.NoError(t, svc.UseToken(ctx, "user_reset"))

	var remaining int
	require.NoError(t, db.QueryRow(ctx, "SELECT tokens_remaining FROM extraction_quota WHERE uid = 'user_reset'").Scan(&remaining))
	assert.Equal(t, DefaultTokens-1, remaining)
}

// TestUseTokenInsufficient verifies that a user with 0 tokens in the current month is blocked.
func TestUseTokenInsufficient(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, "INSERT INTO extraction_quota (uid, tokens_remaining, last_reset_month) VALUES ('user_zero', 0, TO_CHAR(NOW(), 'YYYY-MM'))")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UseToken(ctx, "user_zero"), ErrInsufficientTokens)
}

// TestUseTokenNewUser verifies that a user absent from the table is initialised on first call.
func TestUseTokenNewUser(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.UseToken(ctx, "user_new"))
	left, err := svc.Remaining(ctx, "user_new")
	require.NoError(t, err)
	assert.Equal(t, DefaultTokens-1, left)
}

func setupTestService(t *testing.T) (*Service, *pgxpool.Pool) {
	t.Helper()
	db := storetest.Open(t, "extraction_quota")
	return NewService(NewStore(db, storeutil.NewRetrier(2, 10*time.Millisecond), DefaultTokens)), db
}

type memRepo struct {
	rows map[string]int
}

func (m *memRepo) UseToken(_ context.Context, uid string, _ time.Time) error {
	n, ok := m.rows[uid]
	if !ok || n == 0 {
		return ErrInsufficientTokens
	}
	m.rows[uid] = n - 1
	return nil
}

func (m *memRepo) EnsureUser(_ context.Context, uid string, _ time.Time) error {
	if _, ok := m.rows[uid]; !ok {
		m.rows[uid] = 2
	}
	return nil
}

func (m *memRepo) Remaining(_ context.Context, uid string, _ time.Time) (int, error) {
	return m.rows[uid], nil
}

func TestServiceInitialisesThenExhausts(t *testing.T) {
	svc := NewService(&memRepo{rows: map[string]int{}})
	ctx := context.Background()

	require.NoError(t, svc.UseToken(ctx, "u"))
	require.NoError(t, svc.UseToken(ctx, "u"))
	assert.ErrorIs(t, svc.UseToken(ctx, "u"), ErrInsufficientTokens)
}
