//go:build integration

// internal/repository/postgres/credit_repo_integration_test.go
//
// Runs against a real PostgreSQL: set TEST_DATABASE_URL and build with
// the integration tag. Embedded migrations are applied on first connect.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"repurpose-service/internal/db"
	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, db.Migrate(url))

	pool, err := db.ConnectDB(url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedLTDUser(t *testing.T, pool *pgxpool.Pool, credits, limit float64) int64 {
	t.Helper()
	ctx := context.Background()

	var userID int64
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email, plan_type, ltd_tier, subscription_status, credits, monthly_credit_limit, credit_reset_date)
		VALUES ($1, 'ltd', 2, 'ltd_tier2', $2, $3, NOW() + INTERVAL '1 month')
		RETURNING id
	`, fmt.Sprintf("debit-race-%d@test.local", time.Now().UnixNano()), credits, limit).Scan(&userID)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
	})
	return userID
}

// Two debits that jointly exceed the balance race for the same row lock.
// Exactly one may commit; the loser sees the post-commit balance and no
// second log row appears.
func TestDebitConcurrentExactlyOneSucceeds(t *testing.T) {
	pool := testPool(t)
	repo := NewCreditRepository(pool)
	ctx := context.Background()

	userID := seedLTDUser(t, pool, 10, 300)

	type outcome struct {
		remaining float64
		err       error
	}
	results := make([]outcome, 2)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			remaining, err := repo.Debit(ctx, userID, 7, "content_repurposing", nil)
			results[i] = outcome{remaining, err}
		}(i)
	}
	wg.Wait()

	var succeeded, refused int
	for _, r := range results {
		switch {
		case r.err == nil:
			succeeded++
			assert.InDelta(t, 3.0, r.remaining, 0.001)
		case errors.Is(r.err, xerrors.ErrInsufficientCredits):
			refused++
			assert.InDelta(t, 3.0, r.remaining, 0.001, "loser must report the post-commit balance")
		default:
			t.Fatalf("unexpected debit error: %v", r.err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, refused)

	var balance float64
	require.NoError(t, pool.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&balance))
	assert.InDelta(t, 3.0, balance, 0.001)

	var logged int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM credit_usage_log WHERE user_id = $1`, userID).Scan(&logged))
	assert.Equal(t, 1, logged, "the refused debit must not leave a log row")
}

// A wider fan-out: 20 unit debits against a balance of 10. The row lock
// serializes them, so exactly ten commit and the balance lands on zero
// with every unit accounted for in the log.
func TestDebitConcurrentConservation(t *testing.T) {
	pool := testPool(t)
	repo := NewCreditRepository(pool)
	ctx := context.Background()

	userID := seedLTDUser(t, pool, 10, 300)

	const attempts = 20
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Debit(ctx, userID, 1, "schedule_post", nil)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, xerrors.ErrInsufficientCredits)
	}
	assert.Equal(t, 10, succeeded)

	var balance float64
	require.NoError(t, pool.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&balance))
	assert.InDelta(t, 0.0, balance, 0.001)

	var logged int
	var debited float64
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(credits_used), 0)
		FROM credit_usage_log WHERE user_id = $1
	`, userID).Scan(&logged, &debited))
	assert.Equal(t, 10, logged)
	assert.InDelta(t, 10.0, debited, 0.001, "debits logged must equal credits spent")
}
