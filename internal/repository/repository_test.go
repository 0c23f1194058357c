//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/satriadhikara/dock/internal/testutil"
)

func setupPool(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() {
		_ = pc.Terminate(context.Background())
	})

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)

	return ctx, pool
}

func seedUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool, id string) {
	t.Helper()
	_, err := pool.Exec(ctx,
		`INSERT INTO "user" (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		id, "Test User "+id, id+"@example.com", time.Now().UTC(),
	)
	require.NoError(t, err)
}

func seedContract(ctx context.Context, t *testing.T, pool *pgxpool.Pool, id, ownerID, name string) {
	t.Helper()
	_, err := pool.Exec(ctx,
		`INSERT INTO contract (id, owner_id, name, status, type, created_at)
		 VALUES ($1, $2, $3, 'Active', 'BuiltIn', $4)`,
		id, ownerID, name, time.Now().UTC(),
	)
	require.NoError(t, err)
}

// unitVec returns a 768-dimensional unit vector along the given axis.
// Distinct axes are orthogonal, so cosine similarity is 1 for the same axis
// and 0 otherwise.
func unitVec(axis int) []float32 {
	v := make([]float32, 768)
	v[axis] = 1
	return v
}

// blendVec mixes two axes so its similarity against unitVec(a) lands
// strictly between 0 and 1.
func blendVec(a, b int, weightA, weightB float32) []float32 {
	v := make([]float32, 768)
	v[a] = weightA
	v[b] = weightB
	return v
}
