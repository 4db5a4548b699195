package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLiteRepo(t *testing.T) *SQLSnapshotRepository {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db, DialectSQLite, zap.NewNop().Sugar()))

	repo, err := NewSQLSnapshotRepository(db, DialectSQLite)
	require.NoError(t, err)
	return repo
}

func newWALRepo(t *testing.T) *WALSnapshotRepository {
	t.Helper()
	repo, err := NewWALSnapshotRepository(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// repositoryContract runs the shared store semantics against any implementation.
func repositoryContract(t *testing.T, newRepo func(t *testing.T) SnapshotRepository) {
	ctx := context.Background()
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("empty store returns nil", func(t *testing.T) {
		repo := newRepo(t)
		snap, err := repo.LatestAfter(ctx, "USD", base.Add(-10*time.Minute))
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("returns newest snapshot after threshold", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, RateSnapshot{CapturedAt: base.Add(-5 * time.Minute), Base: "USD", Rates: map[string]float64{"CAD": 1.30}}))
		require.NoError(t, repo.Put(ctx, RateSnapshot{CapturedAt: base, Base: "USD", Rates: map[string]float64{"CAD": 1.35, "USD": 1}}))

		snap, err := repo.LatestAfter(ctx, "USD", base.Add(-10*time.Minute))
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.True(t, snap.CapturedAt.Equal(base))
		assert.Equal(t, "USD", snap.Base)
		assert.Equal(t, map[string]float64{"CAD": 1.35, "USD": 1}, snap.Rates)
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, RateSnapshot{CapturedAt: base, Base: "USD", Rates: map[string]float64{"CAD": 1.35}}))

		snap, err := repo.LatestAfter(ctx, "USD", base)
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("stale snapshots are ignored", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, RateSnapshot{CapturedAt: base.Add(-time.Hour), Base: "USD", Rates: map[string]float64{"CAD": 1.30}}))

		snap, err := repo.LatestAfter(ctx, "USD", base.Add(-10*time.Minute))
		require.NoError(t, err)
		assert.Nil(t, snap)
	})
}

func TestSQLiteSnapshotRepository(t *testing.T) {
	repositoryContract(t, func(t *testing.T) SnapshotRepository { return newSQLiteRepo(t) })
}

func TestWALSnapshotRepository(t *testing.T) {
	repositoryContract(t, func(t *testing.T) SnapshotRepository { return newWALRepo(t) })
}

func TestWALSnapshotRepository_ReopenReadsLog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	repo, err := NewWALSnapshotRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, RateSnapshot{CapturedAt: at.Add(-time.Minute), Base: "USD", Rates: map[string]float64{"CAD": 1.30}}))
	require.NoError(t, repo.Put(ctx, RateSnapshot{CapturedAt: at, Base: "USD", Rates: map[string]float64{"CAD": 1.35}}))
	require.NoError(t, repo.Close())

	reopened, err := NewWALSnapshotRepository(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	snap, err := reopened.LatestAfter(ctx, "USD", at.Add(-10*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1.35, snap.Rates["CAD"])

	none, err := reopened.LatestAfter(ctx, "EUR", at.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestWALSnapshotRepository_RequiresBase(t *testing.T) {
	repo := newWALRepo(t)
	err := repo.Put(context.Background(), RateSnapshot{CapturedAt: time.Now(), Rates: map[string]float64{}})
	assert.Error(t, err)
}

func TestNewSQLSnapshotRepository_UnknownDialect(t *testing.T) {
	_, err := NewSQLSnapshotRepository(nil, Dialect("oracle"))
	assert.Error(t, err)
}
