package snapshot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mfenderov/duyuru-watch/internal/config"
	"github.com/mfenderov/duyuru-watch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(n int) models.Snapshot {
	items := make([]models.Announcement, n)
	for i := range items {
		items[i] = models.NewAnnouncement(
			fmt.Sprintf("Duyuru %d başlığı", i+1),
			fmt.Sprintf("https://ankara.adalet.gov.tr/Duyurular/d-%d", i+1),
			"15.01.2025")
	}
	return models.Snapshot{
		Items:     items,
		CheckedAt: time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC),
	}
}

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing snapshot loads empty", func(t *testing.T) {
		require.NoError(t, s.Reset(ctx))
		snap, err := s.Load(ctx)
		require.NoError(t, err)
		assert.True(t, snap.IsEmpty())
		assert.True(t, snap.CheckedAt.IsZero())
	})

	t.Run("save then load round trips", func(t *testing.T) {
		want := sampleSnapshot(3)
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want.Items, got.Items)
		assert.True(t, want.CheckedAt.Equal(got.CheckedAt))
	})

	t.Run("save replaces previous snapshot", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, sampleSnapshot(3)))
		next := sampleSnapshot(1)
		next.CheckedAt = next.CheckedAt.Add(time.Hour)
		require.NoError(t, s.Save(ctx, next))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.True(t, next.CheckedAt.Equal(got.CheckedAt))
	})

	t.Run("empty list is persisted", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, models.Snapshot{CheckedAt: time.Now()}))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got.Items)
		assert.False(t, got.CheckedAt.IsZero())
	})

	t.Run("reset clears", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, sampleSnapshot(2)))
		require.NoError(t, s.Reset(ctx))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
	})
}

func TestMemory(t *testing.T) {
	runStoreContract(t, NewMemory())
}

func TestMemory_IsolatesCallers(t *testing.T) {
	m := NewMemory()
	snap := sampleSnapshot(2)
	require.NoError(t, m.Save(t.Context(), snap))

	snap.Items[0].Title = "changed by caller"
	got, err := m.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Duyuru 1 başlığı", got.Items[0].Title)

	got.Items[1].Title = "changed by reader"
	again, _ := m.Load(t.Context())
	assert.Equal(t, "Duyuru 2 başlığı", again.Items[1].Title)
}

func TestBounded_TruncatesOnSave(t *testing.T) {
	s := Bounded(NewMemory(), 50)
	require.NoError(t, s.Save(t.Context(), sampleSnapshot(60)))

	got, err := s.Load(t.Context())
	require.NoError(t, err)
	require.Len(t, got.Items, 50)
	assert.Equal(t, "d-1", got.Items[0].ID)
	assert.Equal(t, "d-50", got.Items[49].ID)
}

func TestBounded_NonPositiveIsUnbounded(t *testing.T) {
	m := NewMemory()
	assert.Same(t, m, Bounded(m, 0))
}

func TestOpen(t *testing.T) {
	cfg := config.Defaults().Store
	cfg.Backend = "memory"

	s, err := Open(t.Context(), cfg)
	require.NoError(t, err)
	defer s.Close()
	runStoreContract(t, s)

	cfg.Backend = "sqlite"
	cfg.SQLite.Path = t.TempDir() + "/state.db"
	s2, err := Open(t.Context(), cfg)
	require.NoError(t, err)
	defer s2.Close()
	require.NoError(t, s2.Save(t.Context(), sampleSnapshot(55)))
	got, err := s2.Load(t.Context())
	require.NoError(t, err)
	assert.Len(t, got.Items, 50)

	cfg.Backend = "cassandra"
	_, err = Open(t.Context(), cfg)
	assert.Error(t, err)
}

func TestOpen_InvalidBackendConfig(t *testing.T) {
	cfg := config.Defaults().Store
	cfg.Backend = "s3"
	cfg.S3.Bucket = ""

	_, err := Open(t.Context(), cfg)

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "open", se.Op)
	assert.Equal(t, "s3", se.Backend)
}
