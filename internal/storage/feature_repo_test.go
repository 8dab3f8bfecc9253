package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/errkind"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/frontier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(x, z int, world string) feature.Record {
	return feature.Record{
		Position:      chunkpos.Position{X: x, Z: z, World: world},
		HighestBlockY: 70 + x,
		SpotBiome:     3,
		NodeY:         42,
	}
}

// exerciseRepo прогоняет общий контракт FeatureRepo
func exerciseRepo(t *testing.T, repo FeatureRepo) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		expected := sampleRecord(10, -20, "world")

		if err := repo.Save(ctx, expected); err != nil {
			t.Fatalf("Ошибка сохранения записи: %v", err)
		}

		actual, found, err := repo.Load(ctx, expected.Position)
		if err != nil {
			t.Fatalf("Ошибка загрузки записи: %v", err)
		}
		if !found {
			t.Fatal("Запись не найдена")
		}
		if actual != expected {
			t.Errorf("Неверная запись: ожидалась %+v, получена %+v", expected, actual)
		}
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, found, err := repo.Load(ctx, chunkpos.Position{X: 999, Z: 999, World: "world"})
		if err != nil {
			t.Fatalf("Ошибка при загрузке несуществующей записи: %v", err)
		}
		if found {
			t.Error("Найдена несуществующая запись")
		}
	})

	t.Run("Invalid Position", func(t *testing.T) {
		err := repo.Save(ctx, sampleRecord(1, 1, ""))
		if !errkind.IsInvalidArgument(err) {
			t.Errorf("Ожидалась ошибка InvalidArgument, получена %v", err)
		}
	})

	t.Run("List Sorted By World", func(t *testing.T) {
		for _, rec := range []feature.Record{
			sampleRecord(3, 0, "list"),
			sampleRecord(-1, 5, "list"),
			sampleRecord(-1, 2, "list"),
			sampleRecord(0, 0, "other"),
		} {
			require.NoError(t, repo.Save(ctx, rec))
		}

		recs, err := repo.List(ctx, "list")
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, chunkpos.Position{X: -1, Z: 2, World: "list"}, recs[0].Position)
		assert.Equal(t, chunkpos.Position{X: -1, Z: 5, World: "list"}, recs[1].Position)
		assert.Equal(t, chunkpos.Position{X: 3, Z: 0, World: "list"}, recs[2].Position)
	})

	t.Run("List Glob World Name", func(t *testing.T) {
		for _, rec := range []feature.Record{
			sampleRecord(0, 0, "w*"),
			sampleRecord(0, 0, "wx"),
			sampleRecord(0, 0, "w?"),
			sampleRecord(0, 0, "w[a]"),
			sampleRecord(0, 0, "wa"),
		} {
			require.NoError(t, repo.Save(ctx, rec))
		}

		for _, world := range []string{"w*", "w?", "w[a]"} {
			recs, err := repo.List(ctx, world)
			require.NoError(t, err)
			require.Len(t, recs, 1, "мир %q", world)
			assert.Equal(t, world, recs[0].Position.World)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		rec := sampleRecord(7, 7, "world")
		require.NoError(t, repo.Save(ctx, rec))
		require.NoError(t, repo.Delete(ctx, rec.Position))

		_, found, err := repo.Load(ctx, rec.Position)
		require.NoError(t, err)
		assert.False(t, found, "запись должна быть удалена")

		assert.NoError(t, repo.Delete(ctx, rec.Position), "повторное удаление не ошибка")
	})
}

func exerciseFrontierStore(t *testing.T, store FrontierStore) {
	ctx := context.Background()

	_, found, err := store.LoadFrontier(ctx)
	require.NoError(t, err)
	assert.False(t, found, "снимка ещё нет")

	tracker := frontier.NewTracker()
	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			tracker.Observe(chunkpos.Position{X: x, Z: z, World: "world"})
		}
	}
	tracker.DrainReady()
	snap := tracker.Snapshot()

	require.NoError(t, store.SaveFrontier(ctx, snap))

	loaded, found, err := store.LoadFrontier(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap, loaded)

	restored := frontier.NewTracker()
	require.NoError(t, restored.Restore(loaded))
	assert.Equal(t, tracker.Stats(), restored.Stats())
}

func TestMemoryFeatureRepo(t *testing.T) {
	repo := NewMemoryFeatureRepo()
	exerciseRepo(t, repo)
	exerciseFrontierStore(t, repo)
}

func TestMemoryFeatureRepo_ContextCancel(t *testing.T) {
	repo := NewMemoryFeatureRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Save(ctx, sampleRecord(1, 1, "world"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, repo.Count())
}

func TestBadgerStore(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}
	defer store.Close()

	exerciseRepo(t, store)
	exerciseFrontierStore(t, store)
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	rec := sampleRecord(-5, 8, "world")

	store, err := NewBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, rec))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "повторное закрытие безопасно")

	_, _, err = store.Load(ctx, rec.Position)
	assert.Error(t, err, "закрытое хранилище не готово")

	store, err = NewBadgerStore(dir)
	require.NoError(t, err)
	defer store.Close()

	loaded, found, err := store.Load(ctx, rec.Position)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, loaded)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "geo:feature:world:", escapeGlob("geo:feature:world:"))
	assert.Equal(t, `geo:feature:w\*:`, escapeGlob("geo:feature:w*:"))
	assert.Equal(t, `w\?\[a\]\\`, escapeGlob(`w?[a]\`))
}

func TestRedisFeatureRepo(t *testing.T) {
	addr := os.Getenv("GEO_TEST_REDIS")
	if addr == "" {
		t.Skip("GEO_TEST_REDIS не задан")
	}

	cfg := DefaultRedisConfig()
	cfg.Addr = addr
	cfg.KeyPrefix = "geo-test:" + time.Now().Format("150405.000") + ":"
	cfg.TTL = time.Minute

	repo, err := NewRedisFeatureRepo(context.Background(), cfg)
	require.NoError(t, err)
	defer repo.Close()

	exerciseRepo(t, repo)
}

func TestValidTableName(t *testing.T) {
	assert.True(t, validTableName(DefaultMariaTable))
	assert.True(t, validTableName("geo_test_0915"))
	assert.False(t, validTableName("features; DROP TABLE x"))
	assert.False(t, validTableName("geo-test"))

	_, err := NewMariaFeatureRepo(context.Background(), "user:pass@tcp(127.0.0.1:1)/geo", "bad name")
	assert.True(t, errkind.IsInvalidArgument(err), "имя таблицы проверяется до подключения")
}

func TestMariaFeatureRepo(t *testing.T) {
	dsn := os.Getenv("GEO_TEST_MARIADB")
	if dsn == "" {
		t.Skip("GEO_TEST_MARIADB не задан")
	}

	ctx := context.Background()
	table := "geo_test_" + time.Now().Format("150405000")
	repo, err := NewMariaFeatureRepo(ctx, dsn, table)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = repo.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+repo.table+", "+repo.frontierTable)
		repo.Close()
	})

	exerciseRepo(t, repo)
	exerciseFrontierStore(t, repo)

	t.Run("BatchSave", func(t *testing.T) {
		batch := []feature.Record{sampleRecord(1, 1, "batch"), sampleRecord(0, 2, "batch"), sampleRecord(0, 1, "batch")}
		require.NoError(t, repo.BatchSave(ctx, batch))

		recs, err := repo.List(ctx, "batch")
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, chunkpos.Position{X: 0, Z: 1, World: "batch"}, recs[0].Position)

		err = repo.BatchSave(ctx, []feature.Record{sampleRecord(5, 5, "batch"), sampleRecord(6, 6, "")})
		assert.True(t, errkind.IsInvalidArgument(err))
		_, found, err := repo.Load(ctx, chunkpos.Position{X: 5, Z: 5, World: "batch"})
		require.NoError(t, err)
		assert.False(t, found, "неверный batch не пишется частично")
	})

	t.Run("World Name Is Case Sensitive", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, sampleRecord(0, 0, "Case")))
		_, found, err := repo.Load(ctx, chunkpos.Position{World: "case"})
		require.NoError(t, err)
		assert.False(t, found)
	})
}

// failingRepo всегда возвращает ошибку
type failingRepo struct{}

var errBroken = errors.New("broken cache")

func (failingRepo) Save(context.Context, feature.Record) error { return errBroken }
func (failingRepo) Load(context.Context, chunkpos.Position) (feature.Record, bool, error) {
	return feature.Record{}, false, errBroken
}
func (failingRepo) Delete(context.Context, chunkpos.Position) error { return errBroken }
func (failingRepo) List(context.Context, string) ([]feature.Record, error) {
	return nil, errBroken
}

func TestTieredFeatureRepo(t *testing.T) {
	primary := NewMemoryFeatureRepo()
	cache := NewMemoryFeatureRepo()
	exerciseRepo(t, NewTieredFeatureRepo(primary, cache))

	ctx := context.Background()
	rec := sampleRecord(4, 4, "refill")
	require.NoError(t, primary.Save(ctx, rec))

	tiered := NewTieredFeatureRepo(primary, cache)
	_, found, err := tiered.Load(ctx, rec.Position)
	require.NoError(t, err)
	require.True(t, found)

	_, inCache, err := cache.Load(ctx, rec.Position)
	require.NoError(t, err)
	assert.True(t, inCache, "промах кэша заполняет кэш")
}

func TestTieredFeatureRepo_CacheFailureIsNotFatal(t *testing.T) {
	primary := NewMemoryFeatureRepo()
	tiered := NewTieredFeatureRepo(primary, failingRepo{})
	ctx := context.Background()
	rec := sampleRecord(1, 2, "world")

	require.NoError(t, tiered.Save(ctx, rec))
	loaded, found, err := tiered.Load(ctx, rec.Position)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, loaded)
	assert.NoError(t, tiered.Delete(ctx, rec.Position))
}
