package populate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/annel0/geography/internal/biome"
	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/errkind"
	"github.com/annel0/geography/internal/eventbus"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/frontier"
	"github.com/annel0/geography/internal/logging"
	"github.com/annel0/geography/internal/seedrand"
	"github.com/annel0/geography/internal/storage"
	"github.com/annel0/geography/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost отвечает фиксированными значениями; мир "broken" недоступен
type fakeHost struct {
	env      feature.Environment
	surfaceY int
	biome    int
	calls    int
	mu       sync.Mutex
}

var errHostDown = errors.New("host down")

func (h *fakeHost) Environment(w string) (feature.Environment, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if w == "broken" {
		return feature.EnvNormal, errHostDown
	}
	return h.env, nil
}

func (h *fakeHost) Seed(string) (int64, error) { return 2024, nil }

func (h *fakeHost) SurfaceElevationAt(chunkpos.Position) (int, error) { return h.surfaceY, nil }

func (h *fakeHost) BiomeAt(chunkpos.Position) (int, error) { return h.biome, nil }

func lowlandCatalog(t *testing.T) *biome.Catalog {
	t.Helper()
	c, err := biome.NewCatalog([]biome.Biome{{Code: 3, Name: "FLAT", Category: biome.CategoryLowland}})
	require.NoError(t, err)
	return c
}

func newTestService(t *testing.T, host Host, bus eventbus.EventBus) (*Service, *storage.MemoryFeatureRepo, *world.NodePainter) {
	t.Helper()
	repo := storage.NewMemoryFeatureRepo()
	painter := world.NewNodePainter()
	svc, err := NewService(Deps{
		Host:       host,
		Catalog:    lowlandCatalog(t),
		Repo:       repo,
		Painter:    painter,
		Bus:        bus,
		Registerer: prometheus.NewRegistry(),
		Source:     "test",
	})
	require.NoError(t, err)
	return svc, repo, painter
}

func observeSquare(t *testing.T, svc *Service, name string, r int) []feature.Record {
	t.Helper()
	var all []feature.Record
	for x := -r; x <= r; x++ {
		for z := -r; z <= r; z++ {
			recs, err := svc.ChunkAvailable(context.Background(), chunkpos.Position{X: x, Z: z, World: name})
			require.NoError(t, err)
			all = append(all, recs...)
		}
	}
	return all
}

func TestService_CenterPopulatedOnce(t *testing.T) {
	host := &fakeHost{env: feature.EnvNormal, surfaceY: 70, biome: 3}
	svc, repo, painter := newTestService(t, host, nil)

	recs := observeSquare(t, svc, "world", 1)

	center := chunkpos.Position{X: 0, Z: 0, World: "world"}
	require.Len(t, recs, 1, "готов только центр")
	assert.Equal(t, feature.Record{Position: center, HighestBlockY: 70, SpotBiome: 3, NodeY: 42}, recs[0])

	stored, found, err := repo.Load(context.Background(), center)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, recs[0], stored)

	node, ok := painter.Painted(center)
	require.True(t, ok)
	assert.Equal(t, 42, node.Y)
	assert.Equal(t, 1, painter.Count())

	assert.Equal(t, frontier.Stats{Known: 9, Pending: 8}, svc.Tracker().Stats())
}

func TestService_DuplicateIsNoop(t *testing.T) {
	host := &fakeHost{env: feature.EnvNormal, surfaceY: 70, biome: 3}
	svc, _, painter := newTestService(t, host, nil)
	observeSquare(t, svc, "world", 1)
	callsBefore := host.calls

	for x := -1; x <= 1; x++ {
		for z := -1; z <= 1; z++ {
			recs, err := svc.ChunkAvailable(context.Background(), chunkpos.Position{X: x, Z: z, World: "world"})
			require.NoError(t, err)
			assert.Nil(t, recs)
		}
	}
	assert.Equal(t, callsBefore, host.calls, "повторные уведомления не обращаются к хосту")
	assert.Equal(t, 1, painter.Count())
}

func TestService_ExactlyOncePerCell(t *testing.T) {
	// 7x7 в произвольном порядке: готовы ровно внутренние 5x5
	host := &fakeHost{env: feature.EnvNormal, surfaceY: 90, biome: 3}
	svc, repo, painter := newTestService(t, host, nil)

	order := []int{3, -3, 0, 2, -1, 1, -2}
	seen := make(map[chunkpos.Position]int)
	for _, x := range order {
		for _, z := range order {
			recs, err := svc.ChunkAvailable(context.Background(), chunkpos.Position{X: x, Z: z, World: "world"})
			require.NoError(t, err)
			for _, r := range recs {
				seen[r.Position]++
			}
		}
	}

	assert.Len(t, seen, 25)
	for pos, n := range seen {
		assert.Equal(t, 1, n, "чанк %s заселён %d раз", pos, n)
		assert.True(t, pos.X >= -2 && pos.X <= 2 && pos.Z >= -2 && pos.Z <= 2)
	}
	assert.Equal(t, 25, painter.Count())

	list, err := repo.List(context.Background(), "world")
	require.NoError(t, err)
	assert.Len(t, list, 25)
}

func TestService_SpecialWorldUsesSeededGenerator(t *testing.T) {
	host := &fakeHost{env: feature.EnvNether, surfaceY: 127, biome: 5}
	repo := storage.NewMemoryFeatureRepo()
	svc, err := NewService(Deps{Host: host, Repo: repo, Painter: world.NewNodePainter()})
	require.NoError(t, err)

	recs := observeSquare(t, svc, "nether", 1)
	require.Len(t, recs, 1)

	center := chunkpos.Position{World: "nether"}
	hell := biome.DefaultCatalog().Lookup(5)
	expected := feature.Derive(center, feature.EnvNether, 127, hell, seedrand.ForPosition(2024, center))
	assert.Equal(t, expected, recs[0])
	assert.True(t, recs[0].NodeY >= 50 && recs[0].NodeY <= 109)
}

func TestService_CollaboratorFailure(t *testing.T) {
	host := &fakeHost{env: feature.EnvNormal, surfaceY: 70, biome: 3}
	svc, repo, painter := newTestService(t, host, nil)
	ctx := context.Background()

	var lastErr error
	for x := -1; x <= 1; x++ {
		for z := -1; z <= 1; z++ {
			_, err := svc.ChunkAvailable(ctx, chunkpos.Position{X: x, Z: z, World: "broken"})
			if err != nil {
				lastErr = err
			}
		}
	}

	require.Error(t, lastErr)
	assert.True(t, errkind.IsCollaboratorUnavailable(lastErr))
	assert.ErrorIs(t, lastErr, errHostDown, "исходная ошибка сохраняется")
	assert.Equal(t, 0, painter.Count())
	assert.Equal(t, 0, repo.Count())

	center := chunkpos.Position{World: "broken"}
	assert.False(t, svc.Tracker().IsPending(center), "неудачный чанк не возвращается в ожидание")

	// Другие миры продолжают работать
	recs := observeSquare(t, svc, "world", 1)
	assert.Len(t, recs, 1)
}

func TestService_InvalidPosition(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeHost{}, nil)
	_, err := svc.ChunkAvailable(context.Background(), chunkpos.Position{X: 1})
	assert.True(t, errkind.IsInvalidArgument(err))

	_, err = NewService(Deps{})
	assert.True(t, errkind.IsInvalidArgument(err))
}

// failingPainter отказывает на заданной позиции ошибкой err или "paint rejected"
type failingPainter struct {
	*world.NodePainter
	fail chunkpos.Position
	err  error
}

func (p failingPainter) Paint(ctx context.Context, pos chunkpos.Position, nodeY int) error {
	if pos == p.fail {
		if p.err != nil {
			return p.err
		}
		return errors.New("paint rejected")
	}
	return p.NodePainter.Paint(ctx, pos, nodeY)
}

func TestService_FailureDoesNotStopOtherCells(t *testing.T) {
	host := &fakeHost{env: feature.EnvNormal, surfaceY: 70, biome: 3}
	painter := failingPainter{NodePainter: world.NewNodePainter(), fail: chunkpos.Position{X: 0, Z: 0, World: "world"}}
	svc, err := NewService(Deps{Host: host, Catalog: lowlandCatalog(t), Repo: storage.NewMemoryFeatureRepo(), Painter: painter})
	require.NoError(t, err)
	ctx := context.Background()

	// Прямоугольник 4x3 без (1,1): последнее уведомление делает готовыми (0,0) и (1,0)
	for x := -1; x <= 2; x++ {
		for z := -1; z <= 1; z++ {
			if x == 1 && z == 1 {
				continue
			}
			_, err := svc.ChunkAvailable(ctx, chunkpos.Position{X: x, Z: z, World: "world"})
			require.NoError(t, err)
		}
	}
	recs, err := svc.ChunkAvailable(ctx, chunkpos.Position{X: 1, Z: 1, World: "world"})
	require.Error(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, chunkpos.Position{X: 1, Z: 0, World: "world"}, recs[0].Position)
}

func TestService_CancelledContextKeepsCellPending(t *testing.T) {
	host := &fakeHost{env: feature.EnvNormal, surfaceY: 70, biome: 3}
	svc, repo, painter := newTestService(t, host, nil)
	bg := context.Background()
	center := chunkpos.Position{World: "world"}

	for _, n := range center.Neighbors() {
		_, err := svc.ChunkAvailable(bg, n)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(bg)
	cancel()
	recs, err := svc.ChunkAvailable(ctx, center)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, recs)
	assert.True(t, svc.Tracker().IsKnown(center))
	assert.True(t, svc.Tracker().IsPending(center), "отменённый чанк остаётся в ожидании")
	_, found, err := repo.Load(bg, center)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, painter.Count())

	// Перезапуск: снимок сохраняет центр в pending
	store := storage.NewMemoryFeatureRepo()
	require.NoError(t, svc.Persist(bg, store))
	restarted, _, restartedPainter := newTestService(t, host, nil)
	require.NoError(t, restarted.Restore(bg, store))
	assert.True(t, restarted.Tracker().IsPending(center))

	// Любое новое уведомление снова выдаёт центр
	recs, err = restarted.ChunkAvailable(bg, chunkpos.Position{X: 9, Z: 9, World: "world"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, center, recs[0].Position)
	_, ok := restartedPainter.Painted(center)
	assert.True(t, ok)
}

func TestService_ContextErrorDuringPopulateRequeues(t *testing.T) {
	host := &fakeHost{env: feature.EnvNormal, surfaceY: 70, biome: 3}
	center := chunkpos.Position{World: "world"}
	painter := failingPainter{NodePainter: world.NewNodePainter(), fail: center, err: context.DeadlineExceeded}
	svc, err := NewService(Deps{Host: host, Catalog: lowlandCatalog(t), Repo: storage.NewMemoryFeatureRepo(), Painter: painter})
	require.NoError(t, err)
	ctx := context.Background()

	for _, n := range center.Neighbors() {
		_, err := svc.ChunkAvailable(ctx, n)
		require.NoError(t, err)
	}
	_, err = svc.ChunkAvailable(ctx, center)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, svc.Tracker().IsPending(center), "таймаут не теряет чанк")

	// Ошибка без отмены контекста чанк не возвращает
	broken := failingPainter{NodePainter: world.NewNodePainter(), fail: center}
	svc2, err := NewService(Deps{Host: host, Catalog: lowlandCatalog(t), Repo: storage.NewMemoryFeatureRepo(), Painter: broken})
	require.NoError(t, err)
	for _, n := range center.Neighbors() {
		_, err := svc2.ChunkAvailable(ctx, n)
		require.NoError(t, err)
	}
	_, err = svc2.ChunkAvailable(ctx, center)
	require.Error(t, err)
	assert.False(t, svc2.Tracker().IsPending(center))
}

// lockedBuffer принимает запись из горутин обработчиков шины
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestService_ChunkReadyLoggedOnce(t *testing.T) {
	var out lockedBuffer
	logging.SetDefaultOutput(&out)
	logging.SetDefaultLevels(logging.DEBUG, logging.DEBUG)
	t.Cleanup(func() {
		logging.SetDefaultOutput(os.Stdout)
		logging.SetDefaultLevels(logging.INFO, logging.DEBUG)
	})

	bus := eventbus.NewMemoryBus(64)
	_, err := eventbus.StartLoggingListener(context.Background(), bus)
	require.NoError(t, err)

	host := &fakeHost{env: feature.EnvNormal, surfaceY: 70, biome: 3}
	svc, _, _ := newTestService(t, host, bus)
	observeSquare(t, svc, "world", 1)
	require.NoError(t, bus.Close())

	assert.Equal(t, 1, strings.Count(out.String(), "Chunk ready: world (0,0) nodeY=42"))
}

func TestService_PersistAndRestore(t *testing.T) {
	host := &fakeHost{env: feature.EnvNormal, surfaceY: 70, biome: 3}
	svc, _, _ := newTestService(t, host, nil)
	store := storage.NewMemoryFeatureRepo()
	ctx := context.Background()

	observeSquare(t, svc, "world", 1)
	require.NoError(t, svc.Persist(ctx, store))

	restored, _, painter := newTestService(t, host, nil)
	require.NoError(t, restored.Restore(ctx, store))
	assert.Equal(t, svc.Tracker().Stats(), restored.Tracker().Stats())

	// Столбец x=2 делает готовым (1,0)
	for z := -1; z <= 1; z++ {
		_, err := restored.ChunkAvailable(ctx, chunkpos.Position{X: 2, Z: z, World: "world"})
		require.NoError(t, err)
	}
	_, ok := painter.Painted(chunkpos.Position{X: 1, Z: 0, World: "world"})
	assert.True(t, ok, "восстановленный фронт продолжает работу")
	_, ok = painter.Painted(chunkpos.Position{X: 0, Z: 0, World: "world"})
	assert.False(t, ok, "центр уже был заселён до сохранения")


	// Пустое хранилище не меняет трекер
	before := restored.Tracker().Stats()
	require.NoError(t, restored.Restore(ctx, storage.NewMemoryFeatureRepo()))
	assert.Equal(t, before, restored.Tracker().Stats())
}

func TestService_AttachToBus(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	defer bus.Close()

	host := &fakeHost{env: feature.EnvNormal, surfaceY: 70, biome: 3}
	svc, _, _ := newTestService(t, host, bus)
	ctx := context.Background()

	populated := make(chan feature.Record, 4)
	_, err := bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.ChunkPopulated}}, func(ctx context.Context, ev *eventbus.Envelope) {
		if rec, err := eventbus.DecodeFeature(ev); err == nil {
			populated <- rec
		}
	})
	require.NoError(t, err)

	_, err = svc.Attach(ctx, bus)
	require.NoError(t, err)

	for x := -1; x <= 1; x++ {
		for z := -1; z <= 1; z++ {
			ev, err := eventbus.NewChunkAvailable("host", chunkpos.Position{X: x, Z: z, World: "world"})
			require.NoError(t, err)
			require.NoError(t, bus.Publish(ctx, ev))
		}
	}

	select {
	case rec := <-populated:
		assert.Equal(t, chunkpos.Position{World: "world"}, rec.Position)
		assert.Equal(t, 42, rec.NodeY)
	case <-time.After(2 * time.Second):
		t.Fatal("событие ChunkPopulated не получено")
	}
}
