// Package populate связывает трекер фронта, хост и планировщик узлов:
// уведомление о чанке → отметка → выборка готовых → расчёт → запись → событие.
package populate

import (
	"context"
	"errors"
	"fmt"
	"sync"
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
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/annel0/geography/internal/populate"

// Host отвечает на запросы о мире
type Host interface {
	Environment(world string) (feature.Environment, error)
	Seed(world string) (int64, error)
	SurfaceElevationAt(pos chunkpos.Position) (int, error)
	BiomeAt(pos chunkpos.Position) (int, error)
}

// Painter выполняет единственную запись блока для заселённого чанка
type Painter interface {
	Paint(ctx context.Context, pos chunkpos.Position, nodeY int) error
}

// Deps зависимости сервиса. Bus и Registerer необязательны.
type Deps struct {
	Tracker    *frontier.Tracker
	Host       Host
	Catalog    *biome.Catalog
	Repo       storage.FeatureRepo
	Painter    Painter
	Bus        eventbus.EventBus
	Registerer prometheus.Registerer
	Source     string
}

// Service обрабатывает уведомления о доступности чанков.
// Мьютекс покрывает весь цикл отметка → выборка → расчёт, поэтому
// уведомления из шины и REST обрабатываются строго по одному.
type Service struct {
	mu      sync.Mutex
	tracker *frontier.Tracker
	host    Host
	catalog *biome.Catalog
	repo    storage.FeatureRepo
	painter Painter
	bus     eventbus.EventBus
	source  string
	metrics *Metrics
	tracer  trace.Tracer
}

// NewService проверяет зависимости и создаёт сервис
func NewService(d Deps) (*Service, error) {
	if d.Host == nil || d.Repo == nil || d.Painter == nil {
		return nil, errkind.InvalidArgument("populate: host, repo and painter are required")
	}
	if d.Tracker == nil {
		d.Tracker = frontier.NewTracker()
	}
	if d.Catalog == nil {
		d.Catalog = biome.DefaultCatalog()
	}
	if d.Source == "" {
		d.Source = "geography"
	}

	metrics, err := NewMetrics(d.Registerer)
	if err != nil {
		return nil, fmt.Errorf("populate metrics: %w", err)
	}

	return &Service{
		tracker: d.Tracker,
		host:    d.Host,
		catalog: d.Catalog,
		repo:    d.Repo,
		painter: d.Painter,
		bus:     d.Bus,
		source:  d.Source,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// Tracker возвращает трекер сервиса (только для чтения статистики)
func (s *Service) Tracker() *frontier.Tracker {
	return s.tracker
}

// ChunkAvailable отмечает чанк и заселяет все чанки, ставшие готовыми.
//
// Повторное уведомление о том же чанке ничего не делает и возвращает nil, nil.
// Ошибка заселения одного чанка не останавливает остальные: ошибки собираются
// через errors.Join, успешные записи возвращаются. Неудачный чанк не
// возвращается в ожидание и повторно не обрабатывается, кроме отмены ctx:
// тогда необработанные чанки остаются в pending и будут выданы следующим DrainReady.
func (s *Service) ChunkAvailable(ctx context.Context, pos chunkpos.Position) ([]feature.Record, error) {
	if _, err := chunkpos.New(pos.X, pos.Z, pos.World); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "populate.ChunkAvailable", trace.WithAttributes(
		attribute.String("world", pos.World),
		attribute.Int("chunk.x", pos.X),
		attribute.Int("chunk.z", pos.Z),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracker.Observe(pos) {
		s.metrics.Duplicates.Inc()
		span.SetAttributes(attribute.Bool("duplicate", true))
		return nil, nil
	}
	s.metrics.Observed.Inc()

	if err := ctx.Err(); err != nil {
		s.updateGauges()
		span.RecordError(err)
		return nil, fmt.Errorf("chunk %s observed, populate deferred: %w", pos, err)
	}

	ready := s.tracker.DrainReady()
	span.SetAttributes(attribute.Int("ready", len(ready)))

	var (
		out  []feature.Record
		errs []error
	)
	for i, cell := range ready {
		if err := ctx.Err(); err != nil {
			n := s.tracker.Requeue(ready[i:]...)
			logging.Warn("⏸️ populate прерван, %d чанков возвращены в ожидание: %v", n, err)
			errs = append(errs, fmt.Errorf("populate interrupted: %w", err))
			break
		}
		rec, err := s.populate(ctx, cell)
		if err != nil {
			s.metrics.Failures.Inc()
			if isContextErr(err) {
				s.tracker.Requeue(cell)
			}
			logging.Error("❌ populate %s: %v", cell, err)
			errs = append(errs, err)
			continue
		}
		s.metrics.Populated.Inc()
		out = append(out, rec)
	}

	s.updateGauges()

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "populate failed")
	}
	return out, err
}

func (s *Service) updateGauges() {
	stats := s.tracker.Stats()
	s.metrics.Pending.Set(float64(stats.Pending))
	s.metrics.Known.Set(float64(stats.Known))
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// populate выполняет заселение одного готового чанка
func (s *Service) populate(ctx context.Context, cell chunkpos.Position) (feature.Record, error) {
	ctx, span := s.tracer.Start(ctx, "populate.cell", trace.WithAttributes(
		attribute.String("chunk", cell.String()),
	))
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.DeriveDuration.Observe(time.Since(start).Seconds()) }()

	env, err := s.host.Environment(cell.World)
	if err != nil {
		return feature.Record{}, unavailable(cell, "environment", err)
	}
	seed, err := s.host.Seed(cell.World)
	if err != nil {
		return feature.Record{}, unavailable(cell, "seed", err)
	}
	surfaceY, err := s.host.SurfaceElevationAt(cell)
	if err != nil {
		return feature.Record{}, unavailable(cell, "surface elevation", err)
	}
	code, err := s.host.BiomeAt(cell)
	if err != nil {
		return feature.Record{}, unavailable(cell, "biome", err)
	}

	rec := feature.Derive(cell, env, surfaceY, s.catalog.Lookup(code), seedrand.ForPosition(seed, cell))
	span.SetAttributes(attribute.Int("node_y", rec.NodeY))

	if err := s.repo.Save(ctx, rec); err != nil {
		return feature.Record{}, fmt.Errorf("chunk %s: save: %w", cell, err)
	}
	if err := s.painter.Paint(ctx, cell, rec.NodeY); err != nil {
		return feature.Record{}, fmt.Errorf("chunk %s: paint: %w", cell, err)
	}

	s.publish(ctx, rec)
	logging.LogChunkReady(cell.World, cell.X, cell.Z, rec.NodeY)
	return rec, nil
}

func (s *Service) publish(ctx context.Context, rec feature.Record) {
	if s.bus == nil {
		return
	}
	ev, err := eventbus.NewChunkPopulated(s.source, rec)
	if err == nil {
		err = s.bus.Publish(ctx, ev)
	}
	if err != nil {
		logging.Warn("⚠️ publish %s for %s: %v", eventbus.ChunkPopulated, rec.Position, err)
	}
}

// unavailable помечает ошибку хоста как CollaboratorUnavailable, сохраняя исходную
func unavailable(cell chunkpos.Position, what string, err error) error {
	if errkind.IsCollaboratorUnavailable(err) {
		return fmt.Errorf("chunk %s: %s: %w", cell, what, err)
	}
	return fmt.Errorf("%w: chunk %s: %s: %w", errkind.ErrCollaboratorUnavailable, cell, what, err)
}

// Attach подписывает сервис на события ChunkAvailable шины
func (s *Service) Attach(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.ChunkAvailable}}, func(ctx context.Context, ev *eventbus.Envelope) {
		pos, err := eventbus.DecodePosition(ev)
		if err != nil {
			logging.Warn("⚠️ malformed %s event %s: %v", ev.EventType, ev.ID, err)
			return
		}
		if _, err := s.ChunkAvailable(ctx, pos); err != nil {
			logging.Error("❌ chunk %s from event %s: %v", pos, ev.ID, err)
		}
	})
	if err != nil {
		return nil, err
	}
	logging.Info("🧭 populate: подписка на %s активирована", eventbus.ChunkAvailable)
	return sub, nil
}

// Restore загружает сохранённое состояние трекера, если оно есть
func (s *Service) Restore(ctx context.Context, store storage.FrontierStore) error {
	snap, found, err := store.LoadFrontier(ctx)
	if err != nil {
		return fmt.Errorf("load frontier: %w", err)
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tracker.Restore(snap); err != nil {
		return fmt.Errorf("restore frontier: %w", err)
	}

	stats := s.tracker.Stats()
	s.metrics.Pending.Set(float64(stats.Pending))
	s.metrics.Known.Set(float64(stats.Known))
	logging.Info("🧭 Frontier restored: %d known, %d pending", stats.Known, stats.Pending)
	return nil
}

// Persist сохраняет состояние трекера
func (s *Service) Persist(ctx context.Context, store storage.FrontierStore) error {
	s.mu.Lock()
	snap := s.tracker.Snapshot()
	s.mu.Unlock()

	return store.SaveFrontier(ctx, snap)
}
