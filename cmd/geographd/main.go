package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/geography/internal/api"
	"github.com/annel0/geography/internal/biome"
	"github.com/annel0/geography/internal/config"
	"github.com/annel0/geography/internal/eventbus"
	"github.com/annel0/geography/internal/logging"
	"github.com/annel0/geography/internal/observability"
	"github.com/annel0/geography/internal/populate"
	"github.com/annel0/geography/internal/storage"
	"github.com/annel0/geography/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// stores объединяет хранилище записей и состояние фронта
type stores struct {
	repo     storage.FeatureRepo
	frontier storage.FrontierStore
	closers  []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logging.Error("❌ Ошибка закрытия хранилища: %v", err)
		}
	}
}

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию GEO_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	logging.SetLogDir(cfg.Log.Dir)
	if err := logging.InitDefaultLogger("geographd"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()
	logging.SetDefaultLevels(logging.ParseLevel(cfg.Log.Level), logging.ParseLevel(cfg.Log.FileLevel))

	logging.Info("🗺️ Запуск geographd...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТРАССИРОВКА ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("⚠️ OpenTelemetry shutdown: %v", err)
		}
	}()

	// === МИРЫ ===
	catalog := biome.DefaultCatalog()
	if err := catalog.Override(cfg.Biomes); err != nil {
		log.Fatalf("❌ Ошибка каталога биомов: %v", err)
	}
	registry := world.NewRegistry(catalog)
	for _, w := range cfg.Worlds {
		if err := registry.Register(w.Name, w.Environment, w.Seed); err != nil {
			log.Fatalf("❌ Ошибка регистрации мира %s: %v", w.Name, err)
		}
		logging.GetFrontierLogger().Info("🌍 Мир %s (%s, seed=%d)", w.Name, w.Environment, w.Seed)
	}

	// === ХРАНИЛИЩЕ ===
	st, err := openStores(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
	}
	defer st.Close()

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения шины событий: %v", err)
	}
	defer bus.Close()
	logging.GetBusLogger().Info("📡 Шина событий: %s", busKind(cfg.EventBus))

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		logging.Warn("⚠️ LoggingListener не запущен: %v", err)
	}

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := eventbus.NewMetricsExporter(bus, reg)
	if err != nil {
		log.Fatalf("❌ Ошибка метрик шины: %v", err)
	}
	metricsSrv := exporter.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))
	defer exporter.Stop()

	// === СЕРВИС ЗАСЕЛЕНИЯ ===
	painter := world.NewNodePainter()
	service, err := populate.NewService(populate.Deps{
		Host:       registry,
		Catalog:    catalog,
		Repo:       st.repo,
		Painter:    painter,
		Bus:        bus,
		Registerer: reg,
		Source:     "geographd",
	})
	if err != nil {
		log.Fatalf("❌ Ошибка создания сервиса заселения: %v", err)
	}
	if err := service.Restore(ctx, st.frontier); err != nil {
		log.Fatalf("❌ Ошибка восстановления фронта: %v", err)
	}
	if _, err := service.Attach(ctx, bus); err != nil {
		log.Fatalf("❌ Ошибка подписки на шину: %v", err)
	}

	// === REST API ===
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	restServer, err := api.NewRestServer(api.Config{
		Port:       restPort,
		Service:    service,
		Repo:       st.repo,
		Registry:   registry,
		Registerer: reg,
		Gatherer:   reg,
	})
	if err != nil {
		log.Fatalf("❌ Ошибка создания REST API: %v", err)
	}
	go func() {
		if err := restServer.Start(); err != nil {
			logging.GetAPILogger().Error("❌ REST API остановлен с ошибкой: %v", err)
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("   📈 Метрики: http://localhost:%d/metrics", cfg.Server.GetMetricsPort())
	logging.Info("💡 curl -X POST http://localhost%s/api/worlds/world/chunks -H 'Content-Type: application/json' -d '{\"x\":0,\"z\":0}'", restPort)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки /metrics: %v", err)
	}
	if err := drainAndPersist(shutdownCtx, bus, cancel, service, st.frontier); err != nil {
		logging.GetStorageLogger().Error("❌ Ошибка сохранения фронта: %v", err)
	} else {
		stats := service.Tracker().Stats()
		logging.GetStorageLogger().Info("💾 Фронт сохранён: %d известных, %d ожидающих", stats.Known, stats.Pending)
	}

	logging.Info("👋 geographd остановлен (заселено узлов: %d)", painter.Count())
}

// drainAndPersist закрывает шину, дожидаясь обработчиков с ещё живым контекстом,
// затем отменяет контекст сервиса и сохраняет фронт.
// REST к этому моменту уже должен быть остановлен.
func drainAndPersist(ctx context.Context, bus eventbus.EventBus, cancel context.CancelFunc, service *populate.Service, store storage.FrontierStore) error {
	if err := bus.Close(); err != nil {
		logging.GetBusLogger().Error("❌ Ошибка закрытия шины: %v", err)
	}
	cancel()
	return service.Persist(ctx, store)
}

// openStores выбирает основное хранилище и, если задан Redis, ставит его кэшем перед ним.
// Состояние фронта всегда хранится в основном хранилище.
func openStores(ctx context.Context, cfg config.StorageConfig) (*stores, error) {
	st := &stores{}

	switch cfg.Backend {
	case "badger":
		bs, err := storage.NewBadgerStore(cfg.GetDataPath())
		if err != nil {
			return nil, err
		}
		st.repo, st.frontier = bs, bs
		st.closers = append(st.closers, bs.Close)
	case "mariadb":
		mr, err := storage.NewMariaFeatureRepo(ctx, cfg.MariaDB.DSN, cfg.MariaDB.Table)
		if err != nil {
			return nil, err
		}
		st.repo, st.frontier = mr, mr
		st.closers = append(st.closers, mr.Close)
	default:
		mem := storage.NewMemoryFeatureRepo()
		st.repo, st.frontier = mem, mem
	}

	if cfg.Redis.Addr == "" {
		return st, nil
	}

	rc := storage.DefaultRedisConfig()
	rc.Addr = cfg.Redis.Addr
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	if cfg.Redis.Prefix != "" {
		rc.KeyPrefix = cfg.Redis.Prefix
	}
	if cfg.Redis.TTLSeconds > 0 {
		rc.TTL = time.Duration(cfg.Redis.TTLSeconds) * time.Second
	}

	cache, err := storage.NewRedisFeatureRepo(ctx, rc)
	if err != nil {
		st.Close()
		return nil, err
	}
	st.closers = append(st.closers, cache.Close)
	st.repo = storage.NewTieredFeatureRepo(st.repo, cache)
	return st, nil
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.Kind == "jetstream" {
		retention := time.Duration(cfg.Retention) * time.Hour
		return eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, retention)
	}
	return eventbus.NewMemoryBus(1024), nil
}

func busKind(cfg config.EventBusConfig) string {
	if cfg.Kind == "jetstream" {
		return fmt.Sprintf("jetstream %s (stream %s)", cfg.URL, cfg.Stream)
	}
	return "memory"
}
