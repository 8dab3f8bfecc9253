package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/errkind"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/logging"
	"github.com/annel0/geography/internal/middleware"
	"github.com/annel0/geography/internal/populate"
	"github.com/annel0/geography/internal/storage"
	"github.com/annel0/geography/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API сервера географии
type RestServer struct {
	router   *gin.Engine
	server   *http.Server
	service  *populate.Service
	repo     storage.FeatureRepo
	registry *world.Registry
	port     string
	metrics  *ServerMetrics
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port       string                // адрес, например ":8088"
	Service    *populate.Service     // сервис заселения
	Repo       storage.FeatureRepo   // хранилище записей
	Registry   *world.Registry       // реестр миров (необязателен)
	Registerer prometheus.Registerer // куда регистрировать HTTP-метрики
	Gatherer   prometheus.Gatherer   // что отдавать на /metrics
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NotifyRequest тело POST /api/worlds/:world/chunks
type NotifyRequest struct {
	X *int `json:"x" binding:"required"`
	Z *int `json:"z" binding:"required"`
}

// NotifyResponse результат уведомления о чанке
type NotifyResponse struct {
	Populated []feature.Record `json:"populated"`
	Pending   int              `json:"pending"`
	Known     int              `json:"known"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Service == nil || config.Repo == nil {
		return nil, errkind.InvalidArgument("api: service and repo are required")
	}
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registerer == nil {
		reg := prometheus.NewRegistry()
		config.Registerer, config.Gatherer = reg, reg
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(otelgin.Middleware("geography"))
	router.Use(middleware.NewRequestLogger("/health", "/metrics").Handler())

	promMw, err := middleware.NewPrometheusMiddleware("geography_api", config.Registerer, config.Gatherer)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	rs := &RestServer{
		router:   router,
		service:  config.Service,
		repo:     config.Repo,
		registry: config.Registry,
		port:     config.Port,
		metrics:  NewServerMetrics(),
	}
	rs.server = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	rs.setupRoutes()

	return rs, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/server", rs.handleServerInfo)
		api.GET("/frontier", rs.handleFrontier)
		api.GET("/frontier/pending", rs.handlePending)
		api.GET("/worlds", rs.handleWorlds)

		chunks := api.Group("/worlds/:world/chunks")
		chunks.GET("", rs.handleListChunks)
		chunks.POST("", rs.handleNotify)
		chunks.GET("/:x/:z", rs.handleGetChunk)
	}
}

// Handler возвращает http.Handler роутера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (rs *RestServer) handleServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    rs.metrics.Collect(),
	})
}

// handleFrontier возвращает размеры множеств трекера
func (rs *RestServer) handleFrontier(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние фронта",
		Data:    rs.service.Tracker().Stats(),
	})
}

// handlePending возвращает ожидающие чанки; ?world= ограничивает одним миром
func (rs *RestServer) handlePending(c *gin.Context) {
	cells := rs.service.Tracker().PendingCells(c.Query("world"))
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Ожидающие чанки",
		Data: gin.H{
			"chunks": cells,
			"total":  len(cells),
		},
	})
}

func (rs *RestServer) handleWorlds(c *gin.Context) {
	type worldInfo struct {
		Name        string              `json:"name"`
		Environment feature.Environment `json:"environment"`
		Seed        int64               `json:"seed"`
	}

	out := []worldInfo{}
	if rs.registry != nil {
		for _, w := range rs.registry.Worlds() {
			out = append(out, worldInfo{Name: w.Name, Environment: w.Environment, Seed: w.Seed})
		}
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список миров",
		Data:    out,
	})
}

func (rs *RestServer) handleListChunks(c *gin.Context) {
	name := c.Param("world")
	if !rs.worldExists(c, name) {
		return
	}

	recs, err := rs.repo.List(c.Request.Context(), name)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	if recs == nil {
		recs = []feature.Record{}
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Заселённые чанки",
		Data: gin.H{
			"chunks": recs,
			"total":  len(recs),
		},
	})
}

// handleGetChunk возвращает запись заселённого чанка или 404
func (rs *RestServer) handleGetChunk(c *gin.Context) {
	x, errX := strconv.Atoi(c.Param("x"))
	z, errZ := strconv.Atoi(c.Param("z"))
	if errX != nil || errZ != nil {
		rs.writeError(c, errkind.InvalidArgument("chunk coordinates must be integers"))
		return
	}
	pos, err := chunkpos.New(x, z, c.Param("world"))
	if err != nil {
		rs.writeError(c, err)
		return
	}

	rec, found, err := rs.repo.Load(c.Request.Context(), pos)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Чанк ещё не заселён",
		})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Чанк найден",
		Data:    rec,
	})
}

// handleNotify принимает уведомление о доступности чанка и запускает цикл заселения
func (rs *RestServer) handleNotify(c *gin.Context) {
	name := c.Param("world")
	if !rs.worldExists(c, name) {
		return
	}

	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	pos := chunkpos.Position{X: *req.X, Z: *req.Z, World: name}
	recs, err := rs.service.ChunkAvailable(c.Request.Context(), pos)
	if recs == nil {
		recs = []feature.Record{}
	}
	stats := rs.service.Tracker().Stats()
	data := NotifyResponse{Populated: recs, Pending: stats.Pending, Known: stats.Known}

	if err != nil {
		logging.Warn("⚠️ notify %s: %v", pos, err)
		c.JSON(statusFor(err), GenericResponse{
			Success: false,
			Message: err.Error(),
			Data:    data,
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("Заселено чанков: %d", len(recs)),
		Data:    data,
	})
}

// worldExists отвечает 404, если мир не зарегистрирован. Без реестра
// принимается любое имя.
func (rs *RestServer) worldExists(c *gin.Context, name string) bool {
	if rs.registry == nil {
		return true
	}
	if _, err := rs.registry.Environment(name); err != nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Мир не найден: " + name,
		})
		return false
	}
	return true
}

func (rs *RestServer) writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), GenericResponse{
		Success: false,
		Message: err.Error(),
	})
}

// statusFor сопоставляет вид ошибки с HTTP-кодом.
// Для errors.Join нескольких чанков недоступность участника важнее ошибки аргумента.
func statusFor(err error) int {
	switch {
	case errkind.IsCollaboratorUnavailable(err):
		return http.StatusServiceUnavailable
	case errkind.IsInvalidArgument(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	logging.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop выполняет graceful shutdown
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
