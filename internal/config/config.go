package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/annel0/geography/internal/biome"
	"github.com/annel0/geography/internal/feature"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Worlds    []WorldConfig   `yaml:"worlds"`
	Biomes    []biome.Biome   `yaml:"biomes"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	FileLevel string `yaml:"file_level"`
	Dir       string `yaml:"dir"`
}

type StorageConfig struct {
	// Backend: memory, badger или mariadb
	Backend  string        `yaml:"backend"`
	DataPath string        `yaml:"data_path"`
	MariaDB  MariaDBConfig `yaml:"mariadb"`
	Redis    RedisConfig   `yaml:"redis"`
}

type MariaDBConfig struct {
	// DSN: user:pass@tcp(host:port)/dbname
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Prefix     string `yaml:"prefix"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type EventBusConfig struct {
	// Kind: memory или jetstream
	Kind      string `yaml:"kind"`
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// WorldConfig описывает мир, чанки которого отслеживает сервис
type WorldConfig struct {
	Name        string              `yaml:"name"`
	Environment feature.Environment `yaml:"environment"`
	Seed        int64               `yaml:"seed"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GEO_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GEO_METRICS_PORT", 2112)
}

// GetDataPath возвращает каталог BadgerDB: config -> env -> default
func (s *StorageConfig) GetDataPath() string {
	if s.DataPath != "" {
		return s.DataPath
	}
	if envVal := os.Getenv("GEO_DATA_PATH"); envVal != "" {
		return envVal
	}
	return "data/geography"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Default возвращает конфигурацию без файла: память, встроенная шина, один обычный мир
func Default() *Config {
	cfg := &Config{
		Log:      LogConfig{Level: "info", FileLevel: "debug", Dir: "logs"},
		Storage:  StorageConfig{Backend: "memory"},
		EventBus: EventBusConfig{Kind: "memory", Stream: "GEOGRAPHY", Retention: 24},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "geography",
		},
		Worlds: []WorldConfig{{Name: "world", Environment: feature.EnvNormal, Seed: 1}},
	}
	return cfg
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV GEO_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GEO_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse разбирает YAML поверх значений по умолчанию и проверяет результат
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Worlds = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Worlds) == 0 {
		cfg.Worlds = Default().Worlds
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность секций
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Worlds))
	for _, w := range c.Worlds {
		if w.Name == "" {
			return fmt.Errorf("world without name")
		}
		if _, dup := seen[w.Name]; dup {
			return fmt.Errorf("duplicate world %q", w.Name)
		}
		seen[w.Name] = struct{}{}
	}

	switch c.Storage.Backend {
	case "", "memory", "badger":
	case "mariadb":
		if c.Storage.MariaDB.DSN == "" {
			return fmt.Errorf("storage.mariadb.dsn is required for mariadb")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.EventBus.Kind {
	case "", "memory":
	case "jetstream":
		if c.EventBus.URL == "" {
			return fmt.Errorf("eventbus.url is required for jetstream")
		}
	default:
		return fmt.Errorf("unknown eventbus kind %q", c.EventBus.Kind)
	}
	return nil
}
