package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей, 0 без ограничения
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "geo:",
		TTL:       10 * time.Minute,
	}
}

// RedisFeatureRepo держит горячую копию описаний чанков в Redis
type RedisFeatureRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisFeatureRepo создаёт репозиторий и проверяет подключение
func NewRedisFeatureRepo(ctx context.Context, config *RedisConfig) (*RedisFeatureRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("🔴 Connected to Redis at %s", config.Addr)
	return &RedisFeatureRepo{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

func (r *RedisFeatureRepo) key(pos chunkpos.Position) string {
	return r.keyPrefix + featureKey(pos)
}

// Save сохраняет описание чанка
func (r *RedisFeatureRepo) Save(ctx context.Context, rec feature.Record) error {
	if err := validate(rec.Position); err != nil {
		return err
	}

	data, err := feature.Encode(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := r.client.Set(ctx, r.key(rec.Position), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Load получает описание чанка
func (r *RedisFeatureRepo) Load(ctx context.Context, pos chunkpos.Position) (feature.Record, bool, error) {
	if err := validate(pos); err != nil {
		return feature.Record{}, false, err
	}

	data, err := r.client.Get(ctx, r.key(pos)).Bytes()
	if errors.Is(err, redis.Nil) {
		return feature.Record{}, false, nil // Запись не найдена
	} else if err != nil {
		return feature.Record{}, false, fmt.Errorf("failed to get record: %w", err)
	}

	rec, err := feature.Decode(data)
	if err != nil {
		return feature.Record{}, false, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, true, nil
}

// Delete удаляет описание чанка
func (r *RedisFeatureRepo) Delete(ctx context.Context, pos chunkpos.Position) error {
	if err := r.client.Del(ctx, r.key(pos)).Err(); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// List сканирует ключи мира и получает записи пайплайном
func (r *RedisFeatureRepo) List(ctx context.Context, world string) ([]feature.Record, error) {
	pattern := escapeGlob(r.keyPrefix+featurePrefix(world)) + "*"

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	out := make([]feature.Record, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}

	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			// Ключ мог истечь между SCAN и GET
			continue
		}
		rec, err := feature.Decode(data)
		if err != nil {
			logging.Warn("⚠️ Failed to unmarshal record %s: %v", keys[i], err)
			continue
		}
		if rec.Position.World == world {
			out = append(out, rec)
		}
	}

	sortRecords(out)
	return out, nil
}

// Close закрывает соединение с Redis
func (r *RedisFeatureRepo) Close() error {
	return r.client.Close()
}

// escapeGlob экранирует метасимволы шаблона SCAN, чтобы имя мира совпадало буквально
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
