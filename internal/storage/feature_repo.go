package storage

import (
	"context"
	"fmt"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/frontier"
)

// FeatureRepo определяет интерфейс для сохранения и загрузки описаний
// заселённых чанков. Запись создаётся один раз и после этого не меняется.
type FeatureRepo interface {
	// Save сохраняет описание чанка. Повторное сохранение перезаписывает запись.
	Save(ctx context.Context, rec feature.Record) error

	// Load загружает описание чанка.
	// Возвращает:
	//   feature.Record - описание
	//   bool - true если запись найдена
	//   error - ошибка при загрузке
	Load(ctx context.Context, pos chunkpos.Position) (feature.Record, bool, error)

	// Delete удаляет описание (для тестов или сброса). Отсутствие записи не ошибка.
	Delete(ctx context.Context, pos chunkpos.Position) error

	// List возвращает описания мира, отсортированные по позиции
	List(ctx context.Context, world string) ([]feature.Record, error)
}

// FrontierStore сохраняет состояние трекера между перезапусками
type FrontierStore interface {
	SaveFrontier(ctx context.Context, snap frontier.Snapshot) error
	LoadFrontier(ctx context.Context) (frontier.Snapshot, bool, error)
}

// featureKey формирует ключ записи: feature:<world>:<x>:<z>
func featureKey(pos chunkpos.Position) string {
	return fmt.Sprintf("feature:%s:%d:%d", pos.World, pos.X, pos.Z)
}

func featurePrefix(world string) string {
	return fmt.Sprintf("feature:%s:", world)
}

func validate(pos chunkpos.Position) error {
	_, err := chunkpos.New(pos.X, pos.Z, pos.World)
	return err
}
