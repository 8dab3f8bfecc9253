package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/frontier"
)

// MemoryFeatureRepo реализует FeatureRepo и FrontierStore в памяти.
// Используется когда BadgerDB не настроена, в CLI и тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryFeatureRepo struct {
	mu       sync.RWMutex
	data     map[chunkpos.Position]feature.Record
	snapshot *frontier.Snapshot
}

// NewMemoryFeatureRepo создает новый репозиторий в памяти
func NewMemoryFeatureRepo() *MemoryFeatureRepo {
	return &MemoryFeatureRepo{
		data: make(map[chunkpos.Position]feature.Record),
	}
}

// Save сохраняет описание чанка в памяти
func (r *MemoryFeatureRepo) Save(ctx context.Context, rec feature.Record) error {
	if err := validate(rec.Position); err != nil {
		return err
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[rec.Position] = rec
	return nil
}

// Load загружает описание чанка из памяти
func (r *MemoryFeatureRepo) Load(ctx context.Context, pos chunkpos.Position) (feature.Record, bool, error) {
	if err := validate(pos); err != nil {
		return feature.Record{}, false, err
	}

	select {
	case <-ctx.Done():
		return feature.Record{}, false, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.data[pos]
	return rec, exists, nil
}

// Delete удаляет описание чанка из памяти
func (r *MemoryFeatureRepo) Delete(ctx context.Context, pos chunkpos.Position) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.data, pos)
	return nil
}

// List возвращает описания мира
func (r *MemoryFeatureRepo) List(ctx context.Context, world string) ([]feature.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	out := make([]feature.Record, 0)
	for pos, rec := range r.data {
		if pos.World == world {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

// SaveFrontier запоминает копию снимка трекера
func (r *MemoryFeatureRepo) SaveFrontier(ctx context.Context, snap frontier.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cp := frontier.Snapshot{
		Known:   slices.Clone(snap.Known),
		Pending: slices.Clone(snap.Pending),
	}

	r.mu.Lock()
	r.snapshot = &cp
	r.mu.Unlock()
	return nil
}

// LoadFrontier возвращает последний сохранённый снимок
func (r *MemoryFeatureRepo) LoadFrontier(ctx context.Context) (frontier.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return frontier.Snapshot{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.snapshot == nil {
		return frontier.Snapshot{}, false, nil
	}
	return frontier.Snapshot{
		Known:   slices.Clone(r.snapshot.Known),
		Pending: slices.Clone(r.snapshot.Pending),
	}, true, nil
}

// Count возвращает количество сохраненных описаний (для отладки)
func (r *MemoryFeatureRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func sortRecords(recs []feature.Record) {
	slices.SortFunc(recs, func(a, b feature.Record) int {
		switch {
		case a.Position.Less(b.Position):
			return -1
		case b.Position.Less(a.Position):
			return 1
		default:
			return 0
		}
	})
}
