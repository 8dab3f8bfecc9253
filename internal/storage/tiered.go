package storage

import (
	"context"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/logging"
)

// TieredFeatureRepo читает через кэш и пишет в основное хранилище.
// Ошибки кэша только логируются: источником истины остаётся primary.
type TieredFeatureRepo struct {
	primary FeatureRepo
	cache   FeatureRepo
}

// NewTieredFeatureRepo объединяет основное хранилище и кэш
func NewTieredFeatureRepo(primary, cache FeatureRepo) *TieredFeatureRepo {
	return &TieredFeatureRepo{primary: primary, cache: cache}
}

func (t *TieredFeatureRepo) Save(ctx context.Context, rec feature.Record) error {
	if err := t.primary.Save(ctx, rec); err != nil {
		return err
	}
	if err := t.cache.Save(ctx, rec); err != nil {
		logging.Warn("⚠️ cache save %s: %v", rec.Position, err)
	}
	return nil
}

func (t *TieredFeatureRepo) Load(ctx context.Context, pos chunkpos.Position) (feature.Record, bool, error) {
	if rec, ok, err := t.cache.Load(ctx, pos); err == nil && ok {
		return rec, true, nil
	} else if err != nil {
		logging.Warn("⚠️ cache load %s: %v", pos, err)
	}

	rec, ok, err := t.primary.Load(ctx, pos)
	if err != nil || !ok {
		return rec, ok, err
	}
	if err := t.cache.Save(ctx, rec); err != nil {
		logging.Warn("⚠️ cache refill %s: %v", pos, err)
	}
	return rec, true, nil
}

func (t *TieredFeatureRepo) Delete(ctx context.Context, pos chunkpos.Position) error {
	if err := t.cache.Delete(ctx, pos); err != nil {
		logging.Warn("⚠️ cache delete %s: %v", pos, err)
	}
	return t.primary.Delete(ctx, pos)
}

// List всегда читает основное хранилище: кэш может быть неполным
func (t *TieredFeatureRepo) List(ctx context.Context, world string) ([]feature.Record, error) {
	return t.primary.List(ctx, world)
}
