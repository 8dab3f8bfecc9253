package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/frontier"
	"github.com/annel0/geography/internal/logging"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

const frontierKey = "frontier:snapshot"

// BadgerStore хранит описания чанков и снимок трекера в BadgerDB
type BadgerStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewBadgerStore открывает (или создаёт) хранилище в каталоге dataPath/geography
func NewBadgerStore(dataPath string) (*BadgerStore, error) {
	dbPath := filepath.Join(dataPath, "geography")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	logging.Info("💾 BadgerDB opened at %s", dbPath)
	return &BadgerStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Close закрывает хранилище данных
func (bs *BadgerStore) Close() error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	if !bs.isReady {
		return nil
	}

	bs.isReady = false
	bs.encoder.Close()
	bs.decoder.Close()
	return bs.db.Close()
}

func (bs *BadgerStore) ready() error {
	if !bs.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return nil
}

// Save сохраняет описание чанка
func (bs *BadgerStore) Save(ctx context.Context, rec feature.Record) error {
	if err := validate(rec.Position); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return err
	}

	data, err := feature.Encode(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %w", err)
	}

	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(featureKey(rec.Position)), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Load загружает описание чанка
func (bs *BadgerStore) Load(ctx context.Context, pos chunkpos.Position) (feature.Record, bool, error) {
	if err := validate(pos); err != nil {
		return feature.Record{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return feature.Record{}, false, err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return feature.Record{}, false, err
	}

	var data []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(featureKey(pos)))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return feature.Record{}, false, nil
	}
	if err != nil {
		return feature.Record{}, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	rec, err := feature.Decode(data)
	if err != nil {
		return feature.Record{}, false, fmt.Errorf("повреждённая запись %s: %w", pos, err)
	}
	return rec, true, nil
}

// Delete удаляет описание чанка
func (bs *BadgerStore) Delete(ctx context.Context, pos chunkpos.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return err
	}

	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(featureKey(pos)))
	})
}

// List возвращает описания мира, перебирая ключи по префиксу
func (bs *BadgerStore) List(ctx context.Context, world string) ([]feature.Record, error) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return nil, err
	}

	prefix := []byte(featurePrefix(world))
	out := make([]feature.Record, 0)

	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := feature.Decode(data)
			if err != nil {
				return fmt.Errorf("повреждённая запись %s: %w", it.Item().Key(), err)
			}
			// Имя мира может само содержать ':'; сверяем по записи
			if rec.Position.World == world {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortRecords(out)
	return out, nil
}

// SaveFrontier сохраняет снимок трекера, сжатый zstd
func (bs *BadgerStore) SaveFrontier(ctx context.Context, snap frontier.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации снимка: %w", err)
	}
	compressed := bs.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(frontierKey), compressed)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения снимка: %w", err)
	}

	logging.Debug("💾 Frontier snapshot saved: %d known, %d pending, %d bytes", len(snap.Known), len(snap.Pending), len(compressed))
	return nil
}

// LoadFrontier загружает снимок трекера
func (bs *BadgerStore) LoadFrontier(ctx context.Context) (frontier.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return frontier.Snapshot{}, false, err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if err := bs.ready(); err != nil {
		return frontier.Snapshot{}, false, err
	}

	var compressed []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(frontierKey))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return frontier.Snapshot{}, false, nil
	}
	if err != nil {
		return frontier.Snapshot{}, false, fmt.Errorf("ошибка чтения снимка: %w", err)
	}

	raw, err := bs.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return frontier.Snapshot{}, false, fmt.Errorf("ошибка распаковки снимка: %w", err)
	}

	var snap frontier.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return frontier.Snapshot{}, false, fmt.Errorf("ошибка разбора снимка: %w", err)
	}
	return snap, true, nil
}
