package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/errkind"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/frontier"
	"github.com/annel0/geography/internal/logging"
	_ "github.com/go-sql-driver/mysql"
)

// DefaultMariaTable имя таблицы описаний чанков по умолчанию
const DefaultMariaTable = "chunk_features"

// MariaFeatureRepo реализует FeatureRepo и FrontierStore для MariaDB/MySQL.
// Описания лежат в таблице <table>, снимок трекера в <table>_frontier.
type MariaFeatureRepo struct {
	db            *sql.DB
	table         string
	frontierTable string
}

// NewMariaFeatureRepo подключается к базе и создаёт таблицы, если их нет.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
//	table - имя таблицы описаний, пустое значит DefaultMariaTable
func NewMariaFeatureRepo(ctx context.Context, dsn, table string) (*MariaFeatureRepo, error) {
	if table == "" {
		table = DefaultMariaTable
	}
	if !validTableName(table) {
		return nil, errkind.InvalidArgument("invalid table name %q", table)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaFeatureRepo{db: db, table: table, frontierTable: table + "_frontier"}
	if err := repo.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}

	logging.Info("🐬 MariaDB feature repo ready (table %s)", table)
	return repo, nil
}

func validTableName(name string) bool {
	if len(name) > 48 {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func (r *MariaFeatureRepo) createTables(ctx context.Context) error {
	features := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			world           VARBINARY(255) NOT NULL,
			x               INT            NOT NULL,
			z               INT            NOT NULL,
			highest_block_y INT            NOT NULL,
			spot_biome      INT            NOT NULL,
			node_y          INT            NOT NULL,
			updated_at      TIMESTAMP      DEFAULT CURRENT_TIMESTAMP
			                ON UPDATE      CURRENT_TIMESTAMP,
			PRIMARY KEY (world, x, z)
		) ENGINE=InnoDB
	`, r.table)
	if _, err := r.db.ExecContext(ctx, features); err != nil {
		return fmt.Errorf("ошибка создания таблицы %s: %w", r.table, err)
	}

	snapshots := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TINYINT   PRIMARY KEY,
			snapshot   LONGBLOB  NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`, r.frontierTable)
	if _, err := r.db.ExecContext(ctx, snapshots); err != nil {
		return fmt.Errorf("ошибка создания таблицы %s: %w", r.frontierTable, err)
	}
	return nil
}

func (r *MariaFeatureRepo) upsertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %s (world, x, z, highest_block_y, spot_biome, node_y)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			highest_block_y = VALUES(highest_block_y),
			spot_biome = VALUES(spot_biome),
			node_y = VALUES(node_y)
	`, r.table)
}

// Save сохраняет описание чанка.
// Использует INSERT ... ON DUPLICATE KEY UPDATE, повторное сохранение перезаписывает запись.
func (r *MariaFeatureRepo) Save(ctx context.Context, rec feature.Record) error {
	if err := validate(rec.Position); err != nil {
		return err
	}

	p := rec.Position
	_, err := r.db.ExecContext(ctx, r.upsertQuery(), p.World, p.X, p.Z, rec.HighestBlockY, rec.SpotBiome, rec.NodeY)
	if err != nil {
		return fmt.Errorf("ошибка сохранения чанка %s: %w", p, err)
	}
	return nil
}

// Load загружает описание чанка
func (r *MariaFeatureRepo) Load(ctx context.Context, pos chunkpos.Position) (feature.Record, bool, error) {
	if err := validate(pos); err != nil {
		return feature.Record{}, false, err
	}

	query := fmt.Sprintf(`SELECT highest_block_y, spot_biome, node_y FROM %s WHERE world = ? AND x = ? AND z = ?`, r.table)

	rec := feature.Record{Position: pos}
	err := r.db.QueryRowContext(ctx, query, pos.World, pos.X, pos.Z).Scan(&rec.HighestBlockY, &rec.SpotBiome, &rec.NodeY)
	if errors.Is(err, sql.ErrNoRows) {
		return feature.Record{}, false, nil
	}
	if err != nil {
		return feature.Record{}, false, fmt.Errorf("ошибка загрузки чанка %s: %w", pos, err)
	}
	return rec, true, nil
}

// Delete удаляет описание чанка. Отсутствие строки не ошибка.
func (r *MariaFeatureRepo) Delete(ctx context.Context, pos chunkpos.Position) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE world = ? AND x = ? AND z = ?`, r.table)
	if _, err := r.db.ExecContext(ctx, query, pos.World, pos.X, pos.Z); err != nil {
		return fmt.Errorf("ошибка удаления чанка %s: %w", pos, err)
	}
	return nil
}

// List возвращает описания мира в порядке Position.Less
func (r *MariaFeatureRepo) List(ctx context.Context, world string) ([]feature.Record, error) {
	query := fmt.Sprintf(`SELECT x, z, highest_block_y, spot_biome, node_y FROM %s WHERE world = ? ORDER BY x, z`, r.table)

	rows, err := r.db.QueryContext(ctx, query, world)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения мира %s: %w", world, err)
	}
	defer rows.Close()

	out := make([]feature.Record, 0)
	for rows.Next() {
		rec := feature.Record{Position: chunkpos.Position{World: world}}
		if err := rows.Scan(&rec.Position.X, &rec.Position.Z, &rec.HighestBlockY, &rec.SpotBiome, &rec.NodeY); err != nil {
			return nil, fmt.Errorf("ошибка разбора строки мира %s: %w", world, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchSave сохраняет несколько описаний в одной транзакции
func (r *MariaFeatureRepo) BatchSave(ctx context.Context, recs []feature.Record) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if err := validate(rec.Position); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.upsertQuery())
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		p := rec.Position
		if _, err := stmt.ExecContext(ctx, p.World, p.X, p.Z, rec.HighestBlockY, rec.SpotBiome, rec.NodeY); err != nil {
			return fmt.Errorf("ошибка сохранения чанка %s в batch: %w", p, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// SaveFrontier сохраняет снимок трекера одной строкой
func (r *MariaFeatureRepo) SaveFrontier(ctx context.Context, snap frontier.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации снимка: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, snapshot) VALUES (1, ?)
		ON DUPLICATE KEY UPDATE snapshot = VALUES(snapshot)
	`, r.frontierTable)
	if _, err := r.db.ExecContext(ctx, query, raw); err != nil {
		return fmt.Errorf("ошибка сохранения снимка: %w", err)
	}

	logging.Debug("💾 Frontier snapshot saved to MariaDB: %d known, %d pending", len(snap.Known), len(snap.Pending))
	return nil
}

// LoadFrontier загружает снимок трекера
func (r *MariaFeatureRepo) LoadFrontier(ctx context.Context) (frontier.Snapshot, bool, error) {
	query := fmt.Sprintf(`SELECT snapshot FROM %s WHERE id = 1`, r.frontierTable)

	var raw []byte
	err := r.db.QueryRowContext(ctx, query).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return frontier.Snapshot{}, false, nil
	}
	if err != nil {
		return frontier.Snapshot{}, false, fmt.Errorf("ошибка чтения снимка: %w", err)
	}

	var snap frontier.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return frontier.Snapshot{}, false, fmt.Errorf("ошибка разбора снимка: %w", err)
	}
	return snap, true, nil
}

// Close закрывает соединение с базой данных
func (r *MariaFeatureRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
