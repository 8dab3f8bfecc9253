package feature

import (
	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/errkind"
	"github.com/annel0/geography/internal/record"
)

// Record хранит данные чанка, снятые в момент готовности: высоту поверхности в
// опорной точке, код биома и рассчитанную высоту узла. После расчёта не меняется.
type Record struct {
	Position      chunkpos.Position `json:"position"`
	HighestBlockY int               `json:"highestBlockY"`
	SpotBiome     int               `json:"spotBiome"`
	NodeY         int               `json:"nodeY"`
}

// ToRecord сериализует описание в запись ключ/значение
func (r Record) ToRecord() record.Record {
	return record.Record{
		"position":      r.Position.ToRecord(),
		"highestBlockY": r.HighestBlockY,
		"spotBiome":     r.SpotBiome,
		"nodeY":         r.NodeY,
	}
}

// FromRecord восстанавливает описание из записи
func FromRecord(rec record.Record) (Record, error) {
	nested, err := rec.Nested("position")
	if err != nil {
		return Record{}, err
	}
	pos, err := chunkpos.FromRecord(nested)
	if err != nil {
		return Record{}, err
	}

	var out Record
	out.Position = pos
	if out.HighestBlockY, err = rec.Int("highestBlockY"); err != nil {
		return Record{}, err
	}
	if out.SpotBiome, err = rec.Int("spotBiome"); err != nil {
		return Record{}, err
	}
	if out.NodeY, err = rec.Int("nodeY"); err != nil {
		return Record{}, err
	}
	if out.NodeY < MinNodeY {
		return Record{}, errkind.InvalidArgument("stored nodeY %d is below %d", out.NodeY, MinNodeY)
	}
	return out, nil
}

// Decode разбирает JSON-представление записи
func Decode(data []byte) (Record, error) {
	rec, err := record.Unmarshal(data)
	if err != nil {
		return Record{}, err
	}
	return FromRecord(rec)
}

// Encode сериализует описание в JSON через запись ключ/значение
func Encode(r Record) ([]byte, error) {
	return record.Marshal(r)
}
