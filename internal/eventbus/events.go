package eventbus

import (
	"fmt"
	"time"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/record"
	"github.com/google/uuid"
)

// Типы событий
const (
	// ChunkAvailable: хост загрузил или сгенерировал чанк. Payload: запись позиции.
	ChunkAvailable = "ChunkAvailable"
	// ChunkPopulated: чанк заселён. Payload: запись описания узла.
	ChunkPopulated = "ChunkPopulated"
)

// Версия схемы полезной нагрузки
const payloadVersion = 1

// Приоритеты: доступность чанка нельзя терять, уведомления о заселении можно
const (
	PriorityAvailable = 7
	PriorityPopulated = 3
)

// NewEnvelope упаковывает запись в конверт с новым UUID
func NewEnvelope(source, eventType string, priority int, payload record.Storable) (*Envelope, error) {
	data, err := record.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   payloadVersion,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// NewChunkAvailable создаёт событие о доступности чанка
func NewChunkAvailable(source string, pos chunkpos.Position) (*Envelope, error) {
	return NewEnvelope(source, ChunkAvailable, PriorityAvailable, pos)
}

// NewChunkPopulated создаёт событие о заселении чанка
func NewChunkPopulated(source string, rec feature.Record) (*Envelope, error) {
	return NewEnvelope(source, ChunkPopulated, PriorityPopulated, rec)
}

// DecodePosition извлекает позицию из события ChunkAvailable
func DecodePosition(ev *Envelope) (chunkpos.Position, error) {
	if ev.EventType != ChunkAvailable {
		return chunkpos.Position{}, fmt.Errorf("unexpected event type %q", ev.EventType)
	}
	rec, err := record.Unmarshal(ev.Payload)
	if err != nil {
		return chunkpos.Position{}, err
	}
	return chunkpos.FromRecord(rec)
}

// DecodeFeature извлекает описание узла из события ChunkPopulated
func DecodeFeature(ev *Envelope) (feature.Record, error) {
	if ev.EventType != ChunkPopulated {
		return feature.Record{}, fmt.Errorf("unexpected event type %q", ev.EventType)
	}
	return feature.Decode(ev.Payload)
}
