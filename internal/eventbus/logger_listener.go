package eventbus

import (
	"context"

	"github.com/annel0/geography/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог.
// Функция неблокирующая. Готовность чанка логирует сам сервис заселения,
// здесь ChunkPopulated пишется только как событие шины.
func StartLoggingListener(ctx context.Context, bus EventBus) (Subscription, error) {
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		switch ev.EventType {
		case ChunkAvailable:
			if pos, err := DecodePosition(ev); err == nil {
				logging.Debug("[EventBus] %s %s src=%s chunk=(%s)", ev.ID, ev.EventType, ev.Source, pos)
				return
			}
		case ChunkPopulated:
			if rec, err := DecodeFeature(ev); err == nil {
				logging.Debug("[EventBus] %s %s src=%s chunk=(%s) nodeY=%d", ev.ID, ev.EventType, ev.Source, rec.Position, rec.NodeY)
				return
			}
		}
		logging.Debug("[EventBus] %s %s src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))
		logging.LogPayload(ev.Source, ev.EventType, ev.Payload)
	})
	if err != nil {
		return nil, err
	}
	logging.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
