package frontier

import (
	"slices"
	"sync"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/errkind"
)

// Tracker отслеживает границу загруженных чанков.
//
// Чанк попадает в known при первом появлении и одновременно в pending.
// Из pending он уходит ровно один раз, когда все 8 соседей известны.
// Чанки на краю загруженной области могут оставаться в pending сколь угодно долго,
// это нормальное состояние, а не ошибка.
//
// Инвариант: pending ⊆ known.
type Tracker struct {
	mu      sync.Mutex
	known   map[chunkpos.Position]struct{}
	pending map[chunkpos.Position]struct{}
}

// Stats размеры множеств трекера.
type Stats struct {
	Known   int `json:"known"`
	Pending int `json:"pending"`
}

// Snapshot сохраняемое состояние трекера.
type Snapshot struct {
	Known   []chunkpos.Position `json:"known"`
	Pending []chunkpos.Position `json:"pending"`
}

// NewTracker создаёт пустой трекер
func NewTracker() *Tracker {
	return &Tracker{
		known:   make(map[chunkpos.Position]struct{}),
		pending: make(map[chunkpos.Position]struct{}),
	}
}

// Observe отмечает чанк как доступный. Повторный вызов для известного чанка
// ничего не меняет. Возвращает true, если чанк появился впервые.
func (t *Tracker) Observe(pos chunkpos.Position) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observeLocked(pos)
}

// DrainReady возвращает чанки из pending, все соседи которых известны,
// и удаляет их из pending. Результат отсортирован по Position.Less.
func (t *Tracker) DrainReady() []chunkpos.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drainLocked()
}

// ObserveAndDrain выполняет Observe и DrainReady под одной блокировкой.
// Для уже известного чанка возвращает nil: новых готовых чанков появиться не могло.
func (t *Tracker) ObserveAndDrain(pos chunkpos.Position) []chunkpos.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.observeLocked(pos) {
		return nil
	}
	return t.drainLocked()
}

// Requeue возвращает известные чанки в pending, чтобы следующий DrainReady
// выдал их снова. Неизвестные чанки пропускаются. Возвращает число возвращённых.
func (t *Tracker) Requeue(cells ...chunkpos.Position) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, pos := range cells {
		if _, ok := t.known[pos]; !ok {
			continue
		}
		if _, ok := t.pending[pos]; !ok {
			t.pending[pos] = struct{}{}
			n++
		}
	}
	return n
}

func (t *Tracker) observeLocked(pos chunkpos.Position) bool {
	if _, exists := t.known[pos]; exists {
		return false
	}
	t.known[pos] = struct{}{}
	t.pending[pos] = struct{}{}
	return true
}

func (t *Tracker) drainLocked() []chunkpos.Position {
	var ready []chunkpos.Position

	for candidate := range t.pending {
		if t.neighborsKnownLocked(candidate) {
			ready = append(ready, candidate)
		}
	}

	for _, pos := range ready {
		delete(t.pending, pos)
	}

	sortPositions(ready)
	return ready
}

func (t *Tracker) neighborsKnownLocked(pos chunkpos.Position) bool {
	for _, n := range pos.Neighbors() {
		if _, ok := t.known[n]; !ok {
			return false
		}
	}
	return true
}

// IsKnown сообщает, наблюдался ли чанк
func (t *Tracker) IsKnown(pos chunkpos.Position) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.known[pos]
	return ok
}

// IsPending сообщает, ждёт ли чанк своих соседей
func (t *Tracker) IsPending(pos chunkpos.Position) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[pos]
	return ok
}

// Stats возвращает текущие размеры множеств
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Known: len(t.known), Pending: len(t.pending)}
}

// PendingCells возвращает отсортированный список ожидающих чанков мира world.
// Пустое имя мира означает все миры.
func (t *Tracker) PendingCells(world string) []chunkpos.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedCells(t.pending, world)
}

// Snapshot возвращает копию состояния для сохранения.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Known:   sortedCells(t.known, ""),
		Pending: sortedCells(t.pending, ""),
	}
}

// Restore заменяет состояние трекера сохранённым снимком.
// Снимок, нарушающий pending ⊆ known, отклоняется без изменения состояния.
func (t *Tracker) Restore(s Snapshot) error {
	known := make(map[chunkpos.Position]struct{}, len(s.Known))
	for _, pos := range s.Known {
		if pos.World == "" {
			return errkind.InvalidArgument("snapshot contains position %s without world", pos)
		}
		known[pos] = struct{}{}
	}

	pending := make(map[chunkpos.Position]struct{}, len(s.Pending))
	for _, pos := range s.Pending {
		if _, ok := known[pos]; !ok {
			return errkind.InvalidArgument("snapshot pending position %s is not known", pos)
		}
		pending[pos] = struct{}{}
	}

	t.mu.Lock()
	t.known = known
	t.pending = pending
	t.mu.Unlock()
	return nil
}

func sortedCells(set map[chunkpos.Position]struct{}, world string) []chunkpos.Position {
	cells := make([]chunkpos.Position, 0, len(set))
	for pos := range set {
		if world == "" || pos.World == world {
			cells = append(cells, pos)
		}
	}
	sortPositions(cells)
	return cells
}

func sortPositions(cells []chunkpos.Position) {
	slices.SortFunc(cells, func(a, b chunkpos.Position) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}
