package chunkpos

import (
	"cmp"
	"fmt"

	"github.com/annel0/geography/internal/errkind"
	"github.com/annel0/geography/internal/record"
	"github.com/annel0/geography/internal/vec"
)

// Position содержит координаты чанка и имя мира, в котором он находится.
// Мир хранится по имени, чтобы позиция оставалась простым значением:
// её можно сравнивать через == и использовать как ключ map.
type Position struct {
	X     int    `json:"x"`
	Z     int    `json:"z"`
	World string `json:"world"`
}

// New создаёт позицию, проверяя наличие имени мира.
func New(x, z int, world string) (Position, error) {
	if world == "" {
		return Position{}, errkind.InvalidArgument("chunk position (%d, %d) has empty world name", x, z)
	}
	return Position{X: x, Z: z, World: world}, nil
}

// FromBlock возвращает позицию чанка, содержащего блок (bx, bz) мира world.
func FromBlock(world string, bx, bz int) (Position, error) {
	c := vec.Vec2{X: bx, Z: bz}.ToChunkCoords()
	return New(c.X, c.Z, world)
}

// Coords возвращает координаты чанка без имени мира
func (p Position) Coords() vec.Vec2 {
	return vec.Vec2{X: p.X, Z: p.Z}
}

// Center возвращает мировые координаты опорной точки чанка (центра),
// в которой измеряются высота поверхности и биом.
func (p Position) Center() (bx, bz int) {
	origin := p.Coords().ChunkOrigin()
	return origin.X + vec.ChunkSize/2, origin.Z + vec.ChunkSize/2
}

// Contains проверяет, попадает ли точка мира (px, pz) в этот чанк.
// Границы включительные: [x*16, x*16+15] × [z*16, z*16+15].
func (p Position) Contains(px, pz int) bool {
	origin := p.Coords().ChunkOrigin()
	maxX := origin.X + vec.ChunkSize - 1
	maxZ := origin.Z + vec.ChunkSize - 1

	return px >= origin.X && px <= maxX && pz >= origin.Z && pz <= maxZ
}

// Neighbors возвращает 8 соседних чанков того же мира (расстояние Чебышёва 1).
func (p Position) Neighbors() []Position {
	neighbors := make([]Position, 0, 8)
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			neighbors = append(neighbors, Position{X: p.X + dx, Z: p.Z + dz, World: p.World})
		}
	}
	return neighbors
}

// Compare упорядочивает позиции по X, затем по Z. Мир в сравнении не участвует:
// сравнение позиций разных миров не имеет смысла.
func (p Position) Compare(other Position) int {
	if c := cmp.Compare(p.X, other.X); c != 0 {
		return c
	}
	return cmp.Compare(p.Z, other.Z)
}

// Less задаёт полный детерминированный порядок для сортировки:
// как Compare, но с именем мира в качестве последнего критерия.
func (p Position) Less(other Position) bool {
	if c := p.Compare(other); c != 0 {
		return c < 0
	}
	return p.World < other.World
}

// String возвращает представление вида "x, z, world".
func (p Position) String() string {
	return fmt.Sprintf("%d, %d, %s", p.X, p.Z, p.World)
}

// Key возвращает компактный ключ для хранилищ: "world:x:z".
func (p Position) Key() string {
	return fmt.Sprintf("%s:%d:%d", p.World, p.X, p.Z)
}

// ToRecord сериализует позицию в запись с полями x, z, world.
func (p Position) ToRecord() record.Record {
	return record.Record{
		"x":     p.X,
		"z":     p.Z,
		"world": p.World,
	}
}

// FromRecord восстанавливает позицию из записи.
func FromRecord(rec record.Record) (Position, error) {
	x, err := rec.Int("x")
	if err != nil {
		return Position{}, err
	}
	z, err := rec.Int("z")
	if err != nil {
		return Position{}, err
	}
	world, err := rec.String("world")
	if err != nil {
		return Position{}, err
	}
	return New(x, z, world)
}
