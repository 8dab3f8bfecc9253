package vec

// Размеры чанка в блоках
const (
	ChunkShift = 4
	ChunkSize  = 1 << ChunkShift // 16
	ChunkMask  = ChunkSize - 1
)

// Vec2 представляет целочисленные координаты на плоскости X/Z
type Vec2 struct {
	X, Z int
}

// ToChunkCoords преобразует координаты блока в координаты чанка.
// Арифметический сдвиг корректно округляет отрицательные значения вниз.
func (v Vec2) ToChunkCoords() Vec2 {
	return Vec2{X: v.X >> ChunkShift, Z: v.Z >> ChunkShift}
}

// LocalInChunk возвращает локальные координаты блока внутри чанка (0..15)
func (v Vec2) LocalInChunk() Vec2 {
	return Vec2{X: v.X & ChunkMask, Z: v.Z & ChunkMask}
}

// ChunkOrigin возвращает координаты первого блока чанка с координатами v
func (v Vec2) ChunkOrigin() Vec2 {
	return Vec2{X: v.X << ChunkShift, Z: v.Z << ChunkShift}
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Z: v.Z + other.Z}
}

// Chebyshev возвращает расстояние Чебышёва (максимум модулей разностей)
func (v Vec2) Chebyshev(other Vec2) int {
	return max(abs(v.X-other.X), abs(v.Z-other.Z))
}

// Manhattan возвращает манхэттенское расстояние
func (v Vec2) Manhattan(other Vec2) int {
	return abs(v.X-other.X) + abs(v.Z-other.Z)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
