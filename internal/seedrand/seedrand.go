package seedrand

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/cespare/xxhash/v2"
)

// Source минимальный интерфейс генератора, который потребляет планировщик узлов.
// *rand.Rand из math/rand/v2 ему удовлетворяет.
type Source interface {
	IntN(n int) int
}

// streamSalt разделяет два 64-битных слова состояния PCG
const streamSalt uint64 = 0x9e3779b97f4a7c15

// ForPosition создаёт генератор, последовательность которого зависит только от
// (seed, x, z). Имя мира в сид не входит: миры различаются своими сидами.
//
// Состояние PCG получается из xxhash64 от трёх чисел в little-endian,
// поэтому поток одинаков во всех процессах и на всех платформах.
func ForPosition(seed int64, pos chunkpos.Position) *rand.Rand {
	return rand.New(rand.NewPCG(Mix(seed, pos.X, pos.Z)))
}

// Mix возвращает два слова состояния для PCG
func Mix(seed int64, x, z int) (uint64, uint64) {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(x)))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(int64(z)))

	hi := xxhash.Sum64(buf[:])
	return hi, hi ^ streamSalt
}
