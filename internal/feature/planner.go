package feature

import (
	"math"

	"github.com/annel0/geography/internal/biome"
	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/seedrand"
)

// Константы расчёта высоты узла
const (
	MinNodeY = 5 // узел никогда не опускается ниже

	// Обычный мир: делитель задаёт крутизну, коэффициент биома сдвигает узлы вниз
	surfaceDivisor  = 1.4
	biomeCodeFactor = 0.62
	hillyOffset     = 6
	lowlandOffset   = -6

	// Особые миры
	discardBound = 64
	hellBaseY    = 50
	hellSpread   = 60
	otherBaseY   = 46
	otherSpread  = 5
)

// Derive рассчитывает описание узла для готового чанка.
//
// Функция чистая: все данные (высота поверхности в опорной точке, биом,
// генератор, привязанный к чанку) передаёт вызывающий код. Порядок обращений
// к генератору фиксирован, чтобы повторный расчёт совпадал побитно.
func Derive(pos chunkpos.Position, env Environment, surfaceY int, b biome.Biome, rnd seedrand.Source) Record {
	return Record{
		Position:      pos,
		HighestBlockY: surfaceY,
		SpotBiome:     b.Code,
		NodeY:         NodeY(env, surfaceY, b, rnd),
	}
}

// NodeY возвращает высоту узла
func NodeY(env Environment, surfaceY int, b biome.Biome, rnd seedrand.Source) int {
	if env.Special() {
		// Первое значение отбрасывается: оно держит порядок потребления генератора
		rnd.IntN(discardBound)

		if b.Category == biome.CategoryHell {
			// Ад: крутые переходы на большой высоте
			return max(MinNodeY, hellBaseY+rnd.IntN(hellSpread))
		}
		// Край почти плоский
		return max(MinNodeY, otherBaseY+rnd.IntN(otherSpread))
	}

	base := int(math.Round(float64(surfaceY)/surfaceDivisor - float64(b.Code)*biomeCodeFactor))
	if b.Category.RaisesNode() {
		return max(MinNodeY, base+hillyOffset)
	}
	return max(MinNodeY, base+lowlandOffset)
}
