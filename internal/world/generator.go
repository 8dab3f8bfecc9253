package world

import (
	"github.com/annel0/geography/internal/biome"
	"github.com/annel0/geography/internal/errkind"
	"github.com/annel0/geography/internal/feature"
	"github.com/aquilax/go-perlin"
)

// Диапазоны высоты поверхности по окружению
const (
	NormalMinY = 48
	NormalMaxY = 127
	NetherRoof = 127
	EndMinY    = 48
	EndMaxY    = 72
)

// Параметры шума Перлина
const (
	noiseAlpha   = 2.0 // Сглаживание шума
	noiseBeta    = 2.0 // Частота шума
	noiseOctaves = int32(3)

	biomeSeedSalt = 42
)

// Generator отвечает на запросы о поверхности одного мира.
// Состояние шума принадлежит генератору, глобальных переменных нет.
type Generator struct {
	Seed        int64
	Environment feature.Environment
	NoiseScale  float64 // Масштаб основного шума (высота)
	BiomeScale  float64 // Масштаб шума биомов

	height     *perlin.Perlin
	biomeNoise *perlin.Perlin
	candidates []int
}

// NewGenerator создаёт генератор мира. Биомы-кандидаты берутся из каталога
// по окружению: обычный мир получает наземные биомы, ад адские, край небесные.
func NewGenerator(seed int64, env feature.Environment, catalog *biome.Catalog) (*Generator, error) {
	var keep func(biome.Biome) bool
	switch env {
	case feature.EnvNether:
		keep = biome.InCategory(biome.CategoryHell)
	case feature.EnvTheEnd:
		keep = biome.InCategory(biome.CategorySky)
	default:
		keep = biome.InCategory(biome.CategoryLowland, biome.CategoryHilly)
	}

	candidates := catalog.Codes(keep)
	if len(candidates) == 0 {
		return nil, errkind.InvalidArgument("catalog has no biomes for %s worlds", env)
	}

	return &Generator{
		Seed:        seed,
		Environment: env,
		NoiseScale:  0.01,
		BiomeScale:  0.004,
		height:      perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed),
		biomeNoise:  perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed+biomeSeedSalt),
		candidates:  candidates,
	}, nil
}

// SurfaceElevationAt возвращает высоту самого верхнего блока в точке мира
func (g *Generator) SurfaceElevationAt(bx, bz int) int {
	switch g.Environment {
	case feature.EnvNether:
		// У ада сплошной потолок
		return NetherRoof
	case feature.EnvTheEnd:
		return EndMinY + int(g.sample(g.height, bx, bz, g.NoiseScale)*float64(EndMaxY-EndMinY))
	default:
		return NormalMinY + int(g.sample(g.height, bx, bz, g.NoiseScale)*float64(NormalMaxY-NormalMinY))
	}
}

// BiomeAt возвращает код биома в точке мира
func (g *Generator) BiomeAt(bx, bz int) int {
	if len(g.candidates) == 1 {
		return g.candidates[0]
	}
	idx := int(g.sample(g.biomeNoise, bx, bz, g.BiomeScale) * float64(len(g.candidates)))
	if idx >= len(g.candidates) {
		idx = len(g.candidates) - 1
	}
	return g.candidates[idx]
}

// sample возвращает значение шума в диапазоне [0, 1]
func (g *Generator) sample(p *perlin.Perlin, bx, bz int, scale float64) float64 {
	// Получаем значение шума (примерно от -1 до 1) и преобразуем в [0, 1]
	v := (p.Noise2D(float64(bx)*scale, float64(bz)*scale) + 1.0) / 2.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
