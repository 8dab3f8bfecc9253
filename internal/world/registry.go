package world

import (
	"sort"
	"sync"

	"github.com/annel0/geography/internal/biome"
	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/errkind"
	"github.com/annel0/geography/internal/feature"
)

// World описывает зарегистрированный мир
type World struct {
	Name        string
	Environment feature.Environment
	Seed        int64

	gen *Generator
}

// Registry моделирует хост и отвечает на запросы об окружении, сиде,
// поверхности и биоме. Безопасен для конкурентного использования.
type Registry struct {
	mu      sync.RWMutex
	catalog *biome.Catalog
	worlds  map[string]*World
}

// NewRegistry создаёт пустой реестр миров
func NewRegistry(catalog *biome.Catalog) *Registry {
	return &Registry{
		catalog: catalog,
		worlds:  make(map[string]*World),
	}
}

// Register добавляет или заменяет мир
func (r *Registry) Register(name string, env feature.Environment, seed int64) error {
	if name == "" {
		return errkind.InvalidArgument("world name must not be empty")
	}

	gen, err := NewGenerator(seed, env, r.catalog)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.worlds[name] = &World{Name: name, Environment: env, Seed: seed, gen: gen}
	return nil
}

// Worlds возвращает миры, отсортированные по имени
func (r *Registry) Worlds() []World {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]World, 0, len(r.worlds))
	for _, w := range r.worlds {
		out = append(out, World{Name: w.Name, Environment: w.Environment, Seed: w.Seed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) lookup(name string) (*World, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.worlds[name]
	if !ok {
		return nil, errkind.CollaboratorUnavailable("world %q is not loaded", name)
	}
	return w, nil
}

// Environment возвращает окружение мира
func (r *Registry) Environment(name string) (feature.Environment, error) {
	w, err := r.lookup(name)
	if err != nil {
		return feature.EnvNormal, err
	}
	return w.Environment, nil
}

// Seed возвращает сид мира
func (r *Registry) Seed(name string) (int64, error) {
	w, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	return w.Seed, nil
}

// SurfaceElevationAt возвращает высоту поверхности в опорной точке чанка
func (r *Registry) SurfaceElevationAt(pos chunkpos.Position) (int, error) {
	w, err := r.lookup(pos.World)
	if err != nil {
		return 0, err
	}
	bx, bz := pos.Center()
	return w.gen.SurfaceElevationAt(bx, bz), nil
}

// BiomeAt возвращает код биома в опорной точке чанка
func (r *Registry) BiomeAt(pos chunkpos.Position) (int, error) {
	w, err := r.lookup(pos.World)
	if err != nil {
		return 0, err
	}
	bx, bz := pos.Center()
	return w.gen.BiomeAt(bx, bz), nil
}

// Catalog возвращает каталог биомов реестра
func (r *Registry) Catalog() *biome.Catalog {
	return r.catalog
}
