// frontier-sim прогоняет уведомления о чанках через сервис заселения без сети
// и печатает заселённые записи в формате JSON Lines.
//
//	frontier-sim -env nether -seed 7 -shape diamond -radius 6 -shuffle 42
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"

	"github.com/annel0/geography/internal/biome"
	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/feature"
	"github.com/annel0/geography/internal/logging"
	"github.com/annel0/geography/internal/populate"
	"github.com/annel0/geography/internal/storage"
	"github.com/annel0/geography/internal/world"
)

func main() {
	var (
		worldName = flag.String("world", "world", "Имя мира")
		envName   = flag.String("env", "normal", "Окружение: normal, nether, the_end")
		seed      = flag.Int64("seed", 1, "Сид мира")
		shape     = flag.String("shape", "square", "Форма области: square, diamond")
		radius    = flag.Int("radius", 4, "Радиус области в чанках")
		shuffle   = flag.Uint64("shuffle", 0, "Сид перемешивания порядка уведомлений (0 без перемешивания)")
		biomes    = flag.String("biomes", "", "YAML файл с переопределениями биомов")
		verbose   = flag.Bool("v", false, "Подробный лог")
	)
	flag.Parse()

	if *verbose {
		logging.SetDefaultLevels(logging.DEBUG, logging.DEBUG)
	} else {
		logging.SetDefaultLevels(logging.WARN, logging.WARN)
	}

	env, err := feature.ParseEnvironment(*envName)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if *radius < 0 {
		log.Fatalf("❌ radius must be non-negative")
	}

	catalog := biome.DefaultCatalog()
	if *biomes != "" {
		data, err := os.ReadFile(*biomes)
		if err != nil {
			log.Fatalf("❌ Failed to read biomes: %v", err)
		}
		if err := catalog.LoadOverrides(data); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}

	registry := world.NewRegistry(catalog)
	if err := registry.Register(*worldName, env, *seed); err != nil {
		log.Fatalf("❌ %v", err)
	}

	repo := storage.NewMemoryFeatureRepo()
	painter := world.NewNodePainter()
	service, err := populate.NewService(populate.Deps{
		Host:    registry,
		Catalog: catalog,
		Repo:    repo,
		Painter: painter,
		Source:  "frontier-sim",
	})
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	cells, err := area(*worldName, *shape, *radius)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if *shuffle != 0 {
		rnd := rand.New(rand.NewPCG(*shuffle, *shuffle>>1|1))
		rnd.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
	}

	out := json.NewEncoder(os.Stdout)
	failures := 0
	ctx := context.Background()
	for _, pos := range cells {
		recs, err := service.ChunkAvailable(ctx, pos)
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "⚠️ %s: %v\n", pos, err)
		}
		for _, rec := range recs {
			if err := out.Encode(rec); err != nil {
				log.Fatalf("❌ %v", err)
			}
		}
	}

	stats := service.Tracker().Stats()
	fmt.Fprintf(os.Stderr, "📊 observed=%d populated=%d pending=%d failures=%d\n",
		len(cells), painter.Count(), stats.Pending, failures)
}

// area перечисляет чанки области вокруг (0,0) в порядке строк
func area(worldName, shape string, radius int) ([]chunkpos.Position, error) {
	var keep func(x, z int) bool
	switch shape {
	case "square":
		keep = func(x, z int) bool { return true }
	case "diamond":
		keep = func(x, z int) bool { return abs(x)+abs(z) <= radius }
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}

	var cells []chunkpos.Position
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			if keep(x, z) {
				cells = append(cells, chunkpos.Position{X: x, Z: z, World: worldName})
			}
		}
	}
	return cells, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
