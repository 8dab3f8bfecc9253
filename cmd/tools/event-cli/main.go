package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/eventbus"
)

const defaultNatsURL = "nats://127.0.0.1:4222"

func main() {
	var (
		natsURL = flag.String("nats", defaultNatsURL, "NATS server URL")
		stream  = flag.String("stream", "GEOGRAPHY", "JetStream stream name")
		command = flag.String("cmd", "tail", "Command: publish, tail")
		worldID = flag.String("world", "world", "World name for published chunks")
		chunks  = flag.String("chunks", "", "Chunks to publish: \"x,z;x,z;...\"")
		square  = flag.Int("square", -1, "Publish a (2r+1)x(2r+1) square around 0,0 instead of -chunks")
		types   = flag.String("types", eventbus.ChunkPopulated, "Event types to tail (comma-separated, empty for all)")
		limit   = flag.Int("limit", 0, "Stop tailing after N events (0 = follow forever)")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to connect to JetStream: %v", err)
	}
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch *command {
	case "publish":
		var cells []chunkpos.Position
		if *square >= 0 {
			cells = squareCells(*worldID, *square)
		} else {
			cells, err = parseChunks(*worldID, *chunks)
			if err != nil {
				log.Fatalf("❌ %v", err)
			}
		}
		if err := publishChunks(ctx, bus, cells); err != nil {
			log.Fatalf("❌ Publish failed: %v", err)
		}

	case "tail":
		if err := tailEvents(ctx, bus, parseStringList(*types), *limit); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: publish, tail")
		os.Exit(1)
	}
}

// publishChunks отправляет ChunkAvailable для каждого чанка
func publishChunks(ctx context.Context, bus eventbus.EventBus, cells []chunkpos.Position) error {
	for _, pos := range cells {
		ev, err := eventbus.NewChunkAvailable("event-cli", pos)
		if err != nil {
			return err
		}
		if err := bus.Publish(ctx, ev); err != nil {
			return fmt.Errorf("chunk %s: %w", pos, err)
		}
		fmt.Printf("📤 %s %s\n", ev.ID, pos)
	}
	fmt.Printf("✅ Published %d chunks\n", len(cells))
	return nil
}

// tailEvents выводит события до сигнала или limit
func tailEvents(ctx context.Context, bus eventbus.EventBus, types []string, limit int) error {
	fmt.Printf("🎬 Tailing events (types: %v, limit: %d)\n", types, limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan *eventbus.Envelope, 64)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	count := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Received %d events\n", count)
			return nil
		case ev := <-events:
			count++
			printEvent(count, ev)
			if limit > 0 && count >= limit {
				return nil
			}
		}
	}
}

func printEvent(n int, ev *eventbus.Envelope) {
	ts := ev.Timestamp.Format(time.RFC3339)
	switch ev.EventType {
	case eventbus.ChunkPopulated:
		if rec, err := eventbus.DecodeFeature(ev); err == nil {
			fmt.Printf("%d. [%s] 🌱 %s nodeY=%d surface=%d biome=%d\n",
				n, ts, rec.Position, rec.NodeY, rec.HighestBlockY, rec.SpotBiome)
			return
		}
	case eventbus.ChunkAvailable:
		if pos, err := eventbus.DecodePosition(ev); err == nil {
			fmt.Printf("%d. [%s] 📦 %s from %s\n", n, ts, pos, ev.Source)
			return
		}
	}
	fmt.Printf("%d. [%s] %s (%d bytes)\n", n, ts, ev.EventType, len(ev.Payload))
}

// parseChunks разбирает "x,z;x,z"
func parseChunks(worldID, s string) ([]chunkpos.Position, error) {
	var cells []chunkpos.Position
	for _, item := range parseList(s, ";") {
		parts := strings.Split(item, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid chunk %q, want x,z", item)
		}
		x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
		z, errZ := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errX != nil || errZ != nil {
			return nil, fmt.Errorf("invalid chunk %q, coordinates must be integers", item)
		}
		pos, err := chunkpos.New(x, z, worldID)
		if err != nil {
			return nil, err
		}
		cells = append(cells, pos)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("no chunks given")
	}
	return cells, nil
}

func squareCells(worldID string, r int) []chunkpos.Position {
	cells := make([]chunkpos.Position, 0, (2*r+1)*(2*r+1))
	for x := -r; x <= r; x++ {
		for z := -r; z <= r; z++ {
			cells = append(cells, chunkpos.Position{X: x, Z: z, World: worldID})
		}
	}
	return cells
}

func parseStringList(s string) []string {
	return parseList(s, ",")
}

func parseList(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
