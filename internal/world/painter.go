package world

import (
	"context"
	"sync"

	"github.com/annel0/geography/internal/chunkpos"
	"github.com/annel0/geography/internal/errkind"
	"github.com/annel0/geography/internal/feature"
)

// NodeMaterial материал блока-узла
const NodeMaterial = "bedrock"

// Node описывает единственный блок, записанный при заселении чанка
type Node struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Material string `json:"material"`
}

// NodePainter ставит узел в опорную точку чанка на высоте NodeY
type NodePainter struct {
	mu    sync.RWMutex
	nodes map[chunkpos.Position]Node
}

// NewNodePainter создаёт пустой painter
func NewNodePainter() *NodePainter {
	return &NodePainter{nodes: make(map[chunkpos.Position]Node)}
}

// Paint записывает узел. Повторная запись в тот же чанк считается ошибкой:
// заселение выполняется не более одного раза.
func (p *NodePainter) Paint(ctx context.Context, pos chunkpos.Position, nodeY int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if nodeY < feature.MinNodeY {
		return errkind.InvalidArgument("node y %d is below %d", nodeY, feature.MinNodeY)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.nodes[pos]; exists {
		return errkind.InvalidArgument("chunk %s already populated", pos)
	}

	bx, bz := pos.Center()
	p.nodes[pos] = Node{X: bx, Y: nodeY, Z: bz, Material: NodeMaterial}
	return nil
}

// Painted возвращает узел чанка, если он был записан
func (p *NodePainter) Painted(pos chunkpos.Position) (Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[pos]
	return n, ok
}

// Count возвращает число записанных узлов
func (p *NodePainter) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nodes)
}
