// Package sequence hands out human-readable references such as ORD/00042.
package sequence

import (
	"context"
	"fmt"
	"sync"
)

// Sequence codes.
const (
	Order      = "marketplace.order"
	Commission = "marketplace.commission"
	Payout     = "marketplace.payout"
	Vendor     = "marketplace.vendor"
	Product    = "marketplace.product"
	Invoice    = "marketplace.invoice"
)

var prefixes = map[string]string{
	Order:      "ORD/",
	Commission: "COM/",
	Payout:     "PAY/",
	Vendor:     "VEN/",
	Product:    "PRD/",
	Invoice:    "INV/",
}

// Generator returns the next reference for a code. References of one code
// are strictly increasing.
type Generator interface {
	Next(ctx context.Context, code string) (string, error)
}

// Format renders counter n for code.
func Format(code string, n int64) string {
	prefix, ok := prefixes[code]
	if !ok {
		prefix = code + "/"
	}
	return fmt.Sprintf("%s%05d", prefix, n)
}

// MemoryGenerator keeps counters in process memory.
type MemoryGenerator struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{counters: make(map[string]int64)}
}

func (g *MemoryGenerator) Next(_ context.Context, code string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[code]++
	return Format(code, g.counters[code]), nil
}
