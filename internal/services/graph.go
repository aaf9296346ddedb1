package services

import (
	"sort"
	"sync"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// GraphEdge is one executable conversion: trading Symbol in Direction turns
// the From currency into the To currency.
type GraphEdge struct {
	From      string
	To        string
	Symbol    string
	Direction models.TradeDirection
}

// CurrencyGraph is a directed multigraph of currencies. Each listed symbol
// BASE/QUOTE contributes two edges: selling the base (BASE→QUOTE) and buying
// it (QUOTE→BASE). The graph is replaced atomically on rebuild and read-only
// during a scan.
type CurrencyGraph struct {
	mu        sync.RWMutex
	adjacency map[string][]GraphEdge
	symbols   int
}

// NewCurrencyGraph creates an empty graph.
func NewCurrencyGraph() *CurrencyGraph {
	return &CurrencyGraph{adjacency: make(map[string][]GraphEdge)}
}

// Rebuild replaces the graph from the venue's symbol list. Malformed symbols
// and self-loops are skipped. Symbols are processed in sorted order so edge
// ordering, and therefore path discovery, is deterministic.
func (g *CurrencyGraph) Rebuild(symbols []string) {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)

	adjacency := make(map[string][]GraphEdge)
	count := 0
	for _, symbol := range sorted {
		base, quote, err := models.SplitSymbol(symbol)
		if err != nil || base == quote {
			continue
		}
		adjacency[base] = append(adjacency[base], GraphEdge{
			From: base, To: quote, Symbol: symbol, Direction: models.Sell,
		})
		adjacency[quote] = append(adjacency[quote], GraphEdge{
			From: quote, To: base, Symbol: symbol, Direction: models.Buy,
		})
		count++
	}

	g.mu.Lock()
	g.adjacency = adjacency
	g.symbols = count
	g.mu.Unlock()
}

// Neighbors returns the one-hop conversions available from a currency.
func (g *CurrencyGraph) Neighbors(currency string) []GraphEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := g.adjacency[currency]
	out := make([]GraphEdge, len(edges))
	copy(out, edges)
	return out
}

// Edge returns the first edge converting from one currency to another, if
// any. With parallel edges the sorted rebuild order makes the pick stable.
func (g *CurrencyGraph) Edge(from, to string) (GraphEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.adjacency[from] {
		if e.To == to {
			return e, true
		}
	}
	return GraphEdge{}, false
}

// Currencies returns every currency with at least one tradable pair.
func (g *CurrencyGraph) Currencies() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.adjacency))
	for c := range g.adjacency {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// SymbolCount returns how many symbols the graph was built from.
func (g *CurrencyGraph) SymbolCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.symbols
}
