package services

import (
	"github.com/sirupsen/logrus"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// PathFinder enumerates every unique triangular cycle reachable from the
// configured base currencies. Enumeration is exhaustive by design: for the
// current pair set it finds every valid triangle exactly once.
type PathFinder struct {
	baseCurrencies []string
	logger         *logrus.Logger
}

// NewPathFinder creates a path finder for the given base currency set.
func NewPathFinder(baseCurrencies []string, logger *logrus.Logger) *PathFinder {
	return &PathFinder{baseCurrencies: baseCurrencies, logger: logger}
}

// FindTriangularPaths walks base → first hop → second hop → base over the
// graph. Cycles discovered from more than one configured base are rotations
// of each other and are deduplicated by the path's canonical key.
func (f *PathFinder) FindTriangularPaths(graph *CurrencyGraph) []models.TriangularPath {
	var paths []models.TriangularPath
	seen := make(map[string]bool)

	for _, base := range f.baseCurrencies {
		for _, first := range graph.Neighbors(base) {
			x := first.To
			if x == base {
				continue
			}
			for _, second := range graph.Neighbors(x) {
				y := second.To
				if y == base || y == x {
					continue
				}
				closing, ok := graph.Edge(y, base)
				if !ok {
					continue
				}

				path := models.TriangularPath{
					Currencies: []string{base, x, y, base},
					Legs: []models.PathLeg{
						{Symbol: first.Symbol, Direction: first.Direction, From: base, To: x},
						{Symbol: second.Symbol, Direction: second.Direction, From: x, To: y},
						{Symbol: closing.Symbol, Direction: closing.Direction, From: y, To: base},
					},
				}

				key := path.CanonicalKey()
				if seen[key] {
					continue
				}
				seen[key] = true
				paths = append(paths, path)
			}
		}
	}

	f.logger.WithField("paths", len(paths)).Debug("Triangular path discovery complete")
	return paths
}

// RequiredSymbols returns the distinct symbols the given paths trade, i.e.
// the tickers one scan cycle must fetch.
func RequiredSymbols(paths []models.TriangularPath) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, path := range paths {
		for _, leg := range path.Legs {
			if !seen[leg.Symbol] {
				seen[leg.Symbol] = true
				symbols = append(symbols, leg.Symbol)
			}
		}
	}
	return symbols
}
