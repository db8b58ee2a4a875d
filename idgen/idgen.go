// Package idgen provides the ID generators used to name runs, loops and
// recordings.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator produces unique identifiers.
type Generator interface {
	Generate() string
}

// NewSequential returns a generator whose first emitted ID is "1". IDs from
// a sequential generator are deterministic, which keeps recordings of
// repeated runs comparable.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewUnique returns a generator of globally unique, sortable IDs.
func NewUnique() Generator {
	return uniqueGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() string {
	return strconv.FormatUint(atomic.AddUint64(&g.next, 1), 10)
}

type uniqueGenerator struct{}

func (uniqueGenerator) Generate() string {
	return xid.New().String()
}
