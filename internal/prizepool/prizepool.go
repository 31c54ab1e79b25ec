// Package prizepool implements the weighted prize draw. Each candidate owns
// as many slots as its remaining quantity; a uniformly random slot picks the
// winner.
package prizepool

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// ErrPoolExhausted is returned when no candidate has a positive quantity.
var ErrPoolExhausted = errors.New("prize pool exhausted")

const seedSize = 16

// Candidate is a prize eligible for the draw.
type Candidate struct {
	PrizeID  uuid.UUID
	Quantity int
	Order    int
}

// Result is the outcome of a single draw.
type Result struct {
	PrizeID    uuid.UUID
	SlotNumber int64
	TotalSlots int64
}

// TotalSlots sums the positive quantities of the candidates.
func TotalSlots(candidates []Candidate) int64 {
	var total int64
	for _, c := range candidates {
		if c.Quantity > 0 {
			total += int64(c.Quantity)
		}
	}
	return total
}

// Draw picks a candidate with probability proportional to its quantity.
func Draw(candidates []Candidate) (*Result, error) {
	total := TotalSlots(candidates)
	if total == 0 {
		return nil, ErrPoolExhausted
	}

	n, err := rand.Int(rand.Reader, big.NewInt(total))
	if err != nil {
		return nil, fmt.Errorf("failed to generate random slot: %w", err)
	}

	return Select(candidates, n.Int64())
}

// Select resolves slot r against the candidates laid out by ascending order.
// It is deterministic for a given r.
func Select(candidates []Candidate, r int64) (*Result, error) {
	pool := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Quantity > 0 {
			pool = append(pool, c)
		}
	}

	total := TotalSlots(pool)
	if total == 0 {
		return nil, ErrPoolExhausted
	}
	if r < 0 || r >= total {
		return nil, fmt.Errorf("slot %d out of range [0, %d)", r, total)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Order < pool[j].Order
	})

	var cumulative int64
	for _, c := range pool {
		cumulative += int64(c.Quantity)
		if r < cumulative {
			return &Result{
				PrizeID:    c.PrizeID,
				SlotNumber: r,
				TotalSlots: total,
			}, nil
		}
	}

	// unreachable: r < total
	return nil, ErrPoolExhausted
}

// NewSeed returns a base58 encoded random seed recorded next to a draw.
func NewSeed() (string, error) {
	buf := make([]byte, seedSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate seed: %w", err)
	}
	return base58.Encode(buf), nil
}
