// Package pipeline implements the run-wide dedup index and the filter
// predicates applied to every candidate before it reaches the sink.
package pipeline

import (
	"strings"

	"github.com/Assadbaloch/Gmaps-scraper/models"
)

// Index is the run-wide set of normalized identity keys. It is created once
// by the sequencer and shared by every harvester in the run, so two queries
// surfacing the same place yield a single lead. Writes come from one
// harvester at a time; no locking is needed.
type Index struct {
	seen map[string]struct{}
}

func NewIndex() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// Claim records the candidate's identity key. It returns false when the key
// was already present, meaning an earlier item owns this place.
func (ix *Index) Claim(c *models.Candidate) bool {
	key := Key(c)
	if _, dup := ix.seen[key]; dup {
		return false
	}
	ix.seen[key] = struct{}{}
	return true
}

// Len reports how many distinct places have claimed a slot.
func (ix *Index) Len() int {
	return len(ix.seen)
}

// Key builds the identity fingerprint of a candidate: normalized name and
// address joined by "|". Records with equal keys are the same real-world
// place.
func Key(c *models.Candidate) string {
	return Normalize(c.BusinessName) + "|" + Normalize(c.Address)
}

// Normalize lowercases, trims, and collapses internal whitespace runs to a
// single space. Normalize is idempotent.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
