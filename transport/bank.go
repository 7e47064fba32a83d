package transport

import (
	"github.com/gonuclear/gomc/geom"
	"github.com/gonuclear/gomc/rng"
)

// FissionSite is an immutable record of where a fission neutron was born
// and with what energy.
type FissionSite struct {
	Pos    geom.Vec
	E      float64
	Weight float64
}

// Bank collects the fission sites born during one generation. During
// transport each work batch appends to its own private bank; the
// generation loop concatenates them in batch order at the barrier, so the
// bank never needs a lock.
//
// Overflow policy: the bank is capacity-bounded, and a merged bank larger
// than its capacity is truncated by a deterministic random draw with the
// surviving sites reweighted to conserve total weight
// (capped-with-reweighting). Dropping the oldest sites instead would make
// the retained source depend on batch layout rather than physics.
type Bank struct {
	Sites []FissionSite
	cap   int
}

// NewBank returns an empty bank. capacity <= 0 means unbounded.
func NewBank(capacity int) *Bank {
	return &Bank{cap: capacity}
}

// Append records one fission site.
func (b *Bank) Append(site FissionSite) {
	b.Sites = append(b.Sites, site)
}

// Len returns the number of banked sites.
func (b *Bank) Len() int { return len(b.Sites) }

// Reset empties the bank, keeping its storage.
func (b *Bank) Reset() { b.Sites = b.Sites[:0] }

// TotalWeight sums the site weights.
func (b *Bank) TotalWeight() float64 {
	w := 0.0
	for i := range b.Sites {
		w += b.Sites[i].Weight
	}
	return w
}

// MergeFrom appends all of src's sites. Call in batch-index order.
func (b *Bank) MergeFrom(src *Bank) {
	b.Sites = append(b.Sites, src.Sites...)
}

// EnforceCap applies the capped-with-reweighting overflow policy using the
// given stream: a random subset of cap sites survives and is reweighted so
// the bank's total weight is unchanged.
func (b *Bank) EnforceCap(s *rng.Stream) {
	if b.cap <= 0 || len(b.Sites) <= b.cap {
		return
	}
	before := b.TotalWeight()
	pick(b.Sites, b.cap, s)
	b.Sites = b.Sites[:b.cap]
	scale := before / b.TotalWeight()
	for i := range b.Sites {
		b.Sites[i].Weight *= scale
	}
}

// Resample returns exactly n unit-weight sites drawn from the bank: a
// random subset when the bank is long, a uniform draw with replacement
// when it is short. The bank itself is left untouched. The caller supplies
// the dedicated resample stream so the draw is reproducible.
func (b *Bank) Resample(n int, s *rng.Stream) []FissionSite {
	out := make([]FissionSite, n)
	if len(b.Sites) >= n {
		idx := make([]int, len(b.Sites))
		for i := range idx {
			idx[i] = i
		}
		for i := 0; i < n; i++ {
			j := i + s.IntN(len(idx)-i)
			idx[i], idx[j] = idx[j], idx[i]
			out[i] = b.Sites[idx[i]]
		}
	} else {
		for i := range out {
			out[i] = b.Sites[s.IntN(len(b.Sites))]
		}
	}
	for i := range out {
		out[i].Weight = 1
	}
	return out
}

// pick partially Fisher-Yates shuffles sites so that the first n entries
// are a uniform random subset.
func pick(sites []FissionSite, n int, s *rng.Stream) {
	for i := 0; i < n && i < len(sites)-1; i++ {
		j := i + s.IntN(len(sites)-i)
		sites[i], sites[j] = sites[j], sites[i]
	}
}
