package engine

import (
	"cmp"
	"fmt"
	"slices"

	"classbench-seed-analyzer/internal/model"
	"classbench-seed-analyzer/internal/portclass"
	"classbench-seed-analyzer/internal/trie"
	"classbench-seed-analyzer/internal/utils"
)

type Options struct {
	Workers           int
	PrefixCorrelation bool // compute -pcorr instead of emitting placeholder rows
}

// Analysis is the immutable result of analysing one rule collection.
type Analysis struct {
	Rules    []*model.Rule
	Omitted  int
	Counters *Counters
	SrcTrie  *trie.Trie
	DstTrie  *trie.Trie
	Options  Options
}

// Analyse counts rules and builds the address tries. omitted is the number
// of input lines that yielded no rule and is reported in the OpenFlow block.
func Analyse(rules []*model.Rule, omitted int, opts Options) (*Analysis, error) {
	a := &Analysis{
		Rules:    rules,
		Omitted:  omitted,
		Counters: CountParallel(rules, opts.Workers),
		SrcTrie:  trie.New(),
		DstTrie:  trie.New(),
		Options:  opts,
	}
	for i, r := range rules {
		if err := insertPrefix(a.SrcTrie, r, model.Src); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if err := insertPrefix(a.DstTrie, r, model.Dst); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return a, nil
}

// Rules without an address on that side are left out of the trie.
func insertPrefix(t *trie.Trie, r *model.Rule, d model.Direction) error {
	p, ok := r.Prefix(d)
	if !ok {
		return nil
	}
	return t.Insert(utils.PrefixBits(p))
}

// RangeProbability is one row of a port range distribution.
type RangeProbability struct {
	Probability float64
	Range       portclass.Range
}

// RangeProbabilities returns the distribution of literal port ranges among
// rules whose port on side d has the given shape. Rows are ordered by
// frequency, then by range. No matching rule yields nil.
func (a *Analysis) RangeProbabilities(d model.Direction, shape portclass.Shape) []RangeProbability {
	bucket := a.Counters.PortRanges[d][shape]
	total := 0
	for _, n := range bucket {
		total += n
	}
	if total == 0 {
		return nil
	}

	type entry struct {
		rng   portclass.Range
		count int
	}
	entries := make([]entry, 0, len(bucket))
	for rng, n := range bucket {
		entries = append(entries, entry{rng, n})
	}
	slices.SortFunc(entries, func(x, y entry) int {
		return cmp.Or(
			cmp.Compare(y.count, x.count),
			cmp.Compare(x.rng.First, y.rng.First),
			cmp.Compare(x.rng.Last, y.rng.Last),
		)
	})

	out := make([]RangeProbability, len(entries))
	for i, e := range entries {
		out[i] = RangeProbability{
			Probability: float64(e.count) / float64(total),
			Range:       e.rng,
		}
	}
	return out
}

// Protocols returns the protocol numbers seen, ascending.
func (a *Analysis) Protocols() []int {
	protos := make([]int, 0, len(a.Counters.ProtocolPortClass))
	for p := range a.Counters.ProtocolPortClass {
		protos = append(protos, p)
	}
	slices.Sort(protos)
	return protos
}
