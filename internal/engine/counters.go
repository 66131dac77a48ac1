package engine

import (
	"net/netip"
	"sync"

	"classbench-seed-analyzer/internal/model"
	"classbench-seed-analyzer/internal/portclass"
	"classbench-seed-analyzer/internal/utils"
)

// Counters holds the order-independent counts derived from a rule collection.
// Counting is associative, so shards can be counted separately and merged.
type Counters struct {
	Rules int

	// protocol -> port class -> rules
	ProtocolPortClass map[int]map[string]int
	// port class -> src+dst prefix length -> src prefix length -> rules
	PrefixLengths map[string]map[int]map[int]int
	// direction -> port shape -> literal range -> rules
	PortRanges map[model.Direction]map[portclass.Shape]map[portclass.Range]int

	Correlation PrefixCorrelation
}

func newCounters() *Counters {
	c := &Counters{
		ProtocolPortClass: make(map[int]map[string]int),
		PrefixLengths:     make(map[string]map[int]map[int]int),
		PortRanges:        make(map[model.Direction]map[portclass.Shape]map[portclass.Range]int),
	}
	for _, name := range portclass.ClassNames {
		c.PrefixLengths[name] = make(map[int]map[int]int)
	}
	return c
}

func (c *Counters) add(r *model.Rule) {
	c.Rules++
	class := r.PortClassName()

	byClass := c.ProtocolPortClass[r.Protocol()]
	if byClass == nil {
		byClass = make(map[string]int)
		c.ProtocolPortClass[r.Protocol()] = byClass
	}
	byClass[class]++

	byTotal := c.PrefixLengths[class]
	total := r.SrcLength() + r.DstLength()
	bySrc := byTotal[total]
	if bySrc == nil {
		bySrc = make(map[int]int)
		byTotal[total] = bySrc
	}
	bySrc[r.SrcLength()]++

	for _, d := range []model.Direction{model.Src, model.Dst} {
		rng := r.PortRange(d)
		if rng == nil {
			continue
		}
		c.rangeBucket(d, portclass.Classify(rng))[*rng]++
	}

	src, srcOK := r.Prefix(model.Src)
	dst, dstOK := r.Prefix(model.Dst)
	if srcOK && dstOK {
		c.Correlation.Add(src, dst)
	}
}

func (c *Counters) rangeBucket(d model.Direction, s portclass.Shape) map[portclass.Range]int {
	byShape := c.PortRanges[d]
	if byShape == nil {
		byShape = make(map[portclass.Shape]map[portclass.Range]int)
		c.PortRanges[d] = byShape
	}
	bucket := byShape[s]
	if bucket == nil {
		bucket = make(map[portclass.Range]int)
		byShape[s] = bucket
	}
	return bucket
}

// Merge adds the counts of o into c.
func (c *Counters) Merge(o *Counters) {
	c.Rules += o.Rules
	for proto, byClass := range o.ProtocolPortClass {
		dst := c.ProtocolPortClass[proto]
		if dst == nil {
			dst = make(map[string]int)
			c.ProtocolPortClass[proto] = dst
		}
		for class, n := range byClass {
			dst[class] += n
		}
	}
	for class, byTotal := range o.PrefixLengths {
		dstTotal := c.PrefixLengths[class]
		if dstTotal == nil {
			dstTotal = make(map[int]map[int]int)
			c.PrefixLengths[class] = dstTotal
		}
		for total, bySrc := range byTotal {
			dstSrc := dstTotal[total]
			if dstSrc == nil {
				dstSrc = make(map[int]int)
				dstTotal[total] = dstSrc
			}
			for src, n := range bySrc {
				dstSrc[src] += n
			}
		}
	}
	for d, byShape := range o.PortRanges {
		for s, bucket := range byShape {
			dst := c.rangeBucket(d, s)
			for rng, n := range bucket {
				dst[rng] += n
			}
		}
	}
	c.Correlation.Merge(&o.Correlation)
}

// RulesInClass is the number of rules with the given port class.
func (c *Counters) RulesInClass(class string) int {
	n := 0
	for _, bySrc := range c.PrefixLengths[class] {
		for _, count := range bySrc {
			n += count
		}
	}
	return n
}

// Count tallies rules on the calling goroutine.
func Count(rules []*model.Rule) *Counters {
	c := newCounters()
	for _, r := range rules {
		c.add(r)
	}
	return c
}

// CountParallel splits rules into contiguous shards, counts each shard on its
// own goroutine and merges the results.
func CountParallel(rules []*model.Rule, workers int) *Counters {
	if workers <= 1 || len(rules) < 2*workers {
		return Count(rules)
	}

	shardSize := (len(rules) + workers - 1) / workers
	shards := make([]*Counters, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * shardSize
		end := min(start+shardSize, len(rules))
		if start >= end {
			shards[i] = newCounters()
			continue
		}
		wg.Add(1)
		go func(i int, part []*model.Rule) {
			defer wg.Done()
			shards[i] = Count(part)
		}(i, rules[start:end])
	}
	wg.Wait()

	merged := shards[0]
	for _, s := range shards[1:] {
		merged.Merge(s)
	}
	return merged
}

// PrefixCorrelation counts, per bit position, how many rules still have
// identical source and destination bits up to and including that position.
type PrefixCorrelation struct {
	All  [32]int
	Same [32]int
}

func (pc *PrefixCorrelation) Add(src, dst netip.Prefix) {
	srcBits := utils.PrefixBits(src)
	dstBits := utils.PrefixBits(dst)
	n := min(len(srcBits), len(dstBits))
	for i := 0; i < n; i++ {
		pc.All[i]++
		if srcBits[i] != dstBits[i] {
			break
		}
		pc.Same[i]++
	}
}

func (pc *PrefixCorrelation) Merge(o *PrefixCorrelation) {
	for i := range pc.All {
		pc.All[i] += o.All[i]
		pc.Same[i] += o.Same[i]
	}
}

// Probability returns Same/All at 1-based level, 0 when no rule reached it.
func (pc *PrefixCorrelation) Probability(level int) float64 {
	if pc.All[level-1] == 0 {
		return 0
	}
	return float64(pc.Same[level-1]) / float64(pc.All[level-1])
}
