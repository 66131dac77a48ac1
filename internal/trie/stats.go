package trie

import (
	"fmt"
	"strings"
)

// Levels is the number of trie levels, 0 through MaxDepth.
const Levels = MaxDepth + 1

// ClassbenchStats holds the per-level trie parameters of a ClassBench seed.
type ClassbenchStats struct {
	PrefixLengths        [Levels]int     // prefixes (not prefix nodes) of each length
	BranchingOneChild    [Levels]float64 // P(one child | non-leaf)
	BranchingTwoChildren [Levels]float64 // P(two children | non-leaf)
	Skew                 [Levels]float64 // mean 1 - lighter/heavier over two-child nodes
	PrefixNesting        int
}

// NodeStats counts node shapes per level.
type NodeStats struct {
	Leaf        [Levels]int
	OneChild    [Levels]int
	TwoChildren [Levels]int
	Prefix      [Levels]int
	NonPrefix   [Levels]int
}

type Stats struct {
	Classbench ClassbenchStats
	Nodes      NodeStats
}

// Stats walks the trie breadth first and aggregates the statistics of each
// level. Weights are recomputed on every call.
func (t *Trie) Stats() *Stats {
	stats := &Stats{}
	if t.root == nil {
		return stats
	}
	t.root.computeWeights()

	level := t.root.level
	queue := []*Node{t.root}
	for len(queue) > 0 {
		node := queue[0]
		queue[0] = nil
		queue = queue[1:]

		for _, child := range node.children {
			if child != nil {
				queue = append(queue, child)
			}
		}

		// BFS order guarantees levels arrive in ascending, gap-free order.
		if node.level != level {
			stats.finishLevel(level)
			level = node.level
		}

		stats.Classbench.PrefixLengths[level] += node.prefixCount
		switch node.NumChildren() {
		case 0:
			stats.Nodes.Leaf[level]++
		case 1:
			stats.Nodes.OneChild[level]++
		case 2:
			stats.Nodes.TwoChildren[level]++
			stats.Classbench.Skew[level] += node.skew()
		}
		if node.prefixCount > 0 {
			stats.Nodes.Prefix[level]++
		} else {
			stats.Nodes.NonPrefix[level]++
		}
	}
	stats.finishLevel(level)

	stats.Classbench.PrefixNesting = PrefixNesting(t.root)
	return stats
}

// finishLevel turns the raw counters of a completed level into probabilities
// and the skew sum into an average.
func (s *Stats) finishLevel(level int) {
	one := s.Nodes.OneChild[level]
	two := s.Nodes.TwoChildren[level]
	if sum := one + two; sum != 0 {
		s.Classbench.BranchingOneChild[level] = float64(one) / float64(sum)
		s.Classbench.BranchingTwoChildren[level] = float64(two) / float64(sum)
	}
	if two != 0 {
		s.Classbench.Skew[level] /= float64(two)
	}
}

// SkewTable renders the -sskew/-dskew body: one row per level with the
// branching probabilities and the average skew.
func (c *ClassbenchStats) SkewTable() string {
	var sb strings.Builder
	for level := 0; level < Levels; level++ {
		fmt.Fprintf(&sb, "%d\t%.8f\t%.8f\t%.8f\n", level,
			c.BranchingOneChild[level], c.BranchingTwoChildren[level], c.Skew[level])
	}
	return sb.String()
}
