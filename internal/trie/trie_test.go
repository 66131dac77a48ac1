package trie

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, prefixes ...string) *Trie {
	t.Helper()
	tr := New()
	for _, p := range prefixes {
		require.NoError(t, tr.Insert(p))
	}
	return tr
}

func levels(pairs map[int]int) [Levels]int {
	var out [Levels]int
	for l, v := range pairs {
		out[l] = v
	}
	return out
}

func TestInsertCountsDuplicates(t *testing.T) {
	for _, p := range []string{"1", "0101", strings.Repeat("1", MaxDepth)} {
		tr := build(t, p)
		require.NotNil(t, tr.Lookup(p))
		assert.Equal(t, 1, tr.Lookup(p).PrefixCount())
		assert.Equal(t, len(p), tr.Lookup(p).Level())

		require.NoError(t, tr.Insert(p))
		assert.Equal(t, 2, tr.Lookup(p).PrefixCount())
	}
}

func TestInsertEmptyPrefixCountsAtRoot(t *testing.T) {
	tr := build(t, "", "")
	require.NotNil(t, tr.Root())
	assert.Equal(t, 2, tr.Root().PrefixCount())
	assert.Equal(t, 0, tr.Root().NumChildren())
}

func TestInsertRejectsInvalidPrefixes(t *testing.T) {
	tr := New()
	assert.ErrorIs(t, tr.Insert("0120"), ErrInvalidBit)
	assert.ErrorIs(t, tr.Insert(strings.Repeat("0", MaxDepth+1)), ErrTooDeep)
	assert.Nil(t, tr.Root())
	assert.Equal(t, 0, tr.Count())
}

func TestComputeWeightsMatchesInsertions(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tr := New()
	for i := 0; i < 5000; i++ {
		n := rng.IntN(MaxDepth + 1)
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteByte("01"[rng.IntN(2)])
		}
		require.NoError(t, tr.Insert(sb.String()))
	}
	assert.Equal(t, 5000, tr.ComputeWeights())
	assert.Equal(t, 5000, tr.Count())

	root := tr.Root()
	assert.Equal(t, 5000, root.PrefixCount()+root.ChildWeight(0)+root.ChildWeight(1))
}

func TestPrefixNesting(t *testing.T) {
	assert.Equal(t, 3, PrefixNesting(build(t, "", "0", "01").Root()))
	assert.Equal(t, 1, PrefixNesting(build(t, "0", "1").Root()))
	assert.Equal(t, 2, PrefixNesting(build(t, "1010", "10", "11").Root()))
	assert.Equal(t, 0, PrefixNesting(nil))
}

func TestStatsOnEmptyTrie(t *testing.T) {
	stats := New().Stats()
	assert.Equal(t, &Stats{}, stats)
	assert.Equal(t, 0, stats.Classbench.PrefixNesting)
}

func TestStatsPerLevel(t *testing.T) {
	// 1 -> {10 -> 101 -> 1010, 11}; prefixes at 10, 11 and 1010.
	stats := build(t, "1010", "10", "11").Stats()

	want := NodeStats{
		Leaf:        levels(map[int]int{2: 1, 4: 1}),
		OneChild:    levels(map[int]int{0: 1, 2: 1, 3: 1}),
		TwoChildren: levels(map[int]int{1: 1}),
		Prefix:      levels(map[int]int{2: 2, 4: 1}),
		NonPrefix:   levels(map[int]int{0: 1, 1: 1, 3: 1}),
	}
	if diff := cmp.Diff(want, stats.Nodes); diff != "" {
		t.Fatalf("node stats mismatch (-want +got):\n%s", diff)
	}

	cb := stats.Classbench
	assert.Equal(t, levels(map[int]int{2: 2, 4: 1}), cb.PrefixLengths)
	assert.Equal(t, 1.0, cb.BranchingOneChild[0])
	assert.Equal(t, 0.0, cb.BranchingOneChild[1])
	assert.Equal(t, 1.0, cb.BranchingTwoChildren[1])
	assert.Equal(t, 1.0, cb.BranchingOneChild[2])
	assert.Equal(t, 1.0, cb.BranchingOneChild[3])
	assert.Equal(t, 0.0, cb.BranchingOneChild[4])
	assert.Equal(t, 0.0, cb.BranchingTwoChildren[4])
	assert.InDelta(t, 0.5, cb.Skew[1], 1e-12)
	assert.Equal(t, 2, cb.PrefixNesting)
}

func TestStatsTwoChildNodeBelowRoot(t *testing.T) {
	stats := build(t, "00", "01", "01", "01").Stats()
	cb := stats.Classbench
	assert.Equal(t, 1.0, cb.BranchingOneChild[0])
	assert.Equal(t, 1.0, cb.BranchingTwoChildren[1])
	assert.InDelta(t, 1-1.0/3, cb.Skew[1], 1e-12)
}

func TestSkewIsSymmetric(t *testing.T) {
	left := build(t, "0", "0", "0", "1").Stats()
	right := build(t, "1", "1", "1", "0").Stats()
	assert.InDelta(t, 1-1.0/3, left.Classbench.Skew[0], 1e-12)
	assert.Equal(t, left.Classbench.Skew, right.Classbench.Skew)
}

func TestSkewAveragesTwoChildNodes(t *testing.T) {
	// Level 1 holds a balanced node (skew 0) and a 1:3 node (skew 2/3).
	stats := build(t, "00", "01", "10", "11", "11", "11").Stats()
	assert.Equal(t, 2, stats.Nodes.TwoChildren[1])
	assert.InDelta(t, (0+2.0/3)/2, stats.Classbench.Skew[1], 1e-12)
}

func TestNoTwoChildNodesMeansZeroSkew(t *testing.T) {
	stats := build(t, "0000", "00", "0").Stats()
	assert.Equal(t, [Levels]float64{}, stats.Classbench.Skew)
	assert.Equal(t, [Levels]float64{}, stats.Classbench.BranchingTwoChildren)
}

func TestSkewTableFormat(t *testing.T) {
	table := build(t, "0", "1").Stats().Classbench.SkewTable()
	lines := strings.Split(strings.TrimSuffix(table, "\n"), "\n")
	require.Len(t, lines, Levels)
	assert.Equal(t, "0\t0.00000000\t1.00000000\t0.00000000", lines[0])
	assert.Equal(t, "32\t0.00000000\t0.00000000\t0.00000000", lines[32])
}
