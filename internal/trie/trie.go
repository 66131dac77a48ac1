// Package trie implements the binary prefix trie used to derive the
// ClassBench address statistics (branching, skew and prefix nesting).
package trie

import (
	"errors"
	"fmt"
)

// MaxDepth is the deepest level of an IPv4 prefix trie.
const MaxDepth = 32

var (
	ErrInvalidBit = errors.New("prefix must consist of '0' and '1'")
	ErrTooDeep    = errors.New("prefix longer than trie depth")
)

// Node is one trie node. A node exclusively owns its children.
type Node struct {
	level       int
	prefixCount int
	children    [2]*Node
	childWeight [2]int
}

func newNode(level int) *Node {
	return &Node{level: level}
}

func (n *Node) Level() int       { return n.level }
func (n *Node) PrefixCount() int { return n.prefixCount }

// Child returns the subtree for bit b (0 or 1), or nil.
func (n *Node) Child(b int) *Node { return n.children[b] }

// ChildWeight is the number of prefixes below the b-branch as of the last
// ComputeWeights call.
func (n *Node) ChildWeight(b int) int { return n.childWeight[b] }

// NumChildren returns 0, 1 or 2.
func (n *Node) NumChildren() int {
	c := 0
	for _, child := range n.children {
		if child != nil {
			c++
		}
	}
	return c
}

// computeWeights caches the weight of each child and returns the weight of n.
func (n *Node) computeWeights() int {
	weight := n.prefixCount
	for b, child := range n.children {
		if child == nil {
			n.childWeight[b] = 0
			continue
		}
		n.childWeight[b] = child.computeWeights()
		weight += n.childWeight[b]
	}
	return weight
}

// skew is 1 - lighter/heavier for a node with both children.
func (n *Node) skew() float64 {
	zero, one := float64(n.childWeight[0]), float64(n.childWeight[1])
	if zero > one {
		return 1 - one/zero
	}
	return 1 - zero/one
}

// Trie is a binary prefix tree built by repeated insertion.
type Trie struct {
	root  *Node
	count int
}

func New() *Trie {
	return &Trie{}
}

// Root returns nil for an empty trie.
func (t *Trie) Root() *Node { return t.root }

// Count is the number of insertions performed.
func (t *Trie) Count() int { return t.count }

// Insert adds one occurrence of the prefix given as a '0'/'1' string.
// The empty string is the zero-length prefix stored at the root.
func (t *Trie) Insert(prefix string) error {
	if len(prefix) > MaxDepth {
		return fmt.Errorf("%w: %d bits", ErrTooDeep, len(prefix))
	}
	for i := 0; i < len(prefix); i++ {
		if prefix[i] != '0' && prefix[i] != '1' {
			return fmt.Errorf("%w: %q", ErrInvalidBit, prefix)
		}
	}

	if t.root == nil {
		t.root = newNode(0)
	}
	current := t.root
	for i := 0; i < len(prefix); i++ {
		b := int(prefix[i] - '0')
		next := current.children[b]
		if next == nil {
			next = newNode(current.level + 1)
			current.children[b] = next
		}
		current = next
	}
	current.prefixCount++
	t.count++
	return nil
}

// Lookup returns the node reached by following prefix, or nil.
func (t *Trie) Lookup(prefix string) *Node {
	current := t.root
	for i := 0; i < len(prefix) && current != nil; i++ {
		if prefix[i] != '0' && prefix[i] != '1' {
			return nil
		}
		current = current.children[prefix[i]-'0']
	}
	return current
}

// ComputeWeights refreshes the cached child weights and returns the total
// number of prefixes in the trie.
func (t *Trie) ComputeWeights() int {
	if t.root == nil {
		return 0
	}
	return t.root.computeWeights()
}

// PrefixNesting is the largest number of prefix nodes on a downward path
// starting at n. A nil node has nesting 0.
func PrefixNesting(n *Node) int {
	if n == nil {
		return 0
	}
	nesting := max(PrefixNesting(n.children[0]), PrefixNesting(n.children[1]))
	if n.prefixCount > 0 {
		nesting++
	}
	return nesting
}
