package engine

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"classbench-seed-analyzer/internal/model"
	"classbench-seed-analyzer/internal/portclass"
	"classbench-seed-analyzer/internal/trie"
)

const sectionEnd = "#\n"

// GenerateSeed renders the ClassBench seed for a.
func GenerateSeed(a *Analysis) (string, error) {
	var sb strings.Builder
	if err := WriteSeed(&sb, a); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteSeed writes the seed sections in the order expected by the ClassBench
// rule generator. Every section ends with a "#" line.
func WriteSeed(w io.Writer, a *Analysis) error {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "-scale\n%d\n%s", len(a.Rules), sectionEnd)
	writeProtocols(&buf, a)
	writeFlags(&buf, a)
	fmt.Fprintf(&buf, "-extra\n0\n%s", sectionEnd)

	writeRanges(&buf, a, model.Src, portclass.AR)
	writeRanges(&buf, a, model.Src, portclass.EM)
	writeRanges(&buf, a, model.Dst, portclass.AR)
	writeRanges(&buf, a, model.Dst, portclass.EM)

	for _, class := range portclass.ClassNames {
		writePrefixLengths(&buf, a, class)
	}

	writeTrie(&buf, "s", a.SrcTrie)
	writeTrie(&buf, "d", a.DstTrie)
	writeCorrelation(&buf, a)

	if err := writeOpenFlow(&buf, a); err != nil {
		return err
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// writeProtocols emits one row per protocol: its share of all rules followed
// by the share of each port class within the protocol, in ClassNames order.
func writeProtocols(buf *bytes.Buffer, a *Analysis) {
	buf.WriteString("-prots\n")
	for _, proto := range a.Protocols() {
		byClass := a.Counters.ProtocolPortClass[proto]
		protoRules := 0
		for _, n := range byClass {
			protoRules += n
		}
		fmt.Fprintf(buf, "%d\t%.8f", proto, float64(protoRules)/float64(len(a.Rules)))
		for _, class := range portclass.ClassNames {
			fmt.Fprintf(buf, "\t%.8f", float64(byClass[class])/float64(protoRules))
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(sectionEnd)
}

func writeFlags(buf *bytes.Buffer, a *Analysis) {
	buf.WriteString("-flags\n")
	for _, proto := range a.Protocols() {
		fmt.Fprintf(buf, "%d\t0x0000/0x0000,1.00000000\t\n", proto)
	}
	buf.WriteString(sectionEnd)
}

func writeRanges(buf *bytes.Buffer, a *Analysis, d model.Direction, shape portclass.Shape) {
	fmt.Fprintf(buf, "-%sp%s\n", d[:1], strings.ToLower(string(shape)))
	for _, row := range a.RangeProbabilities(d, shape) {
		fmt.Fprintf(buf, "%.8f\t%s\n", row.Probability, row.Range)
	}
	buf.WriteString(sectionEnd)
}

// writePrefixLengths emits, per total prefix length, its share among the
// rules of the class followed by the share of each source prefix length.
func writePrefixLengths(buf *bytes.Buffer, a *Analysis, class string) {
	buf.WriteString(portclass.SectionName(class))
	buf.WriteByte('\n')

	byTotal := a.Counters.PrefixLengths[class]
	classRules := a.Counters.RulesInClass(class)
	totals := make([]int, 0, len(byTotal))
	for total := range byTotal {
		totals = append(totals, total)
	}
	slices.Sort(totals)

	for _, total := range totals {
		bySrc := byTotal[total]
		totalRules := 0
		srcLengths := make([]int, 0, len(bySrc))
		for length, n := range bySrc {
			totalRules += n
			srcLengths = append(srcLengths, length)
		}
		slices.Sort(srcLengths)

		fmt.Fprintf(buf, "%d,%.8f", total, float64(totalRules)/float64(classRules))
		for _, length := range srcLengths {
			fmt.Fprintf(buf, "\t%d,%.8f", length, float64(bySrc[length])/float64(totalRules))
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(sectionEnd)
}

func writeTrie(buf *bytes.Buffer, side string, t *trie.Trie) {
	stats := t.Stats()
	fmt.Fprintf(buf, "-%snest\n%d\n%s", side, stats.Classbench.PrefixNesting, sectionEnd)
	fmt.Fprintf(buf, "-%sskew\n%s%s", side, stats.Classbench.SkewTable(), sectionEnd)
}

func writeCorrelation(buf *bytes.Buffer, a *Analysis) {
	buf.WriteString("-pcorr\n")
	for level := 1; level <= 32; level++ {
		p := 0.0
		if a.Options.PrefixCorrelation {
			p = a.Counters.Correlation.Probability(level)
		}
		fmt.Fprintf(buf, "%d\t%.8f\n", level, p)
	}
	buf.WriteString(sectionEnd)
}

func writeOpenFlow(buf *bytes.Buffer, a *Analysis) error {
	buf.WriteString("-openflow\n---\n")
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(a.OpenFlowStats()); err != nil {
		return fmt.Errorf("failed to encode openflow stats: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode openflow stats: %w", err)
	}
	buf.WriteString(sectionEnd)
	return nil
}
