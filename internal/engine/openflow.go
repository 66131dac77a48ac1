package engine

import (
	"cmp"
	"slices"
	"strings"

	"classbench-seed-analyzer/internal/model"
)

// RuleShape counts rules matching on one particular set of fields.
type RuleShape struct {
	Attributes []string `yaml:"attributes"`
	Count      int      `yaml:"count"`
}

// OpenFlowStats is the auxiliary block appended to the seed.
type OpenFlowStats struct {
	InPort             map[string]int `yaml:"in_port"`
	EthType            map[string]int `yaml:"eth_type"`
	DlSrc              map[string]int `yaml:"dl_src"`
	DlDst              map[string]int `yaml:"dl_dst"`
	UniqueVlanIDsCount int            `yaml:"unique_vlan_ids_count"`
	EmptyRulesCount    int            `yaml:"empty_rules_count"`
	RuleDistribution   []RuleShape    `yaml:"rule_distribution"`
}

func (a *Analysis) OpenFlowStats() *OpenFlowStats {
	s := &OpenFlowStats{
		InPort:          make(map[string]int),
		EthType:         make(map[string]int),
		DlSrc:           make(map[string]int),
		DlDst:           make(map[string]int),
		EmptyRulesCount: a.Omitted,
	}
	vlans := make(map[string]struct{})
	shapes := make(map[string]int)

	for _, r := range a.Rules {
		if r.InPort != "" {
			s.InPort[r.InPort]++
		}
		if v, ok := r.EtherType(); ok {
			s.EthType[v]++
		}
		if v, ok := r.L2Vendor(model.Src); ok {
			s.DlSrc[v]++
		}
		if v, ok := r.L2Vendor(model.Dst); ok {
			s.DlDst[v]++
		}
		if r.DlVlan != "" {
			vlans[r.DlVlan] = struct{}{}
		}
		fields := r.Present()
		slices.Sort(fields)
		shapes[strings.Join(fields, ",")]++
	}
	s.UniqueVlanIDsCount = len(vlans)

	for key, n := range shapes {
		attrs := []string{}
		if key != "" {
			attrs = strings.Split(key, ",")
		}
		s.RuleDistribution = append(s.RuleDistribution, RuleShape{Attributes: attrs, Count: n})
	}
	slices.SortFunc(s.RuleDistribution, func(x, y RuleShape) int {
		return cmp.Or(
			cmp.Compare(y.Count, x.Count),
			slices.Compare(x.Attributes, y.Attributes),
		)
	})
	return s
}
