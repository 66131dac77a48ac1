package model

import (
	"errors"
	"fmt"
	"math/bits"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"classbench-seed-analyzer/internal/portclass"
	"classbench-seed-analyzer/internal/utils"
	"classbench-seed-analyzer/pkg/wellknown"
)

var (
	ErrInvalidPort     = errors.New("invalid transport port")
	ErrInvalidAddress  = errors.New("invalid network address")
	ErrInvalidProtocol = errors.New("invalid network protocol")
)

// Direction selects the source or destination side of a rule.
type Direction string

const (
	Src Direction = "src"
	Dst Direction = "dst"
)

// Fields lists the recognised OpenFlow match fields in output order.
var Fields = []string{
	"dl_dst", "dl_src", "dl_type", "dl_vlan", "dl_pcp", "eth_type", "in_port",
	"nw_dst", "nw_proto", "nw_src", "nw_tos", "tp_dst", "tp_src",
}

// IsField reports whether name is one of Fields.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Rule is one classified OpenFlow rule. Raw values are kept as given;
// an empty string means the field was absent.
type Rule struct {
	DlDst   string
	DlSrc   string
	DlType  string
	DlVlan  string
	DlPcp   string
	EthType string
	InPort  string
	NwDst   string
	NwProto string
	NwSrc   string
	NwTos   string
	TpDst   string
	TpSrc   string

	protocol int
	srcNet   netip.Prefix
	dstNet   netip.Prefix
	srcPort  *portclass.Range
	dstPort  *portclass.Range
}

// NewRule builds a rule from field=value pairs. Fields outside Fields are ignored.
func NewRule(attrs map[string]string) (*Rule, error) {
	r := &Rule{srcNet: utils.AnyPrefix, dstNet: utils.AnyPrefix}
	for name, value := range attrs {
		if p := r.field(name); p != nil {
			*p = value
		}
	}

	var err error
	if r.NwProto != "" {
		if r.protocol, err = parseProtocol(r.NwProto); err != nil {
			return nil, err
		}
	}
	if r.NwSrc != "" {
		if r.srcNet, err = parseAddress(r.NwSrc); err != nil {
			return nil, err
		}
	}
	if r.NwDst != "" {
		if r.dstNet, err = parseAddress(r.NwDst); err != nil {
			return nil, err
		}
	}
	if r.TpSrc != "" {
		if r.srcPort, err = ParsePort(r.TpSrc); err != nil {
			return nil, err
		}
	}
	if r.TpDst != "" {
		if r.dstPort, err = ParsePort(r.TpDst); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Rule) field(name string) *string {
	switch name {
	case "dl_dst":
		return &r.DlDst
	case "dl_src":
		return &r.DlSrc
	case "dl_type":
		return &r.DlType
	case "dl_vlan":
		return &r.DlVlan
	case "dl_pcp":
		return &r.DlPcp
	case "eth_type":
		return &r.EthType
	case "in_port":
		return &r.InPort
	case "nw_dst":
		return &r.NwDst
	case "nw_proto":
		return &r.NwProto
	case "nw_src":
		return &r.NwSrc
	case "nw_tos":
		return &r.NwTos
	case "tp_dst":
		return &r.TpDst
	case "tp_src":
		return &r.TpSrc
	}
	return nil
}

// Get returns the raw value of a field.
func (r *Rule) Get(name string) (string, bool) {
	p := r.field(name)
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

// Present returns the names of the fields set on the rule, in Fields order.
func (r *Rule) Present() []string {
	var out []string
	for _, name := range Fields {
		if _, ok := r.Get(name); ok {
			out = append(out, name)
		}
	}
	return out
}

// Protocol is the IP protocol number, 0 when nw_proto is absent.
func (r *Rule) Protocol() int { return r.protocol }

func (r *Rule) SrcLength() int { return r.srcNet.Bits() }
func (r *Rule) DstLength() int { return r.dstNet.Bits() }

// Prefix returns the address prefix of one side and whether the field was present.
func (r *Rule) Prefix(d Direction) (netip.Prefix, bool) {
	if d == Src {
		return r.srcNet, r.NwSrc != ""
	}
	return r.dstNet, r.NwDst != ""
}

// PortRange returns the normalised port range of one side; nil means wildcard.
func (r *Rule) PortRange(d Direction) *portclass.Range {
	if d == Src {
		return r.srcPort
	}
	return r.dstPort
}

// PortShape is the port class of one side.
func (r *Rule) PortShape(d Direction) portclass.Shape {
	return portclass.Classify(r.PortRange(d))
}

// PortClassName is the "SRC/DST" port pair class of the rule.
func (r *Rule) PortClassName() string {
	return portclass.ClassName(r.srcPort, r.dstPort)
}

// EtherType reads eth_type, falling back to dl_type.
func (r *Rule) EtherType() (string, bool) {
	if r.EthType != "" {
		return r.EthType, true
	}
	return r.Get("dl_type")
}

// L2Vendor returns the first 8 characters ("aa:bb:cc") of the MAC address on
// one side, as written. Missing or malformed addresses yield ok=false.
func (r *Rule) L2Vendor(d Direction) (string, bool) {
	mac := r.DlDst
	if d == Src {
		mac = r.DlSrc
	}
	if i := strings.IndexByte(mac, '/'); i >= 0 {
		mac = mac[:i]
	}
	if mac == "" {
		return "", false
	}
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 || len(mac) < 8 {
		return "", false
	}
	return mac[:8], true
}

// String renders the rule as "field=value, field=value".
func (r *Rule) String() string {
	parts := make([]string, 0, len(Fields))
	for _, name := range Fields {
		if v, ok := r.Get(name); ok {
			parts = append(parts, name+"="+v)
		}
	}
	return strings.Join(parts, ", ")
}

func parseProtocol(s string) (int, error) {
	if n, err := parseNumber(s, 8); err == nil {
		return int(n), nil
	}
	if n, ok := wellknown.LookupProtocol(s); ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidProtocol, s)
}

func parseAddress(s string) (netip.Prefix, error) {
	p, err := utils.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return p, nil
}

// ParsePort parses a decimal or 0x literal into a single-point range. The
// OpenFlow masked form value/mask is accepted when the mask is a contiguous
// run of leading ones and yields the covered range. An explicit closed range
// first:last is taken as written.
func ParsePort(s string) (*portclass.Range, error) {
	if lo, hi, ok := strings.Cut(s, ":"); ok {
		first, err1 := parseNumber(lo, 16)
		last, err2 := parseNumber(hi, 16)
		if err1 != nil || err2 != nil || first > last {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPort, s)
		}
		return &portclass.Range{First: int(first), Last: int(last)}, nil
	}
	value, mask, masked := strings.Cut(s, "/")
	v, err := parseNumber(value, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	if !masked {
		return &portclass.Range{First: int(v), Last: int(v)}, nil
	}
	m, err := parseNumber(mask, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	m16 := uint16(m)
	ones := bits.LeadingZeros16(^m16)
	if ones < 16 && m16 != ^uint16(0)<<(16-ones) {
		return nil, fmt.Errorf("%w: non-contiguous mask %q", ErrInvalidPort, s)
	}
	first := uint16(v) & m16
	return &portclass.Range{First: int(first), Last: int(first | ^m16)}, nil
}

func parseNumber(s string, bitSize int) (uint64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return strconv.ParseUint(s[2:], 16, bitSize)
	}
	return strconv.ParseUint(s, 10, bitSize)
}
