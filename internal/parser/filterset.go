package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"classbench-seed-analyzer/internal/model"
	"classbench-seed-analyzer/pkg/wellknown"
)

// DefaultFilterFormat is the plain 5-tuple layout.
const DefaultFilterFormat = "PROTOCOL SRC_IP SRC_PORT DST_IP DST_PORT"

var (
	ErrEmptyFormat    = errors.New("rule format is empty")
	ErrEmptyFilterSet = errors.New("filter set contains no usable rule")
)

// Wildcard spellings accepted for any field. They leave the field absent.
var filterWildcards = map[string]bool{"any": true, "all": true, "*": true, "ip": true, "0": true}

// Format parameters that carry rule content. NUMBER and WILDCARD only consume a token.
var valueParams = map[string]string{
	"PROTOCOL": "nw_proto",
	"SRC_IP":   "nw_src",
	"SRC_PORT": "tp_src",
	"DST_IP":   "nw_dst",
	"DST_PORT": "tp_dst",
}

type tokenKind int

const (
	tokAny tokenKind = iota
	tokProtocol
	tokIPv4
	tokIPv6
	tokPort
	tokNumber
	tokPortRange
	tokKeyword
	tokWord
)

// FormatWord is one parameter or keyword of a rule format. A trailing '?'
// in the format marks it optional.
type FormatWord struct {
	Name     string
	Optional bool
}

// RuleFormat describes the token layout of filter set lines, e.g.
// "@ SRC_IP DST_IP SRC_PORT DST_PORT PROTOCOL NUMBER?".
type RuleFormat struct {
	Words     []FormatWord
	keywords  map[string]bool
	mandatory int
}

// ParseFormat reads a format string. Commas and '=' separate words like spaces.
func ParseFormat(s string) (*RuleFormat, error) {
	f := &RuleFormat{keywords: make(map[string]bool)}
	for _, w := range splitFilterLine(s) {
		word := FormatWord{Name: strings.TrimSuffix(w, "?"), Optional: strings.HasSuffix(w, "?")}
		if word.Name == "" {
			return nil, fmt.Errorf("invalid format word %q", w)
		}
		if !word.Optional {
			f.mandatory++
		}
		if _, ok := valueParams[word.Name]; !ok && word.Name != "NUMBER" && word.Name != "WILDCARD" {
			f.keywords[word.Name] = true
		}
		f.Words = append(f.Words, word)
	}
	if len(f.Words) == 0 {
		return nil, ErrEmptyFormat
	}
	return f, nil
}

// LoadFormatFile reads the format from the first non-blank line of path.
func LoadFormatFile(path string) (*RuleFormat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return ParseFormat(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading format file: %w", err)
	}
	return nil, ErrEmptyFormat
}

// FilterSetParser reads generic filter set files, one rule per line laid out
// according to a RuleFormat.
type FilterSetParser struct {
	scanner *bufio.Scanner
	format  *RuleFormat
	RuleSet
}

func NewFilterSetParser(reader io.Reader, format *RuleFormat) *FilterSetParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &FilterSetParser{scanner: scanner, format: format}
}

// Parse consumes the whole input. A filter set without a single usable rule
// is an error.
func (p *FilterSetParser) Parse() error {
	for p.scanner.Scan() {
		p.ParseLine(p.scanner.Text())
	}
	if err := p.scanner.Err(); err != nil {
		return fmt.Errorf("error reading filter set: %w", err)
	}
	if len(p.Rules) == 0 {
		return ErrEmptyFilterSet
	}
	return nil
}

// ParseLine matches one line against the format. Blank lines are skipped,
// lines that do not fit the format are counted as omitted and lines whose
// values fail validation as invalid.
func (p *FilterSetParser) ParseLine(line string) {
	parts := splitFilterLine(line)
	if len(parts) == 0 {
		return
	}
	attrs, err := p.format.match(parts)
	if err != nil {
		p.Omitted++
		slog.Debug("Ignoring filter rule", "line", line, "reason", err)
		return
	}
	rule, err := model.NewRule(attrs)
	if err != nil {
		p.Invalid++
		slog.Debug("Skipping invalid filter rule", "line", line, "error", err)
		return
	}
	p.Rules = append(p.Rules, rule)
}

// match walks the parts and the format words side by side. An optional word
// that does not fit the current part is skipped; a mandatory one rejects the
// line. Parts left over once the format is exhausted are ignored.
func (f *RuleFormat) match(parts []string) (map[string]string, error) {
	attrs := make(map[string]string)
	pos, mandatory, assigned := 0, 0, 0

	for _, part := range parts {
		if part == "?" {
			return nil, errors.New("'?' can not be a standalone part of a rule")
		}
		for pos < len(f.Words) {
			word := f.Words[pos]
			pos++
			if f.accept(word.Name, part, attrs) {
				if !word.Optional {
					mandatory++
				}
				if _, ok := valueParams[word.Name]; ok {
					assigned++
				}
				break
			}
			if !word.Optional {
				return nil, fmt.Errorf("mandatory part %s was expected instead of %q", word.Name, part)
			}
		}
		if pos == len(f.Words) {
			break
		}
	}

	if mandatory != f.mandatory {
		return nil, errors.New("not all mandatory parts of the rule are present")
	}
	if assigned == 0 {
		return nil, errors.New("rule has no valuable content")
	}
	return attrs, nil
}

// accept reports whether part fits the format word and records its value.
func (f *RuleFormat) accept(name, part string, attrs map[string]string) bool {
	kind := f.kind(part)
	field, isValue := valueParams[name]

	switch {
	case isValue && kind == tokAny:
		return true
	case name == "PROTOCOL":
		switch kind {
		case tokProtocol:
			n, _ := wellknown.LookupProtocol(part)
			attrs[field] = strconv.Itoa(n)
			return true
		case tokPort, tokNumber:
			n, err := strconv.Atoi(part)
			if err != nil {
				return false
			}
			if _, known := wellknown.ProtocolName(n); !known {
				return false
			}
			attrs[field] = part
			return true
		}
		return false
	case name == "SRC_PORT" || name == "DST_PORT":
		if kind == tokPort || kind == tokPortRange {
			attrs[field] = part
			return true
		}
		return false
	case name == "SRC_IP" || name == "DST_IP":
		if kind == tokIPv4 || kind == tokIPv6 {
			attrs[field] = part
			return true
		}
		return false
	case name == "NUMBER":
		return kind == tokNumber || kind == tokPort
	case name == "WILDCARD":
		return kind == tokWord
	}
	return kind == tokKeyword && part == name
}

func (f *RuleFormat) kind(part string) tokenKind {
	lower := strings.ToLower(part)
	if filterWildcards[lower] {
		return tokAny
	}
	if _, ok := wellknown.LookupProtocol(lower); ok {
		return tokProtocol
	}
	if addr, err := netip.ParseAddr(part); err == nil {
		if addr.Is4() {
			return tokIPv4
		}
		return tokIPv6
	}
	if p, err := netip.ParsePrefix(part); err == nil {
		if p.Addr().Is4() {
			return tokIPv4
		}
		return tokIPv6
	}
	if isPort(part) {
		return tokPort
	}
	if isDigits(part) {
		return tokNumber
	}
	if lo, hi, ok := strings.Cut(part, ":"); ok && isPort(lo) && isPort(hi) {
		a, _ := strconv.Atoi(lo)
		b, _ := strconv.Atoi(hi)
		if a < b {
			return tokPortRange
		}
	}
	if f.keywords[part] {
		return tokKeyword
	}
	return tokWord
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isPort(s string) bool {
	if !isDigits(s) {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n < 65536
}

func splitFilterLine(line string) []string {
	line = strings.NewReplacer("=", " ", ",", " ").Replace(line)
	return strings.Fields(line)
}
