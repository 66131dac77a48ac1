package parser

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"classbench-seed-analyzer/internal/model"
)

// attributePattern matches field=value tokens in ovs-ofctl style flow dumps.
var attributePattern = regexp.MustCompile(`([a-z_\-]+)=([A-Za-z0-9\-_:\./]+)(,|\w)?`)

const maxLineSize = 1024 * 1024

// RuleSet is what a rule parser hands to the analysis.
type RuleSet struct {
	Rules   []*model.Rule
	Omitted int // lines without any recognised field
	Invalid int // lines whose recognised fields failed to parse
}

type OpenFlowParser struct {
	scanner *bufio.Scanner
	RuleSet
}

// NewOpenFlowParser reads from reader on Parse. A nil reader gives a parser
// fed only through ParseLine.
func NewOpenFlowParser(reader io.Reader) *OpenFlowParser {
	if reader == nil {
		return &OpenFlowParser{}
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &OpenFlowParser{scanner: scanner}
}

func (p *OpenFlowParser) Parse() error {
	if p.scanner == nil {
		return nil
	}
	for p.scanner.Scan() {
		p.ParseLine(p.scanner.Text())
	}
	if err := p.scanner.Err(); err != nil {
		return fmt.Errorf("error reading rules: %w", err)
	}
	return nil
}

// ParseLine classifies one rule line and records it. It never fails:
// unusable lines are counted instead.
func (p *OpenFlowParser) ParseLine(line string) {
	attrs := ExtractAttributes(line)
	if len(attrs) == 0 {
		p.Omitted++
		slog.Debug("Omitting line without recognised fields", "line", line)
		return
	}
	rule, err := model.NewRule(attrs)
	if err != nil {
		p.Invalid++
		slog.Debug("Skipping invalid rule", "line", line, "error", err)
		return
	}
	p.Rules = append(p.Rules, rule)
}

// ExtractAttributes returns the recognised field=value pairs of a line.
// A field repeated on one line keeps its last value.
func ExtractAttributes(line string) map[string]string {
	var attrs map[string]string
	for _, m := range attributePattern.FindAllStringSubmatch(strings.TrimSpace(line), -1) {
		if !model.IsField(m[1]) {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[m[1]] = m[2]
	}
	return attrs
}
