package portclass

import (
	"errors"
	"fmt"
	"strings"
)

// Shape is the class of a single transport port range.
type Shape string

const (
	WC Shape = "WC" // wildcard, 0:65535
	HI Shape = "HI" // 1024:65535
	LO Shape = "LO" // 0:1023
	EM Shape = "EM" // exact match
	AR Shape = "AR" // arbitrary range
)

const (
	MinPort = 0
	MaxPort = 65535
)

var ErrUnknownClass = errors.New("unknown port class")

// ClassNames is the port pair class order used by ClassBench seed files.
// Seed sections address classes by position, so the order must not change.
var ClassNames = [25]string{
	"WC/WC", "WC/HI", "HI/WC", "HI/HI", "WC/LO",
	"LO/WC", "HI/LO", "LO/HI", "LO/LO", "WC/AR",
	"AR/WC", "HI/AR", "AR/HI", "WC/EM", "EM/WC",
	"HI/EM", "EM/HI", "LO/AR", "AR/LO", "LO/EM",
	"EM/LO", "AR/AR", "AR/EM", "EM/AR", "EM/EM",
}

var classIndex = func() map[string]int {
	m := make(map[string]int, len(ClassNames))
	for i, name := range ClassNames {
		m[name] = i
	}
	return m
}()

// Range is a closed port interval.
type Range struct {
	First int
	Last  int
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d", r.First, r.Last)
}

// Classify returns the shape of r. A nil range is a wildcard.
// Checks run in order, so 0:0 is EM and not LO.
func Classify(r *Range) Shape {
	if r == nil {
		return WC
	}
	switch {
	case r.First == r.Last:
		return EM
	case r.First == 0 && r.Last == 1023:
		return LO
	case r.First == 1024 && r.Last == MaxPort:
		return HI
	case r.First == MinPort && r.Last == MaxPort:
		return WC
	}
	return AR
}

// ClassName joins the source and destination shapes as "SRC/DST".
func ClassName(src, dst *Range) string {
	return string(Classify(src)) + "/" + string(Classify(dst))
}

// NameToIndex returns the position of name in ClassNames. Names are
// matched exactly, "wc/wc" is not a class.
func NameToIndex(name string) (int, error) {
	if i, ok := classIndex[name]; ok {
		return i, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownClass, name)
}

// SectionName is the seed header for a class, e.g. "WC/EM" -> "-wc_em".
func SectionName(name string) string {
	return "-" + strings.ReplaceAll(strings.ToLower(name), "/", "_")
}
