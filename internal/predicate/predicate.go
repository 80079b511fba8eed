// Package predicate parses and evaluates the small scalar/time predicate
// language edges use to decide whether to carry a given message.
package predicate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ersantana/bobcatsim/internal/simmsg"
)

// Predicate evaluates to true or false for a message at a given simtime.
type Predicate func(msg *simmsg.Message, simTime float64) bool

// AlwaysTrue is the default predicate for an edge with no filter.
func AlwaysTrue(_ *simmsg.Message, _ float64) bool { return true }

// op is one comparison operator.
type op string

const (
	opEq  op = "=="
	opNeq op = "!="
	opLt  op = "<"
	opLte op = "<="
	opGt  op = ">"
	opGte op = ">="
)

// pattern pairs a regex with a builder that turns its match into a
// Predicate. Patterns are tried in order; the first match wins.
type pattern struct {
	re      *regexp.Regexp
	builder func(groups []string) (Predicate, error)
}

var comparePattern = regexp.MustCompile(
	`^\s*([A-Za-z_][A-Za-z0-9_.]*)\s*(==|!=|<=|>=|<|>)\s*(.+?)\s*$`)
var existsPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.]*)\s+EXISTS\s*$`)
var notExistsPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.]*)\s+NOT_EXISTS\s*$`)

var patterns = []pattern{
	{re: existsPattern, builder: buildExists},
	{re: notExistsPattern, builder: buildNotExists},
	{re: comparePattern, builder: buildCompare},
}

// Parse compiles a predicate string into an evaluator. An empty string,
// "~", or "null" means "always true". Unknown syntax is a load-time
// parse error (fatal per spec.md §7), but an unknown *field* referenced
// by an otherwise well-formed predicate evaluates to false at runtime,
// never an error.
func Parse(expr string) (Predicate, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" || trimmed == "~" || trimmed == "null" {
		return AlwaysTrue, nil
	}

	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(trimmed); m != nil {
			return p.builder(m[1:])
		}
	}

	return nil, fmt.Errorf("predicate: no pattern matches %q", expr)
}

func buildExists(groups []string) (Predicate, error) {
	field := groups[0]
	return func(msg *simmsg.Message, _ float64) bool {
		_, ok := msg.Get(field)
		return ok
	}, nil
}

func buildNotExists(groups []string) (Predicate, error) {
	field := groups[0]
	return func(msg *simmsg.Message, _ float64) bool {
		_, ok := msg.Get(field)
		return !ok
	}, nil
}

func buildCompare(groups []string) (Predicate, error) {
	field, operator, rawValue := groups[0], op(groups[1]), groups[2]

	literal, err := parseLiteral(rawValue)
	if err != nil {
		return nil, fmt.Errorf("predicate: bad literal %q: %w", rawValue, err)
	}

	return func(msg *simmsg.Message, simTime float64) bool {
		var actual interface{}
		if field == "SimTime" {
			actual = simTime
		} else {
			v, ok := msg.Get(field)
			if !ok {
				return false
			}
			actual = v
		}
		result, ok := compare(actual, literal, operator)
		return ok && result
	}, nil
}

// literalKind distinguishes the typed literal forms the DSL supports.
type literalKind int

const (
	kindNumber literalKind = iota
	kindString
	kindBool
)

type literal struct {
	kind   literalKind
	number float64
	str    string
	b      bool
}

func parseLiteral(raw string) (literal, error) {
	switch raw {
	case "True":
		return literal{kind: kindBool, b: true}, nil
	case "False":
		return literal{kind: kindBool, b: false}, nil
	}

	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return literal{kind: kindString, str: raw[1 : len(raw)-1]}, nil
	}
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return literal{kind: kindString, str: raw[1 : len(raw)-1]}, nil
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return literal{kind: kindNumber, number: n}, nil
	}

	return literal{}, fmt.Errorf("unrecognized literal %q", raw)
}

func compare(actual interface{}, lit literal, operator op) (bool, bool) {
	switch lit.kind {
	case kindNumber:
		n, ok := simmsg.Float64(actual)
		if !ok {
			return false, false
		}
		return numericCompare(n, lit.number, operator), true
	case kindBool:
		b, ok := actual.(bool)
		if !ok {
			return false, false
		}
		switch operator {
		case opEq:
			return b == lit.b, true
		case opNeq:
			return b != lit.b, true
		default:
			return false, false
		}
	case kindString:
		s, ok := actual.(string)
		if !ok {
			return false, false
		}
		switch operator {
		case opEq:
			return s == lit.str, true
		case opNeq:
			return s != lit.str, true
		case opLt:
			return s < lit.str, true
		case opLte:
			return s <= lit.str, true
		case opGt:
			return s > lit.str, true
		case opGte:
			return s >= lit.str, true
		}
	}
	return false, false
}

func numericCompare(a, b float64, operator op) bool {
	switch operator {
	case opEq:
		return a == b
	case opNeq:
		return a != b
	case opLt:
		return a < b
	case opLte:
		return a <= b
	case opGt:
		return a > b
	case opGte:
		return a >= b
	}
	return false
}
