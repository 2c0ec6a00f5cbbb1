package gemver

import (
	"fmt"
	"strings"
)

// Op is a constraint operator.
type Op string

const (
	OpEqual       Op = "="
	OpNotEqual    Op = "!="
	OpGreater     Op = ">"
	OpLess        Op = "<"
	OpGreaterEq   Op = ">="
	OpLessEq      Op = "<="
	OpPessimistic Op = "~>"
)

// UnknownOpError reports an operator token outside the seven RubyGems
// operators.
type UnknownOpError struct {
	Token string
}

func (e *UnknownOpError) Error() string {
	return fmt.Sprintf("unknown constraint operator %q", e.Token)
}

// Constraint is a single (operator, version) requirement.
type Constraint struct {
	Op      Op
	Version Version
}

// ParseConstraint parses "op version" with optional whitespace between the
// two. A bare version means exact equality.
func ParseConstraint(s string) (Constraint, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Constraint{}, ErrEmpty
	}

	i := 0
	for i < len(trimmed) && strings.ContainsRune("=!<>~", rune(trimmed[i])) {
		i++
	}
	token := trimmed[:i]

	var op Op
	switch token {
	case "":
		op = OpEqual
	case "=", "==":
		op = OpEqual
	case "!=":
		op = OpNotEqual
	case ">":
		op = OpGreater
	case "<":
		op = OpLess
	case ">=":
		op = OpGreaterEq
	case "<=":
		op = OpLessEq
	case "~>":
		op = OpPessimistic
	default:
		return Constraint{}, &UnknownOpError{Token: token}
	}

	version, err := Parse(strings.TrimSpace(trimmed[i:]))
	if err != nil {
		return Constraint{}, fmt.Errorf("constraint %q: %w", s, err)
	}
	return Constraint{Op: op, Version: version}, nil
}

// String renders the constraint in canonical "op version" form.
func (c Constraint) String() string {
	return fmt.Sprintf("%s %s", c.Op, c.Version)
}

// SatisfiedBy reports whether the version meets this constraint.
func (c Constraint) SatisfiedBy(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpGreater:
		return cmp > 0
	case OpLess:
		return cmp < 0
	case OpGreaterEq:
		return cmp >= 0
	case OpLessEq:
		return cmp <= 0
	case OpPessimistic:
		low, high := c.Version.PessimisticRange()
		return v.Compare(low) >= 0 && v.Compare(high) < 0
	}
	return false
}

// PessimisticRange returns the half-open range [low, high) that "~> v"
// denotes: low is v itself and high is v.Bump().
func (v Version) PessimisticRange() (Version, Version) {
	return v, v.Bump()
}

// ConstraintList combines constraints by intersection.
type ConstraintList []Constraint

// ParseConstraintList parses comma-separated constraints, as written in
// lockfile dependency lines ("~> 7.0, >= 7.0.4").
func ParseConstraintList(s string) (ConstraintList, error) {
	var list ConstraintList
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := ParseConstraint(part)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, nil
}

// SatisfiedBy reports whether every constraint admits v. An empty list is
// the universal range.
func (l ConstraintList) SatisfiedBy(v Version) bool {
	for _, c := range l {
		if !c.SatisfiedBy(v) {
			return false
		}
	}
	return true
}

// Intersect appends the other list's constraints. Intersection of
// requirement sets is concatenation, so the operation is associative and
// commutative up to satisfaction.
func (l ConstraintList) Intersect(other ConstraintList) ConstraintList {
	out := make(ConstraintList, 0, len(l)+len(other))
	out = append(out, l...)
	out = append(out, other...)
	return out
}

// AdmitsPrerelease reports whether any constraint names a prerelease
// version; such a list opts the dependency into prerelease candidates.
func (l ConstraintList) AdmitsPrerelease() bool {
	for _, c := range l {
		if c.Version.IsPrerelease() {
			return true
		}
	}
	return false
}

// String renders the list comma-separated.
func (l ConstraintList) String() string {
	parts := make([]string, len(l))
	for i, c := range l {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
