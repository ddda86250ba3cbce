package query

import "strings"

// Condition is a boolean SQL fragment. The set of conditions is closed.
type Condition interface {
	Transpiler
	condition()
}

type allCondition []Condition

// All is the conjunction of conditions; TRUE when empty.
func All(conditions ...Condition) Condition { return allCondition(conditions) }

func (c allCondition) condition() {}

func (c allCondition) transpile(b *strings.Builder) {
	if len(c) == 0 {
		b.WriteString("TRUE")
		return
	}
	for i, cond := range c {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteByte('(')
		cond.transpile(b)
		b.WriteByte(')')
	}
}

type anyCondition []Condition

// Any is the disjunction of conditions; FALSE when empty.
func Any(conditions ...Condition) Condition { return anyCondition(conditions) }

func (c anyCondition) condition() {}

func (c anyCondition) transpile(b *strings.Builder) {
	if len(c) == 0 {
		b.WriteString("FALSE")
		return
	}
	if len(c) > 1 {
		b.WriteByte('(')
	}
	for i, cond := range c {
		if i > 0 {
			b.WriteString(" OR ")
		}
		b.WriteByte('(')
		cond.transpile(b)
		b.WriteByte(')')
	}
	if len(c) > 1 {
		b.WriteByte(')')
	}
}

type notCondition struct{ inner Condition }

// Not negates c.
func Not(c Condition) Condition { return notCondition{inner: c} }

func (c notCondition) condition() {}

func (c notCondition) transpile(b *strings.Builder) {
	b.WriteString("NOT(")
	c.inner.transpile(b)
	b.WriteByte(')')
}

// binary is a comparison. A nil side of an equality renders as NULL and
// turns the comparison into IS [NOT] NULL.
type binary struct {
	lhs, rhs Expression
	op       string
	// suffix is appended after rhs, e.g. a cast.
	suffix string
}

func (c binary) condition() {}

func (c binary) transpile(b *strings.Builder) {
	if c.op == "=" || c.op == "!=" {
		switch {
		case c.lhs == nil && c.rhs == nil:
			if c.op == "=" {
				b.WriteString("NULL IS NULL")
			} else {
				b.WriteString("NULL IS NOT NULL")
			}
			return
		case c.lhs == nil || c.rhs == nil:
			side := c.lhs
			if side == nil {
				side = c.rhs
			}
			side.transpile(b)
			if c.op == "=" {
				b.WriteString(" IS NULL")
			} else {
				b.WriteString(" IS NOT NULL")
			}
			return
		}
	}
	writeOperand(b, c.lhs)
	b.WriteByte(' ')
	b.WriteString(c.op)
	b.WriteByte(' ')
	writeOperand(b, c.rhs)
	b.WriteString(c.suffix)
}

func writeOperand(b *strings.Builder, e Expression) {
	if e == nil {
		b.WriteString("NULL")
		return
	}
	e.transpile(b)
}

func Equal(lhs, rhs Expression) Condition { return binary{lhs: lhs, rhs: rhs, op: "="} }
func NotEqual(lhs, rhs Expression) Condition { return binary{lhs: lhs, rhs: rhs, op: "!="} }
func Less(lhs, rhs Expression) Condition { return binary{lhs: lhs, rhs: rhs, op: "<"} }
func LessOrEqual(lhs, rhs Expression) Condition { return binary{lhs: lhs, rhs: rhs, op: "<="} }
func Greater(lhs, rhs Expression) Condition { return binary{lhs: lhs, rhs: rhs, op: ">"} }
func GreaterOrEqual(lhs, rhs Expression) Condition { return binary{lhs: lhs, rhs: rhs, op: ">="} }

// In matches lhs against any element of the array rhs.
func In(lhs, rhs Expression) Condition {
	return binary{lhs: lhs, rhs: function{prefix: "ANY(", args: []Expression{rhs}, suffix: ")"}, op: "="}
}

// ContainsTimestamp checks that the range lhs contains the instant rhs.
func ContainsTimestamp(lhs, rhs Expression) Condition {
	return binary{lhs: lhs, rhs: rhs, op: "@>", suffix: "::TIMESTAMPTZ"}
}

// Overlap checks that two ranges share at least one instant.
func Overlap(lhs, rhs Expression) Condition { return binary{lhs: lhs, rhs: rhs, op: "&&"} }

type stringCondition struct {
	kind     string
	lhs, rhs Expression
}

func StartsWith(lhs, rhs Expression) Condition { return stringCondition{kind: "startsWith", lhs: lhs, rhs: rhs} }
func EndsWith(lhs, rhs Expression) Condition { return stringCondition{kind: "endsWith", lhs: lhs, rhs: rhs} }

// ContainsSegment checks that rhs occurs somewhere in lhs.
func ContainsSegment(lhs, rhs Expression) Condition {
	return stringCondition{kind: "containsSegment", lhs: lhs, rhs: rhs}
}

func (c stringCondition) condition() {}

func (c stringCondition) transpile(b *strings.Builder) {
	switch c.kind {
	case "startsWith":
		b.WriteString("starts_with(")
		writeOperand(b, c.lhs)
		b.WriteString(", ")
		writeOperand(b, c.rhs)
		b.WriteByte(')')
	case "endsWith":
		b.WriteString("right(")
		writeOperand(b, c.lhs)
		b.WriteString(", length(")
		writeOperand(b, c.rhs)
		b.WriteString(")) = ")
		writeOperand(b, c.rhs)
	default:
		b.WriteString("strpos(")
		writeOperand(b, c.lhs)
		b.WriteString(", ")
		writeOperand(b, c.rhs)
		b.WriteString(") > 0")
	}
}
