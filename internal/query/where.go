package query

import "strings"

type cursorLevel struct {
	key      Expression
	value    Expression
	ordering Ordering
	nulls    NullOrdering
}

// WhereExpression collects the plain conditions of a statement together with
// the keyset levels of a cursor.
type WhereExpression struct {
	conditions []Condition
	cursor     []cursorLevel
}

// AddCondition conjoins c with the existing conditions.
func (w *WhereExpression) AddCondition(c Condition) {
	w.conditions = append(w.conditions, c)
}

// AddCursor adds the next keyset level. A nil value stands for a cursor that
// stopped on a NULL key.
func (w *WhereExpression) AddCursor(key, value Expression, ordering Ordering, nulls NullOrdering) {
	w.cursor = append(w.cursor, cursorLevel{key: key, value: value, ordering: ordering, nulls: nulls})
}

// Len is the number of plain conditions.
func (w *WhereExpression) Len() int { return len(w.conditions) }

// IsEmpty reports whether nothing would be rendered.
func (w *WhereExpression) IsEmpty() bool {
	return len(w.conditions) == 0 && len(w.cursor) == 0
}

func (w *WhereExpression) transpile(b *strings.Builder) {
	if w.IsEmpty() {
		return
	}
	b.WriteString("WHERE ")
	w.transpilePredicate(b)
}

// predicate renders the text following the WHERE keyword.
func (w *WhereExpression) predicate() string {
	var b strings.Builder
	w.transpilePredicate(&b)
	return b.String()
}

func (w *WhereExpression) transpilePredicate(b *strings.Builder) {
	for i, c := range w.conditions {
		if i > 0 {
			b.WriteString(" AND ")
		}
		c.transpile(b)
	}
	if len(w.cursor) == 0 {
		return
	}
	if len(w.conditions) > 0 {
		b.WriteString(" AND ")
	}
	b.WriteByte('(')
	written := 0
	for i, level := range w.cursor {
		comparison, ok := level.comparison()
		if !ok {
			continue
		}
		if written > 0 {
			b.WriteString(" OR ")
		}
		written++
		b.WriteByte('(')
		for _, prev := range w.cursor[:i] {
			prev.equality().transpile(b)
			b.WriteString(" AND ")
		}
		comparison.transpile(b)
		b.WriteByte(')')
	}
	if written == 0 {
		b.WriteString("FALSE")
	}
	b.WriteByte(')')
}

func (l cursorLevel) equality() Condition {
	if l.value == nil {
		return Equal(l.key, nil)
	}
	return Equal(l.key, l.value)
}

// effectiveNulls resolves the database default: NULLs sort last ascending and
// first descending.
func (l cursorLevel) effectiveNulls() NullOrdering {
	if l.nulls != NullsDefault {
		return l.nulls
	}
	if l.ordering == Descending {
		return NullsFirst
	}
	return NullsLast
}

// comparison returns the condition selecting rows strictly after the cursor
// on this level. It reports false when no such row can exist.
func (l cursorLevel) comparison() (Condition, bool) {
	if l.value == nil {
		if l.effectiveNulls() == NullsFirst {
			return NotEqual(l.key, nil), true
		}
		return nil, false
	}
	var cmp Condition
	if l.ordering == Descending {
		cmp = Less(l.key, l.value)
	} else {
		cmp = Greater(l.key, l.value)
	}
	if l.effectiveNulls() == NullsLast {
		return orNull{cmp: cmp, key: l.key}, true
	}
	return cmp, true
}

// orNull renders (cmp OR key IS NULL).
type orNull struct {
	cmp Condition
	key Expression
}

func (o orNull) condition() {}

func (o orNull) transpile(b *strings.Builder) {
	b.WriteByte('(')
	o.cmp.transpile(b)
	b.WriteString(" OR ")
	Equal(o.key, nil).transpile(b)
	b.WriteByte(')')
}
