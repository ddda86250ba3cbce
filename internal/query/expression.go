package query

import (
	"strconv"
	"strings"

	"pg-graphquery/internal/sqlutil"
)

// Transpiler is a fragment of SQL.
type Transpiler interface {
	transpile(b *strings.Builder)
}

// Transpile renders t.
func Transpile(t Transpiler) string {
	var b strings.Builder
	t.transpile(&b)
	return b.String()
}

// Expression is a value-producing SQL fragment. The set of expressions is
// closed; construct them with the functions in this file.
type Expression interface {
	Transpiler
	expression()
}

type columnRef struct {
	column Column
	alias  Alias
	key    string
	path   int
}

// ColumnExpr references column on the table joined under alias.
func ColumnExpr(column Column, alias Alias) Expression {
	return columnRef{column: column, alias: alias}
}

// JSONKeyExpr extracts key from a JSON column as text.
func JSONKeyExpr(column Column, alias Alias, key string) Expression {
	return columnRef{column: column, alias: alias, key: key}
}

// JSONPathExpr evaluates the JSON path bound to parameter on column.
func JSONPathExpr(column Column, alias Alias, parameter int) Expression {
	return columnRef{column: column, alias: alias, path: parameter}
}

func (c columnRef) expression() {}

func (c columnRef) transpile(b *strings.Builder) {
	ref := sqlutil.QuoteIdentifier(c.column.Table.Aliased(c.alias).Name()) + "." + sqlutil.QuoteIdentifier(c.column.Name)
	switch {
	case c.path > 0:
		JSONPathQueryFirst(rawExpr(ref), Cast(Cast(Placeholder(c.path), "text"), "jsonpath")).transpile(b)
	case c.key != "":
		b.WriteString(ref)
		b.WriteString("->>")
		b.WriteString(sqlutil.QuoteString(c.key))
	default:
		b.WriteString(ref)
	}
}

type rawExpr string

func (r rawExpr) expression() {}
func (r rawExpr) transpile(b *strings.Builder) { b.WriteString(string(r)) }

// Asterisk selects every column.
var Asterisk Expression = rawExpr("*")

// Placeholder references the n-th bound parameter, counting from one.
type Placeholder int

func (p Placeholder) expression() {}

func (p Placeholder) transpile(b *strings.Builder) {
	b.WriteByte('$')
	b.WriteString(strconv.Itoa(int(p)))
}

type constant struct{ value any }

// Constant renders a literal: booleans, strings, integers or nil for NULL.
func Constant(value any) Expression { return constant{value: value} }

func (c constant) expression() {}

func (c constant) transpile(b *strings.Builder) {
	switch v := c.value.(type) {
	case nil:
		b.WriteString("NULL")
	case bool:
		if v {
			b.WriteString("TRUE")
		} else {
			b.WriteString("FALSE")
		}
	case string:
		b.WriteString(sqlutil.QuoteString(v))
	case int:
		b.WriteString(strconv.Itoa(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	default:
		b.WriteString("NULL")
	}
}

type function struct {
	prefix string
	args   []Expression
	sep    string
	suffix string
}

func (f function) expression() {}

func (f function) transpile(b *strings.Builder) {
	b.WriteString(f.prefix)
	for i, arg := range f.args {
		if i > 0 {
			b.WriteString(f.sep)
		}
		arg.transpile(b)
	}
	b.WriteString(f.suffix)
}

func Min(e Expression) Expression { return function{prefix: "MIN(", args: []Expression{e}, suffix: ")"} }
func Max(e Expression) Expression { return function{prefix: "MAX(", args: []Expression{e}, suffix: ")"} }
func Lower(e Expression) Expression { return function{prefix: "lower(", args: []Expression{e}, suffix: ")"} }
func Upper(e Expression) Expression { return function{prefix: "upper(", args: []Expression{e}, suffix: ")"} }

// JSONExtractText unwraps a JSON scalar into text.
func JSONExtractText(e Expression) Expression {
	return function{prefix: "((", args: []Expression{e}, suffix: ") #>> '{}'::text[])"}
}

// JSONExtractAsText extracts key of a JSON object as text.
func JSONExtractAsText(e Expression, key string) Expression {
	return function{args: []Expression{e}, suffix: "->>" + sqlutil.QuoteString(key)}
}

// JSONPathQueryFirst returns the first value of target matching path.
func JSONPathQueryFirst(target, path Expression) Expression {
	return function{prefix: "jsonb_path_query_first(", args: []Expression{target, path}, sep: ", ", suffix: ")"}
}

// Cast renders (e::typ).
func Cast(e Expression, typ string) Expression {
	return function{prefix: "(", args: []Expression{e}, suffix: "::" + typ + ")"}
}

// CosineDistance is the pgvector cosine distance operator.
func CosineDistance(lhs, rhs Expression) Expression {
	return function{args: []Expression{lhs, rhs}, sep: " <=> "}
}

// Window evaluates e over partitions of partitionBy.
func Window(e Expression, partitionBy Expression) Expression {
	return function{args: []Expression{e, partitionBy}, sep: " OVER (PARTITION BY ", suffix: ")"}
}

// SelectExpression is an entry of a SELECT list with an optional alias.
type SelectExpression struct {
	Expression Expression
	Alias      string
}

func (s SelectExpression) transpile(b *strings.Builder) {
	s.Expression.transpile(b)
	if s.Alias != "" {
		b.WriteString(" AS ")
		b.WriteString(sqlutil.QuoteIdentifier(s.Alias))
	}
}

// Ordering is the direction of an ORDER BY entry.
type Ordering string

const (
	Ascending  Ordering = "ascending"
	Descending Ordering = "descending"
)

// NullOrdering places NULLs explicitly. The zero value uses the database
// default (NULLs sort as larger than every value).
type NullOrdering string

const (
	NullsDefault NullOrdering = ""
	NullsFirst   NullOrdering = "first"
	NullsLast    NullOrdering = "last"
)

// OrderByExpression is one entry of an ORDER BY clause.
type OrderByExpression struct {
	Expression Expression
	Ordering   Ordering
	Nulls      NullOrdering
}

func (o OrderByExpression) transpile(b *strings.Builder) {
	o.Expression.transpile(b)
	if o.Ordering == Descending {
		b.WriteString(" DESC")
	} else {
		b.WriteString(" ASC")
	}
	switch o.Nulls {
	case NullsFirst:
		b.WriteString(" NULLS FIRST")
	case NullsLast:
		b.WriteString(" NULLS LAST")
	}
}
