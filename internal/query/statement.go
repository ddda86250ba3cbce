package query

import (
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"pg-graphquery/internal/sqlutil"
)

// CommonTableExpression is a WITH entry shadowing Name.
type CommonTableExpression struct {
	Name      string
	Statement *SelectStatement
}

// JoinExpression attaches Table by comparing its Join columns with the On
// columns of the table aliased as OnAlias. When Statement is set the table is
// replaced by that subselect. Conditions are conjoined with the ON clause.
type JoinExpression struct {
	Type       JoinType
	Table      AliasedTable
	Statement  *SelectStatement
	Join       []Column
	On         []Column
	OnAlias    Alias
	Conditions []Condition
}

func (j JoinExpression) equal(other JoinExpression) bool {
	return j.Type == other.Type &&
		j.Table == other.Table &&
		j.OnAlias == other.OnAlias &&
		j.Statement == other.Statement &&
		slices.Equal(j.Join, other.Join) &&
		slices.Equal(j.On, other.On)
}

func (j JoinExpression) toSQL(schema *SchemaReference) (string, error) {
	var b strings.Builder
	b.WriteString(j.Type.String())
	b.WriteByte(' ')
	if j.Statement != nil {
		sub, _, err := j.Statement.ToSql()
		if err != nil {
			return "", err
		}
		b.WriteByte('(')
		b.WriteString(sub)
		b.WriteString(") AS ")
		b.WriteString(sqlutil.QuoteIdentifier(j.Table.Name()))
	} else {
		b.WriteString(j.Table.From(schema))
	}
	b.WriteString(" ON ")
	for i := range j.Join {
		if i > 0 {
			b.WriteString(" AND ")
		}
		Equal(ColumnExpr(j.Join[i], j.Table.Alias), ColumnExpr(j.On[i], j.OnAlias)).transpile(&b)
	}
	for _, c := range j.Conditions {
		b.WriteString(" AND ")
		c.transpile(&b)
	}
	return b.String(), nil
}

// SelectStatement is a SELECT under construction. It renders through
// squirrel; parameters are already numbered in the expressions, so the
// statement itself carries no arguments.
type SelectStatement struct {
	With     []CommonTableExpression
	Distinct []Expression
	Selects  []SelectExpression
	From     AliasedTable
	Joins    []JoinExpression
	Where    WhereExpression
	OrderBy  []OrderByExpression
	GroupBy  []Expression
	Limit    *uint64
	Schema   *SchemaReference
}

// ToSql renders the statement. It implements sq.Sqlizer.
func (s *SelectStatement) ToSql() (string, []any, error) {
	columns := make([]string, len(s.Selects))
	for i, sel := range s.Selects {
		columns[i] = Transpile(sel)
	}
	if len(columns) == 0 {
		columns = []string{"*"}
	}

	builder := sq.Select(columns...).From(s.From.From(s.Schema))

	if len(s.With) > 0 {
		var with strings.Builder
		with.WriteString("WITH ")
		for i, cte := range s.With {
			if i > 0 {
				with.WriteString(", ")
			}
			sub, _, err := cte.Statement.ToSql()
			if err != nil {
				return "", nil, err
			}
			with.WriteString(sqlutil.QuoteIdentifier(cte.Name))
			with.WriteString(" AS (")
			with.WriteString(sub)
			with.WriteByte(')')
		}
		builder = builder.Prefix(with.String())
	}

	if len(s.Distinct) > 0 {
		builder = builder.Options("DISTINCT ON(" + joinExpressions(s.Distinct) + ")")
	}

	for _, join := range s.Joins {
		clause, err := join.toSQL(s.Schema)
		if err != nil {
			return "", nil, err
		}
		builder = builder.JoinClause(clause)
	}

	if !s.Where.IsEmpty() {
		builder = builder.Where(sq.Expr(s.Where.predicate()))
	}

	if len(s.GroupBy) > 0 {
		groups := make([]string, len(s.GroupBy))
		for i, g := range s.GroupBy {
			groups[i] = Transpile(g)
		}
		builder = builder.GroupBy(groups...)
	}

	if len(s.OrderBy) > 0 {
		orders := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			orders[i] = Transpile(o)
		}
		builder = builder.OrderBy(orders...)
	}

	if s.Limit != nil {
		builder = builder.Limit(*s.Limit)
	}

	query, _, err := builder.ToSql()
	if err != nil {
		return "", nil, err
	}
	return query, nil, nil
}

func joinExpressions(exprs []Expression) string {
	var b strings.Builder
	for i, e := range exprs {
		if i > 0 {
			b.WriteString(", ")
		}
		e.transpile(&b)
	}
	return b.String()
}

// Statement is a compiled query: SQL text with positional parameters and the
// values to bind to them.
type Statement struct {
	SQL  string
	Args []any
}

// ToSql implements sq.Sqlizer.
func (s Statement) ToSql() (string, []any, error) {
	return s.SQL, s.Args, nil
}

var _ sq.Sqlizer = Statement{}
var _ sq.Sqlizer = (*SelectStatement)(nil)
