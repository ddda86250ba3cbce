package query

import (
	"fmt"
	"slices"

	"pg-graphquery/internal/temporal"
)

// Distinctness marks a selection as part of DISTINCT ON.
type Distinctness bool

const (
	Indistinct Distinctness = false
	Distinct   Distinctness = true
)

// Order is the ordering of a selection.
type Order struct {
	Ordering Ordering
	Nulls    NullOrdering
}

type pathSelection struct {
	expression Expression
	index      int
	distinct   Distinctness
	order      *Order
}

// CompilerOption configures a SelectCompiler.
type CompilerOption func(*SelectCompiler)

// WithAsterisk selects every column of every joined table.
func WithAsterisk() CompilerOption {
	return func(c *SelectCompiler) {
		c.statement.Selects = append(c.statement.Selects, SelectExpression{Expression: Asterisk})
	}
}

// WithSchema qualifies every table with schema.
func WithSchema(schema SchemaReference) CompilerOption {
	return func(c *SelectCompiler) {
		c.statement.Schema = &schema
	}
}

// SelectCompiler builds one SELECT statement for records stored in base.
// It is not safe for concurrent use; every request builds its own.
type SelectCompiler struct {
	base          Table
	statement     SelectStatement
	args          []any
	axes          *temporal.Axes
	includeDrafts bool

	conditionIndex int
	pinnedIndex    int
	variableIndex  int
	hooked         map[AliasedTable]struct{}
	selections     map[string]*pathSelection
	usesCursor     bool
	latestCTE      bool
}

// NewSelectCompiler returns a compiler for records stored in base. When axes
// is nil no temporal restriction is applied. Drafts are filtered out unless
// includeDrafts is set.
func NewSelectCompiler(base Table, axes *temporal.Axes, includeDrafts bool, opts ...CompilerOption) *SelectCompiler {
	c := &SelectCompiler{
		base:          base,
		axes:          axes,
		includeDrafts: includeDrafts,
		hooked:        map[AliasedTable]struct{}{},
		selections:    map[string]*pathSelection{},
	}
	c.statement.From = base.Aliased(Alias{})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLimit limits the number of rows returned.
func (c *SelectCompiler) SetLimit(limit uint64) {
	c.statement.Limit = &limit
}

// Compile renders the statement and returns it together with its arguments.
func (c *SelectCompiler) Compile() (Statement, error) {
	sql, _, err := c.statement.ToSql()
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Args: slices.Clone(c.args)}, nil
}

// AddParameter binds arg and returns the placeholder referencing it.
func (c *SelectCompiler) AddParameter(arg any) Expression {
	c.args = append(c.args, arg)
	return Placeholder(len(c.args))
}

// CompileParameter binds p.
func (c *SelectCompiler) CompileParameter(p *Parameter) (Expression, ParameterType) {
	return c.AddParameter(p.Arg()), p.Type
}

func (c *SelectCompiler) timeIndex(axis temporal.Axis) int {
	if axis == c.axes.PinnedAxis() {
		if c.pinnedIndex == 0 {
			c.args = append(c.args, c.axes.Pinned.Timestamp)
			c.pinnedIndex = len(c.args)
		}
		return c.pinnedIndex
	}
	if c.variableIndex == 0 {
		c.args = append(c.args, c.axes.Variable.Interval)
		c.variableIndex = len(c.args)
	}
	return c.variableIndex
}

func temporalColumn(axis temporal.Axis) Column {
	if axis == temporal.DecisionTime {
		return EntityTemporalDecisionTime
	}
	return EntityTemporalTransactionTime
}

// applyHook restricts the temporal metadata tables the first time an alias
// of them is used. The base table is restricted in WHERE, a joined table in
// the ON clause of its join.
func (c *SelectCompiler) applyHook(table AliasedTable) {
	if _, done := c.hooked[table]; done {
		return
	}

	var conditions []Condition
	switch table.Table {
	case OntologyTemporalMetadata:
		if c.axes == nil {
			return
		}
		index := c.timeIndex(temporal.TransactionTime)
		column := ColumnExpr(OntologyTemporalTransactionTime, table.Alias)
		if c.axes.PinnedAxis() == temporal.TransactionTime {
			conditions = append(conditions, ContainsTimestamp(column, Placeholder(index)))
		} else {
			conditions = append(conditions, Overlap(column, Placeholder(index)))
		}

	case EntityTemporalMetadata:
		if !c.includeDrafts {
			conditions = append(conditions, Equal(ColumnExpr(EntityTemporalDraftID, table.Alias), nil))
		}
		if c.axes != nil {
			pinned := c.timeIndex(c.axes.PinnedAxis())
			variable := c.timeIndex(c.axes.VariableAxis())
			conditions = append(conditions,
				ContainsTimestamp(ColumnExpr(temporalColumn(c.axes.PinnedAxis()), table.Alias), Placeholder(pinned)),
				Overlap(ColumnExpr(temporalColumn(c.axes.VariableAxis()), table.Alias), Placeholder(variable)),
			)
		}

	default:
		return
	}
	c.hooked[table] = struct{}{}

	if table == c.base.Aliased(Alias{}) {
		for _, condition := range conditions {
			c.statement.Where.AddCondition(condition)
		}
		return
	}
	for i := range c.statement.Joins {
		if c.statement.Joins[i].Table == table {
			c.statement.Joins[i].Conditions = append(c.statement.Joins[i].Conditions, conditions...)
			return
		}
	}
}

// addJoinStatements joins every table needed to reach path and returns the
// alias of the last one. Joins equal to an existing one are reused; a
// different join of an already joined table gets the next free number.
func (c *SelectCompiler) addJoinStatements(path Path) (Alias, error) {
	relations, err := path.Relations()
	if err != nil {
		return Alias{}, err
	}

	current := c.base.Aliased(Alias{})
	c.applyHook(current)

	// Once a chain has joined outer, every later join of the chain is outer
	// as well. An inner join further down would drop the unmatched rows.
	outer := false
	for _, relation := range relations {
		joins := relation.Joins()
		if len(joins) == 0 {
			return Alias{}, fmt.Errorf("%w: %s cannot be joined", ErrInvalidPath, relation)
		}
		for _, fk := range joins {
			joinType := fk.Type
			if outer {
				joinType = LeftOuterJoin
			} else if joinType != InnerJoin {
				outer = true
			}
			join := JoinExpression{
				Type: joinType,
				Table: fk.Table().Aliased(Alias{
					ConditionIndex: c.conditionIndex,
					ChainDepth:     current.Alias.ChainDepth + 1,
				}),
				Join:    fk.Join,
				On:      fk.On,
				OnAlias: current.Alias,
			}

			found := false
			for _, existing := range c.statement.Joins {
				if existing.Table != join.Table {
					continue
				}
				if existing.equal(join) {
					current = existing.Table
					found = true
					break
				}
				join.Table.Alias.Number++
			}
			if found {
				continue
			}

			current = join.Table
			join.Conditions = relation.AdditionalConditions(current)
			c.statement.Joins = append(c.statement.Joins, join)
			c.applyHook(current)
		}
	}
	return current.Alias, nil
}

// CompilePathColumn joins the tables path needs and returns the expression
// reading its value.
func (c *SelectCompiler) CompilePathColumn(path Path) (Expression, error) {
	column, field := path.TerminatingColumn()

	var jsonPath int
	if field.isPath() {
		c.AddParameter(field.Path.String())
		jsonPath = len(c.args)
	}

	alias, err := c.addJoinStatements(path)
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", path, err)
	}
	c.applyHook(column.Table.Aliased(alias))

	switch {
	case jsonPath > 0:
		return JSONPathExpr(column, alias, jsonPath), nil
	case field != nil:
		return JSONKeyExpr(column, alias, field.Key), nil
	default:
		return ColumnExpr(column, alias), nil
	}
}

// AddSelectionPath selects path without ordering it.
func (c *SelectCompiler) AddSelectionPath(path Path) (int, error) {
	return c.AddDistinctSelectionWithOrdering(path, Indistinct, nil)
}

// AddDistinctSelectionWithOrdering selects path and returns its position in
// the select list. Selecting the same path twice returns the first position,
// upgrading it to distinct or adding the ordering if it lacked them.
func (c *SelectCompiler) AddDistinctSelectionWithOrdering(path Path, distinctness Distinctness, order *Order) (int, error) {
	if stored, ok := c.selections[path.String()]; ok {
		if distinctness == Distinct && stored.distinct == Indistinct {
			c.statement.Distinct = append(c.statement.Distinct, stored.expression)
			stored.distinct = Distinct
		}
		if stored.order == nil && order != nil {
			c.addOrderBy(stored.expression, *order)
			stored.order = order
		}
		return stored.index, nil
	}

	expression, err := c.CompilePathColumn(path)
	if err != nil {
		return 0, err
	}
	c.statement.Selects = append(c.statement.Selects, SelectExpression{Expression: expression})
	if distinctness == Distinct {
		c.statement.Distinct = append(c.statement.Distinct, expression)
	}
	if order != nil {
		c.addOrderBy(expression, *order)
	}

	index := len(c.statement.Selects) - 1
	c.selections[path.String()] = &pathSelection{
		expression: expression,
		index:      index,
		distinct:   distinctness,
		order:      order,
	}
	return index, nil
}

func (c *SelectCompiler) addOrderBy(e Expression, order Order) {
	c.statement.OrderBy = append(c.statement.OrderBy, OrderByExpression{
		Expression: e,
		Ordering:   order.Ordering,
		Nulls:      order.Nulls,
	})
}

// AddCursorSelection selects path as a distinct, ordered sort key and adds
// the keyset level continuing after value. project is applied to the column
// before comparing, e.g. to compare the lower bound of an interval; nil
// compares the column itself. A nil value stands for a NULL key.
func (c *SelectCompiler) AddCursorSelection(path Path, project func(Expression) Expression, value Expression, ordering Ordering, nulls NullOrdering) (int, error) {
	column, err := c.CompilePathColumn(path)
	if err != nil {
		return 0, err
	}
	if project != nil {
		column = project(column)
	}
	c.statement.Where.AddCursor(column, value, ordering, nulls)
	c.usesCursor = true
	return c.AddDistinctSelectionWithOrdering(path, Distinct, &Order{Ordering: ordering, Nulls: nulls})
}

// AddFilter compiles f and conjoins it with the statement's conditions.
// Every filter gets its own join chain.
func (c *SelectCompiler) AddFilter(f Filter) error {
	condition, err := c.CompileFilter(f)
	if err != nil {
		return err
	}
	c.conditionIndex++
	c.statement.Where.AddCondition(condition)
	return nil
}

// CompileFilter compiles f into a condition, joining tables and binding
// parameters as needed.
func (c *SelectCompiler) CompileFilter(f Filter) (Condition, error) {
	if condition, ok, err := c.compileLatestFilter(f); ok || err != nil {
		return condition, err
	}

	switch f.Kind {
	case FilterAll, FilterAny:
		conditions := make([]Condition, 0, len(f.Children))
		for _, child := range f.Children {
			condition, err := c.CompileFilter(child)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, condition)
		}
		if f.Kind == FilterAll {
			return All(conditions...), nil
		}
		return Any(conditions...), nil

	case FilterNot:
		if len(f.Children) != 1 {
			return nil, fmt.Errorf("%w: not expects exactly one filter", ErrUnsupportedFilter)
		}
		condition, err := c.CompileFilter(f.Children[0])
		if err != nil {
			return nil, err
		}
		return Not(condition), nil

	case FilterCosineDistance:
		return c.compileCosineDistance(f)

	case FilterIn:
		if len(f.Operands) != 2 || f.Operands[1] == nil || f.Operands[1].Parameter == nil {
			return nil, fmt.Errorf("%w: in expects an operand and a parameter list", ErrUnsupportedFilter)
		}
		lhs, _, err := c.compileOperand(f.Operands[0])
		if err != nil {
			return nil, err
		}
		if lhs == nil {
			return nil, fmt.Errorf("%w: in does not accept null operands", ErrUnsupportedFilter)
		}
		rhs, _ := c.CompileParameter(f.Operands[1].Parameter)
		return In(lhs, rhs), nil
	}

	if len(f.Operands) != 2 {
		return nil, fmt.Errorf("%w: %s expects 2 operands, got %d", ErrUnsupportedFilter, f.Kind, len(f.Operands))
	}
	lhs, lhsType, err := c.compileOperand(f.Operands[0])
	if err != nil {
		return nil, err
	}
	rhs, rhsType, err := c.compileOperand(f.Operands[1])
	if err != nil {
		return nil, err
	}

	switch f.Kind {
	case FilterEqual:
		return Equal(lhs, rhs), nil
	case FilterNotEqual:
		return NotEqual(lhs, rhs), nil
	}

	if lhs == nil || rhs == nil {
		return nil, fmt.Errorf("%w: %s does not accept null operands", ErrUnsupportedFilter, f.Kind)
	}
	switch f.Kind {
	case FilterGreater:
		return Greater(lhs, rhs), nil
	case FilterGreaterOrEqual:
		return GreaterOrEqual(lhs, rhs), nil
	case FilterLess:
		return Less(lhs, rhs), nil
	case FilterLessOrEqual:
		return LessOrEqual(lhs, rhs), nil
	}

	lhs, rhs = extractText(lhs, lhsType), extractText(rhs, rhsType)
	switch f.Kind {
	case FilterStartsWith:
		return StartsWith(lhs, rhs), nil
	case FilterEndsWith:
		return EndsWith(lhs, rhs), nil
	case FilterContainsSegment:
		return ContainsSegment(lhs, rhs), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFilter, f.Kind)
}

func extractText(e Expression, typ ParameterType) Expression {
	if typ == TypeAny {
		return JSONExtractText(e)
	}
	return e
}

// compileOperand compiles a path or parameter. A nil operand compiles to a
// nil expression, which renders as NULL.
func (c *SelectCompiler) compileOperand(op *Operand) (Expression, ParameterType, error) {
	switch {
	case op == nil:
		return nil, "", nil
	case op.Path != nil:
		column, field := op.Path.TerminatingColumn()
		expression, err := c.CompilePathColumn(op.Path)
		if err != nil {
			return nil, "", err
		}
		return expression, ColumnType(column, field), nil
	case op.Parameter != nil:
		expression, typ := c.CompileParameter(op.Parameter)
		return expression, typ, nil
	default:
		return nil, "", fmt.Errorf("%w: empty operand", ErrUnsupportedFilter)
	}
}

// compileLatestFilter special cases comparing an ontology version with the
// text "latest". The ontology_ids table is shadowed by a CTE carrying the
// latest version per base URL.
func (c *SelectCompiler) compileLatestFilter(f Filter) (Condition, bool, error) {
	if (f.Kind != FilterEqual && f.Kind != FilterNotEqual) || len(f.Operands) != 2 {
		return nil, false, nil
	}
	lhs, rhs := f.Operands[0], f.Operands[1]
	if lhs == nil || rhs == nil {
		return nil, false, nil
	}
	path, parameter := lhs.Path, rhs.Parameter
	if path == nil {
		path, parameter = rhs.Path, lhs.Parameter
	}
	if path == nil || parameter == nil || parameter.Type != TypeText || parameter.Value != "latest" {
		return nil, false, nil
	}
	if column, _ := path.TerminatingColumn(); column != OntologyIDsVersion {
		return nil, false, nil
	}

	if c.statement.Limit != nil || c.usesCursor {
		return nil, true, ErrLatestWithPagination
	}

	if !c.latestCTE {
		c.latestCTE = true
		alias := Alias{}
		c.statement.With = append(c.statement.With, CommonTableExpression{
			Name: OntologyIDs.Name(),
			Statement: &SelectStatement{
				Selects: []SelectExpression{
					{Expression: Asterisk},
					{
						Expression: Window(
							Max(ColumnExpr(OntologyIDsVersion, alias)),
							ColumnExpr(OntologyIDsBaseURL, alias),
						),
						Alias: OntologyIDsLatestVersion.Name,
					},
				},
				From: OntologyIDs.Aliased(alias),
			},
		})
	}

	alias, err := c.addJoinStatements(path)
	if err != nil {
		return nil, true, fmt.Errorf("path %s: %w", path, err)
	}
	version := ColumnExpr(OntologyIDsVersion, alias)
	latest := ColumnExpr(OntologyIDsLatestVersion, alias)
	if f.Kind == FilterEqual {
		return Equal(version, latest), true, nil
	}
	return NotEqual(version, latest), true, nil
}

// embeddingColumns returns the identifying columns and the distance column of
// an embedding table.
func embeddingColumns(t Table) ([]Column, Column, bool) {
	switch t {
	case DataTypeEmbeddings, PropertyTypeEmbeddings, EntityTypeEmbeddings:
		id, _, distance := OntologyEmbeddingColumns(t)
		return []Column{id}, distance, true
	case EntityEmbeddings:
		return []Column{EntityEmbeddingsWebID, EntityEmbeddingsEntityUUID}, EntityEmbeddingsDistance, true
	}
	return nil, Column{}, false
}

// compileCosineDistance replaces the embedding join by a subselect computing
// the minimal distance per record and orders the result by it.
func (c *SelectCompiler) compileCosineDistance(f Filter) (Condition, error) {
	if len(f.Operands) != 3 || f.Operands[0] == nil || f.Operands[1] == nil || f.Operands[2] == nil {
		return nil, fmt.Errorf("%w: cosineDistance expects three operands", ErrUnsupportedFilter)
	}
	path, parameter := f.Operands[0].Path, f.Operands[1].Parameter
	if path == nil {
		path, parameter = f.Operands[1].Path, f.Operands[0].Parameter
	}
	if path == nil || parameter == nil {
		return nil, fmt.Errorf("%w: cosineDistance compares exactly one path with one parameter", ErrUnsupportedFilter)
	}
	if c.statement.Limit != nil || c.usesCursor {
		return nil, ErrDistanceWithPagination
	}

	column, field := path.TerminatingColumn()
	ids, distanceColumn, ok := embeddingColumns(column.Table)
	if !ok || field != nil {
		return nil, fmt.Errorf("%w: cosineDistance requires an embedding path, got %s", ErrUnsupportedFilter, path)
	}

	alias, err := c.addJoinStatements(path)
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", path, err)
	}
	vector, _ := c.CompileParameter(parameter)
	maximum, _, err := c.compileOperand(f.Operands[2])
	if err != nil {
		return nil, err
	}

	distance := ColumnExpr(distanceColumn, alias)
	if n := len(c.statement.Joins); n > 0 {
		last := &c.statement.Joins[n-1]
		if _, _, isEmbedding := embeddingColumns(last.Table.Table); !isEmbedding && last.Statement == nil {
			return nil, fmt.Errorf("%w: only a single embedding per path is supported", ErrUnsupportedFilter)
		}

		inner := Alias{}
		sub := &SelectStatement{From: column.Table.Aliased(inner)}
		for _, id := range ids {
			sub.Selects = append(sub.Selects, SelectExpression{Expression: ColumnExpr(id, inner)})
			sub.GroupBy = append(sub.GroupBy, ColumnExpr(id, inner))
		}
		sub.Selects = append(sub.Selects, SelectExpression{
			Expression: Min(CosineDistance(ColumnExpr(column, inner), vector)),
			Alias:      distanceColumn.Name,
		})
		last.Statement = sub
	}

	c.statement.OrderBy = slices.Insert(c.statement.OrderBy, 0, OrderByExpression{
		Expression: distance,
		Ordering:   Ascending,
	})
	c.statement.Selects = append(c.statement.Selects, SelectExpression{Expression: distance})
	c.statement.Distinct = append(c.statement.Distinct, distance)
	return LessOrEqual(distance, maximum), nil
}
