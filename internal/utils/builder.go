// Package querybuilder assembles SQL with '?' placeholders; callers rebind
// them for their driver with sqlx.Rebind.
package querybuilder

import (
	"fmt"
	"strings"
)

// Assignment is one "col = value" pair of an UPDATE
type Assignment struct {
	Column string
	Value  interface{}
}

// UpdateData keeps assignments in the order they are rendered
type UpdateData []Assignment

type QueryBuilder interface {
	Select(cols ...string) QueryBuilder
	From(table string) QueryBuilder
	Into(table string) QueryBuilder
	Where(clause string, args ...interface{}) QueryBuilder
	And(clause string, args ...interface{}) QueryBuilder

	OrderBy(col string, asc bool) QueryBuilder

	Insert(cols ...string) QueryBuilder
	Values(values ...interface{}) QueryBuilder

	Update(table string, data UpdateData) QueryBuilder

	Build() (string, []interface{})
}

type queryBuilder struct {
	schema     string
	table      string
	cols       []string
	conditions []Condition
	values     [][]interface{}
	updateData UpdateData
	orderBy    []string
}

func NewQueryBuilder(schema string) QueryBuilder {
	return &queryBuilder{schema: schema}
}

func (q *queryBuilder) Select(cols ...string) QueryBuilder {
	q.cols = append(q.cols, cols...)
	return q
}

func (q *queryBuilder) From(table string) QueryBuilder {
	q.table = table
	return q
}

func (q *queryBuilder) Into(table string) QueryBuilder {
	q.table = table
	return q
}

func (q *queryBuilder) addCondition(clause string, args []interface{}) QueryBuilder {
	q.conditions = append(q.conditions, Condition{clause: clause, args: args})
	return q
}

func (q *queryBuilder) Where(clause string, args ...interface{}) QueryBuilder {
	return q.addCondition(clause, args)
}

func (q *queryBuilder) And(clause string, args ...interface{}) QueryBuilder {
	return q.addCondition(clause, args)
}

func (q *queryBuilder) OrderBy(col string, asc bool) QueryBuilder {
	direction := "ASC"
	if !asc {
		direction = "DESC"
	}
	q.orderBy = append(q.orderBy, fmt.Sprintf("%s %s", col, direction))
	return q
}

func (q *queryBuilder) Insert(cols ...string) QueryBuilder {
	q.cols = cols
	return q
}

// Values appends one row; call it once per row
func (q *queryBuilder) Values(values ...interface{}) QueryBuilder {
	q.values = append(q.values, values)
	return q
}

func (q *queryBuilder) Update(table string, data UpdateData) QueryBuilder {
	q.table = table
	q.updateData = data
	return q
}

// Build renders the statement. An invalid statement renders as "".
func (q *queryBuilder) Build() (string, []interface{}) {
	switch {
	case len(q.values) > 0:
		return q.buildInsert()
	case len(q.updateData) > 0:
		return q.buildUpdate()
	default:
		return q.buildSelect()
	}
}

func (q *queryBuilder) qualifiedTable() string {
	if q.schema == "" {
		return q.table
	}
	return fmt.Sprintf("%s.%s", q.schema, q.table)
}

func (q *queryBuilder) buildWhere() (string, []interface{}) {
	if len(q.conditions) == 0 {
		return "", nil
	}
	condition, args := buildCondition(q.conditions)
	if condition == "" {
		return "", nil
	}
	return fmt.Sprintf(" WHERE %s", condition), args
}

func (q *queryBuilder) buildSelect() (string, []interface{}) {
	if len(q.cols) == 0 || q.table == "" {
		return "", nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(q.cols, ", "), q.qualifiedTable())

	where, args := q.buildWhere()
	query += where

	if len(q.orderBy) > 0 {
		query += fmt.Sprintf(" ORDER BY %s", strings.Join(q.orderBy, ", "))
	}
	return query, args
}

func (q *queryBuilder) buildInsert() (string, []interface{}) {
	numOfParam := len(q.cols)
	if numOfParam == 0 || q.table == "" {
		return "", nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", numOfParam), ", ")
	tuples := make([]string, 0, len(q.values))
	args := make([]interface{}, 0, len(q.values)*numOfParam)
	for _, row := range q.values {
		if len(row) != numOfParam {
			return "", nil
		}
		tuples = append(tuples, fmt.Sprintf("(%s)", placeholders))
		args = append(args, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		q.qualifiedTable(), strings.Join(q.cols, ", "), strings.Join(tuples, ", "))
	return query, args
}

func (q *queryBuilder) buildUpdate() (string, []interface{}) {
	if q.table == "" {
		return "", nil
	}
	sets := make([]string, 0, len(q.updateData))
	args := make([]interface{}, 0, len(q.updateData))
	for _, a := range q.updateData {
		sets = append(sets, fmt.Sprintf("%s = ?", a.Column))
		args = append(args, a.Value)
	}
	query := fmt.Sprintf("UPDATE %s SET %s", q.qualifiedTable(), strings.Join(sets, ", "))

	where, whereArgs := q.buildWhere()
	query += where
	args = append(args, whereArgs...)
	return query, args
}
