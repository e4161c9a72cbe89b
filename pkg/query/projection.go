// Package query builds parameterized Postgres statements over a single
// projected table. Field names are the exported names of the domain type;
// the projection maps them to qualified columns.
package query

import (
	"fmt"
	"strings"
)

// Projection maps field names to columns of one table.
type Projection struct {
	table   string
	alias   string
	columns map[string]string
	order   []string
}

// NewProjection starts a projection over table, qualified by alias.
func NewProjection(table, alias string) *Projection {
	return &Projection{
		table:   table,
		alias:   alias,
		columns: make(map[string]string),
	}
}

// Project maps field to column. Columns are selected in the order they are projected.
func (p *Projection) Project(column, field string) *Projection {
	qualified := p.alias + "." + column
	p.columns[field] = qualified
	p.order = append(p.order, qualified)
	return p
}

// From returns the FROM clause target, "table alias".
func (p *Projection) From() string {
	return fmt.Sprintf("%s %s", p.table, p.alias)
}

// Column resolves field to its qualified column.
func (p *Projection) Column(field string) (string, bool) {
	col, ok := p.columns[field]
	return col, ok
}

// Columns returns the select list.
func (p *Projection) Columns() string {
	return strings.Join(p.order, ", ")
}

func (p *Projection) mustColumn(field string) string {
	col, ok := p.columns[field]
	if !ok {
		panic(fmt.Sprintf("query: field %q is not projected on %s", field, p.table))
	}
	return col
}
