package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SortField orders results by a projected field.
type SortField struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// ParseSortFields parses "a,-b" into ascending a and descending b.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// Builder accumulates WHERE conditions and numbers parameters as they are
// added. Condition methods panic on fields missing from the projection since
// those come from code; sort fields come from callers and unknown ones are
// dropped.
type Builder struct {
	proj        *Projection
	where       []string
	args        []any
	sort        []SortField
	defaultSort []SortField
}

func NewBuilder(proj *Projection, defaultSort ...SortField) *Builder {
	return &Builder{proj: proj, defaultSort: defaultSort}
}

func (b *Builder) param(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// WhereEquals adds field = value. Nil values are skipped.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.where = append(b.where, b.proj.mustColumn(field)+" = "+b.param(deref(value)))
	return b
}

// WhereContains adds a case-insensitive substring match. Nil or empty values are skipped.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	b.where = append(b.where, b.proj.mustColumn(field)+" ILIKE "+b.param("%"+*value+"%"))
	return b
}

// WhereSearch matches value against any of fields.
func (b *Builder) WhereSearch(value *string, fields ...string) *Builder {
	if value == nil || *value == "" || len(fields) == 0 {
		return b
	}
	p := b.param("%" + *value + "%")
	clauses := make([]string, len(fields))
	for i, f := range fields {
		clauses[i] = b.proj.mustColumn(f) + " ILIKE " + p
	}
	b.where = append(b.where, "("+strings.Join(clauses, " OR ")+")")
	return b
}

// WhereAtLeast adds field >= value. Nil values are skipped.
func (b *Builder) WhereAtLeast(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.where = append(b.where, b.proj.mustColumn(field)+" >= "+b.param(deref(value)))
	return b
}

// WhereBefore adds field < value. Nil values are skipped.
func (b *Builder) WhereBefore(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.where = append(b.where, b.proj.mustColumn(field)+" < "+b.param(deref(value)))
	return b
}

// OrderBy replaces the default sort.
func (b *Builder) OrderBy(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// Build returns the unpaged SELECT.
func (b *Builder) Build() (string, []any) {
	return fmt.Sprintf("SELECT %s FROM %s%s%s", b.proj.Columns(), b.proj.From(), b.whereClause(), b.orderClause()), b.args
}

// BuildPage returns the SELECT for one page.
func (b *Builder) BuildPage(limit, offset int) (string, []any) {
	sql, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, limit, offset), args
}

// BuildCount returns a COUNT(*) over the same conditions.
func (b *Builder) BuildCount() (string, []any) {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.proj.From(), b.whereClause()), b.args
}

// BuildExists returns SELECT EXISTS over the same conditions.
func (b *Builder) BuildExists() (string, []any) {
	return fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s%s)", b.proj.From(), b.whereClause()), b.args
}

// BuildSingle selects the row whose field equals value, ignoring other conditions.
func (b *Builder) BuildSingle(field string, value any) (string, []any) {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", b.proj.Columns(), b.proj.From(), b.proj.mustColumn(field)), []any{value}
}

func (b *Builder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *Builder) orderClause() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		col, ok := b.proj.Column(f.Field)
		if !ok {
			continue
		}
		if f.Descending {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return rv.Elem().Interface()
	}
	return v
}
