package value

import "strings"

// Column is one entry of a Schema. Table holds the qualifier (alias or the
// last segment of the provider identifier) the column resolves under;
// projection outputs leave it empty.
type Column struct {
	Table string
	Name  string
	Kind  Kind
}

// QualifiedName renders the column as it appears in error messages.
func (c Column) QualifiedName() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// Schema is an ordered sequence of columns. Order is significant: it defines
// wire-protocol field order.
type Schema []Column

// Row is an ordered sequence of values aligned positionally with a Schema.
type Row []Value

// Clone copies the row. Iterators that buffer rows (sort, group) must not
// alias a provider's reused backing slice.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Lookup resolves a possibly table-qualified column name against the schema.
// It returns the matching indexes; more than one match means the reference
// is ambiguous. Matching is case-sensitive, like identifier quoting.
func (s Schema) Lookup(table, name string) []int {
	var matches []int
	for i, c := range s {
		if c.Name != name {
			continue
		}
		if table != "" && c.Table != table {
			continue
		}
		matches = append(matches, i)
	}
	return matches
}

// Names returns the bare column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Qualify returns a copy of the schema with every column's table qualifier
// replaced. Used when a FROM clause aliases its provider.
func (s Schema) Qualify(table string) Schema {
	out := make(Schema, len(s))
	for i, c := range s {
		c.Table = table
		out[i] = c
	}
	return out
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.Name + " " + c.Kind.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
