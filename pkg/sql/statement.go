package sql

import "fmt"

// Param is one bound value of a statement. Names are unique per statement.
type Param struct {
	Name  string
	Value any
}

// Statement is compiled SQL text with its bindings in placeholder order.
type Statement struct {
	SQL    string
	Params []Param
}

// Args returns the positional driver arguments.
func (s Statement) Args() []any {
	args := make([]any, len(s.Params))
	for i, p := range s.Params {
		args[i] = p.Value
	}
	return args
}

// Named returns the bindings keyed by parameter name.
func (s Statement) Named() map[string]any {
	named := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		named[p.Name] = p.Value
	}
	return named
}

// binder collects parameters for one statement and renders their placeholders.
type binder struct {
	dialect Dialect
	params  []Param
	names   map[string]int
}

func newBinder(d Dialect) *binder {
	return &binder{dialect: d, names: make(map[string]int)}
}

// bind registers value under name and returns its placeholder. A name that
// was already used gets a numeric suffix.
func (b *binder) bind(name string, value any) string {
	key := name
	if n, ok := b.names[name]; ok {
		for {
			n++
			key = fmt.Sprintf("%s_%d", name, n)
			if _, taken := b.names[key]; !taken {
				break
			}
		}
		b.names[name] = n
	}
	b.names[key] = 0
	b.params = append(b.params, Param{Name: key, Value: value})
	return b.dialect.Placeholder(len(b.params))
}

func (b *binder) statement(sql string) Statement {
	return Statement{SQL: sql, Params: b.params}
}
