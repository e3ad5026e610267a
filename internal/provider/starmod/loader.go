// Package starmod loads table providers from Starlark modules found on a
// search path. An identifier `a.b.Sym` maps to `<root>/a/b.star` (or
// `<root>/a.b.star`), and the module-level symbol `Sym` must be a dict with
// a `schema` entry holding (name, kind) pairs and a `rows` entry, either a
// list of rows or a function returning an iterable of rows.
package starmod

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"sqlhild/internal/provider"
	"sqlhild/internal/value"
)

// Execution budget for one module load or one rows() call. Providers are
// user code; a runaway loop should fail the query, not wedge the server.
const maxExecutionSteps = uint64(10_000_000)

// Loader implements provider.Loader over an ordered list of search roots.
type Loader struct {
	roots  []string
	logger *slog.Logger

	mu      sync.Mutex
	modules map[string]starlark.StringDict // keyed by resolved file path
}

// New builds a loader. An empty root list yields a loader that never finds
// anything, which is still a valid collaborator.
func New(roots []string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{roots: roots, logger: logger, modules: map[string]starlark.StringDict{}}
}

// Load resolves the identifier to a module file, executes it (once per
// loader), and adapts the named symbol to the provider contract.
func (l *Loader) Load(identifier string) (provider.Provider, error) {
	dot := strings.LastIndex(identifier, ".")
	if dot <= 0 || dot == len(identifier)-1 {
		return nil, provider.ErrNotFound
	}
	modPath, sym := identifier[:dot], identifier[dot+1:]

	file := l.findModule(modPath)
	if file == "" {
		return nil, provider.ErrNotFound
	}

	globals, err := l.execModule(file)
	if err != nil {
		return nil, fmt.Errorf("load module %s: %w", file, err)
	}

	v, ok := globals[sym]
	if !ok {
		return nil, fmt.Errorf("module %s has no symbol %q", file, sym)
	}
	return newStarProvider(identifier, v)
}

// findModule returns the first existing candidate file across the roots.
// Dotted module paths map to nested directories first, then to a flat
// dotted filename; slash-qualified paths are used verbatim.
func (l *Loader) findModule(modPath string) string {
	candidates := []string{
		filepath.FromSlash(strings.ReplaceAll(modPath, ".", "/")) + ".star",
		modPath + ".star",
	}
	for _, root := range l.roots {
		for _, c := range candidates {
			full := filepath.Join(root, c)
			if st, err := os.Stat(full); err == nil && !st.IsDir() {
				return full
			}
		}
	}
	return ""
}

func (l *Loader) execModule(file string) (starlark.StringDict, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if globals, ok := l.modules[file]; ok {
		return globals, nil
	}

	thread := &starlark.Thread{Name: "load " + file}
	thread.SetMaxExecutionSteps(maxExecutionSteps)
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, file, nil, nil)
	if err != nil {
		return nil, err
	}
	l.modules[file] = globals
	l.logger.Debug("loaded provider module", "file", file)
	return globals, nil
}

// starProvider adapts one module symbol to the provider contract.
type starProvider struct {
	identifier string
	schema     value.Schema
	rows       starlark.Value // list of rows, or a callable producing one
}

func newStarProvider(identifier string, v starlark.Value) (*starProvider, error) {
	dict, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("symbol is a %s, not a provider dict", v.Type())
	}

	schemaVal, found, err := dict.Get(starlark.String("schema"))
	if err != nil || !found {
		return nil, fmt.Errorf("provider dict has no schema entry")
	}
	schema, err := convertSchema(schemaVal)
	if err != nil {
		return nil, err
	}

	rowsVal, found, err := dict.Get(starlark.String("rows"))
	if err != nil || !found {
		return nil, fmt.Errorf("provider dict has no rows entry")
	}

	return &starProvider{identifier: identifier, schema: schema, rows: rowsVal}, nil
}

func (p *starProvider) Schema() (value.Schema, error) { return p.schema, nil }

// Scan produces an independent sequence per call: a callable rows entry is
// re-invoked, so Starlark generators are restartable the same way
// registered Go providers are.
func (p *starProvider) Scan(ctx context.Context, _ provider.Pushdown) (provider.RowIter, error) {
	src := p.rows
	if callable, ok := src.(starlark.Callable); ok {
		thread := &starlark.Thread{Name: "scan " + p.identifier}
		thread.SetMaxExecutionSteps(maxExecutionSteps)
		out, err := starlark.Call(thread, callable, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("rows(): %w", err)
		}
		src = out
	}

	iter := starlark.Iterate(src)
	if iter == nil {
		return nil, fmt.Errorf("rows value %s is not iterable", src.Type())
	}
	return &starIter{ctx: ctx, iter: iter, width: len(p.schema)}, nil
}

type starIter struct {
	ctx    context.Context
	iter   starlark.Iterator
	width  int
	closed bool
}

func (it *starIter) Next() (value.Row, error) {
	if err := it.ctx.Err(); err != nil {
		return nil, err
	}
	var elem starlark.Value
	if !it.iter.Next(&elem) {
		return nil, io.EOF
	}
	return convertRow(elem, it.width)
}

func (it *starIter) Close() error {
	if !it.closed {
		it.closed = true
		it.iter.Done()
	}
	return nil
}

func convertSchema(v starlark.Value) (value.Schema, error) {
	iter := starlark.Iterate(v)
	if iter == nil {
		return nil, fmt.Errorf("schema value %s is not iterable", v.Type())
	}
	defer iter.Done()

	var schema value.Schema
	var entry starlark.Value
	for iter.Next(&entry) {
		pair, ok := entry.(starlark.Indexable)
		if !ok || pair.Len() != 2 {
			return nil, fmt.Errorf("schema entry %s is not a (name, kind) pair", entry.String())
		}
		name, ok := starlark.AsString(pair.Index(0))
		if !ok {
			return nil, fmt.Errorf("schema column name %s is not a string", pair.Index(0).String())
		}
		kindName, ok := starlark.AsString(pair.Index(1))
		if !ok {
			return nil, fmt.Errorf("schema column kind %s is not a string", pair.Index(1).String())
		}
		kind, err := value.ParseKind(kindName)
		if err != nil {
			return nil, err
		}
		schema = append(schema, value.Column{Name: name, Kind: kind})
	}
	return schema, nil
}

// convertRow accepts a tuple/list per row, or a bare scalar for
// single-column schemas.
func convertRow(elem starlark.Value, width int) (value.Row, error) {
	if seq, ok := elem.(starlark.Indexable); ok {
		if seq.Len() != width {
			return nil, fmt.Errorf("row has %d values, schema has %d columns", seq.Len(), width)
		}
		row := make(value.Row, width)
		for i := 0; i < width; i++ {
			row[i] = convertValue(seq.Index(i))
		}
		return row, nil
	}
	if width == 1 {
		return value.Row{convertValue(elem)}, nil
	}
	return nil, fmt.Errorf("row value %s is not a sequence", elem.Type())
}

func convertValue(v starlark.Value) value.Value {
	switch t := v.(type) {
	case starlark.NoneType:
		return value.Null()
	case starlark.Bool:
		return value.Bool(bool(t))
	case starlark.Int:
		if i, ok := t.Int64(); ok {
			return value.Int(i)
		}
		return value.Opaque(t.String())
	case starlark.Float:
		return value.Float(float64(t))
	case starlark.String:
		return value.Text(string(t))
	default:
		return value.Opaque(v.String())
	}
}
