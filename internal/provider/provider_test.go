package provider

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"sqlhild/internal/domain"
	"sqlhild/internal/value"
)

func init() {
	Register("providertest.Small", func() (Provider, error) {
		return NewStatic(value.Schema{{Name: "n", Kind: value.KindInt}}, []value.Row{
			{value.Int(1)},
			{value.Int(2)},
		}), nil
	})
	Register("providertest.uniquetail.Lonely", func() (Provider, error) {
		return NewStatic(value.Schema{{Name: "n", Kind: value.KindInt}}, nil), nil
	})
	Register("providertest.other.Small", func() (Provider, error) {
		return NewStatic(value.Schema{{Name: "n", Kind: value.KindInt}}, nil), nil
	})
}

func TestRegistryExactLookup(t *testing.T) {
	r := NewResolver(nil, nil)
	h, err := r.Resolve("providertest.Small")
	require.NoError(t, err)
	require.Equal(t, []string{"n"}, h.Schema().Names())
}

func TestRegistryBareNameLookup(t *testing.T) {
	r := NewResolver(nil, nil)

	// Unique last segment resolves.
	h, err := r.Resolve("Lonely")
	require.NoError(t, err)
	require.Equal(t, "Lonely", h.Identifier)

	// "Small" ends two registered identifiers, so the bare name stays
	// unresolved rather than picking one arbitrarily.
	_, err = r.Resolve("Small")
	var resErr *domain.ResolutionError
	require.ErrorAs(t, err, &resErr)
}

func TestResolveUnknownWithoutLoader(t *testing.T) {
	r := NewResolver(nil, nil)
	_, err := r.Resolve("providertest.Missing")
	var resErr *domain.ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Contains(t, err.Error(), "no such table provider")
}

type mapLoader map[string]Provider

func (m mapLoader) Load(identifier string) (Provider, error) {
	p, ok := m[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func TestResolveFallsBackToLoader(t *testing.T) {
	loader := mapLoader{
		"ext.Numbers": NewStatic(value.Schema{{Name: "n", Kind: value.KindInt}}, nil),
	}
	r := NewResolver(loader, nil)

	h, err := r.Resolve("ext.Numbers")
	require.NoError(t, err)
	require.Equal(t, "ext.Numbers", h.Identifier)

	_, err = r.Resolve("ext.Missing")
	var resErr *domain.ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryShadowsLoader(t *testing.T) {
	loader := mapLoader{
		"providertest.Small": NewStatic(value.Schema{{Name: "shadowed", Kind: value.KindInt}}, nil),
	}
	r := NewResolver(loader, nil)
	h, err := r.Resolve("providertest.Small")
	require.NoError(t, err)
	require.Equal(t, []string{"n"}, h.Schema().Names())
}

type badSchemaProvider struct{ schema value.Schema }

func (p badSchemaProvider) Schema() (value.Schema, error) { return p.schema, nil }
func (p badSchemaProvider) Scan(context.Context, Pushdown) (RowIter, error) {
	return IterFunc(func() (value.Row, error) { return nil, io.EOF }), nil
}

func TestHandleValidatesSchema(t *testing.T) {
	var resErr *domain.ResolutionError

	_, err := newHandle("t", badSchemaProvider{})
	require.ErrorAs(t, err, &resErr)
	require.Contains(t, err.Error(), "no columns")

	_, err = newHandle("t", badSchemaProvider{schema: value.Schema{
		{Name: "a", Kind: value.KindInt},
		{Name: "a", Kind: value.KindText},
	}})
	require.ErrorAs(t, err, &resErr)
	require.Contains(t, err.Error(), "duplicate column")
}

type failingSchemaProvider struct{}

func (failingSchemaProvider) Schema() (value.Schema, error) {
	return nil, errors.New("boom")
}
func (failingSchemaProvider) Scan(context.Context, Pushdown) (RowIter, error) {
	return nil, errors.New("boom")
}

func TestHandleSchemaError(t *testing.T) {
	_, err := newHandle("t", failingSchemaProvider{})
	var resErr *domain.ResolutionError
	require.ErrorAs(t, err, &resErr)
}

func TestSessionCachesPerIdentifier(t *testing.T) {
	instantiations := 0
	Register("providertest.Counted", func() (Provider, error) {
		instantiations++
		return NewStatic(value.Schema{{Name: "n", Kind: value.KindInt}}, nil), nil
	})

	sess := NewSession(NewResolver(nil, nil))
	h1, err := sess.Resolve("providertest.Counted")
	require.NoError(t, err)
	h2, err := sess.Resolve("providertest.Counted")
	require.NoError(t, err)
	require.Same(t, h1, h2)
	require.Equal(t, 1, instantiations)

	// A different session gets its own instance.
	other := NewSession(NewResolver(nil, nil))
	_, err = other.Resolve("providertest.Counted")
	require.NoError(t, err)
	require.Equal(t, 2, instantiations)
}

func TestSessionDoesNotCacheFailures(t *testing.T) {
	calls := 0
	loader := loaderFunc(func(identifier string) (Provider, error) {
		calls++
		if calls == 1 {
			return nil, ErrNotFound
		}
		return NewStatic(value.Schema{{Name: "n", Kind: value.KindInt}}, nil), nil
	})
	sess := NewSession(NewResolver(loader, nil))

	_, err := sess.Resolve("flaky.T")
	require.Error(t, err)
	_, err = sess.Resolve("flaky.T")
	require.NoError(t, err)
}

type loaderFunc func(string) (Provider, error)

func (f loaderFunc) Load(identifier string) (Provider, error) { return f(identifier) }

func TestStaticScanIsRestartable(t *testing.T) {
	p := NewStatic(value.Schema{{Name: "n", Kind: value.KindInt}}, []value.Row{
		{value.Int(1)},
		{value.Int(2)},
	})
	for i := 0; i < 2; i++ {
		it, err := p.Scan(context.Background(), nil)
		require.NoError(t, err)
		n := 0
		for {
			_, err := it.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			n++
		}
		require.Equal(t, 2, n)
		require.NoError(t, it.Close())
	}
}

func TestPushdownMatches(t *testing.T) {
	schema := value.Schema{
		{Name: "id", Kind: value.KindInt},
		{Name: "name", Kind: value.KindText},
	}
	pd := Pushdown{
		{Column: "id", Op: OpGt, Value: value.Int(2)},
		{Column: "name", Op: OpEq, Value: value.Text("x")},
	}

	require.True(t, pd.Matches(schema, value.Row{value.Int(3), value.Text("x")}))
	require.False(t, pd.Matches(schema, value.Row{value.Int(1), value.Text("x")}))
	require.False(t, pd.Matches(schema, value.Row{value.Int(3), value.Text("y")}))

	// Null row values never match.
	require.False(t, pd.Matches(schema, value.Row{value.Null(), value.Text("x")}))

	// Unknown columns and incomparable pairs are ignored.
	loose := Pushdown{{Column: "missing", Op: OpEq, Value: value.Int(1)}}
	require.True(t, loose.Matches(schema, value.Row{value.Int(1), value.Text("x")}))
}
