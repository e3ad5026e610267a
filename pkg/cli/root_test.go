package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryText(t *testing.T) {
	sql, err := queryText([]string{"select", "1", "from", "t"}, "")
	require.NoError(t, err)
	require.Equal(t, "select 1 from t", sql)

	_, err = queryText(nil, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no query given")

	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("select value from t\n"), 0o644))
	sql, err = queryText(nil, path)
	require.NoError(t, err)
	require.Equal(t, "select value from t\n", sql)

	_, err = queryText(nil, filepath.Join(t.TempDir(), "missing.sql"))
	require.Error(t, err)
}

func TestRunOneShotTable(t *testing.T) {
	out, err := runCommand(t, "select", "value", "from", "sqlhild.example.OneToFive", "where", "value", ">", "3")
	require.NoError(t, err)
	require.Contains(t, out, "value")
	require.Contains(t, out, "4")
	require.Contains(t, out, "5")
	require.Contains(t, out, "(2 rows)")
}

func TestRunOneShotCSV(t *testing.T) {
	out, err := runCommand(t, "--csv", "select value, value * 2 from sqlhild.example.OneToFive limit 2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, []string{
		"value,value * 2",
		"1,2",
		"2,4",
	}, lines)
}

func TestRunQueryError(t *testing.T) {
	_, err := runCommand(t, "select * from no.such.Table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no.such.Table")
}

func TestCSVEscaping(t *testing.T) {
	require.Equal(t, "plain", escapeCSV("plain"))
	require.Equal(t, `"a,b"`, escapeCSV("a,b"))
	require.Equal(t, `"say ""hi"""`, escapeCSV(`say "hi"`))
	require.Equal(t, "\"two\nlines\"", escapeCSV("two\nlines"))
}

func TestStarlarkModuleFlag(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "demo.star"), []byte(`
Numbers = {
    "schema": [("n", "int")],
    "rows": [(7,), (8,)],
}
`), 0o644))

	out, err := runCommand(t, "-m", root, "--csv", "select n from demo.Numbers")
	require.NoError(t, err)
	require.Contains(t, out, "7")
	require.Contains(t, out, "8")
}
