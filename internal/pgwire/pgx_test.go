package pgwire

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"sqlhild/internal/query"
)

// connectPgx opens a real pgx connection in simple-protocol mode, the mode
// this server supports.
func connectPgx(t *testing.T, srv *Server) *pgx.Conn {
	t.Helper()
	dsn := fmt.Sprintf("postgres://tester@%s/sqlhild?sslmode=disable", srv.Addr())
	cfg, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := pgx.ConnectConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(context.Background()) })
	return conn
}

func TestPgxClientQuery(t *testing.T) {
	eng := query.New(nil, nil)
	srv := NewServer("127.0.0.1:0", nil, eng.NewSession)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn := connectPgx(t, srv)
	ctx := context.Background()

	rows, err := conn.Query(ctx, "select value, value * 2 from sqlhild.example.OneToFive where value > 3 order by value")
	require.NoError(t, err)
	defer rows.Close()

	var got [][2]int64
	for rows.Next() {
		var v, d int64
		require.NoError(t, rows.Scan(&v, &d))
		got = append(got, [2]int64{v, d})
	}
	require.NoError(t, rows.Err())
	require.Equal(t, [][2]int64{{4, 8}, {5, 10}}, got)
}

func TestPgxClientTypesAndErrors(t *testing.T) {
	eng := query.New(nil, nil)
	srv := NewServer("127.0.0.1:0", nil, eng.NewSession)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn := connectPgx(t, srv)
	ctx := context.Background()

	var n int64
	var f float64
	var ok bool
	var txt string
	var s *string
	err := conn.QueryRow(ctx,
		"select value, value + 0.5, value = 1, upper('abc'), null from sqlhild.example.OneToFive limit 1").
		Scan(&n, &f, &ok, &txt, &s)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 1.5, f)
	require.True(t, ok)
	require.Equal(t, "ABC", txt)
	require.Nil(t, s)

	// Errors arrive as PgError with the mapped SQLSTATE.
	_, err = conn.Exec(ctx, "select * from no.such.Table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "42P01")

	// The connection stays usable after an error.
	err = conn.QueryRow(ctx, "select count(*) from sqlhild.example.OneToTen").Scan(&n)
	require.NoError(t, err)
	require.Equal(t, int64(10), n)
}
