// Package cli implements the sqlhild command: one-shot query execution by
// default, or a long-running PostgreSQL wire server with --server.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sqlhild/internal/config"
	"sqlhild/internal/pgwire"
	"sqlhild/internal/provider/starmod"
	"sqlhild/internal/query"

	// Register the built-in demo providers.
	_ "sqlhild/internal/provider/example"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var cfgFile, queryFile string

	rootCmd := &cobra.Command{
		Use:           "sqlhild [flags] [query...]",
		Short:         "SQL queries over pluggable table providers",
		Long:          "sqlhild runs SQL queries against table providers: built-in tables, Starlark modules on the search path, or anything satisfying the provider contract.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			}))
			eng := query.New(starmod.New(cfg.Modules, logger), logger)

			if cfg.Server != "" {
				return runServer(cmd.Context(), cfg.Server, logger, eng)
			}

			sqlText, err := queryText(args, queryFile)
			if err != nil {
				return err
			}
			return runOnce(cmd, eng, sqlText, cfg.CSV)
		},
	}

	rootCmd.Flags().String("server", "", "listen address for the PostgreSQL wire server (e.g. :5432)")
	rootCmd.Flags().StringSliceP("modules", "m", nil, "search roots for provider modules")
	rootCmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.Flags().Bool("csv", false, "render results as CSV instead of a table")
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default sqlhild.yaml)")
	rootCmd.Flags().StringVarP(&queryFile, "file", "f", "", "read the query from a file instead of the arguments")

	return rootCmd
}

// queryText assembles the SQL text from --file or the bare arguments, so
// quoting the whole query is optional: `sqlhild select 1` works.
func queryText(args []string, queryFile string) (string, error) {
	if queryFile != "" {
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return string(data), nil
	}
	sqlText := strings.TrimSpace(strings.Join(args, " "))
	if sqlText == "" {
		return "", fmt.Errorf("no query given: pass SQL as arguments, via --file, or start a server with --server")
	}
	return sqlText, nil
}

func runOnce(cmd *cobra.Command, eng *query.Engine, sqlText string, csv bool) error {
	sess := eng.NewSession()
	result, err := sess.Query(cmd.Context(), sqlText)
	if err != nil {
		return err
	}
	defer result.Close()

	if csv {
		return renderCSV(cmd.OutOrStdout(), result)
	}
	return renderTable(cmd.OutOrStdout(), result)
}

func runServer(ctx context.Context, addr string, logger *slog.Logger, eng *query.Engine) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := pgwire.NewServer(addr, logger, eng.NewSession)
	if err := srv.Start(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
