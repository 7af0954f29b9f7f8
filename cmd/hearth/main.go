package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hearthmem/hearth/internal/profile"
	"github.com/hearthmem/hearth/server/ai"
	"github.com/hearthmem/hearth/server/router/mcpserver"
	"github.com/hearthmem/hearth/server/runner/decay"
	"github.com/hearthmem/hearth/server/service/memory"
	"github.com/hearthmem/hearth/store"
	"github.com/hearthmem/hearth/store/db"
)

const version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "hearth",
		Short: "Heat-decay memory engine exposed as MCP tools",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}

	decayCmd = &cobra.Command{
		Use:   "decay",
		Short: "Run a single heat-decay sweep and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDecayOnce()
		},
	}
)

func init() {
	viper.SetEnvPrefix("hearth")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("mode", "dev", `server mode, can be "dev" or "prod"`)
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "postgres", "sqlite" or "memory"`)
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("owner", "default", "default owner scope for tool calls")

	for _, flag := range []string{"mode", "driver", "dsn", "owner"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(decayCmd)
}

func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:         viper.GetString("mode"),
		Driver:       viper.GetString("driver"),
		DSN:          viper.GetString("dsn"),
		DefaultOwner: viper.GetString("owner"),
		Version:      version,
		Heat:         profile.DefaultHeatConfig(),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// openStore connects the configured driver and migrates the schema when the
// database is empty.
func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}

	initialized, err := driver.IsInitialized(ctx)
	if err != nil {
		driver.Close()
		return nil, err
	}
	if !initialized {
		slog.Info("initializing database schema", "driver", p.Driver)
		if err := driver.Migrate(ctx); err != nil {
			driver.Close()
			return nil, err
		}
	}
	return store.New(driver, p), nil
}

func runServe() error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, p)
	if err != nil {
		return err
	}
	defer st.Close()

	provider, err := ai.NewProvider(ai.ConfigFromProfile(p))
	if err != nil {
		return err
	}
	embedder := ai.NewEmbeddingCache(provider, p.EmbedCacheCapacity)
	extractor := ai.NewLLMExtractor(provider)

	heat := memory.NewHeatService(st, p.Heat)
	ingestor := memory.NewIngestor(st, embedder, extractor, p.Heat)
	searcher := memory.NewSearcher(st, embedder, heat, p.OversampleFactor)

	go decay.NewRunner(heat, p.DecayInterval).Run(ctx)

	srv := mcpserver.NewServer(p, ingestor, searcher, heat)
	slog.Info("hearth server started",
		"version", p.Version,
		"mode", p.Mode,
		"driver", p.Driver,
		"decay_interval", p.DecayInterval.String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ServeStdio()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		return nil
	}
}

// runDecayOnce is the cron-style entrypoint: one sweep, then exit.
func runDecayOnce() error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, p)
	if err != nil {
		return err
	}
	defer st.Close()

	decay.NewRunner(memory.NewHeatService(st, p.Heat), p.DecayInterval).RunOnce(ctx)
	return nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
