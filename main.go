package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/quasar/mcauth/internal/accounts"
	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/app"
	"github.com/quasar/mcauth/internal/auth"
	"github.com/quasar/mcauth/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dataDir  string
		clientID string
		verbose  bool
		refresh  bool
	)
	pflag.StringVar(&dataDir, "data-dir", "", "directory for accounts, config and logs")
	pflag.StringVar(&clientID, "client-id", "", "Microsoft application (client) ID")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	pflag.BoolVar(&refresh, "refresh", false, "refresh accounts that need it and exit")
	pflag.Parse()

	cfg, err := config.Load(dataDir)
	if err != nil {
		return err
	}
	if clientID != "" {
		cfg.MSAClientID = clientID
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "mcauth.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()

	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))

	endpoints := api.DefaultEndpoints()
	transport := api.NewClient(api.Options{
		Timeout: cfg.HTTPTimeout(),
		Retries: cfg.HTTPRetries,
		Logger:  logger,
	})
	env := &auth.Env{
		Transport: transport,
		MSA:       api.NewMSAClient(transport, endpoints, cfg.MSAClientID),
		Endpoints: endpoints,
		Logger:    logger,
		Now:       time.Now,
	}

	manager := accounts.NewManager(cfg.DataDir, env)

	if refresh {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return refreshAll(ctx, manager)
	}

	// Create the Bubbletea program
	p := tea.NewProgram(
		app.New(manager, env),
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse support
	)

	// Run the program
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// refreshAll refreshes every account that is due and prints the outcome.
func refreshAll(ctx context.Context, manager *accounts.Manager) error {
	if err := manager.Load(); err != nil {
		return err
	}

	var mu sync.Mutex
	for _, acc := range manager.List() {
		acc.Observe(accounts.ObserverFuncs{
			OnFinished: func(a *accounts.Account, res auth.Result) {
				mu.Lock()
				defer mu.Unlock()
				printResult(a, res)
			},
		})
	}

	tasks := manager.RefreshDue(ctx)
	if len(tasks) == 0 {
		fmt.Println("All accounts are up to date.")
	}
	for _, task := range tasks {
		task.Wait()
	}
	return manager.Save()
}

func printResult(a *accounts.Account, res auth.Result) {
	snap := a.Snapshot()
	line := fmt.Sprintf("%-20s %-10s %s", snap.DisplayName(), res.State, res.Message)
	if res.State == auth.TaskSucceeded && !snap.GameToken.ExpiresAt.IsZero() {
		line += ", expires " + humanize.Time(snap.GameToken.ExpiresAt)
	}
	fmt.Println(line)
}
