// Package commands implements the admin CLI.
package commands

import (
	"context"
	"fmt"
	"os"

	"gatekeeper/internal/cache"
	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/notifications"
	"gatekeeper/internal/repository"
	"gatekeeper/internal/service"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput bool
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator utilities for gatekeeper",
	Long: `Manage gatekeeper accounts directly against the configured database.

Operator commands bypass the HTTP grant rules: any role may be assigned,
including ROLE_SUPER_ADMIN. Configuration is read from .env, config.yml
and the environment exactly as the server reads it.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

// runtime is what every subcommand needs.
type runtime struct {
	cfg      *config.Config
	users    *service.UserService
	notifier *notifications.Notifier
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logEnv := "test"
	if verbose {
		logEnv = cfg.Env
	}
	middleware.InitLogger(logEnv)

	db, err := database.ConnectWithOptions(ctx, cfg, database.ConnectOptions{SkipSchema: true})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	cache.InitRedis(cfg.RedisURL)
	notifier := notifications.NewNotifier(cache.GetClient())

	return &runtime{
		cfg:      cfg,
		users:    service.NewUserService(repository.NewUserRepository(db), notifier),
		notifier: notifier,
	}, nil
}
