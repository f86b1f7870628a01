package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/workboard/internal/config"
	"github.com/nhle/workboard/internal/httpapi"
	"github.com/nhle/workboard/internal/mailer"
	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/notify"
	"github.com/nhle/workboard/internal/ratelimit"
	"github.com/nhle/workboard/internal/scheduler"
	"github.com/nhle/workboard/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "workboard",
	Short: "Workboard - multi-tenant task and workspace service",
	Long: `Workboard is a workspace-scoped task management service.

It serves a JSON API for tasks, services, task chat with @-mentions,
and notifications, and runs the background jobs that spawn recurring
tasks and flag overdue ones.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE:  runServe,
}

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run a background job once and exit",
}

var cronRoutinaryCmd = &cobra.Command{
	Use:   "routinary",
	Short: "Spawn tasks for due recurring services",
	RunE:  runCronRoutinary,
}

var cronOverdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Flag overdue tasks and clear stale flags",
	RunE:  runCronOverdue,
}

var (
	createUserEmail string
	createUserName  string
	createUserPass  string
	createUserSuper bool
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a user account",
	Long: `Creates a user directly in the database. There is no public
signup endpoint; accounts are provisioned by an operator.`,
	RunE: runCreateUser,
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file")

	createUserCmd.Flags().StringVar(&createUserEmail, "email", "", "email address (required)")
	createUserCmd.Flags().StringVar(&createUserName, "name", "", "display name (required)")
	createUserCmd.Flags().StringVar(&createUserPass, "password", "", "initial password (required)")
	createUserCmd.Flags().BoolVar(&createUserSuper, "super-admin", false, "grant super-admin access")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("name")
	_ = createUserCmd.MarkFlagRequired("password")

	cronCmd.AddCommand(cronRoutinaryCmd, cronOverdueCmd)
	rootCmd.AddCommand(serveCmd, cronCmd, createUserCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openStore loads configuration and opens the SQLite store.
func openStore() (*config.AppConfig, *store.SQLiteStore, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	return cfg, st, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	hub := notify.NewHub()
	notifier := notify.NewNotifier(st, hub, logger)
	limiter := ratelimit.New(cfg.RateLimit.PasswordResetMax, cfg.PasswordResetWindow())
	sched := scheduler.New(st, logger, cfg.RoutinaryInterval(), cfg.OverdueInterval())
	mail := mailer.New(cfg.SMTP, logger)

	api := httpapi.NewServer(httpapi.Deps{
		Store:        st,
		Limiter:      limiter,
		Notifier:     notifier,
		Hub:          hub,
		Scheduler:    sched,
		Mailer:       mail,
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		SessionTTL:   cfg.SessionTTL(),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start()
	defer sched.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runCronRoutinary(cmd *cobra.Command, args []string) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sched := scheduler.New(st, logger, cfg.RoutinaryInterval(), cfg.OverdueInterval())
	result, err := sched.RunRoutinary(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("processed %d services, created %d tasks, skipped %d, %d failures\n",
		result.Processed, result.TasksCreated, result.Skipped, len(result.Failures))
	return nil
}

func runCronOverdue(cmd *cobra.Command, args []string) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sched := scheduler.New(st, logger, cfg.RoutinaryInterval(), cfg.OverdueInterval())
	result, err := sched.RunOverdue(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("marked %d tasks overdue, cleared %d flags\n", result.Marked, result.Cleared)
	return nil
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(createUserPass), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := model.User{
		Email:        createUserEmail,
		Name:         createUserName,
		PasswordHash: string(hash),
		SuperAdmin:   createUserSuper,
	}
	if err := st.CreateUser(cmd.Context(), user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	fmt.Printf("created user %s\n", createUserEmail)
	return nil
}
