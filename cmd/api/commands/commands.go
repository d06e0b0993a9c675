package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/taskmaster/taskhub/internal/adapters/http"
	"github.com/taskmaster/taskhub/internal/adapters/notify"
	"github.com/taskmaster/taskhub/internal/adapters/repository"
	"github.com/taskmaster/taskhub/internal/application/services"
	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/infrastructure/config"
	"github.com/taskmaster/taskhub/internal/infrastructure/database"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/infrastructure/metrics"
	"github.com/taskmaster/taskhub/internal/infrastructure/server"
)

// Set at build time with -ldflags "-X .../commands.Version=..."
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "development"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the TaskHub API server",
		Long:  "Start the API server, the WebSocket hub and the event dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrateFirst, _ := cmd.Flags().GetBool("migrate")
			return runServer(cmd.Context(), migrateFirst)
		},
	}

	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return runMigration("up", steps)
		},
	}
	upCmd.Flags().Int("steps", 0, "Number of migrations to apply (0 = all)")

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return runMigration("down", steps)
		},
	}
	downCmd.Flags().Int("steps", 0, "Number of migrations to revert (0 = all)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMigrationVersion()
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, versionCmd)
	return migrateCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
	}

	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user; the only way to create an admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")

			return createUser(cmd.Context(), cmd.OutOrStdout(), name, email, password, role)
		},
	}

	createUserCmd.Flags().String("name", "", "Display name (required)")
	createUserCmd.Flags().String("email", "", "User email (required)")
	createUserCmd.Flags().String("password", "", "User password, at least 8 characters (required)")
	createUserCmd.Flags().String("role", "user", "User role (user, admin)")
	_ = createUserCmd.MarkFlagRequired("name")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")

	getUserCmd := &cobra.Command{
		Use:   "get",
		Short: "Show a user by ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			return showUser(cmd.Context(), cmd.OutOrStdout(), id)
		},
	}

	getUserCmd.Flags().String("id", "", "User ID (required)")
	_ = getUserCmd.MarkFlagRequired("id")

	userCmd.AddCommand(createUserCmd, getUserCmd)
	return userCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print TaskHub version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TaskHub %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "Git Commit: %s\n", GitCommit)
		},
	}
}

func runServer(ctx context.Context, migrateFirst bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	db, err := database.New(cfg.Database)
	if err != nil {
		appLogger.Errorw("Failed to connect to database", "error", err)
		return err
	}
	defer db.Close()

	if migrateFirst {
		if err := migrateUp(db, appLogger); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	hub := notify.NewHub(m, appLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	// Without Redis, events go straight to the local hub. With it, every instance publishes to
	// Redis and relays the whole event stream to its own hub.
	var sink notify.Sink = hub
	if cfg.Redis.Enabled {
		client, err := notify.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			appLogger.Errorw("Failed to connect to Redis", "error", err)
			stop()
			_ = g.Wait()
			return err
		}
		defer client.Close()

		sink = notify.NewRedisSink(client, cfg.Redis.ChannelPrefix)
		relay := notify.NewRedisRelay(client, cfg.Redis.ChannelPrefix, hub, appLogger)
		g.Go(func() error {
			return relay.Run(gctx, nil)
		})
	}

	dispatcher := notify.NewDispatcher(sink, cfg.Events.BufferSize, cfg.Events.Workers, m, appLogger)
	dispatcher.Start()

	userRepo := repository.NewUserRepository(db.DB)
	taskRepo := repository.NewTaskRepository(db.DB)
	transactor := repository.NewTransactor(db.DB)

	authService := services.NewAuthService(userRepo, cfg.JWT, appLogger)
	taskService := services.NewTaskService(taskRepo, transactor, dispatcher, m, appLogger)

	srv := server.New(cfg, db, m, appLogger, authService, httpadapter.Handlers{
		Auth: httpadapter.NewAuthHandler(authService, appLogger),
		Task: httpadapter.NewTaskHandler(taskService, appLogger),
		WS:   httpadapter.NewWSHandler(hub, appLogger),
	})

	appLogger.Infow("Starting TaskHub API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"redis", cfg.Redis.Enabled,
	)

	g.Go(func() error {
		return srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		dispatcher.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		appLogger.Errorw("Server stopped with error", "error", err)
		return err
	}

	appLogger.Infow("Server stopped")
	return nil
}

func migrateUp(db *database.DB, appLogger *logger.Logger) error {
	migrator, err := database.NewMigrator(db)
	if err != nil {
		return err
	}

	changed, err := migrator.Up(0)
	if err != nil {
		return err
	}
	appLogger.Infow("Database schema ready", "migrated", changed)
	return nil
}

func runMigration(direction string, steps int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db)
	if err != nil {
		return err
	}

	var changed bool
	switch direction {
	case "up":
		changed, err = migrator.Up(steps)
	case "down":
		changed, err = migrator.Down(steps)
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil {
		return err
	}

	if !changed {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
	return nil
}

func showMigrationVersion() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db)
	if err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
	return nil
}

func createUser(ctx context.Context, w io.Writer, name, email, password, role string) error {
	return withUserService(func(userService *services.UserService) error {
		user, err := userService.CreateUser(ctx, name, email, password, role)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Fprintf(w, "User created successfully:\n")
		printUser(w, user)
		return nil
	})
}

func showUser(ctx context.Context, w io.Writer, id string) error {
	return withUserService(func(userService *services.UserService) error {
		user, err := userService.GetUser(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}

		printUser(w, user)
		return nil
	})
}

func withUserService(fn func(*services.UserService) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(services.NewUserService(repository.NewUserRepository(db.DB), logger.NewNop()))
}

func printUser(w io.Writer, user *entities.User) {
	fmt.Fprintf(w, "  ID: %s\n", user.ID)
	fmt.Fprintf(w, "  Name: %s\n", user.Name)
	fmt.Fprintf(w, "  Email: %s\n", user.Email)
	fmt.Fprintf(w, "  Role: %s\n", user.Role)
	fmt.Fprintf(w, "  Created: %s\n", user.CreatedAt.Format(time.RFC3339))
}
