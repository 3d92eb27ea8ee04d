package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/evidenca/internal/api"
	"github.com/erazemk/evidenca/internal/auth"
	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/config"
	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/mail"
	"github.com/erazemk/evidenca/internal/mock"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
	"github.com/erazemk/evidenca/internal/web"
)

// cleanupInterval is how often expired tokens are purged.
const cleanupInterval = time.Hour

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Parse(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	uiOpts := web.Options{Secure: cfg.Secure()}

	if cfg.APIURL != "" {
		// UI only, against a remote API.
		uiOpts.APIURL = cfg.APIURL
		slog.Info("using remote api", "url", cfg.APIURL)
	} else {
		mailer, err := newMailer(ctx, cfg)
		if err != nil {
			return err
		}
		apiOpts := api.Options{Mailer: mailer, BaseURL: cfg.BaseURL}

		var apiRouter http.Handler
		var accounts backend.Accounts
		switch cfg.Backend {
		case config.BackendMock:
			ms := mock.New(mock.DefaultSeed)
			if admin, ok := ms.FirstUser(model.RoleAdmin); ok {
				slog.Info("mock backend ready", "admin", admin.Email, "password", mock.DefaultSeed.Password)
			}
			apiRouter = mock.NewServer(ms, apiOpts)
			accounts = ms.Accounts
		default:
			database, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			// Load JWT secret from database (auto-generated on first run).
			if apiOpts.JWTSecret, err = store.GetJWTSecret(ctx, database); err != nil {
				return fmt.Errorf("getting JWT secret: %w", err)
			}
			st := store.New(database)
			apiRouter = api.NewRouter(st.Backend(), apiOpts)
			accounts = st.Accounts
		}

		go auth.RunCleanup(ctx, accounts, cleanupInterval)
		mux.Handle("/api/", apiRouter)
		uiOpts.API = apiRouter
	}

	ui, err := web.NewServer(uiOpts)
	if err != nil {
		return fmt.Errorf("setting up web ui: %w", err)
	}
	// API routes take priority, web routes handle the rest.
	mux.Handle("/", ui.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())
		cancel()

		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()

		if err := server.Shutdown(sctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "backend", cfg.Backend)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func newMailer(ctx context.Context, cfg *config.Config) (mail.Mailer, error) {
	if cfg.Mail != config.MailSES {
		return &mail.Log{}, nil
	}
	ses, err := mail.NewSES(ctx, cfg.Region, cfg.MailFrom)
	if err != nil {
		return nil, fmt.Errorf("setting up SES: %w", err)
	}
	slog.Info("sending mail through SES", "from", cfg.MailFrom)
	return ses, nil
}

// openDatabase opens the SQLite database, creating it with an admin account
// on first run.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	_, statErr := os.Stat(cfg.DBPath)
	fresh := os.IsNotExist(statErr)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring database schema: %w", err)
	}

	if fresh {
		password, err := createAdmin(ctx, database, cfg.Admin)
		if err != nil {
			database.Close()
			os.Remove(cfg.DBPath)
			return nil, fmt.Errorf("creating admin account: %w", err)
		}
		printInitResult(cfg.DBPath, cfg.Admin, password)
	}

	slog.Info("database ready", "path", cfg.DBPath)
	return database, nil
}

// createAdmin registers a verified administrator with a random password.
func createAdmin(ctx context.Context, database *sqlx.DB, email string) (string, error) {
	password, err := auth.GeneratePassword()
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	accounts := store.New(database).Accounts
	user, err := accounts.Register(ctx, &model.User{Name: "Administrator", Email: email, Role: model.RoleAdmin, Locale: "en-US"}, hash)
	if err != nil {
		return "", err
	}
	if err := accounts.MarkEmailVerified(ctx, user.ID); err != nil {
		return "", err
	}
	return password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, email, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after signing in.")
	fmt.Println()
}
