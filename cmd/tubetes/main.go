package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/tubetes/internal/api"
	"github.com/erazemk/tubetes/internal/auth"
	"github.com/erazemk/tubetes/internal/db"
	"github.com/erazemk/tubetes/internal/flatfile"
	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/model"
	"github.com/erazemk/tubetes/internal/store"
	"github.com/erazemk/tubetes/internal/web"
)

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
	return &levelRouter{stdout: lr.stdout.WithAttrs(attrs), stderr: lr.stderr.WithAttrs(attrs)}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{stdout: lr.stdout.WithGroup(name), stderr: lr.stderr.WithGroup(name)}
}

// setupLogger installs the default logger. When logPath is set every level is
// also appended to that file; the returned func closes it.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	stdoutW, stderrW := io.Writer(os.Stdout), io.Writer(os.Stderr)
	cleanup := func() {}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(slog.New(&levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}))
	return cleanup, nil
}

type config struct {
	dbPath    string
	addr      string
	adminUser string
	logPath   string
	backend   string
	dataDir   string
	partial   string
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("tubetes", flag.ContinueOnError)
	cfg := &config{}

	fs.StringVar(&cfg.dbPath, "db", "tubetes.sqlite3", "")
	fs.StringVar(&cfg.dbPath, "d", "tubetes.sqlite3", "")
	fs.StringVar(&cfg.addr, "addr", ":8080", "")
	fs.StringVar(&cfg.addr, "a", ":8080", "")
	fs.StringVar(&cfg.adminUser, "user", "Admin", "")
	fs.StringVar(&cfg.adminUser, "u", "Admin", "")
	fs.StringVar(&cfg.logPath, "log", "", "")
	fs.StringVar(&cfg.logPath, "l", "", "")
	fs.StringVar(&cfg.backend, "store", "csv", "")
	fs.StringVar(&cfg.backend, "s", "csv", "")
	fs.StringVar(&cfg.dataDir, "data", "dados", "")
	fs.StringVar(&cfg.partial, "partial", "close", "")
	fs.StringVar(&cfg.partial, "p", "close", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: tubetes [flags]

Flags:
  -d, -db <path>          SQLite database path (default: tubetes.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -s, -store <backend>    ledger storage: csv or sqlite (default: csv)
      -data <dir>         directory of the CSV tables (default: dados)
  -p, -partial <policy>   partial withdrawals: close or split (default: close)
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if cfg.backend != "csv" && cfg.backend != "sqlite" {
		return nil, fmt.Errorf("unknown store %q (want csv or sqlite)", cfg.backend)
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	policy, err := ledger.ParsePartialPolicy(cfg.partial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if _, err := os.Stat(cfg.dbPath); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.dbPath, cfg.adminUser)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		printInitResult(cfg.dbPath, cfg.adminUser, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "path", cfg.dbPath)

	ctx := context.Background()

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}

	if n, err := store.PurgeExpiredTokens(ctx, database, time.Now()); err != nil {
		slog.Warn("failed to purge expired tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged expired tokens", "count", n)
	}

	led, err := openLedger(ctx, cfg, database, policy)
	if err != nil {
		slog.Error("failed to load ledger", "store", cfg.backend, "error", err)
		os.Exit(1)
	}
	slog.Info("ledger loaded", "store", cfg.backend, "partial", string(policy),
		"types", len(led.Types()), "batches", len(led.Batches()))

	apiRouter := api.NewRouter(database, led, jwtSecret, time.Local)
	webRouter, err := web.NewRouter(database, led, jwtSecret, time.Local)
	if err != nil {
		slog.Error("failed to set up web router", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)

	server := &http.Server{
		Addr:              cfg.addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}

// openLedger loads the catalog and ledger from the selected backend. The
// backend in use is remembered in settings so a switch between runs, which
// starts from a different set of tables, is reported.
func openLedger(ctx context.Context, cfg *config, database *sql.DB, policy ledger.PartialPolicy) (*ledger.Ledger, error) {
	var p ledger.Persister
	switch cfg.backend {
	case "sqlite":
		p = &store.Tables{DB: database}
	default:
		files, err := flatfile.New(cfg.dataDir, time.Local)
		if err != nil {
			return nil, err
		}
		p = files
	}

	prev, err := store.GetSetting(ctx, database, store.SettingLedgerBackend)
	if err != nil {
		return nil, err
	}
	if prev != "" && prev != cfg.backend {
		slog.Warn("ledger store changed since last run, data is not migrated",
			"previous", prev, "current", cfg.backend)
	}
	if prev != cfg.backend {
		if err := store.SetSetting(ctx, database, store.SettingLedgerBackend, cfg.backend); err != nil {
			return nil, err
		}
	}

	return ledger.Open(ctx, p, ledger.Options{Partial: policy})
}

// initDatabase creates a new database, ensures the schema, and creates the admin user.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}
	fail := func(step string, err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("%s: %w", step, err)
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail("ensuring schema", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail("generating password", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fail("hashing password", err)
	}

	if _, err := store.CreateUser(context.Background(), database, adminUsername, hash, model.RoleAdmin); err != nil {
		return fail("creating admin user", err)
	}
	return database, password, nil
}

func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
