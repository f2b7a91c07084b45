package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/skulanov/OP-test/internal/handler"
	appI18n "github.com/skulanov/OP-test/internal/i18n"
	"github.com/skulanov/OP-test/internal/model"
	"github.com/skulanov/OP-test/internal/parser"
	"github.com/skulanov/OP-test/internal/source"
	"github.com/skulanov/OP-test/internal/store"
	"github.com/skulanov/OP-test/internal/telegram"
)

func main() {
	// Values from .env surface through viper's AutomaticEnv.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "optest",
		Short:         "Chapter-based multiple-choice quiz",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serve := serveCmd()
	root.AddCommand(serve, botCmd(), checkCmd(), importCmd(), exportCmd(), listCmd(), deleteCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `optest --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func logFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func dbFlags(f *pflag.FlagSet) {
	f.String("db-driver", string(store.DriverSQLite), "Catalogue driver (sqlite, postgres)")
	f.String("db", "optest.db", "Catalogue DSN (SQLite path or Postgres URL)")
}

func bankFlags(f *pflag.FlagSet) {
	f.StringP("bank", "b", "questions.txt", "Question bank file path or http(s) URL")
	f.String("bank-name", "", "Load the bank from the catalogue instead of --bank")
	f.String("alphabet", parser.DefaultAlphabet, "Option letters, in order")
	f.String("marker", parser.DefaultMarker, "Glyph that flags the correct option")
	dbFlags(f)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	bankFlags(f)
	f.StringP("lang", "l", "ru", "UI language (ru, en)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /op)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.StringSlice("cors-origins", nil, "Origins allowed to call /api (repeatable)")
	f.Uint64("seed", 0, "Question selection seed (0 = random per session)")
	f.Duration("session-ttl", 2*time.Hour, "Drop browser sessions idle for this long (0 = never)")
	f.Int("max-sessions", 10000, "Keep at most this many browser sessions, evicting the least recently used (0 = no cap)")
	logFlags(f)
	return cmd
}

func botCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the quiz as a Telegram bot",
		RunE:  runBot,
	}
	f := cmd.Flags()
	f.String("token", "", "Telegram bot token (or set OPTEST_TOKEN)")
	bankFlags(f)
	f.StringP("lang", "l", "ru", "Bot language (ru, en)")
	f.Uint64("seed", 0, "Question selection seed (0 = random per chat)")
	f.Duration("chat-ttl", 24*time.Hour, "Drop chats idle for this long (0 = never)")
	f.Int("max-chats", 10000, "Keep at most this many chats, evicting the least recently used (0 = no cap)")
	logFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("OPTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("optest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/optest")
	v.AddConfigPath("/etc/optest")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	driver := store.Driver(strings.ToLower(v.GetString("db-driver")))
	dsn := v.GetString("db")
	// Plain SQLite paths get the busy-timeout and WAL pragmas.
	if driver == store.DriverSQLite && dsn != "" && !strings.HasPrefix(dsn, "file:") {
		return store.New(dsn)
	}
	return store.Open(ctx, driver, dsn)
}

func newParser(v *viper.Viper) (*parser.Parser, error) {
	p, err := parser.New(v.GetString("alphabet"), v.GetString("marker"))
	if err != nil {
		return nil, fmt.Errorf("configure parser: %w", err)
	}
	return p, nil
}

// loadBank resolves the bank for serve and bot: from the catalogue when
// bank-name is set, otherwise fetched and parsed from bank. Configuration
// errors are returned as err; fetch failures come back as loadErr so the
// quiz can show its load failure state.
func loadBank(ctx context.Context, v *viper.Viper) (bank model.Bank, loadErr, err error) {
	if name := v.GetString("bank-name"); name != "" {
		db, err := openStore(ctx, v)
		if err != nil {
			return nil, nil, fmt.Errorf("open catalogue: %w", err)
		}
		defer db.Close()
		info, bank, err := db.LoadBank(ctx, name)
		if err != nil {
			slog.Error("failed to load bank from catalogue", "name", name, "error", err)
			return nil, err, nil
		}
		slog.Info("loaded questions", "bank", info.Name, "source", info.Source, "count", len(bank))
		return bank, nil, nil
	}

	p, err := newParser(v)
	if err != nil {
		return nil, nil, err
	}
	location := v.GetString("bank")
	raw, fetchErr := source.Fetch(ctx, location)
	if errors.Is(fetchErr, source.ErrEmptyLocation) {
		return nil, nil, fmt.Errorf("no question bank: set --bank or --bank-name")
	}
	if fetchErr != nil {
		slog.Error("failed to load questions", "location", location, "error", fetchErr)
		return nil, fetchErr, nil
	}

	res := p.Parse(raw)
	for _, is := range res.Issues {
		slog.Debug("skipped bank entry", "line", is.Line, "prompt", is.Prompt, "reason", is.Kind)
	}
	slog.Info("loaded questions", "location", location, "count", len(res.Questions), "skipped", len(res.Issues))
	return res.Questions, nil, nil
}

func normalizeBasePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	bank, loadErr, err := loadBank(ctx, v)
	if err != nil {
		return err
	}

	basePath := normalizeBasePath(v.GetString("base-path"))
	cfg := model.QuizConfig{
		Seed:          v.GetUint64("seed"),
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		SessionTTL:    v.GetDuration("session-ttl"),
		MaxSessions:   v.GetInt("max-sessions"),
		CORSOrigins:   v.GetStringSlice("cors-origins"),
	}

	h, err := handler.New(bank, loadErr, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}
	go h.Sessions().Run(ctx, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"questions", len(bank),
		"base_path", basePath,
		"session_ttl", cfg.SessionTTL,
		"max_sessions", cfg.MaxSessions,
		"seed", cfg.Seed,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	token := v.GetString("token")
	if token == "" {
		return fmt.Errorf("telegram token is required: set --token or OPTEST_TOKEN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	bank, loadErr, err := loadBank(ctx, v)
	if err != nil {
		return err
	}

	api, err := telegram.Connect(token)
	if err != nil {
		return err
	}

	bot := telegram.New(api, bank, loadErr, telegram.Config{
		Lang:     lang,
		Seed:     v.GetUint64("seed"),
		ChatTTL:  v.GetDuration("chat-ttl"),
		MaxChats: v.GetInt("max-chats"),
	})
	slog.Info("bot is running", "questions", len(bank), "lang", lang)
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
