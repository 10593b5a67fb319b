// Command webgaze answers questions by letting a vision model browse
// the web: it drives a Chrome session, shows the model annotated
// screenshots, and executes the model's navigate/click decisions until
// the model answers in plain text.
//
// Usage:
//
//	webgaze                          # interactive, defaults
//	webgaze -config webgaze.yaml     # from config file
//	webgaze -headful -admin :8086    # watch the browser, serve diagnostics
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/webgaze/admin"
	"github.com/hazyhaar/webgaze/audit"
	"github.com/hazyhaar/webgaze/browser"
	"github.com/hazyhaar/webgaze/config"
	"github.com/hazyhaar/webgaze/crawl"
	"github.com/hazyhaar/webgaze/llm"
	"github.com/hazyhaar/webgaze/render"
)

const welcomeBanner = `
###################################
# webgaze — vision-model browsing #
###################################

GPT: How can I assist you today?
`

func main() {
	configPath := flag.String("config", "", "path to webgaze.yaml config file")
	seedURL := flag.String("url", "", "seed URL rendered before the first question")
	adminAddr := flag.String("admin", "", "address for the diagnostics HTTP server")
	headful := flag.Bool("headful", false, "show the browser window")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *seedURL, *adminAddr, *headful); err != nil {
		logger.Error("webgaze: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, seedURL, adminAddr string, headful bool) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if seedURL != "" {
		cfg.Crawl.SeedURL = seedURL
	}
	if adminAddr != "" {
		cfg.Admin.Addr = adminAddr
	}
	if headful {
		cfg.Browser.Headful = true
	}
	if v := os.Getenv("WEBGAZE_MODEL_URL"); v != "" {
		cfg.Model.BaseURL = v
	}

	model := llm.New(llm.Config{
		BaseURL: cfg.Model.BaseURL,
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Timeout: cfg.Model.Timeout,
		Logger:  logger,
	})

	mgr := browser.NewManager(browser.Config{
		RemoteURL:      cfg.Browser.Remote,
		Headless:       !cfg.Browser.Headful,
		Stealth:        cfg.Browser.Stealth,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		Logger:         logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	session, err := mgr.NewSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	renderer := render.New(render.Config{
		Path:          cfg.Render.Path,
		Quality:       cfg.Render.Quality,
		MaxWidth:      cfg.Render.MaxWidth,
		SettleTimeout: cfg.Render.SettleTimeout,
		Logger:        logger,
	})

	var auditStore *audit.Store
	if cfg.Audit.Path != "" {
		db, err := sql.Open("sqlite", cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("open audit db: %w", err)
		}
		defer db.Close()
		auditStore = audit.NewStore(db)
		if err := auditStore.Init(); err != nil {
			return fmt.Errorf("init audit db: %w", err)
		}
		defer auditStore.Close()
	}

	executor := crawl.NewExecutor(session, renderer, crawl.ExecutorConfig{
		NavigateTimeout: cfg.Crawl.NavigateTimeout,
		ClickTimeout:    cfg.Crawl.ClickTimeout,
		BlockPrivate:    cfg.Crawl.BlockPrivate,
		Logger:          logger,
	})

	loop := crawl.NewLoop(model, executor, crawl.LoopConfig{
		Model:       cfg.Model.Decision,
		SeedURL:     cfg.Crawl.SeedURL,
		MaxTokens:   cfg.Model.MaxTokens,
		MaxAttempts: cfg.Crawl.MaxAttempts,
		Audit:       auditStore,
		Logger:      logger,
	})

	if cfg.Admin.Addr != "" {
		srv, err := adminServer(cfg, loop, logger)
		if err != nil {
			return err
		}
		srv.Start()
		defer srv.Shutdown(context.Background())
	}

	return console(ctx, loop)
}

func adminServer(cfg *config.Config, loop *crawl.Loop, logger *slog.Logger) (*admin.Server, error) {
	var hash []byte
	if password := os.Getenv("AUTH_PASSWORD"); password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		hash = h
	}
	return admin.New(admin.Config{
		Addr:         cfg.Admin.Addr,
		PasswordHash: hash,
		SnapshotPath: cfg.Render.Path,
		Turns:        loop.Turns,
		State:        func() string { return loop.State().String() },
		Logger:       logger,
	}), nil
}

// console runs the line-oriented question/answer loop.
func console(ctx context.Context, loop *crawl.Loop) error {
	fmt.Print(welcomeBanner)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		answer, err := loop.Ask(ctx, question)
		if err != nil {
			if errors.Is(err, crawl.ErrAttemptsExhausted) {
				fmt.Println("GPT: I could not find an answer within the attempt budget.")
				continue
			}
			return err
		}
		fmt.Println("GPT: " + answer)
	}
}
