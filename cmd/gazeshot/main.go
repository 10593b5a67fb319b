// Command gazeshot is the single-shot sibling of webgaze: for each
// question a text model proposes a URL, the page is captured once, and
// a vision model answers from the screenshot or sends the picker back
// for a different URL.
//
// Usage:
//
//	gazeshot                                  # in-browser capture
//	gazeshot -capture "node screenshot.js"    # external capture tool
//	gazeshot -mcp                             # serve as an MCP stdio tool
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

	"github.com/kballard/go-shellquote"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/webgaze/audit"
	"github.com/hazyhaar/webgaze/browser"
	"github.com/hazyhaar/webgaze/config"
	"github.com/hazyhaar/webgaze/crawl"
	"github.com/hazyhaar/webgaze/llm"
	"github.com/hazyhaar/webgaze/render"
)

func main() {
	configPath := flag.String("config", "", "path to webgaze.yaml config file")
	captureCmd := flag.String("capture", "", "external capture command; the URL is appended as the last argument")
	mcpMode := flag.Bool("mcp", false, "serve the answerer as an MCP tool over stdio")
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

	if err := run(ctx, logger, *configPath, *captureCmd, *mcpMode); err != nil {
		logger.Error("gazeshot: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, captureCmd string, mcpMode bool) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
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

	capture, cleanup, err := buildCapturer(ctx, cfg, captureCmd, logger)
	if err != nil {
		return err
	}
	defer cleanup()

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

	shot := crawl.NewOneShot(model, capture, crawl.OneShotConfig{
		PickerModel: cfg.Model.Picker,
		VisionModel: cfg.Model.Vision,
		Seed:        cfg.Crawl.Seed,
		MaxTokens:   cfg.Model.MaxTokens,
		MaxAttempts: cfg.Crawl.MaxAttempts,
		Audit:       auditStore,
		Logger:      logger,
	})

	if mcpMode {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "gazeshot",
			Version: "1.0.0",
		}, nil)
		shot.RegisterMCP(srv)
		logger.Info("gazeshot: serving MCP over stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	}

	return console(ctx, shot)
}

// buildCapturer wires either the external capture tool or an
// in-process browser session.
func buildCapturer(ctx context.Context, cfg *config.Config, captureCmd string, logger *slog.Logger) (crawl.Capturer, func(), error) {
	if captureCmd != "" {
		argv, err := shellquote.Split(captureCmd)
		if err != nil {
			return nil, nil, fmt.Errorf("parse capture command: %w", err)
		}
		return &render.ExecCapturer{
			Command: argv,
			Path:    cfg.Render.Path,
			Quality: cfg.Render.Quality,
			Logger:  logger,
		}, func() {}, nil
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:      cfg.Browser.Remote,
		Headless:       !cfg.Browser.Headful,
		Stealth:        cfg.Browser.Stealth,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		Logger:         logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return nil, nil, err
	}
	session, err := mgr.NewSession(ctx)
	if err != nil {
		mgr.Close()
		return nil, nil, err
	}

	renderer := render.New(render.Config{
		Path:          cfg.Render.Path,
		Quality:       cfg.Render.Quality,
		MaxWidth:      cfg.Render.MaxWidth,
		SettleTimeout: cfg.Render.SettleTimeout,
		Logger:        logger,
	})
	executor := crawl.NewExecutor(session, renderer, crawl.ExecutorConfig{
		NavigateTimeout: cfg.Crawl.NavigateTimeout,
		BlockPrivate:    cfg.Crawl.BlockPrivate,
		Logger:          logger,
	})

	cleanup := func() {
		session.Close()
		mgr.Close()
	}
	return crawl.CaptureFunc(executor.Navigate), cleanup, nil
}

// console runs the line-oriented question/answer loop. Unlike webgaze,
// every question restarts from URL selection.
func console(ctx context.Context, shot *crawl.OneShot) error {
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

		answer, err := shot.Ask(ctx, question)
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
