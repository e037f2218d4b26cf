package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"podsearch/internal/cache"
	"podsearch/internal/client"
	"podsearch/internal/config"
	"podsearch/internal/source/itunes"
)

const usage = `Type to search. Each line replaces the current input.
  (blank line)  clear and show recent results
  /go           search the current input now
  /recent       show recent results
  /health       check the backend
  /quit         exit
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	backendURL := flag.String("backend", "", "backend base URL (overrides config)")
	logLevel := flag.String("log-level", "warn", "log level written to stderr")
	flag.Parse()

	logger := setupLogger(*logLevel)

	cfg, err := config.Load(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *backendURL != "" {
		cfg.Client.BackendURL = *backendURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("client error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	catalog := itunes.New(itunes.Config{
		BaseURL: cfg.Catalog.BaseURL,
		Limit:   cfg.Catalog.Limit,
		Timeout: cfg.Catalog.Timeout,
	}, logger)

	api := client.New(client.Config{
		BackendURL:    cfg.Client.BackendURL,
		CacheTTL:      cfg.Client.CacheTTL,
		SearchTimeout: cfg.Client.SearchTimeout,
		RecentTimeout: cfg.Client.RecentTimeout,
		HealthTimeout: cfg.Client.HealthTimeout,
	}, logger,
		client.WithCache(cache.NewMemory()),
		client.WithCatalog(catalog),
	)

	view := newTerminalView(out)
	session := client.NewSession(ctx, api, view, client.SessionConfig{
		MinLength: cfg.Client.MinLength,
		Debounce:  cfg.Client.Debounce,
	}, logger)
	defer session.Close()

	view.println("%s", usage)
	session.ShowRecent()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				session.Wait()
				return <-scanErr
			}
			if quit := handleLine(ctx, line, session, api, view); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, line string, session *client.Session, api *client.Client, view *terminalView) bool {
	switch strings.TrimSpace(line) {
	case "/quit":
		return true
	case "/go":
		session.Submit()
	case "/recent":
		session.ShowRecent()
	case "/health":
		h, err := api.Health(ctx)
		view.Health(h, err)
	default:
		session.Type(line)
	}
	return false
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: podsearch [flags]\n\n%s\nFlags:\n", usage)
		flag.PrintDefaults()
	}
}
