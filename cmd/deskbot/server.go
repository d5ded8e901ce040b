package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/fieldline/deskbot/internal/api"
	"github.com/fieldline/deskbot/internal/chat"
	"github.com/fieldline/deskbot/internal/config"
	"github.com/fieldline/deskbot/internal/corpus"
	"github.com/fieldline/deskbot/internal/llm"
	"github.com/fieldline/deskbot/internal/search"
	"github.com/fieldline/deskbot/internal/session"
	"github.com/fieldline/deskbot/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the deskbot server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running deskbot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show deskbot system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "deskbot.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "deskbot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("missing required config: Anthropic API key. Set it via environment variable DESKBOT_ANTHROPIC_API_KEY")
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/api/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("deskbot is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("deskbot is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Load the corpus. Missing sources degrade; the server still starts.
	corp := corpus.NewStore(store)
	if err := corp.Load(ctx, cfg.Storage.DataDir); err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	if cfg.Storage.ManualsDir != "" {
		if err := corp.LoadManualsDir(cfg.Storage.ManualsDir); err != nil {
			slog.Warn("failed to load PDF manuals", "dir", cfg.Storage.ManualsDir, "error", err)
		}
	}
	st := corp.Status()
	slog.Info("corpus loaded",
		"kb", st.KB.Count, "tickets", st.Tickets.Count,
		"pages", st.Pages.Count, "corrections", st.Corrections.Count)

	retriever := search.NewRetriever(corp, search.Limits{
		KB:                 cfg.Retrieval.KBLimit,
		Tickets:            cfg.Retrieval.TicketLimit,
		Pages:              cfg.Retrieval.PageLimit,
		Corrections:        cfg.Retrieval.CorrectionLimit,
		MinScore:           cfg.Retrieval.MinScore,
		CorrectionMinScore: cfg.Retrieval.CorrectionMinScore,
	})

	sessions := session.NewManager(cfg.SessionIdleTimeout(), 0)
	go sessions.Run(ctx)

	llmClient := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.Model)
	chatSvc := chat.NewService(retriever, sessions, llmClient, store, cfg.LLMTimeout())

	handler := api.NewAppHandler(api.AppDeps{
		Chat:         chatSvc,
		Corpus:       corp,
		Sessions:     sessions,
		Interactions: store,
		AdminToken:   cfg.Server.AdminToken,
		StartedAt:    time.Now(),
	})
	if cfg.Server.AdminToken == "" {
		slog.Warn("admin token not set, admin endpoints are disabled")
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Corpus:       corp,
		Retriever:    retriever,
		Interactions: store,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "deskbot listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("deskbot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop deskbot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to deskbot (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}

	resp, err := client.get(ctx, "/api/health")
	if err != nil {
		printStatus("Server", "stopped")
		printStatus("Model", "%s", cfg.LLM.Model)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	}

	var health struct {
		UptimeSeconds  int `json:"uptimeSeconds"`
		ActiveSessions int `json:"activeSessions"`
		Sources        map[string]struct {
			Loaded bool `json:"loaded"`
			Count  int  `json:"count"`
		} `json:"sources"`
	}
	if err := decodeJSON(resp, &health); err != nil {
		printStatus("Server", "error (%v)", err)
		return nil
	}
	printStatus("Server", "running on port %d", cfg.Server.Port)
	printStatus("Uptime", "%s", (time.Duration(health.UptimeSeconds) * time.Second).String())
	printStatus("Active sessions", "%d", health.ActiveSessions)
	for _, name := range []string{"kb", "tickets", "pages", "corrections"} {
		src, ok := health.Sources[name]
		if !ok {
			continue
		}
		state := "not loaded"
		if src.Loaded {
			state = fmt.Sprintf("%d entries", src.Count)
		}
		printStatus(name, "%s", state)
	}

	printStatus("Model", "%s", cfg.LLM.Model)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
