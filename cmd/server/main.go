package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/cinequery/internal/config"
	"github.com/rpggio/cinequery/internal/domain/audit"
	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/pipeline"
	"github.com/rpggio/cinequery/internal/domain/query"
	"github.com/rpggio/cinequery/internal/llm"
	"github.com/rpggio/cinequery/internal/mcp"
	"github.com/rpggio/cinequery/internal/repository"
	"github.com/rpggio/cinequery/internal/snapshot"
	"github.com/rpggio/cinequery/internal/sqlite"
	"github.com/rpggio/cinequery/internal/transport"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == config.ModeStdio {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("CINEQUERY_LOG_PATH"); logPath != "" {
		fileWriter, file, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		return err
	}

	keyRepo := sqlite.NewAPIKeyRepository(db)
	if err := seedAPIKeys(ctx, keyRepo, cfg.Auth.Keys); err != nil {
		return err
	}
	auditSvc := audit.NewService(sqlite.NewAuditRepository(db), logger)

	// The dataset must load before anything is served.
	src, err := snapshot.Open(ctx, cfg.Dataset.Source, snapshot.Options{S3: snapshot.S3Config{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	}})
	if err != nil {
		return err
	}
	store := movie.NewStore(logger)
	if _, err := store.Load(ctx, src); err != nil {
		return err
	}

	executor, err := newExecutor(store, cfg.Dataset)
	if err != nil {
		return err
	}

	if cfg.LLM.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; natural-language questions will fail, structured search still works")
	}
	client := llm.NewClient(llm.Config{
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		Endpoint:   cfg.LLM.Endpoint,
		MaxRetries: cfg.LLM.MaxRetries,
		Logger:     logger,
	})

	pipelineSvc := pipeline.NewService(
		llm.NewTranslator(client),
		llm.NewSynthesizer(client),
		executor,
		logger,
		pipeline.WithCallTimeout(cfg.LLM.Timeout),
		pipeline.WithAudit(auditSvc),
	)

	mcpServer := mcp.NewServer(mcp.Config{
		Pipeline:      pipelineSvc,
		Resolver:      keyRepo,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		Version:       version,
		Logger:        logger,
	})

	stopReload := watchReload(logger, store, src)
	defer stopReload()

	// Branch based on transport mode
	if cfg.Transport.Mode == config.ModeStdio {
		return runStdioMode(logger, mcpServer)
	}

	var auth func(http.Handler) http.Handler
	if cfg.Auth.Enabled {
		auth = transport.AuthMiddleware(keyRepo)
	}
	router := transport.NewServer(pipelineSvc, transport.Options{
		Audit:      auditSvc,
		Datasets:   store,
		Auth:       auth,
		MCP:        mcp.NewHTTPHandler(mcpServer),
		CORSOrigin: cfg.Server.CORSOrigin,
		Logger:     logger,
	})
	return runHTTPMode(logger, router, cfg.Server.Host, cfg.Server.Port, cfg.Auth.Enabled)
}

func newExecutor(store *movie.Store, cfg config.DatasetConfig) (*query.Executor, error) {
	var opts []query.Option
	for _, p := range []struct {
		value string
		opt   func(query.MatchPolicy) query.Option
	}{
		{cfg.DirectorMatch, query.WithDirectorMatch},
		{cfg.ActorMatch, query.WithActorMatch},
		{cfg.GenreMatch, query.WithGenreMatch},
	} {
		policy, err := query.ParseMatchPolicy(p.value)
		if err != nil {
			return nil, err
		}
		opts = append(opts, p.opt(policy))
	}
	return query.NewExecutor(store, opts...), nil
}

func seedAPIKeys(ctx context.Context, keys repository.APIKeyRepository, seeds []config.APIKey) error {
	for _, k := range seeds {
		err := keys.Add(ctx, k.Client, k.Token, k.Description)
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("seed api key for %s: %w", k.Client, err)
		}
	}
	return nil
}

// watchReload reloads the dataset from src on SIGHUP. A failed reload keeps
// the current dataset.
func watchReload(logger *slog.Logger, store *movie.Store, src movie.Source) func() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-hup:
				logger.Info("reloading dataset", "source", src.Name())
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := store.Load(ctx, src); err != nil {
					logger.Error("dataset reload failed, keeping current dataset", "error", err)
				}
				cancel()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(hup)
		close(done)
	}
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(logger *slog.Logger, handler http.Handler, host string, port int, authEnabled bool) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "auth", authEnabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return waitForShutdown(logger, httpServer, errCh)
}

func ensureDBDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server, errCh <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

type logFileWriter struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if err := ensureLogDir(path); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	writer := &logFileWriter{path: path, file: file}
	if err := writer.truncateIfNeeded(); err != nil {
		return nil, nil, err
	}
	return writer, file, nil
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.truncateIfNeeded(); err != nil {
		return n, err
	}
	return n, nil
}

func (w *logFileWriter) truncateIfNeeded() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= maxLogSizeBytes {
		return nil
	}

	buf := make([]byte, keepLogSizeBytes)
	if _, err := w.file.Seek(size-keepLogSizeBytes, io.SeekStart); err != nil {
		return err
	}
	n, err := w.file.Read(buf)
	if err != nil && err != io.EOF {
		return err
	}
	buf = buf[:n]

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.file.Write(buf); err != nil {
		return err
	}
	_, err = w.file.Seek(0, io.SeekEnd)
	return err
}
