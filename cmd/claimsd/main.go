package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/superclaims/internal/cache"
	"github.com/zombor/superclaims/internal/claim"
	"github.com/zombor/superclaims/internal/extraction"
	"github.com/zombor/superclaims/internal/llm"
	"github.com/zombor/superclaims/internal/logging"
	"github.com/zombor/superclaims/internal/metrics"
	"github.com/zombor/superclaims/internal/resilience"
	"github.com/zombor/superclaims/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const serviceName = "superclaims-backend"

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("superclaims")
	var (
		port              = fs.IntLong("port", 8000, "HTTP server port")
		logLevel          = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		logFormat         = fs.StringLong("log-format", "text", "Log format: text or json")
		provider          = fs.StringLong("provider", "gemini", "Model provider: gemini, vertex, ollama or openai")
		geminiKey         = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GOOGLE_API_KEY / GEMINI_API_KEY)")
		modelName         = fs.StringLong("model", "", "Model name (provider default when empty)")
		vertexProject     = fs.StringLong("vertex-project", "", "Google Cloud project for Vertex AI")
		vertexRegion      = fs.StringLong("vertex-region", "us-central1", "Vertex AI region")
		ollamaURL         = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		openaiKey         = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY)")
		openaiBaseURL     = fs.StringLong("openai-base-url", "", "OpenAI-compatible API base URL")
		modelTimeout      = fs.DurationLong("model-timeout", 60*time.Second, "Timeout for each model call attempt")
		modelRPS          = fs.Float64Long("model-rps", 2, "Model calls per second (0 disables the limit)")
		modelBurst        = fs.IntLong("model-burst", 4, "Model call burst size")
		retryAttempts     = fs.IntLong("retry-attempts", 3, "Attempts per model call")
		noBreaker         = fs.BoolLong("no-breaker", "Disable the circuit breaker on model calls")
		maxFiles          = fs.IntLong("max-files", 20, "Maximum files per claim")
		maxPages          = fs.IntLong("max-pages", 10, "Maximum pages per document sent to vision OCR")
		maxUploadMB       = fs.IntLong("max-upload-mb", 50, "Maximum upload size in megabytes")
		visionConcurrency = fs.IntLong("vision-concurrency", 2, "Parallel page OCR calls per document")
		cacheTTL          = fs.DurationLong("cache-ttl", time.Hour, "Extraction cache TTL (0 disables the cache)")
		cacheDB           = fs.StringLong("cache-db", "", "Optional bbolt file for a persistent extraction cache")
		_                 = fs.StringLong("config", "", "Config file (one flag per line)")
		showVersion       = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SUPERCLAIMS"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.SetDefault(logging.New(os.Stdout, *logFormat, *logLevel).With("service", serviceName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(ctx, *provider, providerOptions{
		geminiKey:     firstNonEmpty(*geminiKey, os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY")),
		model:         *modelName,
		vertexProject: *vertexProject,
		vertexRegion:  *vertexRegion,
		ollamaURL:     *ollamaURL,
		openaiKey:     firstNonEmpty(*openaiKey, os.Getenv("OPENAI_API_KEY")),
		openaiBaseURL: *openaiBaseURL,
	})
	if err != nil {
		slog.Error("Failed to initialize model client", "provider", *provider, "error", err)
		os.Exit(1)
	}

	pipeline := metrics.New(serviceName)

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.RetryMaxAttempts = *retryAttempts
	resilienceCfg.BreakerEnabled = !*noBreaker
	guarded := llm.NewGuarded(client, llm.GuardConfig{
		Timeout:           *modelTimeout,
		RequestsPerSecond: *modelRPS,
		Burst:             *modelBurst,
	}, resilience.NewExecutor(resilienceCfg), pipeline)
	defer guarded.Close()

	store, closeStore, err := newCache(*cacheTTL, *cacheDB)
	if err != nil {
		slog.Error("Failed to initialize extraction cache", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	extractor := extraction.New(guarded, extraction.Config{
		MinTextChars:      50,
		RenderDPI:         200,
		MaxPages:          *maxPages,
		VisionConcurrency: *visionConcurrency,
		CacheTTL:          *cacheTTL,
	}, store, pipeline)

	claims := claim.NewService(claim.Config{MaxFiles: *maxFiles}, extractor, guarded, pipeline)

	handler := server.NewServer(claims, server.Config{
		ServiceName:    serviceName,
		MaxUploadBytes: int64(*maxUploadMB) << 20,
		MaxFiles:       *maxFiles,
	}, pipeline)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", httpServer.Addr), "provider", client.Name(), "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

type providerOptions struct {
	geminiKey     string
	model         string
	vertexProject string
	vertexRegion  string
	ollamaURL     string
	openaiKey     string
	openaiBaseURL string
}

func newClient(ctx context.Context, provider string, opts providerOptions) (llm.Client, error) {
	switch provider {
	case "gemini":
		if opts.geminiKey == "" {
			return nil, fmt.Errorf("gemini api key is required: set --gemini-key or GOOGLE_API_KEY")
		}
		slog.Info("Initializing Gemini client...", "model", opts.model)
		return llm.NewGemini(ctx, opts.geminiKey, opts.model)
	case "vertex":
		slog.Info("Initializing Vertex AI client...", "project", opts.vertexProject, "region", opts.vertexRegion, "model", opts.model)
		return llm.NewVertex(ctx, opts.vertexProject, opts.vertexRegion, opts.model)
	case "ollama":
		slog.Info("Initializing Ollama client...", "url", opts.ollamaURL, "model", opts.model)
		return llm.NewOllama(opts.ollamaURL, opts.model), nil
	case "openai":
		slog.Info("Initializing OpenAI client...", "base_url", opts.openaiBaseURL, "model", opts.model)
		return llm.NewOpenAI(opts.openaiKey, opts.openaiBaseURL, opts.model)
	default:
		return nil, fmt.Errorf("invalid provider %q: valid providers are gemini, vertex, ollama, openai", provider)
	}
}

// newCache builds the extraction cache: memory only, or memory in front of a bbolt file.
func newCache(ttl time.Duration, dbPath string) (cache.Cache, func(), error) {
	noop := func() {}
	if ttl <= 0 {
		return nil, noop, nil
	}

	memory := cache.NewMemory(ttl, 10*time.Minute)
	if dbPath == "" {
		return memory, noop, nil
	}

	bolt, err := cache.NewBolt(dbPath, ttl)
	if err != nil {
		return nil, noop, err
	}
	return cache.NewLayered(memory, bolt), func() { bolt.Close() }, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
