// Command salesagent runs the virtual sales assistant as an
// interactive terminal session.
//
// Usage:
//
//	salesagent -config config.yaml -customer customer-001
//
// Each line typed becomes one conversation turn; the assistant's reply
// is printed back. The conversation persists in the configured
// checkpoint backend, so restarting with the same -thread continues
// where it left off.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/salesagent-go/agent"
	"github.com/dshills/salesagent-go/agent/emit"
	"github.com/dshills/salesagent-go/agent/model"
	"github.com/dshills/salesagent-go/agent/model/anthropic"
	"github.com/dshills/salesagent-go/agent/model/openai"
	"github.com/dshills/salesagent-go/agent/store"
	"github.com/dshills/salesagent-go/config"
	"github.com/dshills/salesagent-go/inventory"
	"github.com/dshills/salesagent-go/salesagent"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (optional)")
		customerID = flag.String("customer", "", "customer ID for this session (required)")
		threadID   = flag.String("thread", "", "thread ID to resume (default: new thread)")
		verbose    = flag.Bool("verbose", false, "log step events to stderr")
	)
	flag.Parse()

	if *customerID == "" {
		log.Fatal("the -customer flag is required")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.FromFile(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	ctx := context.Background()

	inv, err := inventory.NewStore(cfg.InventoryPath)
	if err != nil {
		log.Fatalf("failed to open inventory: %v", err)
	}
	defer inv.Close()

	if cfg.SeedInventory {
		if err := inv.Seed(ctx); err != nil {
			log.Fatalf("failed to seed inventory: %v", err)
		}
	}

	chat, err := buildChatModel(cfg)
	if err != nil {
		log.Fatal(err)
	}

	checkpoints, closeCheckpoints, err := buildCheckpointStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open checkpoint store: %v", err)
	}
	defer closeCheckpoints()

	var metrics *agent.Metrics
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics = agent.NewMetrics(registry)
		go serveMetrics(cfg.MetricsAddr, registry)
	}

	var emitter emit.Emitter = emit.NewNullEmitter()
	if *verbose {
		emitter = emit.NewLogEmitter(os.Stderr, false)
	}

	assistant, err := salesagent.New(salesagent.Config{
		Chat:        chat,
		Inventory:   inv,
		Checkpoints: checkpoints,
		Emitter:     emitter,
		Metrics:     metrics,
		MaxSteps:    cfg.MaxSteps,
	})
	if err != nil {
		log.Fatalf("failed to build assistant: %v", err)
	}

	thread := *threadID
	if thread == "" {
		thread = uuid.NewString()
	}

	fmt.Printf("sales assistant ready (thread %s). Type a message, or 'quit' to exit.\n", thread)
	repl(ctx, assistant, thread, *customerID)
}

func buildChatModel(cfg config.Config) (model.ChatModel, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := cfg.APIKey()
		if apiKey == "" {
			return nil, errors.New("OpenAI API key not found in environment")
		}
		return openai.NewChatModel(apiKey, cfg.Model), nil
	case "anthropic":
		apiKey := cfg.APIKey()
		if apiKey == "" {
			return nil, errors.New("Anthropic API key not found in environment")
		}
		return anthropic.NewChatModel(apiKey, cfg.Model), nil
	case "mock":
		return &model.MockChatModel{
			Responses: []model.ChatOut{{Text: "This is a mock assistant reply."}},
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildCheckpointStore(ctx context.Context, cfg config.Config) (store.Store[salesagent.State], func(), error) {
	noop := func() {}

	switch cfg.CheckpointBackend {
	case "memory":
		return store.NewMemStore[salesagent.State](), noop, nil

	case "sqlite":
		st, err := store.NewSQLiteStore[salesagent.State](cfg.CheckpointDSN)
		if err != nil {
			return nil, noop, err
		}
		return st, func() { _ = st.Close() }, nil

	case "mysql":
		st, err := store.NewMySQLStore[salesagent.State](cfg.CheckpointDSN)
		if err != nil {
			return nil, noop, err
		}
		return st, func() { _ = st.Close() }, nil

	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to load AWS config: %w", err)
		}
		st, err := store.NewDynamoStore[salesagent.State](dynamodb.NewFromConfig(awsCfg), cfg.CheckpointDSN)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown checkpoint backend %q", cfg.CheckpointBackend)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("metrics server stopped: %v", err)
	}
}

func repl(ctx context.Context, assistant *salesagent.Agent, threadID, customerID string) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			return
		}

		turnCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		reply, err := assistant.Send(turnCtx, threadID, customerID, text)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
}
