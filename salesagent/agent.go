package salesagent

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/salesagent-go/agent"
	"github.com/dshills/salesagent-go/agent/emit"
	"github.com/dshills/salesagent-go/agent/model"
	"github.com/dshills/salesagent-go/agent/store"
	"github.com/dshills/salesagent-go/agent/tool"
	"github.com/dshills/salesagent-go/inventory"
)

// defaultMaxSteps bounds a single turn. A well-behaved turn is a
// handful of steps; anything near this limit is a routing loop.
const defaultMaxSteps = 25

// Config assembles an Agent's dependencies.
type Config struct {
	// Chat is the model driving the assistant (required).
	Chat model.ChatModel

	// Inventory is the product/order database (required).
	Inventory *inventory.Store

	// Checkpoints persists conversation state per thread (required).
	Checkpoints store.Store[State]

	// QueryGen turns product questions into SELECT statements.
	// Defaults to a ModelQueryGenerator over Chat.
	QueryGen QueryGenerator

	// Emitter receives step events. Defaults to no emission.
	Emitter emit.Emitter

	// Metrics, if non-nil, records run, step, tool and order metrics.
	Metrics *agent.Metrics

	// MaxSteps overrides the per-turn step limit. Zero uses the
	// default.
	MaxSteps int

	// Now overrides the clock used in the system prompt (for tests).
	Now func() time.Time
}

// Agent is the conversational sales assistant. One Agent serves many
// concurrent threads; per-thread state lives in the checkpoint store,
// keyed by thread ID.
type Agent struct {
	engine *agent.Engine[State]
}

// New builds the assistant graph and validates its configuration.
// A misconfigured graph (unroutable tool, missing step) fails here,
// never mid-conversation.
func New(cfg Config) (*Agent, error) {
	if cfg.Chat == nil {
		return nil, errors.New("salesagent: chat model is required")
	}
	if cfg.Inventory == nil {
		return nil, errors.New("salesagent: inventory store is required")
	}
	if cfg.Checkpoints == nil {
		return nil, errors.New("salesagent: checkpoint store is required")
	}

	queryGen := cfg.QueryGen
	if queryGen == nil {
		queryGen = &ModelQueryGenerator{Model: cfg.Chat}
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	registry, err := newToolRegistry()
	if err != nil {
		return nil, err
	}

	var onError tool.ErrorHook
	if cfg.Metrics != nil {
		metrics := cfg.Metrics
		onError = func(toolName string, _ error) {
			metrics.ObserveToolError(toolName)
		}
	}

	s := &steps{
		chat:       cfg.Chat,
		specs:      toolSpecs(),
		dispatcher: tool.NewDispatcher(registry, onError),
		inv:        cfg.Inventory,
		queryGen:   queryGen,
		metrics:    cfg.Metrics,
		now:        now,
	}

	eng := agent.New(mergeTurn, cfg.Checkpoints, emitter, agent.Options{
		MaxSteps: maxSteps,
		Metrics:  cfg.Metrics,
	})
	if err := buildGraph(eng, s, registry); err != nil {
		return nil, err
	}

	return &Agent{engine: eng}, nil
}

// Send runs one conversation turn: it appends the user's message to
// the thread's history, executes the graph until the assistant
// produces a final text reply, and returns that reply.
//
// The thread ID is the caller's stable conversation key; the customer
// ID scopes every order operation in the turn. Turns on the same
// thread must be serialized by the caller; turns on different threads
// are safe to run concurrently.
func (a *Agent) Send(ctx context.Context, threadID, customerID, text string) (string, error) {
	if customerID == "" {
		return "", agent.ErrNoCustomerID
	}

	input := State{
		UserInfo: customerID,
		Messages: []model.Message{{Role: model.RoleUser, Content: text}},
	}

	final, err := a.engine.Run(ctx, threadID, input)
	if err != nil {
		return "", err
	}

	last, ok := lastMessage(final)
	if !ok || last.Role != model.RoleAssistant {
		return "", errors.New("turn ended without an assistant reply")
	}
	return last.Content, nil
}

// SaveCheckpoint snapshots a thread's latest state under a name.
func (a *Agent) SaveCheckpoint(ctx context.Context, threadID, checkpointID string) error {
	return a.engine.SaveCheckpoint(ctx, threadID, checkpointID)
}

// RestoreCheckpoint loads a named snapshot into a thread so the next
// turn resumes from it.
func (a *Agent) RestoreCheckpoint(ctx context.Context, checkpointID, threadID string) error {
	return a.engine.RestoreCheckpoint(ctx, checkpointID, threadID)
}
