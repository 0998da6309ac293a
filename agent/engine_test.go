package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/salesagent-go/agent/emit"
	"github.com/dshills/salesagent-go/agent/store"
)

// testState is a minimal state for engine tests: an append-only trail
// of visited step names.
type testState struct {
	Trail []string `json:"trail"`
}

func appendTrail(name string) HandlerFunc[testState] {
	return func(_ context.Context, s testState) (testState, error) {
		s.Trail = append(s.Trail, name)
		return s, nil
	}
}

func mergeTrail(prev, input testState) testState {
	merged := prev
	merged.Trail = append(append([]string{}, prev.Trail...), input.Trail...)
	return merged
}

func newTestEngine(opts Options) *Engine[testState] {
	return New(mergeTrail, store.NewMemStore[testState](), emit.NewNullEmitter(), opts)
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("follows static edges to terminal step", func(t *testing.T) {
		eng := newTestEngine(Options{MaxSteps: 10})
		mustRegister(t, eng, "first", appendTrail("first"))
		mustRegister(t, eng, "second", appendTrail("second"))
		mustRegister(t, eng, "last", appendTrail("last"))
		mustEdge(t, eng.AddStaticEdge("first", "second"))
		mustEdge(t, eng.AddStaticEdge("second", "last"))
		mustEdge(t, eng.StartAt("first"))

		final, err := eng.Run(ctx, "t-1", testState{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		want := []string{"first", "second", "last"}
		assertTrail(t, final.Trail, want)
	})

	t.Run("router picks branch deterministically", func(t *testing.T) {
		eng := newTestEngine(Options{MaxSteps: 10})
		mustRegister(t, eng, "start", appendTrail("start"))
		mustRegister(t, eng, "left", appendTrail("left"))
		mustRegister(t, eng, "right", appendTrail("right"))
		mustEdge(t, eng.AddConditionalEdge("start", func(s testState) (string, error) {
			if len(s.Trail)%2 == 1 {
				return "left", nil
			}
			return "right", nil
		}))
		mustEdge(t, eng.StartAt("start"))

		final, err := eng.Run(ctx, "t-2", testState{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		assertTrail(t, final.Trail, []string{"start", "left"})
	})

	t.Run("router returning End terminates the turn", func(t *testing.T) {
		eng := newTestEngine(Options{MaxSteps: 10})
		mustRegister(t, eng, "only", appendTrail("only"))
		mustEdge(t, eng.AddConditionalEdge("only", func(testState) (string, error) {
			return End, nil
		}))
		mustEdge(t, eng.StartAt("only"))

		final, err := eng.Run(ctx, "t-3", testState{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		assertTrail(t, final.Trail, []string{"only"})
	})

	t.Run("exceeding MaxSteps fails the turn", func(t *testing.T) {
		eng := newTestEngine(Options{MaxSteps: 3})
		mustRegister(t, eng, "loop", appendTrail("loop"))
		mustEdge(t, eng.AddStaticEdge("loop", "loop"))
		mustEdge(t, eng.StartAt("loop"))

		_, err := eng.Run(ctx, "t-4", testState{})
		if !errors.Is(err, ErrMaxStepsExceeded) {
			t.Fatalf("expected ErrMaxStepsExceeded, got %v", err)
		}
	})

	t.Run("handler error aborts the run", func(t *testing.T) {
		boom := errors.New("boom")
		eng := newTestEngine(Options{MaxSteps: 10})
		mustRegister(t, eng, "bad", HandlerFunc[testState](func(_ context.Context, s testState) (testState, error) {
			return s, boom
		}))
		mustEdge(t, eng.StartAt("bad"))

		_, err := eng.Run(ctx, "t-5", testState{})
		if !errors.Is(err, boom) {
			t.Fatalf("expected handler error, got %v", err)
		}
	})

	t.Run("router selecting unregistered step fails", func(t *testing.T) {
		eng := newTestEngine(Options{MaxSteps: 10})
		mustRegister(t, eng, "start", appendTrail("start"))
		mustEdge(t, eng.AddConditionalEdge("start", func(testState) (string, error) {
			return "nowhere", nil
		}))
		mustEdge(t, eng.StartAt("start"))

		_, err := eng.Run(ctx, "t-6", testState{})
		var engineErr *EngineError
		if !errors.As(err, &engineErr) || engineErr.Code != "STEP_NOT_FOUND" {
			t.Fatalf("expected STEP_NOT_FOUND, got %v", err)
		}
	})

	t.Run("cancelled context stops execution", func(t *testing.T) {
		eng := newTestEngine(Options{MaxSteps: 10})
		mustRegister(t, eng, "only", appendTrail("only"))
		mustEdge(t, eng.StartAt("only"))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := eng.Run(cancelled, "t-7", testState{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestEngineResume(t *testing.T) {
	ctx := context.Background()

	t.Run("second turn restores state and continues numbering", func(t *testing.T) {
		st := store.NewMemStore[testState]()
		buf := emit.NewBufferedEmitter()
		eng := New(mergeTrail, st, buf, Options{MaxSteps: 10})
		mustRegister(t, eng, "a", appendTrail("a"))
		mustRegister(t, eng, "b", appendTrail("b"))
		mustEdge(t, eng.AddStaticEdge("a", "b"))
		mustEdge(t, eng.StartAt("a"))

		if _, err := eng.Run(ctx, "t-resume", testState{Trail: []string{"turn1"}}); err != nil {
			t.Fatalf("first turn failed: %v", err)
		}
		final, err := eng.Run(ctx, "t-resume", testState{Trail: []string{"turn2"}})
		if err != nil {
			t.Fatalf("second turn failed: %v", err)
		}

		want := []string{"turn1", "a", "b", "turn2", "a", "b"}
		assertTrail(t, final.Trail, want)

		_, seq, err := st.LoadLatest(ctx, "t-resume")
		if err != nil {
			t.Fatalf("LoadLatest failed: %v", err)
		}
		if seq != 4 {
			t.Errorf("expected step numbering to continue to 4, got %d", seq)
		}
	})

	t.Run("threads are isolated", func(t *testing.T) {
		eng := newTestEngine(Options{MaxSteps: 10})
		mustRegister(t, eng, "a", appendTrail("a"))
		mustEdge(t, eng.StartAt("a"))

		if _, err := eng.Run(ctx, "thread-one", testState{Trail: []string{"one"}}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		final, err := eng.Run(ctx, "thread-two", testState{Trail: []string{"two"}})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		assertTrail(t, final.Trail, []string{"two", "a"})
	})
}

func TestEngineValidate(t *testing.T) {
	t.Run("rejects missing entry step", func(t *testing.T) {
		eng := newTestEngine(Options{})
		mustRegister(t, eng, "a", appendTrail("a"))

		err := eng.Validate()
		assertEngineCode(t, err, "NO_ENTRY_STEP")
	})

	t.Run("rejects static edge to unregistered step", func(t *testing.T) {
		eng := newTestEngine(Options{})
		mustRegister(t, eng, "a", appendTrail("a"))
		mustEdge(t, eng.AddStaticEdge("a", "ghost"))
		mustEdge(t, eng.StartAt("a"))

		err := eng.Validate()
		assertEngineCode(t, err, "STEP_NOT_FOUND")
	})

	t.Run("rejects duplicate step registration", func(t *testing.T) {
		eng := newTestEngine(Options{})
		mustRegister(t, eng, "a", appendTrail("a"))

		err := eng.RegisterStep("a", appendTrail("a"))
		assertEngineCode(t, err, "DUPLICATE_STEP")
	})

	t.Run("rejects second edge on the same step", func(t *testing.T) {
		eng := newTestEngine(Options{})
		mustRegister(t, eng, "a", appendTrail("a"))
		mustRegister(t, eng, "b", appendTrail("b"))
		mustEdge(t, eng.AddStaticEdge("a", "b"))

		err := eng.AddConditionalEdge("a", func(testState) (string, error) { return "b", nil })
		assertEngineCode(t, err, "CONFLICTING_EDGE")
	})
}

func TestEngineCheckpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("save and restore named checkpoint", func(t *testing.T) {
		st := store.NewMemStore[testState]()
		eng := New(mergeTrail, st, emit.NewNullEmitter(), Options{MaxSteps: 10})
		mustRegister(t, eng, "a", appendTrail("a"))
		mustEdge(t, eng.StartAt("a"))

		if _, err := eng.Run(ctx, "t-cp", testState{Trail: []string{"seed"}}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if err := eng.SaveCheckpoint(ctx, "t-cp", "before-change"); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
		if err := eng.RestoreCheckpoint(ctx, "before-change", "t-copy"); err != nil {
			t.Fatalf("RestoreCheckpoint failed: %v", err)
		}

		restored, _, err := st.LoadLatest(ctx, "t-copy")
		if err != nil {
			t.Fatalf("LoadLatest failed: %v", err)
		}
		assertTrail(t, restored.Trail, []string{"seed", "a"})
	})

	t.Run("checkpoint of unknown thread fails", func(t *testing.T) {
		eng := newTestEngine(Options{})
		mustRegister(t, eng, "a", appendTrail("a"))
		mustEdge(t, eng.StartAt("a"))

		err := eng.SaveCheckpoint(ctx, "ghost-thread", "cp")
		assertEngineCode(t, err, "THREAD_NOT_FOUND")
	})
}

func mustRegister(t *testing.T, eng *Engine[testState], name string, h Handler[testState]) {
	t.Helper()
	if err := eng.RegisterStep(name, h); err != nil {
		t.Fatalf("RegisterStep(%q) failed: %v", name, err)
	}
}

func mustEdge(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("graph construction failed: %v", err)
	}
}

func assertTrail(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("trail = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trail = %v, want %v", got, want)
		}
	}
}

func assertEngineCode(t *testing.T, err error, code string) {
	t.Helper()
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected EngineError with code %s, got %v", code, err)
	}
	if engineErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, engineErr.Code, err)
	}
}
