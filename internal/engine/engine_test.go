package engine

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/nvandessel/tickframe/internal/logging"
	"github.com/nvandessel/tickframe/internal/observer"
	"github.com/nvandessel/tickframe/internal/rule"
	"github.com/nvandessel/tickframe/internal/substrate"
)

// tickLog records the ticks it sees before and after each step.
type tickLog struct {
	before, after []int64
	failAfter     int64
	cancelAt      int64
	cancel        context.CancelFunc
}

func (l *tickLog) Name() string { return "ticklog" }

func (l *tickLog) BeforeTick(_ context.Context, s *substrate.State) error {
	l.before = append(l.before, s.Tick)
	return nil
}

func (l *tickLog) AfterTick(_ context.Context, s *substrate.State) error {
	l.after = append(l.after, s.Tick)
	if l.failAfter != 0 && s.Tick == l.failAfter {
		return errors.New("observer failed")
	}
	if l.cancel != nil && s.Tick == l.cancelAt {
		l.cancel()
	}
	return nil
}

func growthRule(t *testing.T) rule.UpdateRule {
	t.Helper()
	r, err := rule.New("growth", substrate.Params{"birth_rate": 0.5}, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("rule.New: %v", err)
	}
	return r
}

func TestRun_NotifiesAroundEveryTick(t *testing.T) {
	s := substrate.NewState()
	s.Spawn(nil, &substrate.Vec3{})
	log := &tickLog{}
	e := New(s, growthRule(t), []observer.Observer{log})

	final, err := e.Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final.Tick != 5 || e.Ticks() != 5 || e.State() != final {
		t.Errorf("final tick = %d, ticks = %d", final.Tick, e.Ticks())
	}
	for i := 0; i < 5; i++ {
		if log.before[i] != int64(i) || log.after[i] != int64(i+1) {
			t.Fatalf("tick %d: before=%v after=%v", i, log.before, log.after)
		}
	}
	if final.Len() < 1 {
		t.Error("growth should never shrink below the seed")
	}
}

func TestRun_InvalidTicks(t *testing.T) {
	e := New(substrate.NewState(), rule.Noop{}, nil)
	for _, n := range []int{0, -3} {
		if _, err := e.Run(context.Background(), n); !errors.Is(err, ErrInvalidTicks) {
			t.Errorf("Run(%d): expected ErrInvalidTicks, got %v", n, err)
		}
	}
}

func TestRun_ObserverErrorAborts(t *testing.T) {
	log := &tickLog{failAfter: 3}
	e := New(substrate.NewState(), rule.Noop{}, []observer.Observer{log})

	state, err := e.Run(context.Background(), 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "observer ticklog after tick 2") {
		t.Errorf("error = %q", err)
	}
	if state == nil || state.Tick != 3 {
		t.Errorf("expected state reached so far (tick 3), got %+v", state)
	}
	if len(log.before) != 3 {
		t.Errorf("run continued after failure: %d ticks", len(log.before))
	}
}

type failingRule struct{ rule.Noop }

func (failingRule) Name() string { return "failing" }

func (failingRule) Bias(*substrate.State) (*substrate.State, error) {
	return nil, errors.New("bias exploded")
}

func TestRun_RuleErrorAborts(t *testing.T) {
	log := &tickLog{}
	e := New(substrate.NewState(), failingRule{}, []observer.Observer{log})
	_, err := e.Run(context.Background(), 3)
	if err == nil || !strings.Contains(err.Error(), "bias at tick 0") {
		t.Fatalf("expected bias error at tick 0, got %v", err)
	}
	if len(log.after) != 0 {
		t.Error("AfterTick should not run after a failed step")
	}
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := &tickLog{cancelAt: 4, cancel: cancel}
	e := New(substrate.NewState(), rule.Noop{}, []observer.Observer{log})

	state, err := e.Run(ctx, 100)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if state.Tick != 4 || e.Ticks() != 4 {
		t.Errorf("stopped at tick %d (%d ticks), want 4", state.Tick, e.Ticks())
	}
}

func TestRun_DebugLogging(t *testing.T) {
	var buf bytes.Buffer
	e := New(substrate.NewState(), rule.Noop{}, nil, WithLogger(logging.NewLogger("debug", &buf)))
	if _, err := e.Run(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(buf.String(), "msg=tick"); got != 2 {
		t.Errorf("expected 2 tick log lines, got %d:\n%s", got, buf.String())
	}
}
