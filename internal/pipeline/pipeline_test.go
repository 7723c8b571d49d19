package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fleet-ai/swe-task-generator/internal/config"
	"github.com/fleet-ai/swe-task-generator/internal/diffsplit"
	"github.com/fleet-ai/swe-task-generator/internal/fetch"
	"github.com/fleet-ai/swe-task-generator/internal/task"
)

// failingFetcher fails every fetch and counts concurrent callers.
type failingFetcher struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
	calls    []string
}

func (f *failingFetcher) GetChange(repo string, number int) (*fetch.Change, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		old := atomic.LoadInt32(&f.peak)
		if cur <= old || atomic.CompareAndSwapInt32(&f.peak, old, cur) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%s#%d", repo, number))
	f.mu.Unlock()
	return nil, errors.New("gh unavailable")
}

func testConfig() *config.GeneratorConfig {
	return &config.GeneratorConfig{Generator: config.Generator{
		Workdir:  "/tmp/unused",
		TasksDir: "/tmp/unused",
		Actor:    config.Actor{Model: "gpt-4o", MaxTurns: 30},
	}}
}

func newTestBuilder(t *testing.T, fetcher Fetcher) *Builder {
	t.Helper()
	return NewBuilder(testConfig(), fetcher, task.NewStore(t.TempDir()), nil, nil)
}

func TestBuild_FetchFailurePropagates(t *testing.T) {
	b := newTestBuilder(t, &failingFetcher{})
	_, err := b.Build(context.Background(), "psf/requests", 6149)
	if err == nil || !strings.Contains(err.Error(), "fetch change") {
		t.Fatalf("err = %v, want fetch failure", err)
	}
}

func TestBuildBatch_CapturesPerTargetFailures(t *testing.T) {
	fetcher := &failingFetcher{}
	b := newTestBuilder(t, fetcher)

	targets := []Target{
		{Repo: "psf/requests", PRNumber: 1},
		{Repo: "psf/requests", PRNumber: 2},
		{Repo: "pallets/flask", PRNumber: 3},
	}
	results, err := b.BuildBatch(context.Background(), targets, 2)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	// Order follows the input, and each failure is captured in place.
	for i, res := range results {
		if res.PRNumber != targets[i].PRNumber {
			t.Errorf("result %d = PR %d, want %d", i, res.PRNumber, targets[i].PRNumber)
		}
		if res.Err == nil {
			t.Errorf("result %d should carry the build error", i)
		}
	}
	if len(fetcher.calls) != 3 {
		t.Errorf("fetched %d times, want 3", len(fetcher.calls))
	}
}

func TestBuildBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := newTestBuilder(t, &failingFetcher{})
	_, err := b.BuildBatch(ctx, []Target{{Repo: "psf/requests", PRNumber: 1}}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRules_ConfigOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.Generator.Classify = config.Classify{
		TestPatterns: []string{"spec"},
		PreferFix:    true,
	}
	b := NewBuilder(cfg, nil, nil, nil, nil)

	rules := b.rules()
	if rules.Classify("src/spec_helper.rb") != diffsplit.LabelTest {
		t.Error("configured test pattern should classify as test")
	}
	if rules.PreferTest {
		t.Error("prefer_fix must flip the tie-break policy")
	}
	// Ignore patterns fall back to the defaults when unset.
	if rules.Classify("CHANGELOG.rst") != diffsplit.LabelIgnore {
		t.Error("default ignore patterns should survive a partial override")
	}
}

func TestNudgeSchedule(t *testing.T) {
	sched := nudgeSchedule([]int{5, 12})
	if len(sched) != 2 {
		t.Fatalf("schedule = %v", sched)
	}
	if sched[5] == "" || sched[12] == "" {
		t.Errorf("schedule = %v, want messages at both turns", sched)
	}
	if sched[5] == sched[12] {
		t.Error("later nudges should escalate")
	}

	// Empty config keeps the default schedule.
	def := nudgeSchedule(nil)
	if def[10] == "" || def[20] == "" {
		t.Errorf("default schedule = %v", def)
	}
}
