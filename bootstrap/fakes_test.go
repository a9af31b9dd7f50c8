package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/kvrole/internal/clock"
	"github.com/ceyewan/kvrole/registry"
)

var epoch = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// scriptedProber 第 succeedAt 次（从 1 开始）及之后的探测成功，0 表示永远失败
//
// blackhole 非空时，失败的探测会把该时钟推进整个超时时间。
type scriptedProber struct {
	mu        sync.Mutex
	succeedAt int
	blackhole *clock.Fake
	calls     []string
	timeouts  []time.Duration
}

func (p *scriptedProber) Probe(_ context.Context, host string, port int, timeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, host+":"+strconv.Itoa(port))
	p.timeouts = append(p.timeouts, timeout)
	ok := p.succeedAt > 0 && len(p.calls) >= p.succeedAt
	if !ok && p.blackhole != nil {
		p.blackhole.Advance(timeout)
	}
	return ok
}

func (p *scriptedProber) Timeouts() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.timeouts...)
}

func (p *scriptedProber) Role(context.Context, string, int, time.Duration) (registry.Role, error) {
	return registry.RolePrimary, nil
}

func (p *scriptedProber) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type recordingExecutor struct {
	cmds []Command
}

func (e *recordingExecutor) Exec(binary string, args []string) error {
	e.cmds = append(e.cmds, Command{Binary: binary, Args: append([]string(nil), args...)})
	return nil
}

type fakeSideProcess struct {
	stops int
}

func (f *fakeSideProcess) Stop() error {
	f.stops++
	return nil
}

type harness struct {
	reg         *registry.Memory
	prober      *scriptedProber
	exec        *recordingExecutor
	side        *fakeSideProcess
	clock       *clock.Fake
	cfg         *Config
	transitions []Transition
}

func newHarness(t *testing.T, template string) *harness {
	t.Helper()
	dir := t.TempDir()

	tmplPath := filepath.Join(dir, "redis.conf.tmpl")
	require.NoError(t, os.WriteFile(tmplPath, []byte(template), 0o644))

	reg, err := registry.NewMemory(&registry.Config{Pool: "redis"}, registry.WithIncarnation(epoch))
	require.NoError(t, err)

	return &harness{
		reg:    reg,
		prober: &scriptedProber{},
		exec:   &recordingExecutor{},
		side:   &fakeSideProcess{},
		clock:  clock.NewFake(epoch),
		cfg: &Config{
			Identity: "redis-1",
			Address:  "10.0.0.2",
			Pool:     "redis",
			Store: StoreConfig{
				DataDir:      filepath.Join(dir, "data"),
				TemplatePath: tmplPath,
				ConfigPath:   filepath.Join(dir, "conf", "redis.conf"),
			},
			Witness: WitnessConfig{
				ConfigPath: filepath.Join(dir, "conf", "sentinel.conf"),
			},
		},
	}
}

func (h *harness) sequencer(t *testing.T, opts ...Option) *Sequencer {
	t.Helper()
	opts = append([]Option{
		WithClock(h.clock),
		WithSideProcess(h.side),
		WithOnTransition(func(tr Transition) { h.transitions = append(h.transitions, tr) }),
	}, opts...)
	s, err := New(h.reg, h.prober, h.exec, h.cfg, opts...)
	require.NoError(t, err)
	return s
}

func (h *harness) states() []State {
	out := make([]State, len(h.transitions))
	for i, tr := range h.transitions {
		out[i] = tr.To
	}
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
