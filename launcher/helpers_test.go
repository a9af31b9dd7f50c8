package launcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/kvrole/bootstrap"
	"github.com/ceyewan/kvrole/registry"
)

var epoch = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type fakeProber struct {
	mu      sync.Mutex
	ok      bool
	role    registry.Role
	roleErr error
	probes  int
}

func (p *fakeProber) Probe(context.Context, string, int, time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes++
	return p.ok
}

func (p *fakeProber) Role(context.Context, string, int, time.Duration) (registry.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role, p.roleErr
}

func (p *fakeProber) setRole(role registry.Role, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.role, p.roleErr = role, err
}

type recordingExecutor struct {
	cmds []bootstrap.Command
}

func (e *recordingExecutor) Exec(binary string, args []string) error {
	e.cmds = append(e.cmds, bootstrap.Command{Binary: binary, Args: args})
	return nil
}

type fakeSpawner struct {
	spawned []time.Time
	proc    *fakeProcess
}

func (s *fakeSpawner) Spawn(_ context.Context, createdAt time.Time) (bootstrap.SideProcess, error) {
	s.spawned = append(s.spawned, createdAt)
	s.proc = &fakeProcess{}
	return s.proc, nil
}

type fakeProcess struct {
	stops int
}

func (p *fakeProcess) Stop() error {
	p.stops++
	return nil
}

func newMemoryRegistry(t *testing.T) *registry.Memory {
	t.Helper()
	reg, err := registry.NewMemory(&registry.Config{Pool: "redis"}, registry.WithIncarnation(epoch))
	require.NoError(t, err)
	return reg
}

// testConfig 返回一份走完 Validate 的配置，所有文件都在临时目录中
func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "redis.conf.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte("port 6379\n"), 0o644))

	return &Config{
		Identity: "redis-1",
		Address:  "10.0.0.2",
		Pool:     "redis",
		Store: bootstrap.StoreConfig{
			DataDir:      filepath.Join(dir, "data"),
			TemplatePath: tmpl,
			ConfigPath:   filepath.Join(dir, "conf", "redis.conf"),
		},
		Witness: bootstrap.WitnessConfig{
			ConfigPath: filepath.Join(dir, "conf", "sentinel.conf"),
		},
		Publisher: PublisherConfig{SyncInterval: 20 * time.Millisecond},
	}
}

type failingExecutor struct {
	err error
}

func (e *failingExecutor) Exec(string, []string) error {
	return e.err
}
