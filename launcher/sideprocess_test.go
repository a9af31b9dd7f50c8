package launcher

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/kvrole/testkit"
)

func startTestChild(t *testing.T, stopTimeout time.Duration, name string, args ...string) *childProcess {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	p, err := startChild(exec.Command(name, args...), stopTimeout, testkit.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.cmd.Process.Kill()
		<-p.done
	})
	return p
}

func exited(p *childProcess) bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func TestChildProcessStopTerminatesWithSigterm(t *testing.T) {
	p := startTestChild(t, 5*time.Second, "sleep", "30")
	require.False(t, exited(p))

	start := time.Now()
	require.NoError(t, p.Stop())
	assert.True(t, exited(p))
	assert.Less(t, time.Since(start), 5*time.Second, "sleep 应该被 SIGTERM 终止而不是等到 SIGKILL")

	assert.NoError(t, p.Stop())
}

func TestChildProcessStopKillsAfterTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping signal test in short mode")
	}
	ready := filepath.Join(t.TempDir(), "ready")
	p := startTestChild(t, 200*time.Millisecond, "sh", "-c", `trap "" TERM; : > "$0"; exec sleep 30`, ready)
	require.Eventually(t, func() bool {
		_, err := os.Stat(ready)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Stop())
	assert.True(t, exited(p))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestChildProcessStopAfterExit(t *testing.T) {
	p := startTestChild(t, time.Second, "true")
	require.Eventually(t, func() bool { return exited(p) }, 5*time.Second, 10*time.Millisecond)

	assert.NoError(t, p.Stop())
}
