package bootstrap

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		MasterName:        "mymaster",
		Host:              "10.0.0.1",
		Port:              6379,
		Quorum:            3,
		DownAfterMs:       5000,
		FailoverTimeoutMs: 30000,
		ParallelSyncs:     10,
		ReconfigScript:    "/usr/local/bin/kvrole-reconfig.sh",
		ListenPort:        26379,
		Bind:              "0.0.0.0",
		AuthPass:          "x",
	}
}

func TestMonitorConfigRoundTrip(t *testing.T) {
	want := sampleMonitorConfig()
	content := want.Render()

	got, err := parseMonitorConfig(content)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Contains(t, content, "sentinel monitor mymaster 10.0.0.1 6379 3\n")
	assert.Contains(t, content, "sentinel down-after-milliseconds mymaster 5000\n")
	assert.Contains(t, content, "sentinel auth-pass mymaster x\n")
	assert.Contains(t, content, "sentinel client-reconfig-script mymaster /usr/local/bin/kvrole-reconfig.sh\n")
	assert.Contains(t, content, "bind 0.0.0.0\n")

	seen := make(map[string]int)
	for _, line := range strings.Split(content, "\n") {
		if d := directive(line); d != "" {
			args, ok := splitArgs(line)
			require.True(t, ok)
			key := d
			if d == "sentinel" {
				key += " " + args[1]
			}
			seen[key]++
		}
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, key)
	}
}

func TestMonitorConfigWithoutSecret(t *testing.T) {
	mc := sampleMonitorConfig()
	mc.AuthPass = ""
	content := mc.Render()

	assert.NotContains(t, content, "auth-pass")
	got, err := parseMonitorConfig(content)
	require.NoError(t, err)
	assert.Equal(t, mc, got)
}

func TestMonitorConfigQuotedSecret(t *testing.T) {
	mc := sampleMonitorConfig()
	mc.AuthPass = `p@ss word"q`

	got, err := parseMonitorConfig(mc.Render())
	require.NoError(t, err)
	assert.Equal(t, mc.AuthPass, got.AuthPass)
}

func TestParseMonitorConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "duplicate", content: "sentinel monitor m h 1 2\nsentinel monitor m h 1 2\n"},
		{name: "no monitor", content: "port 26379\n"},
		{name: "bad quorum", content: "sentinel monitor m h 6379 two\n"},
		{name: "short monitor", content: "sentinel monitor m h\n"},
		{name: "unbalanced quotes", content: "sentinel monitor m h 6379 2\nsentinel auth-pass m \"x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMonitorConfig(tt.content)
			assert.ErrorIs(t, err, ErrMonitorConfig)
		})
	}
}

func TestRenderStoreOptions(t *testing.T) {
	tests := []struct {
		name     string
		template string
		opts     StoreOptions
		want     string
	}{
		{
			name:     "replica placeholders",
			template: "port 6379\nreplicaof %primary-host% %primary-port%\n",
			opts:     StoreOptions{Replica: true, PrimaryHost: "10.0.0.1", PrimaryPort: 6379},
			want:     "port 6379\nreplicaof 10.0.0.1 6379\n",
		},
		{
			name:     "replica appends replicaof",
			template: "port 6379\n# replicaof <host> <port>\n",
			opts:     StoreOptions{Replica: true, PrimaryHost: "redis-0", PrimaryPort: 6380},
			want:     "port 6379\n# replicaof <host> <port>\nreplicaof redis-0 6380\n",
		},
		{
			name:     "replica legacy slaveof kept",
			template: "slaveof %primary-host% %primary-port%\n",
			opts:     StoreOptions{Replica: true, PrimaryHost: "h", PrimaryPort: 1},
			want:     "slaveof h 1\n",
		},
		{
			name:     "primary drops replication lines",
			template: "port 6379\nreplicaof %primary-host% %primary-port%\nmin-replicas-to-write 0\n",
			opts:     StoreOptions{},
			want:     "port 6379\nmin-replicas-to-write 0\n",
		},
		{
			name:     "secret replaces existing directives",
			template: "requirepass old\nport 6379\nmasterauth old\n",
			opts:     StoreOptions{Secret: "new"},
			want:     "port 6379\nrequirepass new\nmasterauth new\n",
		},
		{
			name:     "secret with spaces is quoted",
			template: "",
			opts:     StoreOptions{Secret: "a b"},
			want:     "requirepass \"a b\"\nmasterauth \"a b\"\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderStoreOptions(tt.template, tt.opts))
		})
	}
}

func TestSplitArgs(t *testing.T) {
	args, ok := splitArgs(`sentinel auth-pass mymaster "a \"b\" c"`)
	require.True(t, ok)
	assert.Equal(t, []string{"sentinel", "auth-pass", "mymaster", `a "b" c`}, args)

	args, ok = splitArgs("  port\t26379  ")
	require.True(t, ok)
	assert.Equal(t, []string{"port", "26379"}, args)

	_, ok = splitArgs(`requirepass "open`)
	assert.False(t, ok)
}

func TestDryRunPrintsCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDryRun(&buf).Exec("redis-server", []string{"/data/conf/redis.conf", "--protected-mode", "no", "a b"}))
	assert.Equal(t, "redis-server /data/conf/redis.conf --protected-mode no \"a b\"\n", buf.String())
}
