package bootstrap

import (
	"strconv"
	"strings"

	"github.com/ceyewan/kvrole/xerrors"
)

// MonitorConfig 哨兵监控配置，渲染为 sentinel.conf
type MonitorConfig struct {
	MasterName        string
	Host              string
	Port              int
	Quorum            int
	DownAfterMs       int
	FailoverTimeoutMs int
	ParallelSyncs     int
	ReconfigScript    string
	ListenPort        int
	Bind              string

	// AuthPass 为空时不输出 auth-pass
	AuthPass string
}

// Render 渲染为 redis-sentinel 配置文件内容，每条指令只出现一次
func (m *MonitorConfig) Render() string {
	name := m.MasterName
	lines := []string{
		"# generated by kvrole, rewritten by sentinel at runtime",
		"port " + strconv.Itoa(m.ListenPort),
		"bind " + m.Bind,
		"sentinel resolve-hostnames yes",
		"sentinel monitor " + name + " " + m.Host + " " + strconv.Itoa(m.Port) + " " + strconv.Itoa(m.Quorum),
		"sentinel down-after-milliseconds " + name + " " + strconv.Itoa(m.DownAfterMs),
		"sentinel failover-timeout " + name + " " + strconv.Itoa(m.FailoverTimeoutMs),
		"sentinel parallel-syncs " + name + " " + strconv.Itoa(m.ParallelSyncs),
		"sentinel client-reconfig-script " + name + " " + m.ReconfigScript,
	}
	if m.AuthPass != "" {
		lines = append(lines, "sentinel auth-pass "+name+" "+quoteArg(m.AuthPass))
	}
	return strings.Join(lines, "\n") + "\n"
}

// parseMonitorConfig 解析 Render 的输出，指令重复时返回错误
func parseMonitorConfig(content string) (*MonitorConfig, error) {
	m := &MonitorConfig{}
	seen := make(map[string]bool)

	for i, line := range strings.Split(content, "\n") {
		if directive(line) == "" {
			continue
		}
		args, ok := splitArgs(line)
		if !ok {
			return nil, xerrors.Wrapf(ErrMonitorConfig, "line %d: unbalanced quotes", i+1)
		}

		key := strings.ToLower(args[0])
		if key == "sentinel" && len(args) > 1 {
			key += " " + strings.ToLower(args[1])
			args = args[1:]
		}
		if seen[key] {
			return nil, xerrors.Wrapf(ErrMonitorConfig, "line %d: duplicate directive %q", i+1, key)
		}
		seen[key] = true

		if err := m.apply(key, args[1:]); err != nil {
			return nil, xerrors.Wrapf(ErrMonitorConfig, "line %d: %v", i+1, err)
		}
	}

	if m.MasterName == "" {
		return nil, xerrors.Wrap(ErrMonitorConfig, "no sentinel monitor directive")
	}
	return m, nil
}

func (m *MonitorConfig) apply(key string, args []string) error {
	var err error
	switch key {
	case "port":
		m.ListenPort, err = intArg(args, 0)
	case "bind":
		m.Bind = strings.Join(args, " ")
	case "sentinel monitor":
		if len(args) != 4 {
			return xerrors.New("monitor needs <name> <host> <port> <quorum>")
		}
		m.MasterName, m.Host = args[0], args[1]
		if m.Port, err = intArg(args, 2); err != nil {
			return err
		}
		m.Quorum, err = intArg(args, 3)
	case "sentinel down-after-milliseconds":
		m.DownAfterMs, err = intArg(args, 1)
	case "sentinel failover-timeout":
		m.FailoverTimeoutMs, err = intArg(args, 1)
	case "sentinel parallel-syncs":
		m.ParallelSyncs, err = intArg(args, 1)
	case "sentinel client-reconfig-script":
		m.ReconfigScript, err = strArg(args, 1)
	case "sentinel auth-pass":
		m.AuthPass, err = strArg(args, 1)
	}
	return err
}

func strArg(args []string, i int) (string, error) {
	if i >= len(args) {
		return "", xerrors.New("missing argument")
	}
	return args[i], nil
}

func intArg(args []string, i int) (int, error) {
	s, err := strArg(args, i)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}
