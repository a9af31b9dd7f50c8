package launcher

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ceyewan/kvrole/bootstrap"
	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/xerrors"
)

// PublishCommand label publisher 子命令名
const PublishCommand = "publish"

// Spawner 启动 label publisher 伴随进程
type Spawner interface {
	Spawn(ctx context.Context, createdAt time.Time) (bootstrap.SideProcess, error)
}

type processSpawner struct {
	binary      string
	args        []string
	stopTimeout time.Duration
	logger      clog.Logger
}

// NewProcessSpawner 以 "<self> publish <args...> --created-at=<t>" 启动子进程
//
// 子进程是独立的 OS 进程，父进程 exec 成存储服务之后它继续运行。
func NewProcessSpawner(args []string, stopTimeout time.Duration, logger clog.Logger) (Spawner, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, xerrors.Wrap(err, "resolve own executable")
	}
	if logger == nil {
		logger = clog.Discard()
	}
	return &processSpawner{
		binary:      self,
		args:        publisherArgs(args),
		stopTimeout: stopTimeout,
		logger:      logger.WithNamespace("sideprocess"),
	}, nil
}

// publisherArgs 去掉只对父进程有意义的参数
func publisherArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--dry-run", strings.HasPrefix(a, "--dry-run="):
		case strings.HasPrefix(a, "--created-at="):
		case a == "--created-at":
			i++
		default:
			out = append(out, a)
		}
	}
	return out
}

func (s *processSpawner) Spawn(_ context.Context, createdAt time.Time) (bootstrap.SideProcess, error) {
	argv := append([]string{PublishCommand}, s.args...)
	argv = append(argv, "--created-at="+createdAt.UTC().Format(time.RFC3339Nano))

	cmd := exec.Command(s.binary, argv...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	p, err := startChild(cmd, s.stopTimeout, s.logger)
	if err != nil {
		return nil, xerrors.Wrapf(err, "start %s %s", s.binary, PublishCommand)
	}
	p.logger.Info("label publisher started", clog.Strings("args", argv))
	return p, nil
}

// startChild 启动子进程并在后台等待其退出
func startChild(cmd *exec.Cmd, stopTimeout time.Duration, logger clog.Logger) (*childProcess, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &childProcess{
		cmd:         cmd,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
		logger:      logger.With(clog.Int("pid", cmd.Process.Pid)),
	}
	go p.wait()
	return p, nil
}

type childProcess struct {
	cmd         *exec.Cmd
	done        chan struct{}
	stopTimeout time.Duration
	logger      clog.Logger

	once sync.Once
}

func (p *childProcess) wait() {
	if err := p.cmd.Wait(); err != nil {
		p.logger.Debug("label publisher exited", clog.Error(err))
	}
	close(p.done)
}

// Stop 发送 SIGTERM，超时后 SIGKILL，此方法是幂等的
func (p *childProcess) Stop() error {
	var err error
	p.once.Do(func() {
		err = p.stop()
	})
	return err
}

func (p *childProcess) stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(unix.SIGTERM); err != nil {
		return xerrors.Wrap(err, "signal label publisher")
	}

	timer := time.NewTimer(p.stopTimeout)
	defer timer.Stop()
	select {
	case <-p.done:
		p.logger.Info("label publisher stopped")
		return nil
	case <-timer.C:
	}

	p.logger.Warn("label publisher did not exit in time, killing", clog.Duration("timeout", p.stopTimeout))
	if err := p.cmd.Process.Kill(); err != nil {
		return xerrors.Wrap(err, "kill label publisher")
	}
	<-p.done
	return nil
}
