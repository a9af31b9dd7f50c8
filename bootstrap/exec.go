package bootstrap

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/xerrors"
)

// Executor 把当前进程交给存储服务
type Executor interface {
	// Exec 成功时不返回
	Exec(binary string, args []string) error
}

// Command 一条待执行的命令
type Command struct {
	Binary string
	Args   []string
}

func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Binary)
	for _, a := range c.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

type execHandoff struct {
	logger clog.Logger
}

// NewExecHandoff 返回用 execve 替换当前进程的 Executor
//
// 同一 PID 下运行存储服务，信号由它直接接收。
func NewExecHandoff(logger clog.Logger) Executor {
	if logger == nil {
		logger = clog.Discard()
	}
	return &execHandoff{logger: logger.WithNamespace("exec")}
}

func (e *execHandoff) Exec(binary string, args []string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return xerrors.Wrapf(ErrHandoff, "look up %s: %v", binary, err)
	}

	argv := append([]string{binary}, args...)
	e.logger.Info("handing off process", clog.String("path", path), clog.Strings("argv", argv))

	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		return xerrors.Wrapf(ErrHandoff, "exec %s: %v", path, err)
	}
	return nil
}

type dryRun struct {
	w io.Writer
}

// NewDryRun 返回只打印命令的 Executor
func NewDryRun(w io.Writer) Executor {
	return &dryRun{w: w}
}

func (d *dryRun) Exec(binary string, args []string) error {
	_, err := fmt.Fprintln(d.w, Command{Binary: binary, Args: args}.String())
	return err
}
