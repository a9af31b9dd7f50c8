package bootstrap

import "fmt"

// State 启动序列状态
type State string

const (
	StateAnnouncing  State = "announcing"
	StatePreparing   State = "preparing"
	StateDiscovering State = "discovering"
	StateConnecting  State = "connecting"
	StateConfiguring State = "configuring"
	StateAborted     State = "aborted"
	StateLaunched    State = "launched"
)

// Transition 一次状态迁移
//
// Attempt 只在 Discovering 和 Connecting 中有意义，从 1 开始。
type Transition struct {
	Path    string
	From    State
	To      State
	Attempt int
}

func (t Transition) String() string {
	if t.Attempt > 0 {
		return fmt.Sprintf("%s: %s -> %s(%d)", t.Path, t.From, t.To, t.Attempt)
	}
	return fmt.Sprintf("%s: %s -> %s", t.Path, t.From, t.To)
}
