// Package clock 抽象时间操作，便于对轮询循环做确定性测试。
//
// 生产代码注入 Real()，测试注入 NewFake()：Fake 的 Sleep 不阻塞，
// 而是直接把虚拟时间向前推进，从而可以断言"30 次尝试约耗时 30s"这类性质。
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock 时间源
type Clock interface {
	// Now 返回当前时间
	Now() time.Time

	// Sleep 暂停至少 d，ctx 被取消时提前返回 ctx.Err()
	Sleep(ctx context.Context, d time.Duration) error
}

// Real 返回基于标准 time 包的 Clock
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake 虚拟时钟，Sleep 立即返回并推进虚拟时间
//
// 并发安全。
type Fake struct {
	mu      sync.Mutex
	start   time.Time
	current time.Time
	sleeps  []time.Duration
}

// NewFake 创建从 start 开始的虚拟时钟
func NewFake(start time.Time) *Fake {
	return &Fake{start: start, current: start}
}

// Now 返回当前虚拟时间
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Sleep 记录本次睡眠并推进虚拟时间
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if d > 0 {
		f.current = f.current.Add(d)
	}
	f.sleeps = append(f.sleeps, d)
	return nil
}

// Advance 手动推进虚拟时间，不计入 Sleeps
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Sleeps 返回所有 Sleep 调用的时长
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

// Elapsed 返回自创建以来经过的虚拟时间
func (f *Fake) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current.Sub(f.start)
}
