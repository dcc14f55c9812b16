// Package live 建模页面绘制后仍在运行的行为：倒计时刷新、
// 容器尺寸跟踪、手势解锁的音频和一次性脚本加载。
// 每个行为以 Subscription 获得，用 Stop 释放。
package live

import (
	"sync"
	"time"
)

// Subscription 持有一个运行中的行为。Stop 释放它，可重复调用。
type Subscription struct {
	once sync.Once
	stop func()
	done chan struct{}
}

// NewSubscription 包装 stop，保证最多执行一次。
func NewSubscription(stop func()) *Subscription {
	return &Subscription{stop: stop, done: make(chan struct{})}
}

func (s *Subscription) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
	})
}

// Done 在 Stop 调用后关闭。
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Clock 抽象时间，测试可以驱动 ticker。
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock 是系统时钟。
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
