package live

import "sync"

// Size 是以 CSS 像素计的容器尺寸，Height <= 0 表示不限高。
type Size struct {
	Width  float64
	Height float64
}

// ResizeTracker 把容器尺寸交给回调。只保留最新一次测量，
// 回调忙碌期间到达的测量互相覆盖，不排队。
type ResizeTracker struct {
	pending chan Size
	sub     *Subscription
	mu      sync.Mutex
	last    Size
	seen    bool
}

// WatchResize 在独立 goroutine 上把观测到的尺寸交给 fn。
func WatchResize(fn func(Size)) *ResizeTracker {
	t := &ResizeTracker{pending: make(chan Size, 1)}
	t.sub = NewSubscription(nil)
	go func() {
		for {
			select {
			case <-t.sub.Done():
				return
			case s := <-t.pending:
				fn(s)
			}
		}
	}()
	return t
}

// Observe 记录一次测量，从不阻塞，旧的待处理测量被替换。
func (t *ResizeTracker) Observe(s Size) {
	select {
	case <-t.sub.Done():
		return
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.last, t.seen = s, true
	for {
		select {
		case t.pending <- s:
			return
		default:
		}
		select {
		case <-t.pending:
		default:
		}
	}
}

// Last 返回最近一次测量。
func (t *ResizeTracker) Last() (Size, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.seen
}

func (t *ResizeTracker) Stop() {
	t.sub.Stop()
}
