package live

import (
	"fmt"
	"time"
)

// TickInterval 是倒计时的刷新间隔。
const TickInterval = time.Second

// Remaining 是倒计时的拆分结果，各单位均不为负。
type Remaining struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// Breakdown 拆分距 target 的剩余时间，已过去的目标全部为零。
func Breakdown(target, now time.Time) Remaining {
	left := target.Sub(now)
	if left <= 0 {
		return Remaining{}
	}
	total := int64(left / time.Second)
	return Remaining{
		Days:    int(total / 86400),
		Hours:   int(total % 86400 / 3600),
		Minutes: int(total % 3600 / 60),
		Seconds: int(total % 60),
	}
}

func (r Remaining) IsZero() bool {
	return r == Remaining{}
}

// Duration 把拆分结果还原成时长。
func (r Remaining) Duration() time.Duration {
	return time.Duration(r.Days)*24*time.Hour +
		time.Duration(r.Hours)*time.Hour +
		time.Duration(r.Minutes)*time.Minute +
		time.Duration(r.Seconds)*time.Second
}

// Padded 以两位字符串返回天、时、分、秒。
func (r Remaining) Padded() [4]string {
	return [4]string{Pad2(r.Days), Pad2(r.Hours), Pad2(r.Minutes), Pad2(r.Seconds)}
}

// Pad2 把 n 补零到至少两位。
func Pad2(n int) string {
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%02d", n)
}

// StartCountdown 立即用当前结果调用一次 fn，此后每个 tick 调用一次，
// 直到订阅被停止。
func StartCountdown(clock Clock, target time.Time, fn func(Remaining)) *Subscription {
	if clock == nil {
		clock = SystemClock{}
	}
	ticker := clock.NewTicker(TickInterval)
	sub := NewSubscription(ticker.Stop)

	fn(Breakdown(target, clock.Now()))
	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case <-ticker.C():
				select {
				case <-sub.Done():
					return
				default:
				}
				fn(Breakdown(target, clock.Now()))
			}
		}
	}()
	return sub
}
