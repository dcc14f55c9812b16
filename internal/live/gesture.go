package live

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Interaction 是浏览器认可、允许有声播放的用户手势。
type Interaction string

const (
	InteractionPointer Interaction = "pointerdown"
	InteractionClick   Interaction = "click"
	InteractionTouch   Interaction = "touchstart"
	InteractionKey     Interaction = "keydown"
)

// Interactions 是运行时监听的手势。
var Interactions = []Interaction{InteractionPointer, InteractionClick, InteractionTouch, InteractionKey}

// OnceGate 只在第一次 Trigger 时执行动作。
type OnceGate struct {
	once  sync.Once
	fired atomic.Bool
	fn    func()
}

func NewOnceGate(fn func()) *OnceGate {
	return &OnceGate{fn: fn}
}

// Trigger 在动作未执行过时执行它，并返回本次是否执行。
func (g *OnceGate) Trigger() bool {
	ran := false
	g.once.Do(func() {
		g.fired.Store(true)
		ran = true
		if g.fn != nil {
			g.fn()
		}
	})
	return ran
}

func (g *OnceGate) Fired() bool {
	return g.fired.Load()
}

// Player 是音频文件或内嵌视频的播放面。
type Player interface {
	SetMuted(muted bool)
	Play() error
	Pause()
}

// Autoplay 静音启动播放器，首次用户交互后取消静音。
type Autoplay struct {
	player Player
	gate   *OnceGate
	sub    *Subscription
	logger *slog.Logger
}

// StartAutoplay 立即尝试静音播放。失败只记日志，
// 等宾客第一次交互时带声音重试。
func StartAutoplay(p Player, logger *slog.Logger) *Autoplay {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Autoplay{player: p, logger: logger}
	a.gate = NewOnceGate(func() {
		p.SetMuted(false)
		if err := p.Play(); err != nil {
			a.logger.Warn("unmuted playback failed", slog.Any("error", err))
		}
	})
	a.sub = NewSubscription(p.Pause)

	p.SetMuted(true)
	if err := p.Play(); err != nil {
		logger.Info("muted autoplay blocked, waiting for interaction", slog.Any("error", err))
	}
	return a
}

// Interact 转发一次用户手势，启动后只有第一次生效。
func (a *Autoplay) Interact(Interaction) bool {
	select {
	case <-a.sub.Done():
		return false
	default:
	}
	return a.gate.Trigger()
}

func (a *Autoplay) Stop() {
	a.sub.Stop()
}
