// Package rsvp 实现宾客确认流程：由确认元素打开对话框，收集姓名，
// 先写本地记录，再提交一次，最后提供日历文件。
package rsvp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"celebria/internal/calendar"
	"celebria/internal/design"
)

// 确认对话框的状态。
type State int

const (
	Closed State = iota
	Open
	Submitting
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Submitting:
		return "submitting"
	default:
		return "closed"
	}
}

// SuccessMessage 是提交后展示给宾客的提示，后端失败时同样展示。
const SuccessMessage = "Confirmación registrada"

var (
	// ErrBusy 表示对话框已打开或正在提交。
	ErrBusy = errors.New("confirmation already in progress")
	// ErrNotOpen 表示 Submit 时没有打开的对话框。
	ErrNotOpen = errors.New("confirmation dialog is not open")
	// ErrNotRecorded 表示本地存储和后端都没有保存这次确认。
	ErrNotRecorded = errors.New("confirmation was not recorded")
)

// Prompt 是被点击的确认元素带来的参数。
type Prompt struct {
	Label      string `json:"label,omitempty"`
	DateISO    string `json:"dateISO,omitempty"`
	EndDateISO string `json:"endDateISO,omitempty"`
}

// Guest 是对话框输入。
type Guest struct {
	Name     string `json:"name"`
	LastName string `json:"lastName"`
}

// Record 是每个邀请函本地列表中的一条记录。
type Record struct {
	Name     string    `json:"name"`
	LastName string    `json:"lastName"`
	At       time.Time `json:"at"`
}

// FallbackStore 按邀请函 slug 保存只追加的确认列表。
type FallbackStore interface {
	Append(ctx context.Context, slug string, r Record) error
	List(ctx context.Context, slug string) ([]Record, error)
}

// Submitter 把确认提交给后端。
type Submitter interface {
	Submit(ctx context.Context, slug string, g Guest) error
}

// Invitation 是流程的只读上下文。
type Invitation struct {
	Slug  string
	Title string
	Event design.EventInfo
}

// Result 是宾客提交后得到的结果。
type Result struct {
	Record Record `json:"record"`
	// Submitted 表示后端是否接受了这次确认。
	Submitted bool                 `json:"submitted"`
	Calendar  *calendar.Attachment `json:"calendar,omitempty"`
}

// Flow 是一个邀请函页面上的对话框状态机。
type Flow struct {
	inv       Invitation
	store     FallbackStore
	submitter Submitter
	logger    *slog.Logger
	now       func() time.Time
	location  *time.Location

	mu     sync.Mutex
	state  State
	prompt Prompt
}

type Option func(*Flow)

func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

// WithLocation 设置无偏移日期所用的时区。
func WithLocation(loc *time.Location) Option {
	return func(f *Flow) {
		if loc != nil {
			f.location = loc
		}
	}
}

func NewFlow(inv Invitation, store FallbackStore, submitter Submitter, opts ...Option) *Flow {
	f := &Flow{
		inv:       inv,
		store:     store,
		submitter: submitter,
		logger:    slog.Default(),
		now:       time.Now,
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Open 为被点击的确认元素打开对话框。
func (f *Flow) Open(p Prompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Closed {
		return ErrBusy
	}
	f.state = Open
	f.prompt = p
	return nil
}

// Cancel 关闭对话框，不记录任何内容。
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Open {
		f.state = Closed
		f.prompt = Prompt{}
	}
}

// Submit 先写本地存储，再尝试提交一次，失败只记日志。
// 无论结果如何，最后都关闭对话框。
func (f *Flow) Submit(ctx context.Context, g Guest) (Result, error) {
	f.mu.Lock()
	if f.state != Open {
		f.mu.Unlock()
		return Result{}, ErrNotOpen
	}
	f.state = Submitting
	prompt := f.prompt
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.state = Closed
		f.prompt = Prompt{}
		f.mu.Unlock()
	}()

	g.Name = strings.TrimSpace(g.Name)
	g.LastName = strings.TrimSpace(g.LastName)
	at := f.now()
	res := Result{Record: Record{Name: g.Name, LastName: g.LastName, At: at.UTC()}}
	logger := f.logger.With(slog.String("slug", f.inv.Slug))

	stored := true
	if f.store != nil {
		if err := f.store.Append(ctx, f.inv.Slug, res.Record); err != nil {
			stored = false
			logger.Warn("fallback store append failed", slog.Any("error", err))
		}
	}

	if f.submitter != nil {
		if err := f.submitter.Submit(ctx, f.inv.Slug, g); err != nil {
			logger.Warn("confirmation submit failed", slog.Any("error", err))
		} else {
			res.Submitted = true
		}
	}

	if !stored && !res.Submitted {
		return res, ErrNotRecorded
	}

	att, err := f.attachment(prompt, at)
	if err != nil {
		logger.Info("calendar attachment skipped", slog.Any("error", err))
	}
	res.Calendar = att
	return res, nil
}

func (f *Flow) attachment(p Prompt, at time.Time) (*calendar.Attachment, error) {
	return CalendarFor(f.inv, p, f.location, at)
}

// CalendarFor 生成确认后下载的日历文件。开始时间取 p.DateISO，缺省时取活动日期；
// 没有开始时间或标题时返回 nil, nil。
func CalendarFor(inv Invitation, p Prompt, loc *time.Location, at time.Time) (*calendar.Attachment, error) {
	startISO := p.DateISO
	if startISO == "" {
		startISO = inv.Event.EventDate
	}
	if startISO == "" || strings.TrimSpace(inv.Title) == "" {
		return nil, nil
	}
	start, err := design.ParseISO(startISO, loc)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	var end time.Time
	if p.EndDateISO != "" {
		if end, err = design.ParseISO(p.EndDateISO, loc); err != nil {
			return nil, fmt.Errorf("end date: %w", err)
		}
	}
	return calendar.NewAttachment(calendar.Event{
		UID:      inv.Slug + "-" + strconv.FormatInt(at.UnixMilli(), 10),
		Start:    start,
		End:      end,
		Summary:  inv.Title,
		Location: inv.Event.Location,
		Stamp:    at,
	})
}
