// Package calendar 生成宾客确认出席后下载的 iCalendar 文件。
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const (
	ProdID      = "-//CELEBRIA//ES"
	ContentType = "text/calendar; charset=utf-8"
	// DefaultDuration 事件没有结束时间时使用。
	DefaultDuration = 2 * time.Hour
)

// ErrIncomplete 表示事件缺少开始时间或标题。
var ErrIncomplete = errors.New("calendar event needs a start and a summary")

// Event 对应一个 VEVENT。
type Event struct {
	UID      string
	Start    time.Time
	End      time.Time
	Summary  string
	Location string
	// Stamp 为生成时间，零值取当前时间。
	Stamp time.Time
}

// Attachment 是可直接下载的文件。
type Attachment struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Build 生成只含一个事件的 VCALENDAR，时间一律写成 UTC。
func Build(ev Event) (string, error) {
	if ev.Start.IsZero() || strings.TrimSpace(ev.Summary) == "" {
		return "", ErrIncomplete
	}
	end := ev.End
	if end.IsZero() || !end.After(ev.Start) {
		end = ev.Start.Add(DefaultDuration)
	}
	stamp := ev.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ics.NewCalendarFor("CELEBRIA")
	cal.SetProductId(ProdID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)

	event := cal.AddEvent(lineBreaks.Replace(ev.UID))
	event.SetDtStampTime(stamp)
	event.SetStartAt(ev.Start)
	event.SetEndAt(end)
	event.SetSummary(lineBreaks.Replace(ev.Summary))
	if loc := strings.TrimSpace(ev.Location); loc != "" {
		event.SetLocation(lineBreaks.Replace(loc))
	}

	var b strings.Builder
	if err := cal.SerializeTo(&b, ics.WithNewLineWindows); err != nil {
		return "", fmt.Errorf("serialize calendar: %w", err)
	}
	return b.String(), nil
}

// NewAttachment 以事件标题命名 .ics 附件。
func NewAttachment(ev Event) (*Attachment, error) {
	content, err := Build(ev)
	if err != nil {
		return nil, err
	}
	return &Attachment{
		FileName:    FileName(ev.Summary),
		ContentType: ContentType,
		Content:     content,
	}, nil
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeName    = regexp.MustCompile(`[/\\:*?"<>|]`)
)

// FileName 把标题转成 "<title>.ics"，连续空白替换为下划线。
func FileName(title string) string {
	name := strings.TrimSpace(title)
	name = unsafeName.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(name, "_")
	if name == "" {
		name = "evento"
	}
	return name + ".ics"
}
