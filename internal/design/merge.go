package design

import (
	"fmt"
	"strings"
	"time"
)

const (
	infoSeparator      = " • "
	paragraphSeparator = "\n\n"
)

// EventDetails 是正文里描述活动的文本块：
// 第一行是标题、日期和地点，下一行是描述。
type EventDetails struct {
	Title    string
	Date     string
	Location string
	Text     string
}

// ComposeEventDetails 用 f 打印日期，拼出活动信息块。
func ComposeEventDetails(event EventInfo, f DateFormatter) EventDetails {
	d := EventDetails{
		Title:    strings.TrimSpace(event.Title),
		Location: strings.TrimSpace(event.Location),
	}
	if event.EventDate != "" && f != nil {
		loc := time.Local
		if lf, ok := f.(interface{ Location() *time.Location }); ok {
			loc = lf.Location()
		}
		if t, err := ParseISO(event.EventDate, loc); err == nil {
			d.Date = f.FormatDate(t)
		}
	}

	info := joinNonEmpty(infoSeparator, d.Title, d.Date, d.Location)
	d.Text = joinNonEmpty("\n", info, strings.TrimSpace(event.Description))
	return d
}

// FoundIn 判断 body 是否已提到标题、日期或地点。
// 空字段不算命中。
func (d EventDetails) FoundIn(body string) bool {
	if d.Text != "" && strings.Contains(body, d.Text) {
		return true
	}
	for _, part := range []string{d.Title, d.Date, d.Location} {
		if part != "" && strings.Contains(body, part) {
			return true
		}
	}
	return false
}

// InjectEventDetails 在第 0 页正文末尾追加活动信息，正文已提到时不追加。
// 缺少第 0 页或正文分区时自动创建。
func InjectEventDetails(doc Document, event EventInfo, f DateFormatter) Document {
	details := ComposeEventDetails(event, f)
	if details.Text == "" {
		return doc.Clone()
	}
	return rewriteCoverBody(doc, func(body string) string {
		if details.FoundIn(body) {
			return body
		}
		return joinNonEmpty(paragraphSeparator, body, details.Text)
	})
}

// ResyncEventDetails 在活动变更后刷新信息块。正文已有信息时，
// 第一段之后的内容整体替换为新块。
func ResyncEventDetails(doc Document, event EventInfo, f DateFormatter) Document {
	details := ComposeEventDetails(event, f)
	if details.Text == "" {
		return doc.Clone()
	}
	return rewriteCoverBody(doc, func(body string) string {
		if !details.FoundIn(body) {
			return joinNonEmpty(paragraphSeparator, body, details.Text)
		}
		head, _, _ := strings.Cut(body, paragraphSeparator)
		if details.FoundIn(head) {
			return details.Text
		}
		return joinNonEmpty(paragraphSeparator, head, details.Text)
	})
}

func rewriteCoverBody(doc Document, rewrite func(string) string) Document {
	out := EnsurePages(doc, 1)
	cover := &out.Pages[0]
	cover.setSection(SectionBody, rewrite(cover.SectionText(SectionBody)))
	return out
}

// ImportTemplatePages 把模板页的副本追加到 doc，两个入参都不修改。
// 副本中 header、body、footer 以外的分区被丢弃。
func ImportTemplatePages(doc Document, tpl Document) Document {
	out := doc.Clone()
	for _, p := range tpl.Pages {
		page := p.Clone()
		sections := page.Sections[:0]
		for _, s := range page.Sections {
			if s.Key.Valid() {
				sections = append(sections, s)
			}
		}
		page.Sections = sections
		out.Pages = append(out.Pages, page)
	}
	return out
}

// EnsurePages 用空白页把 doc 补到至少 n 页。
func EnsurePages(doc Document, n int) Document {
	out := doc.Clone()
	for len(out.Pages) < n {
		out.Pages = append(out.Pages, BlankPage())
	}
	return out
}

// SectionRouting 记录每个分区应落在哪一页。
type SectionRouting struct {
	Header int `json:"header"`
	Body   int `json:"body"`
	Footer int `json:"footer"`
}

// PageFor 返回 key 对应的页码。
func (r SectionRouting) PageFor(key SectionKey) int {
	switch key {
	case SectionHeader:
		return r.Header
	case SectionFooter:
		return r.Footer
	default:
		return r.Body
	}
}

// RouteSections 把各段文本写到对应页，目标页超出末尾时补空白页。
// texts 中没有的分区保持不变。
func RouteSections(doc Document, routing SectionRouting, texts map[SectionKey]string) (Document, error) {
	out := doc.Clone()
	for _, key := range SectionKeys {
		text, ok := texts[key]
		if !ok {
			continue
		}
		idx := routing.PageFor(key)
		if idx < 0 {
			return doc, fmt.Errorf("route %s to page %d: %w", key, idx, ErrPageIndex)
		}
		out = EnsurePages(out, idx+1)
		out.Pages[idx].setSection(key, text)
	}
	return out, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
