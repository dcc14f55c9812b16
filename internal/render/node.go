package render

import (
	"regexp"
	"strconv"
	"strings"

	"celebria/internal/design"
)

// Role 告诉 HTML 输出如何绘制节点。
type Role string

const (
	RoleDocument    Role = "document"
	RoleFrame       Role = "frame"
	RolePage        Role = "page"
	RoleSections    Role = "sections"
	RoleSection     Role = "section"
	RoleElement     Role = "element"
	RoleText        Role = "text"
	RoleImage       Role = "image"
	RoleMap         Role = "map"
	RoleCountdown   Role = "countdown"
	RoleWhatsApp    Role = "whatsapp"
	RoleConfirm     Role = "confirm"
	RoleAudio       Role = "audio"
	RolePlaceholder Role = "placeholder"
	RoleEmpty       Role = "empty"
)

// Node 是渲染树中的一个盒子，只设置与其 Role 相关的字段。
type Node struct {
	Role      Role
	Mode      Mode
	Kind      design.Kind
	ElementID string
	Section   design.SectionKey
	Style     Style
	Text      string
	Href      string
	Src       string

	Frame     *FrameInfo
	Countdown *CountdownInfo
	Audio     *AudioInfo
	Confirm   *ConfirmInfo

	Children []*Node
}

// FrameInfo 驱动页面的双层缩放。
type FrameInfo struct {
	Index         int
	LogicalWidth  float64
	LogicalHeight float64
	Scale         float64
}

type CountdownInfo struct {
	Target string
	Parts  [4]string
}

type AudioInfo struct {
	Source  design.Source
	URL     string
	VideoID string
}

type ConfirmInfo struct {
	Label      string
	DateISO    string
	EndDateISO string
	Action     string
	// Calendar 为空表示没有可用的开始时间或标题。
	Calendar *CalendarInfo
}

// CalendarInfo 是嵌入页面的日历文件，Data 为 base64 编码的内容。
type CalendarInfo struct {
	FileName    string
	ContentType string
	Data        string
}

// Walk 深度优先访问 n 及其子孙。
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find 返回树中所有 Role 为 r 的节点。
func (n *Node) Find(r Role) []*Node {
	var out []*Node
	n.Walk(func(c *Node) {
		if c.Role == r {
			out = append(out, c)
		}
	})
	return out
}

// Decl 是一条 CSS 声明。
type Decl struct {
	Prop  string
	Value string
}

// Style 按插入顺序保存声明，重复设置同一属性时原地覆盖。
type Style []Decl

// Set 写入一条声明；可能跳出声明的值整条丢弃。
func (s Style) Set(prop, value string) Style {
	return s.put(prop, cleanCSSValue(value))
}

// URL 把 raw 写成 url("...")。只放行 http(s)、站内绝对路径和 data:image。
func (s Style) URL(prop, raw string) Style {
	return s.put(prop, cssURL(raw))
}

func (s Style) put(prop, value string) Style {
	if value == "" {
		return s
	}
	for i := range s {
		if s[i].Prop == prop {
			s[i].Value = value
			return s
		}
	}
	return append(s, Decl{Prop: prop, Value: value})
}

// Px 写入像素长度。
func (s Style) Px(prop string, v float64) Style {
	return s.Set(prop, formatNumber(v)+"px")
}

func (s Style) Get(prop string) string {
	for _, d := range s {
		if d.Prop == prop {
			return d.Value
		}
	}
	return ""
}

// String 输出内联 style 属性值。
func (s Style) String() string {
	var b strings.Builder
	for i, d := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(d.Prop)
		b.WriteString(": ")
		b.WriteString(d.Value)
		b.WriteByte(';')
	}
	return b.String()
}

// unsafeCSS 匹配能跳出声明的字符和记号。
var unsafeCSS = regexp.MustCompile(`[;{}<>\\\x00-\x1f]|/\*|(?i)expression\s*\(|(?i)javascript:|(?i)url\s*\(`)

func cleanCSSValue(v string) string {
	v = strings.TrimSpace(v)
	if unsafeCSS.MatchString(v) {
		return ""
	}
	return v
}

func cssURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !allowedURL(raw) {
		return ""
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", "", "\r", "", "\x00", "")
	return `url("` + r.Replace(raw) + `")`
}

func allowedURL(raw string) bool {
	lower := strings.ToLower(raw)
	switch {
	case raw == "":
		return false
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return true
	case strings.HasPrefix(lower, "data:image/"):
		return true
	case strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//"):
		return true
	}
	return false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
