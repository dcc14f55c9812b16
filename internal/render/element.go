package render

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
	"time"

	"celebria/internal/design"
	"celebria/internal/live"
	"celebria/internal/rsvp"
)

// Mode 表示渲染器服务于哪个调用方。
type Mode string

const (
	ModeEditor  Mode = "editor-single-page"
	ModePreview Mode = "stacked-preview"
	ModePublic  Mode = "public-scroll"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeEditor, ModePreview, ModePublic:
		return true
	}
	return false
}

const (
	WhatsAppColor       = "#25D366"
	ConfirmColor        = "#8b5cf6"
	WhatsAppLabel       = "Agendar asistencia"
	ConfirmLabel        = "Confirmar asistencia"
	DefaultHeadingFont  = "serif"
	DefaultBodyFont     = "sans-serif"
	defaultButtonRadius = "8px"
)

// Context 是元素自身数据之外需要的上下文。
type Context struct {
	Event  design.EventInfo
	Fonts  design.Fonts
	Colors map[string]string
	Mode   Mode
	// Location 用于解析不带偏移的活动日期。
	Location *time.Location
	// Now 决定倒计时的首帧，之后由运行时脚本继续刷新。
	Now time.Time
	// ConfirmAction 是确认对话框提交的地址。
	ConfirmAction string
	// Title 和 Slug 用于确认按钮提供的日历文件。
	Title string
	Slug  string
}

func (c Context) bodyFont() string {
	if c.Fonts.Body != "" {
		return c.Fonts.Body
	}
	return DefaultBodyFont
}

func (c Context) headingFont() string {
	if c.Fonts.Heading != "" {
		return c.Fonts.Heading
	}
	return DefaultHeadingFont
}

func (c Context) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

// RenderElement 把一个元素转成可视节点。音频和未知类型返回 nil，
// 音频由 RenderDocument 为整份文档统一绘制。
func RenderElement(el design.Element, ctx Context) *Node {
	var content *Node
	switch data := el.Data.(type) {
	case design.TextData:
		content = renderText(el, data, ctx)
	case design.ImageData:
		content = renderImage(el, data, ctx)
	case design.MapData:
		content = renderMap(el, data, ctx)
	case design.CountdownData:
		content = renderCountdown(el, data, ctx)
	case design.WhatsAppData:
		content = renderWhatsApp(el, data)
	case design.ConfirmData:
		content = renderConfirm(el, data, ctx)
	default:
		return nil
	}
	if content == nil {
		return nil
	}
	return &Node{
		Role:      RoleElement,
		Kind:      el.Kind(),
		ElementID: el.ID,
		Style:     boxStyle(el.Common),
		Children:  []*Node{content},
	}
}

// boxStyle 在逻辑页内定位元素。
func boxStyle(c design.Common) Style {
	s := Style{}.
		Set("position", "absolute").
		Px("left", c.X).
		Px("top", c.Y).
		Set("z-index", itoa(c.Layer())).
		Set("transform", "rotate("+formatNumber(c.Rotation)+"deg)").
		Set("transform-origin", "center")
	return s
}

func sized(s Style, el design.Element, w, h float64) Style {
	if el.Width > 0 {
		w = el.Width
	}
	if el.Height > 0 {
		h = el.Height
	}
	if w > 0 {
		s = s.Px("width", w)
	}
	if h > 0 {
		s = s.Px("height", h)
	}
	return s
}

// applyStyles 把自由样式覆盖写入 s。
func applyStyles(s Style, st design.Styles) Style {
	s = s.Set("color", st.Color)
	s = s.Set("font-size", st.FontSize.Length())
	s = s.Set("font-weight", string(st.FontWeight))
	s = s.Set("background-color", st.BackgroundColor)
	s = s.Set("border-radius", st.BorderRadius.Length())
	return s
}

func renderText(el design.Element, data design.TextData, ctx Context) *Node {
	s := sized(Style{}, el, 0, 0)
	s = s.Set("white-space", "pre-wrap")
	s = applyStyles(s, el.Styles)
	font := el.Styles.FontFamily
	if font == "" {
		font = ctx.bodyFont()
	}
	s = s.Set("font-family", font)
	return &Node{Role: RoleText, Style: s, Text: data.Content}
}

func imageDefaults(m Mode) (size float64, fit string) {
	switch m {
	case ModePreview:
		return 100, string(design.FitContain)
	case ModePublic:
		return 200, string(design.FitCover)
	default:
		return 200, string(design.FitContain)
	}
}

func renderImage(el design.Element, data design.ImageData, ctx Context) *Node {
	size, fit := imageDefaults(ctx.Mode)
	if el.Styles.ObjectFit != "" {
		fit = el.Styles.ObjectFit
	}
	s := sized(Style{}, el, size, size)
	if !allowedURL(data.Src) {
		if ctx.Mode != ModeEditor {
			return nil
		}
		s = s.Set("border", "1px dashed #9ca3af")
		return &Node{Role: RoleEmpty, Style: s, Text: "Imagen"}
	}
	s = s.Set("object-fit", fit).Set("border-radius", el.Styles.BorderRadius.Length())
	return &Node{Role: RoleImage, Style: s, Src: data.Src}
}

func renderMap(el design.Element, data design.MapData, ctx Context) *Node {
	var query, custom string
	if data.SourceOrDefault() == design.SourceEvent {
		query = ctx.Event.Location
	} else {
		query, custom = data.Query, data.URL
	}
	s := sized(Style{}, el, 300, 200)
	s = s.Set("border-radius", "8px").Set("overflow", "hidden")
	s = applyStyles(s, el.Styles)

	src := MapEmbedSrc(query, custom)
	if src == "" {
		return &Node{Role: RoleEmpty, Style: s.Set("background-color", "#e5e7eb")}
	}
	return &Node{Role: RoleMap, Style: s, Src: src}
}

func renderCountdown(el design.Element, data design.CountdownData, ctx Context) *Node {
	target := data.DateISO
	if data.SourceOrDefault() == design.SourceEvent {
		target = ctx.Event.EventDate
	}
	s := sized(Style{}, el, 300, 60)
	s = applyStyles(s, el.Styles)

	info := &CountdownInfo{Parts: live.Remaining{}.Padded()}
	if t, ok := ParseCountdownTarget(target, ctx.location()); ok {
		info.Target = t.UTC().Format(time.RFC3339)
		now := ctx.Now
		if now.IsZero() {
			now = time.Now()
		}
		info.Parts = CountdownParts(t, now)
	}
	return &Node{Role: RoleCountdown, Style: s, Countdown: info}
}

func renderWhatsApp(el design.Element, data design.WhatsAppData) *Node {
	label := data.Label
	if label == "" {
		label = WhatsAppLabel
	}
	return &Node{
		Role:  RoleWhatsApp,
		Style: buttonStyle(el, WhatsAppColor),
		Href:  WhatsAppLink(data.Phone, data.Message),
		Text:  label,
	}
}

func renderConfirm(el design.Element, data design.ConfirmData, ctx Context) *Node {
	label := data.Label
	if label == "" {
		label = ConfirmLabel
	}
	info := &ConfirmInfo{
		Label:      label,
		DateISO:    data.DateISO,
		EndDateISO: data.EndDateISO,
		Action:     ctx.ConfirmAction,
	}
	if ctx.ConfirmAction != "" {
		info.Calendar = confirmCalendar(data, ctx)
	}
	return &Node{
		Role:    RoleConfirm,
		Style:   buttonStyle(el, ConfirmColor),
		Text:    label,
		Confirm: info,
	}
}

// confirmCalendar 预先生成确认后下载的 .ics，
// 下载不依赖确认请求是否成功。
func confirmCalendar(data design.ConfirmData, ctx Context) *CalendarInfo {
	loc := ctx.Location
	if loc == nil {
		loc = time.UTC
	}
	at := ctx.Now
	if at.IsZero() {
		at = time.Now()
	}
	inv := rsvp.Invitation{Slug: ctx.Slug, Title: ctx.Title, Event: ctx.Event}
	prompt := rsvp.Prompt{Label: data.Label, DateISO: data.DateISO, EndDateISO: data.EndDateISO}
	att, err := rsvp.CalendarFor(inv, prompt, loc, at)
	if err != nil || att == nil {
		return nil
	}
	return &CalendarInfo{
		FileName:    att.FileName,
		ContentType: att.ContentType,
		Data:        base64.StdEncoding.EncodeToString([]byte(att.Content)),
	}
}

func buttonStyle(el design.Element, background string) Style {
	st := el.Styles
	if st.BackgroundColor == "" {
		st.BackgroundColor = background
	}
	if st.Color == "" {
		st.Color = "#ffffff"
	}
	if st.BorderRadius == "" {
		st.BorderRadius = defaultButtonRadius
	}
	if st.FontWeight == "" {
		st.FontWeight = "600"
	}
	s := sized(Style{}, el, 220, 44)
	s = s.Set("display", "inline-flex").
		Set("align-items", "center").
		Set("justify-content", "center").
		Set("text-decoration", "none").
		Set("border", "0").
		Set("cursor", "pointer")
	s = applyStyles(s, st)
	return s.Set("font-family", st.FontFamily)
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// WhatsAppLink 生成 wa.me 链接，电话只保留数字，消息做百分号编码。
func WhatsAppLink(phone, message string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	return "https://wa.me/" + digits + "?text=" + encodeURIComponent(message)
}

// encodeURIComponent 与浏览器同名函数的转义规则一致。
func encodeURIComponent(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	r := strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*", "%7E", "~")
	return r.Replace(e)
}

// MapEmbedSrc 返回可嵌入的地图地址。已指向 embed 端点的自定义地址原样使用，
// 其他输入作为自由文本查询。输入为空时返回空串。
func MapEmbedSrc(query, customURL string) string {
	customURL = strings.TrimSpace(customURL)
	if strings.Contains(customURL, "/embed") && allowedURL(customURL) {
		return customURL
	}
	q := strings.TrimSpace(query)
	if q == "" {
		q = customURL
	}
	if q == "" {
		return ""
	}
	return "https://www.google.com/maps?q=" + encodeURIComponent(q) + "&output=embed"
}

var youTubeIDPattern = regexp.MustCompile(`(?:v=|be/)([\w-]{6,})`)

// YouTubeID 从 youtu.be 和 youtube.com 链接中取出视频 id。
func YouTubeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		switch {
		case strings.Contains(u.Hostname(), "youtu.be"):
			return strings.TrimPrefix(u.Path, "/")
		case strings.Contains(u.Hostname(), "youtube.com"):
			if v := u.Query().Get("v"); v != "" {
				return v
			}
			if rest, ok := strings.CutPrefix(u.Path, "/embed/"); ok {
				return rest
			}
			return ""
		}
	}
	if m := youTubeIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

var wallClock = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[T ](\d{2}):(\d{2})`)

// ParseCountdownTarget 解析倒计时目标。以日期加时:分开头的字符串按 loc 的墙上时间处理，
// 秒和偏移被忽略；其他字符串交给 design.ParseISO。
func ParseCountdownTarget(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if m := wallClock.FindStringSubmatch(s); m != nil {
		t, err := time.ParseInLocation("2006-01-02 15:04", m[1]+"-"+m[2]+"-"+m[3]+" "+m[4]+":"+m[5], loc)
		return t, err == nil
	}
	t, err := design.ParseISO(s, loc)
	return t, err == nil
}

// CountdownParts 是距 target 剩余的天、时、分、秒，均补零到两位。
func CountdownParts(target, now time.Time) [4]string {
	return live.Breakdown(target, now).Padded()
}

func itoa(n int) string {
	return formatNumber(float64(n))
}
