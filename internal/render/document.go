package render

import (
	"time"

	"celebria/internal/design"
	"celebria/internal/live"
)

const (
	PlaceholderTitle     = "Invitación"
	PlaceholderPrimary   = "#8b5cf6"
	PlaceholderSecondary = "#f59e0b"
)

// Options 是 RenderDocument 各调用方的参数。
type Options struct {
	Mode Mode
	// Selected 是编辑模式下显示的页，越界时收敛到合法范围。
	Selected int
	// Title 是占位页显示的邀请函标题。
	Title string
	// Viewport 是初始容器尺寸，运行时脚本会随尺寸变化重新缩放。
	Viewport live.Size

	Location *time.Location
	Now      time.Time
	// ConfirmAction 为空时确认按钮不打开对话框。
	ConfirmAction string
	// Slug 用于确认后日历文件的 UID。
	Slug string
}

// DefaultViewport 在调用方还没有测量值时使用。
var DefaultViewport = live.Size{Width: PortraitWidth, Height: Unbounded}

// RenderDocument 按 opts.Mode 渲染 doc。编辑模式只画选中页，其余模式依次叠放所有页。
// 第一个带 URL 的音频元素提升为唯一的隐藏播放器，空文档渲染占位页。
func RenderDocument(doc design.Document, event design.EventInfo, opts Options) *Node {
	if !opts.Mode.Valid() {
		opts.Mode = ModePublic
	}
	viewport := opts.Viewport
	if viewport.Width <= 0 {
		viewport = DefaultViewport
	}

	root := &Node{Role: RoleDocument, Mode: opts.Mode, Style: documentStyle(opts.Mode)}

	if audio, ok := HoistAudio(doc); ok {
		root.Children = append(root.Children, audioNode(audio))
	}

	if len(doc.Pages) == 0 {
		root.Children = append(root.Children, placeholderNode(doc, opts.Title))
		return root
	}

	ctx := Context{
		Event:         event,
		Title:         opts.Title,
		Slug:          opts.Slug,
		Mode:          opts.Mode,
		Location:      opts.Location,
		Now:           opts.Now,
		ConfirmAction: opts.ConfirmAction,
	}
	defaults := PageDefaults{Layout: doc.Layout, Fonts: doc.Fonts, Colors: doc.Colors}

	indexes := pageIndexes(len(doc.Pages), opts)
	for _, i := range indexes {
		page := doc.Pages[i]
		root.Children = append(root.Children, frameNode(i, page, RenderPage(page, defaults, ctx), viewport))
	}
	return root
}

func pageIndexes(n int, opts Options) []int {
	if opts.Mode == ModeEditor {
		return []int{ClampPage(opts.Selected, n)}
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// ClampPage 把 idx 限制在 [0, n) 内。
func ClampPage(idx, n int) int {
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func documentStyle(m Mode) Style {
	s := Style{}.
		Set("display", "flex").
		Set("flex-direction", "column").
		Set("align-items", "center").
		Px("gap", 24)
	if m == ModePublic {
		s = s.Set("background-color", DefaultBackground).Set("min-height", "100vh").Px("padding", 20)
	}
	return s
}

// frameNode 用按缩放后尺寸定大小的外框包住逻辑页。
func frameNode(index int, page design.Page, inner *Node, viewport live.Size) *Node {
	sc := ComputeScale(page.Orientation, viewport.Width, viewport.Height)
	w, h := sc.OuterSize()

	inner.Style = inner.Style.
		Set("position", "absolute").
		Set("left", "0").
		Set("top", "0").
		Set("transform", "scale("+formatNumber(sc.Scale)+")").
		Set("transform-origin", "top left")

	return &Node{
		Role: RoleFrame,
		Style: Style{}.
			Set("position", "relative").
			Px("width", w).
			Px("height", h).
			Set("margin", "0 auto").
			Set("overflow", "hidden").
			Px("border-radius", 8),
		Frame: &FrameInfo{
			Index:         index,
			LogicalWidth:  sc.LogicalWidth,
			LogicalHeight: sc.LogicalHeight,
			Scale:         sc.Scale,
		},
		Children: []*Node{inner},
	}
}

// HoistAudio 返回第一个带 URL 的音频元素，先看页面再看元素。
func HoistAudio(doc design.Document) (design.AudioData, bool) {
	for _, page := range doc.Pages {
		for _, el := range page.Elements {
			if a, ok := el.Data.(design.AudioData); ok && a.URL != "" {
				return a, true
			}
		}
	}
	return design.AudioData{}, false
}

func audioNode(a design.AudioData) *Node {
	info := &AudioInfo{Source: a.SourceOrDefault(), URL: a.URL}
	if info.Source == design.SourceYouTube {
		info.VideoID = YouTubeID(a.URL)
	}
	return &Node{
		Role: RoleAudio,
		Kind: design.KindAudio,
		Style: Style{}.
			Set("position", "absolute").
			Set("width", "0").
			Set("height", "0").
			Set("overflow", "hidden").
			Set("left", "-9999px").
			Set("top", "-9999px"),
		Audio: info,
	}
}

func placeholderNode(doc design.Document, title string) *Node {
	if title == "" {
		title = PlaceholderTitle
	}
	heading := doc.Fonts.Heading
	if heading == "" {
		heading = DefaultHeadingFont
	}
	body := doc.Fonts.Body
	if body == "" {
		body = DefaultBodyFont
	}
	gradient := "linear-gradient(135deg, " +
		doc.Color("primary", PlaceholderPrimary) + ", " +
		doc.Color("secondary", PlaceholderSecondary) + ")"

	return &Node{
		Role: RolePlaceholder,
		Style: Style{}.
			Set("display", "flex").
			Set("align-items", "center").
			Set("justify-content", "center").
			Px("min-height", 480).
			Px("width", PortraitWidth).
			Px("border-radius", 8).
			Set("background", gradient).
			Set("color", doc.Color("text", "#ffffff")).
			Set("font-family", body),
		Children: []*Node{{
			Role: RoleSection,
			Text: title,
			Style: Style{}.
				Set("font-family", heading).
				Px("font-size", 30).
				Set("font-weight", "700").
				Set("text-align", "center"),
		}},
	}
}
