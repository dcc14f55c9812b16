package render

import (
	"celebria/internal/design"
)

// DefaultBackground 是没有背景的页面的底色。
const DefaultBackground = "#D4AF37"

const pagePadding = 24

// PageDefaults 是页面继承的文档级设置。
type PageDefaults struct {
	Layout design.Layout
	Fonts  design.Fonts
	Colors map[string]string
}

// RenderPage 按逻辑尺寸绘制一页：背景、分区文本和元素。
// 音频元素跳过，由 RenderDocument 统一提升。
func RenderPage(page design.Page, defaults PageDefaults, ctx Context) *Node {
	lw, lh := LogicalSize(page.Orientation)
	ctx.Fonts = defaults.Fonts
	ctx.Colors = defaults.Colors

	s := Style{}.
		Set("position", "relative").
		Px("width", lw).
		Px("height", lh).
		Set("overflow", "hidden")
	s = backgroundStyle(s, page.Background)

	n := &Node{Role: RolePage, Style: s}
	n.Children = append(n.Children, renderSections(page, defaults, ctx)...)

	for _, el := range page.Elements {
		if el.Kind() == design.KindAudio {
			continue
		}
		if child := RenderElement(el, ctx); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

func backgroundStyle(s Style, bg *design.Background) Style {
	if bg == nil || bg.Value == "" {
		return s.Set("background", DefaultBackground)
	}
	if bg.Type != design.BackgroundImage {
		return s.Set("background", bg.Value)
	}
	fit := bg.Fit
	if fit == "" {
		fit = design.FitCover
	}
	return s.Set("background-color", DefaultBackground).
		URL("background-image", bg.Value).
		Set("background-size", string(fit)).
		Set("background-position", "center").
		Set("background-repeat", "no-repeat")
}

func renderSections(page design.Page, defaults PageDefaults, ctx Context) []*Node {
	header := page.SectionText(design.SectionHeader)
	body := page.SectionText(design.SectionBody)
	footer := page.SectionText(design.SectionFooter)

	textColor := ""
	if defaults.Colors != nil {
		textColor = defaults.Colors["text"]
	}

	headerNode := &Node{
		Role:    RoleSection,
		Section: design.SectionHeader,
		Text:    header,
		Style: Style{}.
			Set("font-family", ctx.headingFont()).
			Set("font-weight", "700").
			Set("color", textColor),
	}
	bodyNode := &Node{
		Role:    RoleSection,
		Section: design.SectionBody,
		Text:    body,
		Style: Style{}.
			Px("margin-top", 16).
			Px("font-size", 16).
			Set("white-space", "pre-line").
			Set("font-family", ctx.bodyFont()).
			Set("color", textColor),
	}
	footerNode := &Node{
		Role:    RoleSection,
		Section: design.SectionFooter,
		Text:    footer,
		Style: Style{}.
			Set("position", "absolute").
			Px("left", pagePadding).
			Px("right", pagePadding).
			Px("bottom", pagePadding).
			Px("font-size", 14).
			Set("opacity", "0.8").
			Set("color", textColor),
	}

	group := Style{}.
		Set("position", "absolute").
		Set("inset", "0").
		Px("padding", pagePadding)

	if defaults.Layout == design.LayoutCenteredHeader {
		headerNode.Style = headerNode.Style.Px("font-size", 30)
		group = group.Set("display", "flex").
			Set("flex-direction", "column").
			Set("align-items", "center").
			Set("justify-content", "center").
			Set("text-align", "center")
	} else {
		headerNode.Style = headerNode.Style.Px("font-size", 24)
	}

	return []*Node{
		{Role: RoleSections, Style: group, Children: []*Node{headerNode, bodyNode}},
		footerNode,
	}
}
