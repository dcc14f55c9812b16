package worker

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"celebria/internal/design"
	"celebria/internal/live"
	"celebria/internal/metrics"
	"celebria/internal/pdf"
	"celebria/internal/render"
)

// FrameSelector 匹配一个渲染后的页面框。
const FrameSelector = ".celebria-frame"

// snapshot 是为无头浏览器排好版的邀请函。
type snapshot struct {
	HTML     string
	Viewport pdf.Viewport
	Paper    pdf.Paper
}

// buildSnapshot 按第一页尺寸把 doc 叠放渲染。方向不同的后续页
// 缩小到同一纸张内。
func buildSnapshot(ctx context.Context, doc design.Document, event design.EventInfo, title string, loc *time.Location, now time.Time) (snapshot, error) {
	var orientation design.Orientation
	if len(doc.Pages) > 0 {
		orientation = doc.Pages[0].Orientation
	}
	w, h := render.LogicalSize(orientation)

	root := render.RenderDocument(doc, event, render.Options{
		Mode:     render.ModePreview,
		Title:    title,
		Viewport: live.Size{Width: w, Height: h},
		Location: loc,
		Now:      now,
	})
	metrics.ObserveRender(string(render.ModePreview))

	var buf bytes.Buffer
	if err := render.WritePage(ctx, &buf, render.PageData{Title: title, Root: root}); err != nil {
		return snapshot{}, fmt.Errorf("write invitation html: %w", err)
	}
	return snapshot{
		HTML:     buf.String(),
		Viewport: pdf.Viewport{Width: int(w), Height: int(h)},
		Paper:    pdf.Paper{Width: w, Height: h},
	}, nil
}
