package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	pageTimeout  = 30 * time.Second
	cssPxPerInch = 96.0
)

// Viewport 是排版邀请函用的浏览器窗口。
type Viewport struct {
	Width  int
	Height int
}

// Paper 是以 CSS 像素计的 PDF 页面尺寸。
type Paper struct {
	Width  float64
	Height float64
}

// PrintCSS 让每个页面框打印成一页，无页边距。
const PrintCSS = `
@media print {
  * { -webkit-print-color-adjust: exact !important; print-color-adjust: exact !important; }
  html, body { margin: 0 !important; padding: 0 !important; }
  .celebria-doc { gap: 0 !important; padding: 0 !important; min-height: 0 !important; }
  .celebria-frame { border-radius: 0 !important; break-after: page; }
  .celebria-frame:last-child { break-after: auto; }
  #celebria-confirm, .celebria-audio { display: none !important; }
}
`

const waitFontsScript = `() => {
  if (document && document.fonts && document.fonts.ready) {
    return Promise.race([
      document.fonts.ready.then(() => true),
      new Promise((resolve) => setTimeout(() => resolve(true), 3000))
    ]);
  }
  return true;
}`

// Browser 持有一个常驻的无头 Chromium，供 worker 复用。
type Browser struct {
	launch  *launcher.Launcher
	browser *rod.Browser
	logger  *slog.Logger

	closeOnce sync.Once
}

// Launch 启动无头浏览器并建立连接。
func Launch(logger *slog.Logger) (_ *Browser, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)
	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}
	defer func() {
		if err != nil {
			launch.Cleanup()
		}
	}()

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &Browser{launch: launch, browser: browser, logger: logger}, nil
}

// Close 关闭浏览器并清理临时目录。
func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		_ = b.browser.Close()
		b.launch.Cleanup()
	})
}

// open 在按 vp 设定尺寸的新标签页中加载 htmlContent。
func (b *Browser) open(ctx context.Context, htmlContent string, vp Viewport) (*rod.Page, func(), error) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return nil, func() {}, errors.New("viewport must be positive")
	}
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, func() {}, fmt.Errorf("create page: %w", err)
	}
	cleanup := func() { _ = page.Close() }

	page = page.Timeout(pageTimeout)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.SetDocumentContent(htmlContent); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("wait load: %w", err)
	}
	// 等待字体就绪，避免回退字体度量导致排版差异
	if _, err := page.Eval(waitFontsScript); err != nil {
		b.logger.Warn("document.fonts.ready wait failed, continue", slog.Any("error", err))
	}
	return page, cleanup, nil
}

// PDF 渲染 HTML 并按 paper 尺寸导出 PDF，每个页面框一页。
func (b *Browser) PDF(ctx context.Context, htmlContent string, vp Viewport, paper Paper) ([]byte, error) {
	page, cleanup, err := b.open(ctx, htmlContent, vp)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := page.AddStyleTag("", PrintCSS); err != nil {
		return nil, fmt.Errorf("inject print css: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      float64Ptr(paper.Width / cssPxPerInch),
		PaperHeight:     float64Ptr(paper.Height / cssPxPerInch),
		MarginTop:       float64Ptr(0),
		MarginBottom:    float64Ptr(0),
		MarginLeft:      float64Ptr(0),
		MarginRight:     float64Ptr(0),
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}

// Screenshot 截取 selector 对应元素的 JPEG；找不到元素时退回整页截图。
func (b *Browser) Screenshot(ctx context.Context, htmlContent string, vp Viewport, selector string, quality int) ([]byte, error) {
	page, cleanup, err := b.open(ctx, htmlContent, vp)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if selector != "" {
		if el, err := page.Timeout(5 * time.Second).Element(selector); err == nil {
			if data, shotErr := el.Screenshot(proto.PageCaptureScreenshotFormatJpeg, quality); shotErr == nil {
				return data, nil
			}
		}
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: intPtr(quality),
	})
	if err != nil {
		return nil, fmt.Errorf("page screenshot: %w", err)
	}
	return data, nil
}

func float64Ptr(value float64) *float64 {
	return &value
}

func intPtr(value int) *int {
	return &value
}
