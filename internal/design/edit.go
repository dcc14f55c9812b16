package design

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrPageIndex 表示目标页不存在。
	ErrPageIndex = errors.New("page index out of range")
	// ErrElementNotFound 表示页面上没有该 id 的元素。
	ErrElementNotFound = errors.New("element not found")
	// ErrUnknownKind 表示编辑器无法创建该类型的元素。
	ErrUnknownKind = errors.New("unknown element kind")
	// ErrSectionKey 表示分区键不是 header、body 或 footer。
	ErrSectionKey = errors.New("invalid section key")
)

// 测试中替换以得到固定 id。
var newID = func() string { return uuid.NewString() }

// 以下编辑操作都不修改入参，总是返回新文档。

// AddPage 追加一张空白页。
func AddPage(doc Document) Document {
	out := doc.Clone()
	out.Pages = append(out.Pages, BlankPage())
	return out
}

// RemovePage 删除第 idx 页。
func RemovePage(doc Document, idx int) (Document, error) {
	if idx < 0 || idx >= len(doc.Pages) {
		return doc, fmt.Errorf("remove page %d: %w", idx, ErrPageIndex)
	}
	out := doc.Clone()
	out.Pages = append(out.Pages[:idx], out.Pages[idx+1:]...)
	return out, nil
}

// MovePage 把第 from 页移到 to。越界或相等时顺序不变。
func MovePage(doc Document, from, to int) Document {
	n := len(doc.Pages)
	out := doc.Clone()
	if from == to || from < 0 || to < 0 || from >= n || to >= n {
		return out
	}
	page := out.Pages[from]
	out.Pages = append(out.Pages[:from], out.Pages[from+1:]...)
	out.Pages = append(out.Pages[:to], append([]Page{page}, out.Pages[to:]...)...)
	return out
}

// SetBackground 替换第 idx 页的背景，图片背景默认 cover。
func SetBackground(doc Document, idx int, bg Background) (Document, error) {
	return updatePage(doc, idx, "set background", func(p *Page) error {
		if bg.Type == BackgroundImage && bg.Fit == "" {
			bg.Fit = FitCover
		}
		if bg.Type == BackgroundColor {
			bg.Fit = ""
		}
		p.Background = &bg
		return nil
	})
}

func SetOrientation(doc Document, idx int, o Orientation) (Document, error) {
	return updatePage(doc, idx, "set orientation", func(p *Page) error {
		p.Orientation = o
		return nil
	})
}

// SetSectionText 写入指定分区的文本，已有则覆盖。
func SetSectionText(doc Document, idx int, key SectionKey, text string) (Document, error) {
	if !key.Valid() {
		return doc, fmt.Errorf("set section %q: %w", key, ErrSectionKey)
	}
	return updatePage(doc, idx, "set section", func(p *Page) error {
		p.setSection(key, text)
		return nil
	})
}

func (p *Page) setSection(key SectionKey, text string) {
	for i := range p.Sections {
		if p.Sections[i].Key == key {
			p.Sections[i].Text = text
			return
		}
	}
	p.Sections = append(p.Sections, Section{Key: key, Text: text})
}

// NewElement 返回带编辑器默认值的新元素。
func NewElement(kind Kind) (Element, error) {
	el := Element{Common: Common{ID: newID()}}
	switch kind {
	case KindText:
		el.X, el.Y = 20, 20
		el.Styles = Styles{Color: "#111111", FontSize: "16"}
		el.Data = TextData{Content: "Nuevo texto"}
	case KindImage:
		el.Width, el.Height = 360, 640
		el.Styles = Styles{ObjectFit: string(FitCover)}
		el.Data = ImageData{}
	case KindMap:
		el.X, el.Y = 16, 16
		el.Width, el.Height = 328, 200
		el.Data = MapData{Source: SourceEvent}
	case KindCountdown:
		el.X, el.Y = 20, 20
		el.Width, el.Height = 300, 60
		el.Data = CountdownData{Source: SourceEvent}
	case KindAudio:
		el.Data = AudioData{Source: SourceFile}
	case KindWhatsApp:
		el.X, el.Y = 20, 20
		el.Width, el.Height = 220, 44
		el.Data = WhatsAppData{}
	case KindConfirm:
		el.X, el.Y = 20, 20
		el.Width, el.Height = 220, 44
		el.Data = ConfirmData{}
	default:
		return Element{}, fmt.Errorf("new element %q: %w", kind, ErrUnknownKind)
	}
	return el, nil
}

// AddElement 在第 idx 页追加新元素，并一并返回该元素。
func AddElement(doc Document, idx int, kind Kind) (Document, Element, error) {
	el, err := NewElement(kind)
	if err != nil {
		return doc, Element{}, err
	}
	out, err := updatePage(doc, idx, "add element", func(p *Page) error {
		p.Elements = append(p.Elements, el)
		return nil
	})
	return out, el, err
}

// ElementPatch 是一次编辑要改的字段，nil 字段保持不变。
type ElementPatch struct {
	X        *float64
	Y        *float64
	Width    *float64
	Height   *float64
	Rotation *float64
	ZIndex   *int
	Styles   *Styles
	Data     Variant
}

// UpdateElement 把 patch 应用到第 idx 页的元素 id 上，样式逐项合并。
// Data 类型与原元素不同时拒绝。
func UpdateElement(doc Document, idx int, id string, patch ElementPatch) (Document, error) {
	return updatePage(doc, idx, "update element", func(p *Page) error {
		for i := range p.Elements {
			el := &p.Elements[i]
			if el.ID != id {
				continue
			}
			if patch.Data != nil && patch.Data.Kind() != el.Kind() {
				return fmt.Errorf("element %s is %s, got %s data", id, el.Kind(), patch.Data.Kind())
			}
			applyPatch(el, patch)
			return nil
		}
		return fmt.Errorf("element %s: %w", id, ErrElementNotFound)
	})
}

func applyPatch(el *Element, patch ElementPatch) {
	if patch.X != nil {
		el.X = *patch.X
	}
	if patch.Y != nil {
		el.Y = *patch.Y
	}
	if patch.Width != nil {
		el.Width = *patch.Width
	}
	if patch.Height != nil {
		el.Height = *patch.Height
	}
	if patch.Rotation != nil {
		el.Rotation = *patch.Rotation
	}
	if patch.ZIndex != nil {
		el.ZIndex = *patch.ZIndex
	}
	if patch.Styles != nil {
		el.Styles = el.Styles.Merge(*patch.Styles)
	}
	if patch.Data != nil {
		el.Data = patch.Data
	}
}

func RemoveElement(doc Document, idx int, id string) (Document, error) {
	return updatePage(doc, idx, "remove element", func(p *Page) error {
		for i := range p.Elements {
			if p.Elements[i].ID == id {
				p.Elements = append(p.Elements[:i], p.Elements[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("element %s: %w", id, ErrElementNotFound)
	})
}

func updatePage(doc Document, idx int, op string, fn func(*Page) error) (Document, error) {
	if idx < 0 || idx >= len(doc.Pages) {
		return doc, fmt.Errorf("%s on page %d: %w", op, idx, ErrPageIndex)
	}
	out := doc.Clone()
	if err := fn(&out.Pages[idx]); err != nil {
		return doc, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
