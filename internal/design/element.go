package design

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Kind 区分元素类型。
type Kind string

const (
	KindText      Kind = "text"
	KindImage     Kind = "image"
	KindCountdown Kind = "countdown"
	KindMap       Kind = "map"
	KindAudio     Kind = "audio"
	KindWhatsApp  Kind = "whatsapp"
	KindConfirm   Kind = "confirm"
)

// Kinds 列出渲染器支持的全部类型。
var Kinds = []Kind{KindText, KindImage, KindCountdown, KindMap, KindAudio, KindWhatsApp, KindConfirm}

// Common 是所有元素共有的定位字段，
// X/Y/Width/Height 使用页面的逻辑单位。
type Common struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
	ZIndex   int     `json:"zIndex,omitempty"`
	Styles   Styles  `json:"styles,omitempty"`
}

// Layer 返回层级，未设置时为 1。
func (c Common) Layer() int {
	if c.ZIndex == 0 {
		return 1
	}
	return c.ZIndex
}

// Variant 是各类型元素自己的数据。
type Variant interface {
	Kind() Kind
}

type TextData struct {
	Content string
}

type ImageData struct {
	Src string
}

type CountdownData struct {
	Source  Source `json:"source,omitempty"`
	DateISO string `json:"dateISO,omitempty"`
}

type MapData struct {
	Source Source `json:"source,omitempty"`
	Query  string `json:"query,omitempty"`
	URL    string `json:"url,omitempty"`
}

type AudioData struct {
	Source Source `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
}

type WhatsAppData struct {
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
	Label   string `json:"label,omitempty"`
}

type ConfirmData struct {
	Label      string `json:"label,omitempty"`
	DateISO    string `json:"dateISO,omitempty"`
	EndDateISO string `json:"endDateISO,omitempty"`
}

// UnknownData 保留当前版本无法渲染的元素类型。
type UnknownData struct {
	Type Kind
}

func (TextData) Kind() Kind      { return KindText }
func (ImageData) Kind() Kind     { return KindImage }
func (CountdownData) Kind() Kind { return KindCountdown }
func (MapData) Kind() Kind       { return KindMap }
func (AudioData) Kind() Kind     { return KindAudio }
func (WhatsAppData) Kind() Kind  { return KindWhatsApp }
func (ConfirmData) Kind() Kind   { return KindConfirm }
func (u UnknownData) Kind() Kind { return u.Type }

// CountdownSource 默认取活动日期。
func (c CountdownData) SourceOrDefault() Source {
	if c.Source == "" {
		return SourceEvent
	}
	return c.Source
}

func (m MapData) SourceOrDefault() Source {
	if m.Source == "" {
		return SourceEvent
	}
	return m.Source
}

func (a AudioData) SourceOrDefault() Source {
	if a.Source == "" {
		return SourceFile
	}
	return a.Source
}

// Element 是页面上一个定位对象。
type Element struct {
	Common
	Data Variant
}

// Kind 返回元素类型，没有数据时为空。
func (e Element) Kind() Kind {
	if e.Data == nil {
		return ""
	}
	return e.Data.Kind()
}

// Clone 返回副本，各 Variant 都是值类型，浅拷贝即可。
func (e Element) Clone() Element {
	return e
}

// elementWire 是与前端交换、入库保存的扁平 JSON 结构。
type elementWire struct {
	Type Kind `json:"type"`
	Common
	Content   string         `json:"content,omitempty"`
	Src       string         `json:"src,omitempty"`
	Countdown *CountdownData `json:"countdown,omitempty"`
	Map       *MapData       `json:"map,omitempty"`
	Audio     *AudioData     `json:"audio,omitempty"`
	WhatsApp  *WhatsAppData  `json:"whatsapp,omitempty"`
	Confirm   *ConfirmData   `json:"confirm,omitempty"`
}

func (e Element) MarshalJSON() ([]byte, error) {
	w := elementWire{Type: e.Kind(), Common: e.Common}
	switch v := e.Data.(type) {
	case TextData:
		w.Content = v.Content
	case ImageData:
		w.Src = v.Src
	case CountdownData:
		w.Countdown = &v
	case MapData:
		w.Map = &v
	case AudioData:
		w.Audio = &v
	case WhatsAppData:
		w.WhatsApp = &v
	case ConfirmData:
		w.Confirm = &v
	}
	return json.Marshal(w)
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var w struct {
		elementWire
		// 旧模板写的是 "style" 而不是 "styles"
		Style *Styles `json:"style,omitempty"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode element: %w", err)
	}

	e.Common = w.Common
	if e.Styles.IsZero() && w.Style != nil {
		e.Styles = *w.Style
	}

	switch w.Type {
	case KindText:
		e.Data = TextData{Content: w.Content}
	case KindImage:
		e.Data = ImageData{Src: w.Src}
	case KindCountdown:
		e.Data = derefOr(w.Countdown)
	case KindMap:
		e.Data = derefOr(w.Map)
	case KindAudio:
		e.Data = derefOr(w.Audio)
	case KindWhatsApp:
		e.Data = derefOr(w.WhatsApp)
	case KindConfirm:
		e.Data = derefOr(w.Confirm)
	default:
		e.Data = UnknownData{Type: w.Type}
	}
	return nil
}

func derefOr[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Styles 是元素可携带的样式覆盖。
type Styles struct {
	Color           string   `json:"color,omitempty"`
	FontSize        CSSValue `json:"fontSize,omitempty"`
	FontFamily      string   `json:"fontFamily,omitempty"`
	FontWeight      CSSValue `json:"fontWeight,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
	BorderRadius    CSSValue `json:"borderRadius,omitempty"`
	ObjectFit       string   `json:"objectFit,omitempty"`
}

func (s Styles) IsZero() bool {
	return s == Styles{}
}

// Merge 用 patch 中的非空字段覆盖 s。
func (s Styles) Merge(patch Styles) Styles {
	if patch.Color != "" {
		s.Color = patch.Color
	}
	if patch.FontSize != "" {
		s.FontSize = patch.FontSize
	}
	if patch.FontFamily != "" {
		s.FontFamily = patch.FontFamily
	}
	if patch.FontWeight != "" {
		s.FontWeight = patch.FontWeight
	}
	if patch.BackgroundColor != "" {
		s.BackgroundColor = patch.BackgroundColor
	}
	if patch.BorderRadius != "" {
		s.BorderRadius = patch.BorderRadius
	}
	if patch.ObjectFit != "" {
		s.ObjectFit = patch.ObjectFit
	}
	return s
}

// CSSValue 接受 JSON 数字 (16) 或字符串 ("16px"、"bold")。
type CSSValue string

// jsonNumber 只匹配 JSON 数字语法，NaN、Inf 之类按字符串处理。
var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

func (v CSSValue) IsNumber() bool {
	return jsonNumber.MatchString(string(v))
}

// Length 输出 CSS 长度，纯数字补 px。
func (v CSSValue) Length() string {
	if v.IsNumber() {
		return string(v) + "px"
	}
	return string(v)
}

func (v CSSValue) MarshalJSON() ([]byte, error) {
	if v.IsNumber() {
		return []byte(v), nil
	}
	return json.Marshal(string(v))
}

func (v *CSSValue) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*v = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode css value: %w", err)
		}
		*v = CSSValue(s)
	default:
		if !jsonNumber.MatchString(raw) {
			return fmt.Errorf("decode css value %q: not a number or string", raw)
		}
		*v = CSSValue(raw)
	}
	return nil
}
