package design

// Orientation 决定页面的逻辑坐标空间。
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Layout 决定 header/body/footer 文本在页面中的位置。
type Layout string

const (
	LayoutTemplate       Layout = "template"
	LayoutCenteredHeader Layout = "centered-header"
)

type BackgroundType string

const (
	BackgroundColor BackgroundType = "color"
	BackgroundImage BackgroundType = "image"
)

type Fit string

const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
)

type SectionKey string

const (
	SectionHeader SectionKey = "header"
	SectionBody   SectionKey = "body"
	SectionFooter SectionKey = "footer"
)

// SectionKeys 按渲染顺序列出合法的分区键。
var SectionKeys = []SectionKey{SectionHeader, SectionBody, SectionFooter}

func (k SectionKey) Valid() bool {
	switch k {
	case SectionHeader, SectionBody, SectionFooter:
		return true
	}
	return false
}

// Source 指明倒计时、地图、音频元素的数据来源。
type Source string

const (
	SourceEvent   Source = "event"
	SourceCustom  Source = "custom"
	SourceFile    Source = "file"
	SourceYouTube Source = "youtube"
)

// DefaultPageColor 是编辑器新建页面的底色。
const DefaultPageColor = "#ffffff"

// Document 是一份邀请函的完整设计，整体存为一个 JSON 值。
type Document struct {
	Colors map[string]string `json:"colors,omitempty"`
	Fonts  Fonts             `json:"fonts"`
	Layout Layout            `json:"layout,omitempty"`
	Pages  []Page            `json:"pages"`
}

type Fonts struct {
	Heading string `json:"heading,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Page 是邀请函的一张画布。
type Page struct {
	Background  *Background `json:"background,omitempty"`
	Orientation Orientation `json:"orientation,omitempty"`
	Sections    []Section   `json:"sections,omitempty"`
	Elements    []Element   `json:"elements,omitempty"`
}

type Background struct {
	Type  BackgroundType `json:"type"`
	Value string         `json:"value"`
	Fit   Fit            `json:"fit,omitempty"`
}

type Section struct {
	Key  SectionKey `json:"key"`
	Text string     `json:"text"`
}

// EventInfo 是注入倒计时、地图和正文的只读活动数据。
type EventInfo struct {
	Title       string `json:"title"`
	EventDate   string `json:"eventDate"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsLandscape 判断页面是否使用 640x360 坐标。
func (p Page) IsLandscape() bool {
	return p.Orientation == Landscape
}

// SectionText 返回指定分区的文本，没有则为空。
func (p Page) SectionText(key SectionKey) string {
	for _, s := range p.Sections {
		if s.Key == key {
			return s.Text
		}
	}
	return ""
}

// Clone 复制页面，修改切片不会影响 p。
func (p Page) Clone() Page {
	out := p
	if p.Background != nil {
		bg := *p.Background
		out.Background = &bg
	}
	if p.Sections != nil {
		out.Sections = make([]Section, len(p.Sections))
		copy(out.Sections, p.Sections)
	}
	if p.Elements != nil {
		out.Elements = make([]Element, len(p.Elements))
		for i, el := range p.Elements {
			out.Elements[i] = el.Clone()
		}
	}
	return out
}

// Clone 返回文档的深拷贝。
func (d Document) Clone() Document {
	out := d
	if d.Colors != nil {
		out.Colors = make(map[string]string, len(d.Colors))
		for k, v := range d.Colors {
			out.Colors[k] = v
		}
	}
	if d.Pages != nil {
		out.Pages = make([]Page, len(d.Pages))
		for i, p := range d.Pages {
			out.Pages[i] = p.Clone()
		}
	}
	return out
}

// Color 返回 role 对应的文档颜色，未设置时返回 fallback。
func (d Document) Color(role, fallback string) string {
	if v := d.Colors[role]; v != "" {
		return v
	}
	return fallback
}

// BlankPage 是编辑器追加的页面：白底、竖版、无元素。
func BlankPage() Page {
	return Page{
		Background: &Background{Type: BackgroundColor, Value: DefaultPageColor},
		Sections:   []Section{},
		Elements:   []Element{},
	}
}
