package render

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"celebria/internal/design"
	"celebria/internal/live"
)

func TestComputeScale_FitsContainer(t *testing.T) {
	for _, o := range []design.Orientation{design.Portrait, design.Landscape} {
		for _, w := range []float64{1, 120, 360, 800, 1920} {
			for _, h := range []float64{1, 300, 640, 1080} {
				sc := ComputeScale(o, w, h)
				want := math.Min(w/sc.LogicalWidth, h/sc.LogicalHeight)
				if sc.Scale != want {
					t.Fatalf("%s %vx%v: scale %v want %v", o, w, h, sc.Scale, want)
				}
				ow, oh := sc.OuterSize()
				if ow > w+1e-9 || oh > h+1e-9 {
					t.Fatalf("%s %vx%v: outer %vx%v exceeds container", o, w, h, ow, oh)
				}
			}
		}
	}
}

func TestComputeScale_LandscapeScenario(t *testing.T) {
	sc := ComputeScale(design.Landscape, 800, 300)
	if math.Abs(sc.Scale-300.0/360.0) > 1e-9 {
		t.Fatalf("scale = %v", sc.Scale)
	}
	w, h := sc.OuterSize()
	if math.Round(w) != 533 || math.Round(h) != 300 {
		t.Fatalf("outer = %vx%v", w, h)
	}
}

func TestComputeScale_Degenerate(t *testing.T) {
	if sc := ComputeScale(design.Portrait, 720, Unbounded); sc.Scale != 2 {
		t.Fatalf("unbounded scale = %v", sc.Scale)
	}
	for _, w := range []float64{0, -10} {
		if sc := ComputeScale(design.Portrait, w, 640); sc.Scale != MinScale {
			t.Fatalf("width %v: scale = %v", w, sc.Scale)
		}
	}
	if sc := ComputeScale(design.Portrait, 360, -1); sc.Scale != 1 {
		t.Fatalf("negative height should be unbounded, scale = %v", sc.Scale)
	}
}

func TestWatchScale_RecomputesOnResize(t *testing.T) {
	got := make(chan Scale, 4)
	tracker := WatchScale(design.Landscape, func(s Scale) { got <- s })
	defer tracker.Stop()

	tracker.Observe(live.Size{Width: 640, Height: 360})
	if s := <-got; s.Scale != 1 {
		t.Fatalf("scale = %v", s.Scale)
	}
	tracker.Observe(live.Size{Width: 320, Height: 1000})
	if s := <-got; s.Scale != 0.5 {
		t.Fatalf("scale = %v", s.Scale)
	}
}

func TestWhatsAppLink(t *testing.T) {
	if got := WhatsAppLink("+51 987-654 321", "Hola"); got != "https://wa.me/51987654321?text=Hola" {
		t.Fatalf("link = %s", got)
	}
	if got := WhatsAppLink("", "Nos vemos el sábado!"); got != "https://wa.me/?text=Nos%20vemos%20el%20s%C3%A1bado!" {
		t.Fatalf("link = %s", got)
	}
}

func TestMapEmbedSrc(t *testing.T) {
	tests := []struct {
		query, url, want string
	}{
		{"Plaza de Armas, Lima", "", "https://www.google.com/maps?q=Plaza%20de%20Armas%2C%20Lima&output=embed"},
		{"", "https://www.google.com/maps/embed?pb=abc", "https://www.google.com/maps/embed?pb=abc"},
		{"", "Cusco", "https://www.google.com/maps?q=Cusco&output=embed"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := MapEmbedSrc(tt.query, tt.url); got != tt.want {
			t.Fatalf("MapEmbedSrc(%q, %q) = %q want %q", tt.query, tt.url, got, tt.want)
		}
	}
}

func TestYouTubeID(t *testing.T) {
	tests := map[string]string{
		"https://youtu.be/dQw4w9WgXcQ":                "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":   "dQw4w9WgXcQ",
		"watch?v=dQw4w9WgXcQ&t=3":                     "dQw4w9WgXcQ",
		"https://example.com/song.mp3":                "",
		"":                                            "",
	}
	for in, want := range tests {
		if got := YouTubeID(in); got != want {
			t.Fatalf("YouTubeID(%q) = %q want %q", in, got, want)
		}
	}
}

func TestParseCountdownTarget_WallClock(t *testing.T) {
	lima := time.FixedZone("PET", -5*3600)
	got, ok := ParseCountdownTarget("2025-12-24T19:00:00.000Z", lima)
	if !ok {
		t.Fatal("not parsed")
	}
	if want := time.Date(2025, 12, 24, 19, 0, 0, 0, lima); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if _, ok := ParseCountdownTarget("", lima); ok {
		t.Fatal("empty target parsed")
	}
}

func TestCountdownParts_Clamped(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := CountdownParts(now.Add(-time.Minute), now); got != [4]string{"00", "00", "00", "00"} {
		t.Fatalf("past = %v", got)
	}
	if got := CountdownParts(now.Add(49*time.Hour+5*time.Second), now); got != [4]string{"02", "01", "00", "05"} {
		t.Fatalf("future = %v", got)
	}
}

func el(id string, data design.Variant) design.Element {
	return design.Element{Common: design.Common{ID: id}, Data: data}
}

func TestRenderElement_Dispatch(t *testing.T) {
	ctx := Context{
		Event: design.EventInfo{Location: "Lima", EventDate: "2025-12-24T19:00"},
		Mode:  ModePublic,
		Now:   time.Date(2025, 12, 24, 18, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		name string
		el   design.Element
		role Role
	}{
		{"text", el("t", design.TextData{Content: "Hola"}), RoleText},
		{"image", el("i", design.ImageData{Src: "https://cdn.example/x.png"}), RoleImage},
		{"map", el("m", design.MapData{}), RoleMap},
		{"countdown", el("c", design.CountdownData{}), RoleCountdown},
		{"whatsapp", el("w", design.WhatsAppData{Phone: "1"}), RoleWhatsApp},
		{"confirm", el("k", design.ConfirmData{}), RoleConfirm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := RenderElement(tt.el, ctx)
			if n == nil || n.Role != RoleElement || len(n.Children) != 1 {
				t.Fatalf("unexpected node %+v", n)
			}
			if n.Children[0].Role != tt.role {
				t.Fatalf("role = %s", n.Children[0].Role)
			}
			if n.ElementID != tt.el.ID {
				t.Fatalf("element id = %s", n.ElementID)
			}
		})
	}

	for _, data := range []design.Variant{design.AudioData{URL: "a.mp3"}, design.UnknownData{Type: "sticker"}} {
		if n := RenderElement(el("x", data), ctx); n != nil {
			t.Fatalf("%T rendered %+v", data, n)
		}
	}
}

func TestRenderElement_Defaults(t *testing.T) {
	img := el("i", design.ImageData{Src: "https://cdn.example/x.png"})

	pub := RenderElement(img, Context{Mode: ModePublic}).Children[0]
	if pub.Style.Get("width") != "200px" || pub.Style.Get("object-fit") != "cover" {
		t.Fatalf("public image style = %s", pub.Style)
	}
	prev := RenderElement(img, Context{Mode: ModePreview}).Children[0]
	if prev.Style.Get("width") != "100px" || prev.Style.Get("object-fit") != "contain" {
		t.Fatalf("preview image style = %s", prev.Style)
	}
	ed := RenderElement(img, Context{Mode: ModeEditor}).Children[0]
	if ed.Style.Get("object-fit") != "contain" {
		t.Fatalf("editor image style = %s", ed.Style)
	}

	wa := RenderElement(el("w", design.WhatsAppData{}), Context{}).Children[0]
	if wa.Text != WhatsAppLabel || wa.Style.Get("background-color") != WhatsAppColor || wa.Style.Get("width") != "220px" {
		t.Fatalf("whatsapp = %+v", wa)
	}
	cf := RenderElement(el("c", design.ConfirmData{DateISO: "2025-12-24T19:00:00"}), Context{ConfirmAction: "/x"}).Children[0]
	if cf.Text != ConfirmLabel || cf.Style.Get("background-color") != ConfirmColor || cf.Confirm.Action != "/x" || cf.Confirm.DateISO != "2025-12-24T19:00:00" {
		t.Fatalf("confirm = %+v", cf)
	}

	box := RenderElement(el("t", design.TextData{}), Context{})
	if box.Style.Get("z-index") != "1" || box.Style.Get("left") != "0px" {
		t.Fatalf("box style = %s", box.Style)
	}

	if RenderElement(el("i", design.ImageData{}), Context{Mode: ModePublic}) != nil {
		t.Fatal("public image without src should not render")
	}
}

func TestRenderElement_TextFallsBackToBodyFont(t *testing.T) {
	n := RenderElement(el("t", design.TextData{Content: "x"}), Context{Fonts: design.Fonts{Body: "Lato"}}).Children[0]
	if n.Style.Get("font-family") != "Lato" {
		t.Fatalf("font = %s", n.Style.Get("font-family"))
	}
	styled := el("t", design.TextData{Content: "x"})
	styled.Styles.FontFamily = "Georgia"
	n = RenderElement(styled, Context{Fonts: design.Fonts{Body: "Lato"}}).Children[0]
	if n.Style.Get("font-family") != "Georgia" {
		t.Fatalf("font = %s", n.Style.Get("font-family"))
	}
}

func TestRenderElement_MapSources(t *testing.T) {
	ctx := Context{Event: design.EventInfo{Location: "Arequipa"}}
	ev := RenderElement(el("m", design.MapData{Source: design.SourceEvent, Query: "ignored"}), ctx).Children[0]
	if !strings.Contains(ev.Src, "q=Arequipa") {
		t.Fatalf("event map src = %s", ev.Src)
	}
	custom := RenderElement(el("m", design.MapData{Source: design.SourceCustom, Query: "Trujillo"}), ctx).Children[0]
	if !strings.Contains(custom.Src, "q=Trujillo") {
		t.Fatalf("custom map src = %s", custom.Src)
	}
	empty := RenderElement(el("m", design.MapData{Source: design.SourceCustom}), ctx).Children[0]
	if empty.Role != RoleEmpty {
		t.Fatalf("empty map role = %s", empty.Role)
	}
}

func TestRenderPage_SuppressesAudioAndKeepsOrder(t *testing.T) {
	page := design.Page{
		Sections: []design.Section{{Key: design.SectionBody, Text: "a\nb"}},
		Elements: []design.Element{
			{Common: design.Common{ID: "top", ZIndex: 9}, Data: design.TextData{Content: "top"}},
			{Common: design.Common{ID: "song"}, Data: design.AudioData{URL: "a.mp3"}},
			{Common: design.Common{ID: "low", ZIndex: 2}, Data: design.TextData{Content: "low"}},
		},
	}
	n := RenderPage(page, PageDefaults{}, Context{})
	els := n.Find(RoleElement)
	if len(els) != 2 || els[0].ElementID != "top" || els[1].ElementID != "low" {
		t.Fatalf("elements = %+v", els)
	}
	if els[0].Style.Get("z-index") != "9" {
		t.Fatalf("z-index = %s", els[0].Style.Get("z-index"))
	}
	if len(n.Find(RoleAudio)) != 0 {
		t.Fatal("page rendered audio")
	}
	if n.Style.Get("background") != DefaultBackground {
		t.Fatalf("background = %s", n.Style.Get("background"))
	}
	for _, s := range n.Find(RoleSection) {
		if s.Section == design.SectionBody && s.Style.Get("white-space") != "pre-line" {
			t.Fatalf("body style = %s", s.Style)
		}
	}
}

func TestRenderPage_Background(t *testing.T) {
	img := RenderPage(design.Page{Background: &design.Background{Type: design.BackgroundImage, Value: "https://cdn.example/bg.jpg", Fit: design.FitContain}}, PageDefaults{}, Context{})
	if img.Style.Get("background-image") != `url("https://cdn.example/bg.jpg")` || img.Style.Get("background-size") != "contain" || img.Style.Get("background-repeat") != "no-repeat" {
		t.Fatalf("image style = %s", img.Style)
	}
	bad := RenderPage(design.Page{Background: &design.Background{Type: design.BackgroundImage, Value: "javascript:alert(1)"}}, PageDefaults{}, Context{})
	if bad.Style.Get("background-image") != "" {
		t.Fatalf("unsafe url kept: %s", bad.Style)
	}
	color := RenderPage(design.Page{Background: &design.Background{Type: design.BackgroundColor, Value: "#fafafa"}, Orientation: design.Landscape}, PageDefaults{}, Context{})
	if color.Style.Get("background") != "#fafafa" || color.Style.Get("width") != "640px" {
		t.Fatalf("color style = %s", color.Style)
	}
}

func TestRenderPage_CenteredLayout(t *testing.T) {
	n := RenderPage(design.Page{}, PageDefaults{Layout: design.LayoutCenteredHeader}, Context{})
	group := n.Find(RoleSections)[0]
	if group.Style.Get("justify-content") != "center" || group.Style.Get("text-align") != "center" {
		t.Fatalf("group style = %s", group.Style)
	}
	tpl := RenderPage(design.Page{}, PageDefaults{}, Context{}).Find(RoleSections)[0]
	if tpl.Style.Get("justify-content") != "" {
		t.Fatalf("template layout centered: %s", tpl.Style)
	}
}

func audioDoc() design.Document {
	return design.Document{Pages: []design.Page{
		{Elements: []design.Element{
			{Common: design.Common{ID: "empty"}, Data: design.AudioData{Source: design.SourceFile}},
			{Common: design.Common{ID: "t"}, Data: design.TextData{Content: "x"}},
		}},
		{Elements: []design.Element{
			{Common: design.Common{ID: "yt"}, Data: design.AudioData{Source: design.SourceYouTube, URL: "https://youtu.be/abcdefgh"}},
			{Common: design.Common{ID: "file"}, Data: design.AudioData{Source: design.SourceFile, URL: "https://cdn.example/a.mp3"}},
		}},
		{Elements: []design.Element{
			{Common: design.Common{ID: "late"}, Data: design.AudioData{URL: "https://cdn.example/b.mp3"}},
		}},
	}}
}

func TestRenderDocument_AudioSingleton(t *testing.T) {
	for _, mode := range []Mode{ModeEditor, ModePreview, ModePublic} {
		root := RenderDocument(audioDoc(), design.EventInfo{}, Options{Mode: mode})
		audio := root.Find(RoleAudio)
		if len(audio) != 1 {
			t.Fatalf("%s: audio nodes = %d", mode, len(audio))
		}
		if audio[0].Audio.Source != design.SourceYouTube || audio[0].Audio.VideoID != "abcdefgh" {
			t.Fatalf("%s: hoisted %+v", mode, audio[0].Audio)
		}
	}

	none := RenderDocument(design.Document{Pages: []design.Page{{}}}, design.EventInfo{}, Options{Mode: ModePublic})
	if len(none.Find(RoleAudio)) != 0 {
		t.Fatal("audio rendered without audio elements")
	}
}

func TestRenderDocument_Placeholder(t *testing.T) {
	root := RenderDocument(design.Document{}, design.EventInfo{}, Options{Mode: ModePublic, Title: "Boda de Ana"})
	ph := root.Find(RolePlaceholder)
	if len(ph) != 1 || len(root.Find(RoleFrame)) != 0 {
		t.Fatalf("placeholder nodes = %d", len(ph))
	}
	texts := ph[0].Find(RoleSection)
	if len(texts) != 1 || texts[0].Text != "Boda de Ana" {
		t.Fatalf("placeholder text = %+v", texts)
	}
	if !strings.Contains(ph[0].Style.Get("background"), PlaceholderPrimary) {
		t.Fatalf("placeholder style = %s", ph[0].Style)
	}

	untitled := RenderDocument(design.Document{}, design.EventInfo{}, Options{})
	if got := untitled.Find(RolePlaceholder)[0].Find(RoleSection)[0].Text; got != PlaceholderTitle {
		t.Fatalf("default title = %q", got)
	}
}

func TestRenderDocument_Modes(t *testing.T) {
	doc := design.Document{Pages: []design.Page{
		{Sections: []design.Section{{Key: design.SectionHeader, Text: "uno"}}},
		{Sections: []design.Section{{Key: design.SectionHeader, Text: "dos"}}, Orientation: design.Landscape},
		{Sections: []design.Section{{Key: design.SectionHeader, Text: "tres"}}},
	}}

	stacked := RenderDocument(doc, design.EventInfo{}, Options{Mode: ModePreview, Viewport: live.Size{Width: 720}})
	frames := stacked.Find(RoleFrame)
	if len(frames) != 3 {
		t.Fatalf("frames = %d", len(frames))
	}
	if frames[0].Frame.Scale != 2 || frames[1].Frame.Scale != 720.0/640.0 {
		t.Fatalf("scales = %v %v", frames[0].Frame.Scale, frames[1].Frame.Scale)
	}
	if frames[0].Style.Get("width") != "720px" || frames[0].Style.Get("height") != "1280px" {
		t.Fatalf("outer box = %s", frames[0].Style)
	}
	page := frames[0].Children[0]
	if page.Style.Get("transform") != "scale(2)" || page.Style.Get("transform-origin") != "top left" {
		t.Fatalf("inner box = %s", page.Style)
	}

	editor := RenderDocument(doc, design.EventInfo{}, Options{Mode: ModeEditor, Selected: 1})
	frames = editor.Find(RoleFrame)
	if len(frames) != 1 || frames[0].Frame.Index != 1 {
		t.Fatalf("editor frames = %+v", frames)
	}
	clamped := RenderDocument(doc, design.EventInfo{}, Options{Mode: ModeEditor, Selected: 42})
	if idx := clamped.Find(RoleFrame)[0].Frame.Index; idx != 2 {
		t.Fatalf("clamped index = %d", idx)
	}
}

func TestRenderDocument_DoesNotMutateInput(t *testing.T) {
	doc := audioDoc()
	before := doc.Clone()
	RenderDocument(doc, design.EventInfo{}, Options{Mode: ModePublic})
	if len(doc.Pages) != len(before.Pages) || doc.Pages[1].Elements[0].ID != before.Pages[1].Elements[0].ID {
		t.Fatal("document mutated")
	}
}

func TestStyle_RejectsInjection(t *testing.T) {
	s := Style{}.Set("color", "red; background: url(x)").Set("font-family", "'Playfair Display', serif")
	if s.Get("color") != "" {
		t.Fatalf("unsafe value kept: %s", s)
	}
	if s.Get("font-family") != "'Playfair Display', serif" {
		t.Fatalf("font = %s", s.Get("font-family"))
	}
}

func TestStyle_SetNeverTrustsURLPrefix(t *testing.T) {
	el := design.Element{
		Common: design.Common{ID: "t", Styles: design.Styles{Color: "\x00url:red; position: fixed; inset: 0"}},
		Data:   design.TextData{Content: "hola"},
	}
	text := RenderElement(el, Context{}).Find(RoleText)
	if len(text) != 1 {
		t.Fatalf("text nodes = %d", len(text))
	}
	if text[0].Style.Get("color") != "" || strings.Contains(text[0].Style.String(), "fixed") {
		t.Fatalf("smuggled declaration kept: %s", text[0].Style)
	}
	if s := (Style{}).Set("background-image", `url("https://cdn.example/bg.jpg")`); s.Get("background-image") != "" {
		t.Fatalf("Set accepted url(): %s", s)
	}
	if s := (Style{}).URL("background-image", `https://cdn.example/a"b.jpg`); s.Get("background-image") != `url("https://cdn.example/a\"b.jpg")` {
		t.Fatalf("URL = %s", s)
	}
}

func TestWriteHTML(t *testing.T) {
	doc := design.Document{Pages: []design.Page{{
		Sections: []design.Section{{Key: design.SectionHeader, Text: "<b>Hola</b>"}},
		Elements: []design.Element{
			{Common: design.Common{ID: "w"}, Data: design.WhatsAppData{Phone: "+51 987-654 321", Message: "Hola"}},
			{Common: design.Common{ID: "c"}, Data: design.CountdownData{Source: design.SourceCustom, DateISO: "2030-01-01T00:00"}},
		},
	}}}
	var buf bytes.Buffer
	if err := WriteHTML(&buf, RenderDocument(doc, design.EventInfo{}, Options{Mode: ModePublic})); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`class="celebria-doc" data-mode="public-scroll"`,
		`data-logical-w="360"`,
		`href="https://wa.me/51987654321?text=Hola"`,
		`&lt;b&gt;Hola&lt;/b&gt;`,
		`data-countdown-target="2030-01-01T00:00:00Z"`,
		`data-unit="3"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestWritePage_LoadsVideoScriptOnce(t *testing.T) {
	doc := audioDoc()
	doc.Pages[0].Elements = append(doc.Pages[0].Elements, design.Element{Common: design.Common{ID: "confirm"}, Data: design.ConfirmData{}})
	root := RenderDocument(doc, design.EventInfo{}, Options{Mode: ModePublic, ConfirmAction: "/v1/public/invitations/boda/confirmations"})

	var buf bytes.Buffer
	err := WritePage(context.Background(), &buf, PageData{
		Title:         "Boda",
		Slug:          "boda",
		ConfirmAction: "/v1/public/invitations/boda/confirmations",
		Root:          root,
	})
	if err != nil {
		t.Fatalf("write page: %v", err)
	}
	out := buf.String()
	if n := strings.Count(out, live.YouTubeIframeAPI); n != 1 {
		t.Fatalf("iframe api script included %d times", n)
	}
	for _, want := range []string{`<dialog id="celebria-confirm"`, `data-slug="boda"`, `ResizeObserver`, `<title>Boda</title>`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in page", want)
		}
	}
}

func TestWritePage_EmptyRoot(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePage(context.Background(), &buf, PageData{}); err != nil {
		t.Fatalf("write page: %v", err)
	}
	if !strings.Contains(buf.String(), "<title>"+PlaceholderTitle+"</title>") {
		t.Fatalf("page = %s", buf.String())
	}
}
