package design

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestElementJSON_FlattensVariant(t *testing.T) {
	el := Element{
		Common: Common{ID: "w1", X: 10, Y: 20, Width: 220, Height: 44},
		Data:   WhatsAppData{Phone: "+51 987", Message: "Hola"},
	}
	raw, err := json.Marshal(el)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(raw)
	for _, want := range []string{`"type":"whatsapp"`, `"whatsapp":{"phone":"+51 987","message":"Hola"}`, `"id":"w1"`} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in %s", want, got)
		}
	}
	if strings.Contains(got, `"countdown"`) {
		t.Fatalf("unexpected foreign variant in %s", got)
	}
}

func TestElementJSON_DecodesOnlyDeclaredKind(t *testing.T) {
	raw := `{"id":"a","type":"text","x":1,"y":2,"content":"Hola","src":"ignored.png","style":{"fontSize":18,"color":"#fff"}}`
	var el Element
	if err := json.Unmarshal([]byte(raw), &el); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	text, ok := el.Data.(TextData)
	if !ok {
		t.Fatalf("expected TextData, got %T", el.Data)
	}
	if text.Content != "Hola" {
		t.Fatalf("content = %q", text.Content)
	}
	if el.Styles.FontSize != "18" || el.Styles.Color != "#fff" {
		t.Fatalf("legacy style alias not applied: %+v", el.Styles)
	}
	if el.Styles.FontSize.Length() != "18px" {
		t.Fatalf("length = %q", el.Styles.FontSize.Length())
	}
}

func TestElementJSON_UnknownKind(t *testing.T) {
	var el Element
	if err := json.Unmarshal([]byte(`{"id":"z","type":"sticker"}`), &el); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := el.Data.(UnknownData); !ok {
		t.Fatalf("expected UnknownData, got %T", el.Data)
	}
	if el.Kind() != "sticker" {
		t.Fatalf("kind = %q", el.Kind())
	}
}

func TestCSSValue_RejectsObjects(t *testing.T) {
	var v CSSValue
	if err := json.Unmarshal([]byte(`{"a":1}`), &v); err == nil {
		t.Fatal("expected error")
	}
}

func TestCSSValue_NonFiniteStaysString(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "-Inf", "Infinity", "+1", "1.", ".5", "0x10"} {
		v := CSSValue(raw)
		if v.IsNumber() {
			t.Fatalf("%q treated as number", raw)
		}
		if v.Length() != raw {
			t.Fatalf("%q length = %q", raw, v.Length())
		}
		styles := Styles{FontSize: v}
		out, err := json.Marshal(styles)
		if err != nil {
			t.Fatalf("%q marshal: %v", raw, err)
		}
		var back Styles
		if err := json.Unmarshal(out, &back); err != nil {
			t.Fatalf("%q unmarshal %s: %v", raw, out, err)
		}
		if back.FontSize != v {
			t.Fatalf("%q round trip = %q", raw, back.FontSize)
		}
	}
	for _, raw := range []string{"16", "-2.5", "1e3", "0"} {
		if !CSSValue(raw).IsNumber() {
			t.Fatalf("%q not a number", raw)
		}
	}
}

func TestCommonLayer_DefaultsToOne(t *testing.T) {
	if got := (Common{}).Layer(); got != 1 {
		t.Fatalf("layer = %d", got)
	}
	if got := (Common{ZIndex: 5}).Layer(); got != 5 {
		t.Fatalf("layer = %d", got)
	}
}

func TestSetSectionText_ReplacesExistingKey(t *testing.T) {
	doc := Document{Pages: []Page{{Sections: []Section{{Key: SectionBody, Text: "old"}}}}}
	out, err := SetSectionText(doc, 0, SectionBody, "new")
	if err != nil {
		t.Fatalf("set section: %v", err)
	}
	count := 0
	for _, s := range out.Pages[0].Sections {
		if s.Key == SectionBody {
			count++
		}
	}
	if count != 1 || out.Pages[0].SectionText(SectionBody) != "new" {
		t.Fatalf("sections = %+v", out.Pages[0].Sections)
	}
	if doc.Pages[0].Sections[0].Text != "old" {
		t.Fatal("input document mutated")
	}
}

func TestSetSectionText_InvalidKey(t *testing.T) {
	doc := Document{Pages: []Page{BlankPage()}}
	if _, err := SetSectionText(doc, 0, "aside", "x"); !errors.Is(err, ErrSectionKey) {
		t.Fatalf("expected ErrSectionKey, got %v", err)
	}
}

func TestPageOps(t *testing.T) {
	doc := Document{}
	doc = AddPage(doc)
	doc = AddPage(doc)
	doc, _ = SetSectionText(doc, 1, SectionHeader, "second")

	moved := MovePage(doc, 1, 0)
	if moved.Pages[0].SectionText(SectionHeader) != "second" {
		t.Fatalf("move did not reorder: %+v", moved.Pages)
	}
	if doc.Pages[1].SectionText(SectionHeader) != "second" {
		t.Fatal("move mutated input")
	}

	same := MovePage(doc, 0, 7)
	if !reflect.DeepEqual(same, doc) {
		t.Fatal("out of range move changed order")
	}

	removed, err := RemovePage(doc, 0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(removed.Pages) != 1 || len(doc.Pages) != 2 {
		t.Fatalf("pages = %d / %d", len(removed.Pages), len(doc.Pages))
	}
	if _, err := RemovePage(doc, 5); !errors.Is(err, ErrPageIndex) {
		t.Fatalf("expected ErrPageIndex, got %v", err)
	}
}

func TestSetBackground_ImageDefaultsToCover(t *testing.T) {
	doc := Document{Pages: []Page{BlankPage()}}
	out, err := SetBackground(doc, 0, Background{Type: BackgroundImage, Value: "https://x/bg.png"})
	if err != nil {
		t.Fatalf("set background: %v", err)
	}
	if out.Pages[0].Background.Fit != FitCover {
		t.Fatalf("fit = %q", out.Pages[0].Background.Fit)
	}
	if doc.Pages[0].Background.Type != BackgroundColor {
		t.Fatal("input mutated")
	}
}

func TestElementOps(t *testing.T) {
	prev := newID
	newID = func() string { return "el-1" }
	t.Cleanup(func() { newID = prev })

	doc := Document{Pages: []Page{BlankPage()}}
	doc, el, err := AddElement(doc, 0, KindText)
	if err != nil {
		t.Fatalf("add element: %v", err)
	}
	if el.ID != "el-1" || el.X != 20 || el.Y != 20 {
		t.Fatalf("defaults = %+v", el.Common)
	}
	if el.Data.(TextData).Content != "Nuevo texto" {
		t.Fatalf("content = %+v", el.Data)
	}

	x := 99.0
	out, err := UpdateElement(doc, 0, "el-1", ElementPatch{X: &x, Styles: &Styles{FontSize: "24"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got := out.Pages[0].Elements[0]
	if got.X != 99 || got.Styles.FontSize != "24" || got.Styles.Color != "#111111" {
		t.Fatalf("patched = %+v", got.Common)
	}
	if doc.Pages[0].Elements[0].X != 20 {
		t.Fatal("update mutated input")
	}

	if _, err := UpdateElement(doc, 0, "el-1", ElementPatch{Data: ImageData{}}); err == nil {
		t.Fatal("expected kind mismatch error")
	}
	if _, err := UpdateElement(doc, 0, "nope", ElementPatch{}); !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}

	out, err = RemoveElement(out, 0, "el-1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(out.Pages[0].Elements) != 0 {
		t.Fatalf("elements = %+v", out.Pages[0].Elements)
	}
	if _, _, err := AddElement(doc, 0, "sticker"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestParseISO(t *testing.T) {
	lima := time.FixedZone("PET", -5*3600)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-12-24T19:00:00Z", time.Date(2025, 12, 24, 19, 0, 0, 0, time.UTC)},
		{"2025-12-24T19:00:00", time.Date(2025, 12, 24, 19, 0, 0, 0, lima)},
		{"2025-12-24T19:00", time.Date(2025, 12, 24, 19, 0, 0, 0, lima)},
		{"2025-12-24", time.Date(2025, 12, 24, 0, 0, 0, 0, lima)},
	}
	for _, tt := range tests {
		got, err := ParseISO(tt.in, lima)
		if err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("%s: got %v want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseISO("mañana", lima); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestLocaleFormatter(t *testing.T) {
	day := time.Date(2025, 12, 4, 12, 0, 0, 0, time.UTC)
	tests := map[string]string{
		"es-PE":   "4 dic. 2025",
		"en-US":   "Dec 4, 2025",
		"ja-JP":   "2025/12/04",
		"de-DE":   "04.12.2025",
		"nl-NL":   "4 dec. 2025",
		"pt-BR":   "4 de dez. de 2025",
		"garbage": "4 dic. 2025",
	}
	for tag, want := range tests {
		if got := NewLocaleFormatter(tag, time.UTC).FormatDate(day); got != want {
			t.Fatalf("%s: got %q want %q", tag, got, want)
		}
	}
}

func TestLocaleFormatter_PicksRegionThenLanguage(t *testing.T) {
	tests := map[string]string{
		"es-PE": "es_PE",
		"es-BO": "es",
		"en":    "en",
		"sw-KE": "es",
	}
	for tag, want := range tests {
		if got := NewLocaleFormatter(tag, time.UTC).Locale(); got != want {
			t.Fatalf("%s: got %q want %q", tag, got, want)
		}
	}
}

func testEvent() EventInfo {
	return EventInfo{
		Title:       "Boda Ana y Luis",
		EventDate:   "2025-12-24T19:00:00Z",
		Location:    "Lima",
		Description: "Los esperamos",
	}
}

func TestInjectEventDetails_AppendsOnce(t *testing.T) {
	f := NewLocaleFormatter("es-PE", time.UTC)
	doc := Document{Pages: []Page{{Sections: []Section{{Key: SectionBody, Text: "Bienvenidos"}}}}}

	first := InjectEventDetails(doc, testEvent(), f)
	want := "Bienvenidos\n\nBoda Ana y Luis • 24 dic. 2025 • Lima\nLos esperamos"
	if got := first.Pages[0].SectionText(SectionBody); got != want {
		t.Fatalf("body = %q", got)
	}

	second := InjectEventDetails(first, testEvent(), f)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second injection changed body: %q", second.Pages[0].SectionText(SectionBody))
	}
	if doc.Pages[0].SectionText(SectionBody) != "Bienvenidos" {
		t.Fatal("input mutated")
	}
}

func TestInjectEventDetails_CreatesCoverPage(t *testing.T) {
	out := InjectEventDetails(Document{}, EventInfo{Title: "Fiesta"}, nil)
	if len(out.Pages) != 1 {
		t.Fatalf("pages = %d", len(out.Pages))
	}
	if got := out.Pages[0].SectionText(SectionBody); got != "Fiesta" {
		t.Fatalf("body = %q", got)
	}
}

func TestInjectEventDetails_EmptyPartsNeverMatch(t *testing.T) {
	doc := Document{Pages: []Page{{Sections: []Section{{Key: SectionBody, Text: "Hola"}}}}}
	out := InjectEventDetails(doc, EventInfo{Title: "Cena"}, nil)
	if got := out.Pages[0].SectionText(SectionBody); got != "Hola\n\nCena" {
		t.Fatalf("body = %q", got)
	}
}

func TestResyncEventDetails_ReplacesStaleBlock(t *testing.T) {
	f := NewLocaleFormatter("es-PE", time.UTC)
	doc := InjectEventDetails(Document{Pages: []Page{{Sections: []Section{{Key: SectionBody, Text: "Bienvenidos"}}}}}, testEvent(), f)

	moved := testEvent()
	moved.Location = "Cusco"
	out := ResyncEventDetails(doc, moved, f)
	want := "Bienvenidos\n\nBoda Ana y Luis • 24 dic. 2025 • Cusco\nLos esperamos"
	if got := out.Pages[0].SectionText(SectionBody); got != want {
		t.Fatalf("body = %q", got)
	}
}

func TestImportTemplatePages_AdditiveAndNonMutating(t *testing.T) {
	tpl := Document{Pages: []Page{
		{Sections: []Section{{Key: SectionHeader, Text: "T1"}, {Key: "aside", Text: "x"}}},
		{Elements: []Element{{Common: Common{ID: "e"}, Data: TextData{Content: "hi"}}}},
	}}
	before := tpl.Clone()
	doc := Document{Pages: []Page{BlankPage(), BlankPage(), BlankPage()}}

	out := ImportTemplatePages(doc, tpl)
	out = ImportTemplatePages(out, tpl)
	if len(out.Pages) != 3+2+2 {
		t.Fatalf("pages = %d", len(out.Pages))
	}
	if !reflect.DeepEqual(tpl, before) {
		t.Fatal("template mutated")
	}
	if len(out.Pages[3].Sections) != 1 {
		t.Fatalf("invalid section kept: %+v", out.Pages[3].Sections)
	}

	out.Pages[4].Elements[0].X = 50
	if tpl.Pages[1].Elements[0].X != 0 {
		t.Fatal("imported page shares elements with template")
	}
}

func TestRouteSections_CreatesIntermediatePages(t *testing.T) {
	doc := Document{Pages: []Page{BlankPage()}}
	out, err := RouteSections(doc, SectionRouting{Header: 0, Body: 2, Footer: 3}, map[SectionKey]string{
		SectionHeader: "Hola",
		SectionBody:   "Texto",
		SectionFooter: "Fin",
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(out.Pages) != 4 {
		t.Fatalf("pages = %d", len(out.Pages))
	}
	if out.Pages[2].SectionText(SectionBody) != "Texto" || out.Pages[3].SectionText(SectionFooter) != "Fin" {
		t.Fatalf("routing wrong: %+v", out.Pages)
	}
	if out.Pages[1].Background == nil || out.Pages[1].Background.Value != DefaultPageColor {
		t.Fatalf("intermediate page not blank: %+v", out.Pages[1])
	}
	if len(doc.Pages) != 1 {
		t.Fatal("input mutated")
	}

	if _, err := RouteSections(doc, SectionRouting{Body: -1}, map[SectionKey]string{SectionBody: "x"}); !errors.Is(err, ErrPageIndex) {
		t.Fatalf("expected ErrPageIndex, got %v", err)
	}
}
