package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuild_DefaultEndIsTwoHoursLater(t *testing.T) {
	start := time.Date(2025, 12, 24, 19, 0, 0, 0, time.UTC)
	out, err := Build(Event{
		UID:     "boda-1766602800000",
		Start:   start,
		Summary: "Boda Ana y Luis",
		Stamp:   time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"PRODID:-//CELEBRIA//ES\r\n",
		"DTSTAMP:20251201T100000Z\r\n",
		"DTSTART:20251224T190000Z\r\n",
		"DTEND:20251224T210000Z\r\n",
		"SUMMARY:Boda Ana y Luis\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "LOCATION") {
		t.Fatalf("unexpected location line:\n%s", out)
	}
}

func TestBuild_ExplicitEndAndLocationInUTC(t *testing.T) {
	lima := time.FixedZone("PET", -5*3600)
	out, err := Build(Event{
		UID:      "x",
		Start:    time.Date(2025, 6, 1, 20, 0, 0, 0, lima),
		End:      time.Date(2025, 6, 2, 2, 0, 0, 0, lima),
		Summary:  "Fiesta",
		Location: "Av. Larco 123, Miraflores; Lima",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"DTSTART:20250602T010000Z",
		"DTEND:20250602T070000Z",
		`LOCATION:Av. Larco 123\, Miraflores\; Lima`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestBuild_EndBeforeStartFallsBack(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	out, err := Build(Event{Start: start, End: start.Add(-time.Hour), Summary: "x"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, "DTEND:20250101T140000Z") {
		t.Fatalf("end not defaulted:\n%s", out)
	}
}

func TestBuild_Incomplete(t *testing.T) {
	if _, err := Build(Event{Summary: "x"}); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if _, err := Build(Event{Start: time.Now(), Summary: "  "}); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestBuild_FoldsLongLines(t *testing.T) {
	summary := strings.Repeat("ñ", 60) + " fiesta de fin de año"
	out, err := Build(Event{UID: "x", Start: time.Now(), Summary: summary})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		if len(line) > 75 {
			t.Fatalf("line too long (%d): %q", len(line), line)
		}
	}
	if !strings.Contains(strings.ReplaceAll(out, "\r\n ", ""), "SUMMARY:"+summary+"\r\n") {
		t.Fatalf("unfolding does not restore the summary:\n%s", out)
	}
}

func TestBuild_EscapesLineBreaks(t *testing.T) {
	out, err := Build(Event{UID: "x", Start: time.Now(), Summary: "Boda\r\nAna", Location: "Lima\rPerú"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{"SUMMARY:Boda\\nAna\r\n", "LOCATION:Lima\\nPerú\r\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(strings.ReplaceAll(out, "\r\n", ""), "\r") {
		t.Fatalf("bare carriage return left in:\n%q", out)
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"Boda Ana  y Luis": "Boda_Ana_y_Luis.ics",
		"  Fiesta\t15 ":    "Fiesta_15.ics",
		"a/b":              "ab.ics",
		"":                 "evento.ics",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Fatalf("FileName(%q) = %q want %q", in, got, want)
		}
	}
}

func TestNewAttachment(t *testing.T) {
	att, err := NewAttachment(Event{Start: time.Now(), Summary: "Cena de gala"})
	if err != nil {
		t.Fatalf("attachment: %v", err)
	}
	if att.FileName != "Cena_de_gala.ics" || att.ContentType != ContentType || !strings.HasPrefix(att.Content, "BEGIN:VCALENDAR") {
		t.Fatalf("attachment = %+v", att)
	}
}
