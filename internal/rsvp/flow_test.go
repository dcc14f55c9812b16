package rsvp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"celebria/internal/design"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	err   error
	calls []Guest
}

func (s *fakeSubmitter) Submit(_ context.Context, _ string, g Guest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, g)
	return s.err
}

type failingStore struct{}

func (failingStore) Append(context.Context, string, Record) error {
	return errors.New("quota exceeded")
}
func (failingStore) List(context.Context, string) ([]Record, error) {
	return nil, errors.New("quota exceeded")
}

var fixedNow = time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)

func newTestFlow(store FallbackStore, sub Submitter, inv Invitation) *Flow {
	return NewFlow(inv, store, sub, WithClock(func() time.Time { return fixedNow }))
}

func TestFlow_SubmitRecordsThenSubmits(t *testing.T) {
	store := NewMemoryStore()
	sub := &fakeSubmitter{}
	flow := newTestFlow(store, sub, Invitation{Slug: "boda", Title: "Boda"})

	if err := flow.Open(Prompt{Label: "Confirmar"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if flow.State() != Open {
		t.Fatalf("state = %s", flow.State())
	}
	res, err := flow.Submit(context.Background(), Guest{Name: "  Ana ", LastName: "Pérez "})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if flow.State() != Closed {
		t.Fatalf("state after submit = %s", flow.State())
	}
	if !res.Submitted || res.Record.Name != "Ana" || res.Record.LastName != "Pérez" {
		t.Fatalf("result = %+v", res)
	}
	list, _ := store.List(context.Background(), "boda")
	if len(list) != 1 || !list[0].At.Equal(fixedNow) {
		t.Fatalf("fallback list = %+v", list)
	}
	if len(sub.calls) != 1 || sub.calls[0].Name != "Ana" {
		t.Fatalf("submitter calls = %+v", sub.calls)
	}
	if res.Calendar != nil {
		t.Fatal("calendar generated without a date")
	}
}

func TestFlow_SubmitFailureIsSwallowed(t *testing.T) {
	store := NewMemoryStore()
	flow := newTestFlow(store, &fakeSubmitter{err: errors.New("offline")}, Invitation{Slug: "boda"})
	_ = flow.Open(Prompt{})
	res, err := flow.Submit(context.Background(), Guest{Name: "Ana"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Submitted {
		t.Fatal("submitted should be false")
	}
	if list, _ := store.List(context.Background(), "boda"); len(list) != 1 {
		t.Fatalf("fallback list = %+v", list)
	}
	if flow.State() != Closed {
		t.Fatalf("state = %s", flow.State())
	}
}

func TestFlow_NothingRecorded(t *testing.T) {
	flow := newTestFlow(failingStore{}, &fakeSubmitter{err: errors.New("offline")}, Invitation{Slug: "boda"})
	_ = flow.Open(Prompt{})
	if _, err := flow.Submit(context.Background(), Guest{Name: "Ana"}); !errors.Is(err, ErrNotRecorded) {
		t.Fatalf("expected ErrNotRecorded, got %v", err)
	}
	if flow.State() != Closed {
		t.Fatalf("state = %s", flow.State())
	}
}

func TestFlow_RedisDownStillSubmits(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()
	sub := &fakeSubmitter{}
	flow := newTestFlow(NewRedisStore(client), sub, Invitation{Slug: "boda"})
	_ = flow.Open(Prompt{})
	res, err := flow.Submit(context.Background(), Guest{Name: "Ana"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Submitted || len(sub.calls) != 1 {
		t.Fatalf("result = %+v calls = %d", res, len(sub.calls))
	}
}

func TestFlow_CancelRecordsNothing(t *testing.T) {
	store := NewMemoryStore()
	sub := &fakeSubmitter{}
	flow := newTestFlow(store, sub, Invitation{Slug: "boda"})
	_ = flow.Open(Prompt{})
	flow.Cancel()
	if flow.State() != Closed {
		t.Fatalf("state = %s", flow.State())
	}
	if list, _ := store.List(context.Background(), "boda"); len(list) != 0 {
		t.Fatalf("fallback list = %+v", list)
	}
	if len(sub.calls) != 0 {
		t.Fatal("submitter called")
	}
	if _, err := flow.Submit(context.Background(), Guest{}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestFlow_OpenWhileOpen(t *testing.T) {
	flow := newTestFlow(NewMemoryStore(), nil, Invitation{})
	if err := flow.Open(Prompt{}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := flow.Open(Prompt{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestFlow_CalendarDefaultsToTwoHours(t *testing.T) {
	flow := newTestFlow(NewMemoryStore(), &fakeSubmitter{}, Invitation{
		Slug:  "boda",
		Title: "Boda Ana y Luis",
		Event: design.EventInfo{Location: "Lima"},
	})
	_ = flow.Open(Prompt{DateISO: "2025-12-24T19:00:00"})
	res, err := flow.Submit(context.Background(), Guest{Name: "Ana"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Calendar == nil {
		t.Fatal("expected calendar attachment")
	}
	ics := res.Calendar.Content
	for _, want := range []string{
		"DTSTART:20251224T190000Z",
		"DTEND:20251224T210000Z",
		"SUMMARY:Boda Ana y Luis",
		"LOCATION:Lima",
		"UID:boda-" + "1764590400000",
	} {
		if !strings.Contains(ics, want) {
			t.Fatalf("expected %q in:\n%s", want, ics)
		}
	}
	if res.Calendar.FileName != "Boda_Ana_y_Luis.ics" {
		t.Fatalf("file name = %s", res.Calendar.FileName)
	}
}

func TestFlow_CalendarFallsBackToEventDate(t *testing.T) {
	flow := newTestFlow(NewMemoryStore(), nil, Invitation{
		Slug:  "boda",
		Title: "Boda",
		Event: design.EventInfo{EventDate: "2026-02-14T18:30:00Z"},
	})
	_ = flow.Open(Prompt{EndDateISO: "2026-02-14T23:00:00Z"})
	res, err := flow.Submit(context.Background(), Guest{Name: "Ana"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Calendar == nil || !strings.Contains(res.Calendar.Content, "DTSTART:20260214T183000Z") || !strings.Contains(res.Calendar.Content, "DTEND:20260214T230000Z") {
		t.Fatalf("calendar = %+v", res.Calendar)
	}
}

func TestFlow_NoTitleSkipsCalendar(t *testing.T) {
	flow := newTestFlow(NewMemoryStore(), nil, Invitation{Slug: "boda"})
	_ = flow.Open(Prompt{DateISO: "2025-12-24T19:00:00"})
	res, err := flow.Submit(context.Background(), Guest{Name: "Ana"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Calendar != nil {
		t.Fatal("calendar generated without a title")
	}
}
