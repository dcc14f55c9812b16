package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"celebria/internal/database"
	"celebria/internal/design"
	"celebria/internal/errcode"
	"celebria/internal/pdf"
	"celebria/internal/storage"
	"celebria/internal/tasks"
)

type fakeCapturer struct {
	html     string
	viewport pdf.Viewport
	paper    pdf.Paper
	selector string
	err      error
}

func (f *fakeCapturer) PDF(_ context.Context, html string, vp pdf.Viewport, paper pdf.Paper) ([]byte, error) {
	f.html, f.viewport, f.paper = html, vp, paper
	return []byte("%PDF-1.7"), f.err
}

func (f *fakeCapturer) Screenshot(_ context.Context, html string, vp pdf.Viewport, selector string, _ int) ([]byte, error) {
	f.html, f.viewport, f.selector = html, vp, selector
	return []byte{0xff, 0xd8}, f.err
}

type fakeStore struct {
	uploaded  map[string][]byte
	deleted   []string
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploaded: map[string][]byte{}}
}

func (s *fakeStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStore) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://files.example/" + objectKey, nil
}

func (s *fakeStore) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

type fakePublisher struct {
	channels []string
	messages []NotifyMessage
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channels = append(p.channels, channel)
	var msg NotifyMessage
	_ = json.Unmarshal(message.([]byte), &msg)
	p.messages = append(p.messages, msg)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedInvitation(t *testing.T, db *gorm.DB, doc design.Document) database.Invitation {
	t.Helper()
	raw, err := database.EncodeDesign(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	event := database.Event{Title: "Boda", EventDate: "2025-12-01T19:00:00Z", Location: "Lima"}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	inv := database.Invitation{Title: "Boda de Ana", EventID: event.ID, CustomDesign: raw}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	return inv
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInvitationPDFTask(t *testing.T) {
	db := newTestDB(t)
	landscape := design.BlankPage()
	landscape.Orientation = design.Landscape
	inv := seedInvitation(t, db, design.Document{Pages: []design.Page{landscape, design.BlankPage()}})

	store := newFakeStore()
	capturer := &fakeCapturer{}
	pub := &fakePublisher{}
	h := NewInvitationTaskHandler(db, store, capturer, pub, discardLogger(), time.UTC)

	task, err := tasks.NewInvitationPDFTask(inv.ID, "corr-1")
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}

	if capturer.paper != (pdf.Paper{Width: 640, Height: 360}) {
		t.Fatalf("paper follows first page orientation, got %+v", capturer.paper)
	}
	if strings.Count(capturer.html, `class="celebria-frame"`) != 2 {
		t.Fatalf("expected both pages in html")
	}

	var updated database.Invitation
	if err := db.First(&updated, inv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !strings.HasPrefix(updated.PDFObjectKey, "invitations/") || !strings.HasSuffix(updated.PDFObjectKey, ".pdf") {
		t.Fatalf("unexpected pdf key %q", updated.PDFObjectKey)
	}
	if _, ok := store.uploaded[updated.PDFObjectKey]; !ok {
		t.Fatalf("pdf not uploaded")
	}
	if len(store.deleted) != 0 {
		t.Fatalf("nothing to replace on first export, deleted %v", store.deleted)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if pub.channels[0] != NotifyChannel(inv.ID) || msg.Kind != NotifyPDF || msg.Status != "completed" || msg.ErrorCode != errcode.OK {
		t.Fatalf("unexpected notification %+v on %s", msg, pub.channels[0])
	}
	if msg.CorrelationID != "corr-1" || msg.URL == "" {
		t.Fatalf("notification missing fields: %+v", msg)
	}
}

func TestInvitationPDFTask_ReplacesPreviousArtifact(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvitation(t, db, design.Document{Pages: []design.Page{design.BlankPage()}})
	old := storage.PDFPrefix(inv.ID) + "old.pdf"
	if err := db.Model(&inv).Update("pdf_object_key", old).Error; err != nil {
		t.Fatalf("seed key: %v", err)
	}
	store := newFakeStore()
	store.uploaded[old] = []byte("%PDF-old")
	h := NewInvitationTaskHandler(db, store, &fakeCapturer{}, &fakePublisher{}, discardLogger(), time.UTC)

	task, _ := tasks.NewInvitationPDFTask(inv.ID, "")
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}

	var updated database.Invitation
	if err := db.First(&updated, inv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.PDFObjectKey == old {
		t.Fatal("key not replaced")
	}
	if _, ok := store.uploaded[updated.PDFObjectKey]; !ok {
		t.Fatal("new pdf not uploaded")
	}
	if len(store.deleted) != 1 || store.deleted[0] != old {
		t.Fatalf("expected only %q deleted, got %v", old, store.deleted)
	}
}

func TestInvitationPDFTask_UploadFailureKeepsPreviousArtifact(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvitation(t, db, design.Document{Pages: []design.Page{design.BlankPage()}})
	old := storage.PDFPrefix(inv.ID) + "old.pdf"
	if err := db.Model(&inv).Update("pdf_object_key", old).Error; err != nil {
		t.Fatalf("seed key: %v", err)
	}
	store := newFakeStore()
	store.uploaded[old] = []byte("%PDF-old")
	store.uploadErr = errors.New("minio unavailable")
	h := NewInvitationTaskHandler(db, store, &fakeCapturer{}, &fakePublisher{}, discardLogger(), time.UTC)

	task, _ := tasks.NewInvitationPDFTask(inv.ID, "")
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected upload error")
	}

	var updated database.Invitation
	if err := db.First(&updated, inv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.PDFObjectKey != old {
		t.Fatalf("key changed to %q", updated.PDFObjectKey)
	}
	if _, ok := store.uploaded[old]; !ok || len(store.deleted) != 0 {
		t.Fatalf("previous pdf removed, deleted %v", store.deleted)
	}
}

func TestInvitationPreviewTaskEmptyDesign(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvitation(t, db, design.Document{})

	store := newFakeStore()
	capturer := &fakeCapturer{}
	pub := &fakePublisher{}
	h := NewInvitationTaskHandler(db, store, capturer, pub, discardLogger(), time.UTC)

	task, _ := tasks.NewInvitationPreviewTask(inv.ID, "corr-2")
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}

	if capturer.selector != FrameSelector || capturer.viewport != (pdf.Viewport{Width: 360, Height: 640}) {
		t.Fatalf("unexpected capture %+v %q", capturer.viewport, capturer.selector)
	}
	if !strings.Contains(capturer.html, "Boda de Ana") {
		t.Fatalf("placeholder should show the invitation title")
	}
	if len(pub.messages) != 1 || pub.messages[0].ErrorCode != errcode.ResourceMissing {
		t.Fatalf("expected resource-missing notification, got %+v", pub.messages)
	}
}

func TestInvitationTaskMissingInvitation(t *testing.T) {
	db := newTestDB(t)
	pub := &fakePublisher{}
	h := NewInvitationTaskHandler(db, newFakeStore(), &fakeCapturer{}, pub, discardLogger(), nil)

	task, _ := tasks.NewInvitationPreviewTask(999, "")
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("missing invitation should be skipped, got %v", err)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("no notification expected")
	}
}

func TestInvitationTaskCaptureFailure(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvitation(t, db, design.Document{Pages: []design.Page{design.BlankPage()}})
	capturer := &fakeCapturer{err: errors.New("chromium crashed")}
	h := NewInvitationTaskHandler(db, newFakeStore(), capturer, &fakePublisher{}, discardLogger(), time.UTC)

	task, _ := tasks.NewInvitationPreviewTask(inv.ID, "")
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected capture error to surface for retry")
	}
}

func TestInvitationTaskBadPayload(t *testing.T) {
	h := NewInvitationTaskHandler(newTestDB(t), newFakeStore(), &fakeCapturer{}, &fakePublisher{}, discardLogger(), nil)
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeInvitationPDF, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestTemplatePreviewTask(t *testing.T) {
	db := newTestDB(t)
	raw, _ := database.EncodeDesign(design.Document{Pages: []design.Page{design.BlankPage()}})
	tpl := database.Template{Title: "Clásica", Design: raw}
	if err := db.Create(&tpl).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}

	store := newFakeStore()
	h := NewTemplatePreviewHandler(db, store, &fakeCapturer{}, discardLogger(), nil)
	task, _ := tasks.NewTemplatePreviewTask(tpl.ID, "corr")
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}

	var updated database.Template
	if err := db.First(&updated, tpl.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !strings.HasPrefix(updated.PreviewObjectKey, "templates/") {
		t.Fatalf("unexpected key %q", updated.PreviewObjectKey)
	}
	if _, ok := store.uploaded[updated.PreviewObjectKey]; !ok {
		t.Fatal("preview not uploaded")
	}
}

func TestInvitationTaskInvalidDesign(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvitation(t, db, design.Document{})
	if err := db.Model(&inv).Update("custom_design", `{"pages": 3}`).Error; err != nil {
		t.Fatalf("corrupt design: %v", err)
	}
	pub := &fakePublisher{}
	capturer := &fakeCapturer{}
	h := NewInvitationTaskHandler(db, newFakeStore(), capturer, pub, discardLogger(), time.UTC)

	task, _ := tasks.NewInvitationPDFTask(inv.ID, "corr-2")
	err := h.ProcessTask(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if capturer.html != "" {
		t.Fatal("capture must not run for an invalid design")
	}
	if len(pub.messages) != 1 || pub.messages[0].ErrorCode != errcode.InvalidDesign || pub.messages[0].Kind != NotifyPDF {
		t.Fatalf("unexpected notifications %+v", pub.messages)
	}
}
