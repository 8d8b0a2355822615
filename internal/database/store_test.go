package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/tgcollector/internal/errs"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })
	return NewStore(db, nil)
}

func createAccount(t *testing.T, s Store, phone string) *Account {
	t.Helper()
	acc := &Account{PhoneNumber: phone, AppID: 12345, AppHash: "hash"}
	if err := s.CreateAccount(context.Background(), acc); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return acc
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"tgcollector.db", "tgcollector.db"},
		{"file:data/tg.db?_pragma=foreign_keys(1)", "data/tg.db"},
		{"file:my%20db.sqlite", "my db.sqlite"},
	}
	for _, tt := range tests {
		if got := ExtractDBNameFromPath(tt.in); got != tt.want {
			t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAccountSessionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	acc := createAccount(t, s, "+15550001")
	if acc.ID == 0 {
		t.Fatal("account ID not set")
	}

	dup := &Account{PhoneNumber: "+15550001", AppID: 1, AppHash: "x"}
	if err := s.CreateAccount(ctx, dup); errs.Code(err) != errs.CodeValidation {
		t.Fatalf("duplicate phone: got %v, want validation error", err)
	}

	requested := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.SavePendingSession(ctx, acc.ID, []byte("pending"), requested); err != nil {
		t.Fatalf("SavePendingSession: %v", err)
	}
	got, err := s.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.IsActive || string(got.SessionBlob) != "pending" {
		t.Fatalf("pending account = active %v blob %q", got.IsActive, got.SessionBlob)
	}
	if !got.LastCodeRequest.Valid || !got.LastCodeRequest.Time.Equal(requested) {
		t.Fatalf("LastCodeRequest = %v, want %v", got.LastCodeRequest, requested)
	}

	if err := s.SaveAuthenticatedSession(ctx, acc.ID, nil); errs.Code(err) != errs.CodeValidation {
		t.Fatalf("empty session activation: got %v", err)
	}
	if err := s.SaveAuthenticatedSession(ctx, acc.ID, []byte("live")); err != nil {
		t.Fatalf("SaveAuthenticatedSession: %v", err)
	}
	got, _ = s.GetAccount(ctx, acc.ID)
	if !got.IsActive || string(got.SessionBlob) != "live" {
		t.Fatalf("authenticated account = active %v blob %q", got.IsActive, got.SessionBlob)
	}

	if err := s.ClearAccountSession(ctx, acc.ID); err != nil {
		t.Fatalf("ClearAccountSession: %v", err)
	}
	got, _ = s.GetAccount(ctx, acc.ID)
	if got.IsActive || got.SessionBlob != nil {
		t.Fatalf("cleared account = active %v blob %q", got.IsActive, got.SessionBlob)
	}

	if err := s.UpdateSessionBlob(ctx, 999, []byte("x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateSessionBlob on missing account: got %v, want ErrNotFound", err)
	}
	if missing, err := s.GetAccount(ctx, 999); missing != nil || err != nil {
		t.Fatalf("GetAccount(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestUpsertGroupRefreshesInPlace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	g := &Group{GroupID: -1001234567890, Name: "Old", Username: "old"}
	created, err := s.UpsertGroup(ctx, g)
	if err != nil || !created {
		t.Fatalf("first upsert = %v, %v; want created", created, err)
	}
	firstID := g.ID

	again := &Group{GroupID: -1001234567890, Name: "New", Username: "new"}
	created, err = s.UpsertGroup(ctx, again)
	if err != nil || created {
		t.Fatalf("second upsert = %v, %v; want updated", created, err)
	}
	if again.ID != firstID {
		t.Fatalf("row id changed: %d != %d", again.ID, firstID)
	}

	stored, err := s.GetGroupByPlatformID(ctx, -1001234567890)
	if err != nil {
		t.Fatalf("GetGroupByPlatformID: %v", err)
	}
	if stored.Name != "New" || stored.Username != "new" || !stored.IsActive {
		t.Fatalf("stored group = %+v", stored)
	}
}

func TestAssociations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	acc := createAccount(t, s, "+15550002")
	if err := s.SaveAuthenticatedSession(ctx, acc.ID, []byte("live")); err != nil {
		t.Fatal(err)
	}
	g := &Group{GroupID: 42, Name: "Chat"}
	if _, err := s.UpsertGroup(ctx, g); err != nil {
		t.Fatal(err)
	}

	created, err := s.UpsertAssociation(ctx, acc.ID, g.ID, false)
	if err != nil || !created {
		t.Fatalf("UpsertAssociation = %v, %v", created, err)
	}

	active, err := s.ListActiveAssociations(ctx)
	if err != nil {
		t.Fatalf("ListActiveAssociations: %v", err)
	}
	if len(active) != 1 || active[0].PlatformGroupID != 42 || active[0].PhoneNumber != "+15550002" {
		t.Fatalf("active associations = %+v", active)
	}

	if err := s.SetAssociationActive(ctx, acc.ID, g.ID, false); err != nil {
		t.Fatalf("SetAssociationActive: %v", err)
	}
	// Sync-style upsert keeps the operator's toggle.
	if created, err := s.UpsertAssociation(ctx, acc.ID, g.ID, false); err != nil || created {
		t.Fatalf("re-upsert = %v, %v", created, err)
	}
	assoc, _ := s.GetAssociation(ctx, acc.ID, g.ID)
	if assoc.IsActive {
		t.Fatal("sync upsert re-activated a disabled association")
	}
	// Join-style upsert re-activates.
	if _, err := s.UpsertAssociation(ctx, acc.ID, g.ID, true); err != nil {
		t.Fatal(err)
	}
	assoc, _ = s.GetAssociation(ctx, acc.ID, g.ID)
	if !assoc.IsActive {
		t.Fatal("join upsert did not re-activate the association")
	}

	if err := s.SetAssociationActive(ctx, acc.ID, 999, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("toggle missing association: got %v", err)
	}
}

func TestDeactivateStaleAssociations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	acc := createAccount(t, s, "+15550003")
	fresh := &Group{GroupID: 1, Name: "fresh"}
	stale := &Group{GroupID: 2, Name: "stale"}
	for _, g := range []*Group{fresh, stale} {
		if _, err := s.UpsertGroup(ctx, g); err != nil {
			t.Fatal(err)
		}
		if _, err := s.UpsertAssociation(ctx, acc.ID, g.ID, true); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Now().UTC()
	freshAssoc, _ := s.GetAssociation(ctx, acc.ID, fresh.ID)
	staleAssoc, _ := s.GetAssociation(ctx, acc.ID, stale.ID)
	if err := s.TouchAssociation(ctx, freshAssoc.ID, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchAssociation(ctx, staleAssoc.ID, now.Add(-8*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeactivateStaleAssociations(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("DeactivateStaleAssociations: %v", err)
	}
	if n != 1 {
		t.Fatalf("deactivated %d associations, want 1", n)
	}
	if a, _ := s.GetAssociation(ctx, acc.ID, stale.ID); a.IsActive {
		t.Error("stale association still active")
	}
	if a, _ := s.GetAssociation(ctx, acc.ID, fresh.ID); !a.IsActive {
		t.Error("fresh association deactivated")
	}
}

func TestMessagesDedupAndProcessing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	g := &Group{GroupID: 7, Name: "g"}
	if _, err := s.UpsertGroup(ctx, g); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"one", "two", "three"} {
		m := &Message{
			GroupID: g.ID, MessageID: int64(i + 1), SenderName: "Ann",
			Kind: "TEXT", Text: text, Date: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.InsertMessage(ctx, m); err != nil {
			t.Fatalf("InsertMessage(%d): %v", i+1, err)
		}
	}

	dup := &Message{GroupID: g.ID, MessageID: 2, SenderName: "Ann", Kind: "TEXT", Text: "two", Date: base}
	if err := s.InsertMessage(ctx, dup); errs.Code(err) != errs.CodeDataIntegrity {
		t.Fatalf("duplicate insert: got %v, want data integrity error", err)
	}
	if n, _ := s.CountMessages(ctx, g.ID); n != 3 {
		t.Fatalf("CountMessages = %d, want 3", n)
	}

	found, err := s.FindMessage(ctx, g.ID, 2)
	if err != nil || found == nil {
		t.Fatalf("FindMessage = %v, %v", found, err)
	}
	if err := s.UpdateMessageSenderUsername(ctx, found.ID, "ann"); err != nil {
		t.Fatal(err)
	}
	found, _ = s.FindMessage(ctx, g.ID, 2)
	if found.SenderUsername != "ann" || found.Text != "two" {
		t.Fatalf("after username backfill = %+v", found)
	}

	unprocessed, err := s.GetUnprocessedMessages(ctx, g.ID, base, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("GetUnprocessedMessages: %v", err)
	}
	if len(unprocessed) != 2 || unprocessed[0].Text != "one" || unprocessed[1].Text != "two" {
		t.Fatalf("unprocessed window = %+v", unprocessed)
	}

	if err := s.MarkMessagesAsProcessed(ctx, []int64{unprocessed[0].ID, unprocessed[1].ID}); err != nil {
		t.Fatalf("MarkMessagesAsProcessed: %v", err)
	}
	rest, _ := s.GetUnprocessedMessages(ctx, g.ID, base, base.Add(time.Hour))
	if len(rest) != 1 || rest[0].Text != "three" {
		t.Fatalf("remaining unprocessed = %+v", rest)
	}
}

func TestSummaries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	g := &Group{GroupID: 9, Name: "g"}
	if _, err := s.UpsertGroup(ctx, g); err != nil {
		t.Fatal(err)
	}

	end := time.Now().UTC()
	sum := &Summary{GroupID: g.ID, StartDate: end.Add(-7 * 24 * time.Hour), EndDate: end, Content: "weekly"}
	if err := s.SaveSummary(ctx, sum); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	latest, err := s.GetLatestSummary(ctx, g.ID)
	if err != nil || latest == nil || latest.Content != "weekly" {
		t.Fatalf("GetLatestSummary = %+v, %v", latest, err)
	}

	n, err := s.DeleteSummariesBefore(ctx, end.Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("DeleteSummariesBefore(past) = %d, %v", n, err)
	}
	n, err = s.DeleteSummariesBefore(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteSummariesBefore(future) = %d, %v", n, err)
	}
}
