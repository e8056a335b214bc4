package store

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"chatdb/pkg/models"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := Open(filepath.Join(t.TempDir(), "store")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
}

func mustAppend(t *testing.T, sender, text string) models.Message {
	t.Helper()
	m, err := Append(models.Message{SenderID: sender, Text: text})
	if err != nil {
		t.Fatalf("Append(%q): %v", text, err)
	}
	return m
}

func TestAppendAssignsServerFields(t *testing.T) {
	openTestStore(t)

	before := time.Now().UTC().UnixNano()
	m, err := Append(models.Message{
		SenderID: "alice",
		Text:     "hello",
		// callers cannot smuggle receipts in through append
		ReadBy: map[string]int64{"mallory": 1},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected a server-assigned id")
	}
	if m.TS < before {
		t.Fatalf("ts %d precedes append time %d", m.TS, before)
	}
	if m.Type != models.TypeText {
		t.Fatalf("type = %q, want text", m.Type)
	}
	if m.ReadBy != nil {
		t.Fatalf("readBy must start empty, got %v", m.ReadBy)
	}

	got, err := Get(m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != m.ID || got.Text != "hello" || got.SenderID != "alice" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	openTestStore(t)

	if _, err := Append(models.Message{Text: "no sender"}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := Append(models.Message{SenderID: "alice"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty content, got %v", err)
	}
}

func TestGetUnknown(t *testing.T) {
	openTestStore(t)
	if _, err := Get("m-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRecentOrderAndBound(t *testing.T) {
	openTestStore(t)

	var ids []string
	for _, txt := range []string{"one", "two", "three", "four", "five"} {
		ids = append(ids, mustAppend(t, "alice", txt).ID)
	}

	msgs, err := ListRecent(3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("window size = %d, want 3", len(msgs))
	}
	// newest three, oldest first
	want := ids[2:]
	for i, m := range msgs {
		if m.ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, m.ID, want[i])
		}
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].TS < msgs[i-1].TS {
			t.Fatalf("timestamps out of order at %d", i)
		}
	}
}

func TestAddReaderIdempotentAndClamped(t *testing.T) {
	openTestStore(t)
	m := mustAppend(t, "alice", "hello")

	// receipt time earlier than the message is clamped to the message ts
	added, err := AddReader(m.ID, "bob", m.TS-5_000_000)
	if err != nil {
		t.Fatalf("AddReader: %v", err)
	}
	if !added {
		t.Fatalf("first receipt should be added")
	}
	got, _ := Get(m.ID)
	if got.ReadBy["bob"] != m.TS {
		t.Fatalf("receipt ts = %d, want clamp to %d", got.ReadBy["bob"], m.TS)
	}

	// second call never rewrites the receipt
	added, err = AddReader(m.ID, "bob", time.Now().UTC().UnixNano())
	if err != nil {
		t.Fatalf("AddReader repeat: %v", err)
	}
	if added {
		t.Fatalf("repeat receipt should be a no-op")
	}
	got, _ = Get(m.ID)
	if got.ReadBy["bob"] != m.TS {
		t.Fatalf("receipt rewritten to %d", got.ReadBy["bob"])
	}
}

func TestConcurrentReadersBothSurvive(t *testing.T) {
	openTestStore(t)
	m := mustAppend(t, "alice", "hello")

	var wg sync.WaitGroup
	for _, user := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if _, err := AddReader(m.ID, u, time.Now().UTC().UnixNano()); err != nil {
				t.Errorf("AddReader(%s): %v", u, err)
			}
		}(user)
	}
	wg.Wait()

	got, err := Get(m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.HasRead("bob") || !got.HasRead("carol") {
		t.Fatalf("lost a receipt: %v", got.ReadBy)
	}
}

func TestMarkReadBatch(t *testing.T) {
	openTestStore(t)
	a := mustAppend(t, "alice", "one")
	b := mustAppend(t, "alice", "two")

	at := time.Now().UTC().UnixNano()
	if err := MarkReadBatch("bob", []string{a.ID, b.ID}, at); err != nil {
		t.Fatalf("MarkReadBatch: %v", err)
	}
	for _, id := range []string{a.ID, b.ID} {
		m, _ := Get(id)
		if !m.HasRead("bob") {
			t.Fatalf("%s missing receipt", id)
		}
	}

	// idempotent second pass
	firstTS := func() int64 { m, _ := Get(a.ID); return m.ReadBy["bob"] }()
	if err := MarkReadBatch("bob", []string{a.ID, b.ID}, at+1e9); err != nil {
		t.Fatalf("MarkReadBatch repeat: %v", err)
	}
	if got := func() int64 { m, _ := Get(a.ID); return m.ReadBy["bob"] }(); got != firstTS {
		t.Fatalf("repeat batch rewrote receipt: %d != %d", got, firstTS)
	}
}

func TestMarkReadBatchUnknownIDFailsWhole(t *testing.T) {
	openTestStore(t)
	a := mustAppend(t, "alice", "one")

	err := MarkReadBatch("bob", []string{a.ID, "m-missing"}, time.Now().UTC().UnixNano())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	m, _ := Get(a.ID)
	if m.HasRead("bob") {
		t.Fatalf("failed batch must not commit partial receipts")
	}
}

func TestClosedStore(t *testing.T) {
	if Ready() {
		t.Fatalf("store should start closed")
	}
	if _, err := Append(models.Message{SenderID: "a", Text: "x"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := Get("m-x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCountMessages(t *testing.T) {
	openTestStore(t)
	a := mustAppend(t, "alice", "one")
	mustAppend(t, "alice", "two")
	if _, err := AddReader(a.ID, "bob", time.Now().UTC().UnixNano()); err != nil {
		t.Fatalf("AddReader: %v", err)
	}

	msgs, receipts, err := CountMessages()
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if msgs != 2 || receipts != 1 {
		t.Fatalf("got %d msgs / %d receipts, want 2 / 1", msgs, receipts)
	}
}
