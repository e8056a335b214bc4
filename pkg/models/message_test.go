package models

import "testing"

func TestDeriveType(t *testing.T) {
	cases := []struct {
		text, img string
		want      Type
	}{
		{"hi", "", TypeText},
		{"", "/v1/blobs/a-full.jpg", TypeImage},
		{"hi", "/v1/blobs/a-full.jpg", TypeMixed},
		{"", "", TypeText},
	}
	for _, c := range cases {
		if got := DeriveType(c.text, c.img); got != c.want {
			t.Fatalf("DeriveType(%q, %q) = %q, want %q", c.text, c.img, got, c.want)
		}
	}
}

func TestHasRead(t *testing.T) {
	m := Message{ID: "m1", SenderID: "alice"}
	if m.HasRead("bob") {
		t.Fatalf("nil readBy should report unread")
	}
	m.ReadBy = map[string]int64{"bob": 100}
	if !m.HasRead("bob") {
		t.Fatalf("bob holds a receipt")
	}
	if m.HasRead("carol") {
		t.Fatalf("carol holds no receipt")
	}
}

func TestOthersReadCount(t *testing.T) {
	m := Message{ID: "m1", SenderID: "alice", ReadBy: map[string]int64{"bob": 100, "carol": 200}}

	// the sender is never in readBy, so every receipt counts for it
	if got := m.OthersReadCount("alice"); got != 2 {
		t.Fatalf("sender view: got %d, want 2", got)
	}
	// a reader's own receipt is excluded from its view
	if got := m.OthersReadCount("bob"); got != 1 {
		t.Fatalf("reader view: got %d, want 1", got)
	}
	if !m.ReadByOthers("alice") {
		t.Fatalf("sender should see the message as read by others")
	}

	solo := Message{ID: "m2", SenderID: "alice", ReadBy: map[string]int64{"bob": 100}}
	if solo.ReadByOthers("bob") {
		t.Fatalf("sole reader should not see others")
	}
}
