package store

import (
	"testing"
	"time"
)

func TestChangeSignalFiresOnAppend(t *testing.T) {
	openTestStore(t)

	sig := ChangeSignal()
	select {
	case <-sig:
		t.Fatalf("signal fired before any change")
	default:
	}

	mustAppend(t, "alice", "hello")

	select {
	case <-sig:
	case <-time.After(time.Second):
		t.Fatalf("signal did not fire after append")
	}

	// the next generation is armed for the next change
	next := ChangeSignal()
	select {
	case <-next:
		t.Fatalf("new signal already fired")
	default:
	}
}

func TestChangeSignalFiresOnReceipt(t *testing.T) {
	openTestStore(t)
	m := mustAppend(t, "alice", "hello")

	sig := ChangeSignal()
	if _, err := AddReader(m.ID, "bob", time.Now().UTC().UnixNano()); err != nil {
		t.Fatalf("AddReader: %v", err)
	}
	select {
	case <-sig:
	case <-time.After(time.Second):
		t.Fatalf("signal did not fire after receipt write")
	}
}
