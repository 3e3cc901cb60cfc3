package events

import (
	"testing"
	"time"
)

func ptr(s string) *string { return &s }

func TestEvent_Less_TimestampOrder(t *testing.T) {
	t0 := time.Date(2025, 1, 25, 10, 0, 0, 0, time.UTC)
	a := Event{Type: TmuxScroll, Timestamp: t0}
	b := Event{Type: TmuxScroll, Timestamp: t0.Add(time.Second)}

	if !a.Less(b) {
		t.Fatal("expected earlier event to sort first")
	}
	if b.Less(a) {
		t.Fatal("expected later event not to sort before earlier")
	}
}

func TestEvent_Less_UserMessageTiebreak(t *testing.T) {
	t0 := time.Date(2025, 1, 25, 10, 0, 0, 0, time.UTC)
	focus := Event{Type: TmuxPaneFocus, Timestamp: t0}
	msg := Event{Type: UserMessage, Timestamp: t0}

	if msg.Less(focus) {
		t.Fatal("user_message must not sort before a same-instant focus event")
	}
	if !focus.Less(msg) {
		t.Fatal("same-instant focus event must sort before user_message")
	}
}

func TestNormalizeCWD(t *testing.T) {
	cases := []struct {
		in   *string
		want string
	}{
		{nil, ""},
		{ptr(""), ""},
		{ptr("/"), "/"},
		{ptr("/a/b/"), "/a/b"},
		{ptr("/a/b"), "/a/b"},
	}
	for _, c := range cases {
		got := NormalizeCWD(c.in)
		if got != c.want {
			t.Errorf("NormalizeCWD(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStreamName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", Uncategorized},
		{"/", "/"},
		{"/home/sami/time-tracker", "time-tracker"},
		{"/home/sami/very/deep/structure/project", "project"},
		{"/home/sami/proyecto-español", "proyecto-español"},
	}
	for _, c := range cases {
		got := StreamName(c.in)
		if got != c.want {
			t.Errorf("StreamName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestComputeID_Deterministic(t *testing.T) {
	data := map[string]any{"b": 1, "a": 2}
	id1 := ComputeID("remote.tmux", TmuxPaneFocus, "2025-01-25T10:00:00Z", data, ptr("/a"), nil)
	id2 := ComputeID("remote.tmux", TmuxPaneFocus, "2025-01-25T10:00:00Z", data, ptr("/a"), nil)

	if id1 != id2 {
		t.Fatalf("expected deterministic ID, got %q and %q", id1, id2)
	}
	if len(id1) != 32 {
		t.Fatalf("expected 32-char ID, got %d chars", len(id1))
	}
}

func TestComputeID_DiffersOnContent(t *testing.T) {
	id1 := ComputeID("remote.tmux", TmuxPaneFocus, "2025-01-25T10:00:00Z", nil, ptr("/a"), nil)
	id2 := ComputeID("remote.tmux", TmuxPaneFocus, "2025-01-25T10:00:01Z", nil, ptr("/a"), nil)

	if id1 == id2 {
		t.Fatal("expected different timestamps to produce different IDs")
	}
}
