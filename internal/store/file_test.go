package store

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func openTestFileStore(t *testing.T, path string, cap int) Store {
	t.Helper()

	st, err := Open(Config{Driver: "file", Path: path, Cap: cap}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// TestFileStoreStartsEmptyWhenMissing verifies that opening a store against
// a nonexistent file succeeds with an empty log and registry.
func TestFileStoreStartsEmptyWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	st := openTestFileStore(t, path, 10)

	if got := st.Recent(10); len(got) != 0 {
		t.Errorf("Expected empty log, got %d messages", len(got))
	}
	if _, ok := st.LookupUser("nope"); ok {
		t.Error("Expected empty registry, found a user")
	}
}

// TestFileStoreCorruptStartsFresh verifies that a corrupt state file is
// treated as "start fresh" rather than a fatal error, and that the store
// remains writable afterwards.
func TestFileStoreCorruptStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	st := openTestFileStore(t, path, 10)
	if got := st.Recent(10); len(got) != 0 {
		t.Fatalf("Expected empty log after corrupt load, got %d messages", len(got))
	}

	if err := st.Append(Message{ID: "1", Username: "alice", Text: "hi", Timestamp: 1}); err != nil {
		t.Fatalf("Append after corrupt load failed: %v", err)
	}
	if got := st.Recent(10); len(got) != 1 {
		t.Errorf("Expected 1 message, got %d", len(got))
	}
}

// TestFileStoreRoundTrip verifies that messages and registrations survive a
// close-and-reopen cycle in insertion order.
func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")

	st := openTestFileStore(t, path, 10)
	for i, text := range []string{"one", "two", "three"} {
		msg := Message{ID: string(rune('a' + i)), Username: "alice", Text: text, Timestamp: int64(i)}
		if err := st.Append(msg); err != nil {
			t.Fatalf("Append(%q) failed: %v", text, err)
		}
	}
	if err := st.RegisterUser("tok-1", "alice", 42); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := openTestFileStore(t, path, 10)
	got := reopened.Recent(10)
	if len(got) != 3 {
		t.Fatalf("Expected 3 messages after reopen, got %d", len(got))
	}
	for i, text := range []string{"one", "two", "three"} {
		if got[i].Text != text {
			t.Errorf("Message %d: expected %q, got %q", i, text, got[i].Text)
		}
	}

	user, ok := reopened.LookupUser("tok-1")
	if !ok {
		t.Fatal("Expected registration to survive reopen")
	}
	if user.Username != "alice" || user.JoinedAt != 42 {
		t.Errorf("Unexpected user after reopen: %+v", user)
	}
}

// TestFileStoreEviction verifies the FIFO bound: once the cap is exceeded
// the oldest messages are evicted and the newest retained in order.
func TestFileStoreEviction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	st := openTestFileStore(t, path, 5)

	texts := []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8"}
	for i, text := range texts {
		if err := st.Append(Message{ID: text, Username: "u", Text: text, Timestamp: int64(i)}); err != nil {
			t.Fatalf("Append(%q) failed: %v", text, err)
		}
	}

	got := st.Recent(100)
	if len(got) != 5 {
		t.Fatalf("Expected log capped at 5, got %d", len(got))
	}
	for i, want := range []string{"m4", "m5", "m6", "m7", "m8"} {
		if got[i].Text != want {
			t.Errorf("Message %d: expected %q, got %q", i, want, got[i].Text)
		}
	}
}

// TestFileStoreRecentBounds verifies Recent clamps its argument to the log
// length and tolerates zero and negative values.
func TestFileStoreRecentBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	st := openTestFileStore(t, path, 10)

	_ = st.Append(Message{ID: "1", Username: "u", Text: "hi", Timestamp: 1})

	if got := st.Recent(100); len(got) != 1 {
		t.Errorf("Recent(100): expected 1 message, got %d", len(got))
	}
	if got := st.Recent(0); len(got) != 0 {
		t.Errorf("Recent(0): expected 0 messages, got %d", len(got))
	}
	if got := st.Recent(-1); len(got) != 0 {
		t.Errorf("Recent(-1): expected 0 messages, got %d", len(got))
	}
}

// TestFileStoreRegisterOverwrite verifies that re-registering a token
// overwrites the previous mapping.
func TestFileStoreRegisterOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	st := openTestFileStore(t, path, 10)

	if err := st.RegisterUser("tok", "alice", 1); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if err := st.RegisterUser("tok", "bob", 2); err != nil {
		t.Fatalf("RegisterUser overwrite failed: %v", err)
	}

	user, ok := st.LookupUser("tok")
	if !ok || user.Username != "bob" {
		t.Errorf("Expected overwritten user bob, got %+v (ok=%v)", user, ok)
	}
}
