package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func openTestSQLiteStore(t *testing.T, path string, cap int) Store {
	t.Helper()

	st, err := Open(Config{Driver: "sqlite", Path: path, Cap: cap}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// TestSQLiteStoreRoundTrip verifies that messages and registrations survive
// a close-and-reopen cycle in insertion order.
func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	st := openTestSQLiteStore(t, path, 10)
	for i, text := range []string{"one", "two", "three"} {
		msg := Message{ID: fmt.Sprintf("id-%d", i), Username: "alice", Text: text, Timestamp: int64(i)}
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

	reopened := openTestSQLiteStore(t, path, 10)
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
	if !ok || user.Username != "alice" || user.JoinedAt != 42 {
		t.Errorf("Unexpected user after reopen: %+v (ok=%v)", user, ok)
	}
}

// TestSQLiteStoreEviction verifies rows beyond the cap are deleted oldest
// first on every append.
func TestSQLiteStoreEviction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	st := openTestSQLiteStore(t, path, 5)

	for i := 1; i <= 8; i++ {
		msg := Message{ID: fmt.Sprintf("id-%d", i), Username: "u", Text: fmt.Sprintf("m%d", i), Timestamp: int64(i)}
		if err := st.Append(msg); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
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

// TestSQLiteStoreRegisterOverwrite verifies token re-registration replaces
// the previous mapping.
func TestSQLiteStoreRegisterOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	st := openTestSQLiteStore(t, path, 5)

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
