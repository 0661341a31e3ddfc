package store

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Message is a single chat message. Messages are immutable once created
// and ordered by insertion.
type Message struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// User is a registered session keyed by its opaque token.
type User struct {
	Username string `json:"username"`
	JoinedAt int64  `json:"joinedAt"`
}

// Config selects and configures a storage driver.
//
// Driver values:
//   - "file": single JSON state file, rewritten atomically on every append
//   - "sqlite": SQLite database file
//   - "memory": process-local only, nothing persisted
//
// An empty Driver means "file".
type Config struct {
	Driver string
	Path   string
	// Cap bounds the retained message log. Oldest messages are evicted
	// first once the cap is exceeded. Zero means DefaultCap.
	Cap int
}

// DefaultCap is the default bound on the retained message log.
const DefaultCap = 200

// ErrUnknownDriver is returned by Open for an unrecognized driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Store is the persistence API used by the request handlers.
//
// Append and RegisterUser are safe for concurrent use with each other and
// with the read methods. A write failure is surfaced to the caller but must
// leave the in-memory view usable for subsequent requests.
type Store interface {
	// Recent returns the last min(k, length) messages in insertion order.
	Recent(k int) []Message
	// Append adds a message to the end of the log, evicting the oldest
	// entries beyond the configured cap, and persists before returning.
	Append(m Message) error
	// RegisterUser inserts or overwrites the token's registration.
	RegisterUser(token, username string, now int64) error
	// LookupUser reports the registration for a token, if any.
	LookupUser(token string) (User, bool)
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log *zap.Logger) (Store, error) {
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultCap
	}
	if log == nil {
		log = zap.NewNop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(cfg.Cap), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}
