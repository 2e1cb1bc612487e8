// Package identity implements capability.IdentityService: bcrypt-backed
// AUTHINFO authentication, opaque session tokens, and Message-ID
// synthesis for posted articles that arrive without one. Grounded on
// the bcrypt usage in internal/database/db_nntp_users.go and the
// crypto/rand token generation in internal/database/db_sessions.go.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
)

// Account is one local NNTP login.
type Account struct {
	Username     string
	PasswordHash string // bcrypt hash
}

// Identity implements capability.IdentityService against an in-memory
// account table and a process-wide host identifier.
type Identity struct {
	mu       sync.RWMutex
	accounts map[string]Account
	tokens   map[string]string // token -> username

	persist        capability.PersistenceService
	hostIdentifier string
}

// New returns an Identity with no accounts registered. Register adds
// accounts before serving AUTHINFO. persist backs the generated-host-id
// fallback in HostIdentifier (spec.md §6); pass nil to keep that
// fallback process-lifetime only, e.g. in tests.
func New(persist capability.PersistenceService) *Identity {
	return &Identity{
		accounts: make(map[string]Account),
		tokens:   make(map[string]string),
		persist:  persist,
	}
}

// Register adds or replaces an account, hashing password with bcrypt.
func (id *Identity) Register(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	id.mu.Lock()
	defer id.mu.Unlock()
	id.accounts[username] = Account{Username: username, PasswordHash: string(hash)}
	return nil
}

// Authenticate verifies credentials against the bcrypt hash and mints
// an opaque session token on success.
func (id *Identity) Authenticate(ctx context.Context, subject, credentials string) (string, bool, error) {
	id.mu.RLock()
	account, ok := id.accounts[subject]
	id.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(credentials)); err != nil {
		return "", false, nil
	}

	token, err := randomToken()
	if err != nil {
		return "", false, fmt.Errorf("generating session token: %w", err)
	}
	id.mu.Lock()
	id.tokens[token] = subject
	id.mu.Unlock()
	return token, true, nil
}

// IsValid reports whether token was issued by a successful Authenticate
// call and has not been revoked.
func (id *Identity) IsValid(ctx context.Context, token string) (bool, error) {
	id.mu.RLock()
	defer id.mu.RUnlock()
	_, ok := id.tokens[token]
	return ok, nil
}

// HostIdentifier returns this process's stable host label: HOSTNAME,
// then COMPUTERNAME, then an opaque id generated once and persisted via
// capability.PersistenceService so it survives process restarts without
// depending on the OS-reported hostname (spec.md §6).
func (id *Identity) HostIdentifier(ctx context.Context) (string, error) {
	id.mu.RLock()
	cached := id.hostIdentifier
	id.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	host := os.Getenv("HOSTNAME")
	if host == "" {
		host = os.Getenv("COMPUTERNAME")
	}
	if host == "" {
		var err error
		host, err = id.generatedHostIdentifier(ctx)
		if err != nil {
			return "", err
		}
	}

	id.mu.Lock()
	id.hostIdentifier = host
	id.mu.Unlock()
	return host, nil
}

// generatedHostIdentifier loads a previously persisted opaque host id,
// or generates and persists one on first use. Without a persistence
// service wired (e.g. in tests) the id is generated fresh every run.
func (id *Identity) generatedHostIdentifier(ctx context.Context) (string, error) {
	if id.persist == nil {
		return randomToken()
	}
	if existing, ok, err := id.persist.GetHostIdentifier(ctx); err != nil {
		return "", fmt.Errorf("loading persisted host identifier: %w", err)
	} else if ok {
		return existing, nil
	}

	generated, err := randomToken()
	if err != nil {
		return "", err
	}
	if err := id.persist.SetHostIdentifier(ctx, generated); err != nil {
		return "", fmt.Errorf("persisting generated host identifier: %w", err)
	}
	return generated, nil
}

// CreateMessageID synthesizes a Message-ID for an article posted
// without one, in the conventional <random@host> form.
func (id *Identity) CreateMessageID(ctx context.Context, headers *domain.ArticleHeaders) (domain.MessageId, error) {
	host, err := id.HostIdentifier(ctx)
	if err != nil {
		return domain.MessageId{}, err
	}
	token, err := randomToken()
	if err != nil {
		return domain.MessageId{}, fmt.Errorf("generating message-id: %w", err)
	}
	raw := fmt.Sprintf("<%d.%s@%s>", time.Now().UTC().UnixNano(), token, host)
	return domain.NewMessageId(raw)
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
