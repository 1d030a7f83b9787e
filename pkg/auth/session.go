package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/notecal/pkg/config"
	"github.com/harrisonrobin/notecal/pkg/secret"
)

// RefreshBuffer is how far ahead of expiry a token is refreshed.
const RefreshBuffer = 5 * time.Minute

var (
	// ErrNoCredential means no token has been stored yet.
	ErrNoCredential = errors.New("not authorized: run `notecal auth` first")
	// ErrCannotRefresh means the stored token has no refresh token.
	ErrCannotRefresh = errors.New("credential cannot be refreshed")
)

// Session holds the current credential and persists every change to it.
// It is an oauth2.TokenSource that never refreshes on its own; refreshing is
// explicit through EnsureFresh.
type Session struct {
	cfg    *oauth2.Config
	store  *config.Store
	cipher secret.Cipher
	now    func() time.Time

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewSession loads the encrypted token from store, if any.
func NewSession(cfg *oauth2.Config, store *config.Store, cipher secret.Cipher) (*Session, error) {
	s := &Session{cfg: cfg, store: store, cipher: cipher, now: time.Now}

	sealed := store.Get().Token
	if sealed == "" {
		return s, nil
	}
	plain, err := cipher.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt stored token: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(plain, tok); err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}
	s.tok = tok
	return s, nil
}

// Ready reports whether a credential is loaded.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok != nil
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil {
		return nil, ErrNoCredential
	}
	return s.tok, nil
}

// Client returns an HTTP client authorized with the session's current token.
func (s *Session) Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, s)
}

// EnsureFresh refreshes the token unless it is valid for more than
// RefreshBuffer, and persists the refreshed token.
func (s *Session) EnsureFresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok == nil {
		return ErrNoCredential
	}
	if !s.tok.Expiry.IsZero() && s.tok.Expiry.After(s.now().Add(RefreshBuffer)) {
		return nil
	}
	if s.tok.RefreshToken == "" {
		return ErrCannotRefresh
	}

	// A token with no access token forces the source to refresh.
	next, err := s.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: s.tok.RefreshToken}).Token()
	if err != nil {
		return fmt.Errorf("unable to refresh token: %w", err)
	}
	if next.RefreshToken == "" {
		next.RefreshToken = s.tok.RefreshToken
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.tok = next
	log.Debug().Time("expiry", next.Expiry).Msg("refreshed calendar token")
	return nil
}

// Save stores tok as the session credential.
func (s *Session) Save(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(tok); err != nil {
		return err
	}
	s.tok = tok
	return nil
}

func (s *Session) persist(tok *oauth2.Token) error {
	plain, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	sealed, err := s.cipher.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("unable to encrypt token: %w", err)
	}
	return s.store.Update(func(st *config.Settings) { st.Token = sealed })
}
