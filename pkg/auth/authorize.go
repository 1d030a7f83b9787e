package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const callbackPath = "/oauth2callback"

// ErrSuperseded ends an attempt when a newer one starts.
var ErrSuperseded = errors.New("authorization superseded by a newer attempt")

// Authorizer runs the authorization-code flow with a one-shot local
// callback receiver. Starting a new attempt closes any receiver still open
// from a previous one.
type Authorizer struct {
	cfg *oauth2.Config
	// Prompt shows the authorization URL to the user.
	Prompt func(authURL string)
	// Timeout bounds how long the user has to approve.
	Timeout time.Duration

	mu     sync.Mutex
	active *receiver
}

// receiver is the callback server of one attempt and the way to end it.
type receiver struct {
	server  *http.Server
	deliver func(callback)
}

func NewAuthorizer(cfg *oauth2.Config) *Authorizer {
	return &Authorizer{
		cfg:     cfg,
		Prompt:  func(u string) { fmt.Printf("Open the following URL in your browser to authorize notecal:\n%s\n", u) },
		Timeout: 5 * time.Minute,
	}
}

type callback struct {
	code string
	err  error
}

// Authorize blocks until the redirect is received, then exchanges the code.
func (a *Authorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	state, err := randomState()
	if err != nil {
		listener.Close()
		return nil, err
	}

	cfg := *a.cfg
	cfg.RedirectURL = fmt.Sprintf("http://%s%s", listener.Addr().String(), callbackPath)

	results := make(chan callback, 1)
	var once sync.Once
	deliver := func(cb callback) {
		once.Do(func() { results <- cb })
	}

	r := chi.NewRouter()
	r.Get(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "State mismatch", http.StatusBadRequest)
			deliver(callback{err: errors.New("authorization state mismatch")})
		case q.Get("error") != "":
			http.Error(w, "Authorization denied", http.StatusBadRequest)
			deliver(callback{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
		case q.Get("code") == "":
			http.Error(w, "Authorization code not found", http.StatusBadRequest)
			deliver(callback{err: errors.New("authorization code not found in redirect URL")})
		default:
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			deliver(callback{code: q.Get("code")})
		}
	})

	server := &http.Server{
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	rcv := &receiver{server: server, deliver: deliver}
	a.replace(rcv)
	defer a.release(rcv)

	go func() {
		log.Debug().Str("redirect", cfg.RedirectURL).Msg("waiting for authorization callback")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(callback{err: fmt.Errorf("HTTP server error: %w", err)})
		}
	}()

	// AccessTypeOffline asks for a refresh token.
	a.Prompt(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")))

	timer := time.NewTimer(a.Timeout)
	defer timer.Stop()

	var cb callback
	select {
	case cb = <-results:
	case <-timer.C:
		return nil, errors.New("authorization timed out, please try again")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	a.release(rcv)
	if cb.err != nil {
		return nil, cb.err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	tok, err := cfg.Exchange(exchangeCtx, cb.code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
	}
	return tok, nil
}

// replace makes r the active receiver. The previous one is closed and its
// attempt ends with ErrSuperseded.
func (a *Authorizer) replace(r *receiver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev := a.active; prev != nil {
		prev.server.Close()
		prev.deliver(callback{err: ErrSuperseded})
	}
	a.active = r
}

// release shuts r down and clears it if it is still the active receiver.
func (a *Authorizer) release(r *receiver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.server.Shutdown(ctx)
	if a.active == r {
		a.active = nil
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("unable to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
