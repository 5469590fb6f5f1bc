// Package google implements the identity gateway boundary with Google's
// OAuth2 redirect sign-in. One Gateway serves one browser session; the
// shared Provider holds the OAuth client configuration.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/harperclay/expensify/internal/common"
	"github.com/harperclay/expensify/internal/model"
)

const defaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// Config holds the OAuth2 client settings for the Google gateway.
type Config struct {
	ClientID     string
	ClientSecret string

	// RedirectURL is the absolute URL of the application's OAuth callback,
	// e.g. "https://expenses.example.com/auth/callback".
	RedirectURL string
}

// Validate checks that all required settings are present.
func (c Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("%w: google client id and secret are required", common.ErrMissingConfig)
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("%w: redirect URL is required", common.ErrMissingConfig)
	}
	return nil
}

// Provider is the per-process half of the gateway: the OAuth2 client
// configuration shared by all browser sessions.
type Provider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	revokeURL  string
}

// NewProvider creates a Provider from the given config.
func NewProvider(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{goauth2.UserinfoEmailScope, goauth2.UserinfoProfileScope},
			Endpoint:     googleoauth.Endpoint,
		},
		httpClient: http.DefaultClient,
		revokeURL:  defaultRevokeURL,
	}, nil
}

// NewGateway creates the gateway for one browser session.
func (p *Provider) NewGateway() *Gateway {
	return &Gateway{
		provider:  p,
		listeners: make(map[int]func(*model.Identity)),
	}
}

// Gateway implements service.IdentityGateway for one browser session.
type Gateway struct {
	provider *Provider

	mu        sync.Mutex
	state     string
	pending   *model.Identity
	token     *oauth2.Token
	listeners map[int]func(*model.Identity)
	nextID    int
}

// BeginRedirectSignIn starts the redirect flow and returns the Google
// authorization URL. The state nonce is kept for callback verification.
func (g *Gateway) BeginRedirectSignIn(_ context.Context) (string, error) {
	state := uuid.NewString()

	g.mu.Lock()
	g.state = state
	g.mu.Unlock()

	return g.provider.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// HandleCallback completes the redirect flow: it verifies the state nonce,
// exchanges the authorization code, fetches the user's identity and parks
// it as the pending redirect result. Registered listeners are notified.
func (g *Gateway) HandleCallback(ctx context.Context, state, code string) error {
	g.mu.Lock()
	expected := g.state
	g.state = ""
	g.mu.Unlock()

	if expected == "" || state != expected {
		return fmt.Errorf("oauth state mismatch")
	}

	token, err := g.provider.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: code exchange: %v", common.ErrGatewayUnavailable, err)
	}

	svc, err := goauth2.NewService(ctx,
		option.WithTokenSource(g.provider.oauth.TokenSource(ctx, token)))
	if err != nil {
		return fmt.Errorf("%w: userinfo service: %v", common.ErrGatewayUnavailable, err)
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return fmt.Errorf("%w: userinfo: %v", common.ErrGatewayUnavailable, err)
	}

	identity := &model.Identity{
		ID:          info.Id,
		Email:       info.Email,
		DisplayName: info.Name,
		AvatarURL:   info.Picture,
	}

	// With a live listener this behaves as an identity-change notification;
	// otherwise the identity is parked as the pending redirect result for
	// the next startup check to consume.
	g.mu.Lock()
	g.token = token
	hasListeners := len(g.listeners) > 0
	if !hasListeners {
		g.pending = identity
	}
	g.mu.Unlock()

	slog.Info("redirect sign-in completed", "id", identity.ID)
	if hasListeners {
		g.notify(identity)
	}
	return nil
}

// SignOut revokes the session's token at Google and notifies listeners of
// the signed-out state. A revocation transport failure is surfaced; the
// caller must then treat the user as still signed in.
func (g *Gateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	token := g.token
	g.mu.Unlock()

	if token != nil {
		if err := g.revoke(ctx, token); err != nil {
			return err
		}
	}

	g.mu.Lock()
	g.token = nil
	g.pending = nil
	g.mu.Unlock()

	g.notify(nil)
	return nil
}

// ConsumePendingRedirectResult returns the identity from a completed
// redirect sign-in, or (nil, nil) when none is pending. The result is
// consumed.
func (g *Gateway) ConsumePendingRedirectResult(_ context.Context) (*model.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	identity := g.pending
	g.pending = nil
	return identity, nil
}

// OnIdentityChanged registers a callback for identity changes, including
// sign-out (nil identity). The returned function unsubscribes it.
func (g *Gateway) OnIdentityChanged(fn func(*model.Identity)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Gateway) notify(identity *model.Identity) {
	g.mu.Lock()
	fns := make([]func(*model.Identity), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

func (g *Gateway) revoke(ctx context.Context, token *oauth2.Token) error {
	form := url.Values{"token": {token.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.provider.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.provider.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: token revocation: %v", common.ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Google returns 400 for already-revoked tokens; the session is gone
	// either way, so only server-side faults are treated as failures.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: token revocation returned %d", common.ErrGatewayUnavailable, resp.StatusCode)
	}
	return nil
}
