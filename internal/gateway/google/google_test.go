package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperclay/expensify/internal/common"
	"github.com/harperclay/expensify/internal/model"
)

func testProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
	})
	require.NoError(t, err)
	return p
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"complete", Config{ClientID: "a", ClientSecret: "b", RedirectURL: "c"}, true},
		{"missing id", Config{ClientSecret: "b", RedirectURL: "c"}, false},
		{"missing secret", Config{ClientID: "a", RedirectURL: "c"}, false},
		{"missing redirect", Config{ClientID: "a", ClientSecret: "b"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, common.ErrMissingConfig)
			}
		})
	}
}

func TestBeginRedirectSignIn(t *testing.T) {
	g := testProvider(t).NewGateway()

	authURL, err := g.BeginRedirectSignIn(context.Background())
	require.NoError(t, err)

	assert.Contains(t, authURL, "accounts.google.com")
	assert.Contains(t, authURL, "client-id")
	assert.Contains(t, authURL, "state=")

	// Each attempt gets a fresh nonce.
	second, err := g.BeginRedirectSignIn(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, authURL, second)
}

func TestHandleCallback_StateMismatch(t *testing.T) {
	p := testProvider(t)
	g := p.NewGateway()

	_, err := g.BeginRedirectSignIn(context.Background())
	require.NoError(t, err)

	assert.Error(t, g.HandleCallback(context.Background(), "forged", "code"))

	// Without a sign-in attempt there is no expected state at all.
	assert.Error(t, p.NewGateway().HandleCallback(context.Background(), "", "code"))
}

func TestConsumePendingRedirectResult_Empty(t *testing.T) {
	g := testProvider(t).NewGateway()

	identity, err := g.ConsumePendingRedirectResult(context.Background())
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestOnIdentityChanged(t *testing.T) {
	g := testProvider(t).NewGateway()

	var got []*model.Identity
	unsub := g.OnIdentityChanged(func(id *model.Identity) { got = append(got, id) })

	// Sign-out with no token skips revocation and notifies listeners.
	require.NoError(t, g.SignOut(context.Background()))
	require.Len(t, got, 1)
	assert.Nil(t, got[0])

	unsub()
	require.NoError(t, g.SignOut(context.Background()))
	assert.Len(t, got, 1, "unsubscribed listeners stop receiving events")
}

func TestSignOut_Revocation(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   bool
		tokenKept bool
	}{
		{"revoked", http.StatusOK, false, false},
		{"already revoked", http.StatusBadRequest, false, false},
		{"endpoint down", http.StatusInternalServerError, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "access-token", r.PostForm.Get("token"))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			g := testProvider(t).NewGateway()
			g.provider.revokeURL = srv.URL
			g.token = &oauth2.Token{AccessToken: "access-token"}

			err := g.SignOut(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrGatewayUnavailable)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.tokenKept, g.token != nil,
				"a failed revocation keeps the session token for retry")
		})
	}
}
