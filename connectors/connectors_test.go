package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationURL(t *testing.T) {
	c := NewZoom(Config{
		ClientID:    "zoom-client",
		RedirectURL: "https://minutes.example.com/integrations/zoom/callback",
		Enabled:     true,
	})

	raw, err := c.AuthorizationURL("state-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "zoom.us", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "zoom-client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "https://minutes.example.com/integrations/zoom/callback", q.Get("redirect_uri"))
	assert.NotEmpty(t, q.Get("scope"))
}

func TestDisabledConnector(t *testing.T) {
	c := NewGoogleMeet(Config{ClientID: "id"})
	ctx := context.Background()

	_, err := c.AuthorizationURL("s")
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = c.Exchange(ctx, "code")
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = c.JoinMeeting(ctx, "abc", "token")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	c := NewGoogleMeet(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Enabled:      true,
		TokenURL:     srv.URL + "/token",
		HTTPClient:   srv.Client(),
	})

	token, err := c.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)
}

func TestJoinMeeting(t *testing.T) {
	tests := []struct {
		name     string
		connect  func(Config) Connector
		wantPath string
	}{
		{name: "zoom", connect: NewZoom, wantPath: "/meetings/123/join"},
		{name: "google meet", connect: NewGoogleMeet, wantPath: "/meetings/abc-defg:join"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotAuth = r.Header.Get("Authorization")
				assert.Equal(t, http.MethodPost, r.Method)
				_, _ = w.Write([]byte(`{"joined": true}`))
			}))
			defer srv.Close()

			c := tt.connect(Config{Enabled: true, ClientID: "id", APIBaseURL: srv.URL, HTTPClient: srv.Client()})
			meetingID := "123"
			if tt.name == "google meet" {
				meetingID = "abc-defg"
			}

			result, err := c.JoinMeeting(context.Background(), meetingID, "access-1")
			require.NoError(t, err)
			assert.Equal(t, true, result["joined"])
			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, "Bearer access-1", gotAuth)
		})
	}
}

func TestJoinMeeting_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "meeting not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewZoom(Config{Enabled: true, ClientID: "id", APIBaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.JoinMeeting(context.Background(), "999", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(
		NewZoom(Config{Enabled: true, ClientID: "id"}),
		NewGoogleMeet(Config{}),
	)

	c, err := r.Get("Zoom")
	require.NoError(t, err)
	assert.Equal(t, "zoom", c.Name())

	_, err = r.Get("teams")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	assert.Equal(t, []string{"zoom"}, r.Enabled())
}
