package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySession(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		body     string
		want     SessionState
		evidence string
	}{
		{"auth path", testBase + "/auth/login", "<main>Welcome back</main>", SessionLoggedOut, "auth-url"},
		{"email input", testBase + "/", `<form><input type="email"></form>`, SessionLoggedOut, "username-input"},
		{"username autocomplete", testBase + "/", `<input autocomplete="username">`, SessionLoggedOut, "username-input"},
		{"heading", testBase + "/", "<h1>Log in or sign up</h1>", SessionLoggedOut, "login-heading"},
		{"provider button", testBase + "/", "<button>Continue with Google</button>", SessionLoggedOut, "login-affordance"},
		{"hidden input ignored", testBase + "/", `<main>Chats</main><input type="email" data-seat-hidden="1">`, SessionLoggedIn, ""},
		{"hidden button ignored", testBase + "/", `<div data-seat-hidden="1"><button>Log in</button></div>`, SessionLoggedIn, ""},
		{"workspace home", testBase + "/", "<nav><a>New chat</a></nav><main>Hello</main>", SessionLoggedIn, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := ParseSnapshot(fixture(tt.body))
			require.NoError(t, err)

			state, evidence := ClassifySession(tt.url, snap)
			assert.Equal(t, tt.want, state)
			assert.Equal(t, tt.evidence, evidence)
		})
	}
}

func TestDetectSessionLoadsRoot(t *testing.T) {
	p := newFakePage(t, "about:blank", "")
	p.onNavigate = func(p *fakePage, url string) { p.setBody("<main>Chats</main>") }
	c := newTestClient(t, p)

	state, err := c.DetectSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SessionLoggedIn, state)
	assert.Equal(t, []string{testBase + "/"}, p.visits)
}
