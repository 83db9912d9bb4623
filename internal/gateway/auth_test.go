package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/quotemill/internal/config"
)

func TestResolveAuth(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{Mode: "token", Token: "my-token"})
	assert.Equal(t, "token", auth.Mode)
	assert.Equal(t, "my-token", auth.Token)
}

func TestResolveAuthDefaultsToPassword(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{Password: "my-pass"})
	assert.Equal(t, "password", auth.Mode)
	assert.Equal(t, "my-pass", auth.Password)
}

func TestResolveAuthEnvOverride(t *testing.T) {
	t.Setenv("QUOTEMILL_GATEWAY_TOKEN", "env-token")
	auth := ResolveAuth(config.GatewayAuth{Mode: "token"})
	assert.Equal(t, "env-token", auth.Token)
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name   string
		server ResolvedAuth
		client *ConnectAuth
		wantOK bool
		reason string
	}{
		{"token match", ResolvedAuth{Mode: "token", Token: "secret"}, &ConnectAuth{Token: "secret"}, true, ""},
		{"token mismatch", ResolvedAuth{Mode: "token", Token: "secret"}, &ConnectAuth{Token: "wrong"}, false, "token_mismatch"},
		{"token missing", ResolvedAuth{Mode: "token", Token: "secret"}, &ConnectAuth{}, false, "token required"},
		{"server token unset", ResolvedAuth{Mode: "token"}, &ConnectAuth{Token: "x"}, false, "server token not configured"},
		{"password match", ResolvedAuth{Mode: "password", Password: "pw"}, &ConnectAuth{Password: "pw"}, true, ""},
		{"password mismatch", ResolvedAuth{Mode: "password", Password: "pw"}, &ConnectAuth{Password: "nope"}, false, "password_mismatch"},
		{"nil credentials", ResolvedAuth{Mode: "token", Token: "secret"}, nil, false, "no credentials provided"},
		{"unknown mode", ResolvedAuth{Mode: "mtls"}, &ConnectAuth{}, false, "unknown auth mode: mtls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Authorize(tt.server, tt.client)
			assert.Equal(t, tt.wantOK, result.OK)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, result.Reason)
			}
		})
	}
}

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("abc", "abc"))
	assert.False(t, safeEqual("abc", "abd"))
	assert.False(t, safeEqual("abc", "abcd"))
	assert.True(t, safeEqual("", ""))
}
