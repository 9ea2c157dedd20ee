package middleware

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/service"
)

func token(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT","alg":"HS256"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".c2lnbmF0dXJl"
}

func TestIdentifyAvatar(t *testing.T) {
	tests := []struct {
		name       string
		ctxAvatar  string
		header     string
		auth       string
		wantID     string
		wantSource string
	}{
		{"context wins", "ctx-avatar", "header-avatar", "Bearer " + token(`{"id":"jwt-avatar"}`), "ctx-avatar", domain.AvatarSourceContext},
		{"header over token", "", "header-avatar", "Bearer " + token(`{"id":"jwt-avatar"}`), "header-avatar", domain.AvatarSourceHeader},
		{"token", "", "", "Bearer " + token(`{"sub":"jwt-avatar"}`), "jwt-avatar", domain.AvatarSourceToken},
		{"basic auth ignored", "", "", "Basic dXNlcjpwYXNz", "", ""},
		{"malformed token", "", "", "Bearer not-a-jwt", "", ""},
		{"anonymous", "", "", "", "", ""},
	}

	mw := NewIdentityMiddleware(service.NewIdentityService())
	e := echo.New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.ctxAvatar != "" {
				req = req.WithContext(context.WithValue(req.Context(), domain.AvatarIdCtxKey, tt.ctxAvatar))
			}
			if tt.header != "" {
				req.Header.Set(domain.AvatarIdHeader, tt.header)
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			var gotID, gotSource string
			handler := mw.IdentifyAvatar(func(c echo.Context) error {
				gotID, _ = c.Request().Context().Value(domain.AvatarIdCtxKey).(string)
				gotSource, _ = c.Request().Context().Value(domain.AvatarSourceCtxKey).(string)
				return nil
			})
			if err := handler(c); err != nil {
				t.Fatalf("handler: %v", err)
			}

			if gotID != tt.wantID || gotSource != tt.wantSource {
				t.Fatalf("expected %q/%q got %q/%q", tt.wantID, tt.wantSource, gotID, gotSource)
			}
		})
	}
}
