package services

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/anvekars/mockmate/backend/models"
)

func TestAuthCookies(t *testing.T) {
	svc := NewAuthService(nil, "test-secret")

	t.Run("Set and read back", func(t *testing.T) {
		rec := httptest.NewRecorder()
		svc.SetAuthCookies(rec, "access-value", "refresh-value")

		req := httptest.NewRequest("GET", "/", nil)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}

		if got := svc.GetTokenFromCookie(req, "access_token"); got != "access-value" {
			t.Errorf("access_token = %q, expected access-value", got)
		}
		if got := svc.GetTokenFromCookie(req, "refresh_token"); got != "refresh-value" {
			t.Errorf("refresh_token = %q, expected refresh-value", got)
		}
	})

	t.Run("Empty refresh token is not set", func(t *testing.T) {
		rec := httptest.NewRecorder()
		svc.SetAuthCookies(rec, "access-value", "")

		for _, c := range rec.Result().Cookies() {
			if c.Name == "refresh_token" {
				t.Error("refresh_token cookie set despite empty value")
			}
		}
	})

	t.Run("Clear expires both cookies", func(t *testing.T) {
		rec := httptest.NewRecorder()
		svc.ClearAuthCookies(rec)

		cookies := rec.Result().Cookies()
		if len(cookies) != 2 {
			t.Fatalf("got %d cookies, expected 2", len(cookies))
		}
		for _, c := range cookies {
			if c.MaxAge != -1 {
				t.Errorf("cookie %s MaxAge = %d, expected -1", c.Name, c.MaxAge)
			}
		}
	})

	t.Run("Missing cookie yields empty token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		if got := svc.GetTokenFromCookie(req, "access_token"); got != "" {
			t.Errorf("expected empty token, got %q", got)
		}
	})
}

func TestHashTokenDeterministic(t *testing.T) {
	svc := NewAuthService(nil, "test-secret")

	first := svc.hashToken("some-refresh-token")
	second := svc.hashToken("some-refresh-token")
	if first != second {
		t.Error("hashToken is not deterministic")
	}
	if first == "some-refresh-token" {
		t.Error("hashToken stored the token in plaintext")
	}
	if svc.hashToken("other-token") == first {
		t.Error("distinct tokens hashed to the same value")
	}
}

func TestUserFromContext(t *testing.T) {
	if user := UserFromContext(context.Background()); user != nil {
		t.Errorf("expected nil user on empty context, got %+v", user)
	}

	want := &models.User{ID: "user-1", Email: "a@b.c"}
	ctx := context.WithValue(context.Background(), UserContextKey, want)
	if got := UserFromContext(ctx); got != want {
		t.Errorf("UserFromContext = %+v, expected %+v", got, want)
	}
}
