package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"task-manager/models"
	"task-manager/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestJWTAuthMiddleware_MissingHeader(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler must not run without credentials")
	})

	rec := httptest.NewRecorder()
	JWTAuthMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTAuthMiddleware_InvalidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler must not run with a bad token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	rec := httptest.NewRecorder()
	JWTAuthMiddleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTAuthMiddleware_AttachesCaller(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	userID := primitive.NewObjectID()
	token, err := utils.GenerateToken(userID.Hex(), models.RoleMember)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got AuthUser
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			t.Fatalf("caller identity missing from context")
		}
		got = user
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	JWTAuthMiddleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.ID != userID {
		t.Fatalf("expected caller id %s, got %s", userID.Hex(), got.ID.Hex())
	}
	if got.Role != models.RoleMember {
		t.Fatalf("expected member role, got %q", got.Role)
	}
}

func TestAdminOnly(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	memberReq := httptest.NewRequest(http.MethodDelete, "/api/tasks/123", nil)
	memberReq = memberReq.WithContext(ContextWithUser(memberReq.Context(), AuthUser{ID: primitive.NewObjectID(), Role: models.RoleMember}))

	rec := httptest.NewRecorder()
	AdminOnly(next).ServeHTTP(rec, memberReq)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member must be forbidden, got %d", rec.Code)
	}

	adminReq := httptest.NewRequest(http.MethodDelete, "/api/tasks/123", nil)
	adminReq = adminReq.WithContext(ContextWithUser(adminReq.Context(), AuthUser{ID: primitive.NewObjectID(), Role: models.RoleAdmin}))

	rec = httptest.NewRecorder()
	AdminOnly(next).ServeHTTP(rec, adminReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin must pass, got %d", rec.Code)
	}

	anonReq := httptest.NewRequest(http.MethodDelete, "/api/tasks/123", nil)
	rec = httptest.NewRecorder()
	AdminOnly(next).ServeHTTP(rec, anonReq)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing identity must be unauthorized, got %d", rec.Code)
	}
}
