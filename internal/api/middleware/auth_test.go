package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satriadhikara/dock/internal/domain"
)

type MockOwnerResolver struct {
	mock.Mock
}

func (m *MockOwnerResolver) ResolveOwner(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func runSessionAuth(t *testing.T, resolver OwnerResolver, authHeader string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seenOwner string
	handler := SessionAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenOwner = GetOwnerID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/knowledge", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seenOwner
}

func TestSessionAuth_ValidBearerToken(t *testing.T) {
	resolver := &MockOwnerResolver{}
	resolver.On("ResolveOwner", mock.Anything, "dock_abc123").Return("user-1", nil)

	rec, ownerID := runSessionAuth(t, resolver, "Bearer dock_abc123")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", ownerID)
	resolver.AssertExpectations(t)
}

func TestSessionAuth_MissingTokenPassedToResolver(t *testing.T) {
	resolver := &MockOwnerResolver{}
	resolver.On("ResolveOwner", mock.Anything, "").Return("anon-owner", nil)

	rec, ownerID := runSessionAuth(t, resolver, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anon-owner", ownerID)
}

func TestSessionAuth_ResolverRejects(t *testing.T) {
	resolver := &MockOwnerResolver{}
	resolver.On("ResolveOwner", mock.Anything, "dock_expired").Return("", domain.ErrSessionExpired)

	rec, _ := runSessionAuth(t, resolver, "Bearer dock_expired")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid session")
}

func TestSessionAuth_MalformedAuthorizationHeader(t *testing.T) {
	resolver := &MockOwnerResolver{}

	rec, _ := runSessionAuth(t, resolver, "Token dock_abc123")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid authorization format")
	resolver.AssertNotCalled(t, "ResolveOwner")
}

func TestGetOwnerID_MissingFromContext(t *testing.T) {
	require.Empty(t, GetOwnerID(context.Background()))
}
