package closetapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closetapp/closetd/internal/models"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	return c, srv
}

func TestRefresh_Success(t *testing.T) {
	var gotBody map[string]string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/auth/refresh", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"session": map[string]interface{}{
				"credentials": map[string]string{
					"access_token":  "at-new",
					"refresh_token": "rt-new",
				},
				"token_type": "bearer",
				"expires_in": 1800,
			},
			"user": map[string]interface{}{
				"user_id": "u1",
				"email":   "u@closetapp.io",
			},
		})
	})
	defer srv.Close()

	result, err := c.Refresh(context.Background(), models.TokenPair{AccessToken: "at-old", RefreshToken: "rt-old"})
	require.NoError(t, err)

	assert.Equal(t, "rt-old", gotBody["refresh_token"])
	assert.Equal(t, "at-new", result.Session.Credentials.AccessToken)
	assert.Equal(t, "u1", result.User.UserID)
	require.NotNil(t, result.Session.ExpiresIn)
	assert.Equal(t, 1800.0, *result.Session.ExpiresIn)
}

func TestRefresh_UnauthorizedReturnsAPIError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid refresh token"})
	})
	defer srv.Close()

	_, err := c.Refresh(context.Background(), models.TokenPair{AccessToken: "a", RefreshToken: "r"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid refresh token", apiErr.Message)
	assert.Equal(t, "/v1/auth/refresh", apiErr.Endpoint)
}

func TestRefresh_MissingCredentialsRejected(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"session": map[string]interface{}{},
			"user":    map[string]interface{}{"user_id": "u1"},
		})
	})
	defer srv.Close()

	_, err := c.Refresh(context.Background(), models.TokenPair{AccessToken: "a", RefreshToken: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing credentials")
}

func TestRequestPasswordReset_SendsEmail(t *testing.T) {
	var gotBody map[string]string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/reset/request", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	})
	defer srv.Close()

	err := c.RequestPasswordReset(context.Background(), "user@closetapp.io")
	require.NoError(t, err)
	assert.Equal(t, "user@closetapp.io", gotBody["email"])
}

func TestErrorMessage_FallsBackToRawBody(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})
	defer srv.Close()

	err := c.SignOut(context.Background(), models.TokenPair{RefreshToken: "rt"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestClient_ContextCancellation(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Refresh(ctx, models.TokenPair{AccessToken: "a", RefreshToken: "r"})
	require.Error(t, err)
}
