package lms_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edupulse/edupulse/internal/lms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, lms.Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, lms.Session{BaseURL: srv.URL, Token: "tok-123"}
}

func TestListCourses(t *testing.T) {
	_, sess := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/courses", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"c1","name":"Algebra I","short_name":"alg1","visible":true}]}`))
	})

	client := lms.NewHTTPClient(5 * time.Second)
	courses, err := client.ListCourses(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "c1", courses[0].ID)
	assert.Equal(t, "Algebra I", courses[0].Name)
	assert.True(t, courses[0].Visible)
}

func TestListDiscussions_PathAndDecode(t *testing.T) {
	_, sess := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/forums/f9/discussions", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"d1","forum_id":"f9","name":"Week 1","author_id":"u3","replies":4}]}`))
	})

	client := lms.NewHTTPClient(5 * time.Second)
	discussions, err := client.ListDiscussions(context.Background(), sess, "f9")
	require.NoError(t, err)
	require.Len(t, discussions, 1)
	assert.Equal(t, 4, discussions[0].Replies)
}

func TestErrorClassification_PermissionDenied(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		_, sess := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		client := lms.NewHTTPClient(5 * time.Second)
		_, err := client.ListForums(context.Background(), sess, "c1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, lms.ErrPermissionDenied), "status %d should map to ErrPermissionDenied", status)
	}
}

func TestErrorClassification_NotFound(t *testing.T) {
	_, sess := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := lms.NewHTTPClient(5 * time.Second)
	_, err := client.ListAssignments(context.Background(), sess, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, lms.ErrNotFound))
	assert.False(t, errors.Is(err, lms.ErrPermissionDenied))
}

func TestErrorClassification_ServerError(t *testing.T) {
	_, sess := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := lms.NewHTTPClient(5 * time.Second)
	_, err := client.ListSubmissions(context.Background(), sess, "a1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, lms.ErrAPIError))
}

func TestErrorClassification_Unreachable(t *testing.T) {
	client := lms.NewHTTPClient(2 * time.Second)
	sess := lms.Session{BaseURL: "http://127.0.0.1:1", Token: "tok"}

	_, err := client.ListCourses(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, lms.ErrUnreachable) || errors.Is(err, lms.ErrTimeout))
}

func TestMalformedPayload(t *testing.T) {
	_, sess := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": "not-a-list"`))
	})

	client := lms.NewHTTPClient(5 * time.Second)
	_, err := client.ListCourses(context.Background(), sess)
	require.Error(t, err)
}
