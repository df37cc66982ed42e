// Package lms talks to the external LMS API of one tenant. Every call takes
// a Session carrying the tenant's base endpoint and an access token; error
// responses are classified so callers can distinguish permission problems
// (which trigger credential fallback) from everything else.
package lms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/edupulse/edupulse/pkg/models"
)

// Sentinel errors for LMS client failures.
var (
	ErrPermissionDenied = errors.New("lms permission denied")
	ErrNotFound         = errors.New("lms resource not found")
	ErrUnreachable      = errors.New("lms unreachable")
	ErrTimeout          = errors.New("lms request timeout")
	ErrAPIError         = errors.New("lms api error")
)

// Session identifies one tenant's API endpoint plus the credential to use.
type Session struct {
	BaseURL string
	Token   string
}

// Client is the interface for querying a tenant's LMS.
type Client interface {
	ListCourses(ctx context.Context, s Session) ([]models.Course, error)
	ListSections(ctx context.Context, s Session, courseID string) ([]models.Section, error)
	ListForums(ctx context.Context, s Session, courseID string) ([]models.Forum, error)
	ListDiscussions(ctx context.Context, s Session, forumID string) ([]models.Discussion, error)
	ListPosts(ctx context.Context, s Session, discussionID string) ([]models.Post, error)
	ListAssignments(ctx context.Context, s Session, courseID string) ([]models.Assignment, error)
	ListSubmissions(ctx context.Context, s Session, assignmentID string) ([]models.Submission, error)
	ListEnrolledUsers(ctx context.Context, s Session, courseID string) ([]models.EnrolledUser, error)
}

// HTTPClient implements Client using the LMS HTTP API.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a new LMS HTTP client. The timeout applies to each
// individual API call, independent of any job-level deadline.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) ListCourses(ctx context.Context, s Session) ([]models.Course, error) {
	var out []models.Course
	if err := c.get(ctx, s, "/api/v1/courses", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListSections(ctx context.Context, s Session, courseID string) ([]models.Section, error) {
	var out []models.Section
	if err := c.get(ctx, s, fmt.Sprintf("/api/v1/courses/%s/sections", url.PathEscape(courseID)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListForums(ctx context.Context, s Session, courseID string) ([]models.Forum, error) {
	var out []models.Forum
	if err := c.get(ctx, s, fmt.Sprintf("/api/v1/courses/%s/forums", url.PathEscape(courseID)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListDiscussions(ctx context.Context, s Session, forumID string) ([]models.Discussion, error) {
	var out []models.Discussion
	if err := c.get(ctx, s, fmt.Sprintf("/api/v1/forums/%s/discussions", url.PathEscape(forumID)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListPosts(ctx context.Context, s Session, discussionID string) ([]models.Post, error) {
	var out []models.Post
	if err := c.get(ctx, s, fmt.Sprintf("/api/v1/discussions/%s/posts", url.PathEscape(discussionID)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListAssignments(ctx context.Context, s Session, courseID string) ([]models.Assignment, error) {
	var out []models.Assignment
	if err := c.get(ctx, s, fmt.Sprintf("/api/v1/courses/%s/assignments", url.PathEscape(courseID)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListSubmissions(ctx context.Context, s Session, assignmentID string) ([]models.Submission, error) {
	var out []models.Submission
	if err := c.get(ctx, s, fmt.Sprintf("/api/v1/assignments/%s/submissions", url.PathEscape(assignmentID)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListEnrolledUsers(ctx context.Context, s Session, courseID string) ([]models.EnrolledUser, error) {
	var out []models.EnrolledUser
	if err := c.get(ctx, s, fmt.Sprintf("/api/v1/courses/%s/users", url.PathEscape(courseID)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// get performs one authenticated GET and decodes the enveloped response body.
func (c *HTTPClient) get(ctx context.Context, s Session, path string, out any) error {
	u := s.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding lms response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding lms payload: %w", err)
	}
	return nil
}

// classifyStatus maps HTTP status codes to sentinel errors. Permission
// failures must stay distinguishable because they drive the service-token
// fallback path.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrPermissionDenied, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, status)
	default:
		return fmt.Errorf("%w: status %d", ErrAPIError, status)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
