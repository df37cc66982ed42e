package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse/internal/credentials"
	"github.com/edupulse/edupulse/internal/lms"
	"github.com/edupulse/edupulse/pkg/models"
)

// ScopedError attaches the failed scope (tenant, course, or activity) to an
// underlying error so a run can report exactly what was skipped.
type ScopedError struct {
	Scope string
	Err   error
}

func (e ScopedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Scope, e.Err)
}

func (e ScopedError) Unwrap() error {
	return e.Err
}

// Inventory is everything fetched from one tenant in one run.
type Inventory struct {
	Tenant  *models.Tenant
	Courses []CourseInventory
}

// CourseInventory holds one course with its structure and activity content.
type CourseInventory struct {
	Course       models.Course
	Sections     []models.Section
	Forums       []ForumInventory
	Assignments  []AssignmentInventory
	Participants []models.EnrolledUser
}

// ForumInventory is a forum with its threads, posts, and derived stats.
type ForumInventory struct {
	Forum       models.Forum
	Discussions []models.Discussion
	Posts       []models.Post
	Stats       models.ParticipationStats
}

// AssignmentInventory is an assignment with its submissions.
type AssignmentInventory struct {
	Assignment  models.Assignment
	Submissions []models.Submission
}

// Fetcher pulls a tenant's inventory from its LMS. Fetching is best-effort:
// each external call is wrapped individually, a failure drops only its scope
// and is recorded as a ScopedError. A permission failure on a personal-token
// call is retried exactly once with the tenant's service token.
type Fetcher struct {
	client   lms.Client
	resolver *credentials.Resolver
	showAll  map[string]bool
	logger   *slog.Logger
	now      func() time.Time
}

func NewFetcher(client lms.Client, resolver *credentials.Resolver, showAllTenants []string, logger *slog.Logger) *Fetcher {
	showAll := make(map[string]bool, len(showAllTenants))
	for _, code := range showAllTenants {
		showAll[code] = true
	}
	return &Fetcher{
		client:   client,
		resolver: resolver,
		showAll:  showAll,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchTenant collects the tenant's full inventory using the given
// credential. The returned errors are per-scope; the inventory holds
// whatever was fetched successfully.
func (f *Fetcher) FetchTenant(ctx context.Context, tenant *models.Tenant, cred *credentials.Credential) (*Inventory, []ScopedError) {
	tf := &tenantFetch{
		fetcher: f,
		tenant:  tenant,
		session: lms.Session{BaseURL: tenant.BaseURL, Token: cred.Token},
		kind:    cred.Kind,
	}

	inv := &Inventory{Tenant: tenant}

	var courses []models.Course
	if !tf.call(ctx, fmt.Sprintf("tenant %s: courses", tenant.Code), func(ctx context.Context, s lms.Session) error {
		var err error
		courses, err = f.client.ListCourses(ctx, s)
		return err
	}) {
		return inv, tf.errs
	}

	for _, course := range courses {
		if course.ID == "" {
			tf.record(fmt.Sprintf("tenant %s: course without id", tenant.Code), errors.New("missing required field id"))
			continue
		}
		inv.Courses = append(inv.Courses, tf.fetchCourse(ctx, course))
	}

	return inv, tf.errs
}

// tenantFetch carries per-tenant call state: the active session and whether
// the one-shot service-token fallback was already used.
type tenantFetch struct {
	fetcher  *Fetcher
	tenant   *models.Tenant
	session  lms.Session
	kind     credentials.Kind
	fellBack bool
	errs     []ScopedError
}

func (tf *tenantFetch) fetchCourse(ctx context.Context, course models.Course) CourseInventory {
	f := tf.fetcher
	ci := CourseInventory{Course: course}
	scope := fmt.Sprintf("tenant %s course %s", tf.tenant.Code, course.ID)

	tf.call(ctx, scope+": sections", func(ctx context.Context, s lms.Session) error {
		var err error
		ci.Sections, err = f.client.ListSections(ctx, s, course.ID)
		return err
	})

	tf.call(ctx, scope+": enrolled users", func(ctx context.Context, s lms.Session) error {
		var err error
		ci.Participants, err = f.client.ListEnrolledUsers(ctx, s, course.ID)
		return err
	})

	var forums []models.Forum
	tf.call(ctx, scope+": forums", func(ctx context.Context, s lms.Session) error {
		var err error
		forums, err = f.client.ListForums(ctx, s, course.ID)
		return err
	})
	for _, forum := range forums {
		if forum.ID == "" || forum.Name == "" {
			tf.record(scope+": forum", errors.New("missing required fields"))
			continue
		}
		if !tf.activityOpen(forum.OpensAt, forum.ClosesAt) {
			continue
		}
		ci.Forums = append(ci.Forums, tf.fetchForum(ctx, scope, forum))
	}

	var assignments []models.Assignment
	tf.call(ctx, scope+": assignments", func(ctx context.Context, s lms.Session) error {
		var err error
		assignments, err = f.client.ListAssignments(ctx, s, course.ID)
		return err
	})
	for _, assignment := range assignments {
		if assignment.ID == "" || assignment.Name == "" {
			tf.record(scope+": assignment", errors.New("missing required fields"))
			continue
		}
		if !tf.activityOpen(assignment.OpensAt, assignment.ClosesAt) {
			continue
		}
		ai := AssignmentInventory{Assignment: assignment}
		tf.call(ctx, fmt.Sprintf("%s assignment %s: submissions", scope, assignment.ID), func(ctx context.Context, s lms.Session) error {
			var err error
			ai.Submissions, err = f.client.ListSubmissions(ctx, s, assignment.ID)
			return err
		})
		ci.Assignments = append(ci.Assignments, ai)
	}

	return ci
}

func (tf *tenantFetch) fetchForum(ctx context.Context, courseScope string, forum models.Forum) ForumInventory {
	f := tf.fetcher
	fi := ForumInventory{Forum: forum}
	scope := fmt.Sprintf("%s forum %s", courseScope, forum.ID)

	tf.call(ctx, scope+": discussions", func(ctx context.Context, s lms.Session) error {
		var err error
		fi.Discussions, err = f.client.ListDiscussions(ctx, s, forum.ID)
		return err
	})

	for _, d := range fi.Discussions {
		discussion := d
		tf.call(ctx, fmt.Sprintf("%s discussion %s: posts", scope, discussion.ID), func(ctx context.Context, s lms.Session) error {
			posts, err := f.client.ListPosts(ctx, s, discussion.ID)
			if err != nil {
				return err
			}
			fi.Posts = append(fi.Posts, posts...)
			return nil
		})
	}

	fi.Stats = participationStats(fi.Discussions, fi.Posts)
	return fi
}

// activityOpen applies the open/closed-date filter. Tenants on the show-all
// list bypass the filter entirely; staleness rules are unaffected either way.
func (tf *tenantFetch) activityOpen(opensAt, closesAt *time.Time) bool {
	if tf.fetcher.showAll[tf.tenant.Code] {
		return true
	}
	now := tf.fetcher.now().UTC()
	if opensAt != nil && now.Before(*opensAt) {
		return false
	}
	if closesAt != nil && now.After(*closesAt) {
		return false
	}
	return true
}

// call runs one LMS call, handling the service-token fallback. Returns true
// when the call ultimately succeeded.
func (tf *tenantFetch) call(ctx context.Context, scope string, fn func(context.Context, lms.Session) error) bool {
	err := fn(ctx, tf.session)
	if err == nil {
		return true
	}

	if errors.Is(err, lms.ErrPermissionDenied) && tf.kind == credentials.KindPersonal && !tf.fellBack {
		tf.fellBack = true
		svc, resolveErr := tf.fetcher.resolver.ServiceCredential(ctx, tf.tenant)
		if resolveErr != nil {
			tf.record(scope, fmt.Errorf("%w (service token fallback unavailable: %v)", err, resolveErr))
			return false
		}
		tf.fetcher.logger.Warn("personal token rejected, switching to service token",
			slog.String("tenant", tf.tenant.Code),
			slog.String("scope", scope))
		tf.session.Token = svc.Token
		tf.kind = credentials.KindService
		if err = fn(ctx, tf.session); err == nil {
			return true
		}
	}

	tf.record(scope, err)
	return false
}

func (tf *tenantFetch) record(scope string, err error) {
	tf.fetcher.logger.Warn("inventory fetch failure",
		slog.String("scope", scope),
		slog.String("error", err.Error()))
	tf.errs = append(tf.errs, ScopedError{Scope: scope, Err: err})
}

func participationStats(discussions []models.Discussion, posts []models.Post) models.ParticipationStats {
	stats := models.ParticipationStats{
		DiscussionCount: len(discussions),
		PostCount:       len(posts),
	}
	authors := make(map[string]bool)
	for _, p := range posts {
		if p.AuthorID != "" {
			authors[p.AuthorID] = true
		}
		if stats.LastPostAt == nil || p.CreatedAt.After(*stats.LastPostAt) {
			t := p.CreatedAt
			stats.LastPostAt = &t
		}
	}
	stats.UniqueParticipants = len(authors)
	return stats
}
