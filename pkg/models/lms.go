package models

import "time"

// Course is a course inside one tenant's LMS.
type Course struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Visible   bool   `json:"visible"`
}

// Section is a structural unit within a course.
type Section struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Forum is a discussion forum activity within a course.
type Forum struct {
	ID       string     `json:"id"`
	CourseID string     `json:"course_id"`
	Name     string     `json:"name"`
	Intro    string     `json:"intro"`
	OpensAt  *time.Time `json:"opens_at,omitempty"`
	ClosesAt *time.Time `json:"closes_at,omitempty"`
}

// Discussion is one thread inside a forum.
type Discussion struct {
	ID        string    `json:"id"`
	ForumID   string    `json:"forum_id"`
	Name      string    `json:"name"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	Replies   int       `json:"replies"`
}

// Post is one message inside a discussion thread.
type Post struct {
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	AuthorID     string    `json:"author_id"`
	Subject      string    `json:"subject"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

// Assignment is a gradable task activity within a course.
type Assignment struct {
	ID       string     `json:"id"`
	CourseID string     `json:"course_id"`
	Name     string     `json:"name"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	OpensAt  *time.Time `json:"opens_at,omitempty"`
	ClosesAt *time.Time `json:"closes_at,omitempty"`
}

// Submission is one learner's submission for an assignment.
type Submission struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	UserID       string     `json:"user_id"`
	Status       string     `json:"status"`
	Graded       bool       `json:"graded"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
}

// EnrolledUser is a participant enrolled in a course.
type EnrolledUser struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// ParticipationStats summarizes engagement in a forum activity.
type ParticipationStats struct {
	UniqueParticipants int        `json:"unique_participants"`
	DiscussionCount    int        `json:"discussion_count"`
	PostCount          int        `json:"post_count"`
	LastPostAt         *time.Time `json:"last_post_at,omitempty"`
}
