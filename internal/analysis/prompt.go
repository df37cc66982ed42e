package analysis

import (
	"fmt"
	"strings"

	"github.com/edupulse/edupulse/pkg/models"
)

// ActivityInput carries everything the generator needs for one activity.
// Exactly one of Forum or Assignment is set, matching ActivityType.
type ActivityInput struct {
	TenantCode   string
	TenantName   string
	CourseID     string
	CourseName   string
	ActivityID   string
	ActivityType string
	ActivityName string
	Forum        *ForumContent
	Assignment   *AssignmentContent
	Participants []models.EnrolledUser
}

// ForumContent is the discussion material backing a forum analysis.
type ForumContent struct {
	Forum       models.Forum
	Discussions []models.Discussion
	Posts       []models.Post
	Stats       models.ParticipationStats
}

// AssignmentContent is the submission material backing an assignment analysis.
type AssignmentContent struct {
	Assignment  models.Assignment
	Submissions []models.Submission
}

const systemPrompt = `You are an education analyst reviewing participation in an online classroom.
Respond in markdown with exactly these sections:
## Summary
## Positives
## Alerts
## Insights
## Recommended Action
Summary is a short paragraph. Positives, Alerts and Insights carry at most
three bullet points each. Recommended Action is a single concrete next step
for the instructor.`

// BuildPrompt renders the context payload sent to the summarization service.
// Message bodies are included in full: truncating them was found to degrade
// analysis quality.
func BuildPrompt(input ActivityInput) (system, user string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Classroom: %s (%s)\n", input.TenantName, input.TenantCode)
	fmt.Fprintf(&b, "Course: %s\n", input.CourseName)
	fmt.Fprintf(&b, "Activity: %s (%s)\n", input.ActivityName, input.ActivityType)
	fmt.Fprintf(&b, "Enrolled participants: %d\n\n", len(input.Participants))

	switch {
	case input.Forum != nil:
		writeForumContext(&b, input.Forum)
	case input.Assignment != nil:
		writeAssignmentContext(&b, input.Assignment)
	}

	b.WriteString("\nAnalyze the participation in this activity.")
	return systemPrompt, b.String()
}

func writeForumContext(b *strings.Builder, content *ForumContent) {
	stats := content.Stats
	fmt.Fprintf(b, "Forum participation: %d discussions, %d posts, %d unique participants.\n",
		stats.DiscussionCount, stats.PostCount, stats.UniqueParticipants)
	if stats.LastPostAt != nil {
		fmt.Fprintf(b, "Most recent post: %s\n", stats.LastPostAt.Format("2006-01-02 15:04"))
	}

	postsByDiscussion := make(map[string][]models.Post, len(content.Discussions))
	for _, post := range content.Posts {
		postsByDiscussion[post.DiscussionID] = append(postsByDiscussion[post.DiscussionID], post)
	}

	for _, discussion := range content.Discussions {
		fmt.Fprintf(b, "\nDiscussion: %s (%d replies)\n", discussion.Name, discussion.Replies)
		for _, post := range postsByDiscussion[discussion.ID] {
			fmt.Fprintf(b, "- [%s] %s: %s\n",
				post.CreatedAt.Format("2006-01-02"), post.AuthorID, post.Message)
		}
	}
}

func writeAssignmentContext(b *strings.Builder, content *AssignmentContent) {
	assignment := content.Assignment
	if assignment.DueAt != nil {
		fmt.Fprintf(b, "Assignment due: %s\n", assignment.DueAt.Format("2006-01-02"))
	}

	var submitted, graded int
	for _, sub := range content.Submissions {
		if sub.Status != "" && sub.Status != "new" {
			submitted++
		}
		if sub.Graded {
			graded++
		}
	}
	fmt.Fprintf(b, "Submissions: %d total, %d submitted, %d graded.\n",
		len(content.Submissions), submitted, graded)

	for _, sub := range content.Submissions {
		when := "never"
		if sub.SubmittedAt != nil {
			when = sub.SubmittedAt.Format("2006-01-02")
		}
		fmt.Fprintf(b, "- user %s: status=%s graded=%t submitted=%s\n",
			sub.UserID, sub.Status, sub.Graded, when)
	}
}
