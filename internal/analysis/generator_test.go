package analysis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edupulse/edupulse/internal/analysis"
	"github.com/edupulse/edupulse/internal/ai/mock"
	"github.com/edupulse/edupulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forumInput() analysis.ActivityInput {
	posted := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	return analysis.ActivityInput{
		TenantCode:   "2",
		TenantName:   "Aula Norte",
		CourseID:     "c1",
		CourseName:   "Biology",
		ActivityID:   "f1",
		ActivityType: models.ActivityTypeForum,
		ActivityName: "Week 1 Discussion",
		Forum: &analysis.ForumContent{
			Forum: models.Forum{ID: "f1", CourseID: "c1", Name: "Week 1 Discussion"},
			Discussions: []models.Discussion{
				{ID: "d1", ForumID: "f1", Name: "Introductions", Replies: 3},
			},
			Posts: []models.Post{
				{ID: "p1", DiscussionID: "d1", AuthorID: "u1", Message: "Hello everyone", CreatedAt: posted},
			},
			Stats: models.ParticipationStats{UniqueParticipants: 3, DiscussionCount: 1, PostCount: 1},
		},
	}
}

func TestGenerate_CallsProviderOnce(t *testing.T) {
	provider := mock.NewMockProvider()
	g := analysis.NewGenerator(provider, 1024, 5*time.Second)

	gen, err := g.Generate(context.Background(), forumInput())
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, "mock", gen.Provider)
	assert.NotEmpty(t, gen.Analysis.Summary)
	assert.NotEmpty(t, gen.Raw)
}

func TestGenerate_PromptCarriesFullMessages(t *testing.T) {
	var captured models.CompletionRequest
	provider := &mock.MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (models.CompletionResponse, error) {
			captured = req
			return models.CompletionResponse{Text: "## Summary\nok"}, nil
		},
	}
	g := analysis.NewGenerator(provider, 1024, 5*time.Second)

	_, err := g.Generate(context.Background(), forumInput())
	require.NoError(t, err)
	assert.Contains(t, captured.Prompt, "Hello everyone")
	assert.Contains(t, captured.Prompt, "Week 1 Discussion")
	assert.Contains(t, captured.System, "## Summary")
}

func TestGenerate_ProviderFailureIsNotRetried(t *testing.T) {
	provider := mock.NewFailingProvider(errors.New("boom"))
	g := analysis.NewGenerator(provider, 1024, 5*time.Second)

	_, err := g.Generate(context.Background(), forumInput())
	require.Error(t, err)
	assert.Equal(t, 1, provider.Calls())
}

func TestGenerate_EmptyResponseIsFailure(t *testing.T) {
	provider := &mock.MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.CompletionResponse, error) {
			return models.CompletionResponse{Text: "   "}, nil
		},
	}
	g := analysis.NewGenerator(provider, 1024, 5*time.Second)

	_, err := g.Generate(context.Background(), forumInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrUnparseable)
}
