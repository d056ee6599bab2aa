package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/client-intake/internal/models"
)

func newSubmission(id, name string) models.Submission {
	s := models.Submission{
		ID:       id,
		Date:     "2024-01-15T10:30:00.000Z",
		Status:   models.StatusNew,
		FormData: models.NewFormData(),
	}
	s.Client.FullName = name
	return s
}

func ids(list []models.Submission) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func TestSubmissionRepository_LoadEmpty(t *testing.T) {
	repo := NewSubmissionRepository(NewKVRepository(newTestDB(t)))

	list, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestSubmissionRepository_AppendPrependOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(NewKVRepository(newTestDB(t)))

	require.NoError(t, repo.Append(ctx, newSubmission("1", "Sarah Johnson")))
	require.NoError(t, repo.Append(ctx, newSubmission("2", "Michael Chen")))
	require.NoError(t, repo.Prepend(ctx, newSubmission("3", "Emma Rodriguez")))

	list, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "2"}, ids(list))
}

func TestSubmissionRepository_UpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(NewKVRepository(newTestDB(t)))
	require.NoError(t, repo.Save(ctx, []models.Submission{
		newSubmission("1", "Sarah Johnson"),
		newSubmission("2", "Michael Chen"),
	}))

	found, err := repo.Update(ctx, "2", func(s *models.Submission) { s.SetProgress(100) })
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Update(ctx, "404", func(s *models.Submission) { s.Status = models.StatusArchived })
	require.NoError(t, err)
	assert.False(t, found)

	list, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, list[1].Status)
	assert.Equal(t, 100, list[1].ProgressValue())
	assert.Equal(t, models.StatusNew, list[0].Status)

	removed, err := repo.Remove(ctx, "2")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Remove(ctx, "2")
	require.NoError(t, err)
	assert.False(t, removed)

	list, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(list))
}

func TestSubmissionRepository_AssetsNeverPersisted(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(NewKVRepository(newTestDB(t)))

	s := newSubmission("1", "Sarah Johnson")
	s.Timeline.Assets = []string{"logo.png"}
	require.NoError(t, repo.Append(ctx, s))

	list, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, list[0].Timeline.Assets)
}
