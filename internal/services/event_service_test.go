package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/models"
	"social-go/internal/services"
)

func validEvent() services.CreateEventInput {
	return services.CreateEventInput{
		Title:       "  Kadıköy koşusu ",
		Description: "Sabah 5K",
		Date:        time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Location:    "Moda",
		Category:    "Sports",
	}
}

func TestEventService_CreatorJoinsOnCreate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")

	event, err := e.events.Create(ctx, "a", validEvent())
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "Kadıköy koşusu", event.Title)
	assert.Equal(t, models.CategorySports, event.Category)
	assert.Equal(t, []string{"a"}, event.Participants)

	got, err := e.events.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Participants)
	assert.Equal(t, "a", got.CreatorID)
}

func TestEventService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")

	noTitle := validEvent()
	noTitle.Title = "   "
	badCategory := validEvent()
	badCategory.Category = "karaoke"
	noDate := validEvent()
	noDate.Date = time.Time{}

	for name, in := range map[string]services.CreateEventInput{
		"title":    noTitle,
		"category": badCategory,
		"date":     noDate,
	} {
		_, err := e.events.Create(ctx, "a", in)
		var verr *services.ValidationError
		require.ErrorAs(t, err, &verr, name)
		assert.Contains(t, verr.Fields, name)
	}

	_, err := e.events.Create(ctx, "ghost", validEvent())
	assert.ErrorIs(t, err, services.ErrNotFound)

	events, err := e.events.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventService_JoinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	event, err := e.events.Create(ctx, "a", validEvent())
	require.NoError(t, err)

	joined, err := e.events.Join(ctx, event.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, joined.Participants)

	joined, err = e.events.Join(ctx, event.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, joined.Participants)

	_, err = e.events.Join(ctx, "missing", "b")
	assert.ErrorIs(t, err, services.ErrNotFound)

	mine, err := e.events.ListForUser(ctx, "b")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, event.ID, mine[0].ID)

	activities, err := e.activity.ForUser(ctx, "b", 0)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, models.ActionJoinEvent, activities[0].Action)
}

func TestEventService_ListNewestDateFirst(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")

	early := validEvent()
	early.Title = "early"
	late := validEvent()
	late.Title = "late"
	late.Date = early.Date.Add(48 * time.Hour)

	_, err := e.events.Create(ctx, "a", early)
	require.NoError(t, err)
	_, err = e.events.Create(ctx, "a", late)
	require.NoError(t, err)

	events, err := e.events.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "late", events[0].Title)
	assert.Equal(t, "early", events[1].Title)
	for _, ev := range events {
		assert.NotEmpty(t, ev.Participants)
	}
}
