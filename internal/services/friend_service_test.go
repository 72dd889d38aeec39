package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/models"
	"social-go/internal/services"
	"social-go/internal/storage"
)

func TestFriendService_AddFriendIsSymmetric(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	require.NoError(t, e.friends.AddFriend(ctx, "a", "b"))

	a, err := e.users.GetProfile(ctx, "a")
	require.NoError(t, err)
	b, err := e.users.GetProfile(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, a.Friends)
	assert.Equal(t, []string{"a"}, b.Friends)

	ok, err := e.friends.AreFriends(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFriendService_AddFriendTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	require.NoError(t, e.friends.AddFriend(ctx, "a", "b"))
	require.NoError(t, e.friends.AddFriend(ctx, "a", "b"))
	require.NoError(t, e.friends.AddFriend(ctx, "b", "a"))

	a, err := e.users.GetProfile(ctx, "a")
	require.NoError(t, err)
	b, err := e.users.GetProfile(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, a.Friends)
	assert.Equal(t, []string{"a"}, b.Friends)
}

func TestFriendService_MissingUserWritesNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "2", "İki")

	err := e.friends.AddFriend(ctx, "1", "2")
	require.ErrorIs(t, err, services.ErrNotFound)

	two, err := e.users.GetProfile(ctx, "2")
	require.NoError(t, err)
	assert.Empty(t, two.Friends)

	n, err := storage.NewGormFriendRepository(e.db).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFriendService_RejectsSelfAndEmpty(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")

	assert.ErrorIs(t, e.friends.AddFriend(ctx, "a", "a"), services.ErrValidation)
	assert.ErrorIs(t, e.friends.AddFriend(ctx, "a", ""), services.ErrValidation)
}

func TestFriendService_ListFriends(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")
	e.seed(t, "c", "Cem")
	require.NoError(t, e.friends.AddFriend(ctx, "a", "c"))
	require.NoError(t, e.friends.AddFriend(ctx, "a", "b"))

	friends, err := e.friends.ListFriends(ctx, "a")
	require.NoError(t, err)
	names := make([]string, 0, len(friends))
	for _, f := range friends {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"Burak", "Cem"}, names)

	_, err = e.friends.ListFriends(ctx, "ghost")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestFriendService_ReconcileRepairsHalfWrittenLinks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "a", "Ayşe")
	e.seed(t, "b", "Burak")

	// simulate a partial write and a link to a deleted user
	repo := storage.NewGormFriendRepository(e.db)
	require.NoError(t, repo.InsertLinks(ctx,
		models.FriendLink{UserID: "a", FriendID: "b"},
		models.FriendLink{UserID: "a", FriendID: "ghost"},
	))

	ok, err := e.friends.AreFriends(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, ok)

	report, err := e.friends.Reconcile(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Pruned)
	assert.Equal(t, 1, report.Repaired)

	ok, err = e.friends.AreFriends(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)

	// a second pass has nothing to do
	report, err = e.friends.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Pruned)
	assert.Zero(t, report.Repaired)
}
