package repository_test

import (
	"testing"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/testutil"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRoundTrip(t *testing.T) {
	store := testutil.NewStore(t)

	user := &model.User{
		ID:          idgen.NewUserID(),
		Name:        "alice",
		Email:       "alice@example.com",
		Phone:       "555-0100",
		Institution: "University of Examples",
		GlobusID:    "globus-alice",
		Token:       idgen.NewUserToken(),
		Admin:       true,
		Valid:       true,
	}
	require.NoError(t, store.Users.Create(user))

	got, err := store.Users.FindByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Name, got.Name)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, user.Phone, got.Phone)
	assert.Equal(t, user.Institution, got.Institution)
	assert.Equal(t, user.GlobusID, got.GlobusID)
	assert.Equal(t, user.Token, got.Token)
	assert.True(t, got.Admin)
	assert.True(t, got.Valid)

	// 第二次读取应从缓存命中，结果相同
	cached, err := store.Users.FindByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, got.Token, cached.Token)
}

func TestUserLookups(t *testing.T) {
	store := testutil.NewStore(t)
	user := store.MakeUser(t, "bob", false)

	byName, err := store.Users.FindByName("bob")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	byToken, err := store.Users.FindByToken(user.Token)
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, user.ID, byToken.ID)

	missing, err := store.Users.FindByToken("no-such-token")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserUpdateInvalidatesCache(t *testing.T) {
	store := testutil.NewStore(t)
	user := store.MakeUser(t, "carol", false)

	// 预热按名称的缓存
	cached, err := store.Users.FindByName("carol")
	require.NoError(t, err)
	require.NotNil(t, cached)

	oldToken := user.Token
	user.Name = "carol-renamed"
	user.Token = idgen.NewUserToken()
	require.NoError(t, store.Users.Update(user))

	// 旧键必须已失效
	stale, err := store.Users.FindByName("carol")
	require.NoError(t, err)
	assert.Nil(t, stale)
	staleToken, err := store.Users.FindByToken(oldToken)
	require.NoError(t, err)
	assert.Nil(t, staleToken)

	fresh, err := store.Users.FindByName("carol-renamed")
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Equal(t, user.ID, fresh.ID)
}

func TestUserDeleteRemovesMembership(t *testing.T) {
	store := testutil.NewStore(t)
	user := store.MakeUser(t, "dave", false)
	group := store.MakeGroup(t, "atlas", user)

	in, err := store.Groups.UserInGroup(user.ID, group.ID)
	require.NoError(t, err)
	require.True(t, in)

	require.NoError(t, store.Users.Delete(user.ID))

	gone, err := store.Users.FindByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	in, err = store.Groups.UserInGroup(user.ID, group.ID)
	require.NoError(t, err)
	assert.False(t, in)
}
