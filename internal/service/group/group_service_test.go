package group_test

import (
	"testing"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/internal/service/group"
	"github.com/LincolnBryant/slate-client-server/internal/testutil"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroupService(t *testing.T) (*testutil.Store, *group.GroupService) {
	t.Helper()
	store := testutil.NewStore(t)
	authSvc := auth.NewAuthService(store.Users, store.Groups)
	return store, group.NewGroupService(authSvc, store.Groups, store.Clusters, store.Instances, store.Secrets)
}

func TestGroupCreate(t *testing.T) {
	store, svc := newGroupService(t)
	user := store.MakeUser(t, "alice", false)

	record, apiErr := svc.Create(user, group.CreateRequest{
		Name:         "atlas",
		Email:        "atlas@example.com",
		ScienceField: "High Energy Physics",
	})
	require.Nil(t, apiErr)
	assert.Regexp(t, `^group_[A-Za-z0-9_-]{11}$`, record.ID)
	assert.Equal(t, "slate-group-atlas", record.NamespaceName())

	// 创建者自动成为成员
	in, err := store.Groups.UserInGroup(user.ID, record.ID)
	require.NoError(t, err)
	assert.True(t, in)

	// 名称唯一
	_, apiErr = svc.Create(user, group.CreateRequest{Name: "atlas"})
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindConflict, apiErr.Kind)

	// 命名空间前缀要求DNS label组名
	_, apiErr = svc.Create(user, group.CreateRequest{Name: "Not A Label"})
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindBadRequest, apiErr.Kind)
}

func TestGroupDeletePreconditions(t *testing.T) {
	store, svc := newGroupService(t)
	user := store.MakeUser(t, "alice", false)
	record, apiErr := svc.Create(user, group.CreateRequest{Name: "atlas"})
	require.Nil(t, apiErr)
	clusterRecord := store.MakeCluster(t, "c1", record)

	require.NoError(t, store.Instances.Create(&model.ApplicationInstance{
		ID:          idgen.NewInstanceID(),
		Name:        "atlas-app",
		Application: "app",
		OwningGroup: record.ID,
		ClusterID:   clusterRecord.ID,
	}))

	// 仍有实例：拒绝
	apiErr = svc.Delete(user, record.Name)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindBadRequest, apiErr.Kind)

	instances, err := store.Instances.List(record.ID, "")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.NoError(t, store.Instances.Delete(instances[0].ID))

	// 仍拥有集群：拒绝
	apiErr = svc.Delete(user, record.Name)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindBadRequest, apiErr.Kind)

	require.NoError(t, store.Clusters.Delete(clusterRecord.ID))
	apiErr = svc.Delete(user, record.Name)
	assert.Nil(t, apiErr)

	gone, err := store.Groups.FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestGroupUpdateKeepsName(t *testing.T) {
	store, svc := newGroupService(t)
	user := store.MakeUser(t, "alice", false)
	record, apiErr := svc.Create(user, group.CreateRequest{Name: "atlas"})
	require.Nil(t, apiErr)

	email := "new@example.com"
	apiErr = svc.Update(user, record.Name, group.UpdateRequest{Email: &email})
	require.Nil(t, apiErr)

	got, err := store.Groups.FindByID(record.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "atlas", got.Name, "the derived namespace name never changes")
}
