package repository_test

import (
	"testing"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessGrantIdempotent(t *testing.T) {
	store := testutil.NewStore(t)
	owner := store.MakeGroup(t, "owner")
	tenant := store.MakeGroup(t, "tenant")
	cluster := store.MakeCluster(t, "c1", owner)

	require.NoError(t, store.Access.AddGroupToCluster(tenant.ID, cluster.ID))
	require.NoError(t, store.Access.AddGroupToCluster(tenant.ID, cluster.ID))

	ids, err := store.Access.ListGroupsAllowedOnCluster(cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{tenant.ID}, ids, "double grant must be equivalent to a single grant")

	require.NoError(t, store.Access.RemoveGroupFromCluster(tenant.ID, cluster.ID))
	require.NoError(t, store.Access.RemoveGroupFromCluster(tenant.ID, cluster.ID))
	ids, err = store.Access.ListGroupsAllowedOnCluster(cluster.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAccessWildcard(t *testing.T) {
	store := testutil.NewStore(t)
	owner := store.MakeGroup(t, "owner")
	tenant := store.MakeGroup(t, "tenant")
	cluster := store.MakeCluster(t, "c1", owner)

	has, err := store.Access.GroupHasAccess(tenant.ID, cluster.ID)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.Access.AddGroupToCluster(model.WildcardID, cluster.ID))
	has, err = store.Access.GroupHasAccess(tenant.ID, cluster.ID)
	require.NoError(t, err)
	assert.True(t, has, "wildcard grant covers every group")
}

func TestAppGrants(t *testing.T) {
	store := testutil.NewStore(t)
	owner := store.MakeGroup(t, "owner")
	tenant := store.MakeGroup(t, "tenant")
	cluster := store.MakeCluster(t, "c1", owner)

	may, err := store.Access.GroupMayUseApp(tenant.ID, cluster.ID, "osg-frontier-squid")
	require.NoError(t, err)
	assert.False(t, may)

	require.NoError(t, store.Access.AllowApp(tenant.ID, cluster.ID, "osg-frontier-squid"))
	require.NoError(t, store.Access.AllowApp(tenant.ID, cluster.ID, "osg-frontier-squid"))
	apps, err := store.Access.ListAllowedApps(tenant.ID, cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"osg-frontier-squid"}, apps)

	may, err = store.Access.GroupMayUseApp(tenant.ID, cluster.ID, "osg-frontier-squid")
	require.NoError(t, err)
	assert.True(t, may)

	// 通配应用许可
	require.NoError(t, store.Access.AllowApp(tenant.ID, cluster.ID, model.WildcardID))
	may, err = store.Access.GroupMayUseApp(tenant.ID, cluster.ID, "anything-else")
	require.NoError(t, err)
	assert.True(t, may)

	require.NoError(t, store.Access.DenyApp(tenant.ID, cluster.ID, model.WildcardID))
	require.NoError(t, store.Access.DenyApp(tenant.ID, cluster.ID, "osg-frontier-squid"))
	may, err = store.Access.GroupMayUseApp(tenant.ID, cluster.ID, "osg-frontier-squid")
	require.NoError(t, err)
	assert.False(t, may)
}

func TestRevokeClearsAppGrants(t *testing.T) {
	store := testutil.NewStore(t)
	owner := store.MakeGroup(t, "owner")
	tenant := store.MakeGroup(t, "tenant")
	cluster := store.MakeCluster(t, "c1", owner)

	require.NoError(t, store.Access.AddGroupToCluster(tenant.ID, cluster.ID))
	require.NoError(t, store.Access.AllowApp(tenant.ID, cluster.ID, "cvmfs"))
	require.NoError(t, store.Access.RemoveGroupFromCluster(tenant.ID, cluster.ID))

	apps, err := store.Access.ListAllowedApps(tenant.ID, cluster.ID)
	require.NoError(t, err)
	assert.Empty(t, apps, "revoking access clears the group's app grants on the cluster")
}

func TestInstanceAndSecretListPredicates(t *testing.T) {
	store := testutil.NewStore(t)
	owner := store.MakeGroup(t, "owner")
	other := store.MakeGroup(t, "other")
	c1 := store.MakeCluster(t, "c1", owner)
	c2 := store.MakeCluster(t, "c2", owner)

	mkInstance := func(id, name, group, cluster string) {
		require.NoError(t, store.Instances.Create(&model.ApplicationInstance{
			ID: id, Name: name, Application: "app", OwningGroup: group, ClusterID: cluster,
		}))
	}
	mkInstance("instance_aaaaaaaaAAA", "owner-app", owner.ID, c1.ID)
	mkInstance("instance_bbbbbbbbBBB", "other-app", other.ID, c1.ID)
	mkInstance("instance_ccccccccCCC", "owner-app", owner.ID, c2.ID)

	all, err := store.Instances.List("", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byGroup, err := store.Instances.List(owner.ID, "")
	require.NoError(t, err)
	assert.Len(t, byGroup, 2)

	byCluster, err := store.Instances.List("", c1.ID)
	require.NoError(t, err)
	assert.Len(t, byCluster, 2)

	both, err := store.Instances.List(other.ID, c1.ID)
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "other-app", both[0].Name)

	require.NoError(t, store.Secrets.Create(&model.Secret{
		ID: "secret_aaaaaaaaAAA", Name: "s1", OwningGroup: owner.ID, ClusterID: c1.ID,
		Contents: []byte(`{"key":"dmFsdWU="}`),
	}))
	secrets, err := store.Secrets.List("", c1.ID)
	require.NoError(t, err)
	require.Len(t, secrets, 1)

	found, err := store.Secrets.FindByName(owner.ID, c1.ID, "s1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "secret_aaaaaaaaAAA", found.ID)
}
