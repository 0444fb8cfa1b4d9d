package instance_test

import (
	"context"
	"testing"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/access"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/internal/service/instance"
	"github.com/LincolnBryant/slate-client-server/internal/testutil"
	"github.com/LincolnBryant/slate-client-server/pkg/config"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/LincolnBryant/slate-client-server/pkg/kube/kubetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *testutil.Store
	driver *kubetest.Driver
	access *access.AccessService
	svc    *instance.InstanceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	driver := kubetest.NewDriver()
	helmCfg := config.HelmConfig{}
	helmCfg.SetDefaults()
	authSvc := auth.NewAuthService(store.Users, store.Groups)
	accessSvc := access.NewAccessService(authSvc, store.Groups, store.Clusters, store.Access)
	svc := instance.NewInstanceService(
		authSvc, accessSvc, store.Groups, store.Clusters,
		store.Instances, store.ConfigFiles, driver, helmCfg)
	return &fixture{store: store, driver: driver, access: accessSvc, svc: svc}
}

func TestInstallHappyPath(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	inst, apiErr := f.svc.Install(context.Background(), member, instance.InstallRequest{
		Application: "osg-frontier-squid",
		Repository:  model.RepoStable,
		GroupRef:    owner.Name,
		ClusterRef:  clusterRecord.Name,
		Config:      "replicas: 1\n",
	})
	require.Nil(t, apiErr)
	assert.Regexp(t, `^instance_[A-Za-z0-9_-]{11}$`, inst.ID)
	assert.Equal(t, "atlas-osg-frontier-squid", inst.Name)

	stored, err := f.store.Instances.FindByID(inst.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "replicas: 1\n", stored.Config)

	assert.Equal(t, 1, f.driver.CallsMatching("helm", "install"))
}

func TestInstallDeniedWithoutAccess(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "owner")
	tenant := f.store.MakeGroup(t, "tenant", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	_, apiErr := f.svc.Install(context.Background(), member, instance.InstallRequest{
		Application: "cvmfs",
		GroupRef:    tenant.Name,
		ClusterRef:  clusterRecord.Name,
	})
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindForbidden, apiErr.Kind)

	// 无副作用：没有实例记录，也没有helm调用
	instances, err := f.store.Instances.List("", clusterRecord.ID)
	require.NoError(t, err)
	assert.Empty(t, instances)
	assert.Equal(t, 0, f.driver.CallsMatching("helm", "install"))
}

func TestInstallNameConflict(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	req := instance.InstallRequest{
		Application: "cvmfs",
		GroupRef:    owner.Name,
		ClusterRef:  clusterRecord.Name,
	}
	_, apiErr := f.svc.Install(context.Background(), member, req)
	require.Nil(t, apiErr)
	_, apiErr = f.svc.Install(context.Background(), member, req)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindConflict, apiErr.Kind)

	// 标签区分的名字不冲突
	req.Tag = "second"
	_, apiErr = f.svc.Install(context.Background(), member, req)
	require.Nil(t, apiErr)
}

func TestInstallHelmFailureRemovesRecord(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	f.driver.HandlePrefix("helm", "install",
		kube.CommandResult{Status: 1, Error: "render error in template"})

	_, apiErr := f.svc.Install(context.Background(), member, instance.InstallRequest{
		Application: "broken-app",
		GroupRef:    owner.Name,
		ClusterRef:  clusterRecord.Name,
	})
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindExternalCommandFailed, apiErr.Kind)

	instances, err := f.store.Instances.List("", clusterRecord.ID)
	require.NoError(t, err)
	assert.Empty(t, instances, "the partially-written record is removed on helm failure")
}

func TestDeleteForceSurvivesHelmFailure(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	inst, apiErr := f.svc.Install(context.Background(), member, instance.InstallRequest{
		Application: "cvmfs",
		GroupRef:    owner.Name,
		ClusterRef:  clusterRecord.Name,
	})
	require.Nil(t, apiErr)

	f.driver.HandlePrefix("helm", "delete",
		kube.CommandResult{Status: 1, Error: "transport is closing"})

	apiErr = f.svc.Delete(context.Background(), member, inst.ID, false)
	require.NotNil(t, apiErr, "non-forced delete surfaces the helm failure")

	apiErr = f.svc.Delete(context.Background(), member, inst.ID, true)
	require.Nil(t, apiErr)
	gone, err := f.store.Instances.FindByID(inst.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeleteRequiresMembership(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	outsider := f.store.MakeUser(t, "outsider", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	inst, apiErr := f.svc.Install(context.Background(), member, instance.InstallRequest{
		Application: "cvmfs",
		GroupRef:    owner.Name,
		ClusterRef:  clusterRecord.Name,
	})
	require.Nil(t, apiErr)

	apiErr = f.svc.Delete(context.Background(), outsider, inst.ID, false)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindForbidden, apiErr.Kind)
}

func TestLogsCollectsPods(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	inst, apiErr := f.svc.Install(context.Background(), member, instance.InstallRequest{
		Application: "cvmfs",
		GroupRef:    owner.Name,
		ClusterRef:  clusterRecord.Name,
	})
	require.Nil(t, apiErr)

	f.driver.HandlePrefix("kubectl", "get pods",
		kube.CommandResult{Output: "NAME                 READY   STATUS\natlas-cvmfs-0        1/1     Running\nunrelated-pod        1/1     Running"})
	f.driver.HandlePrefix("kubectl", "logs atlas-cvmfs-0",
		kube.CommandResult{Output: "starting up\nready\n"})

	logs, apiErr := f.svc.Logs(context.Background(), inst.ID, instance.LogOptions{MaxLines: 100})
	require.Nil(t, apiErr)
	assert.Contains(t, logs, "pod: atlas-cvmfs-0")
	assert.Contains(t, logs, "starting up")
	assert.NotContains(t, logs, "unrelated-pod")
}
