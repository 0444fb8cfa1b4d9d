package secret_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/access"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/internal/service/secret"
	"github.com/LincolnBryant/slate-client-server/internal/testutil"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/LincolnBryant/slate-client-server/pkg/kube/kubetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *testutil.Store
	driver *kubetest.Driver
	svc    *secret.SecretService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	driver := kubetest.NewDriver()
	authSvc := auth.NewAuthService(store.Users, store.Groups)
	accessSvc := access.NewAccessService(authSvc, store.Groups, store.Clusters, store.Access)
	svc := secret.NewSecretService(
		authSvc, accessSvc, store.Groups, store.Clusters,
		store.Secrets, store.ConfigFiles, driver)
	return &fixture{store: store, driver: driver, svc: svc}
}

func TestCreateSecret(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	record, apiErr := f.svc.Create(context.Background(), member, secret.CreateRequest{
		Name:       "db-credentials",
		GroupRef:   owner.Name,
		ClusterRef: clusterRecord.Name,
		Contents:   map[string]string{"password": "aHVudGVyMg=="},
	})
	require.Nil(t, apiErr)
	assert.Regexp(t, `^secret_[A-Za-z0-9_-]{11}$`, record.ID)

	// Opaque Secret 通过 kubectl apply 下发到租户命名空间
	var applied bool
	for _, call := range f.driver.Calls() {
		if call.Command == "kubectl" && call.ArgString() == "apply -f -" {
			applied = true
			var manifest map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(call.Input), &manifest))
			assert.Equal(t, "Secret", manifest["kind"])
			assert.Equal(t, "Opaque", manifest["type"])
			metadata := manifest["metadata"].(map[string]interface{})
			assert.Equal(t, "db-credentials", metadata["name"])
			assert.Equal(t, "slate-group-atlas", metadata["namespace"])
		}
	}
	assert.True(t, applied)

	// 内容字节级保留
	_, contents, apiErr := f.svc.Get(member, record.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, map[string]string{"password": "aHVudGVyMg=="}, contents)
}

func TestCreateSecretRejectsBadBase64(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	_, apiErr := f.svc.Create(context.Background(), member, secret.CreateRequest{
		Name:       "bad",
		GroupRef:   owner.Name,
		ClusterRef: clusterRecord.Name,
		Contents:   map[string]string{"password": "not base64!!"},
	})
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindBadRequest, apiErr.Kind)
}

func TestCreateSecretNameUniquePerGroupCluster(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	c1 := f.store.MakeCluster(t, "c1", owner)
	c2 := f.store.MakeCluster(t, "c2", owner)

	req := secret.CreateRequest{
		Name:       "dup",
		GroupRef:   owner.Name,
		ClusterRef: c1.Name,
		Contents:   map[string]string{"k": "dg=="},
	}
	_, apiErr := f.svc.Create(context.Background(), member, req)
	require.Nil(t, apiErr)
	_, apiErr = f.svc.Create(context.Background(), member, req)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindConflict, apiErr.Kind)

	// 同名但另一个集群不冲突
	req.ClusterRef = c2.Name
	_, apiErr = f.svc.Create(context.Background(), member, req)
	assert.Nil(t, apiErr)
}

func TestCopySecretPreservesContents(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	c1 := f.store.MakeCluster(t, "c1", owner)
	c2 := f.store.MakeCluster(t, "c2", owner)

	source, apiErr := f.svc.Create(context.Background(), member, secret.CreateRequest{
		Name:       "original",
		GroupRef:   owner.Name,
		ClusterRef: c1.Name,
		Contents:   map[string]string{"cert": "Y2VydGJ5dGVz", "key": "a2V5Ynl0ZXM="},
	})
	require.Nil(t, apiErr)

	copied, apiErr := f.svc.Copy(context.Background(), member, source.ID, secret.CreateRequest{
		Name:       "clone",
		GroupRef:   owner.Name,
		ClusterRef: c2.Name,
	})
	require.Nil(t, apiErr)

	_, contents, apiErr := f.svc.Get(member, copied.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, map[string]string{"cert": "Y2VydGJ5dGVz", "key": "a2V5Ynl0ZXM="}, contents)
}

func TestDeleteSecretForce(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	record, apiErr := f.svc.Create(context.Background(), member, secret.CreateRequest{
		Name:       "doomed",
		GroupRef:   owner.Name,
		ClusterRef: clusterRecord.Name,
		Contents:   map[string]string{"k": "dg=="},
	})
	require.Nil(t, apiErr)

	f.driver.HandlePrefix("kubectl", "delete secret",
		kube.CommandResult{Status: 1, Error: "connection refused"})

	// 非强制：集群侧失败阻止记录删除
	apiErr = f.svc.Delete(context.Background(), member, record.ID, false)
	require.NotNil(t, apiErr)
	still, err := f.store.Secrets.FindByID(record.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)

	// 强制：无论集群侧结果如何记录都删除
	apiErr = f.svc.Delete(context.Background(), member, record.ID, true)
	require.Nil(t, apiErr)
	gone, err := f.store.Secrets.FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSecretAccessControl(t *testing.T) {
	f := newFixture(t)
	member := f.store.MakeUser(t, "member", false)
	outsider := f.store.MakeUser(t, "outsider", false)
	owner := f.store.MakeGroup(t, "atlas", member)
	clusterRecord := f.store.MakeCluster(t, "c1", owner)

	record, apiErr := f.svc.Create(context.Background(), member, secret.CreateRequest{
		Name:       "private",
		GroupRef:   owner.Name,
		ClusterRef: clusterRecord.Name,
		Contents:   map[string]string{"k": "dg=="},
	})
	require.Nil(t, apiErr)

	_, _, apiErr = f.svc.Get(outsider, record.ID)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindForbidden, apiErr.Kind)

	_, apiErr = f.svc.List(outsider, owner.Name, "")
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindForbidden, apiErr.Kind)
}
