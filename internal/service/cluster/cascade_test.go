package cluster_test

import (
	"context"
	"strings"
	"testing"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedArtifacts(t *testing.T, h *harness, group *model.Group, clusterID string, instances, secrets []string) {
	t.Helper()
	for _, name := range instances {
		require.NoError(t, h.store.Instances.Create(&model.ApplicationInstance{
			ID:          idgen.NewInstanceID(),
			Name:        group.Name + "-" + name,
			Application: name,
			OwningGroup: group.ID,
			ClusterID:   clusterID,
		}))
	}
	for _, name := range secrets {
		require.NoError(t, h.store.Secrets.Create(&model.Secret{
			ID:          idgen.NewSecretID(),
			Name:        name,
			OwningGroup: group.ID,
			ClusterID:   clusterID,
			Contents:    []byte(`{"key":"dmFsdWU="}`),
		}))
	}
}

func TestCascadeDeleteOrdering(t *testing.T) {
	h := newHarness(t)
	member := h.store.MakeUser(t, "member", false)
	owner := h.store.MakeGroup(t, "atlas", member)
	record := h.store.MakeCluster(t, "doomed", owner)
	seedArtifacts(t, h, owner, record.ID, []string{"app-one", "app-two"}, []string{"s1", "s2"})

	// 全部外部命令成功
	apiErr := h.clusterSvc.Delete(context.Background(), member, record.ID, false)
	require.Nil(t, apiErr)

	// 存储中不再有该集群的任何痕迹
	stored, err := h.store.Clusters.FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
	instances, err := h.store.Instances.List("", record.ID)
	require.NoError(t, err)
	assert.Empty(t, instances)
	secrets, err := h.store.Secrets.List("", record.ID)
	require.NoError(t, err)
	assert.Empty(t, secrets)

	// 顺序保证：所有secret删除完成之后才开始删除命名空间
	calls := h.driver.Calls()
	lastSecretDelete := -1
	firstNamespaceDelete := -1
	for i, call := range calls {
		arg := call.ArgString()
		if strings.HasPrefix(arg, "delete secret") {
			lastSecretDelete = i
		}
		if strings.HasPrefix(arg, "delete namespace") && firstNamespaceDelete == -1 {
			firstNamespaceDelete = i
		}
	}
	require.NotEqual(t, -1, lastSecretDelete, "expected secret deletions")
	require.NotEqual(t, -1, firstNamespaceDelete, "expected namespace deletions")
	assert.Greater(t, firstNamespaceDelete, lastSecretDelete,
		"no namespace delete may start before all secret deletes completed")

	// helm release 删除先于secret删除（实例阶段在前）
	firstHelmDelete := -1
	for i, call := range calls {
		if call.Command == "helm" && strings.HasPrefix(call.ArgString(), "delete") {
			firstHelmDelete = i
			break
		}
	}
	require.NotEqual(t, -1, firstHelmDelete)
	assert.Less(t, firstHelmDelete, lastSecretDelete)
}

func TestCascadeDeleteAbortsWithoutForce(t *testing.T) {
	h := newHarness(t)
	member := h.store.MakeUser(t, "member", false)
	owner := h.store.MakeGroup(t, "atlas", member)
	record := h.store.MakeCluster(t, "sticky", owner)
	seedArtifacts(t, h, owner, record.ID, []string{"app-one"}, nil)

	h.driver.HandlePrefix("helm", "delete",
		kube.CommandResult{Status: 1, Error: "rpc error: transport is closing"})

	apiErr := h.clusterSvc.Delete(context.Background(), member, record.ID, false)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.KindCascadeFailure, apiErr.Kind)

	// 集群与实例记录仍在
	stored, err := h.store.Clusters.FindByID(record.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
	instances, err := h.store.Instances.List("", record.ID)
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestCascadeDeleteForced(t *testing.T) {
	h := newHarness(t)
	member := h.store.MakeUser(t, "member", false)
	owner := h.store.MakeGroup(t, "atlas", member)
	record := h.store.MakeCluster(t, "forced", owner)
	seedArtifacts(t, h, owner, record.ID, []string{"app-one"}, []string{"s1", "s2"})

	// helm对实例删除失败；其余命令成功
	h.driver.HandlePrefix("helm", "delete",
		kube.CommandResult{Status: 1, Error: "rpc error: transport is closing"})

	apiErr := h.clusterSvc.Delete(context.Background(), member, record.ID, true)
	require.Nil(t, apiErr, "forced cascade tolerates per-stage failures")

	stored, err := h.store.Clusters.FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
	instances, err := h.store.Instances.List("", record.ID)
	require.NoError(t, err)
	assert.Empty(t, instances, "residual instance records are cleaned from the store")
	secrets, err := h.store.Secrets.List("", record.ID)
	require.NoError(t, err)
	assert.Empty(t, secrets)
}

func TestCascadeNamespaceFailureNeverAborts(t *testing.T) {
	h := newHarness(t)
	member := h.store.MakeUser(t, "member", false)
	owner := h.store.MakeGroup(t, "atlas", member)
	record := h.store.MakeCluster(t, "ns-fail", owner)

	h.driver.HandlePrefix("kubectl", "delete namespace",
		kube.CommandResult{Status: 1, Error: "namespace is terminating"})

	apiErr := h.clusterSvc.Delete(context.Background(), member, record.ID, false)
	require.Nil(t, apiErr, "namespace failures are logged, never fatal")

	stored, err := h.store.Clusters.FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
