// Package secret Secret引擎：在租户命名空间物化不透明Secret并持久化记录。
package secret

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/LincolnBryant/slate-client-server/internal/service/access"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

type SecretService struct {
	auth        *auth.AuthService
	accessSvc   *access.AccessService
	groups      *repository.GroupRepository
	clusters    *repository.ClusterRepository
	secrets     *repository.SecretRepository
	configFiles *repository.ConfigFileManager
	driver      kube.Driver
}

func NewSecretService(
	authService *auth.AuthService,
	accessSvc *access.AccessService,
	groups *repository.GroupRepository,
	clusters *repository.ClusterRepository,
	secrets *repository.SecretRepository,
	configFiles *repository.ConfigFileManager,
	driver kube.Driver,
) *SecretService {
	return &SecretService{
		auth:        authService,
		accessSvc:   accessSvc,
		groups:      groups,
		clusters:    clusters,
		secrets:     secrets,
		configFiles: configFiles,
		driver:      driver,
	}
}

// CreateRequest 创建请求。Contents 的值为base64编码的字节。
type CreateRequest struct {
	Name       string
	GroupRef   string
	ClusterRef string
	Contents   map[string]string
}

// Create 在目标集群的租户命名空间创建Opaque Secret并持久化记录
func (s *SecretService) Create(ctx context.Context, user *model.User, req CreateRequest) (*model.Secret, *model.APIError) {
	group, err := s.groups.Resolve(req.GroupRef)
	if err != nil {
		return nil, model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return nil, model.ErrNotFound("Group not found")
	}
	cluster, err := s.clusters.Resolve(req.ClusterRef)
	if err != nil {
		return nil, model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return nil, model.ErrNotFound("Cluster not found")
	}

	if apiErr := s.auth.RequireMembership(user, group.ID); apiErr != nil {
		return nil, apiErr
	}
	hasAccess, apiErr := s.accessSvc.GroupHasAccess(group.ID, cluster)
	if apiErr != nil {
		return nil, apiErr
	}
	if !hasAccess {
		return nil, model.ErrForbidden()
	}

	for key, value := range req.Contents {
		if _, err := base64.StdEncoding.DecodeString(value); err != nil {
			return nil, model.ErrBadRequest("Secret value for key %q is not valid base64", key)
		}
	}

	existing, err := s.secrets.FindByName(group.ID, cluster.ID, req.Name)
	if err != nil {
		return nil, model.ErrStore(err, "secret lookup failed")
	}
	if existing != nil {
		return nil, model.ErrConflict("Secret name %q is already in use for this group and cluster", req.Name)
	}

	if apiErr := s.pushSecret(ctx, cluster, group, req.Name, req.Contents); apiErr != nil {
		return nil, apiErr
	}

	contents, err := json.Marshal(req.Contents)
	if err != nil {
		return nil, model.ErrInternal(err, "unable to serialize secret contents")
	}
	record := &model.Secret{
		ID:          idgen.NewSecretID(),
		Name:        req.Name,
		OwningGroup: group.ID,
		ClusterID:   cluster.ID,
		Contents:    contents,
	}
	if err := s.secrets.Create(record); err != nil {
		return nil, model.ErrStore(err, "secret record creation failed")
	}

	logger.Infof("%s created secret %s (%s) for %s on %s", user.ID, record.ID, record.Name, group.ID, cluster.ID)
	return record, nil
}

// pushSecret 通过 kubectl apply 将Opaque Secret写入租户命名空间
func (s *SecretService) pushSecret(ctx context.Context, cluster *model.Cluster, group *model.Group, name string, contents map[string]string) *model.APIError {
	handle, err := s.configFiles.Acquire(cluster.ID)
	if err != nil {
		return model.ErrStore(err, "unable to materialize cluster kubeconfig")
	}
	defer handle.Release()

	nsResult := kube.EnsureNamespace(ctx, s.driver, handle.Path(), group.NamespaceName())
	if nsResult.Failed() {
		return model.ErrExternalCommand("Unable to create namespace %s: %s", group.NamespaceName(), nsResult.Error)
	}

	manifest := map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Secret",
		"type":       "Opaque",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": group.NamespaceName(),
		},
		"data": contents,
	}
	raw, err := json.Marshal(manifest)
	if err != nil {
		return model.ErrInternal(err, "unable to serialize secret manifest")
	}

	result := s.driver.KubectlWithInput(ctx, handle.Path(), string(raw), "apply", "-f", "-")
	if result.Failed() {
		return model.ErrExternalCommand("Unable to create secret on cluster: %s", strings.TrimSpace(result.Error))
	}
	return nil
}

// Rematerialize 按存储中的记录重新推送Secret（一致性修复用）
func (s *SecretService) Rematerialize(ctx context.Context, record *model.Secret) *model.APIError {
	group, err := s.groups.FindByID(record.OwningGroup)
	if err != nil || group == nil {
		return model.ErrStore(err, "group lookup failed")
	}
	cluster, err := s.clusters.FindByID(record.ClusterID)
	if err != nil || cluster == nil {
		return model.ErrStore(err, "cluster lookup failed")
	}
	var contents map[string]string
	if err := json.Unmarshal(record.Contents, &contents); err != nil {
		return model.ErrInternal(err, "unable to decode secret contents")
	}
	return s.pushSecret(ctx, cluster, group, record.Name, contents)
}

// Copy 复制Secret：从源Secret按ID取内容，字节级保留
func (s *SecretService) Copy(ctx context.Context, user *model.User, sourceID string, req CreateRequest) (*model.Secret, *model.APIError) {
	source, err := s.secrets.FindByID(sourceID)
	if err != nil {
		return nil, model.ErrStore(err, "secret lookup failed")
	}
	if source == nil {
		return nil, model.ErrNotFound("Source secret not found")
	}
	// 读取源内容需要源所属组的成员资格
	if apiErr := s.auth.RequireMembership(user, source.OwningGroup); apiErr != nil {
		return nil, apiErr
	}
	var contents map[string]string
	if err := json.Unmarshal(source.Contents, &contents); err != nil {
		return nil, model.ErrInternal(err, "unable to decode source secret contents")
	}
	req.Contents = contents
	return s.Create(ctx, user, req)
}

// Get 查询Secret及其内容；需要所属组成员资格
func (s *SecretService) Get(user *model.User, id string) (*model.Secret, map[string]string, *model.APIError) {
	secret, err := s.secrets.FindByID(id)
	if err != nil {
		return nil, nil, model.ErrStore(err, "secret lookup failed")
	}
	if secret == nil {
		return nil, nil, model.ErrNotFound("Secret not found")
	}
	if apiErr := s.auth.RequireMembership(user, secret.OwningGroup); apiErr != nil {
		return nil, nil, apiErr
	}
	var contents map[string]string
	if err := json.Unmarshal(secret.Contents, &contents); err != nil {
		return nil, nil, model.ErrInternal(err, "unable to decode secret contents")
	}
	return secret, contents, nil
}

// List 按 (组, 集群|*) 列出Secret；需要组成员资格
func (s *SecretService) List(user *model.User, groupRef, clusterRef string) ([]model.Secret, *model.APIError) {
	if groupRef == "" {
		return nil, model.ErrBadRequest("A group must be specified")
	}
	group, err := s.groups.Resolve(groupRef)
	if err != nil {
		return nil, model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return nil, model.ErrNotFound("Group not found")
	}
	if apiErr := s.auth.RequireMembership(user, group.ID); apiErr != nil {
		return nil, apiErr
	}

	clusterID := ""
	if clusterRef != "" {
		cluster, err := s.clusters.Resolve(clusterRef)
		if err != nil {
			return nil, model.ErrStore(err, "cluster lookup failed")
		}
		if cluster == nil {
			return nil, model.ErrNotFound("Cluster not found")
		}
		clusterID = cluster.ID
	}

	secrets, err := s.secrets.List(group.ID, clusterID)
	if err != nil {
		return nil, model.ErrStore(err, "secret listing failed")
	}
	return secrets, nil
}

// Delete 删除Secret：先从Kubernetes删除，再删存储记录。
// force 时无论Kubernetes结果如何都删除记录。
func (s *SecretService) Delete(ctx context.Context, user *model.User, id string, force bool) *model.APIError {
	secret, err := s.secrets.FindByID(id)
	if err != nil {
		return model.ErrStore(err, "secret lookup failed")
	}
	if secret == nil {
		return model.ErrNotFound("Secret not found")
	}
	if apiErr := s.auth.RequireMembership(user, secret.OwningGroup); apiErr != nil {
		return apiErr
	}
	logger.Infof("%s deleting secret %s (%s)", user.ID, secret.ID, secret.Name)
	return s.DeleteRecord(ctx, secret, force)
}

// DeleteRecord 删除Secret的内部入口，供集群级联复用。
// 调用方负责授权。
func (s *SecretService) DeleteRecord(ctx context.Context, secret *model.Secret, force bool) *model.APIError {
	group, err := s.groups.FindByID(secret.OwningGroup)
	if err != nil {
		return model.ErrStore(err, "group lookup failed")
	}

	var kubeErr *model.APIError
	if group != nil {
		handle, err := s.configFiles.Acquire(secret.ClusterID)
		if err != nil {
			kubeErr = model.ErrStore(err, "unable to materialize cluster kubeconfig")
		} else {
			result := s.driver.Kubectl(ctx, handle.Path(),
				"delete", "secret", secret.Name,
				"--namespace", group.NamespaceName(), "--ignore-not-found")
			handle.Release()
			if result.Failed() {
				kubeErr = model.ErrExternalCommand("Unable to delete secret from cluster: %s", strings.TrimSpace(result.Error))
			}
		}
	}
	if kubeErr != nil && !force {
		return kubeErr
	}
	if kubeErr != nil {
		logger.Warnf("Forced delete of %s proceeding despite kubectl failure: %v", secret.ID, kubeErr)
	}

	if err := s.secrets.Delete(secret.ID); err != nil {
		return model.ErrStore(err, "secret record deletion failed")
	}
	return nil
}

// FormatKey 一致性检查使用的 <组名>:<secret名> 键
func FormatKey(groupName, secretName string) string {
	return fmt.Sprintf("%s:%s", groupName, secretName)
}
