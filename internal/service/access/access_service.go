// Package access 组-集群访问授权与应用许可策略。
package access

import (
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

type AccessService struct {
	auth     *auth.AuthService
	groups   *repository.GroupRepository
	clusters *repository.ClusterRepository
	access   *repository.AccessRepository
}

func NewAccessService(
	authService *auth.AuthService,
	groups *repository.GroupRepository,
	clusters *repository.ClusterRepository,
	access *repository.AccessRepository,
) *AccessService {
	return &AccessService{auth: authService, groups: groups, clusters: clusters, access: access}
}

// GroupEntry 访问列表条目
type GroupEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListAllowed 列出可访问集群的组。
// 通配授权存在时结果只有通配伪组条目；否则显式授权加归属组，归属组不重复出现。
func (s *AccessService) ListAllowed(clusterID string) ([]GroupEntry, *model.APIError) {
	cluster, err := s.clusters.FindByID(clusterID)
	if err != nil {
		return nil, model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return nil, model.ErrNotFound("Cluster not found")
	}

	groupIDs, err := s.access.ListGroupsAllowedOnCluster(cluster.ID)
	if err != nil {
		return nil, model.ErrStore(err, "access lookup failed")
	}

	for _, id := range groupIDs {
		if id == model.WildcardID {
			return []GroupEntry{{ID: model.WildcardID, Name: model.WildcardName}}, nil
		}
	}

	// 归属组始终隐式可访问
	seen := map[string]bool{}
	entries := make([]GroupEntry, 0, len(groupIDs)+1)
	for _, id := range append(groupIDs, cluster.OwningGroup) {
		if seen[id] {
			continue
		}
		seen[id] = true
		group, err := s.groups.FindByID(id)
		if err != nil {
			return nil, model.ErrStore(err, "group lookup failed")
		}
		if group == nil {
			logger.Errorf("Apparently invalid group ID %s listed for access to %s", id, cluster.ID)
			continue
		}
		entries = append(entries, GroupEntry{ID: group.ID, Name: group.Name})
	}
	return entries, nil
}

// Grant 授予组对集群的访问权；groupRef 可为组名、组ID或通配符。
// 仅管理员和集群归属组成员可授予。
func (s *AccessService) Grant(user *model.User, clusterID, groupRef string) *model.APIError {
	cluster, apiErr := s.ownedCluster(user, clusterID)
	if apiErr != nil {
		return apiErr
	}

	if groupRef == model.WildcardID || groupRef == model.WildcardName {
		logger.Infof("%s granting all groups access to %s", user.ID, cluster.ID)
		if err := s.access.AddGroupToCluster(model.WildcardID, cluster.ID); err != nil {
			return model.ErrStore(err, "granting group access to cluster failed")
		}
		return nil
	}

	group, err := s.groups.Resolve(groupRef)
	if err != nil {
		return model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return model.ErrNotFound("Group not found")
	}
	if group.ID == cluster.OwningGroup {
		// 归属组始终隐式可访问，不落多余记录
		return nil
	}

	logger.Infof("%s granting %s access to %s", user.ID, group.ID, cluster.ID)
	if err := s.access.AddGroupToCluster(group.ID, cluster.ID); err != nil {
		return model.ErrStore(err, "granting group access to cluster failed")
	}
	return nil
}

// Revoke 撤销组对集群的访问权。归属组的访问权不可撤销。
// 持有存量实例的组可被撤销：实例保留，但不再接受新安装。
func (s *AccessService) Revoke(user *model.User, clusterID, groupRef string) *model.APIError {
	cluster, apiErr := s.ownedCluster(user, clusterID)
	if apiErr != nil {
		return apiErr
	}

	if groupRef == model.WildcardID || groupRef == model.WildcardName {
		logger.Infof("%s removing universal group access to %s", user.ID, cluster.ID)
		if err := s.access.RemoveGroupFromCluster(model.WildcardID, cluster.ID); err != nil {
			return model.ErrStore(err, "removing group access to cluster failed")
		}
		return nil
	}

	group, err := s.groups.Resolve(groupRef)
	if err != nil {
		return model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return model.ErrNotFound("Group not found")
	}
	if group.ID == cluster.OwningGroup {
		return model.ErrBadRequest("Cannot deny cluster access to owning group")
	}

	logger.Infof("%s removing %s access to %s", user.ID, group.ID, cluster.ID)
	if err := s.access.RemoveGroupFromCluster(group.ID, cluster.ID); err != nil {
		return model.ErrStore(err, "removing group access to cluster failed")
	}
	return nil
}

// ListAllowedApps 列出组在集群上获准使用的应用。
// 管理员、集群归属组成员和该组成员可查询。
func (s *AccessService) ListAllowedApps(user *model.User, clusterID, groupRef string) ([]string, *model.APIError) {
	cluster, err := s.clusters.FindByID(clusterID)
	if err != nil {
		return nil, model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return nil, model.ErrNotFound("Cluster not found")
	}
	group, err := s.groups.Resolve(groupRef)
	if err != nil {
		return nil, model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return nil, model.ErrNotFound("Group not found")
	}

	if !user.Admin {
		inOwner, apiErr := s.auth.UserInGroup(user.ID, cluster.OwningGroup)
		if apiErr != nil {
			return nil, apiErr
		}
		inGroup, apiErr := s.auth.UserInGroup(user.ID, group.ID)
		if apiErr != nil {
			return nil, apiErr
		}
		if !inOwner && !inGroup {
			return nil, model.ErrForbidden()
		}
	}

	apps, err2 := s.access.ListAllowedApps(group.ID, cluster.ID)
	if err2 != nil {
		return nil, model.ErrStore(err2, "application grant lookup failed")
	}
	return apps, nil
}

// AllowApp 允许组在集群上使用应用；app 可为 "*"
func (s *AccessService) AllowApp(user *model.User, clusterID, groupRef, app string) *model.APIError {
	cluster, apiErr := s.ownedCluster(user, clusterID)
	if apiErr != nil {
		return apiErr
	}
	group, err := s.groups.Resolve(groupRef)
	if err != nil {
		return model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return model.ErrNotFound("Group not found")
	}

	logger.Infof("%s granting permission for %s to use %s on %s", user.ID, group.ID, app, cluster.ID)
	if err := s.access.AllowApp(group.ID, cluster.ID, app); err != nil {
		return model.ErrStore(err, "granting group permission to use application failed")
	}
	return nil
}

// DenyApp 撤销组在集群上使用应用的许可
func (s *AccessService) DenyApp(user *model.User, clusterID, groupRef, app string) *model.APIError {
	cluster, apiErr := s.ownedCluster(user, clusterID)
	if apiErr != nil {
		return apiErr
	}
	group, err := s.groups.Resolve(groupRef)
	if err != nil {
		return model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return model.ErrNotFound("Group not found")
	}

	logger.Infof("%s revoking permission for %s to use %s on %s", user.ID, group.ID, app, cluster.ID)
	if err := s.access.DenyApp(group.ID, cluster.ID, app); err != nil {
		return model.ErrStore(err, "removing group permission to use application failed")
	}
	return nil
}

// GroupMayDeploy 组是否可在集群上部署应用：
// 需有访问权（显式、通配或归属）；非归属组还需应用许可。
func (s *AccessService) GroupMayDeploy(groupID string, cluster *model.Cluster, app string) (bool, *model.APIError) {
	if groupID == cluster.OwningGroup {
		return true, nil
	}
	hasAccess, err := s.access.GroupHasAccess(groupID, cluster.ID)
	if err != nil {
		return false, model.ErrStore(err, "access lookup failed")
	}
	if !hasAccess {
		return false, nil
	}
	mayUse, err := s.access.GroupMayUseApp(groupID, cluster.ID, app)
	if err != nil {
		return false, model.ErrStore(err, "application grant lookup failed")
	}
	return mayUse, nil
}

// GroupHasAccess 组是否可访问集群（含归属和通配）
func (s *AccessService) GroupHasAccess(groupID string, cluster *model.Cluster) (bool, *model.APIError) {
	if groupID == cluster.OwningGroup {
		return true, nil
	}
	hasAccess, err := s.access.GroupHasAccess(groupID, cluster.ID)
	if err != nil {
		return false, model.ErrStore(err, "access lookup failed")
	}
	return hasAccess, nil
}

// ownedCluster 解析集群并要求调用者是管理员或归属组成员
func (s *AccessService) ownedCluster(user *model.User, clusterID string) (*model.Cluster, *model.APIError) {
	cluster, err := s.clusters.FindByID(clusterID)
	if err != nil {
		return nil, model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return nil, model.ErrNotFound("Cluster not found")
	}
	if apiErr := s.auth.RequireMembership(user, cluster.OwningGroup); apiErr != nil {
		return nil, apiErr
	}
	return cluster, nil
}
