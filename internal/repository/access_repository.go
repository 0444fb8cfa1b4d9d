package repository

import (
	"errors"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"gorm.io/gorm"
)

// AccessRepository 组-集群访问授权与应用使用许可
type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// AddGroupToCluster 授予组（或通配符"*"）对集群的访问权（幂等）
func (r *AccessRepository) AddGroupToCluster(groupID, clusterID string) error {
	var existing model.ClusterAccess
	err := r.db.Where("group_id = ? AND cluster_id = ?", groupID, clusterID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.Create(&model.ClusterAccess{GroupID: groupID, ClusterID: clusterID}).Error
}

// RemoveGroupFromCluster 撤销组（或通配符"*"）对集群的访问权（幂等）。
// 同时清除该组在该集群上的应用许可。
func (r *AccessRepository) RemoveGroupFromCluster(groupID, clusterID string) error {
	if err := r.db.Where("group_id = ? AND cluster_id = ?", groupID, clusterID).
		Delete(&model.ClusterAccess{}).Error; err != nil {
		return err
	}
	if groupID == model.WildcardID {
		return nil
	}
	return r.db.Where("group_id = ? AND cluster_id = ?", groupID, clusterID).
		Delete(&model.ClusterAppGrant{}).Error
}

// ListGroupsAllowedOnCluster 列出对集群有显式访问授权的组ID（可能含通配符）。
// 归属组的隐式访问权不在此列，由调用方补充。
func (r *AccessRepository) ListGroupsAllowedOnCluster(clusterID string) ([]string, error) {
	var grants []model.ClusterAccess
	if err := r.db.Where("cluster_id = ?", clusterID).Find(&grants).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(grants))
	for _, grant := range grants {
		ids = append(ids, grant.GroupID)
	}
	return ids, nil
}

// GroupHasAccess 组是否可访问集群：显式授权或通配授权。
// 归属组的隐式访问由调用方判定。
func (r *AccessRepository) GroupHasAccess(groupID, clusterID string) (bool, error) {
	var n int64
	err := r.db.Model(&model.ClusterAccess{}).
		Where("cluster_id = ? AND group_id IN ?", clusterID, []string{groupID, model.WildcardID}).
		Count(&n).Error
	return n > 0, err
}

// AllowApp 允许组在集群上使用应用（幂等）；app 为 "*" 表示全部应用
func (r *AccessRepository) AllowApp(groupID, clusterID, app string) error {
	var existing model.ClusterAppGrant
	err := r.db.Where("group_id = ? AND cluster_id = ? AND application = ?", groupID, clusterID, app).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.Create(&model.ClusterAppGrant{GroupID: groupID, ClusterID: clusterID, Application: app}).Error
}

// DenyApp 撤销组在集群上使用应用的许可（幂等）
func (r *AccessRepository) DenyApp(groupID, clusterID, app string) error {
	return r.db.Where("group_id = ? AND cluster_id = ? AND application = ?", groupID, clusterID, app).
		Delete(&model.ClusterAppGrant{}).Error
}

// ListAllowedApps 列出组在集群上获准使用的应用名
func (r *AccessRepository) ListAllowedApps(groupID, clusterID string) ([]string, error) {
	var grants []model.ClusterAppGrant
	if err := r.db.Where("group_id = ? AND cluster_id = ?", groupID, clusterID).
		Order("application").Find(&grants).Error; err != nil {
		return nil, err
	}
	apps := make([]string, 0, len(grants))
	for _, grant := range grants {
		apps = append(apps, grant.Application)
	}
	return apps, nil
}

// GroupMayUseApp 组是否可在集群上使用应用：许可列表命中或含"*"条目
func (r *AccessRepository) GroupMayUseApp(groupID, clusterID, app string) (bool, error) {
	var n int64
	err := r.db.Model(&model.ClusterAppGrant{}).
		Where("group_id = ? AND cluster_id = ? AND application IN ?", groupID, clusterID, []string{app, model.WildcardID}).
		Count(&n).Error
	return n > 0, err
}
