package repository

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ClusterRepository struct {
	db    *gorm.DB
	cache cache.Cache
	ttls  CacheTTLs
}

func NewClusterRepository(db *gorm.DB, c cache.Cache, ttls CacheTTLs) *ClusterRepository {
	return &ClusterRepository{db: db, cache: c, ttls: ttls}
}

func clusterIDKey(id string) string     { return "cluster:id:" + id }
func clusterNameKey(name string) string { return "cluster:name:" + name }
func clusterReachKey(id string) string  { return "cluster:reach:" + id }

func (r *ClusterRepository) invalidate(cluster *model.Cluster) {
	r.cache.Delete(clusterIDKey(cluster.ID), clusterNameKey(cluster.Name))
}

// Create 创建集群记录
func (r *ClusterRepository) Create(cluster *model.Cluster) error {
	if err := r.db.Create(cluster).Error; err != nil {
		return err
	}
	r.invalidate(cluster)
	return nil
}

// Update 更新集群记录
func (r *ClusterRepository) Update(cluster *model.Cluster) error {
	if err := r.db.Model(&model.Cluster{}).
		Where("id = ?", cluster.ID).
		Omit("created_at", "name").
		Updates(map[string]interface{}{
			"owning_group":        cluster.OwningGroup,
			"owning_organization": cluster.OwningOrganization,
			"kubeconfig":          cluster.Kubeconfig,
			"system_namespace":    cluster.SystemNamespace,
			"valid":               cluster.Valid,
		}).Error; err != nil {
		return err
	}
	r.invalidate(cluster)
	return nil
}

// Delete 删除集群记录及其访问授权
func (r *ClusterRepository) Delete(id string) error {
	cluster, err := r.findByIDUncached(id)
	if err != nil {
		return err
	}
	if err := r.db.Where("cluster_id = ?", id).Delete(&model.ClusterAccess{}).Error; err != nil {
		return err
	}
	if err := r.db.Where("cluster_id = ?", id).Delete(&model.ClusterAppGrant{}).Error; err != nil {
		return err
	}
	if err := r.db.Delete(&model.Cluster{}, "id = ?", id).Error; err != nil {
		return err
	}
	if cluster != nil {
		r.invalidate(cluster)
	}
	r.cache.Delete(clusterReachKey(id))
	return nil
}

func (r *ClusterRepository) findByIDUncached(id string) (*model.Cluster, error) {
	var cluster model.Cluster
	err := r.db.Where("id = ?", id).First(&cluster).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cluster, nil
}

// FindByID 根据ID查找集群
func (r *ClusterRepository) FindByID(id string) (*model.Cluster, error) {
	var cached model.Cluster
	if cacheGet(r.cache, "cluster", clusterIDKey(id), &cached) {
		return &cached, nil
	}
	cluster, err := r.findByIDUncached(id)
	if err != nil || cluster == nil {
		return cluster, err
	}
	cachePut(r.cache, clusterIDKey(cluster.ID), cluster, r.ttls.Entity)
	return cluster, nil
}

// FindByName 根据名称查找集群
func (r *ClusterRepository) FindByName(name string) (*model.Cluster, error) {
	var cached model.Cluster
	if cacheGet(r.cache, "cluster", clusterNameKey(name), &cached) {
		return &cached, nil
	}
	var cluster model.Cluster
	err := r.db.Where("name = ?", name).First(&cluster).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cachePut(r.cache, clusterNameKey(cluster.Name), &cluster, r.ttls.Entity)
	return &cluster, nil
}

// Resolve 按名称或ID解析集群
func (r *ClusterRepository) Resolve(nameOrID string) (*model.Cluster, error) {
	if strings.HasPrefix(nameOrID, idgen.ClusterIDPrefix) {
		return r.FindByID(nameOrID)
	}
	return r.FindByName(nameOrID)
}

// List 列出全部集群
func (r *ClusterRepository) List() ([]model.Cluster, error) {
	var clusters []model.Cluster
	if err := r.db.Order("name").Find(&clusters).Error; err != nil {
		return nil, err
	}
	return clusters, nil
}

// ListByGroup 列出归属某组的集群
func (r *ClusterRepository) ListByGroup(groupID string) ([]model.Cluster, error) {
	var clusters []model.Cluster
	if err := r.db.Where("owning_group = ?", groupID).Order("name").Find(&clusters).Error; err != nil {
		return nil, err
	}
	return clusters, nil
}

// GetLocations 读取集群地理位置
func (r *ClusterRepository) GetLocations(id string) ([]model.GeoLocation, error) {
	cluster, err := r.FindByID(id)
	if err != nil || cluster == nil {
		return nil, err
	}
	if len(cluster.Locations) == 0 {
		return nil, nil
	}
	var locations []model.GeoLocation
	if err := json.Unmarshal(cluster.Locations, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// SetLocations 写入集群地理位置
func (r *ClusterRepository) SetLocations(id string, locations []model.GeoLocation) error {
	raw, err := json.Marshal(locations)
	if err != nil {
		return err
	}
	cluster, err := r.findByIDUncached(id)
	if err != nil {
		return err
	}
	if err := r.db.Model(&model.Cluster{}).
		Where("id = ?", id).
		Update("locations", datatypes.JSON(raw)).Error; err != nil {
		return err
	}
	if cluster != nil {
		r.invalidate(cluster)
	}
	return nil
}

// GetCachedReachability 读取可达性缓存；缓存过期或不存在时 ok 为 false
func (r *ClusterRepository) GetCachedReachability(id string) (reachable, ok bool) {
	raw, ok := r.cache.Get(clusterReachKey(id))
	if !ok {
		return false, false
	}
	return raw == "true", true
}

// CacheReachability 写入可达性缓存
func (r *ClusterRepository) CacheReachability(id string, reachable bool) {
	value := "false"
	if reachable {
		value = "true"
	}
	r.cache.Set(clusterReachKey(id), value, r.ttls.Reachability)
}

// Count 集群总数
func (r *ClusterRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.Cluster{}).Count(&n).Error
	return n, err
}
