package repository

import (
	"errors"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"gorm.io/gorm"
)

type InstanceRepository struct {
	db    *gorm.DB
	cache cache.Cache
	ttls  CacheTTLs
}

func NewInstanceRepository(db *gorm.DB, c cache.Cache, ttls CacheTTLs) *InstanceRepository {
	return &InstanceRepository{db: db, cache: c, ttls: ttls}
}

func instanceIDKey(id string) string { return "instance:id:" + id }

// Create 创建实例记录
func (r *InstanceRepository) Create(instance *model.ApplicationInstance) error {
	if err := r.db.Create(instance).Error; err != nil {
		return err
	}
	r.cache.Delete(instanceIDKey(instance.ID))
	return nil
}

// Delete 删除实例记录
func (r *InstanceRepository) Delete(id string) error {
	if err := r.db.Delete(&model.ApplicationInstance{}, "id = ?", id).Error; err != nil {
		return err
	}
	r.cache.Delete(instanceIDKey(id))
	return nil
}

// FindByID 根据ID查找实例
func (r *InstanceRepository) FindByID(id string) (*model.ApplicationInstance, error) {
	var cached model.ApplicationInstance
	if cacheGet(r.cache, "instance", instanceIDKey(id), &cached) {
		return &cached, nil
	}
	var instance model.ApplicationInstance
	err := r.db.Where("id = ?", id).First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cachePut(r.cache, instanceIDKey(instance.ID), &instance, r.ttls.Record)
	return &instance, nil
}

// FindByName 根据集群内租户限定名查找实例
func (r *InstanceRepository) FindByName(clusterID, name string) (*model.ApplicationInstance, error) {
	var instance model.ApplicationInstance
	err := r.db.Where("cluster_id = ? AND name = ?", clusterID, name).First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &instance, nil
}

// List 按 (组|*, 集群|*) 谓词列出实例；空串为通配
func (r *InstanceRepository) List(groupID, clusterID string) ([]model.ApplicationInstance, error) {
	query := r.db.Model(&model.ApplicationInstance{})
	if groupID != "" {
		query = query.Where("owning_group = ?", groupID)
	}
	if clusterID != "" {
		query = query.Where("cluster_id = ?", clusterID)
	}
	var instances []model.ApplicationInstance
	if err := query.Order("name").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// Count 实例总数
func (r *InstanceRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.ApplicationInstance{}).Count(&n).Error
	return n, err
}
