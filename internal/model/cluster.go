package model

import (
	"time"

	"gorm.io/datatypes"
)

// 通配符访问哨兵：授予所有组访问权
const (
	WildcardID   = "*"
	WildcardName = "<all>"
)

// GeoLocation 集群地理位置
type GeoLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Cluster 已注册的Kubernetes集群及其归属组和kubeconfig
type Cluster struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(32)"`
	Name        string `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	OwningGroup string `json:"owningGroup" gorm:"type:varchar(32);not null;index"`
	// OwningOrganization 运营该集群的机构
	OwningOrganization string `json:"owningOrganization" gorm:"type:varchar(200)"`
	// Kubeconfig 原样存储，不在JSON中暴露
	Kubeconfig string `json:"-" gorm:"type:text"`
	// SystemNamespace 从kubeconfig默认上下文提取的命名空间，Tiller所在
	SystemNamespace string         `json:"systemNamespace" gorm:"type:varchar(100)"`
	Locations       datatypes.JSON `json:"-" gorm:"type:json"`
	Valid           bool           `json:"-" gorm:"type:boolean;default:true"`

	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"-" gorm:"autoUpdateTime"`
}

func (Cluster) TableName() string {
	return "clusters"
}

// ClusterAccess 组-集群访问授权。GroupID 为 "*" 表示通配授权。
type ClusterAccess struct {
	ID        uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	GroupID   string `json:"groupId" gorm:"type:varchar(32);not null;index;uniqueIndex:idx_access"`
	ClusterID string `json:"clusterId" gorm:"type:varchar(32);not null;index;uniqueIndex:idx_access"`

	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
}

func (ClusterAccess) TableName() string {
	return "cluster_access"
}

// ClusterAppGrant 组-集群-应用使用许可。Application 为 "*" 表示允许全部应用。
// 仅在 {Group, Cluster} 访问授权存在时有意义。
type ClusterAppGrant struct {
	ID          uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	GroupID     string `json:"groupId" gorm:"type:varchar(32);not null;index;uniqueIndex:idx_app_grant"`
	ClusterID   string `json:"clusterId" gorm:"type:varchar(32);not null;index;uniqueIndex:idx_app_grant"`
	Application string `json:"application" gorm:"type:varchar(200);not null;uniqueIndex:idx_app_grant"`

	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
}

func (ClusterAppGrant) TableName() string {
	return "cluster_app_grants"
}
