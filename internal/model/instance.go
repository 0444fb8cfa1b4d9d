package model

import "time"

// ApplicationInstance 部署在某个集群上的Helm release。
// Name 为租户限定名：<group-name>-<release>，在集群内唯一。
type ApplicationInstance struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(32)"`
	Name        string `json:"name" gorm:"type:varchar(200);not null;index;uniqueIndex:idx_instance_name"`
	Application string `json:"application" gorm:"type:varchar(200);not null"`
	OwningGroup string `json:"group" gorm:"type:varchar(32);not null;index"`
	ClusterID   string `json:"cluster" gorm:"column:cluster_id;type:varchar(32);not null;index;uniqueIndex:idx_instance_name"`
	// Config 用户提供的helm values配置文本
	Config string `json:"-" gorm:"type:text"`

	CreatedAt time.Time `json:"created" gorm:"autoCreateTime"`
}

func (ApplicationInstance) TableName() string {
	return "application_instances"
}
