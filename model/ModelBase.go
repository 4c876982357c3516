package model

import (
	"time"

	"gorm.io/gorm"
)

type ModelBase struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"` // 软删除
}

// TenantModel 行级隔离的业务表嵌入它，tenant_id 由会话自动填充并参与所有查询条件
type TenantModel struct {
	ModelBase
	TenantID string `gorm:"size:64;index;not null" json:"tenant_id"`
}
