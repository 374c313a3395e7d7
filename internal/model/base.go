package model

import (
	"time"
)

// BaseModel 存储层分配的身份
// ID 在首次 INSERT 时生成，之后的 UPDATE/DELETE/NO_CHANGE 均复用
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
