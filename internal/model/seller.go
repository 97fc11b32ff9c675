package model

import "time"

// Seller 卖家，主键为上游 shop_id，首次写入后不再更新
type Seller struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"size:255;index" json:"name"`
	City      string    `gorm:"size:255" json:"city"`
	IsFlagged bool      `gorm:"default:false" json:"is_flagged"`
	CreatedAt time.Time `json:"created_at"`
}

func (Seller) TableName() string {
	return "sellers"
}
