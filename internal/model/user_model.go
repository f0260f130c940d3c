package model

type User struct {
	ID           uint   `gorm:"column:id;primaryKey"`
	Email        string `gorm:"column:email;uniqueIndex"`
	PasswordHash string `gorm:"column:password_hash"`
	Name         string `gorm:"column:name"`
	CreatedAt    int64  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    int64  `gorm:"column:updated_at;autoUpdateTime"`
}
