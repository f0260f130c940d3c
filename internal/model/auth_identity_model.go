package model

// AuthIdentity maps an external provider identity to the local user that
// owns it. The composite unique index is what makes the linking upsert
// safe against concurrent callbacks.
type AuthIdentity struct {
	ID                uint   `gorm:"column:id;primaryKey"`
	UserID            uint   `gorm:"column:user_id;index"`
	Provider          string `gorm:"column:provider;uniqueIndex:ux_auth_identities_provider_subject"`
	ProviderUserID    string `gorm:"column:provider_user_id;uniqueIndex:ux_auth_identities_provider_subject"`
	EmailFromProvider string `gorm:"column:email_from_provider"`
	CreatedAt         int64  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         int64  `gorm:"column:updated_at;autoUpdateTime"`
}
