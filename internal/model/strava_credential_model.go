package model

// StravaCredential is the single active token record per local user.
// Plaintext tokens are never persisted, both columns hold ciphertext.
type StravaCredential struct {
	UserID          uint   `gorm:"column:user_id;primaryKey"`
	AccessTokenEnc  string `gorm:"column:access_token_enc"`
	RefreshTokenEnc string `gorm:"column:refresh_token_enc"`
	ExpiresAt       int64  `gorm:"column:expires_at"`
	CreatedAt       int64  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       int64  `gorm:"column:updated_at;autoUpdateTime"`
}
