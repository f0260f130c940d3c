package service

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/model"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdentityService maintains the mapping between local users and external
// provider identities. A provider identity belongs to at most one local
// user at any time.
type IdentityService struct {
	database *gorm.DB
}

func NewIdentityService(database *gorm.DB) *IdentityService {
	return &IdentityService{
		database: database,
	}
}

func (is *IdentityService) Init() error {
	return nil
}

// LinkIdentity records that the athlete in the exchange payload belongs to
// the given local user. Linking a pair that already belongs to a different
// user fails with ErrIdentityConflict, re-linking the same pair is an
// idempotent upsert. The write goes through an ON CONFLICT clause on the
// (provider, provider_user_id) unique index so a concurrent callback
// cannot slip a duplicate row between check and write.
func (is *IdentityService) LinkIdentity(userID uint, payload *config.TokenPayload) error {
	if payload.Athlete == nil || payload.Athlete.ID == 0 {
		// Only the initial code exchange carries the athlete object, a
		// refresh response never does.
		return config.ErrMissingSubject
	}

	subject := strconv.FormatInt(payload.Athlete.ID, 10)

	return is.database.Transaction(func(tx *gorm.DB) error {
		var existing model.AuthIdentity
		res := tx.First(&existing, "provider = ? AND provider_user_id = ?", config.ProviderName, subject)

		if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		if res.Error == nil && existing.UserID != userID {
			log.Warn().Uint("user_id", userID).Uint("linked_user_id", existing.UserID).Str("provider_user_id", subject).Msg("Provider identity already linked to another user")
			return fmt.Errorf("%w: athlete %s", config.ErrIdentityConflict, subject)
		}

		identity := model.AuthIdentity{
			UserID:            userID,
			Provider:          config.ProviderName,
			ProviderUserID:    subject,
			EmailFromProvider: payload.Athlete.Email,
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "provider"},
				{Name: "provider_user_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id",
				"email_from_provider",
				"updated_at",
			}),
		}).Create(&identity).Error
	})
}

// UnlinkIdentity removes every provider link owned by the user. Unlinking
// a user with no links is a no-op.
func (is *IdentityService) UnlinkIdentity(userID uint) error {
	return is.database.Delete(&model.AuthIdentity{}, "provider = ? AND user_id = ?", config.ProviderName, userID).Error
}

// GetIdentity returns the provider link for a user, or nil when the user
// has none.
func (is *IdentityService) GetIdentity(userID uint) (*model.AuthIdentity, error) {
	var identity model.AuthIdentity
	res := is.database.First(&identity, "provider = ? AND user_id = ?", config.ProviderName, userID)

	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if res.Error != nil {
		return nil, res.Error
	}

	return &identity, nil
}
