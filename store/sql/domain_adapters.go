package sqlstore

import (
	"time"

	"github.com/goliatone/go-identity/core"
)

func newUserRecord(in core.CreateUserInput, now time.Time) *userRecord {
	return &userRecord{
		Email:          in.Email,
		HashedPassword: in.HashedPassword,
		Name:           in.Name,
		IsActive:       true,
		IsVerified:     in.IsVerified,
		IsSuperuser:    in.IsSuperuser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	user := core.User{
		ID:             r.ID,
		Email:          r.Email,
		HashedPassword: r.HashedPassword,
		Name:           r.Name,
		IsActive:       r.IsActive,
		IsVerified:     r.IsVerified,
		IsSuperuser:    r.IsSuperuser,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.VerificationCodeExpiry != nil {
		value := *r.VerificationCodeExpiry
		user.VerificationCodeExpiry = &value
	}
	return user
}

func newAPIKeyRecord(in core.SaveAPIKeyInput, now time.Time) *apiKeyRecord {
	return &apiKeyRecord{
		UserID:       in.UserID,
		PublicID:     in.PublicID,
		HashedSecret: in.HashedSecret,
		Name:         in.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *apiKeyRecord) toDomain() core.APIKey {
	if r == nil {
		return core.APIKey{}
	}
	return core.APIKey{
		ID:           r.ID,
		UserID:       r.UserID,
		PublicID:     r.PublicID,
		HashedSecret: r.HashedSecret,
		Name:         r.Name,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
