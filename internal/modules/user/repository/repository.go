package repository

import (
	"context"
	"errors"
	"time"

	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// FindOrCreateByEmail returns the identity for email, creating it on first sign-in.
	FindOrCreateByEmail(ctx context.Context, email string) (*entity.User, error)
	TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Where("email = ?", entity.NormalizeEmail(email)).
		First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func (r *userRepository) FindOrCreateByEmail(ctx context.Context, email string) (*entity.User, error) {
	normalized := entity.NormalizeEmail(email)

	var user entity.User
	if err := r.db.WithContext(ctx).
		Where(entity.User{Email: normalized}).
		FirstOrCreate(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a concurrent first sign-in
			return r.FindByEmail(ctx, normalized)
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", id).
		Update("last_sign_in_at", at).Error
}

func mapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.ErrNotFound
	}
	return err
}
