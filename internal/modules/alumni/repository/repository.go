package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Filter narrows the approved directory listing.
type Filter struct {
	Batch  *entity.BatchRange
	Search string
	City   string
	SortBy string // "name", "batch", "newest"
	Offset int
	Limit  int
}

type BatchCount struct {
	BatchStart int   `json:"batch_start"`
	BatchEnd   int   `json:"batch_end"`
	Count      int64 `json:"count"`
}

type AlumniRepository interface {
	Create(ctx context.Context, profile *entity.AlumniProfile) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.AlumniProfile, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.AlumniProfile, error)
	FindByEmail(ctx context.Context, email string) (*entity.AlumniProfile, error)
	// FindByUserIDOrEmail matches pending and approved rows alike.
	FindByUserIDOrEmail(ctx context.Context, userID uuid.UUID, email string) (*entity.AlumniProfile, error)
	FindByPhone(ctx context.Context, phone string) (*entity.AlumniProfile, error)
	ListApproved(ctx context.Context, filter Filter) ([]*entity.AlumniProfile, int64, error)
	ListPending(ctx context.Context) ([]*entity.AlumniProfile, error)
	// Approve flips a pending row; it reports false when no pending row had that id.
	Approve(ctx context.Context, id uuid.UUID, approvedBy string, at time.Time) (bool, error)
	// DeletePending removes an unapproved row; approved rows are never matched.
	DeletePending(ctx context.Context, id uuid.UUID) (bool, error)
	Update(ctx context.Context, profile *entity.AlumniProfile) error
	CountByStatus(ctx context.Context) (approved int64, pending int64, err error)
	CountApprovedByBatch(ctx context.Context) ([]BatchCount, error)
}

type alumniRepository struct {
	db *gorm.DB
}

func NewAlumniRepository(db *gorm.DB) AlumniRepository {
	return &alumniRepository{db: db}
}

func (r *alumniRepository) Create(ctx context.Context, profile *entity.AlumniProfile) error {
	return mapError(r.db.WithContext(ctx).Create(profile).Error)
}

func (r *alumniRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.AlumniProfile, error) {
	return r.first(ctx, r.db.Where("id = ?", id))
}

func (r *alumniRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.AlumniProfile, error) {
	return r.first(ctx, r.db.Where("user_id = ?", userID))
}

func (r *alumniRepository) FindByEmail(ctx context.Context, email string) (*entity.AlumniProfile, error) {
	return r.first(ctx, r.db.Where("email = ?", entity.NormalizeEmail(email)))
}

func (r *alumniRepository) FindByUserIDOrEmail(ctx context.Context, userID uuid.UUID, email string) (*entity.AlumniProfile, error) {
	return r.first(ctx, r.db.Where("user_id = ? OR email = ?", userID, entity.NormalizeEmail(email)))
}

func (r *alumniRepository) FindByPhone(ctx context.Context, phone string) (*entity.AlumniProfile, error) {
	return r.first(ctx, r.db.Where("phone = ?", phone).Order("is_approved DESC"))
}

func (r *alumniRepository) first(ctx context.Context, query *gorm.DB) (*entity.AlumniProfile, error) {
	var profile entity.AlumniProfile
	if err := query.WithContext(ctx).First(&profile).Error; err != nil {
		return nil, mapError(err)
	}
	return &profile, nil
}

func (r *alumniRepository) ListApproved(ctx context.Context, filter Filter) ([]*entity.AlumniProfile, int64, error) {
	var profiles []*entity.AlumniProfile
	var total int64

	query := r.db.WithContext(ctx).
		Model(&entity.AlumniProfile{}).
		Where("is_approved = ?", true)

	if filter.Batch != nil {
		query = query.Where("batch_start = ? AND batch_end = ?", filter.Batch.Start, filter.Batch.End)
	}

	if filter.Search != "" {
		like := "%" + escapeLike(filter.Search) + "%"
		query = query.Where("full_name ILIKE ? OR roll_number ILIKE ? OR current_job ILIKE ? OR company ILIKE ?", like, like, like, like)
	}

	if filter.City != "" {
		query = query.Where("LOWER(city) = LOWER(?)", filter.City)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.SortBy {
	case "batch":
		query = query.Order("batch_start DESC").Order("full_name ASC")
	case "newest":
		query = query.Order("approved_at DESC NULLS LAST").Order("created_at DESC")
	default:
		query = query.Order("full_name ASC")
	}

	if err := query.Offset(filter.Offset).Limit(filter.Limit).Find(&profiles).Error; err != nil {
		return nil, 0, err
	}

	return profiles, total, nil
}

func (r *alumniRepository) ListPending(ctx context.Context) ([]*entity.AlumniProfile, error) {
	var profiles []*entity.AlumniProfile
	if err := r.db.WithContext(ctx).
		Where("is_approved = ?", false).
		Order("created_at ASC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *alumniRepository) Approve(ctx context.Context, id uuid.UUID, approvedBy string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.AlumniProfile{}).
		Where("id = ? AND is_approved = ?", id, false).
		Updates(map[string]interface{}{
			"is_approved": true,
			"approved_at": at,
			"approved_by": approvedBy,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *alumniRepository) DeletePending(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND is_approved = ?", id, false).
		Delete(&entity.AlumniProfile{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Update never inserts. A row removed in the meantime (rejected mid-edit) is ErrNotFound.
func (r *alumniRepository) Update(ctx context.Context, profile *entity.AlumniProfile) error {
	// Approval columns are owned by Approve; self-service saves must not touch them.
	result := r.db.WithContext(ctx).
		Model(profile).
		Select("*").
		Omit("id", "is_approved", "approved_at", "approved_by", "user_id", "email", "created_at").
		Updates(profile)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *alumniRepository) CountByStatus(ctx context.Context) (int64, int64, error) {
	var rows []struct {
		IsApproved bool
		Count      int64
	}
	if err := r.db.WithContext(ctx).
		Model(&entity.AlumniProfile{}).
		Select("is_approved, COUNT(*) AS count").
		Group("is_approved").
		Scan(&rows).Error; err != nil {
		return 0, 0, err
	}

	var approved, pending int64
	for _, row := range rows {
		if row.IsApproved {
			approved = row.Count
		} else {
			pending = row.Count
		}
	}
	return approved, pending, nil
}

func (r *alumniRepository) CountApprovedByBatch(ctx context.Context) ([]BatchCount, error) {
	var counts []BatchCount
	if err := r.db.WithContext(ctx).
		Model(&entity.AlumniProfile{}).
		Select("batch_start, batch_end, COUNT(*) AS count").
		Where("is_approved = ?", true).
		Group("batch_start, batch_end").
		Order("batch_start DESC").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user text match literally inside ILIKE (backslash is Postgres' default escape).
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperror.ErrConflict
	default:
		return err
	}
}
