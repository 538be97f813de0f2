package bootstrap

import (
	"time"

	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/pkg/logger"
	"gorm.io/gorm"
)

const demoEmail = "demo.alumnus@example.com"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.AlumniProfile{},
	)
}

// SeedAdminUsers creates identity rows for the privileged emails so they show up before
// their first sign in. Admins never get a profile row from seeding.
func SeedAdminUsers(db *gorm.DB, adminEmails []string) error {
	for _, email := range adminEmails {
		user := entity.User{Email: entity.NormalizeEmail(email)}
		if err := db.Where("email = ?", user.Email).FirstOrCreate(&user).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedDemoAlumnus inserts one approved profile so a fresh development database has
// something to browse.
func SeedDemoAlumnus(db *gorm.DB) error {
	var count int64
	if err := db.Model(&entity.User{}).
		Where("email = ?", demoEmail).
		Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		logger.Debug().Msg("demo alumnus already exists, skipping seed")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		user := entity.User{Email: demoEmail}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		profile := entity.AlumniProfile{
			UserID:     user.ID,
			FullName:   "Demo Alumnus",
			Email:      demoEmail,
			RollNumber: stringPtr("DEMO001"),
			BatchStart: 2015,
			BatchEnd:   2022,
			Bio:        stringPtr("Sample profile created for local development."),
			City:       stringPtr("Bengaluru"),
		}
		profile.MarkApproved(entity.AutoApprovedBy, time.Now())

		if err := tx.Create(&profile).Error; err != nil {
			return err
		}

		logger.Info().Str("email", demoEmail).Msg("demo alumnus seeded")
		return nil
	})
}

func stringPtr(s string) *string {
	return &s
}
