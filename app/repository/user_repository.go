package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/internal/pkg/workflow"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", workflow.ErrNotFound, email)
		}
		return nil, err
	}
	return &user, nil
}

// GetByProvider retrieves a user by their OAuth provider identity
func (r *userRepository) GetByProvider(provider, providerID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("provider = ? AND provider_id = ?", provider, providerID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash resolves an active API key hash to its user.
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("api_key_hash = ? AND api_key_hash <> ''", trimmed).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// OfficersByDepartment returns the available officers of one department,
// least loaded first.
func (r *userRepository) OfficersByDepartment(department string) ([]models.User, error) {
	var officers []models.User
	err := r.db.
		Where("role = ? AND department = ? AND is_available = ?", models.ROLE_OFFICER, department, true).
		Order("active_tasks ASC").
		Find(&officers).Error
	return officers, err
}

// AvailableOfficers returns every available officer regardless of department.
// Used as the cross-department fallback pool.
func (r *userRepository) AvailableOfficers() ([]models.User, error) {
	var officers []models.User
	err := r.db.
		Where("role = ? AND is_available = ?", models.ROLE_OFFICER, true).
		Order("active_tasks ASC").
		Find(&officers).Error
	return officers, err
}

// AdjustActiveTasks shifts an officer's open workload counter. The counter
// never goes below zero even if bookkeeping drifts.
func (r *userRepository) AdjustActiveTasks(officerID uint, delta int) error {
	if delta >= 0 {
		return r.db.Model(&models.User{}).
			Where("id = ?", officerID).
			Update("active_tasks", gorm.Expr("active_tasks + ?", delta)).Error
	}
	return r.db.Model(&models.User{}).
		Where("id = ?", officerID).
		Update("active_tasks", gorm.Expr("GREATEST(active_tasks + ?, 0)", delta)).Error
}

// AdjustTrustScore shifts the trust score of the account behind the given
// email. Reporters without an account simply have no score to adjust; that
// is not an error.
func (r *userRepository) AdjustTrustScore(email string, delta int) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	return r.db.Model(&models.User{}).
		Where("email = ?", email).
		Update("trust_score", gorm.Expr("trust_score + ?", delta)).Error
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// Delete soft deletes a user by their ID
func (r *userRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, id).Error
}

// List retrieves a paginated list of users
func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}
