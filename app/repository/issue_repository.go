package repository

import (
	"errors"
	"fmt"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/internal/pkg/workflow"
	"gorm.io/gorm"
)

// issueRepository implements the IssueRepository interface
type issueRepository struct {
	db *gorm.DB
}

// NewIssueRepository creates a new issue repository instance
func NewIssueRepository(db *gorm.DB) IssueRepository {
	return &issueRepository{db: db}
}

// Create creates a new issue in the database
func (r *issueRepository) Create(issue *models.Issue) error {
	return r.db.Create(issue).Error
}

// GetByID retrieves an issue by its numeric ID
func (r *issueRepository) GetByID(id uint) (*models.Issue, error) {
	var issue models.Issue
	if err := r.db.First(&issue, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: issue %d", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return &issue, nil
}

// GetByPublicID retrieves an issue by its stable external reference
func (r *issueRepository) GetByPublicID(publicID string) (*models.Issue, error) {
	var issue models.Issue
	if err := r.db.Where("public_id = ?", publicID).First(&issue).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: issue %s", workflow.ErrNotFound, publicID)
		}
		return nil, err
	}
	return &issue, nil
}

// List retrieves a paginated list of issues, newest first
func (r *issueRepository) List(offset, limit int) ([]models.Issue, error) {
	var issues []models.Issue
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&issues).Error
	return issues, err
}

// ListByStatus retrieves a paginated list of issues in the given status
func (r *issueRepository) ListByStatus(status string, offset, limit int) ([]models.Issue, error) {
	var issues []models.Issue
	err := r.db.Where("status = ?", status).Order("created_at DESC").Offset(offset).Limit(limit).Find(&issues).Error
	return issues, err
}

// ListByReporterEmail retrieves all issues submitted under the given email
func (r *issueRepository) ListByReporterEmail(email string) ([]models.Issue, error) {
	var issues []models.Issue
	err := r.db.Where("reporter_email = ?", email).Order("created_at DESC").Find(&issues).Error
	return issues, err
}

// ListAssignedTo retrieves the open workload of one officer
func (r *issueRepository) ListAssignedTo(officerID uint) ([]models.Issue, error) {
	var issues []models.Issue
	err := r.db.
		Where("status NOT IN ?", []string{models.IssueStatusResolved, models.IssueStatusRejected}).
		Where("JSON_EXTRACT(assignment, '$.officer_id') = ?", officerID).
		Order("created_at DESC").
		Find(&issues).Error
	return issues, err
}

// ListActiveCandidates returns the duplicate-detection comparison pool:
// recent Pending / In Progress issues excluding the subject itself.
func (r *issueRepository) ListActiveCandidates(excludeID uint, limit int) ([]models.Issue, error) {
	var issues []models.Issue
	err := r.db.
		Where("id <> ?", excludeID).
		Where("status IN ?", []string{models.IssueStatusPending, models.IssueStatusInProgress}).
		Order("created_at DESC").
		Limit(limit).
		Find(&issues).Error
	return issues, err
}

// UpdateFromStatus persists a transitioned issue conditioned on the status
// the caller read. Zero matched rows means another actor moved the record
// first; the caller gets ErrConcurrentModification and must re-read.
func (r *issueRepository) UpdateFromStatus(issue *models.Issue, expectedStatus string) error {
	result := r.db.Model(issue).
		Where("status = ?", expectedStatus).
		Select("status", "priority", "category", "ai_analysis", "assignment", "resolution", "timeline").
		Updates(issue)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: issue %d moved out of %q", workflow.ErrConcurrentModification, issue.ID, expectedStatus)
	}
	return nil
}

// Delete soft deletes an issue. Administrative override only: workflow logic
// never deletes.
func (r *issueRepository) Delete(id uint) error {
	return r.db.Delete(&models.Issue{}, id).Error
}

// Count returns the total number of issues
func (r *issueRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Issue{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of issues in the given status
func (r *issueRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Issue{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
