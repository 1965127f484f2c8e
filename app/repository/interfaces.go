package repository

import (
	"github.com/civixhq/civix/app/models"
	"gorm.io/gorm"
)

// IssueRepository defines the interface for issue-related database operations.
// UpdateFromStatus is the only way a status transition reaches storage.
type IssueRepository interface {
	Create(issue *models.Issue) error
	GetByID(id uint) (*models.Issue, error)
	GetByPublicID(publicID string) (*models.Issue, error)
	List(offset, limit int) ([]models.Issue, error)
	ListByStatus(status string, offset, limit int) ([]models.Issue, error)
	ListByReporterEmail(email string) ([]models.Issue, error)
	ListAssignedTo(officerID uint) ([]models.Issue, error)
	ListActiveCandidates(excludeID uint, limit int) ([]models.Issue, error)
	UpdateFromStatus(issue *models.Issue, expectedStatus string) error
	Delete(id uint) error
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
}

// UserRepository defines the interface for user-related database operations,
// including the officer-pool queries the assignment scorer feeds on.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByProvider(provider, providerID string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	OfficersByDepartment(department string) ([]models.User, error)
	AvailableOfficers() ([]models.User, error)
	AdjustActiveTasks(officerID uint, delta int) error
	AdjustTrustScore(email string, delta int) error
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// NotificationRepository defines the interface for in-app notifications.
type NotificationRepository interface {
	Create(notification *models.Notification) error
	GetByID(id uint) (*models.Notification, error)
	ListByUser(userID uint, offset, limit int) ([]models.Notification, error)
	CountUnread(userID uint) (int64, error)
	MarkRead(id, userID uint) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Issue        IssueRepository
	User         UserRepository
	Notification NotificationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Issue:        NewIssueRepository(db),
		User:         NewUserRepository(db),
		Notification: NewNotificationRepository(db),
	}
}
