package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER      = "user"
	ROLE_OFFICER   = "officer"
	ROLE_MODERATOR = "moderator"
	ROLE_ADMIN     = "admin"

	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// DefaultTrustScore is the baseline every account starts at; workflow
// outcomes move it up or down.
const DefaultTrustScore = 100

// User is a portal account. Officers additionally carry department,
// workload and availability fields consumed by the assignment scorer.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email       string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Password    string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role        string         `gorm:"type:varchar(50);default:'user';index" json:"role" validate:"oneof=user officer moderator admin"`
	Status      string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	Department  string         `gorm:"type:varchar(50);index" json:"department,omitempty"`
	ActiveTasks int            `gorm:"default:0" json:"active_tasks"`
	TrustScore  int            `gorm:"default:100" json:"trust_score"`
	IsAvailable bool           `gorm:"default:true" json:"is_available"`
	AvatarURL   string         `gorm:"type:varchar(255);default:null" json:"avatar_url,omitempty" validate:"max=255"`
	Provider    string         `gorm:"type:varchar(50);default:null" json:"-"`
	ProviderID  string         `gorm:"type:varchar(100);default:null;index" json:"-"`
	APIKeyHash  string         `gorm:"type:varchar(64);default:null;index" json:"-"`
	IPv4        string         `gorm:"type:varchar(15);default:null" json:"-"`
	IPv6        string         `gorm:"type:varchar(45);default:null" json:"-"`
	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsStaff reports whether the account holds any privileged workflow role.
func (u *User) IsStaff() bool {
	return u.Role == ROLE_OFFICER || u.Role == ROLE_MODERATOR || u.Role == ROLE_ADMIN
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

func CreateUser(name string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:       name,
		Email:      email,
		Password:   pw,
		Role:       ROLE_USER,
		Status:     STATUS_ACTIVE,
		TrustScore: DefaultTrustScore,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// GenerateAPIKey creates a fresh bearer key for officer tooling, stores its
// hash on the user and returns the plaintext key exactly once.
func (u *User) GenerateAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	key := hex.EncodeToString(b)
	u.APIKeyHash = HashAPIKey(key)
	return key, nil
}

// HashAPIKey returns the storage form of an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
