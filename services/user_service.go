package services

import (
	"errors"
	"fmt"

	"coopledger/apperrors"
	"coopledger/models"
	"coopledger/utils"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService manages staff accounts and authentication.
type UserService struct {
	db       *gorm.DB
	validate *validator.Validate
	audit    *AuditService
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, validate *validator.Validate, audit *AuditService) *UserService {
	return &UserService{db: db, validate: validate, audit: audit}
}

// UserRegistrationDTO carries a new staff account
type UserRegistrationDTO struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email,max=100"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Role      string `json:"role" validate:"required,oneof=ADMIN SECRETARY TREASURER OFFICER"`
}

// CreateUser registers a staff account. The actor may only create accounts
// at roles they are allowed to manage.
func (s *UserService) CreateUser(dto *UserRegistrationDTO, actor models.Actor) (*models.User, error) {
	if !models.HasPermission(actor.Role, models.PermManageUsers) {
		return nil, apperrors.Unauthorized("missing permission to manage users")
	}
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	role := models.Role(dto.Role)
	if !models.CanManage(actor.Role, role) {
		return nil, apperrors.Unauthorized(fmt.Sprintf("role %s cannot create %s accounts", actor.Role, role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	result, err := s.audit.WithAudit(actor, "USER_CREATE", "User",
		map[string]string{"username": dto.Username, "role": dto.Role}, func() (interface{}, uint, error) {
			user := &models.User{
				Username:  dto.Username,
				FirstName: dto.FirstName,
				LastName:  dto.LastName,
				Email:     dto.Email,
				Password:  string(hash),
				Role:      role,
				Active:    true,
			}
			if err := s.db.Create(user).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return nil, 0, apperrors.Business("a user with this username or email already exists")
				}
				return nil, 0, fmt.Errorf("failed to create user: %w", err)
			}
			return user, user.ID, nil
		})
	if err != nil {
		return nil, err
	}

	user := result.(*models.User)
	utils.LogInfo("user %s created with role %s", user.Username, user.Role)
	return user, nil
}

// Bootstrap creates the very first staff account as an admin. Once any
// account exists, sign-up is closed and accounts are created by staff with
// the manage-users permission.
func (s *UserService) Bootstrap(dto *UserRegistrationDTO) (*models.User, error) {
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil, apperrors.Unauthorized("sign-up is closed once staff accounts exist")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:  dto.Username,
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
		Email:     dto.Email,
		Password:  string(hash),
		Role:      models.RoleAdmin,
		Active:    true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	utils.LogInfo("bootstrap admin account %s created", user.Username)
	return user, nil
}

// Authenticate checks username and password and returns the user on success
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ? AND active = true", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthorized("invalid username or password")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("invalid username or password")
	}
	return &user, nil
}

// ChangeRole moves a staff account to a new role. The actor must be able
// to manage both the current and the new role.
func (s *UserService) ChangeRole(userID uint, newRole models.Role, actor models.Actor) (*models.User, error) {
	if !models.HasPermission(actor.Role, models.PermManageUsers) {
		return nil, apperrors.Unauthorized("missing permission to manage users")
	}

	result, err := s.audit.WithAudit(actor, "USER_CHANGE_ROLE", "User",
		map[string]string{"newRole": string(newRole)}, func() (interface{}, uint, error) {
			var user models.User
			if err := s.db.First(&user, userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, userID, apperrors.NotFound(fmt.Sprintf("user %d not found", userID))
				}
				return nil, userID, fmt.Errorf("failed to load user: %w", err)
			}
			if !models.CanManage(actor.Role, user.Role) || !models.CanManage(actor.Role, newRole) {
				return nil, userID, apperrors.Unauthorized(fmt.Sprintf("role %s cannot manage this role change", actor.Role))
			}

			user.Role = newRole
			if err := s.db.Model(&user).Update("role", newRole).Error; err != nil {
				return nil, userID, fmt.Errorf("failed to change role: %w", err)
			}
			return &user, userID, nil
		})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

// Deactivate disables a staff account without deleting it
func (s *UserService) Deactivate(userID uint, actor models.Actor) (*models.User, error) {
	if !models.HasPermission(actor.Role, models.PermManageUsers) {
		return nil, apperrors.Unauthorized("missing permission to manage users")
	}
	if userID == actor.ID {
		return nil, apperrors.Business("users cannot deactivate their own account")
	}

	result, err := s.audit.WithAudit(actor, "USER_DEACTIVATE", "User", nil, func() (interface{}, uint, error) {
		var user models.User
		if err := s.db.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, userID, apperrors.NotFound(fmt.Sprintf("user %d not found", userID))
			}
			return nil, userID, fmt.Errorf("failed to load user: %w", err)
		}
		if !models.CanManage(actor.Role, user.Role) {
			return nil, userID, apperrors.Unauthorized(fmt.Sprintf("role %s cannot manage %s accounts", actor.Role, user.Role))
		}

		user.Active = false
		if err := s.db.Model(&user).Update("active", false).Error; err != nil {
			return nil, userID, fmt.Errorf("failed to deactivate user: %w", err)
		}
		return &user, userID, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

// GetUser loads one staff account by id
func (s *UserService) GetUser(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("user %d not found", userID))
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}
