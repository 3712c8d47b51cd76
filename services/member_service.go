package services

import (
	"errors"
	"fmt"
	"time"

	"coopledger/apperrors"
	"coopledger/models"
	"coopledger/utils"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// minimumMemberAge is the minimum age in full years for membership
const minimumMemberAge = 18

// MemberService handles cooperative member registration and lookup.
type MemberService struct {
	db       *gorm.DB
	validate *validator.Validate
	audit    *AuditService
}

// NewMemberService creates a new MemberService
func NewMemberService(db *gorm.DB, validate *validator.Validate, audit *AuditService) *MemberService {
	return &MemberService{db: db, validate: validate, audit: audit}
}

// MemberRegistrationDTO carries a new member application
type MemberRegistrationDTO struct {
	FirstName           string  `json:"firstName" validate:"required,min=2,max=50"`
	LastName            string  `json:"lastName" validate:"required,min=2,max=50"`
	Email               string  `json:"email" validate:"required,email,max=100"`
	Phone               string  `json:"phone" validate:"max=20"`
	IDCardNumber        string  `json:"idCardNumber" validate:"required,min=5,max=30"`
	BirthDate           string  `json:"birthDate" validate:"required,datetime=2006-01-02"`
	InitialShareCapital float64 `json:"initialShareCapital" validate:"gte=0"`
}

// Register creates a new active member. Applicants must be of age and hold
// an ID card number not already on file.
func (s *MemberService) Register(dto *MemberRegistrationDTO, actor models.Actor) (*models.Member, error) {
	if !models.HasPermission(actor.Role, models.PermRegisterMember) {
		return nil, apperrors.Unauthorized("missing permission to register members")
	}
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	birthDate, err := time.Parse("2006-01-02", dto.BirthDate)
	if err != nil {
		return nil, apperrors.Validation("birthDate must be in YYYY-MM-DD format")
	}

	result, err := s.audit.WithAudit(actor, "MEMBER_REGISTER", "Member", dto, func() (interface{}, uint, error) {
		member := &models.Member{
			FirstName:    dto.FirstName,
			LastName:     dto.LastName,
			Email:        dto.Email,
			Phone:        dto.Phone,
			IDCardNumber: dto.IDCardNumber,
			BirthDate:    birthDate,
			ShareCapital: decimal.NewFromFloat(dto.InitialShareCapital).Round(2),
			Status:       models.MemberStatusActive,
		}
		if member.Age(time.Now()) < minimumMemberAge {
			return nil, 0, apperrors.Business(fmt.Sprintf("members must be at least %d years old", minimumMemberAge))
		}

		var count int64
		err := s.db.Model(&models.Member{}).
			Where("id_card_number = ?", dto.IDCardNumber).
			Count(&count).Error
		if err != nil {
			return nil, 0, fmt.Errorf("failed to check id card number: %w", err)
		}
		if count > 0 {
			return nil, 0, apperrors.Business("a member with this id card number already exists")
		}

		if err := s.db.Create(member).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, 0, apperrors.Business("a member with this email or id card number already exists")
			}
			return nil, 0, fmt.Errorf("failed to create member: %w", err)
		}
		return member, member.ID, nil
	})
	if err != nil {
		return nil, err
	}

	member := result.(*models.Member)
	utils.LogInfo("member %d registered: %s %s", member.ID, member.FirstName, member.LastName)
	return member, nil
}

// Deactivate marks a member inactive. Members with open loans cannot leave.
func (s *MemberService) Deactivate(memberID uint, actor models.Actor) (*models.Member, error) {
	if !models.HasPermission(actor.Role, models.PermRegisterMember) {
		return nil, apperrors.Unauthorized("missing permission to manage members")
	}

	result, err := s.audit.WithAudit(actor, "MEMBER_DEACTIVATE", "Member", nil, func() (interface{}, uint, error) {
		member, err := s.GetMember(memberID)
		if err != nil {
			return nil, memberID, err
		}
		if member.Status != models.MemberStatusActive {
			return nil, memberID, apperrors.Conflict(fmt.Sprintf("member %d is already inactive", memberID))
		}

		var openLoans int64
		err = s.db.Model(&models.Loan{}).
			Where("member_id = ? AND status IN ?", memberID,
				[]models.LoanStatus{models.LoanStatusPending, models.LoanStatusActive, models.LoanStatusDefaulted}).
			Count(&openLoans).Error
		if err != nil {
			return nil, memberID, fmt.Errorf("failed to count open loans: %w", err)
		}
		if openLoans > 0 {
			return nil, memberID, apperrors.Business(fmt.Sprintf("member %d has %d open loans", memberID, openLoans))
		}

		member.Status = models.MemberStatusInactive
		if err := s.db.Model(member).Update("status", member.Status).Error; err != nil {
			return nil, memberID, fmt.Errorf("failed to deactivate member: %w", err)
		}
		return member, memberID, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Member), nil
}

// GetMember loads one member by id
func (s *MemberService) GetMember(memberID uint) (*models.Member, error) {
	var member models.Member
	if err := s.db.First(&member, memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("member %d not found", memberID))
		}
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	return &member, nil
}

// ListMembers returns members filtered by status, or all when status is
// empty
func (s *MemberService) ListMembers(status models.MemberStatus) ([]models.Member, error) {
	query := s.db.Order("last_name, first_name")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var members []models.Member
	if err := query.Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	return members, nil
}
