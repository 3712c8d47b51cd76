package services

import (
	"testing"
	"time"

	"coopledger/apperrors"
	"coopledger/models"
)

func newMemberFixture(t *testing.T) *MemberService {
	t.Helper()
	db := newTestDB(t)
	return NewMemberService(db, newTestValidator(), NewAuditService(db))
}

var registrar = models.Actor{ID: 3, Username: "officer", Role: models.RoleOfficer}

func TestRegisterMember(t *testing.T) {
	svc := newMemberFixture(t)

	member, err := svc.Register(&MemberRegistrationDTO{
		FirstName:           "Maria",
		LastName:            "Horvath",
		Email:               "maria@coop.test",
		IDCardNumber:        "AB123456",
		BirthDate:           "1990-04-12",
		InitialShareCapital: 500,
	}, registrar)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if member.Status != models.MemberStatusActive {
		t.Errorf("status = %s, want ACTIVE", member.Status)
	}
	decimalEquals(t, "500.00", member.ShareCapital, "initial share capital")
}

func TestRegisterUnderageMember(t *testing.T) {
	svc := newMemberFixture(t)

	tooYoung := time.Now().AddDate(-17, 0, 0).Format("2006-01-02")
	_, err := svc.Register(&MemberRegistrationDTO{
		FirstName:    "Young",
		LastName:     "Applicant",
		Email:        "young@coop.test",
		IDCardNumber: "CD789012",
		BirthDate:    tooYoung,
	}, registrar)
	if !apperrors.IsKind(err, apperrors.KindBusiness) {
		t.Fatalf("expected business error for underage applicant, got %v", err)
	}
}

func TestRegisterDuplicateIDCard(t *testing.T) {
	svc := newMemberFixture(t)

	dto := &MemberRegistrationDTO{
		FirstName:    "First",
		LastName:     "Member",
		Email:        "first@coop.test",
		IDCardNumber: "EF345678",
		BirthDate:    "1980-01-01",
	}
	if _, err := svc.Register(dto, registrar); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	dup := *dto
	dup.Email = "second@coop.test"
	_, err := svc.Register(&dup, registrar)
	if !apperrors.IsKind(err, apperrors.KindBusiness) {
		t.Fatalf("expected business error for duplicate id card, got %v", err)
	}
}

func TestDeactivateMemberWithOpenLoan(t *testing.T) {
	svc := newMemberFixture(t)
	admin := models.Actor{ID: 1, Username: "admin", Role: models.RoleAdmin}

	member := createTestMember(t, svc.db, "leaving@coop.test", "ID-L-1", 0)
	createActiveLoan(t, svc.db, member.ID, 1000, 10, dateOnly(time.Now()).AddDate(0, -2, 0), 12)

	_, err := svc.Deactivate(member.ID, admin)
	if !apperrors.IsKind(err, apperrors.KindBusiness) {
		t.Fatalf("expected business error with open loan, got %v", err)
	}
}
