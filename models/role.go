package models

// Role is the closed set of staff roles in the cooperative
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleSecretary Role = "SECRETARY"
	RoleTreasurer Role = "TREASURER"
	RoleOfficer   Role = "OFFICER"
)

// Permission identifies a privileged capability
type Permission string

const (
	PermApproveLoan           Permission = "loan.approve"
	PermDisburseLoan          Permission = "loan.disburse"
	PermWriteOffLoan          Permission = "loan.write_off"
	PermClosePeriod           Permission = "period.close"
	PermCalculateDividends    Permission = "dividend.calculate"
	PermDistributeDividends   Permission = "dividend.distribute"
	PermCreateReconciliation  Permission = "reconciliation.create"
	PermReviewReconciliation  Permission = "reconciliation.review"
	PermManageUsers           Permission = "user.manage"
	PermExportReports         Permission = "report.export"
	PermRecordPayment         Permission = "payment.record"
	PermRegisterMember        Permission = "member.register"
)

// rolePermissions maps each role to the permissions it holds.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermApproveLoan, PermDisburseLoan, PermWriteOffLoan, PermClosePeriod,
		PermCalculateDividends, PermDistributeDividends, PermCreateReconciliation,
		PermReviewReconciliation, PermManageUsers, PermExportReports,
		PermRecordPayment, PermRegisterMember,
	},
	RoleSecretary: {
		PermReviewReconciliation, PermExportReports, PermRegisterMember,
	},
	RoleTreasurer: {
		PermApproveLoan, PermDisburseLoan, PermClosePeriod,
		PermCalculateDividends, PermDistributeDividends, PermExportReports,
	},
	RoleOfficer: {
		PermCreateReconciliation, PermRecordPayment, PermRegisterMember,
	},
}

// roleRank orders roles for management decisions; higher manages lower.
var roleRank = map[Role]int{
	RoleAdmin:     4,
	RoleTreasurer: 3,
	RoleSecretary: 2,
	RoleOfficer:   1,
}

// HasPermission reports whether the role holds the given permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// CanManage reports whether actorRole may administer targetRole accounts.
// Only a strictly higher-ranked role can manage another, except that an
// admin can also manage other admins.
func CanManage(actorRole, targetRole Role) bool {
	if actorRole == RoleAdmin {
		return true
	}
	return roleRank[actorRole] > roleRank[targetRole]
}

// Actor identifies the authenticated staff user performing an operation.
// It is passed explicitly into every service call that needs to record who
// acted; services never read identity from global state.
type Actor struct {
	ID       uint
	Username string
	Role     Role
}

// IsZero reports whether no authenticated actor is present.
func (a Actor) IsZero() bool {
	return a.ID == 0
}
