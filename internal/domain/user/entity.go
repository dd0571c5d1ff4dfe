package user

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Prepares payroll adjustments
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

// Claims - identity carried by a verified access token
type Claims struct {
	UserID     string
	Email      string
	EmployeeID *string
	CompanyID  string
	Role       Role
}

