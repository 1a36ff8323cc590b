package enums

import "fmt"

// StaffRole ranks what a staff member may do within a tenant.
type StaffRole string

const (
	StaffRoleAdmin   StaffRole = "admin"
	StaffRoleManager StaffRole = "manager"
	StaffRoleAgent   StaffRole = "agent"
)

var validStaffRoles = []StaffRole{
	StaffRoleAdmin,
	StaffRoleManager,
	StaffRoleAgent,
}

// String implements fmt.Stringer.
func (r StaffRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known StaffRole.
func (r StaffRole) IsValid() bool {
	for _, candidate := range validStaffRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// AtLeast reports whether the role carries the privileges of other.
func (r StaffRole) AtLeast(other StaffRole) bool {
	rank := map[StaffRole]int{
		StaffRoleAgent:   1,
		StaffRoleManager: 2,
		StaffRoleAdmin:   3,
	}
	return rank[r] >= rank[other]
}

// ParseStaffRole converts raw input into a StaffRole.
func ParseStaffRole(value string) (StaffRole, error) {
	for _, candidate := range validStaffRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
