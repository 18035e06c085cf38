package shared

import "strings"

// Role is a capability held by a principal. A principal may hold several.
type Role uint8

const (
	RoleManager Role = 1 << iota
	RoleTeacher
	RoleStudent
	RoleParent
)

// String returns a "+"-joined list of capabilities.
func (r Role) String() string {
	var names []string
	if r&RoleManager != 0 {
		names = append(names, "manager")
	}
	if r&RoleTeacher != 0 {
		names = append(names, "teacher")
	}
	if r&RoleStudent != 0 {
		names = append(names, "student")
	}
	if r&RoleParent != 0 {
		names = append(names, "parent")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID       UserID
	Roles    Role
	Children []UserID
}

// SystemPrincipal is the identity of scheduled jobs and background runs.
func SystemPrincipal() Principal {
	return Principal{Roles: RoleManager}
}

// Has reports whether the principal holds role.
func (p Principal) Has(role Role) bool {
	return p.Roles&role != 0
}

// IsStaff reports manager or teacher capability.
func (p Principal) IsStaff() bool {
	return p.Has(RoleManager | RoleTeacher)
}

// HasChild reports whether studentID is registered as the principal's child.
func (p Principal) HasChild(studentID UserID) bool {
	for _, c := range p.Children {
		if c == studentID {
			return true
		}
	}
	return false
}

// CanAccessStudent decides whether p may read data about studentID.
// Staff see everyone, a student sees themself, a parent sees their children.
func CanAccessStudent(p Principal, studentID UserID) bool {
	switch {
	case p.IsStaff():
		return true
	case p.Has(RoleStudent) && p.ID == studentID:
		return true
	case p.Has(RoleParent) && p.HasChild(studentID):
		return true
	default:
		return false
	}
}

// CanAccessParent decides whether p may read data about parentID's children.
func CanAccessParent(p Principal, parentID UserID) bool {
	return p.IsStaff() || (p.Has(RoleParent) && p.ID == parentID)
}

// CanViewStaffScope decides whether p may list by teacher, by class or everything.
func CanViewStaffScope(p Principal) bool {
	return p.IsStaff()
}

// CanManage decides whether p may run financial operations.
func CanManage(p Principal) bool {
	return p.Has(RoleManager)
}
