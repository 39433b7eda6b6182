package session

import (
	"fmt"
	"strings"
)

// Role selects which side of the product a session drives. The zero value
// means no role has been chosen yet.
type Role string

const (
	RoleNone      Role = ""
	RoleJobseeker Role = "jobseeker"
	RoleRecruiter Role = "recruiter"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleJobseeker:
		return RoleJobseeker, nil
	case RoleRecruiter:
		return RoleRecruiter, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q: expected jobseeker or recruiter", s)
	}
}

func (r Role) IsValid() bool {
	return r == RoleJobseeker || r == RoleRecruiter
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}
