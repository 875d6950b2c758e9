package types

import "regexp"

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidID checks the format shared by user and class identifiers:
// 1-64 characters, alphanumeric plus underscore/hyphen. UUIDs pass.
func IsValidID(id string) bool {
	if len(id) < 1 || len(id) > 64 {
		return false
	}
	return idRegex.MatchString(id)
}

// IsValidRole checks that role is one of the two known roles.
func IsValidRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent
}

// IsValidStatus checks that status is a known attendance status.
func IsValidStatus(status string) bool {
	return status == StatusPresent || status == StatusAbsent
}
