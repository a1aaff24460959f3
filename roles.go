package auth

import "github.com/opsboard/auth/directory"

// roleHierarchy maps a held role to every role it subsumes. A fixed lookup
// table: holding admin grants analyst and user access, analyst grants user
// access.
var roleHierarchy = map[string][]string{
	directory.RoleAdmin:   {directory.RoleAdmin, directory.RoleAnalyst, directory.RoleUser},
	directory.RoleAnalyst: {directory.RoleAnalyst, directory.RoleUser},
	directory.RoleUser:    {directory.RoleUser},
}

// RoleAllows reports whether holding userRole grants requiredRole.
// Unknown roles fall back to the least-privilege user hierarchy.
func RoleAllows(userRole, requiredRole string) bool {
	allowed, ok := roleHierarchy[userRole]
	if !ok {
		allowed = roleHierarchy[directory.RoleUser]
	}
	for _, role := range allowed {
		if role == requiredRole {
			return true
		}
	}
	return false
}
