// Package auth enforces JWT bearer authentication and role-based access
// for the syndication HTTP surface. Listing-level ownership checks happen
// in the use cases; this layer only gates endpoints by role.
package auth

import "strings"

// Roles carried in JWT claims.
const (
	// RoleAdmin has full access, including the admin DLQ endpoints.
	RoleAdmin = "admin"
	// RoleAgent manages listings assigned to them.
	RoleAgent = "agent"
	// RoleOwner manages their own listings.
	RoleOwner = "owner"
)

// Permission defines the HTTP methods and path patterns a role may use.
type Permission struct {
	AllowedMethods []string
	AllowedPaths   []string
}

// RolePermissions maps each role to its endpoint access. Admin-only
// surfaces are /admin/* and /syndication/providers; agents and owners
// reach the listing syndication endpoints, with per-listing ownership
// enforced downstream.
var RolePermissions = map[string]Permission{
	RoleAdmin: {
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedPaths:   []string{"/*"},
	},
	RoleAgent: {
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedPaths:   []string{"/listings/*"},
	},
	RoleOwner: {
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedPaths:   []string{"/listings/*"},
	},
}

// checkRolePermission reports whether the role may use the method on the
// path. Unknown and empty roles are denied.
func checkRolePermission(role, method, path string) bool {
	if role == "" {
		return false
	}
	perm, exists := RolePermissions[role]
	if !exists {
		return false
	}

	methodAllowed := false
	for _, m := range perm.AllowedMethods {
		if m == method {
			methodAllowed = true
			break
		}
	}
	if !methodAllowed {
		return false
	}
	return matchesPathPattern(path, perm.AllowedPaths)
}

// matchesPathPattern matches a path against patterns. "/*" matches
// everything; a trailing "/*" matches the prefix itself and any subpath;
// other patterns match exactly.
func matchesPathPattern(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "/*" {
			return true
		}
		if strings.HasSuffix(pattern, "/*") {
			prefix := strings.TrimSuffix(pattern, "/*")
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
