package rbac

// Roles.
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

// RolePermissions is the default policy. A trailing "*" matches any
// permission with that prefix.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"band:convert",
		"task:generate",
		"task:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"progress:view-own",
		"user:change_password",
	},
	RoleTutor: {
		"band:convert",
		"task:*",
		"attempt:view-all",
		"progress:view-any",
		"user:change_password",
	},
	RoleAdmin: {
		"*", // everything
	},
}

// ValidRole reports whether role has a policy entry.
func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
