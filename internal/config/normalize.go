package config

import (
	"fmt"
	"strings"
)

// Role names as the protocol and topic scheme use them.
const (
	RoleElderly   = "elderly"
	RoleCaregiver = "caregiver"
)

// roleAliases maps the spellings that show up in configs and on the command
// line onto the canonical role names.
var roleAliases = map[string]string{
	"elderly":   RoleElderly,
	"recipient": RoleElderly,
	"senior":    RoleElderly,
	"caregiver": RoleCaregiver,
	"carer":     RoleCaregiver,
}

// NormalizeRole canonicalizes a user-provided role name.
func NormalizeRole(role string) (string, error) {
	r := strings.ToLower(strings.TrimSpace(role))
	if canonical, ok := roleAliases[r]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown role %q (expected %q or %q)", role, RoleElderly, RoleCaregiver)
}
