package store

import "fmt"

// MaxUserIDLength is the maximum allowed length for user identifier strings
// (caregiver_id, elderly_id). Matches the VARCHAR(255) constraint in the
// database schema.
const MaxUserIDLength = 255

// ValidateUserID checks that a user identifier is non-empty and does not
// exceed MaxUserIDLength.
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("empty user identifier")
	}
	if len(id) > MaxUserIDLength {
		return fmt.Errorf("user identifier too long: %d chars (max %d)", len(id), MaxUserIDLength)
	}
	return nil
}
