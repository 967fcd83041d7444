package utils

import "github.com/google/uuid"

// GenerateID returns a new UUID v4. Ride and request ids are assigned
// in the repository layer before insert.
func GenerateID() string {
	return uuid.New().String()
}

// IsValidUUID reports whether id parses as a UUID.
func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
