package utils

import "github.com/google/uuid"

// IsUUID reports whether s is a well-formed UUID string.
func IsUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NewID returns a new random identifier string.
func NewID() string {
	return uuid.New().String()
}
