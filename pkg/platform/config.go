package platform

import (
	"os"
	"strings"
)

// GetEnv reads an env var with a default.
func GetEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

// IsDevelopment reports whether ENV=development.
func IsDevelopment() bool {
	return strings.EqualFold(GetEnv("ENV", ""), "development")
}
