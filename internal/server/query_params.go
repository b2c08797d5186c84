package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseOptionalSnowflakeID returns 0 for an empty value.
func parseOptionalSnowflakeID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return 0, ErrInvalidRequest
	}
	return parsed, nil
}

// activeOnlyQuery reads ?active=... for staff listings, defaulting to all.
func activeOnlyQuery(c *gin.Context) (bool, error) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		return false, newValidationError("active", "invalid_active", "invalid active")
	}
	return active != nil && *active, nil
}

func pathID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
