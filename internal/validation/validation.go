// Package validation provides input validation helpers and middleware for
// the business-model dev API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

var (
	// currencyRegex validates ISO 4217 alphabetic codes
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	// idRegex validates plan and version ids in URL paths
	idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidCurrencyCode checks if a string is an ISO 4217 currency code
func IsValidCurrencyCode(code string) bool {
	return currencyRegex.MatchString(code)
}

// IsValidID checks if a string can be used as a plan or version id
func IsValidID(id string) bool {
	return idRegex.MatchString(id)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// SanitizeCurrency normalizes a currency code
func SanitizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Messages flattens the errors into "field message" strings.
func (e ValidationErrors) Messages() []string {
	out := make([]string, 0, len(e))
	for _, v := range e {
		out = append(out, v.Field+" "+v.Message)
	}
	return out
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// ValidCurrencies checks that every entry is an ISO 4217 code and that
// there are no duplicates.
func ValidCurrencies(field string, codes []string) func() *ValidationError {
	return func() *ValidationError {
		seen := make(map[string]bool, len(codes))
		for _, c := range codes {
			if !IsValidCurrencyCode(c) {
				return &ValidationError{Field: field, Message: "contains invalid currency code " + c}
			}
			if seen[c] {
				return &ValidationError{Field: field, Message: "contains duplicate currency code " + c}
			}
			seen[c] = true
		}
		return nil
	}
}

// IDParamMiddleware validates the :id URL parameter on routes that use it.
// Apply to route groups that include :id params to reject malformed ids early.
func IDParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id != "" && !IsValidID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_id",
				"message": "id must be 1-64 letters, digits, dashes or underscores",
			})
			return
		}
		c.Next()
	}
}
