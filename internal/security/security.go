package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/gin-gonic/gin"
)

// MaxLoginLength is GitHub's limit for user and organization names
const MaxLoginLength = 39

// Alphanumerics separated by single hyphens, no leading or trailing hyphen
var loginPattern = regexp.MustCompile(`^[a-zA-Z0-9](?:-?[a-zA-Z0-9])*$`)

var loginPrefixes = []string{
	"https://github.com/",
	"http://github.com/",
	"github.com/",
	"github:",
	"@",
}

// NormalizeUsername strips whitespace and the common ways people paste a
// profile reference ("@octocat", "github:octocat", a profile URL).
func NormalizeUsername(input string) string {
	input = strings.TrimSpace(input)
	for _, prefix := range loginPrefixes {
		if len(input) >= len(prefix) && strings.EqualFold(input[:len(prefix)], prefix) {
			input = input[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(input, "/"))
}

// ValidateUsername normalizes input and checks it is a plausible GitHub login
func ValidateUsername(input string) (string, error) {
	if strings.Contains(input, "\x00") || !utf8.ValidString(input) {
		return "", apperrors.NewValidationError("Username contains invalid characters")
	}

	login := NormalizeUsername(input)
	switch {
	case login == "":
		return "", apperrors.NewValidationError("Username is required")
	case len(login) > MaxLoginLength:
		return "", apperrors.NewValidationError(
			fmt.Sprintf("Username exceeds maximum length of %d characters", MaxLoginLength), login)
	case !loginPattern.MatchString(login):
		return "", apperrors.NewValidationError("Invalid GitHub username format", login)
	}
	return login, nil
}

// UsernameParam validates the :username path parameter and stores the
// normalized login under "username" for the handler.
func UsernameParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		login, err := ValidateUsername(c.Param("username"))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set("username", login)
		c.Next()
	}
}
