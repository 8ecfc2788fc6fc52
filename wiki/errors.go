package wiki

import (
	"fmt"
	"strings"
)

// Error codes for programmatic error handling
type ErrorCode string

const (
	// Authentication error codes
	AuthCodeInvalidCredentials ErrorCode = "AUTH_INVALID_CREDENTIALS"
	AuthCodeNoCredentials      ErrorCode = "AUTH_NO_CREDENTIALS"
	AuthCodeNotLoggedIn        ErrorCode = "AUTH_NOT_LOGGED_IN"

	// Validation error codes
	ValidationCodeInvalid ErrorCode = "VALIDATION_INVALID"
)

// APIError is an error object returned by the MediaWiki API itself
// ({"error": {"code": ..., "info": ...}}).
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error [%s]: %s", e.Code, e.Info)
}

// AuthenticationError indicates authentication failures with recovery steps
type AuthenticationError struct {
	Code      ErrorCode
	Operation string
	Reason    string
}

func (e *AuthenticationError) Error() string {
	var suggestion string
	switch e.Code {
	case AuthCodeInvalidCredentials:
		suggestion = `Check your credentials:
1. Verify the username is in format "YourUser@BotName"
2. Verify the password is the bot password (not your user password)
3. Create a bot password at Special:BotPasswords on your wiki`
	case AuthCodeNoCredentials:
		suggestion = `Set MEDIAWIKI_USERNAME and MEDIAWIKI_PASSWORD, or pass --username and --password.`
	default:
		suggestion = `Check your wiki connection and credentials.
1. Verify the host and API path point to a valid wiki
2. Test the URL in a browser: <URL>?action=query&meta=siteinfo&format=json`
	}

	return fmt.Sprintf("Authentication failed for %s: %s\n\n%s", e.Operation, e.Reason, suggestion)
}

// TokenErrorKind distinguishes the two ways a token request can fail.
type TokenErrorKind int

const (
	// TokenInvalid means the token type does not exist on the wiki.
	TokenInvalid TokenErrorKind = iota
	// TokenNotAllowed means the type exists but the user may not have it.
	TokenNotAllowed
)

// TokenError is returned by TokenWallet lookups.
type TokenError struct {
	Kind TokenErrorKind
	Type string
	User string
	Site string
}

func (e *TokenError) Error() string {
	if e.Kind == TokenNotAllowed {
		user := e.User
		if user == "" {
			user = "anonymous"
		}
		return fmt.Sprintf("Action '%s' is not allowed for user %s on %s wiki.", e.Type, user, e.Site)
	}
	return fmt.Sprintf("Requested token '%s' is invalid on %s wiki.", e.Type, e.Site)
}

// ValidationError represents an input validation failure
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Validation failed for %s: %s", e.Field, e.Message))
	if e.Value != "" {
		displayValue := e.Value
		if len(displayValue) > 100 {
			displayValue = displayValue[:100] + "..."
		}
		sb.WriteString(fmt.Sprintf(" (value %q)", displayValue))
	}
	return sb.String()
}
