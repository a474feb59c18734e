package service

import (
	"context"

	"chatsync/internal/constants"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// SanitizeUserID masks user identifiers for logs, keeping only a short
// suffix for correlation.
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) > constants.DefaultUserMaskLength {
		return "***" + userID[len(userID)-constants.DefaultUserMaskLength:]
	}
	return "***"
}

// SanitizeMessageID shortens message ids for logs.
func SanitizeMessageID(msgID string) string {
	if msgID == "" {
		return ""
	}
	if len(msgID) > constants.DefaultMessageIDLogLength {
		return msgID[:constants.DefaultMessageIDLogLength] + "..."
	}
	return msgID
}
