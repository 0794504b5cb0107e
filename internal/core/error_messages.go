package core

// # Error Codes Reference
//
// User-facing messages carry a code that can be quoted to support staff.
// Codes are grouped by category:
//
// # Feed Errors (FEED001-FEED099)
//
//	FEED001 - Missing columns: the feed lacks a required column
//	          Action: Add the id, title and price columns to the header row
//	          Patterns: "missing required columns"
//
//	FEED002 - Empty feed: no header row was found
//	          Patterns: "empty feed"
//
//	FEED003 - Unreadable feed: the file could not be parsed
//	          Patterns: "unreadable"
//
//	FEED004 - Unsupported format or encoding
//	          Patterns: "unsupported feed format", "unsupported feed encoding"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - No file in the request
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate product id
//	DB002 - Connection refused
//	DB003 - Connection reset
//	DB004 - Deadlock
//	DB005 - Store unavailable (acquire failed)
//	DB006 - Product not found
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Another run holds the store
//	RUN002 - Request cancelled
//	RUN003 - Request timed out
//	RUN004 - Malformed run id
//
// ERR000 is the fallback for anything unmatched; check the logs for the
// technical error.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive, substring match)
// to user messages. The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	// Feed structure
	{
		pattern: "missing required columns",
		msg: UserMessage{
			Message: "The feed is missing a required column",
			Action:  "Make sure the header row has id, title and price columns (or their aliases)",
			Code:    "FEED001",
		},
	},
	{
		pattern: "empty feed",
		msg: UserMessage{
			Message: "The feed has no header row",
			Action:  "Upload a feed with a header row and at least one product",
			Code:    "FEED002",
		},
	},
	{
		pattern: "unreadable",
		msg: UserMessage{
			Message: "The feed could not be read",
			Action:  "Check that the file is a valid CSV or XLSX export",
			Code:    "FEED003",
		},
	},
	{
		pattern: "unsupported feed format",
		msg: UserMessage{
			Message: "This feed format is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FEED004",
		},
	},
	{
		pattern: "unsupported feed encoding",
		msg: UserMessage{
			Message: "This feed encoding is not supported",
			Action:  "Use utf-8, windows-1252 or iso-8859-1",
			Code:    "FEED004",
		},
	},

	// File handling
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the feed into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No feed file was provided",
			Action:  "Attach the feed as the multipart field \"file\"",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no feed content",
		msg: UserMessage{
			Message: "No feed file was provided",
			Action:  "Attach the feed as the multipart field \"file\"",
			Code:    "FILE002",
		},
	},

	// Run admission and request lifecycle
	{
		pattern: "run is already in progress",
		msg: UserMessage{
			Message: "Another feed run is in progress",
			Action:  "Wait for it to finish and try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "invalid run id",
		msg: UserMessage{
			Message: "The run id is not valid",
			Action:  "Use the run_id returned when the feed was submitted",
			Code:    "RUN004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller feed or try again later",
			Code:    "RUN003",
		},
	},

	// Database
	{
		pattern: "product id already exists",
		msg: UserMessage{
			Message: "A product with this id already exists",
			Action:  "Review the rejects for duplicate_id_at_store",
			Code:    "DB001",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A product with this id already exists",
			Action:  "Review the rejects for duplicate_id_at_store",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "acquire store",
		msg: UserMessage{
			Message: "The product store is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "DB005",
		},
	},
	{
		pattern: "product not found",
		msg: UserMessage{
			Message: "Product not found",
			Action:  "Check the product id",
			Code:    "DB006",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If no
// pattern matches, the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(report.Err)
//	// msg.Code == "FEED001" for a feed without a price column
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
