// Package core provides the session layer over the row store.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Database Errors (DB001-DB099)
//
// Errors reported by the database while applying changes:
//
//	DB001 - Duplicate key: A record with this key already exists
//	        Action: Change the key value or delete the existing record first
//	        Patterns: "duplicate key", "duplicate entry"
//
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Action: Choose a value that is not used by another row
//	        Patterns: "unique constraint", "violates unique"
//
//	DB003 - Foreign key: Referenced record does not exist
//	        Action: Create the parent record first, or delete child rows before the parent
//	        Patterns: "foreign key constraint", "violates foreign key"
//
//	DB004 - Connection refused: Unable to connect to database
//	        Action: Please try again in a few moments
//	        Patterns: "connection refused"
//
//	DB005 - Connection reset: Database connection was interrupted
//	        Action: Please try again
//	        Patterns: "connection reset"
//
//	DB006 - Timeout: Operation timed out
//	        Action: Apply fewer changes at once or try again later
//	        Patterns: "timeout"
//
//	DB007 - Deadlock: Database was busy with conflicting operations
//	        Action: Please try again
//	        Patterns: "deadlock"
//
//	DB008 - Missing value: A required column has no value
//	        Action: Fill in every column that does not accept NULL
//	        Patterns: "not-null constraint", "not null constraint", "cannot be null"
//
//	DB009 - Row gone: The row was changed or removed by someone else
//	        Action: Reload the rows and make the change again
//	        Patterns: "matched no rows"
//
// # Row Store Errors (DS001-DS099)
//
// Errors raised before any statement reaches the database:
//
//	DS001 - No primary key: The table has no primary key
//	        Action: Open the table with explicit key columns to edit or delete rows
//	        Patterns: "no primary key"
//
//	DS002 - No update table: The result is not tied to a table
//	        Action: Open the session with a table name
//	        Patterns: "no update table"
//
//	DS003 - Read-only column: This column cannot be changed
//	        Action: Edit another column or the underlying table directly
//	        Patterns: "not updateable"
//
//	DS004 - Unknown column: The column does not exist in this result
//	        Action: Check the column name
//	        Patterns: "column not found", "unknown column"
//
//	DS005 - Cancelled: The operation was cancelled
//	        Action: Start it again when ready
//	        Patterns: "operation cancelled"
//
//	DS006 - Invalid policy: The error policy is not recognized
//	        Action: Use abort, continue or ignore_all
//	        Patterns: "invalid error policy"
//
//	DS007 - Invalid query: Only SELECT queries can open a session
//	        Action: Start the query with SELECT or WITH
//	        Patterns: "must be a select"
//
// # Validation Errors (VAL001-VAL099)
//
// Errors converting an edited value to the column's type:
//
//	VAL001 - Invalid date: Invalid date format detected
//	         Action: Use YYYY-MM-DD or an RFC 3339 timestamp
//	         Patterns: "invalid date"
//
//	VAL002 - Invalid number: Invalid number format detected
//	         Action: Remove currency symbols and use standard decimal format
//	         Patterns: "invalid number"
//
//	VAL003 - Invalid boolean: Value is not a boolean
//	         Action: Use true or false
//	         Patterns: "invalid boolean"
//
//	VAL004 - Invalid binary: Value is not valid base64
//	         Action: Send binary values base64 encoded
//	         Patterns: "invalid binary"
//
//	VAL005 - Row out of range: The row does not exist
//	         Action: Reload the rows and try again
//	         Patterns: "row out of range"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session expired: Session not found
//	         Action: The session may have expired. Please open the table again
//	         Patterns: "session not found"
//
//	SES002 - Too many sessions: The session limit is reached
//	         Action: Close unused sessions and try again
//	         Patterns: "too many open sessions"
//
//	SES003 - System busy: Too many batches are being applied
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent batches"
//
//	SES004 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	SES005 - Request timeout: Request timed out
//	         Action: Apply fewer changes at once or try again later
//	         Patterns: "context deadline exceeded"
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Table not found: The specified table does not exist
//	         Action: Verify the table name is correct
//	         Patterns: "does not exist", "doesn't exist", "no such table"
//
//	TBL002 - Invalid table: The table name is empty or malformed
//	         Action: Provide a table name such as orders or sales.orders
//	         Patterns: "invalid table name"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones. Multiple patterns can map to the same code
// (e.g., DB002 matches both "unique constraint" and "violates unique").
package core

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

var (
	msgDuplicateKey = UserMessage{
		Message: "A record with this key already exists",
		Action:  "Change the key value or delete the existing record first",
		Code:    "DB001",
	}
	msgForeignKey = UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Create the parent record first, or delete child rows before the parent",
		Code:    "DB003",
	}
	msgNotNull = UserMessage{
		Message: "A required column has no value",
		Action:  "Fill in every column that does not accept NULL",
		Code:    "DB008",
	}
	msgUnknownColumn = UserMessage{
		Message: "The column does not exist in this result",
		Action:  "Check the column name",
		Code:    "DS004",
	}
	msgTableNotFound = UserMessage{
		Message: "Table not found",
		Action:  "Verify the table name is correct",
		Code:    "TBL001",
	}
)

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Constraint Errors (DB001-DB003, DB008, DB009)
	// =========================================================================
	{pattern: "duplicate key", msg: msgDuplicateKey},
	{pattern: "duplicate entry", msg: msgDuplicateKey},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Choose a value that is not used by another row",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your edits for duplicate key values",
			Code:    "DB002",
		},
	},
	{pattern: "foreign key constraint", msg: msgForeignKey},
	{pattern: "violates foreign key", msg: msgForeignKey},
	{pattern: "not-null constraint", msg: msgNotNull},
	{pattern: "not null constraint", msg: msgNotNull},
	{pattern: "cannot be null", msg: msgNotNull},
	{
		pattern: "matched no rows",
		msg: UserMessage{
			Message: "The row was changed or removed by someone else",
			Action:  "Reload the rows and make the change again",
			Code:    "DB009",
		},
	},

	// =========================================================================
	// Row Store Errors (DS001-DS007)
	// These are raised before any statement reaches the database.
	// =========================================================================
	{
		pattern: "no primary key",
		msg: UserMessage{
			Message: "The table has no primary key",
			Action:  "Open the table with explicit key columns to edit or delete rows",
			Code:    "DS001",
		},
	},
	{
		pattern: "no update table",
		msg: UserMessage{
			Message: "The result is not tied to a table",
			Action:  "Open the session with a table name",
			Code:    "DS002",
		},
	},
	{
		pattern: "not updateable",
		msg: UserMessage{
			Message: "This column cannot be changed",
			Action:  "Edit another column or the underlying table directly",
			Code:    "DS003",
		},
	},
	{pattern: "column not found", msg: msgUnknownColumn},
	{pattern: "unknown column", msg: msgUnknownColumn},
	{
		pattern: "operation cancelled",
		msg: UserMessage{
			Message: "The operation was cancelled",
			Action:  "Start it again when ready",
			Code:    "DS005",
		},
	},
	{
		pattern: "invalid error policy",
		msg: UserMessage{
			Message: "The error policy is not recognized",
			Action:  "Use abort, continue or ignore_all",
			Code:    "DS006",
		},
	},
	{
		pattern: "must be a select",
		msg: UserMessage{
			Message: "Only SELECT queries can open a session",
			Action:  "Start the query with SELECT or WITH",
			Code:    "DS007",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL005)
	// =========================================================================
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD or an RFC 3339 timestamp",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Remove currency symbols and use standard decimal format",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid boolean",
		msg: UserMessage{
			Message: "Value is not a boolean",
			Action:  "Use true or false",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid binary",
		msg: UserMessage{
			Message: "Value is not valid base64",
			Action:  "Send binary values base64 encoded",
			Code:    "VAL004",
		},
	},
	{
		pattern: "row out of range",
		msg: UserMessage{
			Message: "The row does not exist",
			Action:  "Reload the rows and try again",
			Code:    "VAL005",
		},
	},

	// =========================================================================
	// Session Errors (SES001-SES005)
	// =========================================================================
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Session not found",
			Action:  "The session may have expired. Please open the table again",
			Code:    "SES001",
		},
	},
	{
		pattern: "too many open sessions",
		msg: UserMessage{
			Message: "The session limit is reached",
			Action:  "Close unused sessions and try again",
			Code:    "SES002",
		},
	},
	{
		pattern: "too many concurrent batches",
		msg: UserMessage{
			Message: "Too many batches are being applied",
			Action:  "Please wait a moment and try again",
			Code:    "SES003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SES004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Apply fewer changes at once or try again later",
			Code:    "SES005",
		},
	},

	// =========================================================================
	// Table Errors (TBL001-TBL002)
	// =========================================================================
	{
		pattern: "invalid table name",
		msg: UserMessage{
			Message: "The table name is empty or malformed",
			Action:  "Provide a table name such as orders or sales.orders",
			Code:    "TBL002",
		},
	},
	{pattern: "no such table", msg: msgTableNotFound},
	{pattern: "doesn't exist", msg: msgTableNotFound},
	{pattern: "does not exist", msg: msgTableNotFound},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// Checked last: driver messages often embed these words in longer text.
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Apply fewer changes at once or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := errors.New("duplicate key value violates unique constraint")
//	msg := MapError(err)
//	// msg.Code == "DB001"
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
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
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

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
