// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package chat

import "errors"

// ErrNotFound is returned when a referenced message does not exist.
var ErrNotFound = errors.New("message not found")

// ErrNotAuthorized is returned when the caller is not the message author.
var ErrNotAuthorized = errors.New("not the message author")

// ErrInvalidInput is returned for missing or malformed mutation input.
var ErrInvalidInput = errors.New("invalid input")

// ErrTimeout is returned when a list read exceeds its time budget.
var ErrTimeout = errors.New("list timed out")
