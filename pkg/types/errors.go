// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// ErrEmptyInput is returned when protocol text is empty or whitespace-only.
// It is the only error the screening core raises; callers match it with errors.Is.
var ErrEmptyInput = errors.New("empty input")

// ErrRunNotFound is returned by the run store when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")
