// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import "errors"

var (
	// ErrPatternNotFound indicates no pattern matched. It is an expected outcome.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrCacheFull indicates an insert into a full cache with eviction disabled.
	ErrCacheFull = errors.New("pattern cache full")

	// ErrCorruptionDetected indicates a stored entry failed its integrity check.
	ErrCorruptionDetected = errors.New("cache corruption detected")

	// ErrInvalidPattern indicates a pattern missing required fields.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrSchemaNotFound indicates no schema is known for a schema type.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrInvalidSchema indicates a schema missing its type.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrInvalidConfig indicates a cache configuration outside its valid range.
	ErrInvalidConfig = errors.New("invalid cache config")
)
