// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import "github.com/pkg/errors"

var (
	// ErrSourceNotFound is returned when the source archive does not exist.
	ErrSourceNotFound = errors.New("source archive not found")

	// ErrNotGzip is returned when the source archive does not start with the gzip magic bytes.
	ErrNotGzip = errors.New("source archive is not gzip compressed")

	// ErrMemberNotFound is returned when a member is not part of the source archive.
	ErrMemberNotFound = errors.New("member not found in source archive")

	// ErrCodecUnavailable is returned when the zstandard encoder cannot be created.
	ErrCodecUnavailable = errors.New("zstandard codec unavailable")

	// ErrInvalidRuleset is returned when a ruleset fails validation.
	ErrInvalidRuleset = errors.New("invalid ruleset")
)
