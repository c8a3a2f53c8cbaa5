// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"context"
	"encoding/json"
	"time"
)

// TelemetryData holds all telemetry data of a repack run.
type TelemetryData struct {
	// AdmissibleMembers is the number of members found by the count-ahead scan
	AdmissibleMembers int64 `json:"admissible_members"`

	// CompressedSize is the size of the final zstandard artifact
	CompressedSize int64 `json:"compressed_size"`

	// CompressionLevel is the zstandard level that was used
	CompressionLevel int `json:"compression_level"`

	// ContainerDigest is the hex encoded BLAKE3 digest of the uncompressed container
	ContainerDigest string `json:"container_digest"`

	// ContainerSize is the size of the uncompressed tar container
	ContainerSize int64 `json:"container_size"`

	// CopiedMembers is the number of members written to the container
	CopiedMembers int64 `json:"copied_members"`

	// Duration is the time the whole run took
	Duration time.Duration `json:"duration"`

	// InputSize is the size of the source archive
	InputSize int64 `json:"input_size"`

	// LastError is the error that ended the run
	LastError error `json:"last_error"`

	// MissingMembers is the number of listed exact paths absent from the source
	MissingMembers int64 `json:"missing_members"`

	// State is the last state the run reached
	State string `json:"state"`
}

// String returns a string representation of [TelemetryData].
func (td TelemetryData) String() string {
	b, _ := json.Marshal(td)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (td TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if td.LastError != nil {
		lastError = td.LastError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastError string `json:"last_error"`
		*Alias
	}{
		LastError: lastError,
		Alias:     (*Alias)(&td),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after a run has finished, successful or not.
type TelemetryHook func(context.Context, *TelemetryData)

// Equals returns true if the given [TelemetryData] is equal to the receiver.
// Duration and LastError are not compared.
func (td *TelemetryData) Equals(other *TelemetryData) bool {
	if td == nil && other == nil {
		return true
	}
	if td == nil || other == nil {
		return false
	}
	return td.AdmissibleMembers == other.AdmissibleMembers &&
		td.CompressedSize == other.CompressedSize &&
		td.CompressionLevel == other.CompressionLevel &&
		td.ContainerDigest == other.ContainerDigest &&
		td.ContainerSize == other.ContainerSize &&
		td.CopiedMembers == other.CopiedMembers &&
		td.InputSize == other.InputSize &&
		td.MissingMembers == other.MissingMembers &&
		td.State == other.State
}

// captureDuration sets the duration of the run
func captureDuration(td *TelemetryData, start time.Time) {
	td.Duration = time.Since(start)
}
