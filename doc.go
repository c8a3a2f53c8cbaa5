// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

// Package repack builds a zstandard compressed tar archive from selected
// members of a gzip compressed tar archive.
//
// Which members are selected, and where they end up, is decided by a
// [Ruleset]: an ordered list of rules that either name exact paths or match
// all files below a directory prefix, optionally restricted by a suffix. A
// fixed root token is trimmed from every destination path; exact root move
// rules flatten their members to the container root.
//
// Configuration is done using the [Config], which is built with [NewConfig]
// and functional options such as [WithCompressionLevel], [WithLogger] and
// [WithRuleset]. Telemetry data is handed to a [TelemetryHook] after every
// run.
package repack
