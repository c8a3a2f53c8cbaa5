// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// State is a step of a repack run. A run moves through the states in
// order and never goes back.
type State int

const (
	// StateInit is the state before anything was acquired.
	StateInit State = iota

	// StateOpened means the source archive is indexed and the container exists.
	StateOpened

	// StateCounted means the admissible members are counted.
	StateCounted

	// StatePopulated means all admitted members are in the container.
	StatePopulated

	// StateCompressed means the output file is written.
	StateCompressed

	// StateCleaned means the container was removed.
	StateCleaned
)

var stateNames = [...]string{
	StateInit:       "init",
	StateOpened:     "opened",
	StateCounted:    "counted",
	StatePopulated:  "populated",
	StateCompressed: "compressed",
	StateCleaned:    "cleaned",
}

// String returns the name of the state.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Repack reads the gzip compressed tar archive src, copies the members
// selected by the configured [Ruleset] into a transient tar container and
// compresses that container with zstandard into dst.
//
// Listed members missing from src are skipped with a warning. Every other
// failure ends the run. The transient container is removed on every exit
// path, including cancellation of ctx.
func Repack(ctx context.Context, src string, dst string, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}

	// prepare telemetry capturing
	td := &TelemetryData{}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureDuration(td, time.Now())

	r := &run{cfg: cfg, td: td}
	return r.repack(ctx, src, dst)
}

// run holds the state of one Repack invocation
type run struct {
	cfg   *Config
	td    *TelemetryData
	state State
}

// transition moves the run to state s
func (r *run) transition(s State) {
	r.cfg.Logger().Debug("state transition", "from", r.state.String(), "to", s.String())
	r.state = s
	r.td.State = s.String()
}

func (r *run) repack(ctx context.Context, src string, dst string) error {
	cfg := r.cfg
	log := cfg.Logger()

	rs := cfg.Ruleset()
	if err := rs.Validate(); err != nil {
		return r.handleError("invalid ruleset", err)
	}

	if !ValidCompressionLevel(cfg.RequestedCompressionLevel()) {
		log.Warn("compression level out of range, using default",
			"level", cfg.RequestedCompressionLevel(),
			"min", MinCompressionLevel,
			"max", MaxCompressionLevel,
			"default", DefaultCompressionLevel,
		)
	}
	r.td.CompressionLevel = cfg.CompressionLevel()

	// Opened
	source, err := OpenSource(ctx, src)
	if err != nil {
		return r.handleError("cannot open source archive", err)
	}
	sourceClosed := false
	closeSource := func() error {
		if sourceClosed {
			return nil
		}
		sourceClosed = true
		return source.Close()
	}
	defer closeSource()
	r.td.InputSize = source.Size()
	log.Debug("indexed source archive", "path", source.Path(), "members", len(source.Members()))

	if err := r.ensureOutputDir(dst); err != nil {
		return r.handleError("cannot create output directory", err)
	}

	container, err := os.CreateTemp(cfg.TempDir(), "repack-*.tar")
	if err != nil {
		return r.handleError("cannot create transient container", err)
	}
	defer r.cleanup(container)
	r.transition(StateOpened)

	// Counted
	selector := NewSelector(rs, log)
	total := selector.Count(source)
	r.td.AdmissibleMembers = int64(total)
	log.Info("members to process", "count", total)
	r.transition(StateCounted)

	// Populated
	progress := cfg.Progress()
	progress.Start(total)
	t := NewTranscoder(container, cfg)
	err = r.populate(ctx, selector, source, t)
	progress.Finish()
	r.td.CopiedMembers = t.Copied()
	if err != nil {
		return err
	}
	if err := t.Close(); err != nil {
		return r.handleError("cannot finish container", err)
	}
	if err := container.Close(); err != nil {
		return r.handleError("cannot close container", err)
	}
	if err := closeSource(); err != nil {
		return r.handleError("cannot close source archive", err)
	}
	r.td.ContainerSize = t.Written()
	if t.Copied() != int64(total) {
		log.Warn("copied members differ from count", "counted", total, "copied", t.Copied())
	}
	r.transition(StatePopulated)

	// Compressed
	report, err := Finalize(ctx, container.Name(), dst, cfg)
	if err != nil {
		return r.handleError("cannot compress container", err)
	}
	r.td.CompressedSize = report.CompressedSize
	r.td.ContainerDigest = report.ContainerDigest
	r.transition(StateCompressed)

	log.Info("created archive", "path", dst, "members", t.Copied(), "report", report.String())
	return nil
}

// populate copies every admitted member into the container
func (r *run) populate(ctx context.Context, selector *Selector, source *SourceArchive, t *Transcoder) error {
	r.td.MissingMembers = int64(len(selector.Missing(source)))
	for _, sel := range selector.Plan(source) {
		if err := ctx.Err(); err != nil {
			return r.handleError("run interrupted", err)
		}
		if _, err := t.CopyMember(ctx, source, sel.Member, sel.Destination); err != nil {
			return r.handleError(fmt.Sprintf("cannot copy %s", sel.Member.Name), err)
		}
	}
	return nil
}

// ensureOutputDir creates the directory of dst if requested
func (r *run) ensureOutputDir(dst string) error {
	dir := filepath.Dir(dst)
	if _, err := os.Stat(dir); err == nil || !r.cfg.CreateDestination() {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	r.cfg.Logger().Info("created output directory", "path", dir)
	return nil
}

// cleanup removes the transient container. A failure is logged and does not
// change the outcome of the run.
func (r *run) cleanup(container *os.File) {
	container.Close()
	if err := os.Remove(container.Name()); err != nil && !os.IsNotExist(err) {
		r.cfg.Logger().Warn("cannot remove transient container", "path", container.Name(), "err", err)
	} else {
		r.cfg.Logger().Debug("removed transient container", "path", container.Name())
	}
	r.transition(StateCleaned)
}

// handleError records err in the telemetry data and returns it wrapped with msg
func (r *run) handleError(msg string, err error) error {
	r.td.LastError = errors.Wrap(err, msg)
	r.cfg.Logger().Error(msg, "state", r.state.String(), "error", err)
	return r.td.LastError
}
