// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package pipeline prepares one recording: channel normalization, montage
// ordering, flatline synthesis and scoring timeline extraction.
package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/OpenPSG/montage"
	"github.com/OpenPSG/montage/edf"
	"github.com/OpenPSG/montage/rml"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Options configures a Pipeline.
type Options struct {
	Catalog    *montage.Catalog  // Defaults to montage.DefaultCatalog
	Selection  montage.Selection // Defaults to the catalog selection
	Drop       []string          // Raw labels removed before normalization
	Synthesize bool              // Add flatlines for missing electrodes
	Invert     string            // Canonical channel to invert, empty for none
	Timeline   rml.Options
}

// Result is a prepared recording.
type Result struct {
	Recording   *edf.Recording
	Channels    *montage.ChannelSet
	Synthesized []string
	Timeline    *rml.Timeline // Nil without a scoring document
}

// Pipeline prepares recordings. It holds no per-recording state.
type Pipeline struct {
	opts        Options
	normalizer  *montage.Normalizer
	synthesizer *montage.Synthesizer
	builder     *rml.Builder
	logger      zerolog.Logger
}

// New creates a pipeline.
func New(opts Options, logger zerolog.Logger) *Pipeline {
	if opts.Catalog == nil {
		opts.Catalog = montage.DefaultCatalog()
	}
	if opts.Selection == (montage.Selection{}) {
		opts.Selection = montage.DefaultSelection(opts.Catalog)
	}

	return &Pipeline{
		opts:        opts,
		normalizer:  montage.NewNormalizer(opts.Catalog, opts.Selection),
		synthesizer: montage.NewSynthesizer(opts.Catalog.Electrodes, opts.Catalog.EquivalenceSet()),
		builder:     rml.NewBuilder(opts.Timeline),
		logger:      logger,
	}
}

// Run loads an EDF recording and, if scoringPath is set, its scoring
// document, and prepares both.
func (p *Pipeline) Run(recordingPath, scoringPath string) (*Result, error) {
	f, err := os.Open(recordingPath)
	if err != nil {
		return nil, fmt.Errorf("error opening recording: %w", err)
	}
	defer f.Close()

	rec, err := edf.ReadRecording(f)
	if err != nil {
		return nil, &montage.RecordingError{Recording: recordingPath, Err: err}
	}

	var samples int
	for _, s := range rec.Samples {
		samples += len(s)
	}
	p.logger.Debug().
		Str("recording", recordingPath).
		Int("signals", len(rec.Samples)).
		Str("samples", humanize.Comma(int64(samples))).
		Float64("duration", rec.Duration()).
		Msg("Loaded recording")

	res, err := p.Prepare(recordingPath, rec)
	if err != nil {
		return nil, err
	}

	if scoringPath != "" {
		doc, err := LoadScoring(scoringPath)
		if err != nil {
			return nil, err
		}
		res.Timeline = p.Timeline(scoringPath, doc, rec.Duration())
	}

	return res, nil
}

// Prepare normalizes, orders and optionally augments rec in place.
func (p *Pipeline) Prepare(name string, rec *edf.Recording) (*Result, error) {
	logger := p.logger.With().Str("recording", name).Logger()

	for _, label := range p.opts.Drop {
		if err := rec.DropLabel(label); err != nil {
			if errors.Is(err, montage.ErrDuplicateSignalLabel) {
				logger.Debug().Str("label", label).Msg("Signal already dropped")
				continue
			}
			return nil, &montage.RecordingError{Recording: name, Err: err}
		}
	}

	set, err := p.normalizer.Normalize(name, rec.RawChannels())
	if err != nil {
		return nil, err
	}

	for _, e := range set.Excluded {
		logger.Debug().
			Int("index", e.Index).
			Str("label", e.Label).
			Str("canonical", e.Canonical).
			Str("reason", string(e.Reason)).
			Msg("Excluded channel")
	}
	if len(set.MissingPhysiology) > 0 {
		logger.Info().Strs("channels", set.MissingPhysiology).Msg("Missing physiological channels")
	}

	indices := make([]int, len(set.Included))
	for i, a := range set.Included {
		indices[i] = a.Index
	}
	if err := rec.Keep(indices); err != nil {
		return nil, &montage.RecordingError{Recording: name, Err: err}
	}
	rec.Rename(set.RenameMap())

	res := &Result{Recording: rec, Channels: set}

	if p.opts.Synthesize {
		res.Synthesized, err = p.synthesizer.Synthesize(name, rec)
		if err != nil {
			return nil, err
		}
		if len(res.Synthesized) > 0 {
			logger.Warn().Strs("channels", res.Synthesized).Msg("Synthesized flatline channels")
		}
	}

	if err := rec.Reorder(montage.Order(rec.ChannelNames(), p.opts.Catalog.Names())); err != nil {
		return nil, &montage.RecordingError{Recording: name, Err: err}
	}

	if p.opts.Invert != "" && !rec.Invert(p.opts.Invert) {
		logger.Warn().Str("channel", p.opts.Invert).Msg("Channel to invert not present")
	}

	logger.Info().
		Int("included", len(set.Included)).
		Int("excluded", len(set.Excluded)).
		Int("synthesized", len(res.Synthesized)).
		Msg("Normalized channels")

	return res, nil
}

// Timeline extracts the event timeline of doc and logs its issues.
func (p *Pipeline) Timeline(name string, doc *rml.Document, maxTime float64) *rml.Timeline {
	logger := p.logger.With().Str("scoring", name).Logger()

	t := p.builder.Build(doc, maxTime)
	for _, issue := range t.Issues {
		logger.Warn().Str("category", string(issue.Category)).Err(issue.Err).Msg("Scoring issue")
	}

	logger.Info().
		Int("events", len(t.Events)).
		Int("stages", t.Count(rml.CategoryStage)).
		Msg("Extracted timeline")

	return t
}

// LoadScoring parses a scoring document from disk.
func LoadScoring(path string) (*rml.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening scoring document: %w", err)
	}
	defer f.Close()

	doc, err := rml.Parse(f)
	if err != nil {
		return nil, &montage.RecordingError{Recording: path, Err: err}
	}
	return doc, nil
}
