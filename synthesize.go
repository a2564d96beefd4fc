// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package montage

import (
	"fmt"
	"strings"
)

// Flatline is a zero-valued placeholder channel.
type Flatline struct {
	Name       string
	Type       SignalType
	SampleRate float64
	Samples    []float64
	Bad        bool // Always set: the channel carries no recorded data
}

// Target is a recording that flatline channels can be added to.
type Target interface {
	// ChannelNames returns the current channel names.
	ChannelNames() []string
	// Continuous reports whether channels of arbitrary length can be added.
	Continuous() bool
	// NewFlatline allocates a zero-valued buffer sized to the recording.
	NewFlatline(name string, typ SignalType) (Flatline, error)
	// Attach adds all flatlines at once.
	Attach(flatlines []Flatline) error
}

// Synthesizer fills in montage channels a recording lacks.
type Synthesizer struct {
	montage      []string
	equivalences EquivalenceSet
}

// NewSynthesizer creates a synthesizer for the given montage names.
func NewSynthesizer(montage []string, eq EquivalenceSet) *Synthesizer {
	return &Synthesizer{montage: montage, equivalences: eq}
}

// Missing returns the montage names that are absent from present and have
// no equivalent present. A name chosen for synthesis counts as present for
// the names after it, so only one of an equivalent pair is ever returned.
func (s *Synthesizer) Missing(present []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, name := range present {
		have[strings.ToLower(name)] = struct{}{}
	}

	var missing []string
	for _, name := range s.montage {
		if s.covered(have, name) {
			continue
		}
		missing = append(missing, name)
		have[strings.ToLower(name)] = struct{}{}
	}
	return missing
}

func (s *Synthesizer) covered(have map[string]struct{}, name string) bool {
	if _, ok := have[strings.ToLower(name)]; ok {
		return true
	}
	for _, p := range s.equivalences.Partners(name) {
		if _, ok := have[p]; ok {
			return true
		}
	}
	return false
}

// Synthesize attaches a bad-flagged flatline for every missing montage
// channel and returns their names. Either all flatlines are attached or none.
func (s *Synthesizer) Synthesize(recording string, t Target) ([]string, error) {
	if !t.Continuous() {
		return nil, &RecordingError{Recording: recording, Err: ErrUnsupportedSynthesisTarget}
	}

	missing := s.Missing(t.ChannelNames())
	if len(missing) == 0 {
		return nil, nil
	}

	flatlines := make([]Flatline, 0, len(missing))
	for _, name := range missing {
		f, err := t.NewFlatline(name, EEG)
		if err != nil {
			return nil, &RecordingError{Recording: recording, Err: fmt.Errorf("error allocating flatline %s: %w", name, err)}
		}
		f.Bad = true
		flatlines = append(flatlines, f)
	}

	if err := t.Attach(flatlines); err != nil {
		return nil, &RecordingError{Recording: recording, Err: fmt.Errorf("error attaching flatlines: %w", err)}
	}

	return missing, nil
}
