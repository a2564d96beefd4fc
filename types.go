// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package montage resolves vendor channel labels of polysomnography
// recordings to a canonical electrode/signal catalog, orders the result into
// a clinical montage and synthesizes flatline placeholders for absent
// electrodes.
package montage

import "fmt"

// SignalType tags the physiological origin of a channel.
type SignalType string

const (
	EEG  SignalType = "eeg"
	EOG  SignalType = "eog"
	EMG  SignalType = "emg"
	ECG  SignalType = "ecg"
	Resp SignalType = "resp"
	Misc SignalType = "misc"
)

// Valid reports whether t is one of the known signal types.
func (t SignalType) Valid() bool {
	switch t {
	case EEG, EOG, EMG, ECG, Resp, Misc:
		return true
	}
	return false
}

// RawChannel is one channel as reported by a signal source.
type RawChannel struct {
	Label      string     // Label as found in the recording (e.g., EEG C3-A2)
	TypeHint   SignalType // Type reported by the source, empty if unknown
	SampleRate float64    // Samples per second
}

// Tier identifies which matching rule resolved a label.
type Tier int

const (
	TierNone Tier = iota
	// TierBounded matches the canonical name surrounded by non-alphabetic,
	// non-hyphen characters (or the ends of the label).
	TierBounded
	// TierSuffixedReference matches "<name> -<reference>" referential labels.
	TierSuffixedReference
	// TierUnhyphenatedPrefix matches the canonical name at a word boundary
	// that does not follow a hyphen.
	TierUnhyphenatedPrefix
	// TierPhysiological matches an exact physiology catalog entry.
	TierPhysiological
	// TierPassthrough keeps an unmatched label under its own name.
	TierPassthrough
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierBounded:
		return "bounded"
	case TierSuffixedReference:
		return "suffixed-reference"
	case TierUnhyphenatedPrefix:
		return "unhyphenated-prefix"
	case TierPhysiological:
		return "physiological"
	case TierPassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Match is the outcome of resolving one raw label.
type Match struct {
	Canonical string
	Type      SignalType
	Tier      Tier
}

// Assignment records an included channel.
type Assignment struct {
	Index     int        `json:"index"` // Position in the raw channel list
	Label     string     `json:"label"`
	Canonical string     `json:"canonical"`
	Type      SignalType `json:"type"`
	Tier      Tier       `json:"tier"`
}

// ExclusionReason explains why a raw channel was dropped.
type ExclusionReason string

const (
	// ReasonNoMatch means neither the electrode nor the physiology catalog matched.
	ReasonNoMatch ExclusionReason = "no-match"
	// ReasonDeselected means the standardized name failed the pick pattern.
	ReasonDeselected ExclusionReason = "deselected"
	// ReasonDuplicate means an earlier raw channel already claimed the target.
	ReasonDuplicate ExclusionReason = "duplicate"
)

// Exclusion records a dropped channel.
type Exclusion struct {
	Index     int             `json:"index"`
	Label     string          `json:"label"`
	Canonical string          `json:"canonical,omitempty"` // Resolved name, for duplicates and deselections
	Reason    ExclusionReason `json:"reason"`
}
