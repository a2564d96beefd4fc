// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rml

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Category groups timeline events by origin.
type Category string

const (
	CategoryStage          Category = "stage"
	CategoryChannelFailure Category = "channel-failure"
	CategoryRespiratory    Category = "respiratory"
	CategoryArousal        Category = "arousal"
	CategoryDeviceArousal  Category = "device-arousal"
)

const (
	// ChannelFailureLabel marks intervals where a primary EEG channel failed.
	// The BAD_ prefix makes annotation consumers reject the span.
	ChannelFailureLabel = "BAD_ChannelFail"
	// ArousalLabel is the label of scored arousals, whatever their casing.
	ArousalLabel = "Arousal"
	// DefaultDeviceArousalType is the event type written by the device's
	// automatic arousal scoring.
	DefaultDeviceArousalType = "AutoArousal"
	// DefaultMaxFailureChannel is the last signal index of the primary EEG bank.
	DefaultMaxFailureChannel = 8
)

// RespiratoryTypes is the closed set of respiratory event types.
var RespiratoryTypes = []string{
	"CentralApnea",
	"ObstructiveApnea",
	"MixedApnea",
	"CentralHypopnea",
	"ObstructiveHypopnea",
	"RERA",
	"RelativeDesaturation",
}

var (
	// ErrInvalidTime is reported for onsets or durations that are not numbers.
	ErrInvalidTime = errors.New("invalid time value")
	// ErrNegativeDuration is reported when stage onsets are out of order or
	// run past the end of the recording.
	ErrNegativeDuration = errors.New("negative stage duration")
)

// Event is one (onset, duration, label) entry of a timeline, in seconds.
type Event struct {
	Onset    float64  `json:"onset"`
	Duration float64  `json:"duration"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
}

// Issue is a recoverable problem found while building a timeline.
type Issue struct {
	Category Category
	Err      error
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %v", i.Category, i.Err)
}

// Timeline is the ordered event list of one scoring document. Events keep
// extraction order: stages, channel failures, respiratory events, arousals,
// device arousals.
type Timeline struct {
	Events []Event
	Issues []Issue
}

// Count returns the number of events in a category.
func (t *Timeline) Count(c Category) int {
	n := 0
	for _, e := range t.Events {
		if e.Category == c {
			n++
		}
	}
	return n
}

// Options selects the optional categories.
type Options struct {
	ChannelFailures   bool
	Respiratory       bool
	MaxFailureChannel *int   // Nil for DefaultMaxFailureChannel
	DeviceArousalType string // Defaults to DefaultDeviceArousalType
}

// Builder extracts timelines from scoring documents.
type Builder struct {
	opts              Options
	maxFailureChannel int
	respiratory       map[string]struct{}
}

// NewBuilder creates a builder.
func NewBuilder(opts Options) *Builder {
	maxFailureChannel := DefaultMaxFailureChannel
	if opts.MaxFailureChannel != nil {
		maxFailureChannel = *opts.MaxFailureChannel
	}
	if opts.DeviceArousalType == "" {
		opts.DeviceArousalType = DefaultDeviceArousalType
	}

	resp := make(map[string]struct{}, len(RespiratoryTypes))
	for _, t := range RespiratoryTypes {
		resp[t] = struct{}{}
	}

	return &Builder{opts: opts, maxFailureChannel: maxFailureChannel, respiratory: resp}
}

// Build extracts the timeline of doc. maxTime is the recording length in
// seconds; the last stage runs until it.
func (b *Builder) Build(doc *Document, maxTime float64) *Timeline {
	t := &Timeline{}

	b.stages(t, doc, maxTime)
	if b.opts.ChannelFailures {
		b.channelFailures(t, doc)
	}
	if b.opts.Respiratory {
		b.matching(t, doc, CategoryRespiratory, func(typ string) (string, bool) {
			_, ok := b.respiratory[typ]
			return typ, ok
		})
	}
	b.matching(t, doc, CategoryArousal, func(typ string) (string, bool) {
		return ArousalLabel, strings.EqualFold(typ, ArousalLabel)
	})
	b.matching(t, doc, CategoryDeviceArousal, func(typ string) (string, bool) {
		return b.opts.DeviceArousalType, typ == b.opts.DeviceArousalType
	})

	return t
}

// stages appends one event per Stage element. Onsets are truncated to whole
// seconds and each stage lasts until the next one starts.
func (b *Builder) stages(t *Timeline, doc *Document, maxTime float64) {
	staging, err := doc.Path("ScoringData", "StagingData", "UserStaging", "NeuroAdultAASMStaging")
	if err != nil {
		t.Issues = append(t.Issues, Issue{Category: CategoryStage, Err: err})
		return
	}

	type stage struct {
		onset float64
		label string
	}
	var stages []stage
	for _, n := range staging.ChildrenNamed("Stage") {
		v, _ := n.Attr("Start")
		start, err := parseSeconds(v)
		if err != nil {
			t.Issues = append(t.Issues, Issue{Category: CategoryStage, Err: err})
			continue
		}
		label, _ := n.Attr("Type")
		stages = append(stages, stage{onset: math.Trunc(start), label: label})
	}

	for i, s := range stages {
		end := maxTime
		if i+1 < len(stages) {
			end = stages[i+1].onset
		}

		duration := end - s.onset
		if duration < 0 {
			t.Issues = append(t.Issues, Issue{
				Category: CategoryStage,
				Err:      fmt.Errorf("%w: stage %d (%s) at %gs", ErrNegativeDuration, i, s.label, s.onset),
			})
			duration = 0
		}

		t.Events = append(t.Events, Event{Onset: s.onset, Duration: duration, Label: s.label, Category: CategoryStage})
	}
}

// channelFailures appends ChannelFail events of the primary EEG bank.
func (b *Builder) channelFailures(t *Timeline, doc *Document) {
	events, err := doc.Path("ScoringData", "Events")
	if err != nil {
		t.Issues = append(t.Issues, Issue{Category: CategoryChannelFailure, Err: err})
		return
	}

	for _, n := range events.ChildrenNamed("Event") {
		if typ, _ := n.Attr("Type"); typ != "ChannelFail" {
			continue
		}

		v, ok := n.Value("Channel")
		if !ok {
			t.Issues = append(t.Issues, Issue{Category: CategoryChannelFailure, Err: fmt.Errorf("%w: channel failure without channel", ErrMalformedScoringPath)})
			continue
		}
		channel, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			t.Issues = append(t.Issues, Issue{Category: CategoryChannelFailure, Err: fmt.Errorf("error parsing channel %q: %w", v, err)})
			continue
		}
		if channel > b.maxFailureChannel {
			continue
		}

		b.appendPointEvent(t, n, CategoryChannelFailure, ChannelFailureLabel)
	}
}

// matching appends every Event element in the document whose type the
// label function accepts.
func (b *Builder) matching(t *Timeline, doc *Document, c Category, label func(typ string) (string, bool)) {
	doc.Root.Walk(func(n *Node) {
		if !n.Is("Event") {
			return
		}
		typ, _ := n.Attr("Type")
		if l, ok := label(typ); ok {
			b.appendPointEvent(t, n, c, l)
		}
	})
}

// appendPointEvent takes onset and duration verbatim from the element.
func (b *Builder) appendPointEvent(t *Timeline, n *Node, c Category, label string) {
	startAttr, _ := n.Attr("Start")
	onset, err := parseSeconds(startAttr)
	if err != nil {
		t.Issues = append(t.Issues, Issue{Category: c, Err: err})
		return
	}
	durationAttr, _ := n.Attr("Duration")
	duration, err := parseSeconds(durationAttr)
	if err != nil {
		t.Issues = append(t.Issues, Issue{Category: c, Err: err})
		return
	}

	t.Events = append(t.Events, Event{Onset: onset, Duration: duration, Label: label, Category: c})
}

func parseSeconds(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return v, nil
}
