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
	"strings"
)

// Normalizer partitions the raw channels of a recording into included and
// excluded sets and assigns each included channel a canonical name.
type Normalizer struct {
	catalog   *Catalog
	matcher   *Matcher
	selection Selection
}

// NewNormalizer creates a normalizer for the given catalog and selection.
func NewNormalizer(c *Catalog, sel Selection) *Normalizer {
	return &Normalizer{
		catalog:   c,
		matcher:   NewMatcher(c),
		selection: sel,
	}
}

// ChannelSet is the result of normalizing one recording. It is not modified
// after Normalize returns.
type ChannelSet struct {
	Included []Assignment // In recording order
	Excluded []Exclusion  // In recording order
	// MissingPhysiology lists physiology catalog names no included channel
	// resolved to. It is informational only.
	MissingPhysiology []string
}

// Normalize resolves every raw channel once, in recording order. The first
// raw channel to resolve to a canonical name claims it; later ones are
// excluded as duplicates.
func (n *Normalizer) Normalize(recording string, channels []RawChannel) (*ChannelSet, error) {
	set := &ChannelSet{}
	claimed := make(map[string]struct{}, len(channels))

	for i, ch := range channels {
		m, ok := n.matcher.Match(ch.Label)
		if !ok {
			label := strings.TrimSpace(ch.Label)
			if !n.selection.All() || label == "" {
				set.Excluded = append(set.Excluded, Exclusion{Index: i, Label: ch.Label, Reason: ReasonNoMatch})
				continue
			}

			typ := ch.TypeHint
			if !typ.Valid() {
				typ = Misc
			}
			m = Match{Canonical: label, Type: typ, Tier: TierPassthrough}
		}

		if !n.selection.Selects(m.Canonical) {
			set.Excluded = append(set.Excluded, Exclusion{Index: i, Label: ch.Label, Canonical: m.Canonical, Reason: ReasonDeselected})
			continue
		}

		key := strings.ToLower(m.Canonical)
		if _, ok := claimed[key]; ok {
			set.Excluded = append(set.Excluded, Exclusion{Index: i, Label: ch.Label, Canonical: m.Canonical, Reason: ReasonDuplicate})
			continue
		}
		claimed[key] = struct{}{}

		set.Included = append(set.Included, Assignment{
			Index:     i,
			Label:     ch.Label,
			Canonical: m.Canonical,
			Type:      m.Type,
			Tier:      m.Tier,
		})
	}

	if len(set.Included) == 0 {
		return nil, &RecordingError{Recording: recording, Err: ErrAllChannelsDropped}
	}

	for _, p := range n.catalog.Physiology {
		if _, ok := claimed[strings.ToLower(p.Name)]; !ok {
			set.MissingPhysiology = append(set.MissingPhysiology, p.Name)
		}
	}

	return set, nil
}

// RenameMap maps each included raw label to its canonical name.
func (s *ChannelSet) RenameMap() map[string]string {
	m := make(map[string]string, len(s.Included))
	for _, a := range s.Included {
		m[a.Label] = a.Canonical
	}
	return m
}

// Types maps each included canonical name to its signal type.
func (s *ChannelSet) Types() map[string]SignalType {
	m := make(map[string]SignalType, len(s.Included))
	for _, a := range s.Included {
		m[a.Canonical] = a.Type
	}
	return m
}

// Canonical returns the included canonical names in recording order.
func (s *ChannelSet) Canonical() []string {
	names := make([]string, len(s.Included))
	for i, a := range s.Included {
		names[i] = a.Canonical
	}
	return names
}

// IncludedLabels returns the included raw labels in recording order.
func (s *ChannelSet) IncludedLabels() []string {
	labels := make([]string, len(s.Included))
	for i, a := range s.Included {
		labels[i] = a.Label
	}
	return labels
}

// ExcludedLabels returns the excluded raw labels in recording order.
func (s *ChannelSet) ExcludedLabels() []string {
	labels := make([]string, len(s.Excluded))
	for i, e := range s.Excluded {
		labels[i] = e.Label
	}
	return labels
}
