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
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// PhysiologyEntry is a non-EEG catalog name with its signal type.
type PhysiologyEntry struct {
	Name string     `yaml:"name"`
	Type SignalType `yaml:"type"`
}

// Catalog is the ordered reference list raw labels are resolved against.
// Electrode order is a matching priority: earlier entries win.
type Catalog struct {
	Electrodes   []string          `yaml:"electrodes"`
	Physiology   []PhysiologyEntry `yaml:"physiology"`
	Equivalences [][2]string       `yaml:"equivalences"`
}

// DefaultCatalog returns the built-in 10-20 sleep catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Electrodes: []string{
			"Fp1", "Fp2", "F7", "F3", "Fz", "F4", "F8",
			"T3", "T7", "C3", "Cz", "C4", "T4", "T8",
			"T5", "P7", "P3", "Pz", "P4", "T6", "P8",
			"O1", "Oz", "O2",
			"A1", "M1", "A2", "M2",
		},
		Physiology: []PhysiologyEntry{
			{Name: "E1", Type: EOG},
			{Name: "E2", Type: EOG},
			{Name: "LOC", Type: EOG},
			{Name: "ROC", Type: EOG},
			{Name: "Chin", Type: EMG},
			{Name: "EMG", Type: EMG},
			{Name: "LLeg", Type: EMG},
			{Name: "RLeg", Type: EMG},
			{Name: "ECG", Type: ECG},
			{Name: "EKG", Type: ECG},
			{Name: "Airflow", Type: Resp},
			{Name: "Flow", Type: Resp},
			{Name: "Pressure", Type: Resp},
			{Name: "Thorax", Type: Resp},
			{Name: "Abdomen", Type: Resp},
			{Name: "Snore", Type: Resp},
			{Name: "SpO2", Type: Resp},
			{Name: "Pleth", Type: Misc},
			{Name: "Pulse", Type: Misc},
			{Name: "Position", Type: Misc},
		},
		Equivalences: [][2]string{
			{"T3", "T7"},
			{"T4", "T8"},
			{"T5", "P7"},
			{"T6", "P8"},
			{"A1", "M1"},
			{"A2", "M2"},
		},
	}
}

// LoadCatalog reads a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("error decoding catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks that names are unique and types known.
func (c *Catalog) Validate() error {
	if len(c.Electrodes) == 0 && len(c.Physiology) == 0 {
		return fmt.Errorf("catalog is empty")
	}

	seen := make(map[string]struct{}, len(c.Electrodes)+len(c.Physiology))
	check := func(name string) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("catalog contains an empty name")
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("catalog name %q is listed twice", name)
		}
		seen[key] = struct{}{}
		return nil
	}

	for _, name := range c.Electrodes {
		if err := check(name); err != nil {
			return err
		}
	}
	for _, p := range c.Physiology {
		if err := check(p.Name); err != nil {
			return err
		}
		if !p.Type.Valid() {
			return fmt.Errorf("catalog entry %q has unknown type %q", p.Name, p.Type)
		}
	}
	for _, pair := range c.Equivalences {
		if pair[0] == "" || pair[1] == "" {
			return fmt.Errorf("equivalence %v has an empty side", pair)
		}
	}

	return nil
}

// Names returns electrode names followed by physiology names, the default
// ordering template.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Electrodes)+len(c.Physiology))
	names = append(names, c.Electrodes...)
	for _, p := range c.Physiology {
		names = append(names, p.Name)
	}
	return names
}

// EquivalenceSet returns the catalog's equivalences as a lookup.
func (c *Catalog) EquivalenceSet() EquivalenceSet {
	return NewEquivalenceSet(c.Equivalences...)
}

// EquivalenceSet holds symmetric pairs of names for the same physical site.
type EquivalenceSet struct {
	partners map[string][]string
}

// NewEquivalenceSet builds a symmetric set from pairs. Names compare
// case-insensitively.
func NewEquivalenceSet(pairs ...[2]string) EquivalenceSet {
	s := EquivalenceSet{partners: make(map[string][]string)}
	for _, p := range pairs {
		a, b := strings.ToLower(p[0]), strings.ToLower(p[1])
		if a == b {
			continue
		}
		s.partners[a] = appendUnique(s.partners[a], b)
		s.partners[b] = appendUnique(s.partners[b], a)
	}
	return s
}

// Equivalent reports whether a and b denote the same site.
func (s EquivalenceSet) Equivalent(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	for _, p := range s.partners[a] {
		if p == b {
			return true
		}
	}
	return false
}

// Partners returns the lower-cased names equivalent to name.
func (s EquivalenceSet) Partners(name string) []string {
	return s.partners[strings.ToLower(name)]
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
