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
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// rule is a single ranked matching rule for one catalog electrode.
type rule struct {
	tier      Tier
	canonical string
	re        *regexp.Regexp
}

// Matcher resolves raw channel labels against a catalog.
//
// Rules are evaluated tier by tier; within a tier, electrodes are tried in
// catalog order. The first rule that fires wins. Labels that no electrode
// rule matches are looked up verbatim in the physiology catalog.
type Matcher struct {
	rules      []rule
	physiology map[string]PhysiologyEntry
}

// NewMatcher compiles the matching rules for a catalog.
func NewMatcher(c *Catalog) *Matcher {
	m := &Matcher{
		rules:      make([]rule, 0, 3*len(c.Electrodes)),
		physiology: make(map[string]PhysiologyEntry, len(c.Physiology)),
	}

	tiers := []struct {
		tier    Tier
		pattern func(q string) string
	}{
		{TierBounded, func(q string) string { return `(?i)(?:^|[^A-Za-z-])` + q + `(?:[^A-Za-z-]|$)` }},
		{TierSuffixedReference, func(q string) string { return `(?i)\b` + q + ` *-.*$` }},
		{TierUnhyphenatedPrefix, func(q string) string { return `(?i)(?:^|[^-])\b` + q }},
	}
	for _, t := range tiers {
		for _, name := range c.Electrodes {
			m.rules = append(m.rules, rule{
				tier:      t.tier,
				canonical: name,
				re:        regexp.MustCompile(t.pattern(regexp.QuoteMeta(name))),
			})
		}
	}

	for _, p := range c.Physiology {
		m.physiology[strings.ToLower(p.Name)] = p
	}

	return m
}

// Match returns the canonical channel for label, or false if the label
// should be excluded.
func (m *Matcher) Match(label string) (Match, bool) {
	folded := FoldLabel(label)
	if folded == "" {
		return Match{}, false
	}

	for _, r := range m.rules {
		if r.re.MatchString(folded) {
			return Match{Canonical: r.canonical, Type: EEG, Tier: r.tier}, true
		}
	}

	if p, ok := m.physiology[strings.ToLower(folded)]; ok {
		return Match{Canonical: p.Name, Type: p.Type, Tier: TierPhysiological}, true
	}

	return Match{}, false
}

// dashes maps Unicode dash punctuation and the minus sign to an ASCII hyphen.
var dashes = runes.Map(func(r rune) rune {
	if r == '−' || (r != '-' && unicode.Is(unicode.Pd, r)) {
		return '-'
	}
	return r
})

// FoldLabel normalizes a vendor label before matching: NFKC compatibility
// folding, dash punctuation to '-', surrounding space trimmed.
func FoldLabel(label string) string {
	s, _, err := transform.String(transform.Chain(norm.NFKC, dashes), label)
	if err != nil {
		s = label
	}
	return strings.TrimSpace(s)
}
