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
	"regexp"
	"strings"
)

// SelectAll is the pick pattern that disables channel filtering.
const SelectAll = "all"

// Selection decides which standardized channel names are kept.
type Selection struct {
	all bool
	re  *regexp.Regexp
}

// ParseSelection builds a selection from a pick pattern. An empty pattern
// selects every catalog name, "all" selects everything (unmatched labels
// included) and anything else is compiled as a regular expression.
func ParseSelection(pattern string, c *Catalog) (Selection, error) {
	switch pattern {
	case "":
		return DefaultSelection(c), nil
	case SelectAll:
		return Selection{all: true}, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return Selection{}, fmt.Errorf("error compiling pick pattern: %w", err)
	}
	return Selection{re: re}, nil
}

// DefaultSelection matches any catalog name as a whole word.
func DefaultSelection(c *Catalog) Selection {
	names := c.Names()
	alts := make([]string, len(names))
	for i, name := range names {
		alts[i] = `\b` + regexp.QuoteMeta(name) + `\b`
	}
	return Selection{re: regexp.MustCompile(strings.Join(alts, "|"))}
}

// All reports whether the selection disables filtering.
func (s Selection) All() bool {
	return s.all
}

// Selects reports whether name is kept.
func (s Selection) Selects(name string) bool {
	if s.all || s.re == nil {
		return true
	}
	return s.re.MatchString(name)
}

func (s Selection) String() string {
	if s.all {
		return SelectAll
	}
	if s.re == nil {
		return ""
	}
	return s.re.String()
}
