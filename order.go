// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package montage

import "sort"

// Order arranges the present channel names: first every template entry that
// is present, in template order, then the remaining names sorted
// lexicographically. Duplicate names are collapsed.
func Order(present, template []string) []string {
	remaining := make(map[string]struct{}, len(present))
	for _, name := range present {
		remaining[name] = struct{}{}
	}

	ordered := make([]string, 0, len(remaining))
	for _, name := range template {
		if _, ok := remaining[name]; ok {
			ordered = append(ordered, name)
			delete(remaining, name)
		}
	}

	rest := make([]string, 0, len(remaining))
	for name := range remaining {
		rest = append(rest, name)
	}
	sort.Strings(rest)

	return append(ordered, rest...)
}
