// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package montage_test

import (
	"strings"
	"testing"

	"github.com/OpenPSG/montage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	c, err := montage.LoadCatalog(strings.NewReader(`
electrodes: [F3, F4, C3, C4, T3, T7]
physiology:
  - {name: LOC, type: eog}
  - {name: EKG, type: ecg}
equivalences:
  - [T3, T7]
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"F3", "F4", "C3", "C4", "T3", "T7", "LOC", "EKG"}, c.Names())
	assert.Equal(t, montage.ECG, c.Physiology[1].Type)

	eq := c.EquivalenceSet()
	assert.True(t, eq.Equivalent("T3", "T7"))
	assert.True(t, eq.Equivalent("t7", "T3"))
	assert.False(t, eq.Equivalent("T3", "C3"))
}

func TestLoadCatalogInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":         `electrodes: []`,
		"duplicate":     `electrodes: [C3, c3]`,
		"unknown type":  "electrodes: [C3]\nphysiology:\n  - {name: X, type: eeg2}",
		"unknown field": "electrodes: [C3]\nmontage: [C3]",
		"blank name":    `electrodes: ["C3", " "]`,
		"half pair":     "electrodes: [C3]\nequivalences:\n  - [C3, \"\"]",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := montage.LoadCatalog(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestDefaultCatalogValid(t *testing.T) {
	c := montage.DefaultCatalog()
	require.NoError(t, c.Validate())

	// Equivalences are symmetric.
	eq := c.EquivalenceSet()
	for _, pair := range c.Equivalences {
		assert.True(t, eq.Equivalent(pair[0], pair[1]))
		assert.True(t, eq.Equivalent(pair[1], pair[0]))
	}
}
