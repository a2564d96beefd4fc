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
	"testing"

	"github.com/OpenPSG/montage"
	"github.com/stretchr/testify/assert"
)

func TestOrder(t *testing.T) {
	template := []string{"F3", "F4", "C3", "C4", "O1", "O2"}

	got := montage.Order([]string{"ECG", "O1", "C4", "Airflow", "F3", "Light", "C4"}, template)
	assert.Equal(t, []string{"F3", "C4", "O1", "Airflow", "ECG", "Light"}, got)

	// Ordering is idempotent.
	assert.Equal(t, got, montage.Order(got, template))

	// Input order does not matter.
	assert.Equal(t, got, montage.Order([]string{"Light", "C4", "ECG", "F3", "Airflow", "O1"}, template))

	assert.Empty(t, montage.Order(nil, template))
	assert.Equal(t, []string{"a", "b"}, montage.Order([]string{"b", "a"}, nil))
}
