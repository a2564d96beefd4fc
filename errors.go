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
	"errors"
	"fmt"
)

var (
	// ErrAllChannelsDropped is returned when normalization leaves no usable channels.
	ErrAllChannelsDropped = errors.New("no usable channels")
	// ErrUnsupportedSynthesisTarget is returned when a recording cannot accept
	// flatline channels, e.g. discontinuous or epoched data.
	ErrUnsupportedSynthesisTarget = errors.New("recording does not support channel insertion")
	// ErrDuplicateSignalLabel is returned by signal sources when a label that
	// was already dropped is dropped again. Callers treat it as recoverable.
	ErrDuplicateSignalLabel = errors.New("duplicate signal label")
)

// RecordingError ties a fatal error to the recording it occurred in.
type RecordingError struct {
	Recording string
	Err       error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Recording, e.Err)
}

func (e *RecordingError) Unwrap() error {
	return e.Err
}
