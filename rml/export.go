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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes the timeline as onset,duration,description rows.
func WriteCSV(w io.Writer, t *Timeline) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"onset", "duration", "description"}); err != nil {
		return fmt.Errorf("error writing annotations: %w", err)
	}

	for _, e := range t.Events {
		row := []string{
			strconv.FormatFloat(e.Onset, 'f', -1, 64),
			strconv.FormatFloat(e.Duration, 'f', -1, 64),
			e.Label,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("error writing annotations: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the timeline events as a JSON array.
func WriteJSON(w io.Writer, t *Timeline) error {
	events := t.Events
	if events == nil {
		events = []Event{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("error writing annotations: %w", err)
	}
	return nil
}
