// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/montage/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile writes rec to a temporary EDF file and returns its contents.
func writeFile(t *testing.T, rec *edf.Recording) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rec.edf")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, edf.WriteRecording(f, rec))
	require.NoError(t, f.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func TestReader(t *testing.T) {
	start := time.Date(2024, 3, 14, 22, 15, 0, 0, time.UTC)
	rec := newRecording(3, 2, "EEG C3-A2", "ECG", "Light", edf.AnnotationsLabel)
	rec.Header.PatientID = "X F 14-MAR-1970 Patient"
	rec.Header.RecordingID = "Startdate 14-MAR-2024 PSG"
	rec.Header.StartTime = start
	rec.Header.Reserved = "EDF+C"
	rec.Samples[1] = []float64{0.5, -0.5, 0.25, -0.25, 1, -1}

	b := writeFile(t, rec)
	assert.Len(t, b, 256+4*256+3*4*2*2)

	hdr, err := edf.ReadHeader(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, edf.Version0, hdr.Version)
	assert.Equal(t, "X F 14-MAR-1970 Patient", hdr.PatientID)
	assert.Equal(t, "Startdate 14-MAR-2024 PSG", hdr.RecordingID)
	assert.Equal(t, start, hdr.StartTime)
	assert.Equal(t, 256+4*256, hdr.HeaderBytes)
	assert.Equal(t, "EDF+C", hdr.Reserved)
	assert.False(t, hdr.Discontinuous())
	assert.Equal(t, 3, hdr.DataRecords)
	assert.Equal(t, time.Second, hdr.DataRecordDuration)
	require.Equal(t, 4, hdr.SignalCount)
	assert.Equal(t, "ECG", hdr.Signals[1].Label)
	assert.Equal(t, "uV", hdr.Signals[1].PhysicalDimension)
	assert.Equal(t, -32768, hdr.Signals[1].DigitalMin)
	assert.Equal(t, 2, hdr.Signals[1].SamplesPerRecord)

	got, err := edf.ReadRecording(bytes.NewReader(b))
	require.NoError(t, err)
	require.Len(t, got.Samples, 3)
	for i, v := range []float64{0.5, -0.5, 0.25, -0.25, 1, -1} {
		assert.InDelta(t, v, got.Samples[1][i], 0.001)
	}
	assert.Equal(t, []bool{false, false, false}, got.Bad)
}

func TestReaderSkipsAnnotations(t *testing.T) {
	rec := newRecording(2, 4, "EEG C3-A2", edf.AnnotationsLabel, "ECG")
	rec.Samples[2] = []float64{1, 1, 1, 1, 1, 1, 1, 1}

	got, err := edf.ReadRecording(bytes.NewReader(writeFile(t, rec)))
	require.NoError(t, err)

	assert.Equal(t, []string{"EEG C3-A2", "ECG"}, got.ChannelNames())
	assert.Equal(t, 2, got.Header.SignalCount)
	require.Len(t, got.Samples[1], 8)
	for _, v := range got.Samples[1] {
		assert.InDelta(t, 1.0, v, 0.001)
	}
}

func TestReaderErrors(t *testing.T) {
	b := writeFile(t, newRecording(2, 4, "EEG C3-A2"))

	type field struct {
		from, to int // Byte range in a single-signal file
		value    string
	}
	patch := func(fields ...field) []byte {
		bad := bytes.Clone(b)
		for _, f := range fields {
			copy(bad[f.from:f.to], fmt.Sprintf("%-*s", f.to-f.from, f.value))
		}
		return bad
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated header", b[:100]},
		{"truncated signal header", b[:300]},
		{"truncated data record", b[:len(b)-1]},
		{"bad start date", patch(field{168, 176, "xx.yy.zz"})},
		{"bad physical minimum", patch(field{360, 368, "low"})},
		{"non-finite physical maximum", patch(field{368, 376, "NaN"})},
		{"bad digital minimum", patch(field{376, 384, "-32k"})},
		{"negative samples per record", patch(field{472, 480, "-1"})},
		{"garbage samples per record", patch(field{472, 480, "four"})},
		{"samples per record past the data", patch(field{472, 480, "99999999"})},
		{"too many samples", patch(field{236, 244, "99999999"}, field{472, 480, "99999999"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				_, err := edf.ReadRecording(bytes.NewReader(tt.data))
				assert.Error(t, err)
			})
		})
	}
}
