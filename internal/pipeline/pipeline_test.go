// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pipeline_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/montage"
	"github.com/OpenPSG/montage/edf"
	"github.com/OpenPSG/montage/internal/pipeline"
	"github.com/OpenPSG/montage/rml"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecording(labels ...string) *edf.Recording {
	const records, spr = 120, 2

	rec := &edf.Recording{
		Header: edf.Header{
			Version:            edf.Version0,
			StartTime:          time.Date(2024, 1, 2, 23, 0, 0, 0, time.UTC),
			DataRecordDuration: time.Second,
			DataRecords:        records,
			SignalCount:        len(labels),
		},
	}
	for i, label := range labels {
		rec.Header.Signals = append(rec.Header.Signals, edf.Signal{
			Label:             label,
			PhysicalDimension: "uV",
			PhysicalMin:       -100,
			PhysicalMax:       100,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  spr,
		})
		samples := make([]float64, records*spr)
		for n := range samples {
			samples[n] = float64(i + 1)
		}
		rec.Samples = append(rec.Samples, samples)
		rec.Bad = append(rec.Bad, false)
	}
	return rec
}

func writeEDF(t *testing.T, dir string, rec *edf.Recording) string {
	t.Helper()

	path := filepath.Join(dir, "night1.edf")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, edf.WriteRecording(f, rec))
	require.NoError(t, f.Close())
	return path
}

const scoring = `<PatientStudy xmlns="http://www.respironics.com/PatientStudy.xsd">
  <ScoringData>
    <Events>
      <Event Type="ObstructiveApnea" Start="40.5" Duration="12"/>
      <Event Type="Arousal" Start="52" Duration="3"/>
    </Events>
    <StagingData><UserStaging><NeuroAdultAASMStaging>
      <Stage Type="Wake" Start="0"/>
      <Stage Type="NonREM2" Start="30"/>
    </NeuroAdultAASMStaging></UserStaging></StagingData>
  </ScoringData>
</PatientStudy>`

func TestRun(t *testing.T) {
	dir := t.TempDir()
	edfPath := writeEDF(t, dir, newRecording("ECG", "EEG O1-A2", "Light", "EEG C3-A2", "EEG C3-M2", "Snore"))
	rmlPath := filepath.Join(dir, "night1.rml")
	require.NoError(t, os.WriteFile(rmlPath, []byte(scoring), 0o644))

	var logs bytes.Buffer
	p := pipeline.New(pipeline.Options{
		Catalog: &montage.Catalog{
			Electrodes:   []string{"C3", "C4", "O1", "T6"},
			Physiology:   []montage.PhysiologyEntry{{Name: "ECG", Type: montage.ECG}, {Name: "Snore", Type: montage.Resp}},
			Equivalences: [][2]string{{"T6", "P8"}},
		},
		Drop:       []string{"Light", "Light"},
		Synthesize: true,
		Invert:     "ECG",
		Timeline:   rml.Options{Respiratory: true},
	}, zerolog.New(&logs).Level(zerolog.DebugLevel))

	res, err := p.Run(edfPath, rmlPath)
	require.NoError(t, err)

	rec := res.Recording
	assert.Equal(t, []string{"C3", "C4", "O1", "T6", "ECG", "Snore"}, rec.ChannelNames())
	assert.Equal(t, []string{"C4", "T6"}, res.Synthesized)
	assert.Equal(t, []bool{false, true, false, true, false, false}, rec.Bad)
	assert.Equal(t, map[string]string{"ECG": "ECG", "EEG O1-A2": "O1", "EEG C3-A2": "C3", "Snore": "Snore"}, res.Channels.RenameMap())
	assert.Equal(t, []string{"EEG C3-M2"}, res.Channels.ExcludedLabels())

	// ECG was the first signal and is inverted; C3 was the fourth.
	assert.InDelta(t, -1.0, rec.Samples[4][0], 0.01)
	assert.InDelta(t, 4.0, rec.Samples[0][0], 0.01)

	require.NotNil(t, res.Timeline)
	assert.Equal(t, []rml.Event{
		{Onset: 0, Duration: 30, Label: "Wake", Category: rml.CategoryStage},
		{Onset: 30, Duration: 90, Label: "NonREM2", Category: rml.CategoryStage},
		{Onset: 40.5, Duration: 12, Label: "ObstructiveApnea", Category: rml.CategoryRespiratory},
		{Onset: 52, Duration: 3, Label: "Arousal", Category: rml.CategoryArousal},
	}, res.Timeline.Events)

	assert.Contains(t, logs.String(), "Signal already dropped")
	assert.Contains(t, logs.String(), "Synthesized flatline channels")

	// The prepared recording writes back out.
	out, err := os.Create(filepath.Join(dir, "out.edf"))
	require.NoError(t, err)
	require.NoError(t, edf.WriteRecording(out, rec))
	require.NoError(t, out.Close())
}

func TestPrepareAllChannelsDropped(t *testing.T) {
	p := pipeline.New(pipeline.Options{}, zerolog.Nop())

	rec := newRecording("Light", "Marker")
	_, err := p.Prepare("night2.edf", rec)
	require.ErrorIs(t, err, montage.ErrAllChannelsDropped)
	assert.Contains(t, err.Error(), "night2.edf")
	assert.Equal(t, []string{"Light", "Marker"}, rec.ChannelNames())
}

func TestPrepareDiscontinuous(t *testing.T) {
	p := pipeline.New(pipeline.Options{Synthesize: true}, zerolog.Nop())

	rec := newRecording("EEG C3-A2")
	rec.Header.Reserved = "EDF+D"
	_, err := p.Prepare("split.edf", rec)
	require.ErrorIs(t, err, montage.ErrUnsupportedSynthesisTarget)

	p = pipeline.New(pipeline.Options{}, zerolog.Nop())
	res, err := p.Prepare("split.edf", newRecording("EEG C3-A2"))
	require.NoError(t, err)
	assert.Empty(t, res.Synthesized)
}

func TestRunMissingFiles(t *testing.T) {
	p := pipeline.New(pipeline.Options{}, zerolog.Nop())

	_, err := p.Run(filepath.Join(t.TempDir(), "missing.edf"), "")
	assert.Error(t, err)

	dir := t.TempDir()
	edfPath := writeEDF(t, dir, newRecording("EEG C3-A2"))
	_, err = p.Run(edfPath, filepath.Join(dir, "missing.rml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.rml")
	require.NoError(t, os.WriteFile(bad, []byte("<nope/>"), 0o644))
	_, err = p.Run(edfPath, bad)
	var recErr *montage.RecordingError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, bad, recErr.Recording)
}
