// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/montage/edf"
	"github.com/OpenPSG/montage/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoring = `<PatientStudy xmlns="http://www.respironics.com/PatientStudy.xsd">
  <Acquisition><Sessions><Session><Duration>90</Duration></Session></Sessions></Acquisition>
  <ScoringData>
    <Events>
      <Event Type="ChannelFail" Start="5" Duration="10" Channel="1"/>
      <Event Type="Arousal" Start="52" Duration="3"/>
    </Events>
    <StagingData><UserStaging><NeuroAdultAASMStaging>
      <Stage Type="Wake" Start="0"/>
      <Stage Type="REM" Start="30"/>
    </NeuroAdultAASMStaging></UserStaging></StagingData>
  </ScoringData>
</PatientStudy>`

func fixtures(t *testing.T) (dir, edfPath, rmlPath string) {
	t.Helper()
	dir = t.TempDir()

	rec := &edf.Recording{Header: edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Date(2024, 1, 2, 23, 0, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		DataRecords:        60,
	}}
	for _, label := range []string{"EEG O2-A1", "EEG C4-A1", "Light", "ECG"} {
		rec.Header.Signals = append(rec.Header.Signals, edf.Signal{
			Label: label, PhysicalMin: -1, PhysicalMax: 1, DigitalMin: -32768, DigitalMax: 32767, SamplesPerRecord: 2,
		})
		rec.Samples = append(rec.Samples, make([]float64, 120))
	}

	edfPath = filepath.Join(dir, "night1.edf")
	f, err := os.Create(edfPath)
	require.NoError(t, err)
	require.NoError(t, edf.WriteRecording(f, rec))
	require.NoError(t, f.Close())

	rmlPath = filepath.Join(dir, "night1.rml")
	require.NoError(t, os.WriteFile(rmlPath, []byte(scoring), 0o644))

	return dir, edfPath, rmlPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()
	return stdout.String(), err
}

func TestChannelsCommand(t *testing.T) {
	_, edfPath, _ := fixtures(t)

	out, err := run(t, "channels", edfPath)
	require.NoError(t, err)
	assert.Contains(t, out, "EEG O2-A1")
	assert.Contains(t, out, "suffixed-reference")
	assert.Contains(t, out, "excluded (no-match)")
	assert.Contains(t, out, "order: [C4 O2 ECG]")

	out, err = run(t, "channels", "--format", "json", "--synthesize", edfPath)
	require.NoError(t, err)

	var report struct {
		Order       []string          `json:"order"`
		Rename      map[string]string `json:"rename"`
		Synthesized []string          `json:"synthesized"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, map[string]string{"EEG O2-A1": "O2", "EEG C4-A1": "C4", "ECG": "ECG"}, report.Rename)
	assert.Contains(t, report.Synthesized, "C3")
	assert.NotContains(t, report.Synthesized, "O2")
	assert.Equal(t, "Fp1", report.Order[0])
}

func TestChannelsCommandAllDropped(t *testing.T) {
	_, edfPath, _ := fixtures(t)

	_, err := run(t, "channels", "--pick", "^Nothing$", edfPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable channels")
}

func TestTimelineCommand(t *testing.T) {
	_, edfPath, rmlPath := fixtures(t)

	out, err := run(t, "timeline", rmlPath)
	require.NoError(t, err)
	assert.Equal(t, "onset,duration,description\n0,30,Wake\n30,60,REM\n52,3,Arousal\n", out)

	out, err = run(t, "timeline", "--edf", edfPath, "--channel-failures", rmlPath)
	require.NoError(t, err)
	assert.Equal(t, "onset,duration,description\n0,30,Wake\n30,30,REM\n5,10,BAD_ChannelFail\n52,3,Arousal\n", out)

	out, err = run(t, "timeline", "--duration", "40", "--format", "json", rmlPath)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"onset":0,"duration":30,"label":"Wake","category":"stage"},
		{"onset":30,"duration":10,"label":"REM","category":"stage"},
		{"onset":52,"duration":3,"label":"Arousal","category":"arousal"}
	]`, out)

	_, err = run(t, "timeline", "--format", "xml", rmlPath)
	assert.Error(t, err)
}

func TestConvertCommand(t *testing.T) {
	dir, edfPath, rmlPath := fixtures(t)
	outPath := filepath.Join(dir, "out.edf")
	annPath := filepath.Join(dir, "out.csv")

	out, err := run(t, "convert", "--rml", rmlPath, "--annotations", annPath, "--invert", edfPath, outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "3 channels")

	f, err := os.Open(outPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})
	rec, err := edf.ReadRecording(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"C4", "O2", "ECG"}, rec.ChannelNames())

	ann, err := os.ReadFile(annPath)
	require.NoError(t, err)
	assert.Equal(t, "onset,duration,description\n0,30,Wake\n30,30,REM\n52,3,Arousal\n", string(ann))

	_, err = run(t, "convert", "--annotations", annPath, edfPath, outPath)
	assert.Error(t, err)
}
