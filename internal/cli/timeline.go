// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cli

import (
	"fmt"
	"os"

	"github.com/OpenPSG/montage/edf"
	"github.com/OpenPSG/montage/internal/log"
	"github.com/OpenPSG/montage/internal/pipeline"
	"github.com/OpenPSG/montage/rml"
	"github.com/spf13/cobra"
)

func timelineCommand(a *app) *cobra.Command {
	var (
		format    string
		duration  float64
		recording string
	)

	cmd := &cobra.Command{
		Use:   "timeline <scoring.rml>",
		Short: "Extract the sleep stage and event timeline of a scoring document",
		Long: `Extract the sleep stage and event timeline of a scoring document.

The last sleep stage runs until the end of the recording. Its length is taken
from --duration, else from the header of --edf, else from the session
durations declared in the scoring document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}

			doc, err := pipeline.LoadScoring(args[0])
			if err != nil {
				return err
			}

			maxTime, err := recordingDuration(doc, duration, recording)
			if err != nil {
				return err
			}

			t := p.Timeline(args[0], doc, maxTime)

			switch format {
			case "csv":
				return rml.WriteCSV(cmd.OutOrStdout(), t)
			case "json":
				return rml.WriteJSON(cmd.OutOrStdout(), t)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format: csv, json")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Recording length in seconds")
	cmd.Flags().StringVar(&recording, "edf", "", "EDF recording to take the length from")

	return cmd
}

func recordingDuration(doc *rml.Document, duration float64, recording string) (float64, error) {
	if duration > 0 {
		return duration, nil
	}

	if recording != "" {
		f, err := os.Open(recording)
		if err != nil {
			return 0, fmt.Errorf("error opening recording: %w", err)
		}
		defer f.Close()

		hdr, err := edf.ReadHeader(f)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", recording, err)
		}
		return float64(hdr.DataRecords) * hdr.DataRecordDuration.Seconds(), nil
	}

	d, err := doc.RecordingDuration()
	if err != nil {
		logger := log.WithComponent("cli")
		logger.Warn().Err(err).Msg("Recording length unknown, the last stage ends at its onset")
		return 0, nil
	}
	return d, nil
}
