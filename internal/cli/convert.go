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
	"github.com/OpenPSG/montage/rml"
	"github.com/spf13/cobra"
)

func convertCommand(a *app) *cobra.Command {
	var (
		scoring     string
		annotations string
	)

	cmd := &cobra.Command{
		Use:   "convert <in.edf> <out.edf>",
		Short: "Write a recording with normalized, ordered channels",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if annotations != "" && scoring == "" {
				return fmt.Errorf("--annotations requires --rml")
			}

			p, err := a.pipeline()
			if err != nil {
				return err
			}

			res, err := p.Run(args[0], scoring)
			if err != nil {
				return err
			}

			if err := writeFile(args[1], func(f *os.File) error {
				return edf.WriteRecording(f, res.Recording)
			}); err != nil {
				return err
			}

			if annotations != "" {
				if err := writeFile(annotations, func(f *os.File) error {
					return rml.WriteCSV(f, res.Timeline)
				}); err != nil {
					return err
				}
			}

			fprintf(cmd.OutOrStdout(), "wrote %s (%d channels)\n", args[1], len(res.Recording.Header.Signals))
			return nil
		},
	}

	cmd.Flags().StringVar(&scoring, "rml", "", "Scoring document of the recording")
	cmd.Flags().StringVar(&annotations, "annotations", "", "Write the scoring timeline as CSV annotations to this path")

	return cmd
}

// writeFile creates path and removes it again if write fails.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("error writing %s: %w", path, err)
	}

	return f.Close()
}
