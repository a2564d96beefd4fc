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
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/OpenPSG/montage"
	"github.com/spf13/cobra"
)

// channelReport is the JSON form of the channels command output.
type channelReport struct {
	Recording         string               `json:"recording"`
	Order             []string             `json:"order"`
	Rename            map[string]string    `json:"rename"`
	Included          []montage.Assignment `json:"included"`
	Excluded          []montage.Exclusion  `json:"excluded"`
	MissingPhysiology []string             `json:"missingPhysiology"`
	Synthesized       []string             `json:"synthesized"`
}

func channelsCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "channels <recording.edf>",
		Short: "Show how the channels of a recording are normalized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}

			res, err := p.Run(args[0], "")
			if err != nil {
				return err
			}

			report := channelReport{
				Recording:         args[0],
				Order:             res.Recording.ChannelNames(),
				Rename:            res.Channels.RenameMap(),
				Included:          res.Channels.Included,
				Excluded:          res.Channels.Excluded,
				MissingPhysiology: res.Channels.MissingPhysiology,
				Synthesized:       res.Synthesized,
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			case "table":
				return writeChannelTable(cmd.OutOrStdout(), report)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")

	return cmd
}

func writeChannelTable(w io.Writer, r channelReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fprintf(tw, "INDEX\tLABEL\tCHANNEL\tTYPE\tMATCH\n")
	for _, a := range r.Included {
		fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.Index, a.Label, a.Canonical, a.Type, a.Tier)
	}
	for _, e := range r.Excluded {
		fprintf(tw, "%d\t%s\t-\t-\texcluded (%s)\n", e.Index, e.Label, e.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fprintf(w, "\norder: %v\n", r.Order)
	if len(r.Synthesized) > 0 {
		fprintf(w, "synthesized: %v\n", r.Synthesized)
	}
	if len(r.MissingPhysiology) > 0 {
		fprintf(w, "missing physiology: %v\n", r.MissingPhysiology)
	}
	return nil
}
