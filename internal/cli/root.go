// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package cli implements the psgmontage command line.
package cli

import (
	"fmt"
	"io"

	"github.com/OpenPSG/montage"
	"github.com/OpenPSG/montage/internal/config"
	"github.com/OpenPSG/montage/internal/log"
	"github.com/OpenPSG/montage/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app is shared by all commands once the root pre-run has loaded settings.
type app struct {
	configFile string
	settings   *config.Settings
}

// flagKeys binds persistent flags to their settings keys.
var flagKeys = map[string]string{
	"log-level":          "log.level",
	"pick":               "channels.pick",
	"catalog":            "channels.catalog",
	"drop":               "channels.drop",
	"synthesize":         "channels.synthesize",
	"invert":             "channels.invert",
	"invert-name":        "channels.invertname",
	"channel-failures":   "scoring.channelfailures",
	"respiratory":        "scoring.respiratory",
	"max-failure-signal": "scoring.maxfailurechannel",
}

// NewRootCommand creates the psgmontage command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "psgmontage",
		Short:         "Normalize polysomnography channels and extract scoring timelines",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	setupFlags(rootCmd.PersistentFlags(), a)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		v, err := config.New(a.configFile)
		if err != nil {
			return err
		}
		if err := bindFlags(v, cmd.Root().PersistentFlags()); err != nil {
			return err
		}

		a.settings, err = config.Load(v)
		if err != nil {
			return err
		}

		log.Configure(log.Config{Level: a.settings.Log.Level, JSON: a.settings.Log.JSON, Output: cmd.ErrOrStderr()})
		return nil
	}

	rootCmd.AddCommand(
		channelsCommand(a),
		timelineCommand(a),
		convertCommand(a),
	)

	return rootCmd
}

func setupFlags(flags *pflag.FlagSet, a *app) {
	flags.StringVar(&a.configFile, "config", "", "Path to a psgmontage.yaml config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("pick", "", `Channel pick pattern: empty for the catalog default, "all", or a regular expression`)
	flags.String("catalog", "", "Path to a YAML channel catalog")
	flags.StringSlice("drop", nil, "Raw signal labels to drop before normalization")
	flags.Bool("synthesize", false, "Add flatline placeholders for missing montage electrodes")
	flags.Bool("invert", false, "Invert the polarity of the channel named by --invert-name")
	flags.String("invert-name", "ECG", "Polarity-sensitive channel inverted by --invert")
	flags.Bool("channel-failures", false, "Include channel failure events in the timeline")
	flags.Bool("respiratory", false, "Include respiratory events in the timeline")
	flags.Int("max-failure-signal", 8, "Highest signal index whose channel failures are kept")
}

// bindFlags lets explicitly set flags take precedence over config values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// pipeline builds a pipeline from the loaded settings.
func (a *app) pipeline() (*pipeline.Pipeline, error) {
	catalog, err := a.settings.LoadCatalog()
	if err != nil {
		return nil, err
	}

	sel, err := montage.ParseSelection(a.settings.Channels.Pick, catalog)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Catalog:    catalog,
		Selection:  sel,
		Drop:       a.settings.Channels.Drop,
		Synthesize: a.settings.Channels.Synthesize,
		Timeline:   a.settings.TimelineOptions(),
	}
	if a.settings.Channels.Invert {
		opts.Invert = a.settings.Channels.InvertName
	}

	return pipeline.New(opts, log.WithComponent("pipeline")), nil
}

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
