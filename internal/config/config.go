// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config holds the psgmontage settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/OpenPSG/montage"
	"github.com/OpenPSG/montage/rml"
	"github.com/spf13/viper"
)

// Settings is the complete configuration.
type Settings struct {
	Log struct {
		Level string // zerolog level
		JSON  bool   // JSON output on terminals too
	}

	Channels struct {
		Pick       string   // "" for the catalog default, "all", or a regular expression
		Catalog    string   // Optional YAML catalog path
		Drop       []string // Raw labels removed before normalization
		Synthesize bool     // Add flatlines for missing montage electrodes
		Invert     bool     // Invert InvertName
		InvertName string   // Polarity-sensitive channel
	}

	Scoring struct {
		ChannelFailures   bool
		Respiratory       bool
		MaxFailureChannel int
		DeviceArousalType string
	}
}

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("channels.pick", "")
	v.SetDefault("channels.catalog", "")
	v.SetDefault("channels.drop", []string{})
	v.SetDefault("channels.synthesize", false)
	v.SetDefault("channels.invert", false)
	v.SetDefault("channels.invertname", "ECG")

	v.SetDefault("scoring.channelfailures", false)
	v.SetDefault("scoring.respiratory", false)
	v.SetDefault("scoring.maxfailurechannel", rml.DefaultMaxFailureChannel)
	v.SetDefault("scoring.devicearousaltype", rml.DefaultDeviceArousalType)
}

// New returns a viper instance with defaults, PSGMONTAGE_ environment
// overrides and, if configFile is set, that file.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("psgmontage")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("psgmontage")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(home + "/psgmontage")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return v, nil
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return s, nil
}

// Validate checks settings that would otherwise fail late.
func (s *Settings) Validate() error {
	if s.Channels.Invert && s.Channels.InvertName == "" {
		return fmt.Errorf("channels.invertname is required when channels.invert is set")
	}
	if s.Scoring.MaxFailureChannel < 0 {
		return fmt.Errorf("scoring.maxfailurechannel must not be negative")
	}
	if _, err := montage.ParseSelection(s.Channels.Pick, montage.DefaultCatalog()); err != nil {
		return err
	}
	return nil
}

// LoadCatalog returns the configured catalog, or the built-in one.
func (s *Settings) LoadCatalog() (*montage.Catalog, error) {
	if s.Channels.Catalog == "" {
		return montage.DefaultCatalog(), nil
	}

	f, err := os.Open(s.Channels.Catalog)
	if err != nil {
		return nil, fmt.Errorf("error opening catalog: %w", err)
	}
	defer f.Close()

	return montage.LoadCatalog(f)
}

// TimelineOptions converts the scoring settings.
func (s *Settings) TimelineOptions() rml.Options {
	maxFailureChannel := s.Scoring.MaxFailureChannel
	return rml.Options{
		ChannelFailures:   s.Scoring.ChannelFailures,
		Respiratory:       s.Scoring.Respiratory,
		MaxFailureChannel: &maxFailureChannel,
		DeviceArousalType: s.Scoring.DeviceArousalType,
	}
}
