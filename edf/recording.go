// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"fmt"
	"strings"

	"github.com/OpenPSG/montage"
)

// Recording is a fully decoded EDF/EDF+ recording. Samples and Bad are
// parallel to Header.Signals.
type Recording struct {
	Header  Header
	Samples [][]float64 // Physical values of each signal
	Bad     []bool      // Signals that carry no usable data
}

var _ montage.Target = (*Recording)(nil)

// FlatlinePrefiltering marks synthesized flatline signals in the header.
// ReadRecording restores their bad flag from it.
const FlatlinePrefiltering = "BAD flatline"

// typePrefixes maps EDF+ standard label prefixes to signal types.
var typePrefixes = []struct {
	prefix string
	typ    montage.SignalType
}{
	{"EEG", montage.EEG},
	{"EOG", montage.EOG},
	{"EMG", montage.EMG},
	{"ECG", montage.ECG},
	{"Resp", montage.Resp},
}

// RawChannels describes the signals for normalization.
func (r *Recording) RawChannels() []montage.RawChannel {
	channels := make([]montage.RawChannel, len(r.Header.Signals))
	for i, sig := range r.Header.Signals {
		channels[i] = montage.RawChannel{
			Label:      sig.Label,
			TypeHint:   typeHint(sig.Label),
			SampleRate: r.sampleRate(sig),
		}
	}
	return channels
}

func typeHint(label string) montage.SignalType {
	for _, p := range typePrefixes {
		if len(label) > len(p.prefix) && strings.EqualFold(label[:len(p.prefix)], p.prefix) && label[len(p.prefix)] == ' ' {
			return p.typ
		}
	}
	return ""
}

func (r *Recording) sampleRate(sig Signal) float64 {
	secs := r.Header.DataRecordDuration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(sig.SamplesPerRecord) / secs
}

// Duration returns the recording length in seconds.
func (r *Recording) Duration() float64 {
	return float64(r.Header.DataRecords) * r.Header.DataRecordDuration.Seconds()
}

// ChannelNames returns the signal labels in order.
func (r *Recording) ChannelNames() []string {
	names := make([]string, len(r.Header.Signals))
	for i, sig := range r.Header.Signals {
		names[i] = sig.Label
	}
	return names
}

// Continuous reports whether flatline channels can be attached.
func (r *Recording) Continuous() bool {
	return !r.Header.Discontinuous()
}

// NewFlatline allocates a zero-valued channel at the sample rate of the
// first signal, spanning every data record.
func (r *Recording) NewFlatline(name string, typ montage.SignalType) (montage.Flatline, error) {
	if len(r.Header.Signals) == 0 {
		return montage.Flatline{}, fmt.Errorf("recording has no signals to size %s by", name)
	}
	if r.Header.DataRecords <= 0 {
		return montage.Flatline{}, fmt.Errorf("recording has no data records")
	}

	ref := r.Header.Signals[0]
	return montage.Flatline{
		Name:       name,
		Type:       typ,
		SampleRate: r.sampleRate(ref),
		Samples:    make([]float64, ref.SamplesPerRecord*r.Header.DataRecords),
	}, nil
}

// Attach appends the flatlines as new signals. Nothing is appended unless
// every flatline spans the recording.
func (r *Recording) Attach(flatlines []montage.Flatline) error {
	if !r.Continuous() {
		return montage.ErrUnsupportedSynthesisTarget
	}

	signals := make([]Signal, len(flatlines))
	for i, f := range flatlines {
		if r.Header.DataRecords <= 0 || len(f.Samples) == 0 || len(f.Samples)%r.Header.DataRecords != 0 {
			return fmt.Errorf("flatline %s has %d samples, not a multiple of %d data records", f.Name, len(f.Samples), r.Header.DataRecords)
		}
		signals[i] = Signal{
			Label:             f.Name,
			TransducerType:    "flatline",
			PhysicalDimension: "uV",
			Prefiltering:      FlatlinePrefiltering,
			PhysicalMin:       -1,
			PhysicalMax:       1,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  len(f.Samples) / r.Header.DataRecords,
		}
	}

	for len(r.Bad) < len(r.Header.Signals) {
		r.Bad = append(r.Bad, false)
	}
	for i, f := range flatlines {
		r.Header.Signals = append(r.Header.Signals, signals[i])
		r.Samples = append(r.Samples, f.Samples)
		r.Bad = append(r.Bad, f.Bad)
	}
	r.Header.SignalCount = len(r.Header.Signals)

	return nil
}

// Rename relabels signals using a raw label to canonical label map.
func (r *Recording) Rename(names map[string]string) {
	for i, sig := range r.Header.Signals {
		if to, ok := names[sig.Label]; ok {
			r.Header.Signals[i].Label = to
		}
	}
}

// Keep retains only the signals at the given indices, in their current order.
func (r *Recording) Keep(indices []int) error {
	keep := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(r.Header.Signals) {
			return fmt.Errorf("signal index %d out of range", i)
		}
		keep[i] = struct{}{}
	}

	r.filter(func(i int, _ Signal) bool {
		_, ok := keep[i]
		return ok
	})
	return nil
}

// DropLabel removes every signal carrying label. Dropping a label that is no
// longer present reports montage.ErrDuplicateSignalLabel.
func (r *Recording) DropLabel(label string) error {
	if !r.filter(func(_ int, sig Signal) bool { return sig.Label != label }) {
		return fmt.Errorf("%w: %s", montage.ErrDuplicateSignalLabel, label)
	}
	return nil
}

// filter keeps the signals for which keep returns true and reports whether
// any were removed.
func (r *Recording) filter(keep func(i int, sig Signal) bool) bool {
	var (
		signals []Signal
		samples [][]float64
		bad     []bool
	)
	for i, sig := range r.Header.Signals {
		if !keep(i, sig) {
			continue
		}
		signals = append(signals, sig)
		samples = append(samples, r.Samples[i])
		bad = append(bad, r.isBad(i))
	}

	removed := len(signals) != len(r.Header.Signals)
	r.Header.Signals, r.Samples, r.Bad = signals, samples, bad
	r.Header.SignalCount = len(signals)
	return removed
}

// Reorder arranges the signals in the given label order. The labels must be
// a permutation of the current labels.
func (r *Recording) Reorder(labels []string) error {
	if len(labels) != len(r.Header.Signals) {
		return fmt.Errorf("expected %d labels, got %d", len(r.Header.Signals), len(labels))
	}

	index := make(map[string]int, len(r.Header.Signals))
	for i, sig := range r.Header.Signals {
		if _, ok := index[sig.Label]; ok {
			return fmt.Errorf("%w: %s", montage.ErrDuplicateSignalLabel, sig.Label)
		}
		index[sig.Label] = i
	}

	signals := make([]Signal, len(labels))
	samples := make([][]float64, len(labels))
	bad := make([]bool, len(labels))
	for n, label := range labels {
		i, ok := index[label]
		if !ok {
			return fmt.Errorf("unknown signal %q", label)
		}
		delete(index, label)
		signals[n], samples[n], bad[n] = r.Header.Signals[i], r.Samples[i], r.isBad(i)
	}

	r.Header.Signals, r.Samples, r.Bad = signals, samples, bad
	return nil
}

// Invert flips the polarity of the named signal. It reports whether the
// signal was found.
func (r *Recording) Invert(label string) bool {
	for i, sig := range r.Header.Signals {
		if sig.Label != label {
			continue
		}
		for n, v := range r.Samples[i] {
			r.Samples[i][n] = -v
		}
		r.Header.Signals[i].PhysicalMin, r.Header.Signals[i].PhysicalMax = -sig.PhysicalMax, -sig.PhysicalMin
		return true
	}
	return false
}

func (r *Recording) isBad(i int) bool {
	return i < len(r.Bad) && r.Bad[i]
}

func (r *Recording) validate() error {
	if len(r.Samples) != len(r.Header.Signals) {
		return fmt.Errorf("recording has %d signal headers but %d sample buffers", len(r.Header.Signals), len(r.Samples))
	}
	for i, sig := range r.Header.Signals {
		if want := sig.SamplesPerRecord * r.Header.DataRecords; len(r.Samples[i]) != want {
			return fmt.Errorf("signal %s has %d samples, expected %d", sig.Label, len(r.Samples[i]), want)
		}
	}
	return nil
}
