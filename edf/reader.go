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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxSignalSamples bounds the samples held for one signal.
const maxSignalSamples = 1 << 30

// signalFields lists the per-signal header fields in file order with their
// widths in bytes. Each field is stored for all signals before the next.
var signalFields = []struct {
	name  string
	width int
	set   func(s *Signal, v string) error
}{
	{"label", 16, func(s *Signal, v string) error { s.Label = v; return nil }},
	{"transducer type", 80, func(s *Signal, v string) error { s.TransducerType = v; return nil }},
	{"physical dimension", 8, func(s *Signal, v string) error { s.PhysicalDimension = v; return nil }},
	{"physical minimum", 8, func(s *Signal, v string) (err error) { s.PhysicalMin, err = parseFloat(v); return }},
	{"physical maximum", 8, func(s *Signal, v string) (err error) { s.PhysicalMax, err = parseFloat(v); return }},
	{"digital minimum", 8, func(s *Signal, v string) (err error) { s.DigitalMin, err = parseInt(v); return }},
	{"digital maximum", 8, func(s *Signal, v string) (err error) { s.DigitalMax, err = parseInt(v); return }},
	{"prefiltering", 80, func(s *Signal, v string) error { s.Prefiltering = v; return nil }},
	{"samples per record", 8, func(s *Signal, v string) (err error) {
		if s.SamplesPerRecord, err = parseInt(v); err == nil && s.SamplesPerRecord < 0 {
			err = fmt.Errorf("negative value %d", s.SamplesPerRecord)
		}
		return
	}},
	{"reserved", 32, func(s *Signal, v string) error { s.Reserved = v; return nil }},
}

// ReadHeader parses an EDF/EDF+ header, leaving r positioned at the first
// data record.
func ReadHeader(r io.Reader) (*Header, error) {
	b := make([]byte, 256)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	field := func(from, to int) string {
		return strings.TrimSpace(string(b[from:to]))
	}

	hdr := &Header{}
	hdr.Version = Version(field(0, 8))
	hdr.PatientID = field(8, 88)
	hdr.RecordingID = field(88, 168)

	startDate, err := time.Parse("02.01.06", field(168, 176))
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", field(176, 184))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(field(184, 192)); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}
	hdr.Reserved = field(192, 236)
	if hdr.DataRecords, err = strconv.Atoi(field(236, 244)); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}
	if hdr.DataRecordDuration, err = time.ParseDuration(field(244, 252) + "s"); err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}
	if hdr.SignalCount, err = strconv.Atoi(field(252, 256)); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount < 0 {
		return nil, fmt.Errorf("invalid signal count: %d", hdr.SignalCount)
	}

	sb := make([]byte, hdr.SignalCount*256)
	if _, err := io.ReadFull(r, sb); err != nil {
		return nil, fmt.Errorf("error reading signal headers: %w", err)
	}

	hdr.Signals = make([]Signal, hdr.SignalCount)
	off := 0
	for _, f := range signalFields {
		for i := range hdr.Signals {
			if err := f.set(&hdr.Signals[i], strings.TrimSpace(string(sb[off:off+f.width]))); err != nil {
				return nil, fmt.Errorf("error parsing %s of signal %d: %w", f.name, i, err)
			}
			off += f.width
		}
	}

	return hdr, nil
}

// ReadRecording reads a complete EDF/EDF+ file into memory. EDF+ annotation
// signals are skipped.
func ReadRecording(r io.Reader) (*Recording, error) {
	br := bufio.NewReader(r)

	hdr, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	if hdr.DataRecords < 0 {
		return nil, fmt.Errorf("unknown number of data records")
	}
	for _, sig := range hdr.Signals {
		if sig.SamplesPerRecord > 0 && hdr.DataRecords > maxSignalSamples/sig.SamplesPerRecord {
			return nil, fmt.Errorf("signal %s has too many samples: %d per record in %d records",
				sig.Label, sig.SamplesPerRecord, hdr.DataRecords)
		}
	}

	rec := &Recording{Header: *hdr}
	rec.Header.Signals = nil

	keep := make([]int, len(hdr.Signals)) // index into rec.Samples, -1 for skipped signals
	for i, sig := range hdr.Signals {
		if sig.Label == AnnotationsLabel {
			keep[i] = -1
			continue
		}
		keep[i] = len(rec.Samples)
		rec.Header.Signals = append(rec.Header.Signals, sig)
		rec.Samples = append(rec.Samples, nil)
		rec.Bad = append(rec.Bad, sig.Prefiltering == FlatlinePrefiltering)
	}
	rec.Header.SignalCount = len(rec.Header.Signals)

	buf := make([]byte, 2)
	for record := 0; record < hdr.DataRecords; record++ {
		for i, sig := range hdr.Signals {
			if keep[i] < 0 {
				if _, err := br.Discard(sig.SamplesPerRecord * 2); err != nil {
					return nil, fmt.Errorf("error reading data record %d: %w", record, err)
				}
				continue
			}

			for n := 0; n < sig.SamplesPerRecord; n++ {
				if _, err := io.ReadFull(br, buf); err != nil {
					return nil, fmt.Errorf("error reading data record %d: %w", record, err)
				}
				digital := int16(binary.LittleEndian.Uint16(buf))
				rec.Samples[keep[i]] = append(rec.Samples[keep[i]],
					convertDigitalToPhysical(digital, sig.DigitalMin, sig.DigitalMax, sig.PhysicalMin, sig.PhysicalMax))
			}
		}
	}

	return rec, nil
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

func parseInt(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return i, nil
}
