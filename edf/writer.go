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
)

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
// EDF+ requires an annotations signal, so an EDF+C header without one is
// written as plain EDF and an EDF+D header without one is rejected.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1 // Unknown number of data records (at this time).
	hdr.SignalCount = len(hdr.Signals)

	if strings.HasPrefix(hdr.Reserved, "EDF+") && !hasAnnotations(hdr.Signals) {
		if hdr.Discontinuous() {
			return nil, fmt.Errorf("discontinuous recording has no %s signal", AnnotationsLabel)
		}
		hdr.Reserved = ""
	}

	ew := &Writer{w: w, hdr: &hdr}

	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	_, err := ew.w.Seek(0, io.SeekEnd)
	return err
}

// WriteRecord writes a single data record to the EDF file.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("expected %d signals, got %d", ew.hdr.SignalCount, len(signals))
	}

	for i, signal := range signals {
		if len(signal) != ew.hdr.Signals[i].SamplesPerRecord {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, ew.hdr.Signals[i].SamplesPerRecord, len(signal))
		}
	}

	writer := bufio.NewWriter(ew.w)
	buf := make([]byte, 2)
	for i, signal := range signals {
		sig := ew.hdr.Signals[i]
		for _, sample := range signal {
			binary.LittleEndian.PutUint16(buf, uint16(convertPhysicalToDigital(sample, sig.PhysicalMin, sig.PhysicalMax, sig.DigitalMin, sig.DigitalMax)))
			if _, err := writer.Write(buf); err != nil {
				return err
			}
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

// WriteRecording writes a complete in-memory recording.
func WriteRecording(w io.WriteSeeker, rec *Recording) error {
	if err := rec.validate(); err != nil {
		return err
	}

	ew, err := Create(w, rec.Header)
	if err != nil {
		return err
	}

	record := make([][]float64, len(rec.Samples))
	for r := 0; r < rec.Header.DataRecords; r++ {
		for i, sig := range rec.Header.Signals {
			record[i] = rec.Samples[i][r*sig.SamplesPerRecord : (r+1)*sig.SamplesPerRecord]
		}
		if err := ew.WriteRecord(record); err != nil {
			return fmt.Errorf("error writing data record %d: %w", r, err)
		}
	}

	return ew.Close()
}

// writeHeader rewinds and writes the fixed and per-signal header fields.
func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	hdr := ew.hdr
	hdr.HeaderBytes = 256 + (hdr.SignalCount * 256)

	writer := bufio.NewWriter(ew.w)
	fields := []struct {
		width int
		value string
	}{
		{8, string(hdr.Version)},
		{80, hdr.PatientID},
		{80, hdr.RecordingID},
		{8, hdr.StartTime.Format("02.01.06")},
		{8, hdr.StartTime.Format("15.04.05")},
		{8, strconv.Itoa(hdr.HeaderBytes)},
		{44, hdr.Reserved},
		{8, strconv.Itoa(hdr.DataRecords)},
		{8, strconv.FormatFloat(hdr.DataRecordDuration.Seconds(), 'f', -1, 64)},
		{4, strconv.Itoa(hdr.SignalCount)},
	}
	for _, f := range fields {
		if _, err := writer.WriteString(pad(f.value, f.width)); err != nil {
			return err
		}
	}

	signalValues := []struct {
		width int
		value func(s Signal) string
	}{
		{16, func(s Signal) string { return s.Label }},
		{80, func(s Signal) string { return s.TransducerType }},
		{8, func(s Signal) string { return s.PhysicalDimension }},
		{8, func(s Signal) string { return formatPhysicalValue(s.PhysicalMin) }},
		{8, func(s Signal) string { return formatPhysicalValue(s.PhysicalMax) }},
		{8, func(s Signal) string { return strconv.Itoa(s.DigitalMin) }},
		{8, func(s Signal) string { return strconv.Itoa(s.DigitalMax) }},
		{80, func(s Signal) string { return s.Prefiltering }},
		{8, func(s Signal) string { return strconv.Itoa(s.SamplesPerRecord) }},
		{32, func(s Signal) string { return s.Reserved }},
	}
	for _, f := range signalValues {
		for _, sig := range hdr.Signals {
			if _, err := writer.WriteString(pad(f.value(sig), f.width)); err != nil {
				return err
			}
		}
	}

	return writer.Flush()
}

func hasAnnotations(signals []Signal) bool {
	for _, sig := range signals {
		if sig.Label == AnnotationsLabel {
			return true
		}
	}
	return false
}

// pad left-aligns s in a space padded field, truncating if needed.
func pad(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return fmt.Sprintf("%-*s", width, s)
}

// convertPhysicalToDigital converts a physical value to a digital value using the calibration factors.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	digital := math.Round(((physical - pmin) * (float64(dmax - dmin)) / (pmax - pmin)) + float64(dmin))
	digital = math.Max(float64(dmin), math.Min(float64(dmax), digital))
	return int16(digital)
}

func formatPhysicalValue(val float64) string {
	// Try with 2 decimal places
	s := fmt.Sprintf("%.2f", val)
	if len(s) > 8 {
		// Fall back to no decimal
		s = fmt.Sprintf("%.0f", val)
	}
	return s
}
