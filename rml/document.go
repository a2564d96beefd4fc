// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package rml reads Respironics PatientStudy scoring documents and extracts
// the sleep stage and clinical event timeline they encode.
package rml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Namespace is the XML namespace of PatientStudy documents.
const Namespace = "http://www.respironics.com/PatientStudy.xsd"

// maxDocumentSize caps how much of a scoring document is read.
const maxDocumentSize = 256 << 20

// ErrMalformedScoringPath is reported when an expected element is absent.
var ErrMalformedScoringPath = errors.New("malformed scoring path")

// Node is one element of a parsed scoring document.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*Node
	Text     string
}

// Document is a parsed scoring document.
type Document struct {
	Root *Node
}

// Parse reads a scoring document into an element tree.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(io.LimitReader(r, maxDocumentSize))
	dec.Strict = true
	dec.Entity = make(map[string]string)

	var (
		root  *Node
		stack []*Node
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error decoding scoring document: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name, Attrs: t.Copy().Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("scoring document has more than one root element")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("scoring document is empty")
	}
	if root.Name.Space != Namespace || root.Name.Local != "PatientStudy" {
		return nil, fmt.Errorf("unexpected root element {%s}%s", root.Name.Space, root.Name.Local)
	}

	return &Document{Root: root}, nil
}

// Is reports whether n is the PatientStudy element named local.
func (n *Node) Is(local string) bool {
	return n.Name.Space == Namespace && n.Name.Local == local
}

// Child returns the first child element named local, or nil.
func (n *Node) Child(local string) *Node {
	for _, c := range n.Children {
		if c.Is(local) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all child elements named local, in document order.
func (n *Node) ChildrenNamed(local string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Is(local) {
			out = append(out, c)
		}
	}
	return out
}

// Attr returns the value of an unqualified attribute.
func (n *Node) Attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local && (a.Name.Space == "" || a.Name.Space == Namespace) {
			return a.Value, true
		}
	}
	return "", false
}

// Value returns the attribute named local, falling back to the text of a
// child element with the same name.
func (n *Node) Value(local string) (string, bool) {
	if v, ok := n.Attr(local); ok {
		return v, true
	}
	if c := n.Child(local); c != nil {
		return strings.TrimSpace(c.Text), true
	}
	return "", false
}

// Walk visits n and its descendants in document order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Path descends from the root through the named elements.
func (d *Document) Path(locals ...string) (*Node, error) {
	n := d.Root
	for i, local := range locals {
		next := n.Child(local)
		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedScoringPath, strings.Join(locals[:i+1], "/"))
		}
		n = next
	}
	return n, nil
}

// RecordingDuration sums the session durations declared under
// Acquisition/Sessions, in seconds.
func (d *Document) RecordingDuration() (float64, error) {
	sessions, err := d.Path("Acquisition", "Sessions")
	if err != nil {
		return 0, err
	}

	var total float64
	var found bool
	for _, s := range sessions.ChildrenNamed("Session") {
		v, ok := s.Value("Duration")
		if !ok {
			continue
		}
		secs, err := parseSeconds(v)
		if err != nil {
			return 0, fmt.Errorf("error parsing session duration: %w", err)
		}
		total += secs
		found = true
	}
	if !found {
		return 0, fmt.Errorf("%w: Acquisition/Sessions/Session/Duration", ErrMalformedScoringPath)
	}

	return total, nil
}
