// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"testing"

	"github.com/sapcc/go-api-declarations/cadf"
	"github.com/sapcc/go-bits/assert"
)

// Auditor is a test recorder that satisfies the jormun.Auditor interface.
type Auditor struct {
	events []cadf.Event
}

// Record implements the jormun.Auditor interface.
func (a *Auditor) Record(event cadf.Event) {
	a.events = append(a.events, normalize(event))
}

// ExpectEvents checks that the recorded events are equivalent to the supplied
// expectation, then clears the recording.
func (a *Auditor) ExpectEvents(t *testing.T, expectedEvents ...cadf.Event) {
	t.Helper()
	if len(expectedEvents) == 0 {
		expectedEvents = nil
	} else {
		for idx, event := range expectedEvents {
			expectedEvents[idx] = normalize(event)
		}
	}

	assert.DeepEqual(t, "audit events", a.events, expectedEvents)
	a.events = nil
}

// normalize strips the fields that are filled with non-deterministic values,
// so that event literals in tests stay short.
func normalize(event cadf.Event) cadf.Event {
	event.TypeURI = ""
	event.ID = ""
	event.EventTime = ""
	event.EventType = ""
	event.Initiator = cadf.Resource{}
	event.Observer = cadf.Resource{}
	return event
}
