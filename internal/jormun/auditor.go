// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormun

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sapcc/go-api-declarations/cadf"
	"github.com/sapcc/go-bits/audittools"
	"github.com/sapcc/go-bits/httpext"
)

// Auditor is a component that forwards audit events to the appropriate logs.
// It is used by the admin API to record changes to users, keys, authorizations
// and instances.
type Auditor interface {
	// Record forwards the given audit event to the audit log.
	// The Observer field will be filled by the auditor.
	Record(event cadf.Event)
}

// AuditEventParams is the caller-supplied part of an audit event.
type AuditEventParams struct {
	Request    *http.Request
	UserLogin  string
	ReasonCode int
	Action     cadf.Action
	Target     cadf.Resource
}

// BuildAuditEvent renders an AuditEventParams into a CADF event. The Observer
// field is left for the Auditor to fill.
func (p AuditEventParams) BuildAuditEvent() cadf.Event {
	outcome := cadf.Outcome("failure")
	if p.ReasonCode >= 200 && p.ReasonCode < 300 {
		outcome = cadf.Outcome("success")
	}
	return cadf.Event{
		TypeURI:   "http://schemas.dmtf.org/cloud/audit/1.0/event",
		ID:        audittools.GenerateUUID(),
		EventTime: time.Now().Format("2006-01-02T15:04:05.999999+00:00"),
		EventType: "activity",
		Action:    p.Action,
		Outcome:   outcome,
		Reason: cadf.Reason{
			ReasonType: "HTTP",
			ReasonCode: strconv.Itoa(p.ReasonCode),
		},
		Initiator: cadf.Resource{
			TypeURI: "service/security/account/user",
			Name:    p.UserLogin,
			Host: &cadf.Host{
				Address: httpext.GetRequesterIPFor(p.Request),
				Agent:   p.Request.Header.Get("User-Agent"),
			},
		},
		Target:      p.Target,
		RequestPath: p.Request.URL.Path,
	}
}
