// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package apicmd

import (
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-api-declarations/cadf"
	"github.com/sapcc/go-bits/audittools"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/jormun/internal/jormun"
)

var auditEventPublishCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "jormun_auditevents_published",
		Help: "Counter for audit events published to the audit log.",
	})

// auditor writes audit events to the process log. The admin API is an
// internal management surface, so a durable audit trail (message queue,
// Hermes) is intentionally not part of this deployment.
type auditor struct {
	OnStdout     bool
	ObserverUUID string
}

func initAuditor() jormun.Auditor {
	prometheus.MustRegister(auditEventPublishCounter)
	return auditor{
		OnStdout:     !osext.GetenvBool("JORMUN_AUDIT_SILENT"),
		ObserverUUID: audittools.GenerateUUID(),
	}
}

// Record implements the jormun.Auditor interface.
func (a auditor) Record(event cadf.Event) {
	event.Observer = cadf.Resource{
		TypeURI: "service/navitia/api",
		Name:    "jormun",
		ID:      a.ObserverUUID,
	}
	auditEventPublishCounter.Inc()

	if a.OnStdout {
		msg, err := json.Marshal(event)
		if err == nil {
			logg.Other("AUDIT", string(msg))
		} else {
			logg.Error("could not marshal audit event: %s", err.Error())
		}
	}
}
