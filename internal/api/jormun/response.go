// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormunv1

import (
	"net/http"
	"time"

	"github.com/sapcc/jormun/internal/api"
	"github.com/sapcc/jormun/internal/kraken"
)

func formatDT(posix int64) string {
	if posix == 0 {
		return ""
	}
	return time.Unix(posix, 0).UTC().Format(dtLayout)
}

// renderResponse writes a backend response envelope in the requested output
// format. format=pb short-circuits rendering and returns the re-serialized
// envelope.
func renderResponse(w http.ResponseWriter, r *http.Request, resp *kraken.Response, data map[string]any) {
	if r.URL.Query().Get("format") == "pb" {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(resp.Marshal())
		return
	}
	api.Render(w, r, http.StatusOK, data)
}

func journeysToDict(resp *kraken.Response) map[string]any {
	journeys := make([]any, 0, len(resp.Journeys))
	for _, j := range resp.Journeys {
		sections := make([]any, 0, len(j.Sections))
		for _, s := range j.Sections {
			sections = append(sections, map[string]any{
				"type":                s.Type,
				"from":                s.From,
				"to":                  s.To,
				"departure_date_time": formatDT(s.DepartureDateTime),
				"arrival_date_time":   formatDT(s.ArrivalDateTime),
				"duration":            s.Duration,
				"mode":                s.Mode,
				"line":                s.Line,
			})
		}
		journeys = append(journeys, map[string]any{
			"departure_date_time": formatDT(j.DepartureDateTime),
			"arrival_date_time":   formatDT(j.ArrivalDateTime),
			"duration":            j.Duration,
			"nb_transfers":        j.NbTransfers,
			"sections":            sections,
		})
	}
	return map[string]any{"journeys": journeys}
}

func placesToDict(resp *kraken.Response, key string) map[string]any {
	places := make([]any, 0, len(resp.Places))
	for _, p := range resp.Places {
		places = append(places, map[string]any{
			"id":            p.ID,
			"name":          p.Name,
			"embedded_type": p.EmbeddedType,
			"quality":       p.Quality,
			"coord": map[string]any{
				"lon": p.Lon,
				"lat": p.Lat,
			},
		})
	}
	return map[string]any{key: places}
}

func passagesToDict(resp *kraken.Response, key string) map[string]any {
	passages := make([]any, 0, len(resp.Passages))
	for _, p := range resp.Passages {
		passages = append(passages, map[string]any{
			"route":      p.Route,
			"direction":  p.Direction,
			"stop_point": p.StopPoint,
			"date_time":  formatDT(p.DateTime),
		})
	}
	return map[string]any{key: passages}
}

func statusToDict(status *kraken.Status) map[string]any {
	return map[string]any{
		"status": map[string]any{
			"publication_date":      status.PublicationDate,
			"start_production_date": status.StartProductionDate,
			"end_production_date":   status.EndProductionDate,
			"timezone":              status.Timezone,
			"is_open_data":          status.IsOpenData,
			"is_realtime_loaded":    status.IsRealtimeLoaded,
			"dataset_created_at":    status.DatasetCreatedAt,
		},
	}
}
