// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"time"

	"github.com/sapcc/jormun/internal/jormun"
	"github.com/sapcc/jormun/internal/kraken"
)

// Args is the bag of parsed query arguments for one dispatch. The HTTP layer
// fills only the fields relevant for the requested API; BuildRequest picks
// them up from there.
type Args struct {
	// journeys
	From        string
	To          string
	Datetime    time.Time
	Clockwise   bool
	MaxDuration int
	Count       int
	Wheelchair  bool

	// places
	Query string
	Types []string

	// places_nearby (also used for coordinate-based region resolution)
	Lon      *float64
	Lat      *float64
	Distance int

	// next_departures / next_arrivals
	StopArea     string
	FromDatetime time.Time
	Duration     int
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// BuildRequest constructs the wire request for the named API.
func BuildRequest(api string, args Args) (*kraken.Request, *jormun.APIError) {
	switch api {
	case "journeys":
		return &kraken.Request{
			RequestedAPI: kraken.APIJourneys,
			Journeys: &kraken.JourneysRequest{
				From:        args.From,
				To:          args.To,
				Datetime:    unixOrZero(args.Datetime),
				Clockwise:   args.Clockwise,
				MaxDuration: int32(args.MaxDuration),
				Count:       int32(args.Count),
				Wheelchair:  args.Wheelchair,
			},
		}, nil
	case "places":
		return &kraken.Request{
			RequestedAPI: kraken.APIPlaces,
			Places: &kraken.PlacesRequest{
				Query: args.Query,
				Count: int32(args.Count),
				Types: args.Types,
			},
		}, nil
	case "places_nearby":
		req := &kraken.PlacesNearbyRequest{
			Distance: int32(args.Distance),
			Count:    int32(args.Count),
		}
		if args.Lon != nil {
			req.Lon = *args.Lon
		}
		if args.Lat != nil {
			req.Lat = *args.Lat
		}
		return &kraken.Request{RequestedAPI: kraken.APIPlacesNearby, PlacesNearby: req}, nil
	case "next_departures", "next_arrivals":
		requestedAPI := kraken.APINextDepartures
		if api == "next_arrivals" {
			requestedAPI = kraken.APINextArrivals
		}
		return &kraken.Request{
			RequestedAPI: requestedAPI,
			NextStopTimes: &kraken.NextStopTimesRequest{
				StopArea:     args.StopArea,
				FromDatetime: unixOrZero(args.FromDatetime),
				Duration:     int32(args.Duration),
				Count:        int32(args.Count),
				Arrivals:     requestedAPI == kraken.APINextArrivals,
			},
		}, nil
	case "status":
		return &kraken.Request{RequestedAPI: kraken.APIStatus}, nil
	default:
		return nil, jormun.ErrUnknownAPI.With("The api %s doesn't exist", api)
	}
}
