// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormunv1

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sapcc/jormun/internal/dispatch"
	"github.com/sapcc/jormun/internal/jormun"
)

// dtLayout is the datetime format used throughout the v1 API, e.g. "20140614T120000".
const dtLayout = "20060102T150405"

func parseDatetime(r *http.Request, key string, fallback time.Time) (time.Time, *jormun.APIError) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(dtLayout, value)
	if err != nil {
		return time.Time{}, jormun.ErrInvalidArgument.With("unable to parse %s: %s", key, value)
	}
	return t, nil
}

func parseInt(r *http.Request, key string, fallback int) (int, *jormun.APIError) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil || i < 0 {
		return 0, jormun.ErrInvalidArgument.With("%s must be a non-negative integer, got %s", key, value)
	}
	return i, nil
}

func parseBool(r *http.Request, key string) (bool, *jormun.APIError) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, jormun.ErrInvalidArgument.With("%s must be a boolean, got %s", key, value)
	}
	return b, nil
}

// parseCoord splits a "lon;lat" string. The second return value is false if
// the string is not a coordinate.
func parseCoord(value string) (lon, lat float64, ok bool) {
	lonStr, latStr, found := strings.Cut(value, ";")
	if !found {
		return 0, 0, false
	}
	lon, err1 := strconv.ParseFloat(lonStr, 64)
	lat, err2 := strconv.ParseFloat(latStr, 64)
	return lon, lat, err1 == nil && err2 == nil
}

func parseJourneysArgs(r *http.Request) (dispatch.Args, *jormun.APIError) {
	var args dispatch.Args
	query := r.URL.Query()

	args.From = query.Get("from")
	args.To = query.Get("to")
	if args.From == "" {
		return args, jormun.ErrInvalidArgument.With("journeys requires a from argument")
	}
	// a coordinate as the starting point doubles as the region resolution key
	if lon, lat, ok := parseCoord(args.From); ok {
		args.Lon, args.Lat = &lon, &lat
	}

	var apiErr *jormun.APIError
	args.Datetime, apiErr = parseDatetime(r, "datetime", time.Now())
	if apiErr != nil {
		return args, apiErr
	}
	switch represents := query.Get("datetime_represents"); represents {
	case "", "departure":
		args.Clockwise = true
	case "arrival":
		args.Clockwise = false
	default:
		return args, jormun.ErrInvalidArgument.With("datetime_represents must be departure or arrival, got %s", represents)
	}
	args.MaxDuration, apiErr = parseInt(r, "max_duration", 0)
	if apiErr != nil {
		return args, apiErr
	}
	args.Count, apiErr = parseInt(r, "count", 0)
	if apiErr != nil {
		return args, apiErr
	}
	args.Wheelchair, apiErr = parseBool(r, "wheelchair")
	return args, apiErr
}

func parsePlacesArgs(r *http.Request) (dispatch.Args, *jormun.APIError) {
	var args dispatch.Args
	query := r.URL.Query()

	args.Query = query.Get("q")
	if args.Query == "" {
		return args, jormun.ErrInvalidArgument.With("places requires a q argument")
	}
	args.Types = query["type[]"]

	var apiErr *jormun.APIError
	args.Count, apiErr = parseInt(r, "count", 10)
	return args, apiErr
}

func parsePlacesNearbyArgs(r *http.Request) (dispatch.Args, *jormun.APIError) {
	var args dispatch.Args
	query := r.URL.Query()

	lon, err1 := strconv.ParseFloat(query.Get("lon"), 64)
	lat, err2 := strconv.ParseFloat(query.Get("lat"), 64)
	if err1 != nil || err2 != nil {
		return args, jormun.ErrInvalidArgument.With("places_nearby requires lon and lat arguments")
	}
	args.Lon, args.Lat = &lon, &lat

	var apiErr *jormun.APIError
	args.Distance, apiErr = parseInt(r, "distance", 500)
	if apiErr != nil {
		return args, apiErr
	}
	args.Count, apiErr = parseInt(r, "count", 10)
	return args, apiErr
}

func parseStopTimesArgs(r *http.Request, stopArea string) (dispatch.Args, *jormun.APIError) {
	var args dispatch.Args
	args.StopArea = stopArea

	var apiErr *jormun.APIError
	args.FromDatetime, apiErr = parseDatetime(r, "from_datetime", time.Now())
	if apiErr != nil {
		return args, apiErr
	}
	args.Duration, apiErr = parseInt(r, "duration", 86400)
	if apiErr != nil {
		return args, apiErr
	}
	args.Count, apiErr = parseInt(r, "count", 10)
	return args, apiErr
}
