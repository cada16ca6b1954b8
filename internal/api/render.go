// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package api contains plumbing shared by all API versions: response
// rendering in the supported output formats and error translation.
package api

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/jormun/internal/jormun"
	"github.com/sapcc/jormun/internal/kraken"
)

// callbackNameRx restricts JSONP callback names to plain function paths.
// Anything else would let the caller inject script into the response body.
var callbackNameRx = regexp.MustCompile(`^[A-Za-z0-9_.$]+$`)

// Render writes data in the format selected by the "format" query argument
// (json, xml, txt; default json). A "callback" argument wraps the JSON into a
// JSONP call. The raw protobuf format (format=pb) is handled by the resource
// handlers themselves since it needs the unrendered envelope.
func Render(w http.ResponseWriter, r *http.Request, status int, data any) {
	format := r.URL.Query().Get("format")
	if callback := r.URL.Query().Get("callback"); callback != "" && (format == "" || format == "json") {
		if !callbackNameRx.MatchString(callback) {
			jormun.ErrInvalidArgument.With("invalid callback name").WriteAsJSONTo(w)
			return
		}
		buf, err := json.Marshal(data)
		if err != nil {
			respondwith.ErrorText(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		w.WriteHeader(status)
		fmt.Fprintf(w, "%s(%s);", callback, buf)
		return
	}

	switch format {
	case "", "json":
		respondwith.JSON(w, status, data)
	case "xml":
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		w.Write([]byte(xml.Header))
		writeXML(w, "response", data)
	case "txt":
		buf, err := json.MarshalIndent(data, "", "    ")
		if err != nil {
			respondwith.ErrorText(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		w.Write(append(buf, '\n'))
	default:
		jormun.ErrInvalidArgument.With("unknown format: %s", format).WriteAsJSONTo(w)
	}
}

// writeXML renders an untyped JSON-ish value tree as XML. Map keys become
// elements, list entries repeat their parent key.
func writeXML(w http.ResponseWriter, key string, value any) {
	switch value := value.(type) {
	case map[string]any:
		fmt.Fprintf(w, "<%s>", key)
		// deterministic element order
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeXML(w, k, value[k])
		}
		fmt.Fprintf(w, "</%s>", key)
	case []any:
		for _, entry := range value {
			writeXML(w, key, entry)
		}
	default:
		fmt.Fprintf(w, "<%s>", key)
		xml.EscapeText(w, []byte(fmt.Sprintf("%v", value)))
		fmt.Fprintf(w, "</%s>", key)
	}
}

// RenderError translates any error coming out of the dispatch/auth layer into
// the corresponding HTTP response. Anything unanticipated becomes a 500 with
// the details only in the server log.
func RenderError(w http.ResponseWriter, err error) {
	if apiErr := jormun.AsAPIError(err); apiErr != nil {
		apiErr.WriteAsJSONTo(w)
		return
	}
	var deadErr kraken.DeadSocketError
	if errors.As(err, &deadErr) {
		jormun.ErrDeadSocket.With("The region %s is dead", deadErr.Instance).WriteAsJSONTo(w)
		return
	}
	var decodeErr kraken.DecodeError
	if errors.As(err, &decodeErr) {
		logg.Error("backend decode error: %s", decodeErr.Error())
		jormun.ErrInternal.With("invalid reply from the region %s", decodeErr.Instance).WriteAsJSONTo(w)
		return
	}
	logg.Error("unexpected error during request handling: %s", err.Error())
	jormun.ErrInternal.With("an internal error occurred").WriteAsJSONTo(w)
}
