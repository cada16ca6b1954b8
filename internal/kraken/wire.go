// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// The request/response envelope exchanged with kraken backends is protobuf on
// the wire. The schema is owned by the backend; this tier only builds fields
// in and parses fields out, so the codec below is written directly against the
// wire format with protowire instead of carrying generated code for a schema
// we do not own. Unknown fields are skipped on decode, which keeps us
// compatible with newer backends.
package kraken

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// API enumerates the request types understood by the backends.
type API int32

// Possible values for API. The numeric values are part of the wire protocol.
const (
	APIUnknown        API = 0
	APIJourneys       API = 1
	APIPlaces         API = 2
	APIPlacesNearby   API = 3
	APINextDepartures API = 4
	APINextArrivals   API = 5
	APIStatus         API = 6
)

// String returns the API name as used in URLs and metrics labels.
func (a API) String() string {
	switch a {
	case APIJourneys:
		return "journeys"
	case APIPlaces:
		return "places"
	case APIPlacesNearby:
		return "places_nearby"
	case APINextDepartures:
		return "next_departures"
	case APINextArrivals:
		return "next_arrivals"
	case APIStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Request is the envelope sent to a backend. Exactly one sub-message matching
// RequestedAPI is set (none for APIStatus).
type Request struct {
	RequestedAPI  API                   // field 1
	Journeys      *JourneysRequest      // field 2
	Places        *PlacesRequest        // field 3
	PlacesNearby  *PlacesNearbyRequest  // field 4
	NextStopTimes *NextStopTimesRequest // field 5
}

// JourneysRequest asks for itineraries between two places.
type JourneysRequest struct {
	From        string // field 1
	To          string // field 2
	Datetime    int64  // field 3, POSIX seconds
	Clockwise   bool   // field 4, true = Datetime is a departure time
	MaxDuration int32  // field 5, seconds
	Count       int32  // field 6
	Wheelchair  bool   // field 7
}

// PlacesRequest asks for autocomplete results.
type PlacesRequest struct {
	Query string   // field 1
	Count int32    // field 2
	Types []string // field 3
}

// PlacesNearbyRequest asks for places around a coordinate.
type PlacesNearbyRequest struct {
	Lon      float64 // field 1
	Lat      float64 // field 2
	Distance int32   // field 3, meters
	Count    int32   // field 4
}

// NextStopTimesRequest asks for the next departures or arrivals at a stop area.
type NextStopTimesRequest struct {
	StopArea     string // field 1
	FromDatetime int64  // field 2, POSIX seconds
	Duration     int32  // field 3, seconds
	Count        int32  // field 4
	Arrivals     bool   // field 5
}

// Response is the envelope received from a backend.
type Response struct {
	Error    *ResponseError // field 1
	Status   *Status        // field 2
	Journeys []Journey      // field 3
	Places   []Place        // field 4
	Passages []Passage      // field 5
}

// ResponseError is a backend-side error report inside an otherwise well-formed
// Response.
type ResponseError struct {
	ID      string // field 1
	Message string // field 2
}

// Status describes a backend's loaded data set.
type Status struct {
	PublicationDate     string // field 1
	StartProductionDate string // field 2
	EndProductionDate   string // field 3
	Timezone            string // field 4
	IsOpenData          bool   // field 5
	IsRealtimeLoaded    bool   // field 6
	DatasetCreatedAt    string // field 7
}

// Journey is one itinerary in a journeys response.
type Journey struct {
	DepartureDateTime int64     // field 1, POSIX seconds
	ArrivalDateTime   int64     // field 2, POSIX seconds
	Duration          int32     // field 3, seconds
	NbTransfers       int32     // field 4
	Sections          []Section // field 5
}

// Section is one leg of a journey.
type Section struct {
	Type              string // field 1, e.g. "public_transport", "street_network", "transfer"
	From              string // field 2
	To                string // field 3
	DepartureDateTime int64  // field 4
	ArrivalDateTime   int64  // field 5
	Duration          int32  // field 6
	Mode              string // field 7
	Line              string // field 8
}

// Place is one match in a places/places_nearby response.
type Place struct {
	ID           string  // field 1
	Name         string  // field 2
	EmbeddedType string  // field 3, e.g. "stop_area", "address", "poi"
	Quality      int32   // field 4
	Lon          float64 // field 5
	Lat          float64 // field 6
}

// Passage is one upcoming departure or arrival in a next_departures/
// next_arrivals response.
type Passage struct {
	Route     string // field 1
	Direction string // field 2
	StopPoint string // field 3
	DateTime  int64  // field 4, POSIX seconds
}

//
// encoding
//

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// Marshal serializes this request for the wire.
func (r *Request) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, int64(r.RequestedAPI))
	if r.Journeys != nil {
		b = appendMessage(b, 2, r.Journeys.marshal())
	}
	if r.Places != nil {
		b = appendMessage(b, 3, r.Places.marshal())
	}
	if r.PlacesNearby != nil {
		b = appendMessage(b, 4, r.PlacesNearby.marshal())
	}
	if r.NextStopTimes != nil {
		b = appendMessage(b, 5, r.NextStopTimes.marshal())
	}
	return b
}

func (r *JourneysRequest) marshal() []byte {
	var b []byte
	b = appendString(b, 1, r.From)
	b = appendString(b, 2, r.To)
	b = appendVarint(b, 3, r.Datetime)
	b = appendBool(b, 4, r.Clockwise)
	b = appendVarint(b, 5, int64(r.MaxDuration))
	b = appendVarint(b, 6, int64(r.Count))
	b = appendBool(b, 7, r.Wheelchair)
	return b
}

func (r *PlacesRequest) marshal() []byte {
	var b []byte
	b = appendString(b, 1, r.Query)
	b = appendVarint(b, 2, int64(r.Count))
	for _, t := range r.Types {
		b = appendString(b, 3, t)
	}
	return b
}

func (r *PlacesNearbyRequest) marshal() []byte {
	var b []byte
	b = appendDouble(b, 1, r.Lon)
	b = appendDouble(b, 2, r.Lat)
	b = appendVarint(b, 3, int64(r.Distance))
	b = appendVarint(b, 4, int64(r.Count))
	return b
}

func (r *NextStopTimesRequest) marshal() []byte {
	var b []byte
	b = appendString(b, 1, r.StopArea)
	b = appendVarint(b, 2, r.FromDatetime)
	b = appendVarint(b, 3, int64(r.Duration))
	b = appendVarint(b, 4, int64(r.Count))
	b = appendBool(b, 5, r.Arrivals)
	return b
}

// Marshal serializes this response for the wire. The server side of this
// codec only exists for tests; production responses come from the backends.
func (r *Response) Marshal() []byte {
	var b []byte
	if r.Error != nil {
		var e []byte
		e = appendString(e, 1, r.Error.ID)
		e = appendString(e, 2, r.Error.Message)
		b = appendMessage(b, 1, e)
	}
	if r.Status != nil {
		b = appendMessage(b, 2, r.Status.marshal())
	}
	for i := range r.Journeys {
		b = appendMessage(b, 3, r.Journeys[i].marshal())
	}
	for i := range r.Places {
		b = appendMessage(b, 4, r.Places[i].marshal())
	}
	for i := range r.Passages {
		b = appendMessage(b, 5, r.Passages[i].marshal())
	}
	return b
}

func (s *Status) marshal() []byte {
	var b []byte
	b = appendString(b, 1, s.PublicationDate)
	b = appendString(b, 2, s.StartProductionDate)
	b = appendString(b, 3, s.EndProductionDate)
	b = appendString(b, 4, s.Timezone)
	b = appendBool(b, 5, s.IsOpenData)
	b = appendBool(b, 6, s.IsRealtimeLoaded)
	b = appendString(b, 7, s.DatasetCreatedAt)
	return b
}

func (j *Journey) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, j.DepartureDateTime)
	b = appendVarint(b, 2, j.ArrivalDateTime)
	b = appendVarint(b, 3, int64(j.Duration))
	b = appendVarint(b, 4, int64(j.NbTransfers))
	for i := range j.Sections {
		b = appendMessage(b, 5, j.Sections[i].marshal())
	}
	return b
}

func (s *Section) marshal() []byte {
	var b []byte
	b = appendString(b, 1, s.Type)
	b = appendString(b, 2, s.From)
	b = appendString(b, 3, s.To)
	b = appendVarint(b, 4, s.DepartureDateTime)
	b = appendVarint(b, 5, s.ArrivalDateTime)
	b = appendVarint(b, 6, int64(s.Duration))
	b = appendString(b, 7, s.Mode)
	b = appendString(b, 8, s.Line)
	return b
}

func (p *Place) marshal() []byte {
	var b []byte
	b = appendString(b, 1, p.ID)
	b = appendString(b, 2, p.Name)
	b = appendString(b, 3, p.EmbeddedType)
	b = appendVarint(b, 4, int64(p.Quality))
	b = appendDouble(b, 5, p.Lon)
	b = appendDouble(b, 6, p.Lat)
	return b
}

func (p *Passage) marshal() []byte {
	var b []byte
	b = appendString(b, 1, p.Route)
	b = appendString(b, 2, p.Direction)
	b = appendString(b, 3, p.StopPoint)
	b = appendVarint(b, 4, p.DateTime)
	return b
}

//
// decoding
//

// fieldScanner walks one protobuf message, calling the given callbacks per
// field type. Fields with unexpected wire types and unknown field numbers are
// skipped.
type fieldScanner struct {
	onVarint  func(num protowire.Number, v uint64)
	onBytes   func(num protowire.Number, v []byte) error
	onFixed64 func(num protowire.Number, v uint64)
}

func (s fieldScanner) scan(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if s.onVarint != nil {
				s.onVarint(num, v)
			}
			b = b[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if s.onFixed64 != nil {
				s.onFixed64(num, v)
			}
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if s.onBytes != nil {
				err := s.onBytes(num, v)
				if err != nil {
					return err
				}
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// UnmarshalResponse parses a backend reply.
func UnmarshalResponse(b []byte) (*Response, error) {
	var r Response
	err := fieldScanner{
		onBytes: func(num protowire.Number, v []byte) error {
			switch num {
			case 1:
				r.Error = new(ResponseError)
				return fieldScanner{onBytes: func(num protowire.Number, v []byte) error {
					switch num {
					case 1:
						r.Error.ID = string(v)
					case 2:
						r.Error.Message = string(v)
					}
					return nil
				}}.scan(v)
			case 2:
				r.Status = new(Status)
				return r.Status.unmarshal(v)
			case 3:
				var j Journey
				err := j.unmarshal(v)
				if err != nil {
					return err
				}
				r.Journeys = append(r.Journeys, j)
			case 4:
				var p Place
				err := p.unmarshal(v)
				if err != nil {
					return err
				}
				r.Places = append(r.Places, p)
			case 5:
				var p Passage
				err := p.unmarshal(v)
				if err != nil {
					return err
				}
				r.Passages = append(r.Passages, p)
			}
			return nil
		},
	}.scan(b)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Status) unmarshal(b []byte) error {
	return fieldScanner{
		onBytes: func(num protowire.Number, v []byte) error {
			switch num {
			case 1:
				s.PublicationDate = string(v)
			case 2:
				s.StartProductionDate = string(v)
			case 3:
				s.EndProductionDate = string(v)
			case 4:
				s.Timezone = string(v)
			case 7:
				s.DatasetCreatedAt = string(v)
			}
			return nil
		},
		onVarint: func(num protowire.Number, v uint64) {
			switch num {
			case 5:
				s.IsOpenData = v != 0
			case 6:
				s.IsRealtimeLoaded = v != 0
			}
		},
	}.scan(b)
}

func (j *Journey) unmarshal(b []byte) error {
	return fieldScanner{
		onVarint: func(num protowire.Number, v uint64) {
			switch num {
			case 1:
				j.DepartureDateTime = int64(v)
			case 2:
				j.ArrivalDateTime = int64(v)
			case 3:
				j.Duration = int32(v)
			case 4:
				j.NbTransfers = int32(v)
			}
		},
		onBytes: func(num protowire.Number, v []byte) error {
			if num == 5 {
				var s Section
				err := s.unmarshal(v)
				if err != nil {
					return err
				}
				j.Sections = append(j.Sections, s)
			}
			return nil
		},
	}.scan(b)
}

func (s *Section) unmarshal(b []byte) error {
	return fieldScanner{
		onBytes: func(num protowire.Number, v []byte) error {
			switch num {
			case 1:
				s.Type = string(v)
			case 2:
				s.From = string(v)
			case 3:
				s.To = string(v)
			case 7:
				s.Mode = string(v)
			case 8:
				s.Line = string(v)
			}
			return nil
		},
		onVarint: func(num protowire.Number, v uint64) {
			switch num {
			case 4:
				s.DepartureDateTime = int64(v)
			case 5:
				s.ArrivalDateTime = int64(v)
			case 6:
				s.Duration = int32(v)
			}
		},
	}.scan(b)
}

func (p *Place) unmarshal(b []byte) error {
	return fieldScanner{
		onBytes: func(num protowire.Number, v []byte) error {
			switch num {
			case 1:
				p.ID = string(v)
			case 2:
				p.Name = string(v)
			case 3:
				p.EmbeddedType = string(v)
			}
			return nil
		},
		onVarint: func(num protowire.Number, v uint64) {
			if num == 4 {
				p.Quality = int32(v)
			}
		},
		onFixed64: func(num protowire.Number, v uint64) {
			switch num {
			case 5:
				p.Lon = math.Float64frombits(v)
			case 6:
				p.Lat = math.Float64frombits(v)
			}
		},
	}.scan(b)
}

func (p *Passage) unmarshal(b []byte) error {
	return fieldScanner{
		onBytes: func(num protowire.Number, v []byte) error {
			switch num {
			case 1:
				p.Route = string(v)
			case 2:
				p.Direction = string(v)
			case 3:
				p.StopPoint = string(v)
			}
			return nil
		},
		onVarint: func(num protowire.Number, v uint64) {
			if num == 4 {
				p.DateTime = int64(v)
			}
		},
	}.scan(b)
}

// UnmarshalRequest parses a request envelope. Only used by the fake backend
// in tests; production requests are parsed by the backends themselves.
func UnmarshalRequest(b []byte) (*Request, error) {
	var r Request
	err := fieldScanner{
		onVarint: func(num protowire.Number, v uint64) {
			if num == 1 {
				r.RequestedAPI = API(v)
			}
		},
		onBytes: func(num protowire.Number, v []byte) error {
			switch num {
			case 2:
				r.Journeys = new(JourneysRequest)
				return fieldScanner{
					onBytes: func(num protowire.Number, v []byte) error {
						switch num {
						case 1:
							r.Journeys.From = string(v)
						case 2:
							r.Journeys.To = string(v)
						}
						return nil
					},
					onVarint: func(num protowire.Number, v uint64) {
						switch num {
						case 3:
							r.Journeys.Datetime = int64(v)
						case 4:
							r.Journeys.Clockwise = v != 0
						case 5:
							r.Journeys.MaxDuration = int32(v)
						case 6:
							r.Journeys.Count = int32(v)
						case 7:
							r.Journeys.Wheelchair = v != 0
						}
					},
				}.scan(v)
			case 3:
				r.Places = new(PlacesRequest)
				return fieldScanner{
					onBytes: func(num protowire.Number, v []byte) error {
						switch num {
						case 1:
							r.Places.Query = string(v)
						case 3:
							r.Places.Types = append(r.Places.Types, string(v))
						}
						return nil
					},
					onVarint: func(num protowire.Number, v uint64) {
						if num == 2 {
							r.Places.Count = int32(v)
						}
					},
				}.scan(v)
			case 4:
				r.PlacesNearby = new(PlacesNearbyRequest)
				return fieldScanner{
					onFixed64: func(num protowire.Number, v uint64) {
						switch num {
						case 1:
							r.PlacesNearby.Lon = math.Float64frombits(v)
						case 2:
							r.PlacesNearby.Lat = math.Float64frombits(v)
						}
					},
					onVarint: func(num protowire.Number, v uint64) {
						switch num {
						case 3:
							r.PlacesNearby.Distance = int32(v)
						case 4:
							r.PlacesNearby.Count = int32(v)
						}
					},
				}.scan(v)
			case 5:
				r.NextStopTimes = new(NextStopTimesRequest)
				return fieldScanner{
					onBytes: func(num protowire.Number, v []byte) error {
						if num == 1 {
							r.NextStopTimes.StopArea = string(v)
						}
						return nil
					},
					onVarint: func(num protowire.Number, v uint64) {
						switch num {
						case 2:
							r.NextStopTimes.FromDatetime = int64(v)
						case 3:
							r.NextStopTimes.Duration = int32(v)
						case 4:
							r.NextStopTimes.Count = int32(v)
						case 5:
							r.NextStopTimes.Arrivals = v != 0
						}
					},
				}.scan(v)
			}
			return nil
		},
	}.scan(b)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
