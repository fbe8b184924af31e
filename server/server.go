// Package server contains the plumbing shared by the HTTP device wrappers:
// route tables keyed by goji patterns, and the JSON payload shells used to
// move scalars between clients and handlers.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"sort"
	"strings"

	"goji.io"
)

// RouteTable maps goji patterns (URLs with methods) to handler funcs
type RouteTable map[goji.Pattern]http.HandlerFunc

// Endpoints returns the sorted list of endpoints in the table
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, fmt.Sprint(k))
	}
	sort.Strings(routes)
	return routes
}

// Bind attaches every route in the table to the mux
func (rt RouteTable) Bind(m *goji.Mux) {
	for p, h := range rt {
		m.Handle(p, h)
	}
}

// HTTPer is an object which can describe and serve its own routes
type HTTPer interface {
	// RT yields the route table so that it may be bound or manipulated
	RT() RouteTable
}

// SubMuxSanitize prepares an endpoint for use as a goji submux pattern,
// "omc/nkt" => "/omc/nkt/*"
func SubMuxSanitize(str string) string {
	if !strings.HasPrefix(str, "/") {
		str = "/" + str
	}
	str = strings.TrimSuffix(str, "/")
	if !strings.HasSuffix(str, "/*") {
		str = str + "/*"
	}
	return str
}

// HumanPayload is a struct that holds the various types of data that may be
// returned by a route and a tag for which field is live
type HumanPayload struct {
	// T holds the type of data actually contained in the payload
	T types.BasicKind

	// Bool holds a boolean
	Bool bool

	// Int holds an int
	Int int

	// Float holds a float
	Float float64

	// String holds a string
	String string
}

// EncodeAndRespond writes the payload to w as JSON of the matching shell
// type, {"f64": 3.14} and so forth.
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	var err error
	enc := json.NewEncoder(w)
	switch hp.T {
	case types.Bool:
		err = enc.Encode(BoolT{Bool: hp.Bool})
	case types.Int:
		err = enc.Encode(IntT{Int: hp.Int})
	case types.String:
		err = enc.Encode(StrT{Str: hp.String})
	default:
		err = enc.Encode(FloatT{F64: hp.Float})
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// FloatT is a wrapper around a single float for JSON IO
type FloatT struct {
	F64 float64 `json:"f64"`
}

// FloatVectorT is a wrapper around a sequence of nullable floats for JSON IO.
// null entries mean "absent" (an empty axis slot, or no command for an axis),
// which is distinct from zero.
type FloatVectorT struct {
	F64s []*float64 `json:"f64s"`
}

// IntT is a wrapper around a single int for JSON IO
type IntT struct {
	Int int `json:"int"`
}

// StrT is a wrapper around a single string for JSON IO
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a wrapper around a single bool for JSON IO
type BoolT struct {
	Bool bool `json:"bool"`
}
