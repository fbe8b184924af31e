package server_test

import (
	"encoding/json"
	"go/types"
	"net/http/httptest"
	"testing"

	"github.com/nasa-jpl/newportmc/server"

	"goji.io/pat"
)

func TestSubMuxSanitize(t *testing.T) {
	cases := map[string]string{
		"omc/esp":    "/omc/esp/*",
		"/omc/esp":   "/omc/esp/*",
		"/omc/esp/":  "/omc/esp/*",
		"/omc/esp/*": "/omc/esp/*",
	}
	for in, want := range cases {
		if got := server.SubMuxSanitize(in); got != want {
			t.Errorf("SubMuxSanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRouteTableEndpointsSorted(t *testing.T) {
	rt := server.RouteTable{
		pat.Get("/b"): nil,
		pat.Get("/a"): nil,
	}
	eps := rt.Endpoints()
	if len(eps) != 2 || eps[0] != "/a" || eps[1] != "/b" {
		t.Errorf("expected sorted endpoints, got %v", eps)
	}
}

func TestEncodeAndRespond(t *testing.T) {
	rec := httptest.NewRecorder()
	hp := server.HumanPayload{T: types.Float64, Float: 3.5}
	hp.EncodeAndRespond(rec, nil)
	f := server.FloatT{}
	if err := json.NewDecoder(rec.Body).Decode(&f); err != nil {
		t.Fatal(err)
	}
	if f.F64 != 3.5 {
		t.Errorf("expected 3.5, got %g", f.F64)
	}

	rec = httptest.NewRecorder()
	hp = server.HumanPayload{T: types.String, String: "millimeter"}
	hp.EncodeAndRespond(rec, nil)
	s := server.StrT{}
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Str != "millimeter" {
		t.Errorf("expected millimeter, got %q", s.Str)
	}
}
