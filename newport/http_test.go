package newport_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nasa-jpl/newportmc/newport"
	"github.com/nasa-jpl/newportmc/server"

	"goji.io"
)

func httpPair(t *testing.T) (*httptest.Server, *newport.MockStage) {
	t.Helper()
	c, mock := espPair(t, "NSA12")
	wrap := newport.NewHTTPWrapper(c)
	mux := goji.NewMux()
	wrap.RT().Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mock
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHTTPPosRoundTrip(t *testing.T) {
	srv, _ := httpPair(t)
	resp := postJSON(t, srv.URL+"/axis/1/pos", server.FloatT{F64: 5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move rejected with status %d", resp.StatusCode)
	}
	resp, err := http.Get(srv.URL + "/axis/1/pos")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	f := server.FloatT{}
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		t.Fatal(err)
	}
	if f.F64 != 5 {
		t.Errorf("expected position 5, got %g", f.F64)
	}
}

func TestHTTPVectorMove(t *testing.T) {
	c, _ := espPair(t, "NSA12 SN1", "NSA12 SN2")
	wrap := newport.NewHTTPWrapper(c)
	mux := goji.NewMux()
	wrap.RT().Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	target := 12.0
	resp := postJSON(t, srv.URL+"/pos", server.FloatVectorT{F64s: []*float64{&target, nil}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("vector move rejected with status %d", resp.StatusCode)
	}
	vec := server.FloatVectorT{}
	if err := json.NewDecoder(resp.Body).Decode(&vec); err != nil {
		t.Fatal(err)
	}
	if len(vec.F64s) != 2 || vec.F64s[0] == nil || *vec.F64s[0] != 12 {
		t.Errorf("expected settled vector [12 x], got %v", vec.F64s)
	}
}

func TestHTTPUnits(t *testing.T) {
	srv, _ := httpPair(t)
	resp, err := http.Get(srv.URL + "/axis/1/units")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	s := server.StrT{}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Str != "millimeter" {
		t.Errorf("expected millimeter, got %q", s.Str)
	}
}

func TestHTTPRaw(t *testing.T) {
	srv, _ := httpPair(t)
	resp := postJSON(t, srv.URL+"/raw", server.StrT{Str: "1TP?"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("raw command rejected with status %d", resp.StatusCode)
	}
	s := server.StrT{}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Str != "0" {
		t.Errorf("expected the reply payload back, got %q", s.Str)
	}
}

func TestHTTPCommandTable(t *testing.T) {
	srv, mock := httpPair(t)
	resp, err := http.Get(srv.URL + "/cmd-list")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var cmds []newport.Command
	if err := json.NewDecoder(resp.Body).Decode(&cmds); err != nil {
		t.Fatal(err)
	}
	if len(cmds) == 0 {
		t.Fatal("expected a non-empty command table")
	}

	resp2 := postJSON(t, srv.URL+"/cmd/velocity?axis=1", server.FloatT{F64: 2.5})
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("aliased write rejected with status %d", resp2.StatusCode)
	}
	found := false
	for _, cmd := range mock.Cmds {
		if cmd == "1VA2.5" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 1VA2.5 on the wire, saw %v", mock.Cmds)
	}
}

func TestHTTPEnabled(t *testing.T) {
	srv, _ := httpPair(t)
	resp := postJSON(t, srv.URL+"/axis/1/enabled", server.BoolT{Bool: false})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable rejected with status %d", resp.StatusCode)
	}
	resp, err := http.Get(srv.URL + "/axis/1/enabled")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b := server.BoolT{}
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatal(err)
	}
	if b.Bool {
		t.Error("expected the axis to report disabled")
	}
}

func TestHTTPErrorsRoute(t *testing.T) {
	srv, _ := httpPair(t)
	resp, err := http.Get(srv.URL + "/errors")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("error drain rejected with status %d", resp.StatusCode)
	}
}

func TestHTTPKeypadDisableSMCOnly(t *testing.T) {
	c, mock := smcPair(t, "MFA-CC")
	wrap := newport.NewHTTPWrapper(c)
	mux := goji.NewMux()
	wrap.RT().Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp := postJSON(t, srv.URL+"/axis/1/keypad-disable", struct{}{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("keypad disable rejected with status %d", resp.StatusCode)
	}
	if !mock.KeypadLocked() {
		t.Error("expected the keypad to be locked")
	}
	// the route must be absent on the ESP flavor
	esp, _ := espPair(t, "NSA12")
	espWrap := newport.NewHTTPWrapper(esp)
	for _, route := range espWrap.RT().Endpoints() {
		if route == "/axis/:axis/keypad-disable" {
			t.Error("keypad disable must not be routed on the ESP flavor")
		}
	}
}
