package motion_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nasa-jpl/newportmc/motion"
	"github.com/nasa-jpl/newportmc/server"
	"github.com/nasa-jpl/newportmc/util"

	"goji.io"
)

// fakeStage implements Mover and nothing else; fullStage layers on the rest.
type fakeStage struct {
	pos   map[int]float64
	homed bool
}

func newFakeStage() *fakeStage {
	return &fakeStage{pos: map[int]float64{}}
}

func (f *fakeStage) GetPos(axis int) (float64, error) { return f.pos[axis], nil }
func (f *fakeStage) MoveAbs(axis int, p float64) error {
	f.pos[axis] = p
	return nil
}
func (f *fakeStage) MoveRel(axis int, p float64) error {
	f.pos[axis] += p
	return nil
}
func (f *fakeStage) Home(axis int) error {
	f.homed = true
	f.pos[axis] = 0
	return nil
}

type fullStage struct {
	*fakeStage
	enabled map[int]bool
	vel     map[int]float64
	stopped bool
}

func newFullStage() *fullStage {
	return &fullStage{fakeStage: newFakeStage(), enabled: map[int]bool{}, vel: map[int]float64{}}
}

func (f *fullStage) Enable(axis int) error  { f.enabled[axis] = true; return nil }
func (f *fullStage) Disable(axis int) error { f.enabled[axis] = false; return nil }
func (f *fullStage) GetEnabled(axis int) (bool, error) {
	return f.enabled[axis], nil
}
func (f *fullStage) SetVelocity(axis int, v float64) error {
	f.vel[axis] = v
	return nil
}
func (f *fullStage) GetVelocity(axis int) (float64, error) { return f.vel[axis], nil }
func (f *fullStage) Stop(axis int) error {
	f.stopped = true
	return nil
}
func (f *fullStage) Positions() ([]*float64, error) {
	p := f.pos[1]
	return []*float64{&p}, nil
}
func (f *fullStage) SetPositions(ctx context.Context, pos []*float64) ([]*float64, error) {
	if len(pos) > 0 && pos[0] != nil {
		f.pos[1] = *pos[0]
	}
	return f.Positions()
}

func serve(t *testing.T, h server.HTTPer, mw ...func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	mux := goji.NewMux()
	for _, m := range mw {
		mux.Use(m)
	}
	h.RT().Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postFloat(t *testing.T, url string, f float64) *http.Response {
	t.Helper()
	buf := &bytes.Buffer{}
	json.NewEncoder(buf).Encode(server.FloatT{F64: f})
	resp, err := http.Post(url, "application/json", buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestProbingInjectsOnlySupportedRoutes(t *testing.T) {
	bare := motion.NewHTTPMotionController(newFakeStage())
	routes := bare.RT().Endpoints()
	hasVelocity := false
	hasPos := false
	for _, r := range routes {
		switch r {
		case "/axis/:axis/velocity":
			hasVelocity = true
		case "/axis/:axis/pos":
			hasPos = true
		}
	}
	if !hasPos {
		t.Error("expected position routes on a bare mover")
	}
	if hasVelocity {
		t.Error("expected no velocity routes on a controller without them")
	}

	full := motion.NewHTTPMotionController(newFullStage())
	if len(full.RT()) <= len(bare.RT()) {
		t.Error("expected the full controller to grow routes from probing")
	}
}

func TestSetPosAbsoluteAndRelative(t *testing.T) {
	stage := newFakeStage()
	srv := serve(t, motion.NewHTTPMotionController(stage))
	resp := postFloat(t, srv.URL+"/axis/1/pos", 2)
	resp.Body.Close()
	resp = postFloat(t, srv.URL+"/axis/1/pos?relative=true", 3)
	resp.Body.Close()
	if stage.pos[1] != 5 {
		t.Errorf("expected 2 then +3 to land at 5, got %g", stage.pos[1])
	}
}

func TestHomeRoute(t *testing.T) {
	stage := newFakeStage()
	srv := serve(t, motion.NewHTTPMotionController(stage))
	resp, err := http.Post(srv.URL+"/axis/1/home", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !stage.homed {
		t.Error("expected the stage to be homed")
	}
}

func TestLimitMiddlewareBouncesViolations(t *testing.T) {
	stage := newFullStage()
	wrap := motion.NewHTTPMotionController(stage)
	limits := &motion.LimitMiddleware{
		Limits: map[string]util.Limiter{"1": {Min: -10, Max: 10}},
		Mov:    stage,
	}
	limits.Inject(wrap)
	srv := serve(t, wrap, limits.Check)

	resp := postFloat(t, srv.URL+"/axis/1/pos", 50)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected an out of range move to bounce, got status %d", resp.StatusCode)
	}
	if stage.pos[1] != 0 {
		t.Error("expected the bounced move not to reach the stage")
	}

	resp = postFloat(t, srv.URL+"/axis/1/pos", 5)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected an in range move to pass, got status %d", resp.StatusCode)
	}
	if stage.pos[1] != 5 {
		t.Error("expected the passed move to reach the stage")
	}
}

func TestLimitMiddlewareShiftsRelativeMoves(t *testing.T) {
	stage := newFullStage()
	stage.pos[1] = 8
	wrap := motion.NewHTTPMotionController(stage)
	limits := &motion.LimitMiddleware{
		Limits: map[string]util.Limiter{"1": {Min: -10, Max: 10}},
		Mov:    stage,
	}
	srv := serve(t, wrap, limits.Check)

	// 8 + 5 breaks the ceiling even though 5 alone does not
	resp := postFloat(t, srv.URL+"/axis/1/pos?relative=true", 5)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected the shifted relative move to bounce, got status %d", resp.StatusCode)
	}
}

func TestLimitMiddlewareIgnoresOtherAxes(t *testing.T) {
	stage := newFullStage()
	wrap := motion.NewHTTPMotionController(stage)
	limits := &motion.LimitMiddleware{
		Limits: map[string]util.Limiter{"2": {Min: -1, Max: 1}},
		Mov:    stage,
	}
	srv := serve(t, wrap, limits.Check)
	resp := postFloat(t, srv.URL+"/axis/1/pos", 50)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected an unlimited axis to move freely, got status %d", resp.StatusCode)
	}
}
