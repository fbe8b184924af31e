// Package motion provides capability interfaces for motion controllers and
// binds them to HTTP routes.
package motion

/*
A controller may implement any number of the interfaces in this package;
NewHTTPMotionController probes which ones the concrete type satisfies and
injects only those routes.  Axes are addressed by their 1-based integer
address on the controller, which appears as the :axis route parameter.
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"go/types"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/nasa-jpl/newportmc/server"
	"github.com/nasa-jpl/newportmc/util"

	"goji.io/pat"
)

var (
	errClamped = errors.New("requested position violates software limits, aborted")
)

// Enabler describes an interface with enable/disable methods for axes
type Enabler interface {
	// Enable energizes the motor on an axis
	Enable(int) error

	// Disable de-energizes the motor on an axis
	Disable(int) error

	// GetEnabled gets if an axis is enabled
	GetEnabled(int) (bool, error)
}

// Mover describes an interface with position-related methods for axes
type Mover interface {
	// GetPos gets the current position of an axis
	GetPos(int) (float64, error)

	// MoveAbs moves an axis to an absolute position
	MoveAbs(int, float64) error

	// MoveRel moves an axis a relative amount
	MoveRel(int, float64) error

	// Home homes an axis
	Home(int) error
}

// Speeder describes an interface with velocity-related methods for axes
type Speeder interface {
	// SetVelocity sets the velocity setpoint on the axis
	SetVelocity(int, float64) error

	// GetVelocity gets the velocity setpoint on the axis
	GetVelocity(int) (float64, error)
}

// Stopper describes an interface which can emergency stop an axis
type Stopper interface {
	// Stop halts motion on an axis immediately
	Stop(int) error
}

// VectorMover describes a controller which can read and command all of its
// axes at once.  Entries in the vectors are nullable; nil marks an empty
// axis slot on read and "do not move this axis" on write.
type VectorMover interface {
	// Positions reads the position of every axis
	Positions() ([]*float64, error)

	// SetPositions dispatches every non-nil entry, waits for the moves to
	// finish, and returns the fresh position vector
	SetPositions(context.Context, []*float64) ([]*float64, error)
}

func popAxis(r *http.Request) (int, error) {
	return strconv.Atoi(pat.Param(r, "axis"))
}

func popAxisRelative(r *http.Request) (int, bool, error) {
	axis, err := popAxis(r)
	if err != nil {
		return 0, false, err
	}
	relative := r.URL.Query().Get("relative")
	if relative == "" {
		relative = "false"
	}
	b, err := strconv.ParseBool(relative)
	return axis, b, err
}

// HTTPEnable adds routes for the enabler to the route table
func HTTPEnable(iface Enabler, table server.RouteTable) {
	table[pat.Get("/axis/:axis/enabled")] = GetEnabled(iface)
	table[pat.Post("/axis/:axis/enabled")] = SetEnabled(iface)
}

// SetEnabled returns an HTTP handler func from an enabler that enables or disables the axis
func SetEnabled(e Enabler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, err := popAxis(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		boolT := server.BoolT{}
		err = json.NewDecoder(r.Body).Decode(&boolT)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if boolT.Bool {
			err = e.Enable(axis)
		} else {
			err = e.Disable(axis)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetEnabled returns an HTTP handler func from an enabler that returns if the axis is enabled
func GetEnabled(e Enabler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, err := popAxis(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		enabled, err := e.GetEnabled(axis)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := server.HumanPayload{T: types.Bool, Bool: enabled}
		hp.EncodeAndRespond(w, r)
	}
}

// HTTPMove adds routes for the mover to the route table
func HTTPMove(iface Mover, table server.RouteTable) {
	table[pat.Post("/axis/:axis/home")] = Home(iface)
	table[pat.Get("/axis/:axis/pos")] = GetPos(iface)
	table[pat.Post("/axis/:axis/pos")] = SetPos(iface)
}

// GetPos returns an HTTP handler func from a mover that gets the position of an axis
func GetPos(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, err := popAxis(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pos, err := m.GetPos(axis)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := server.HumanPayload{T: types.Float64, Float: pos}
		hp.EncodeAndRespond(w, r)
	}
}

// SetPos returns an HTTP handler func from a mover that triggers an absolute or
// relative move on an axis based on the relative query parameter
func SetPos(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, rel, err := popAxisRelative(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f := server.FloatT{}
		err = json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if rel {
			err = m.MoveRel(axis, f.F64)
		} else {
			err = m.MoveAbs(axis, f.F64)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Home returns an HTTP handler func from a mover that homes an axis
func Home(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, err := popAxis(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = m.Home(axis)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HTTPSpeed adds routes for the speeder to the route table
func HTTPSpeed(iface Speeder, table server.RouteTable) {
	table[pat.Post("/axis/:axis/velocity")] = SetVelocity(iface)
	table[pat.Get("/axis/:axis/velocity")] = GetVelocity(iface)
}

// SetVelocity returns an HTTP handler func which sets the velocity setpoint on an axis
func SetVelocity(s Speeder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, err := popAxis(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		floatT := server.FloatT{}
		err = json.NewDecoder(r.Body).Decode(&floatT)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = s.SetVelocity(axis, floatT.F64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetVelocity returns an HTTP handler func which gets the velocity setpoint on an axis
func GetVelocity(s Speeder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, err := popAxis(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vel, err := s.GetVelocity(axis)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := server.HumanPayload{T: types.Float64, Float: vel}
		hp.EncodeAndRespond(w, r)
	}
}

// HTTPStop adds a stop route for the stopper to the route table
func HTTPStop(iface Stopper, table server.RouteTable) {
	table[pat.Post("/axis/:axis/stop")] = Stop(iface)
}

// Stop returns an HTTP handler func which stops an axis
func Stop(s Stopper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, err := popAxis(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = s.Stop(axis)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HTTPVector adds whole-controller position routes to the route table
func HTTPVector(iface VectorMover, table server.RouteTable) {
	table[pat.Get("/pos")] = GetPositions(iface)
	table[pat.Post("/pos")] = SetPositions(iface)
}

// GetPositions returns an HTTP handler func which reads every axis position
func GetPositions(v VectorMover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := v.Positions()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(server.FloatVectorT{F64s: pos})
	}
}

// SetPositions returns an HTTP handler func which dispatches a vector move
// and replies with the settled position vector
func SetPositions(v VectorMover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vec := server.FloatVectorT{}
		err := json.NewDecoder(r.Body).Decode(&vec)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pos, err := v.SetPositions(r.Context(), vec.F64s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(server.FloatVectorT{F64s: pos})
	}
}

// LimitMiddleware is a type that can impose axis-specific limits on motion,
// bouncing commands which would violate them before they reach the hardware
type LimitMiddleware struct {
	// Limits contains the server imposed limits on the controller,
	// keyed by the axis route parameter
	Limits map[string]util.Limiter

	// Mov is a reference to the mover, used to query axis positions
	Mov Mover
}

// Check verifies if a motion would violate the axis limit, if it exists,
// and if it does, responds with StatusBadRequest
// otherwise, flows control to the next handler
func (l *LimitMiddleware) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// only per-axis position commands are limited
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, "/axis/") || !strings.HasSuffix(r.URL.Path, "/pos") {
			next.ServeHTTP(w, r)
			return
		}
		axisS := pat.Param(r, "axis")
		limiter, ok := l.Limits[axisS]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		axis, rel, err := popAxisRelative(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// downstream functions want the body too...
		// read it all here, then "paste" it back
		f := server.FloatT{}
		bodyContent, _ := ioutil.ReadAll(r.Body)
		defer r.Body.Close()
		r.Body = ioutil.NopCloser(bytes.NewBuffer(bodyContent))
		err = json.NewDecoder(bytes.NewReader(bodyContent)).Decode(&f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd := f.F64
		if rel {
			// in the relative case, shift the command by currPos
			currPos, err := l.Mov.GetPos(axis)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			cmd += currPos
		}
		if !limiter.Check(cmd) {
			http.Error(w, errClamped.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Inject places a /axis/:axis/limits route on the table of the HTTPer
func (l LimitMiddleware) Inject(h server.HTTPer) {
	h.RT()[pat.Get("/axis/:axis/limits")] = Limits(l)
}

// Limits returns an HTTP handler func that returns the limits for an axis
func Limits(l LimitMiddleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := pat.Param(r, "axis")
		lim, ok := l.Limits[axis]
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		var err error
		if !ok {
			err = json.NewEncoder(w).Encode(nil)
		} else {
			err = json.NewEncoder(w).Encode(lim)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// Controller is the minimum interface for the HTTP wrapper; the concrete
// type is probed for the other interfaces in this package and their routes
// are injected automatically
type Controller interface {
	Mover
}

// HTTPMotionController wraps a motion controller with HTTP
type HTTPMotionController struct {
	Controller

	RouteTable server.RouteTable
}

// NewHTTPMotionController returns a new HTTP wrapper with the route table pre-configured
func NewHTTPMotionController(c Controller) HTTPMotionController {
	w := HTTPMotionController{Controller: c}
	rt := server.RouteTable{}
	// the interface{}().(foo); ok syntax is an awful go-ism to test if c implements foo
	HTTPMove(c, rt)
	if enabler, ok := interface{}(c).(Enabler); ok {
		HTTPEnable(enabler, rt)
	}
	if speeder, ok := interface{}(c).(Speeder); ok {
		HTTPSpeed(speeder, rt)
	}
	if stopper, ok := interface{}(c).(Stopper); ok {
		HTTPStop(stopper, rt)
	}
	if vector, ok := interface{}(c).(VectorMover); ok {
		HTTPVector(vector, rt)
	}
	w.RouteTable = rt
	return w
}

// RT satisfies the HTTPer interface
func (h HTTPMotionController) RT() server.RouteTable {
	return h.RouteTable
}
