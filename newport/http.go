package newport

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strconv"

	"github.com/nasa-jpl/newportmc/motion"
	"github.com/nasa-jpl/newportmc/server"

	"goji.io/pat"
)

// HTTPWrapper exposes a Controller over HTTP.  The generic motion routes
// (positions, velocities, enable, stop) come from the motion package; on top
// of those sit the routes peculiar to Newport hardware: raw command access,
// the command table, the error buffer, units, and the keypad lock.
type HTTPWrapper struct {
	*Controller

	// RouteTable maps the wrapper's routes to their handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns an HTTPWrapper with the route table prepopulated.
func NewHTTPWrapper(c *Controller) HTTPWrapper {
	w := HTTPWrapper{Controller: c}
	rt := motion.NewHTTPMotionController(c).RouteTable
	rt[pat.Get("/cmd-list")] = w.ListCommands
	rt[pat.Get("/cmd/:alias")] = w.QueryCommand
	rt[pat.Post("/cmd/:alias")] = w.WriteCommand
	rt[pat.Post("/raw")] = w.Raw
	rt[pat.Post("/wait")] = w.Wait
	rt[pat.Get("/axis/:axis/units")] = w.Units
	rt[pat.Post("/axis/:axis/define-home")] = w.DefineHome
	rt[pat.Get("/axis/:axis/acceleration")] = w.GetAcceleration
	rt[pat.Post("/axis/:axis/acceleration")] = w.SetAcceleration
	rt[pat.Get("/axis/:axis/max-velocity")] = w.GetMaxVelocity
	rt[pat.Post("/axis/:axis/max-velocity")] = w.SetMaxVelocity
	rt[pat.Get("/axis/:axis/actual-velocity")] = w.GetActualVelocity
	if c.dialect.ProbeErrorRegister {
		rt[pat.Get("/errors")] = w.Errors
	}
	if !c.dialect.EnableCommands {
		rt[pat.Post("/axis/:axis/keypad-disable")] = w.KeypadDisable
	}
	w.RouteTable = rt
	return w
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}

func popAxis(r *http.Request) (int, error) {
	return strconv.Atoi(pat.Param(r, "axis"))
}

// ListCommands responds with the command table as JSON.
func (h HTTPWrapper) ListCommands(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(Commands); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// QueryCommand runs the query form of a command from the table, looked up by
// its alias, against the axis given in the axis query parameter.  The reply
// payload is returned as json:str.
func (h HTTPWrapper) QueryCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := CommandFromAlias(pat.Param(r, "alias"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if cmd.IsWriteOnly {
		http.Error(w, "command has no query form", http.StatusBadRequest)
		return
	}
	axis, _ := strconv.Atoi(r.URL.Query().Get("axis"))
	// the query form always has a reply, even for commands with no "?"
	resp, err := h.txn(makeTelegram(cmd, axis, false, 0), true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.String, String: resp}
	hp.EncodeAndRespond(w, r)
}

// WriteCommand runs the write form of a command from the table, looked up by
// its alias, against the axis given in the axis query parameter.  The body
// is json:f64 for commands which take an argument.
func (h HTTPWrapper) WriteCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := CommandFromAlias(pat.Param(r, "alias"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if cmd.IsReadOnly {
		http.Error(w, "command has no write form", http.StatusBadRequest)
		return
	}
	f := server.FloatT{}
	if !cmd.WriteBare {
		err = json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	axis, _ := strconv.Atoi(r.URL.Query().Get("axis"))
	if _, err := h.RawCommand(makeTelegram(cmd, axis, true, f.F64)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Raw sends the body (json:str) to the controller verbatim and returns the
// reply, if the command produces one, as json:str.
func (h HTTPWrapper) Raw(w http.ResponseWriter, r *http.Request) {
	s := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&s)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := h.RawCommand(s.Str)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.String, String: resp}
	hp.EncodeAndRespond(w, r)
}

// Wait blocks until every axis reports motion complete.
func (h HTTPWrapper) Wait(w http.ResponseWriter, r *http.Request) {
	if err := h.MotionDoneAll(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Errors drains the controller's error buffer and responds with the messages
// as a JSON array.
func (h HTTPWrapper) Errors(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.ReadErrors()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(msgs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Units responds with the unit system name of an axis as json:str.
func (h HTTPWrapper) Units(w http.ResponseWriter, r *http.Request) {
	axis, err := popAxis(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	units, err := h.Controller.Units(axis)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.String, String: units}
	hp.EncodeAndRespond(w, r)
}

// DefineHome redefines the current position of an axis to the body (json:f64).
func (h HTTPWrapper) DefineHome(w http.ResponseWriter, r *http.Request) {
	h.floatSetter(w, r, h.Controller.DefineHome)
}

// GetAcceleration responds with the acceleration readback of an axis.
func (h HTTPWrapper) GetAcceleration(w http.ResponseWriter, r *http.Request) {
	h.floatGetter(w, r, h.Controller.GetAcceleration)
}

// SetAcceleration sets the acceleration of an axis from the body (json:f64).
func (h HTTPWrapper) SetAcceleration(w http.ResponseWriter, r *http.Request) {
	h.floatSetter(w, r, h.Controller.SetAcceleration)
}

// GetMaxVelocity responds with the maximum velocity of an axis.
func (h HTTPWrapper) GetMaxVelocity(w http.ResponseWriter, r *http.Request) {
	h.floatGetter(w, r, h.Controller.GetMaxVelocity)
}

// SetMaxVelocity sets the maximum velocity of an axis from the body (json:f64).
func (h HTTPWrapper) SetMaxVelocity(w http.ResponseWriter, r *http.Request) {
	h.floatSetter(w, r, h.Controller.SetMaxVelocity)
}

// GetActualVelocity responds with the instantaneous velocity of an axis.
func (h HTTPWrapper) GetActualVelocity(w http.ResponseWriter, r *http.Request) {
	h.floatGetter(w, r, h.Controller.GetActualVelocity)
}

// KeypadDisable disables the front panel keypad of an axis.
func (h HTTPWrapper) KeypadDisable(w http.ResponseWriter, r *http.Request) {
	axis, err := popAxis(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Controller.KeypadDisable(axis); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h HTTPWrapper) floatGetter(w http.ResponseWriter, r *http.Request, get func(int) (float64, error)) {
	axis, err := popAxis(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := get(axis)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.Float64, Float: f}
	hp.EncodeAndRespond(w, r)
}

func (h HTTPWrapper) floatSetter(w http.ResponseWriter, r *http.Request, set func(int, float64) error) {
	axis, err := popAxis(r)
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
	if err := set(axis, f.F64); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
