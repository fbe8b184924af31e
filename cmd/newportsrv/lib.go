package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nasa-jpl/newportmc/motion"
	"github.com/nasa-jpl/newportmc/newport"
	"github.com/nasa-jpl/newportmc/server"
	"github.com/nasa-jpl/newportmc/server/middleware/locker"
	"github.com/nasa-jpl/newportmc/util"

	"github.com/go-chi/chi/middleware"
	"github.com/theckman/yacspin"
	"goji.io"
	"goji.io/pat"
)

// Minmax holds a min and max value
type Minmax struct {
	Min float64 `yaml:"Min"`
	Max float64 `yaml:"Max"`
}

// NodeSetup holds the parameters for one controller (or chain of them on a
// shared line) and where to serve it.
type NodeSetup struct {
	// Addr holds the network or filesystem address of the remote device,
	// e.g. 192.168.100.123:2006 for a device connected to port 6
	// on a digi portserver, or /dev/ttyUSB0 for a direct serial cable
	Addr string `yaml:"Addr"`

	// Endpoint is the stem the routes from this device will be served on
	// ex. Endpoint="/omc/esp" will produce routes of /omc/esp/pos, etc.
	Endpoint string `yaml:"Endpoint"`

	// Type is the flavor of controller, e.g. esp301 or smc100
	Type string `yaml:"Type"`

	// USB selects the high speed line discipline of the ESP USB connection
	USB bool `yaml:"USB"`

	// Limits holds software travel limits, keyed by axis address
	Limits map[string]Minmax `yaml:"Limits"`

	// Backlash holds the anti-backlash overshoot per axis address
	Backlash map[string]float64 `yaml:"Backlash"`

	// MotionTimeoutSec bounds how long a blocking move waits; 0 keeps the
	// driver default
	MotionTimeoutSec float64 `yaml:"MotionTimeoutSec"`
}

// Config is a struct that holds the initialization parameters for the served
// devices.  It is to be populated by a yaml/unmarshal call.
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr"`

	// Mock replaces the hardware with simulated stages
	Mock bool `yaml:"Mock"`

	// Nodes is the list of nodes to set up
	Nodes []NodeSetup `yaml:"Nodes"`
}

// BuildMux builds a controller for every node in the config and binds its
// routes under the node's endpoint on one mux.  The mux serves a special
// route, /endpoints, which returns the graph of all routes as JSON.
func BuildMux(c Config) http.Handler {
	root := goji.NewMux()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	for _, node := range c.Nodes {
		ctl := buildController(c, node)
		detectAxes(ctl, node)
		applyBacklash(ctl, node)

		limiters := map[string]util.Limiter{}
		for axis, mm := range node.Limits {
			limiters[axis] = util.Limiter{Min: mm.Min, Max: mm.Max}
		}

		httper := newport.NewHTTPWrapper(ctl)
		limiter := motion.LimitMiddleware{Limits: limiters, Mov: ctl}
		limiter.Inject(httper)

		lock := locker.New()
		locker.Inject(httper, lock)

		hndlS := server.SubMuxSanitize(node.Endpoint)
		supergraph[hndlS] = httper.RT().Endpoints()

		sub := goji.SubMux()
		sub.Use(limiter.Check)
		sub.Use(lock.Check)
		httper.RT().Bind(sub)
		root.Handle(pat.New(hndlS), sub)
	}
	root.HandleFunc(pat.Get("/endpoints"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root
}

func buildController(c Config, node NodeSetup) *newport.Controller {
	typ := strings.ToLower(node.Type)
	var ctl *newport.Controller
	switch typ {
	case "esp", "esp300", "esp301":
		if c.Mock {
			mock := newport.NewMockESP301("MOCK-STAGE SN1", "MOCK-STAGE SN2")
			ctl = newport.NewController(mock.Maker(), newport.ESP301Dialect, time.Second)
		} else {
			ctl = newport.NewESP301(node.Addr, node.USB)
		}
	case "smc", "smc100":
		if c.Mock {
			mock := newport.NewMockSMC100("MOCK-STAGE SN1")
			ctl = newport.NewController(mock.Maker(), newport.SMC100Dialect, time.Second)
		} else {
			ctl = newport.NewSMC100(node.Addr)
		}
	default:
		log.Fatal("type ", typ, " not understood")
	}
	if node.MotionTimeoutSec > 0 {
		ctl.MotionTimeout = util.SecsToDuration(node.MotionTimeoutSec)
	}
	return ctl
}

func detectAxes(ctl *newport.Controller, node NodeSetup) {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[59],
		Suffix:            " detecting axes on " + node.Endpoint,
		StopCharacter:     "✓",
		StopFailCharacter: "✗",
		StopColors:        []string{"fgGreen"},
		StopFailColors:    []string{"fgRed"},
	})
	if err == nil {
		spinner.Start()
	}
	detErr := ctl.DetectAxes()
	if err == nil {
		if detErr != nil {
			spinner.StopFail()
		} else {
			spinner.Stop()
		}
	}
	if detErr != nil {
		log.Fatalf("axis detection on %s failed: %v", node.Endpoint, detErr)
	}
	for _, ax := range ctl.Axes {
		if ax != nil {
			log.Printf("%s axis %d: %s", node.Endpoint, ax.Addr, ax.ID)
		}
	}
}

func applyBacklash(ctl *newport.Controller, node NodeSetup) {
	for axisS, bl := range node.Backlash {
		addr, err := strconv.Atoi(axisS)
		if err != nil {
			log.Fatalf("backlash key %q is not an axis address", axisS)
		}
		ax, err := ctl.Axis(addr)
		if err != nil {
			log.Fatalf("backlash configured for %s axis %d: %v", node.Endpoint, addr, err)
		}
		ax.Backlash = bl
	}
}
