package locker_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nasa-jpl/newportmc/server/middleware/locker"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestLockerBouncesWhenLocked(t *testing.T) {
	l := locker.New()
	h := l.Check(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/axis/1/pos", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected unlocked traffic to pass, got %d", rec.Code)
	}

	l.Lock()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/axis/1/pos", nil))
	if rec.Code != http.StatusLocked {
		t.Errorf("expected locked traffic to bounce with 423, got %d", rec.Code)
	}
}

func TestLockerDoesNotProtectLockRoute(t *testing.T) {
	l := locker.New()
	l.Lock()
	h := l.Check(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lock", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected the lock route to stay reachable, got %d", rec.Code)
	}
}

func TestLockerHTTPSet(t *testing.T) {
	l := locker.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`{"bool": true}`))
	l.HTTPSet(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set rejected with %d", rec.Code)
	}
	if !l.Locked() {
		t.Error("expected the locker to be locked")
	}
}
