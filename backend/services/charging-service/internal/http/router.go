package httpserver

import (
	"net/http"
	"sort"
	"strings"
)

// Routes groups handlers.
type Routes struct {
	Health          http.HandlerFunc
	Stations        http.HandlerFunc
	Station         http.HandlerFunc
	SessionStart    http.HandlerFunc
	Sessions        http.HandlerFunc
	Session         http.HandlerFunc
	SessionActive   http.HandlerFunc
	SessionPayment  http.HandlerFunc
	SessionStop     http.HandlerFunc
	SessionEvict    http.HandlerFunc
	SessionWatch    http.HandlerFunc
	SessionAdvice   http.HandlerFunc
	Settlements     http.HandlerFunc
	Recommendation  http.HandlerFunc
	Payments        http.HandlerFunc
	Activity        http.HandlerFunc
	ActivityArchive http.HandlerFunc
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	if routes.Stations != nil {
		mux.Handle("/stations", method(http.MethodGet, routes.Stations))
	}
	if routes.Station != nil {
		mux.Handle("/stations/{id}", method(http.MethodGet, routes.Station))
	}
	mux.Handle("/sessions", methods(map[string]http.HandlerFunc{
		http.MethodGet:  routes.Sessions,
		http.MethodPost: routes.SessionStart,
	}))
	mux.Handle("/sessions/{id}", methods(map[string]http.HandlerFunc{
		http.MethodGet:    routes.Session,
		http.MethodDelete: routes.SessionEvict,
	}))
	if routes.SessionActive != nil {
		mux.Handle("/sessions/active", method(http.MethodGet, routes.SessionActive))
	}
	if routes.SessionPayment != nil {
		mux.Handle("/sessions/{id}/payment", method(http.MethodPost, routes.SessionPayment))
	}
	if routes.SessionStop != nil {
		mux.Handle("/sessions/{id}/stop", method(http.MethodPost, routes.SessionStop))
	}
	if routes.SessionWatch != nil {
		mux.Handle("/sessions/{id}/watch", method(http.MethodGet, routes.SessionWatch))
	}
	if routes.SessionAdvice != nil {
		mux.Handle("/sessions/{id}/advice", method(http.MethodPost, routes.SessionAdvice))
	}
	if routes.Settlements != nil {
		mux.Handle("/sessions/{id}/settlements", method(http.MethodGet, routes.Settlements))
	}
	if routes.Recommendation != nil {
		mux.Handle("/advice/recommendation", method(http.MethodGet, routes.Recommendation))
	}
	if routes.Payments != nil {
		mux.Handle("/payments", method(http.MethodGet, routes.Payments))
	}
	if routes.Activity != nil {
		mux.Handle("/activity", method(http.MethodGet, routes.Activity))
	}
	if routes.ActivityArchive != nil {
		mux.Handle("/activity/archive", method(http.MethodGet, routes.ActivityArchive))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}

// methods dispatches on the request method; nil handlers are treated as absent.
func methods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(handlers))
	for m, h := range handlers {
		if h != nil {
			allowed = append(allowed, m)
		}
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		if h := handlers[r.Method]; h != nil {
			h(w, r)
			return
		}
		if allow == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
