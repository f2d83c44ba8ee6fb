// Package runtimetest provides an in-process fake of the transactional
// runtime's admin endpoint. It honors the fixed install-flag semantics
// (warnings are non-fatal, applications are found or created by name, and an
// existing application is reconfigured in place) so registrar behavior can be
// exercised without a real host platform.
package runtimetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/GoCodeAlone/serviced"
)

// Application is a registered application in the fake runtime.
type Application struct {
	// ID is the GUID assigned at creation and kept across reconfigurations.
	ID string

	// Name is the application name.
	Name string

	// ModuleFilePath is the most recently registered module path. A
	// reconfiguration overwrites it, never merges.
	ModuleFilePath string

	// Registrations counts how many times this application was registered.
	Registrations int
}

// Runtime is the fake runtime's state: applications by name plus every
// descriptor received, in order.
type Runtime struct {
	mu           sync.Mutex
	applications map[string]*Application
	received     []serviced.RegistrationDescriptor
}

// NewRuntime creates an empty fake runtime.
func NewRuntime() *Runtime {
	return &Runtime{applications: make(map[string]*Application)}
}

// Register applies one registration descriptor with the fixed flag
// semantics and returns the result the real runtime would report.
func (r *Runtime) Register(descriptor serviced.RegistrationDescriptor) *serviced.RegistrationResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.received = append(r.received, descriptor)

	app, exists := r.applications[descriptor.ApplicationName]
	result := &serviced.RegistrationResult{}
	if !exists {
		app = &Application{
			ID:   uuid.NewString(),
			Name: descriptor.ApplicationName,
		}
		r.applications[descriptor.ApplicationName] = app
		result.Created = true
	} else if descriptor.Flags.Has(serviced.InstallReconfigureExisting) {
		if descriptor.Flags.Has(serviced.InstallReportWarnings) && app.ModuleFilePath != descriptor.ModuleFilePath {
			result.Warnings = append(result.Warnings, "existing application reconfigured with a new module path")
		}
	}

	app.ModuleFilePath = descriptor.ModuleFilePath
	app.Registrations++
	result.ApplicationID = app.ID
	return result
}

// Application returns the registered application with the given name, if any.
func (r *Runtime) Application(name string) (*Application, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.applications[name]
	return app, ok
}

// Received returns every descriptor the runtime has accepted, in order.
func (r *Runtime) Received() []serviced.RegistrationDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]serviced.RegistrationDescriptor, len(r.received))
	copy(out, r.received)
	return out
}

// Handler returns the runtime's admin endpoint as an http.Handler.
func (r *Runtime) Handler() http.Handler {
	router := chi.NewRouter()
	router.Post("/applications/register", func(w http.ResponseWriter, req *http.Request) {
		var descriptor serviced.RegistrationDescriptor
		if err := json.NewDecoder(req.Body).Decode(&descriptor); err != nil {
			http.Error(w, "malformed registration descriptor", http.StatusBadRequest)
			return
		}
		if descriptor.ApplicationName == "" || descriptor.ModuleFilePath == "" {
			http.Error(w, "application name and module file path are required", http.StatusUnprocessableEntity)
			return
		}

		result := r.Register(descriptor)
		w.Header().Set("Content-Type", "application/json")
		if result.Created {
			w.WriteHeader(http.StatusCreated)
		}
		_ = json.NewEncoder(w).Encode(result)
	})
	return router
}

// Server wraps a Runtime in a running httptest server.
type Server struct {
	*Runtime
	HTTP *httptest.Server
}

// NewServer starts a fake runtime server. The caller must Close it.
func NewServer() *Server {
	rt := NewRuntime()
	return &Server{Runtime: rt, HTTP: httptest.NewServer(rt.Handler())}
}

// URL returns the server's base URL.
func (s *Server) URL() string { return s.HTTP.URL }

// Close shuts the server down.
func (s *Server) Close() { s.HTTP.Close() }
