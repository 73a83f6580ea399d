// ABOUTME: In-memory fake of the repair-shop REST API for tests
// ABOUTME: Records every request with its bearer token and supports per-route failure injection

package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389/repairdesk-gateway/internal/backend"
)

// Route patterns, usable as keys for Fail.
const (
	RouteListEquipment   = "GET /equipments"
	RouteSearchEquipment = "GET /equipments/search"
	RouteGetEquipment    = "GET /equipments/{id}"
	RouteUpdateEquipment = "PATCH /equipments/{id}"
	RouteCreateOrder     = "POST /repair-orders"
	RouteGetOrder        = "GET /repair-orders/{id}"
	RouteOrdersByEquip   = "GET /repair-orders/equipment/{equipmentId}"
)

// Request is one recorded call to the fake.
type Request struct {
	Route  string
	Method string
	Path   string
	Token  string
	Body   []byte
}

// Failure makes a route answer with Status and a NestJS-style error body.
// Times limits how many calls fail; 0 means every call.
type Failure struct {
	Status  int
	Message string
	Times   int
}

// Server is a fake backend. The zero value is not usable; use New.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	requireAuth bool
	onRequest   func(Request)

	equipment map[string]*entry
	eqOrder   []string
	orders    []backend.RepairOrder
	nextOrder int
	requests  []Request
	failures  map[string]*Failure
}

type entry struct {
	owner string
	eq    backend.Equipment
}

// New starts a fake backend and closes it when t ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		equipment: make(map[string]*entry),
		failures:  make(map[string]*Failure),
	}

	mux := http.NewServeMux()
	s.handle(mux, RouteListEquipment, s.listEquipment)
	s.handle(mux, RouteSearchEquipment, s.searchEquipment)
	s.handle(mux, RouteGetEquipment, s.getEquipment)
	s.handle(mux, RouteUpdateEquipment, s.updateEquipment)
	s.handle(mux, RouteCreateOrder, s.createOrder)
	s.handle(mux, RouteGetOrder, s.getOrder)
	s.handle(mux, RouteOrdersByEquip, s.ordersByEquipment)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// RequireAuth makes calls without a bearer token fail with 401.
func (s *Server) RequireAuth(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireAuth = on
}

// OnRequest sets a hook run for every request before it is handled and
// outside the server lock. Tests use it to hold requests in flight.
func (s *Server) OnRequest(fn func(Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRequest = fn
}

// AddEquipment registers equipment visible to every caller.
func (s *Server) AddEquipment(eq backend.Equipment) {
	s.AddEquipmentFor("", eq)
}

// AddEquipmentFor registers equipment only the holder of owner's token may see.
// Other callers get 403, as the real backend does for foreign equipment.
func (s *Server) AddEquipmentFor(owner string, eq backend.Equipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eq.CurrentStatus == "" {
		eq.CurrentStatus = backend.EquipmentAvailable
	}
	if _, exists := s.equipment[eq.ID]; !exists {
		s.eqOrder = append(s.eqOrder, eq.ID)
	}
	s.equipment[eq.ID] = &entry{owner: owner, eq: eq}
}

// AddRepairOrder registers an existing order.
func (s *Server) AddRepairOrder(order backend.RepairOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
}

// Equipment returns the current state of id.
func (s *Server) Equipment(id string) (backend.Equipment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.equipment[id]
	if !ok {
		return backend.Equipment{}, false
	}
	return e.eq, true
}

// RepairOrders returns every order the fake holds.
func (s *Server) RepairOrders() []backend.RepairOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.RepairOrder(nil), s.orders...)
}

// Fail injects a failure for route.
func (s *Server) Fail(route string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &f
}

// Requests returns a copy of all recorded requests in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns recorded requests for one route.
func (s *Server) RequestsTo(route string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) handle(mux *http.ServeMux, route string, fn func(w http.ResponseWriter, r *http.Request, token string, body []byte)) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		token := ""
		if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			token = v
		}
		rec := Request{Route: route, Method: r.Method, Path: r.URL.RequestURI(), Token: token, Body: body}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		hook, requireAuth := s.onRequest, s.requireAuth
		s.mu.Unlock()

		if hook != nil {
			hook(rec)
		}

		if f := s.takeFailure(route); f != nil {
			writeError(w, f.Status, f.Message)
			return
		}
		if requireAuth && token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		fn(w, r, token, body)
	})
}

func (s *Server) takeFailure(route string) *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.failures[route]
	if !ok {
		return nil
	}
	out := *f
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(s.failures, route)
		}
	}
	return &out
}

func (s *Server) visible(e *entry, token string) bool {
	return e.owner == "" || e.owner == token
}

func (s *Server) listEquipment(w http.ResponseWriter, r *http.Request, token string, _ []byte) {
	s.mu.Lock()
	out := []backend.Equipment{}
	for _, id := range s.eqOrder {
		if e := s.equipment[id]; s.visible(e, token) {
			out = append(out, e.eq)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchEquipment(w http.ResponseWriter, r *http.Request, token string, _ []byte) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	s.mu.Lock()
	out := []backend.Equipment{}
	for _, id := range s.eqOrder {
		e := s.equipment[id]
		if !s.visible(e, token) {
			continue
		}
		haystack := strings.ToLower(e.eq.Name + " " + e.eq.Brand + " " + e.eq.Model)
		if strings.Contains(haystack, q) {
			out = append(out, e.eq)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEquipment(w http.ResponseWriter, r *http.Request, token string, _ []byte) {
	id := r.PathValue("id")
	s.mu.Lock()
	e, ok := s.equipment[id]
	var eq backend.Equipment
	visible := ok && s.visible(e, token)
	if ok {
		eq = e.eq
	}
	s.mu.Unlock()

	switch {
	case !ok:
		writeError(w, http.StatusNotFound, fmt.Sprintf("Equipment with ID %s not found", id))
	case !visible:
		writeError(w, http.StatusForbidden, "You do not have access to this equipment")
	default:
		writeJSON(w, http.StatusOK, eq)
	}
}

func (s *Server) updateEquipment(w http.ResponseWriter, r *http.Request, token string, body []byte) {
	var req struct {
		CurrentStatus backend.EquipmentStatus `json:"currentStatus"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	switch req.CurrentStatus {
	case backend.EquipmentAvailable, backend.EquipmentInRepair, backend.EquipmentRetired:
	default:
		writeErrors(w, http.StatusBadRequest, []string{"currentStatus must be one of the following values: AVAILABLE, IN_REPAIR, RETIRED"})
		return
	}

	id := r.PathValue("id")
	s.mu.Lock()
	e, ok := s.equipment[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, fmt.Sprintf("Equipment with ID %s not found", id))
		return
	}
	if !s.visible(e, token) {
		s.mu.Unlock()
		writeError(w, http.StatusForbidden, "You do not have access to this equipment")
		return
	}
	e.eq.CurrentStatus = req.CurrentStatus
	eq := e.eq
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, eq)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request, token string, body []byte) {
	var req backend.CreateRepairOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProblemDescription) == "" {
		writeErrors(w, http.StatusBadRequest, []string{"problemDescription should not be empty"})
		return
	}

	s.mu.Lock()
	e, ok := s.equipment[req.EquipmentID]
	if !ok || !s.visible(e, token) {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, fmt.Sprintf("Equipment with ID %s not found", req.EquipmentID))
		return
	}
	s.nextOrder++
	now := time.Now().UTC()
	order := backend.RepairOrder{
		ID:                 fmt.Sprintf("ro-%d", s.nextOrder),
		EquipmentID:        req.EquipmentID,
		ProblemDescription: req.ProblemDescription,
		ImageURLs:          req.ImageURLs,
		Status:             backend.OrderInReview,
		CreatedAt:          &now,
		UpdatedAt:          &now,
	}
	s.orders = append(s.orders, order)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request, _ string, _ []byte) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("Repair order with ID %s not found", id))
}

func (s *Server) ordersByEquipment(w http.ResponseWriter, r *http.Request, _ string, _ []byte) {
	id := r.PathValue("equipmentId")
	s.mu.Lock()
	out := []backend.RepairOrder{}
	for _, o := range s.orders {
		if o.EquipmentRef() == id {
			out = append(out, o)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"statusCode": status,
		"message":    message,
		"error":      http.StatusText(status),
	})
}

func writeErrors(w http.ResponseWriter, status int, messages []string) {
	writeJSON(w, status, map[string]any{
		"statusCode": status,
		"message":    messages,
		"error":      http.StatusText(status),
	})
}
