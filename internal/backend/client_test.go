// ABOUTME: Tests for the backend REST client against the in-memory fake
// ABOUTME: Covers credential attachment, absence normalization, and error mapping

package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/repairdesk-gateway/internal/backend"
	"github.com/2389/repairdesk-gateway/internal/backend/backendtest"
)

func newClient(t *testing.T, srv *backendtest.Server) *backend.Client {
	t.Helper()
	return backend.NewClient(backend.Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second})
}

func TestSession_AttachesBearerToken(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddEquipment(backend.Equipment{ID: "E1", Name: "Dell Latitude"})
	client := newClient(t, srv)

	_, err := client.Session("tok-a").GetEquipment(context.Background(), "E1")
	require.NoError(t, err)
	_, err = client.Session("").GetEquipment(context.Background(), "E1")
	require.NoError(t, err)

	reqs := srv.RequestsTo(backendtest.RouteGetEquipment)
	require.Len(t, reqs, 2)
	assert.Equal(t, "tok-a", reqs[0].Token)
	assert.Empty(t, reqs[1].Token, "empty session must call unauthenticated")
}

func TestSession_GetEquipment(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddEquipment(backend.Equipment{ID: "E1", Name: "Dell Latitude", Brand: "Dell", Model: "5420"})
	s := newClient(t, srv).Session("tok")

	eq, err := s.GetEquipment(context.Background(), "E1")
	require.NoError(t, err)
	require.NotNil(t, eq)
	assert.Equal(t, "Dell Latitude", eq.Name)
	assert.Equal(t, backend.EquipmentAvailable, eq.CurrentStatus)
}

func TestSession_LookupAbsenceIsNeutral(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddEquipmentFor("owner-token", backend.Equipment{ID: "E2", Name: "Printer"})
	client := newClient(t, srv)
	ctx := context.Background()

	// 404
	eq, err := client.Session("tok").GetEquipment(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, eq)

	// 403
	eq, err = client.Session("someone-else").GetEquipment(ctx, "E2")
	require.NoError(t, err)
	assert.Nil(t, eq)

	// 401
	srv.RequireAuth(true)
	list, err := client.Session("").SearchEquipment(ctx, "printer")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	orders, err := client.Session("").ListRepairOrdersByEquipment(ctx, "E2")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestSession_LookupServerErrorFails(t *testing.T) {
	srv := backendtest.New(t)
	srv.Fail(backendtest.RouteSearchEquipment, backendtest.Failure{Status: 500, Message: "database unavailable"})
	s := newClient(t, srv).Session("tok")

	_, err := s.SearchEquipment(context.Background(), "dell")
	require.Error(t, err)

	var be *backend.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 500, be.Status)
	assert.Equal(t, "database unavailable", be.Message)
	assert.Contains(t, err.Error(), "could not search equipment")
}

func TestSession_MutationFailureIsNeverNeutral(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddEquipment(backend.Equipment{ID: "E1", Name: "Laptop"})
	srv.Fail(backendtest.RouteUpdateEquipment, backendtest.Failure{Status: 404, Message: "gone"})
	s := newClient(t, srv).Session("tok")

	_, err := s.UpdateEquipmentStatus(context.Background(), "E1", backend.EquipmentInRepair)
	require.Error(t, err)
	assert.Equal(t, 404, backend.StatusCode(err))
}

func TestSession_ValidationMessageArray(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddEquipment(backend.Equipment{ID: "E1", Name: "Laptop"})
	s := newClient(t, srv).Session("tok")

	_, err := s.CreateRepairOrder(context.Background(), backend.CreateRepairOrderRequest{EquipmentID: "E1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "problemDescription should not be empty")
	assert.Equal(t, 400, backend.StatusCode(err))
}

func TestSession_CreateAndUpdate(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddEquipment(backend.Equipment{ID: "E1", Name: "Laptop"})
	s := newClient(t, srv).Session("tok")
	ctx := context.Background()

	order, err := s.CreateRepairOrder(ctx, backend.CreateRepairOrderRequest{
		EquipmentID:        "E1",
		ProblemDescription: "Screen cracked",
	})
	require.NoError(t, err)
	assert.Equal(t, "E1", order.EquipmentRef())
	assert.NotEmpty(t, order.ID)

	// nil image list is sent as []
	reqs := srv.RequestsTo(backendtest.RouteCreateOrder)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"equipmentId":"E1","problemDescription":"Screen cracked","imageUrls":[]}`, string(reqs[0].Body))

	eq, err := s.UpdateEquipmentStatus(ctx, "E1", backend.EquipmentInRepair)
	require.NoError(t, err)
	assert.Equal(t, backend.EquipmentInRepair, eq.CurrentStatus)

	patch := srv.RequestsTo(backendtest.RouteUpdateEquipment)
	require.Len(t, patch, 1)
	assert.JSONEq(t, `{"currentStatus":"IN_REPAIR"}`, string(patch[0].Body))
}

func TestSession_SearchEscapesQuery(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddEquipment(backend.Equipment{ID: "E1", Name: "HP LaserJet Pro", Brand: "HP"})
	s := newClient(t, srv).Session("tok")

	got, err := s.SearchEquipment(context.Background(), "laserjet pro")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "E1", got[0].ID)
}

func TestSession_GetRepairOrder(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddRepairOrder(backend.RepairOrder{ID: "ro-9", EquipmentID: "E1", Status: backend.OrderReady})
	s := newClient(t, srv).Session("tok")

	order, err := s.GetRepairOrder(context.Background(), "ro-9")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, backend.OrderReady, order.Status)

	order, err = s.GetRepairOrder(context.Background(), "ro-404")
	require.NoError(t, err)
	assert.Nil(t, order)
}

// typeormOrder is an order as the NestJS backend serializes it: numeric
// columns as strings, date columns as bare dates.
const typeormOrder = `{"id":"o1","problemDescription":"No power","status":"IN_REPAIR",` +
	`"estimatedCost":"150.00","warrantyStartDate":"2025-01-01","warrantyEndDate":"2025-04-01",` +
	`"equipment":{"id":"E1","name":"Laptop","serialNumber":null,"currentStatus":"IN_REPAIR"},` +
	`"createdAt":"2025-01-01T10:00:00.000Z"}`

func TestSession_DecodesBackendOrderShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/repair-orders/o1" {
			_, _ = w.Write([]byte(typeormOrder))
			return
		}
		_, _ = w.Write([]byte(`[` + typeormOrder + `,{"id":"o2","status":"PENDING","estimatedCost":99.5}]`))
	}))
	defer srv.Close()
	s := backend.NewClient(backend.Config{BaseURL: srv.URL}).Session("tok")

	orders, err := s.ListRepairOrdersByEquipment(context.Background(), "E1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.NotNil(t, orders[0].EstimatedCost)
	assert.Equal(t, backend.Amount("150.00"), *orders[0].EstimatedCost)
	assert.InDelta(t, 99.5, orders[1].EstimatedCost.Float64(), 0.001)
	assert.Equal(t, "2025-01-01", orders[0].WarrantyStartDate)
	assert.Equal(t, "E1", orders[0].EquipmentRef())

	order, err := s.GetRepairOrder(context.Background(), "o1")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "2025-04-01", order.WarrantyEndDate)

	data, err := json.Marshal(order)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"estimatedCost":150.00`)
}

func TestAmount_RejectsNonNumbers(t *testing.T) {
	var a backend.Amount
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &a))
	assert.Error(t, json.Unmarshal([]byte(`true`), &a))
	require.NoError(t, json.Unmarshal([]byte(`"12"`), &a))
	assert.Equal(t, backend.Amount("12"), a)
}

func TestSession_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	client := backend.NewClient(backend.Config{BaseURL: slow.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Session("tok").GetEquipment(context.Background(), "E1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 0, backend.StatusCode(err))
}

func TestSession_MalformedResponse(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 12`))
	}))
	defer bad.Close()

	client := backend.NewClient(backend.Config{BaseURL: bad.URL})
	_, err := client.Session("").GetEquipment(context.Background(), "E1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestSession_ConcurrentCredentialsDoNotBleed(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddEquipment(backend.Equipment{ID: "E1", Name: "Laptop"})
	client := newClient(t, srv)

	var wg sync.WaitGroup
	for _, tok := range []string{"tok-a", "tok-b", "tok-c", ""} {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			s := client.Session(tok)
			for i := 0; i < 10; i++ {
				_, _ = s.SearchEquipment(context.Background(), tok)
			}
		}(tok)
	}
	wg.Wait()

	// Each search carries its own token as the query, so the recorded
	// Authorization header must always match it.
	for _, r := range srv.RequestsTo(backendtest.RouteSearchEquipment) {
		assert.Equal(t, "/equipments/search?q="+r.Token, r.Path)
	}
}

func TestClient_Ping(t *testing.T) {
	srv := backendtest.New(t)
	require.NoError(t, newClient(t, srv).Ping(context.Background()))

	dead := backend.NewClient(backend.Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.Error(t, dead.Ping(context.Background()))
}
