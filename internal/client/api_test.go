package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/stockcount/internal/apperr"
	"github.com/vbonduro/stockcount/internal/domain"
)

// fakeServer answers POST /api by action with canned JSON bodies.
type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	handlers map[string]func() (int, string)
	calls    []map[string]any
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{handlers: make(map[string]func() (int, string))}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		action, _ := req["action"].(string)

		f.mu.Lock()
		f.calls = append(f.calls, req)
		h, ok := f.handlers[action]
		f.mu.Unlock()
		if !ok {
			_, _ = io.WriteString(w, `{"success":false,"code":"VALIDATION","message":"unknown action"}`)
			return
		}
		status, resp := h()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) on(action string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[action] = func() (int, string) { return status, body }
}

func (f *fakeServer) lastCall() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeServer) api() *API { return NewAPI(f.URL+"/api", nil) }

func TestAPIDecodesSuccess(t *testing.T) {
	srv := newFakeServer(t)
	srv.on("getProducts", http.StatusOK, `{"success":true,"products":[{"location":"A1","productName":"Bolt M8","sku":"B-8","batch":"","barcode":"111"}]}`)

	rows, err := srv.api().Products(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, []domain.CatalogRow{{Location: "A1", ProductName: "Bolt M8", SKU: "B-8", Barcode: "111"}}, rows)
	assert.Equal(t, "A1", srv.lastCall()["location"])
}

func TestAPIStructuredFailure(t *testing.T) {
	srv := newFakeServer(t)
	srv.on("deleteEntry", http.StatusOK, `{"success":false,"code":"BUSY","message":"store is busy, please retry","retry":true}`)

	err := srv.api().DeleteEntry(context.Background(), "r1")
	assert.ErrorIs(t, err, apperr.ErrBusy)
	assert.Equal(t, "store is busy, please retry", apperr.Message(err))
}

func TestAPIServerErrorIsTransient(t *testing.T) {
	srv := newFakeServer(t)
	srv.on("getHistory", http.StatusBadGateway, `<html>bad gateway</html>`)

	_, err := srv.api().History(context.Background(), domain.HistoryFilter{Operator: "ana"})
	assert.ErrorIs(t, err, apperr.ErrTransientNetwork)
}

func TestAPIUnreachableIsTransient(t *testing.T) {
	srv := newFakeServer(t)
	api := srv.api()
	srv.Close()

	_, err := api.SearchLocations(context.Background(), "a")
	assert.ErrorIs(t, err, apperr.ErrTransientNetwork)
}

func TestAPIInternalFailure(t *testing.T) {
	srv := newFakeServer(t)
	srv.on("warmupCache", http.StatusInternalServerError, `{"success":false,"code":"INTERNAL","message":"internal error"}`)

	_, err := srv.api().Warmup(context.Background(), "", "")
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
}
