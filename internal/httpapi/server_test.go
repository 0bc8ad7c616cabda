package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"vramd/internal/service"
	"vramd/pkg/types"
)

// fakeGenerator backs the handler tests with canned request state; the real
// worker pipeline is covered in the service package.
type fakeGenerator struct {
	requests map[string]*service.Request
	loadErr  error
	status   types.ServiceStatus
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		requests: make(map[string]*service.Request),
		status:   types.ServiceStatus{Service: "image", IdleTimeoutSecs: 300},
	}
}

func (f *fakeGenerator) Submit(p types.GenerationParams) (*service.Request, error) {
	id := "image-1"
	req, err := service.NewRequest(id, p)
	if err != nil {
		return nil, err
	}
	f.requests[id] = req
	return req, nil
}

func (f *fakeGenerator) Get(id string) (types.RequestSnapshot, error) {
	req, ok := f.requests[id]
	if !ok {
		return types.RequestSnapshot{}, service.NewRequestNotFound(id)
	}
	return req.Snapshot(), nil
}

func (f *fakeGenerator) Cancel(id string) (bool, error) {
	req, ok := f.requests[id]
	if !ok {
		return false, service.NewRequestNotFound(id)
	}
	return req.Cancel(), nil
}

func (f *fakeGenerator) List() []types.RequestSnapshot {
	out := make([]types.RequestSnapshot, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Snapshot())
	}
	return out
}

func (f *fakeGenerator) LoadModel() error   { return f.loadErr }
func (f *fakeGenerator) UnloadModel() error { return nil }

func (f *fakeGenerator) Status() types.ServiceStatus { return f.status }

type fakeVRAM struct{ status types.VRAMStatus }

func (f *fakeVRAM) Status() types.VRAMStatus { return f.status }

func newTestServer(t *testing.T, gen Generator) *httptest.Server {
	t.Helper()
	vr := &fakeVRAM{status: types.VRAMStatus{TotalGB: 8, BufferGB: 0.5, Residents: []types.ResidentStatus{}}}
	srv := httptest.NewServer(NewMux(gen, vr, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestGenerateAccepted(t *testing.T) {
	gen := newFakeGenerator()
	srv := newTestServer(t, gen)

	resp, err := http.Post(srv.URL+"/generate", "application/json",
		strings.NewReader(`{"prompt": "a lighthouse", "max_tokens": 64}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	snap := decode[types.RequestSnapshot](t, resp)
	if snap.ID != "image-1" || snap.State != "pending" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestGenerateRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t, newFakeGenerator())
	resp, err := http.Post(srv.URL+"/generate", "application/json", strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decode[types.ErrorResponse](t, resp)
	if body.Code != http.StatusBadRequest || body.Error == "" {
		t.Fatalf("unexpected error payload: %+v", body)
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	srv := newTestServer(t, newFakeGenerator())
	resp, err := http.Post(srv.URL+"/generate", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty prompt, got %d", resp.StatusCode)
	}
}

func TestGetRequestNotFound(t *testing.T) {
	srv := newTestServer(t, newFakeGenerator())
	resp, err := http.Get(srv.URL + "/requests/ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCancelPendingThenConflict(t *testing.T) {
	gen := newFakeGenerator()
	srv := newTestServer(t, gen)
	if _, err := gen.Submit(types.GenerationParams{Prompt: "x"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, err := http.Post(srv.URL+"/requests/image-1/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	snap := decode[types.RequestSnapshot](t, resp)
	if snap.State != "cancelled" {
		t.Fatalf("expected cancelled, got %+v", snap)
	}

	// Cancelling again hits a terminal request.
	resp, err = http.Post(srv.URL+"/requests/image-1/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestListRequestsAlwaysArray(t *testing.T) {
	srv := newTestServer(t, newFakeGenerator())
	resp, err := http.Get(srv.URL + "/requests")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[types.RequestsResponse](t, resp)
	if body.Requests == nil || len(body.Requests) != 0 {
		t.Fatalf("expected empty array, got %+v", body.Requests)
	}
}

func TestLoadContentionMapsTo503(t *testing.T) {
	gen := newFakeGenerator()
	gen.loadErr = service.NewInsufficientVRAM("image", 6.0)
	srv := newTestServer(t, gen)

	resp, err := http.Post(srv.URL+"/load", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	body := decode[types.ErrorResponse](t, resp)
	if !strings.Contains(body.Error, "insufficient VRAM") {
		t.Fatalf("unexpected error payload: %+v", body)
	}
}

func TestLoadAndUnloadReturnStatus(t *testing.T) {
	gen := newFakeGenerator()
	srv := newTestServer(t, gen)

	for _, path := range []string{"/load", "/unload"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		st := decode[types.ServiceStatus](t, resp)
		if st.Service != "image" {
			t.Fatalf("%s: unexpected status %+v", path, st)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, newFakeGenerator())
	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[types.StatusResponse](t, resp)
	if body.VRAM.TotalGB != 8 || body.VRAM.BufferGB != 0.5 {
		t.Fatalf("unexpected vram status: %+v", body.VRAM)
	}
	if body.Service.Service != "image" || body.ServerTimeUnix == 0 {
		t.Fatalf("unexpected status: %+v", body)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, newFakeGenerator())
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsExposed(t *testing.T) {
	srv := newTestServer(t, newFakeGenerator())
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
