package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelane/contract-ledger/internal/core"
	"github.com/tradelane/contract-ledger/internal/service"
)

type memRepo struct {
	recs map[string]core.ContractRecord
	idem map[string]core.ActionEntry
}

func newMemRepo() *memRepo {
	return &memRepo{recs: map[string]core.ContractRecord{}, idem: map[string]core.ActionEntry{}}
}

func (m *memRepo) Get(_ context.Context, address string) (core.ContractRecord, error) {
	rec, ok := m.recs[address]
	if !ok {
		return core.ContractRecord{}, service.ErrNotFound
	}
	return rec, nil
}

func (m *memRepo) Create(_ context.Context, rec core.ContractRecord) error {
	if _, ok := m.recs[rec.ContractAddress]; ok {
		return service.ErrConflict
	}
	m.recs[rec.ContractAddress] = rec
	return nil
}

func (m *memRepo) Append(_ context.Context, address string, version int64, entry core.ActionEntry, state core.ContractState) error {
	rec, ok := m.recs[address]
	if !ok || rec.Version != version {
		return service.ErrConflict
	}
	rec.Version++
	rec.History = append(rec.History, entry)
	rec.State = state
	m.recs[address] = rec
	return nil
}

func (m *memRepo) ByParticipant(_ context.Context, user string) ([]core.ContractRecord, error) {
	var out []core.ContractRecord
	for _, rec := range m.recs {
		if len(core.RolesOf(rec, user)) > 0 {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memRepo) IdemLookup(_ context.Context, hash string) (core.ActionEntry, bool, error) {
	e, ok := m.idem[hash]
	return e, ok, nil
}

func (m *memRepo) IdemSave(_ context.Context, hash string, entry core.ActionEntry) error {
	m.idem[hash] = entry
	return nil
}

func testMux(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(newMemRepo(), service.Options{Logger: slog.Default()})
	return NewMux(slog.Default(), svc, "", 10000)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPostLog(t *testing.T) {
	h := testMux(t)

	w := do(t, h, http.MethodPost, "/contract/log",
		`{"contractAddress":"0xC","action":"deploy","txHash":"0x1","account":"0xA","exporter":"0xE","importer":"0xI"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var out core.ActionEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "deploy", out.Action)
	assert.NotEmpty(t, out.ID)

	w = do(t, h, http.MethodGet, "/contract/0xC", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec core.ContractRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "0xE", rec.State.Exporter)
	assert.Equal(t, "1", rec.State.CurrentStage)
	assert.Len(t, rec.History, 1)
}

func TestPostLogValidation(t *testing.T) {
	h := testMux(t)

	w := do(t, h, http.MethodPost, "/contract/log",
		`{"contractAddress":"0xC","txHash":"0x1","account":"0xA"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation")

	w = do(t, h, http.MethodPost, "/contract/log", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_json")
}

func TestDuplicateLogisticSurfacesMessage(t *testing.T) {
	h := testMux(t)

	post := func(body string) *httptest.ResponseRecorder {
		return do(t, h, http.MethodPost, "/contract/log", body)
	}
	require.Equal(t, http.StatusCreated,
		post(`{"contractAddress":"0xC","action":"deploy","txHash":"0x1","account":"0xA"}`).Code)
	require.Equal(t, http.StatusCreated,
		post(`{"contractAddress":"0xC","action":"addLogistic","txHash":"0x2","account":"0xA","extra":{"logistic":"0xL1"}}`).Code)

	w := post(`{"contractAddress":"0xC","action":"addLogistic","txHash":"0x3","account":"0xA","extra":{"logistic":"0xL1"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Logistic 0xL1 already added")
}

func TestGetContractNotFound(t *testing.T) {
	h := testMux(t)
	w := do(t, h, http.MethodGet, "/contract/0xMissing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStepEndpoint(t *testing.T) {
	h := testMux(t)

	for _, body := range []string{
		`{"contractAddress":"0xC","action":"deploy","txHash":"0x1","account":"0xA"}`,
		`{"contractAddress":"0xC","action":"deposit","txHash":"0x2","account":"0xA"}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/contract/log", body).Code)
	}

	w := do(t, h, http.MethodGet, "/contract/0xC/step", "")
	require.Equal(t, http.StatusOK, w.Code)

	var out core.StepStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.StepStatus.Deploy)
	assert.True(t, out.StepStatus.Deposit)
	assert.False(t, out.StepStatus.Finalize)
	require.NotNil(t, out.LastAction)
	assert.Equal(t, "deposit", out.LastAction.Action)

	w = do(t, h, http.MethodGet, "/contract/0xNope/step", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserEndpoint(t *testing.T) {
	h := testMux(t)

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/contract/log",
		`{"contractAddress":"0xC","action":"deploy","txHash":"0x1","account":"0xA","importer":"0xU"}`).Code)

	w := do(t, h, http.MethodGet, "/contract/user/0xU", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out []core.UserContract
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"importer"}, out[0].Roles)

	// unknown users get an empty list, not a 404
	w = do(t, h, http.MethodGet, "/contract/user/0xNobody", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestHistoryEndpoint(t *testing.T) {
	h := testMux(t)

	for _, a := range []string{"deploy", "deposit", "finalize"} {
		body := `{"contractAddress":"0xC","action":"` + a + `","txHash":"0x1","account":"0xA"}`
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/contract/log", body).Code)
	}

	w := do(t, h, http.MethodGet, "/contract/0xC/history?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out []core.ActionEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "deposit", out[0].Action)
	assert.Equal(t, "finalize", out[1].Action)
}

func TestIdempotencyKeyReplay(t *testing.T) {
	h := testMux(t)
	body := `{"contractAddress":"0xC","action":"deploy","txHash":"0x1","account":"0xA"}`

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/contract/log", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "once")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}
	first := send()
	require.Equal(t, http.StatusCreated, first.Code)
	second := send()
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestAPIKeyAuth(t *testing.T) {
	svc := service.New(newMemRepo(), service.Options{Logger: slog.Default()})
	h := NewMux(slog.Default(), svc, "k1,k2", 10000)

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Api-Key", "k2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
