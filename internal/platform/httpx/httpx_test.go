package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]shared.IdempotencyRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]shared.IdempotencyRecord)}
}

func (m *memoryStore) Reserve(_ context.Context, key, module, fingerprint string) (shared.IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := module + "/" + key
	if rec, ok := m.records[id]; ok {
		return rec, false, nil
	}
	m.records[id] = shared.IdempotencyRecord{Key: key, Module: module, Fingerprint: fingerprint}
	return m.records[id], true, nil
}

func (m *memoryStore) Complete(_ context.Context, key, module string, status int, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := module + "/" + key
	rec := m.records[id]
	rec.Completed = true
	rec.StatusCode = status
	rec.ContentType = contentType
	rec.Body = append([]byte(nil), body...)
	m.records[id] = rec
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, module+"/"+key)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withActor(id int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := &shared.Actor{ID: id, Scope: shared.AdminScope()}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func TestIdempotentReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := withActor(1, Idempotent(store, "vouchers", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		Data(w, http.StatusCreated, map[string]int{"call": calls})
	})))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/vouchers", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyHeader, "abc")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	first := send()
	second := send()

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestIdempotentKeysArePerActor(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	inner := Idempotent(store, "periods", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	for _, id := range []int64{1, 2} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(IdempotencyHeader, "same")
		withActor(id, inner).ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotentRejectsKeyReusedOnAnotherResource(t *testing.T) {
	store := newMemoryStore()
	posted := map[string]bool{}
	r := chi.NewRouter()
	r.With(Idempotent(store, "vouchers", discardLogger())).Post("/vouchers/{id}/post", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		posted[id] = true
		Data(w, http.StatusOK, map[string]string{"id": id, "status": "POSTED"})
	})
	handler := withActor(1, r)

	send := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set(IdempotencyHeader, "k1")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusOK, send("/vouchers/1/post", `{}`).Code)

	other := send("/vouchers/2/post", `{}`)
	assert.Equal(t, http.StatusConflict, other.Code)
	assert.Empty(t, other.Header().Get("Idempotent-Replayed"))
	assert.Contains(t, other.Body.String(), "different request")

	changedBody := send("/vouchers/1/post", `{"note":"x"}`)
	assert.Equal(t, http.StatusConflict, changedBody.Code)

	replay := send("/vouchers/1/post", `{}`)
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, map[string]bool{"1": true}, posted)
}

func TestIdempotentKeepsBodyForHandler(t *testing.T) {
	var seen string
	handler := Idempotent(newMemoryStore(), "periods", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	req := httptest.NewRequest(http.MethodPost, "/accounting-periods", strings.NewReader(`{"name":"Jan"}`))
	req.Header.Set(IdempotencyHeader, "body")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, `{"name":"Jan"}`, seen)
}

func TestIdempotentReleasesKeyOnFailure(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Idempotent(store, "vouchers", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		RespondError(w, shared.ErrUnbalanced)
	}))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(IdempotencyHeader, "retry-me")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.records)
}

func TestIdempotentInFlightConflict(t *testing.T) {
	store := newMemoryStore()
	_, _, err := store.Reserve(context.Background(), "busy", "vouchers", "")
	require.NoError(t, err)

	handler := Idempotent(store, "vouchers", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the key is in flight")
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(IdempotencyHeader, "busy")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestIdempotentWithoutKeyPassesThrough(t *testing.T) {
	calls := 0
	handler := Idempotent(newMemoryStore(), "vouchers", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, 2, calls)
}

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shared.NewValidationError("name", "required"), http.StatusBadRequest, CodeValidation},
		{fmt.Errorf("%w: bad", shared.ErrValidation), http.StatusBadRequest, CodeValidation},
		{fmt.Errorf("%w: draft only", shared.ErrInvalidState), http.StatusConflict, CodeInvalidState},
		{fmt.Errorf("%w: 10 vs 9", shared.ErrUnbalanced), http.StatusUnprocessableEntity, CodeUnbalanced},
		{shared.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{shared.ErrConflict, http.StatusConflict, CodeConflict},
		{shared.ErrForbidden, http.StatusForbidden, CodeForbidden},
		{shared.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
		{errors.New("connection reset"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code)
		assert.Equal(t, tc.status >= 500, IsServerError(tc.err))
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: password authentication failed"))
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestValidationFieldsAreExposed(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, shared.NewValidationError("entries[0].accountId", "required"))
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "required", body.Fields["entries[0].accountId"])
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	type line struct {
		AccountID int64 `json:"accountId" validate:"required,gt=0"`
	}
	type request struct {
		VoucherType string `json:"voucherType" validate:"required,oneof=JOURNAL SALES"`
		Entries     []line `json:"entries" validate:"required,min=1,dive"`
	}
	err := ValidateStruct(request{VoucherType: "BOGUS", Entries: []line{{}}})
	require.Error(t, err)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be one of JOURNAL SALES", verr.Fields["voucherType"])
	assert.Contains(t, verr.Fields, "entries[0].accountId")

	assert.NoError(t, ValidateStruct(request{VoucherType: "JOURNAL", Entries: []line{{AccountID: 1}}}))
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Reason string `json:"reason"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x","extra":1}`))
	err := DecodeJSON(req, &target)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPageEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Page(rr, []int{1, 2}, shared.NewPagination(shared.PageRequest{Page: 1, Limit: 2}, 5))
	var body struct {
		Data       []int             `json:"data"`
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []int{1, 2}, body.Data)
	assert.Equal(t, 3, body.Pagination.Pages)
}
