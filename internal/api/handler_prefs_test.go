package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/model"
)

type fakePrefsStore struct {
	saved  *model.UserPrefs
	upsert error
}

func (f *fakePrefsStore) Get(ctx context.Context, userID int) (model.UserPrefs, error) {
	return model.DefaultPrefs(userID), nil
}

func (f *fakePrefsStore) Upsert(ctx context.Context, p *model.UserPrefs) error {
	if f.upsert != nil {
		return f.upsert
	}
	cp := *p
	f.saved = &cp
	return nil
}

type fakeLimitSetter struct {
	userID int
	cents  int
	calls  int
	err    error
}

func (f *fakeLimitSetter) SetDailyLimit(ctx context.Context, userID, dailyLimitCents int) error {
	f.calls++
	f.userID = userID
	f.cents = dailyLimitCents
	return f.err
}

func putPrefs(t *testing.T, h *PrefsHandler, userID int, body any) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/prefs", bytes.NewReader(raw))
	c.Set("user_id", userID)

	h.Update(c)
	return w
}

func TestPrefsUpdatePropagatesDailyLimit(t *testing.T) {
	store := &fakePrefsStore{}
	ledger := &fakeLimitSetter{}
	h := NewPrefsHandler(store, ledger)

	prefs := model.DefaultPrefs(0)
	prefs.MaxAICostPerDayCents = 1200

	w := putPrefs(t, h, 7, prefs)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if store.saved == nil || store.saved.MaxAICostPerDayCents != 1200 {
		t.Fatal("prefs were not persisted with the new limit")
	}
	if ledger.calls != 1 {
		t.Fatalf("SetDailyLimit calls = %d, want 1", ledger.calls)
	}
	if ledger.userID != 7 || ledger.cents != 1200 {
		t.Errorf("ledger updated with (user %d, %d cents), want (7, 1200)", ledger.userID, ledger.cents)
	}
}

func TestPrefsUpdateInvalidSkipsLedger(t *testing.T) {
	store := &fakePrefsStore{}
	ledger := &fakeLimitSetter{}
	h := NewPrefsHandler(store, ledger)

	prefs := model.DefaultPrefs(0)
	prefs.MaxAICostPerDayCents = -1

	w := putPrefs(t, h, 7, prefs)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if store.saved != nil {
		t.Error("invalid prefs must not be persisted")
	}
	if ledger.calls != 0 {
		t.Errorf("ledger must not be touched on validation failure, got %d calls", ledger.calls)
	}
}

func TestPrefsUpdateLedgerFailureIsAnError(t *testing.T) {
	store := &fakePrefsStore{}
	ledger := &fakeLimitSetter{err: context.DeadlineExceeded}
	h := NewPrefsHandler(store, ledger)

	w := putPrefs(t, h, 7, model.DefaultPrefs(0))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 so the client retries the limit change", w.Code)
	}
}
