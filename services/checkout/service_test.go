package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"oplugy/models"
	"oplugy/services/handoff"
	"oplugy/services/vtu"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

const testTab = "tab-1"

type stubCatalog struct {
	networks     []models.Network
	networksErr  error
	networksHook func()
	categories   map[string][]string
	plans        func(q vtu.DataPlanQuery) ([]models.Plan, error)
	providers    []models.Provider
	operators    []models.Provider
	cablePlans   map[string][]models.Plan

	mu         sync.Mutex
	cableCalls []string
}

func (s *stubCatalog) ListNetworks(ctx context.Context, server string) ([]models.Network, error) {
	if s.networksHook != nil {
		s.networksHook()
	}
	return s.networks, s.networksErr
}

func (s *stubCatalog) ListDataPlans(ctx context.Context, q vtu.DataPlanQuery) ([]models.Plan, error) {
	if s.plans == nil {
		return nil, nil
	}
	return s.plans(q)
}

func (s *stubCatalog) ListDataCategories(ctx context.Context, network, server string) ([]string, error) {
	return s.categories[network], nil
}

func (s *stubCatalog) ListCableProviders(ctx context.Context) ([]models.Provider, error) {
	return s.providers, nil
}

func (s *stubCatalog) ListCablePlans(ctx context.Context, providerName string) ([]models.Plan, error) {
	s.mu.Lock()
	s.cableCalls = append(s.cableCalls, providerName)
	s.mu.Unlock()
	return s.cablePlans[providerName], nil
}

func (s *stubCatalog) ListElectricityOperators(ctx context.Context) ([]models.Provider, error) {
	return s.operators, nil
}

type stubVerifier struct {
	hook   func()
	name   string
	err    error
	calls  int
	lastMT string
}

func (s *stubVerifier) VerifyCableSmartcard(ctx context.Context, req vtu.CableVerifyRequest) (*models.Verification, error) {
	return s.verify("")
}

func (s *stubVerifier) VerifyElectricityMeter(ctx context.Context, req vtu.MeterVerifyRequest) (*models.Verification, error) {
	s.lastMT = req.MeterType
	return s.verify(req.MeterType)
}

func (s *stubVerifier) verify(meterType string) (*models.Verification, error) {
	s.calls++
	if s.hook != nil {
		s.hook()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.Verification{Verified: true, CustomerName: s.name}, nil
}

type harness struct {
	svc     *DefaultFunnelService
	store   *RedisSessionStore
	handoff *handoff.RedisStore
	mr      *miniredis.Miniredis
}

func newHarness(t *testing.T, cat *stubCatalog, ver *stubVerifier) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisSessionStore(client, 30*time.Minute)
	slots := handoff.NewRedisStore(client, 30*time.Minute)
	if ver == nil {
		ver = &stubVerifier{}
	}
	return &harness{
		svc: &DefaultFunnelService{
			Store:         store,
			Handoff:       slots,
			Catalog:       cat,
			Verifier:      ver,
			DefaultServer: "1",
		},
		store:   store,
		handoff: slots,
		mr:      mr,
	}
}

func mustSelect(t *testing.T, h *harness, id string, field models.Field, value string) *View {
	t.Helper()
	view, err := h.svc.Select(context.Background(), testTab, id, field, value)
	if err != nil {
		t.Fatalf("select %s=%q: %v", field, value, err)
	}
	return view
}

func mtnCatalog() *stubCatalog {
	return &stubCatalog{
		networks: []models.Network{{ID: "1", Name: "MTN"}, {ID: "2", Name: "GLO"}},
	}
}

func TestAirtimeProducesDraft(t *testing.T) {
	h := newHarness(t, mtnCatalog(), nil)
	ctx := context.Background()

	view, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceAirtime})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.State != models.StateCollectingDetails {
		t.Fatalf("expected collecting_details after networks load, got %s", view.State)
	}
	if len(view.Catalogs.Networks) != 2 {
		t.Fatalf("expected networks to load, got %+v", view.Catalogs.Networks)
	}

	mustSelect(t, h, view.SessionID, models.FieldNetwork, "1")
	mustSelect(t, h, view.SessionID, models.FieldPhone, "08012345678")
	view = mustSelect(t, h, view.SessionID, models.FieldAmount, "1000")
	if !view.CanSubmit || view.State != models.StateReadyToSubmit {
		t.Fatalf("expected ready to submit, got %s", view.State)
	}
	if view.Quote.Fee != 20 || view.Quote.Total != 1020 {
		t.Fatalf("unexpected guest quote %+v", view.Quote)
	}

	view, draft, err := h.svc.Submit(ctx, testTab, view.SessionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if view.State != models.StateSubmitted {
		t.Fatalf("expected submitted, got %s", view.State)
	}
	want := models.OrderDraft{
		Service:   models.ServiceAirtime,
		Recipient: "08012345678",
		Network:   "1",
		Amount:    1000,
		Label:     "Airtime Top-up",
	}
	got := *draft
	got.CreatedAt = time.Time{}
	if got != want {
		t.Fatalf("unexpected draft\n got %+v\nwant %+v", got, want)
	}

	slot, err := h.handoff.Read(ctx, testTab)
	if err != nil {
		t.Fatalf("handoff read: %v", err)
	}
	if slot.Draft.Recipient != want.Recipient || slot.Draft.Amount != want.Amount {
		t.Fatalf("handoff holds %+v", slot.Draft)
	}
}

func TestDataPlanPriceIsAuthoritative(t *testing.T) {
	cat := mtnCatalog()
	cat.categories = map[string][]string{"1": {"SME", "Gifting"}}
	cat.plans = func(q vtu.DataPlanQuery) ([]models.Plan, error) {
		return []models.Plan{{ID: "p1", Name: "1GB-30day", Amount: 500}}, nil
	}
	h := newHarness(t, cat, nil)
	ctx := context.Background()

	view, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceData})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := view.SessionID

	view = mustSelect(t, h, id, models.FieldNetwork, "1")
	if len(view.Catalogs.Categories) != 2 || len(view.Catalogs.Plans) != 1 {
		t.Fatalf("expected categories and plans to load, got %+v", view.Catalogs)
	}

	if _, err := h.svc.Select(ctx, testTab, id, models.FieldAmount, "200"); !models.HasCode(err, models.CodeInvalidField) {
		t.Fatalf("expected typed amount to be rejected, got %v", err)
	}

	view = mustSelect(t, h, id, models.FieldPlan, "p1")
	if view.Fields[models.FieldAmount] != "500" {
		t.Fatalf("expected plan price copied into amount, got %q", view.Fields[models.FieldAmount])
	}
	mustSelect(t, h, id, models.FieldPhone, "08012345678")

	_, draft, err := h.svc.Submit(ctx, testTab, id)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if draft.PlanID != "p1" || draft.PlanName != "1GB-30day" || draft.Amount != 500 {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if draft.Label != "Data Bundle" || draft.Network != "1" {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestDataNetworkChangeResetsBeforeFetch(t *testing.T) {
	cat := mtnCatalog()
	cat.categories = map[string][]string{"1": {"SME"}, "2": {"SME"}}
	h := newHarness(t, cat, nil)
	ctx := context.Background()

	var (
		sessionID string
		checked   bool
		seen      *models.FunnelSession
	)
	cat.plans = func(q vtu.DataPlanQuery) ([]models.Plan, error) {
		if q.Network == "2" {
			sess, err := h.store.Get(context.Background(), sessionID)
			if err == nil {
				seen, checked = sess, true
			}
			return []models.Plan{{ID: "g1", Name: "GLO 1GB", Amount: 300}}, nil
		}
		return []models.Plan{{ID: "p1", Name: "1GB-30day", Amount: 500}}, nil
	}

	view, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceData})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	sessionID = view.SessionID
	mustSelect(t, h, sessionID, models.FieldNetwork, "1")
	mustSelect(t, h, sessionID, models.FieldCategory, "SME")
	mustSelect(t, h, sessionID, models.FieldPlan, "p1")

	view = mustSelect(t, h, sessionID, models.FieldNetwork, "2")
	if !checked {
		t.Fatal("plan fetch for the new network was never issued")
	}
	if seen.Fields[models.FieldCategory] != "" || seen.Fields[models.FieldPlan] != "" {
		t.Fatalf("category/plan not reset before fetch: %+v", seen.Fields)
	}
	if seen.Fields[models.FieldAmount] != "" {
		t.Fatalf("plan amount not reset before fetch: %q", seen.Fields[models.FieldAmount])
	}
	if len(view.Catalogs.Plans) != 1 || view.Catalogs.Plans[0].ID != "g1" {
		t.Fatalf("expected GLO plans, got %+v", view.Catalogs.Plans)
	}
}

func TestSupersededPlanResponseDiscarded(t *testing.T) {
	cat := mtnCatalog()
	started := make(chan struct{})
	release := make(chan struct{})
	cat.plans = func(q vtu.DataPlanQuery) ([]models.Plan, error) {
		if q.Network == "1" {
			close(started)
			<-release
			return []models.Plan{{ID: "stale", Name: "MTN 1GB", Amount: 500}}, nil
		}
		return []models.Plan{{ID: "fresh", Name: "GLO 1GB", Amount: 300}}, nil
	}
	h := newHarness(t, cat, nil)
	ctx := context.Background()

	view, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceData})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := view.SessionID

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Select(ctx, testTab, id, models.FieldNetwork, "1")
		done <- err
	}()
	<-started

	view = mustSelect(t, h, id, models.FieldNetwork, "2")
	if len(view.Catalogs.Plans) != 1 || view.Catalogs.Plans[0].ID != "fresh" {
		t.Fatalf("expected fresh plans, got %+v", view.Catalogs.Plans)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first select: %v", err)
	}

	view, err = h.svc.Get(ctx, testTab, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Fields[models.FieldNetwork] != "2" {
		t.Fatalf("expected network 2, got %q", view.Fields[models.FieldNetwork])
	}
	if len(view.Catalogs.Plans) != 1 || view.Catalogs.Plans[0].ID != "fresh" {
		t.Fatalf("stale response overwrote fresher plans: %+v", view.Catalogs.Plans)
	}
	if view.Loading[models.CatalogPlans] {
		t.Fatal("plans should not be loading")
	}
}

func TestCatalogFailureDegradesToEmptyList(t *testing.T) {
	cat := &stubCatalog{
		networksErr: models.NewAppError(models.CodeCatalogUnavailable, "Could not load networks.", errors.New("dial tcp: refused")),
	}
	h := newHarness(t, cat, nil)

	view, err := h.svc.Start(context.Background(), StartRequest{Tab: testTab, Service: models.ServiceAirtime})
	if err != nil {
		t.Fatalf("start should not fail on catalog outage: %v", err)
	}
	if len(view.Catalogs.Networks) != 0 || view.Loading[models.CatalogNetworks] {
		t.Fatalf("expected empty settled list, got %+v loading=%v", view.Catalogs.Networks, view.Loading)
	}
	if len(view.Notices) != 1 {
		t.Fatalf("expected one notice, got %+v", view.Notices)
	}
	if n := view.Notices[0]; n.Level != models.NoticeWarning || n.Code != string(models.CodeCatalogUnavailable) {
		t.Fatalf("unexpected notice %+v", n)
	}
	if view.State != models.StateCollectingDetails {
		t.Fatalf("unexpected state %s", view.State)
	}
}

func cableCatalog() *stubCatalog {
	return &stubCatalog{
		providers:  []models.Provider{{ID: "gotv", Name: "GOtv"}, {ID: "dstv", Name: "DStv"}},
		cablePlans: map[string][]models.Plan{"GOtv": {{ID: "c1", Name: "GOtv Max", Amount: 3000}}},
	}
}

func TestCableVerificationGatesSubmission(t *testing.T) {
	cat := cableCatalog()
	ver := &stubVerifier{name: "J. DOE"}
	h := newHarness(t, cat, ver)
	ctx := context.Background()

	view, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceCable})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := view.SessionID

	view = mustSelect(t, h, id, models.FieldProvider, "gotv")
	if len(cat.cableCalls) != 1 || cat.cableCalls[0] != "GOtv" {
		t.Fatalf("expected plans fetched by provider name, got %v", cat.cableCalls)
	}
	if len(view.Catalogs.Plans) != 1 {
		t.Fatalf("expected cable plans, got %+v", view.Catalogs.Plans)
	}
	mustSelect(t, h, id, models.FieldSmartcard, "1234567890")

	view, err = h.svc.Verify(ctx, testTab, id)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if view.Verification == nil || view.Verification.CustomerName != "J. DOE" {
		t.Fatalf("expected verified customer, got %+v", view.Verification)
	}
	view = mustSelect(t, h, id, models.FieldPlan, "c1")
	if !view.CanSubmit {
		t.Fatalf("expected submission enabled, state %s", view.State)
	}

	view = mustSelect(t, h, id, models.FieldSmartcard, "1234567891")
	if view.Verification != nil {
		t.Fatal("expected verification cleared on identifier change")
	}
	if view.CanSubmit {
		t.Fatal("expected submission disabled until re-verified")
	}
	if _, _, err := h.svc.Submit(ctx, testTab, id); !models.HasCode(err, models.CodeValidationIncomplete) {
		t.Fatalf("expected validation failure, got %v", err)
	}

	// The new verification call never sees the old customer name.
	ver.hook = func() {
		sess, err := h.store.Get(context.Background(), id)
		if err != nil {
			t.Errorf("get session: %v", err)
			return
		}
		if sess.Verification != nil {
			t.Errorf("stale verification visible during new call: %+v", sess.Verification)
		}
		if !sess.Verifying || sess.State != models.StateVerifying {
			t.Errorf("expected verifying state during call, got %s", sess.State)
		}
	}
	view, err = h.svc.Verify(ctx, testTab, id)
	if err != nil {
		t.Fatalf("re-verify: %v", err)
	}
	if !view.CanSubmit {
		t.Fatalf("expected submission re-enabled, state %s", view.State)
	}

	_, draft, err := h.svc.Submit(ctx, testTab, id)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if draft.CustomerName != "J. DOE" || draft.Recipient != "1234567891" || draft.Amount != 3000 || draft.Network != "gotv" {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestProviderChangeClearsVerificationAndPlan(t *testing.T) {
	cat := cableCatalog()
	h := newHarness(t, cat, &stubVerifier{name: "J. DOE"})
	ctx := context.Background()

	view, _ := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceCable})
	id := view.SessionID
	mustSelect(t, h, id, models.FieldProvider, "gotv")
	mustSelect(t, h, id, models.FieldSmartcard, "1234567890")
	if _, err := h.svc.Verify(ctx, testTab, id); err != nil {
		t.Fatalf("verify: %v", err)
	}
	mustSelect(t, h, id, models.FieldPlan, "c1")

	view = mustSelect(t, h, id, models.FieldProvider, "dstv")
	if view.Verification != nil {
		t.Fatal("expected verification cleared on provider change")
	}
	if view.Fields[models.FieldPlan] != "" || view.Fields[models.FieldAmount] != "" {
		t.Fatalf("expected plan cleared, got %+v", view.Fields)
	}
	if view.Fields[models.FieldSmartcard] != "1234567890" {
		t.Fatal("smartcard should survive a provider change")
	}
}

func TestVerificationFailureBlocksSubmission(t *testing.T) {
	ver := &stubVerifier{err: models.NewAppError(models.CodeVerificationFailed, "Invalid smartcard number", nil)}
	h := newHarness(t, cableCatalog(), ver)
	ctx := context.Background()

	view, _ := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceCable})
	id := view.SessionID
	mustSelect(t, h, id, models.FieldProvider, "gotv")
	mustSelect(t, h, id, models.FieldSmartcard, "000")
	mustSelect(t, h, id, models.FieldPlan, "c1")

	view, err := h.svc.Verify(ctx, testTab, id)
	appErr, ok := models.AsAppError(err)
	if !ok || appErr.Code != models.CodeVerificationFailed {
		t.Fatalf("expected verification_failed, got %v", err)
	}
	if appErr.Message != "Invalid smartcard number" {
		t.Fatalf("expected provider message, got %q", appErr.Message)
	}
	if view == nil || view.Verification != nil || view.CanSubmit {
		t.Fatalf("expected unverified view, got %+v", view)
	}
	if view.State == models.StateVerifying {
		t.Fatal("verifying flag should be cleared after failure")
	}
}

func TestElectricityMeterType(t *testing.T) {
	cat := &stubCatalog{operators: []models.Provider{{ID: "ikeja-electric", Name: "Ikeja Electric"}}}
	ver := &stubVerifier{name: "ADA OBI"}
	h := newHarness(t, cat, ver)
	ctx := context.Background()

	view, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceElectricity})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := view.SessionID
	if view.Fields[models.FieldMeterType] != "prepaid" {
		t.Fatalf("expected prepaid default, got %q", view.Fields[models.FieldMeterType])
	}
	mustSelect(t, h, id, models.FieldDisco, "ikeja-electric")
	mustSelect(t, h, id, models.FieldMeter, "45012345678")
	mustSelect(t, h, id, models.FieldAmount, "5000")
	if _, err := h.svc.Verify(ctx, testTab, id); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ver.lastMT != "prepaid" {
		t.Fatalf("expected prepaid sent to verification, got %q", ver.lastMT)
	}

	view = mustSelect(t, h, id, models.FieldMeterType, "postpaid")
	if view.Verification != nil || view.CanSubmit {
		t.Fatal("meter type change must clear verification")
	}
	if _, err := h.svc.Select(ctx, testTab, id, models.FieldMeterType, "smart"); !models.HasCode(err, models.CodeInvalidField) {
		t.Fatalf("expected invalid meter type rejected, got %v", err)
	}

	if _, err := h.svc.Verify(ctx, testTab, id); err != nil {
		t.Fatalf("re-verify: %v", err)
	}
	_, draft, err := h.svc.Submit(ctx, testTab, id)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if draft.MeterType != "postpaid" || draft.CustomerName != "ADA OBI" || draft.Amount != 5000 {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestSubmitNamesMissingField(t *testing.T) {
	h := newHarness(t, mtnCatalog(), nil)
	ctx := context.Background()
	view, _ := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceAirtime})
	id := view.SessionID

	tests := []struct {
		field models.Field
		value string
		want  string
	}{
		{"", "", "network"},
		{models.FieldNetwork, "1", "phone"},
		{models.FieldPhone, "0801234", "phone"},
		{models.FieldPhone, "08012345678", "amount"},
		{models.FieldAmount, "-5", "amount"},
	}
	for _, tt := range tests {
		if tt.field != "" {
			mustSelect(t, h, id, tt.field, tt.value)
		}
		view, _, err := h.svc.Submit(ctx, testTab, id)
		appErr, ok := models.AsAppError(err)
		if !ok || appErr.Code != models.CodeValidationIncomplete {
			t.Fatalf("after %s=%q: expected validation_incomplete, got %v", tt.field, tt.value, err)
		}
		if !strings.Contains(appErr.Message, tt.want) {
			t.Errorf("after %s=%q: message %q should mention %s", tt.field, tt.value, appErr.Message, tt.want)
		}
		if appErr.Notice().Level != models.NoticeWarning {
			t.Errorf("expected warning notice, got %s", appErr.Notice().Level)
		}
		if view == nil || view.State == models.StateSubmitted {
			t.Fatalf("funnel should stay in place, got %+v", view)
		}
	}
	if _, err := h.handoff.Read(ctx, testTab); !errors.Is(err, handoff.ErrAbsent) {
		t.Fatalf("no draft should be written on validation failure, got %v", err)
	}
}

func TestUnknownNetworkRejected(t *testing.T) {
	h := newHarness(t, mtnCatalog(), nil)
	view, _ := h.svc.Start(context.Background(), StartRequest{Tab: testTab, Service: models.ServiceAirtime})
	_, err := h.svc.Select(context.Background(), testTab, view.SessionID, models.FieldNetwork, "99")
	if !models.HasCode(err, models.CodeInvalidField) {
		t.Fatalf("expected invalid_field, got %v", err)
	}
}

func TestStartClearsHandoff(t *testing.T) {
	h := newHarness(t, mtnCatalog(), nil)
	ctx := context.Background()
	draft := models.OrderDraft{Service: models.ServiceAirtime, Recipient: "08012345678", Network: "1", Amount: 500, Label: "Airtime Top-up"}
	if err := h.handoff.Write(ctx, testTab, draft); err != nil {
		t.Fatalf("seed handoff: %v", err)
	}
	if _, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceAirtime}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.handoff.Read(ctx, testTab); !errors.Is(err, handoff.ErrAbsent) {
		t.Fatalf("expected fresh funnel to clear handoff, got %v", err)
	}
}

func TestWizardModeQuotesFlatFee(t *testing.T) {
	h := newHarness(t, mtnCatalog(), nil)
	view, err := h.svc.Start(context.Background(), StartRequest{Tab: testTab, Service: models.ServiceAirtime, Mode: models.ModeWizard})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view = mustSelect(t, h, view.SessionID, models.FieldAmount, "1000")
	if view.Quote.Fee != 40 || view.Quote.Total != 1040 {
		t.Fatalf("unexpected wizard quote %+v", view.Quote)
	}
}

func TestForeignTabCannotReadFunnel(t *testing.T) {
	h := newHarness(t, mtnCatalog(), nil)
	ctx := context.Background()
	view, _ := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceAirtime})

	if _, err := h.svc.Get(ctx, "tab-2", view.SessionID); !models.HasCode(err, models.CodeSessionNotFound) {
		t.Fatalf("expected session_not_found, got %v", err)
	}
	if _, err := h.svc.Select(ctx, "tab-2", view.SessionID, models.FieldNetwork, "1"); !models.HasCode(err, models.CodeSessionNotFound) {
		t.Fatalf("expected session_not_found, got %v", err)
	}
	if err := h.svc.Close(ctx, "tab-2", view.SessionID); !models.HasCode(err, models.CodeSessionNotFound) {
		t.Fatalf("expected session_not_found, got %v", err)
	}
}

func TestCloseDuringInFlightLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	cat := mtnCatalog()
	cat.networksHook = func() {
		close(started)
		<-release
	}
	h := newHarness(t, cat, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceAirtime})
		done <- err
	}()
	<-started

	keys := h.mr.Keys()
	var id string
	for _, k := range keys {
		if strings.HasPrefix(k, sessionPrefix) {
			id = strings.TrimPrefix(k, sessionPrefix)
		}
	}
	if id == "" {
		t.Fatalf("funnel session not stored while loading, keys %v", keys)
	}
	if err := h.svc.Close(ctx, testTab, id); err != nil {
		t.Fatalf("close: %v", err)
	}

	close(release)
	if err := <-done; !models.HasCode(err, models.CodeSessionNotFound) {
		t.Fatalf("expected closed funnel to report session_not_found, got %v", err)
	}
	if h.mr.Exists(sessionKey(id)) {
		t.Fatal("late catalog response recreated a closed funnel")
	}
}

func TestDescriptorDependents(t *testing.T) {
	d, _ := DescriptorFor(models.ServiceData)
	got := d.dependents(models.FieldNetwork)
	if len(got) != 2 || got[0] != models.FieldCategory || got[1] != models.FieldPlan {
		t.Fatalf("unexpected dependents %v", got)
	}
	if got := d.dependents(models.FieldPhone); len(got) != 0 {
		t.Fatalf("phone has no dependents, got %v", got)
	}
}

func TestVerificationDiscardedWhenInputChangesMidCall(t *testing.T) {
	cat := cableCatalog()
	ver := &stubVerifier{name: "J. DOE"}
	h := newHarness(t, cat, ver)
	ctx := context.Background()

	view, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceCable})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := view.SessionID
	mustSelect(t, h, id, models.FieldProvider, "gotv")
	mustSelect(t, h, id, models.FieldSmartcard, "1234567890")
	mustSelect(t, h, id, models.FieldPlan, "c1")

	// The user edits the smartcard while the lookup for the old one is out.
	ver.hook = func() {
		ver.hook = nil
		mustSelect(t, h, id, models.FieldSmartcard, "1234567891")
	}
	view, err = h.svc.Verify(ctx, testTab, id)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if view.Verification != nil {
		t.Fatalf("expected late result for the old smartcard to be dropped, got %+v", view.Verification)
	}
	if view.CanSubmit || view.State == models.StateVerifying {
		t.Fatalf("expected funnel back to collecting details, state %s canSubmit=%v", view.State, view.CanSubmit)
	}
	if view.Fields[models.FieldSmartcard] != "1234567891" {
		t.Fatalf("expected the edited smartcard to stand, got %q", view.Fields[models.FieldSmartcard])
	}
	if _, _, err := h.svc.Submit(ctx, testTab, id); !models.HasCode(err, models.CodeValidationIncomplete) {
		t.Fatalf("expected submit to be refused, got %v", err)
	}
	if _, err := h.handoff.Read(ctx, testTab); !errors.Is(err, handoff.ErrAbsent) {
		t.Fatalf("expected no draft written, got %v", err)
	}
}

func TestReselectRetriesFailedPlanLoad(t *testing.T) {
	cat := mtnCatalog()
	cat.categories = map[string][]string{"1": {"SME"}}
	down := true
	cat.plans = func(q vtu.DataPlanQuery) ([]models.Plan, error) {
		if down {
			return nil, models.NewAppError(models.CodeCatalogUnavailable, "Could not load data plans.", nil)
		}
		return []models.Plan{{ID: "p1", Name: "1GB-30day", Amount: 500}}, nil
	}
	h := newHarness(t, cat, nil)
	ctx := context.Background()

	view, err := h.svc.Start(ctx, StartRequest{Tab: testTab, Service: models.ServiceData})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := view.SessionID

	view = mustSelect(t, h, id, models.FieldNetwork, "1")
	if len(view.Catalogs.Plans) != 0 || view.Loading[models.CatalogPlans] {
		t.Fatalf("expected plans to settle empty, got %+v loading=%v", view.Catalogs.Plans, view.Loading)
	}

	down = false
	view = mustSelect(t, h, id, models.FieldNetwork, "1")
	if len(view.Catalogs.Plans) != 1 {
		t.Fatalf("expected plans to load on reselect, got %+v", view.Catalogs.Plans)
	}
	if len(view.Catalogs.Categories) != 1 {
		t.Fatalf("loaded categories should be kept, got %+v", view.Catalogs.Categories)
	}
}

func TestDescriptorForUnknownService(t *testing.T) {
	if _, ok := DescriptorFor(models.Service("satellite")); ok {
		t.Fatal("expected no descriptor for unknown service")
	}
	for _, s := range []models.Service{models.ServiceAirtime, models.ServiceData, models.ServiceCable, models.ServiceElectricity} {
		d, ok := DescriptorFor(s)
		if !ok {
			t.Fatalf("missing descriptor for %s", s)
		}
		want := s == models.ServiceCable || s == models.ServiceElectricity
		if d.Verification() != want {
			t.Errorf("%s: verification=%v, want %v", s, d.Verification(), want)
		}
	}
}
