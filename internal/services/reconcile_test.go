package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/data/repos/testutil"
	"github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
	"github.com/yungbote/entitlement-engine/internal/payments"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
)

var reconcileNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestReconciler(e *testEnv, receipts ReceiptService, notifier PaymentNotifier, replay ReplayCache) *reconcileService {
	svc := NewReconcileService(e.db, e.log, e.ledger, e.projects, e.profiles, receipts, notifier, replay).(*reconcileService)
	svc.now = func() time.Time { return reconcileNow }
	return svc
}

func formationEvent(userID uuid.UUID, ref string, pack user.Pack) payments.Event {
	return payments.Event{
		Provider:    "stripe",
		ProviderRef: ref,
		UserID:      userID,
		Amount:      4900,
		Currency:    "EUR",
		Target:      payments.FormationTarget{Pack: pack},
	}
}

func sameInstant(a, b time.Time) bool {
	d := a.Sub(b)
	return d > -time.Second && d < time.Second
}

func TestReconcileFormationIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "student@example.com", user.RoleStudent)
	bucket := newMemBucket()
	receipts := NewReceiptService(e.log, e.ledger, e.users, e.profiles, e.projects, bucket, ReceiptIssuer{Name: "Academy"})
	notifier := &fakeNotifier{}
	svc := newTestReconciler(e, receipts, notifier, nil)

	ev := formationEvent(student.ID, "cs_test_1", user.PackExpert)
	first, err := svc.Reconcile(e.ctx, ev)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if first.Status != ReconcileProcessed {
		t.Fatalf("status: want=%s got=%s", ReconcileProcessed, first.Status)
	}
	if first.ReceiptRef == "" {
		t.Fatalf("expected synthesized receipt ref")
	}

	second, err := svc.Reconcile(e.ctx, ev)
	if err != nil {
		t.Fatalf("Reconcile replay: %v", err)
	}
	if !second.Duplicate() {
		t.Fatalf("replay status: want duplicate got=%s", second.Status)
	}
	if second.TransactionID != first.TransactionID {
		t.Fatalf("replay transaction: want=%s got=%s", first.TransactionID, second.TransactionID)
	}

	rows, err := e.ledger.ListByUser(e.ctx, nil, student.ID, 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("ledger rows: want=1 got=%d", len(rows))
	}
	if rows[0].ReceiptRef != first.ReceiptRef {
		t.Fatalf("receipt ref not backfilled: want=%q got=%q", first.ReceiptRef, rows[0].ReceiptRef)
	}

	profile, err := e.profiles.GetByID(e.ctx, nil, student.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if profile.Pack != user.PackExpert {
		t.Fatalf("pack: want=%s got=%s", user.PackExpert, profile.Pack)
	}
	wantEnd := reconcileNow.AddDate(0, 27, 0)
	if profile.SubscriptionEnd == nil || !sameInstant(*profile.SubscriptionEnd, wantEnd) {
		t.Fatalf("subscription_end: want=%s got=%v", wantEnd, profile.SubscriptionEnd)
	}
	if profile.SubscriptionStart == nil || !sameInstant(*profile.SubscriptionStart, reconcileNow) {
		t.Fatalf("subscription_start: want=%s got=%v", reconcileNow, profile.SubscriptionStart)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications: want=1 got=%d", notifier.count())
	}
	if len(bucket.objects) != 1 {
		t.Fatalf("receipt documents: want=1 got=%d", len(bucket.objects))
	}
}

func TestReconcileExtendsOnTopOfLaterEnd(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "long@example.com", user.RoleStudent)
	start := reconcileNow.AddDate(0, -2, 0)
	end := reconcileNow.AddDate(0, 30, 0)
	testutil.SeedSubscription(t, e.ctx, e.db, student.ID, user.PackMaster, start, end)

	svc := newTestReconciler(e, nil, nil, nil)
	if _, err := svc.Reconcile(e.ctx, formationEvent(student.ID, "cs_test_2", user.PackEssentiel)); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	profile, err := e.profiles.GetByID(e.ctx, nil, student.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if wantEnd := end.AddDate(0, 9, 0); !sameInstant(*profile.SubscriptionEnd, wantEnd) {
		t.Fatalf("subscription_end: want=%s got=%s", wantEnd, *profile.SubscriptionEnd)
	}
	if !sameInstant(*profile.SubscriptionStart, start) {
		t.Fatalf("active subscription start moved: want=%s got=%s", start, *profile.SubscriptionStart)
	}
	if profile.Pack != user.PackMaster {
		t.Fatalf("pack downgraded: got=%s", profile.Pack)
	}
}

func TestReconcileMissionOpensProject(t *testing.T) {
	e := newTestEnv(t)
	client := testutil.SeedUser(t, e.ctx, e.db, "client@example.com", user.RoleClient)
	project := testutil.SeedProject(t, e.ctx, e.db, client.ID, billing.ProjectPendingApproval, 150000)
	notifier := &fakeNotifier{}
	svc := newTestReconciler(e, nil, notifier, nil)

	ev := payments.Event{
		Provider:    "cinetpay",
		ProviderRef: "CP-1",
		UserID:      client.ID,
		Amount:      150000,
		Currency:    "XOF",
		Target:      payments.MissionTarget{ProjectID: project.ID},
		ReceiptRef:  "https://provider.example/receipt/CP-1",
	}
	res, err := svc.Reconcile(e.ctx, ev)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.ReceiptRef != ev.ReceiptRef {
		t.Fatalf("provider receipt ref: want=%q got=%q", ev.ReceiptRef, res.ReceiptRef)
	}

	got, err := e.projects.GetByID(e.ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != billing.ProjectOpen || got.PaymentStatus != billing.PaymentPaid {
		t.Fatalf("project: want open/paid got %s/%s", got.Status, got.PaymentStatus)
	}

	if _, err := svc.Reconcile(e.ctx, ev); err != nil {
		t.Fatalf("Reconcile replay: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications: want=1 got=%d", notifier.count())
	}
}

func TestReconcileMissionKeepsAdvancedStatus(t *testing.T) {
	e := newTestEnv(t)
	client := testutil.SeedUser(t, e.ctx, e.db, "client2@example.com", user.RoleClient)
	project := testutil.SeedProject(t, e.ctx, e.db, client.ID, billing.ProjectInProgress, 1000)
	svc := newTestReconciler(e, nil, nil, nil)

	ev := payments.Event{Provider: "flutterwave", ProviderRef: "FLW-9", UserID: client.ID, Amount: 1000, Currency: "XOF", Target: payments.MissionTarget{ProjectID: project.ID}}
	if _, err := svc.Reconcile(e.ctx, ev); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	got, _ := e.projects.GetByID(e.ctx, nil, project.ID)
	if got.Status != billing.ProjectInProgress || got.PaymentStatus != billing.PaymentPaid {
		t.Fatalf("project: want in_progress/paid got %s/%s", got.Status, got.PaymentStatus)
	}
}

func TestReconcileRollsBackWhenProjectMissing(t *testing.T) {
	e := newTestEnv(t)
	client := testutil.SeedUser(t, e.ctx, e.db, "ghost@example.com", user.RoleClient)
	svc := newTestReconciler(e, nil, nil, nil)

	ev := payments.Event{Provider: "stripe", ProviderRef: "cs_missing", UserID: client.ID, Amount: 1, Currency: "EUR", Target: payments.MissionTarget{ProjectID: uuid.New()}}
	_, err := svc.Reconcile(e.ctx, ev)
	if !errors.Is(err, domainerrs.ErrUnknownTargetSchema) {
		t.Fatalf("Reconcile: want ErrUnknownTargetSchema got %v", err)
	}
	if errors.Is(err, domainerrs.ErrNotFound) {
		t.Fatalf("a missing project must not surface as not found: %v", err)
	}
	row, err := e.ledger.GetByProviderRef(e.ctx, nil, "stripe", "cs_missing")
	if err != nil {
		t.Fatalf("GetByProviderRef: %v", err)
	}
	if row != nil {
		t.Fatalf("ledger row survived a failed effect")
	}
}

func TestReconcileFormationForMissingProfile(t *testing.T) {
	e := newTestEnv(t)
	svc := newTestReconciler(e, nil, nil, nil)

	_, err := svc.Reconcile(e.ctx, formationEvent(uuid.New(), "cs_noprofile", user.PackExpert))
	if !errors.Is(err, domainerrs.ErrUnknownTargetSchema) {
		t.Fatalf("Reconcile: want ErrUnknownTargetSchema got %v", err)
	}
	if row, _ := e.ledger.GetByProviderRef(e.ctx, nil, "stripe", "cs_noprofile"); row != nil {
		t.Fatalf("ledger row survived a failed effect")
	}
}

func TestReconcileRejectsUnknownTarget(t *testing.T) {
	e := newTestEnv(t)
	svc := newTestReconciler(e, nil, nil, nil)
	_, err := svc.Reconcile(e.ctx, payments.Event{Provider: "stripe", ProviderRef: "cs_x", UserID: uuid.New()})
	if !errors.Is(err, domainerrs.ErrUnknownTargetSchema) {
		t.Fatalf("Reconcile: want ErrUnknownTargetSchema got %v", err)
	}
}

func TestReconcileReplayCacheShortCircuits(t *testing.T) {
	e := newTestEnv(t)
	replay := newMemReplay()
	_ = replay.Remember(e.ctx, "stripe", "cs_cached", "receipts/2026/x.json")
	notifier := &fakeNotifier{}
	svc := newTestReconciler(e, nil, notifier, replay)

	// The user does not exist; a cache hit must never reach the database.
	res, err := svc.Reconcile(e.ctx, formationEvent(uuid.New(), "cs_cached", user.PackExpert))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Duplicate() || res.ReceiptRef != "receipts/2026/x.json" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if notifier.count() != 0 {
		t.Fatalf("notifications sent for a replay")
	}
}

func TestReconcileRemembersProcessedEvents(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "cache@example.com", user.RoleStudent)
	replay := newMemReplay()
	svc := newTestReconciler(e, nil, nil, replay)

	if _, err := svc.Reconcile(e.ctx, formationEvent(student.ID, "cs_remember", user.PackEssentiel)); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if _, ok, _ := replay.Seen(e.ctx, "stripe", "cs_remember"); !ok {
		t.Fatalf("processed event not remembered")
	}
}

func TestReconcileConcurrentDeliveriesInsertOnce(t *testing.T) {
	if os.Getenv("TEST_POSTGRES_DSN") != "" {
		t.Skip("shared postgres test transaction cannot serve concurrent callers")
	}
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "race@example.com", user.RoleStudent)
	notifier := &fakeNotifier{}
	svc := newTestReconciler(e, nil, notifier, nil)
	ev := formationEvent(student.ID, "cs_race", user.PackEssentiel)

	var wg sync.WaitGroup
	results := make([]*ReconcileResult, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Reconcile(context.Background(), ev)
		}(i)
	}
	wg.Wait()

	processed := 0
	for i, err := range errs {
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if results[i].Status == ReconcileProcessed {
			processed++
		}
	}
	if processed != 1 {
		t.Fatalf("processed deliveries: want=1 got=%d", processed)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications: want=1 got=%d", notifier.count())
	}
	profile, _ := e.profiles.GetByID(e.ctx, nil, student.ID)
	if want := reconcileNow.AddDate(0, 9, 0); !sameInstant(*profile.SubscriptionEnd, want) {
		t.Fatalf("subscription extended more than once: got=%s", *profile.SubscriptionEnd)
	}
}

func TestReconcileSurvivesReceiptFailure(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "noreceipt@example.com", user.RoleStudent)
	receipts := &fakeReceipts{err: errors.New("bucket down")}
	svc := newTestReconciler(e, receipts, nil, nil)

	res, err := svc.Reconcile(e.ctx, formationEvent(student.ID, "cs_receipt_down", user.PackEssentiel))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Status != ReconcileProcessed || res.ReceiptRef != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if receipts.calls != 1 {
		t.Fatalf("receipt synthesis calls: want=1 got=%d", receipts.calls)
	}
}
