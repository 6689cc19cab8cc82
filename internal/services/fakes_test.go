package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/entitlement-engine/internal/data/repos"
	"github.com/yungbote/entitlement-engine/internal/data/repos/testutil"
	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/payments"
	"github.com/yungbote/entitlement-engine/internal/platform/gcp"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type testEnv struct {
	ctx          context.Context
	db           *gorm.DB
	log          *logger.Logger
	users        repos.UserRepo
	profiles     repos.ProfileRepo
	ledger       repos.LedgerRepo
	projects     repos.ProjectRepo
	notes        repos.NotificationRepo
	courses      repos.CourseRepo
	lessons      repos.LessonRepo
	questions    repos.QuestionRepo
	progress     repos.LessonProgressRepo
	attempts     repos.QuizAttemptRepo
	certificates repos.CertificateRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return &testEnv{
		ctx:          context.Background(),
		db:           db,
		log:          log,
		users:        repos.NewUserRepo(db, log),
		profiles:     repos.NewProfileRepo(db, log),
		ledger:       repos.NewLedgerRepo(db, log),
		projects:     repos.NewProjectRepo(db, log),
		notes:        repos.NewNotificationRepo(db, log),
		courses:      repos.NewCourseRepo(db, log),
		lessons:      repos.NewLessonRepo(db, log),
		questions:    repos.NewQuestionRepo(db, log),
		progress:     repos.NewLessonProgressRepo(db, log),
		attempts:     repos.NewQuizAttemptRepo(db, log),
		certificates: repos.NewCertificateRepo(db, log),
	}
}

func (e *testEnv) progressService() ProgressService {
	return e.progressServiceAt(time.Now())
}

// progressServiceAt evaluates course gates at now.
func (e *testEnv) progressServiceAt(now time.Time) ProgressService {
	return NewProgressService(e.log, e.courses, e.lessons, e.progress, newTestAccess(e, now))
}

func (e *testEnv) progressRow(t *testing.T, userID, lessonID uuid.UUID) *types.LessonProgress {
	t.Helper()
	rows, err := e.progress.ListByUserLessons(e.ctx, nil, userID, []uuid.UUID{lessonID})
	if err != nil {
		t.Fatalf("ListByUserLessons: %v", err)
	}
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// memBucket is an in-memory gcp.BucketService.
type memBucket struct {
	mu        sync.Mutex
	objects   map[string][]byte
	existsErr error
	deleted   []string
}

func newMemBucket() *memBucket { return &memBucket{objects: map[string][]byte{}} }

func (b *memBucket) key(cat gcp.BucketCategory, key string) string { return string(cat) + "/" + key }

func (b *memBucket) Upload(_ context.Context, cat gcp.BucketCategory, key, _ string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[b.key(cat, key)] = append([]byte(nil), data...)
	return nil
}

func (b *memBucket) Download(_ context.Context, cat gcp.BucketCategory, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[b.key(cat, key)]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (b *memBucket) Exists(_ context.Context, cat gcp.BucketCategory, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.existsErr != nil {
		return false, b.existsErr
	}
	_, ok := b.objects[b.key(cat, key)]
	return ok, nil
}

func (b *memBucket) Delete(_ context.Context, cat gcp.BucketCategory, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, b.key(cat, key))
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *memBucket) SignedURL(cat gcp.BucketCategory, key string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + b.key(cat, key) + "?ttl=" + ttl.String(), nil
}

type fakeReceipts struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeReceipts) Synthesize(_ context.Context, row *types.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "receipts/test/" + row.ID.String() + ".json", nil
}

func (f *fakeReceipts) GetReceipt(context.Context, uuid.UUID, uuid.UUID) (*ReceiptData, error) {
	return nil, errors.New("not implemented")
}

type fakeNotifier struct {
	mu   sync.Mutex
	rows []*types.Transaction
}

func (f *fakeNotifier) NotifyPayment(_ context.Context, row *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type memReplay struct {
	mu   sync.Mutex
	seen map[string]string
}

func newMemReplay() *memReplay { return &memReplay{seen: map[string]string{}} }

func (r *memReplay) Seen(_ context.Context, provider, ref string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.seen[provider+":"+ref]
	return v, ok, nil
}

func (r *memReplay) Remember(_ context.Context, provider, ref, receiptRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[provider+":"+ref] = receiptRef
	return nil
}

type fakeGateway struct {
	provider string
	last     payments.CheckoutRequest
	calls    int
}

func (g *fakeGateway) Provider() string { return g.provider }

func (g *fakeGateway) CreateCheckout(_ context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	g.calls++
	g.last = req
	return payments.CheckoutSession{
		Provider:    g.provider,
		Reference:   req.Reference,
		CheckoutURL: "https://pay.example/" + req.Reference,
	}, nil
}

type fakeGateways map[string]payments.CheckoutGateway

func (f fakeGateways) Gateway(provider string) (payments.CheckoutGateway, error) {
	g, ok := f[provider]
	if !ok {
		return nil, errors.New("unknown provider")
	}
	return g, nil
}
