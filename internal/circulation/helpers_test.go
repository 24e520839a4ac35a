package circulation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/database"
	"github.com/mrlokans/elibrary/internal/entities"
)

type sentNotice struct {
	kind     string
	recordID uint
	days     int
	fine     float64
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentNotice
	failOn map[uint]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failOn: map[uint]bool{}}
}

func (n *fakeNotifier) record(kind string, rec *entities.BorrowRecord, days int, fine float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[rec.ID] {
		return errors.New("queue unavailable")
	}
	n.sent = append(n.sent, sentNotice{kind: kind, recordID: rec.ID, days: days, fine: fine})
	return nil
}

func (n *fakeNotifier) DueReminder(_ context.Context, rec *entities.BorrowRecord, days int) error {
	return n.record("due_reminder", rec, days, 0)
}

func (n *fakeNotifier) OverdueNotice(_ context.Context, rec *entities.BorrowRecord, days int, fine float64) error {
	return n.record("overdue", rec, days, fine)
}

func (n *fakeNotifier) ReturnConfirmation(_ context.Context, rec *entities.BorrowRecord) error {
	return n.record("returned", rec, 0, rec.Fine.Amount)
}

func (n *fakeNotifier) notices(kind string) []sentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotice
	for _, s := range n.sent {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type fakeAuditor struct {
	mu      sync.Mutex
	borrows []error
	returns int
	renews  int
	paid    int
	sweeps  []string
}

func (a *fakeAuditor) LogBorrow(_, _, _ uint, _ string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.borrows = append(a.borrows, err)
}

func (a *fakeAuditor) LogReturn(uint, uint, string, float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.returns++
}

func (a *fakeAuditor) LogRenew(uint, uint, time.Time, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.renews++
}

func (a *fakeAuditor) LogFinePaid(uint, uint, float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paid++
}

func (a *fakeAuditor) LogSweep(kind, _ string, _, _ int, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sweeps = append(a.sweeps, kind)
}

var isbnSeq atomic.Int64

type testEnv struct {
	db       *gorm.DB
	notifier *fakeNotifier
	auditor  *fakeAuditor
	admin    *entities.User
	reader   *entities.User
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "circulation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db.DB, notifier: newFakeNotifier(), auditor: &fakeAuditor{}}
	env.admin = env.createUser(t, "Librarian", "admin@example.com", entities.RoleAdmin)
	env.reader = env.createUser(t, "Reader", "reader@example.com", entities.RoleUser)
	return env
}

func (e *testEnv) service(opts ...Option) *Service {
	opts = append([]Option{WithAuditor(e.auditor)}, opts...)
	return NewService(e.db, DefaultPolicy(), e.notifier, opts...)
}

func (e *testEnv) createUser(t *testing.T, name, email string, role entities.Role) *entities.User {
	t.Helper()
	user := &entities.User{Name: name, Email: email, Role: role, IsActive: true}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createBook(t *testing.T, title string, copies int) *entities.Book {
	t.Helper()
	book := &entities.Book{
		Title:           title,
		Author:          "Author",
		ISBN:            fmt.Sprintf("978%010d", isbnSeq.Add(1)),
		Category:        entities.CategoryFiction,
		TotalCopies:     copies,
		AvailableCopies: copies,
		IsActive:        true,
	}
	require.NoError(t, e.db.Create(book).Error)
	return book
}

// insertLoan writes a record straight to the ledger and takes a copy off the shelf.
func (e *testEnv) insertLoan(t *testing.T, user *entities.User, book *entities.Book, due time.Time) *entities.BorrowRecord {
	t.Helper()
	record := &entities.BorrowRecord{
		UserID:     user.ID,
		BookID:     book.ID,
		BorrowDate: due.Add(-14 * Day),
		DueDate:    due.UTC(),
		Status:     entities.BorrowStatusBorrowed,
	}
	require.NoError(t, e.db.Omit("Book", "User").Create(record).Error)
	require.NoError(t, e.db.Model(&entities.Book{}).Where("id = ?", book.ID).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1")).Error)
	return record
}

// forceBorrowed resets a record to borrowed, bypassing the overdue flip on save.
func (e *testEnv) forceBorrowed(t *testing.T, id uint) {
	t.Helper()
	require.NoError(t, e.db.Model(&entities.BorrowRecord{}).Where("id = ?", id).
		UpdateColumn("status", entities.BorrowStatusBorrowed).Error)
}

func (e *testEnv) reloadBook(t *testing.T, id uint) *entities.Book {
	t.Helper()
	var book entities.Book
	require.NoError(t, e.db.First(&book, id).Error)
	return &book
}

func (e *testEnv) reloadRecord(t *testing.T, id uint) *entities.BorrowRecord {
	t.Helper()
	var record entities.BorrowRecord
	require.NoError(t, e.db.First(&record, id).Error)
	return &record
}

func actorOf(u *entities.User) entities.Actor {
	return entities.Actor{UserID: u.ID, Role: u.Role}
}
