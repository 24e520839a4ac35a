package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrlokans/elibrary/internal/entities"
	"github.com/mrlokans/elibrary/internal/notifications"
)

var errNoBorrower = errors.New("borrow record has no borrower loaded")

// Notifier turns circulation events into queued emails.
type Notifier struct {
	queue       Enqueuer
	frontendURL string
	maxLoans    int
	loanDays    int
}

func NewNotifier(queue Enqueuer, frontendURL string, maxLoans, loanDays int) *Notifier {
	return &Notifier{queue: queue, frontendURL: frontendURL, maxLoans: maxLoans, loanDays: loanDays}
}

func (n *Notifier) DueReminder(ctx context.Context, record *entities.BorrowRecord, daysUntilDue int) error {
	task, err := n.loanEmail(notifications.KindDueReminder, record)
	if err != nil {
		return err
	}
	task.Data.DaysUntilDue = daysUntilDue
	return n.queue.Enqueue(ctx, task)
}

func (n *Notifier) OverdueNotice(ctx context.Context, record *entities.BorrowRecord, overdueDays int, fine float64) error {
	task, err := n.loanEmail(notifications.KindOverdue, record)
	if err != nil {
		return err
	}
	task.Data.OverdueDays = overdueDays
	task.Data.Fine = fine
	return n.queue.Enqueue(ctx, task)
}

func (n *Notifier) ReturnConfirmation(ctx context.Context, record *entities.BorrowRecord) error {
	task, err := n.loanEmail(notifications.KindReturned, record)
	if err != nil {
		return err
	}
	task.Data.Fine = record.Fine.Amount
	if record.ReturnDate != nil {
		task.Data.ReturnDate = *record.ReturnDate
	}
	return n.queue.Enqueue(ctx, task)
}

func (n *Notifier) Welcome(ctx context.Context, user *entities.User) error {
	return n.queue.Enqueue(ctx, SendEmailTask{
		Kind:   notifications.KindWelcome,
		To:     user.Email,
		UserID: user.ID,
		Data: notifications.Data{
			Name:        user.Name,
			FrontendURL: n.frontendURL,
			MaxLoans:    n.maxLoans,
			LoanDays:    n.loanDays,
		},
	})
}

// Test queues a delivery check message to the given address.
func (n *Notifier) Test(ctx context.Context, to, name string) error {
	return n.queue.Enqueue(ctx, SendEmailTask{
		Kind: notifications.KindTest,
		To:   to,
		Data: notifications.Data{Name: name, FrontendURL: n.frontendURL, SentAt: time.Now()},
	})
}

// Sample queues an example of the given kind filled with a placeholder loan,
// so admins can preview every template against a real mailbox.
func (n *Notifier) Sample(ctx context.Context, kind notifications.Kind, to, name string) error {
	now := time.Now()
	data := notifications.Data{
		Name:        name,
		FrontendURL: n.frontendURL,
		BookTitle:   "The Great Gatsby",
		BookAuthor:  "F. Scott Fitzgerald",
		MaxLoans:    n.maxLoans,
		LoanDays:    n.loanDays,
		SentAt:      now,
	}
	switch kind {
	case notifications.KindDueReminder:
		data.DueDate = now.AddDate(0, 0, 3)
		data.DaysUntilDue = 3
	case notifications.KindOverdue:
		data.DueDate = now.AddDate(0, 0, -5)
		data.OverdueDays = 5
		data.Fine = 25
	case notifications.KindReturned:
		data.DueDate = now.AddDate(0, 0, -2)
		data.ReturnDate = now
		data.Fine = 10
	case notifications.KindWelcome, notifications.KindTest:
	default:
		return fmt.Errorf("unknown email kind %q", kind)
	}
	return n.queue.Enqueue(ctx, SendEmailTask{Kind: kind, To: to, Data: data})
}

func (n *Notifier) loanEmail(kind notifications.Kind, record *entities.BorrowRecord) (SendEmailTask, error) {
	if record.User == nil {
		return SendEmailTask{}, errNoBorrower
	}
	data := notifications.Data{
		Name:        record.User.Name,
		FrontendURL: n.frontendURL,
		DueDate:     record.DueDate,
	}
	if record.Book != nil {
		data.BookTitle = record.Book.Title
		data.BookAuthor = record.Book.Author
	}
	return SendEmailTask{Kind: kind, To: record.User.Email, UserID: record.UserID, Data: data}, nil
}
