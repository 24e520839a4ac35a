package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mrlokans/elibrary/internal/database/audit"
	"github.com/mrlokans/elibrary/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			slog.Error("failed to log audit event", "action", event.Action, "error", err)
		}
	}()
}

// Wait blocks until every event queued with LogAsync has been written.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogBorrow records a borrow attempt. recordID is zero when it failed.
func (s *Service) LogBorrow(userID, bookID, recordID uint, bookTitle string, err error) {
	description := "Borrowed '" + bookTitle + "'"
	if err != nil {
		description = fmt.Sprintf("Borrow of book #%d rejected", bookID)
	}
	s.LogAsync(withError(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventBorrow,
		Action:      "book_borrow",
		Description: description,
		EntityType:  "borrow_record",
		EntityID:    idPtr(recordID),
		Metadata:    metadata(map[string]any{"book_id": bookID}),
	}, err))
}

// LogReturn records a return transition together with the fine charged.
func (s *Service) LogReturn(actorID, recordID uint, bookTitle string, fine float64) {
	event := &entities.AuditEvent{
		UserID:      actorID,
		EventType:   entities.AuditEventReturn,
		Action:      "book_return",
		Description: "Returned '" + bookTitle + "'",
		EntityType:  "borrow_record",
		EntityID:    idPtr(recordID),
		Metadata:    metadata(map[string]any{"fine": fine}),
	}
	s.LogAsync(withError(event, nil))
}

// LogRenew records a renewal.
func (s *Service) LogRenew(userID, recordID uint, newDue time.Time, renewalCount int) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventRenew,
		Action:      "book_renew",
		Description: "Renewed until " + newDue.Format("2006-01-02"),
		EntityType:  "borrow_record",
		EntityID:    idPtr(recordID),
		Metadata:    metadata(map[string]any{"renewal_count": renewalCount}),
	}
	s.LogAsync(withError(event, nil))
}

// LogFinePaid records a fine settlement.
func (s *Service) LogFinePaid(actorID, recordID uint, amount float64) {
	event := &entities.AuditEvent{
		UserID:      actorID,
		EventType:   entities.AuditEventReturn,
		Action:      "fine_paid",
		Description: "Fine settled",
		EntityType:  "borrow_record",
		EntityID:    idPtr(recordID),
		Metadata:    metadata(map[string]any{"amount": amount}),
	}
	s.LogAsync(withError(event, nil))
}

// LogSweep records the outcome of a notification sweep.
func (s *Service) LogSweep(kind, description string, processed, notified int, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventSweep,
		Action:      kind + "_sweep",
		Description: description,
		Metadata:    metadata(map[string]any{"processed": processed, "notified": notified}),
	}
	s.LogAsync(withError(event, err))
}

// LogNotification records a single outgoing notification.
func (s *Service) LogNotification(userID uint, action, description string, err error) {
	s.LogAsync(withError(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventNotification,
		Action:      action,
		Description: description,
	}, err))
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogCatalog records a catalog change made by an admin.
func (s *Service) LogCatalog(userID uint, action string, bookID uint, description string) {
	s.LogAsync(withError(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventCatalog,
		Action:      action,
		Description: description,
		EntityType:  "book",
		EntityID:    idPtr(bookID),
	}, nil))
}

// LogUser records an account change made by the user or an admin.
func (s *Service) LogUser(actorID uint, action string, targetID uint, description string) {
	s.LogAsync(withError(&entities.AuditEvent{
		UserID:      actorID,
		EventType:   entities.AuditEventUser,
		Action:      action,
		Description: description,
		EntityType:  "user",
		EntityID:    idPtr(targetID),
	}, nil))
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(f audit.Filter) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(f)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func withError(event *entities.AuditEvent, err error) *entities.AuditEvent {
	event.Status = entities.AuditStatusSuccess
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	return event
}

func metadata(fields map[string]any) string {
	b, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(b)
}

func idPtr(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
