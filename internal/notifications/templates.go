package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

type Kind string

const (
	KindDueReminder Kind = "due_reminder"
	KindOverdue     Kind = "overdue"
	KindReturned    Kind = "returned"
	KindWelcome     Kind = "welcome"
	KindTest        Kind = "test"
)

// Data feeds every email template. Each template reads only the fields it needs.
type Data struct {
	Name        string
	FrontendURL string

	BookTitle    string
	BookAuthor   string
	DueDate      time.Time
	ReturnDate   time.Time
	DaysUntilDue int
	OverdueDays  int
	Fine         float64

	MaxLoans int
	LoanDays int
	SentAt   time.Time
}

type style struct {
	heading    string
	accent     string
	background string
}

var styles = map[Kind]style{
	KindDueReminder: {"E-Library Reminder", "#007bff", "#f8f9fa"},
	KindOverdue:     {"Overdue Book Notice", "#dc3545", "#fff3cd"},
	KindReturned:    {"Book Successfully Returned", "#28a745", "#d4edda"},
	KindWelcome:     {"Welcome to E-Library!", "#007bff", "#f8f9fa"},
	KindTest:        {"E-Library Test Email", "#6c757d", "#f8f9fa"},
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("January 2, 2006")
	},
	"money": func(v float64) string {
		return fmt.Sprintf("$%.2f", v)
	},
	"days": func(n int) string {
		switch {
		case n <= 0:
			return "today"
		case n == 1:
			return "tomorrow"
		}
		return fmt.Sprintf("in %d days", n)
	},
}

// Renderer turns Data into subject and HTML body for each Kind.
type Renderer struct {
	templates map[Kind]*template.Template
}

func NewRenderer() (*Renderer, error) {
	base, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse email layout: %w", err)
	}

	r := &Renderer{templates: make(map[Kind]*template.Template, len(styles))}
	for kind := range styles {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		t, err := clone.ParseFS(templateFS, "templates/"+string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s email template: %w", kind, err)
		}
		r.templates[kind] = t
	}
	return r, nil
}

// Render produces the subject and HTML body of a message.
func (r *Renderer) Render(kind Kind, data Data) (subject, body string, err error) {
	t, ok := r.templates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown email kind %q", kind)
	}
	st := styles[kind]

	view := struct {
		Data
		Heading    string
		Accent     string
		Background string
	}{data, st.heading, st.accent, st.background}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", view); err != nil {
		return "", "", fmt.Errorf("render %s email: %w", kind, err)
	}
	return Subject(kind, data), buf.String(), nil
}

func Subject(kind Kind, data Data) string {
	switch kind {
	case KindDueReminder:
		return fmt.Sprintf("Reminder: %q is due soon", data.BookTitle)
	case KindOverdue:
		return fmt.Sprintf("Overdue: %q - please return immediately", data.BookTitle)
	case KindReturned:
		return fmt.Sprintf("Book Returned: %q", data.BookTitle)
	case KindWelcome:
		return "Welcome to the E-Library Management System!"
	case KindTest:
		return "E-Library test email"
	}
	return "E-Library notification"
}
