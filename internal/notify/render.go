// Package notify renders and sends the system's HTML emails.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

type Message struct {
	To      []string
	Subject string
	HTML    string
}

var subscriptionSubjects = map[string]string{
	"welcome":                "Welcome to HOA Violation Tracker",
	"subscription_cancelled": "Subscription Cancelled - HOA Violation Tracker",
}

type Renderer struct {
	baseURL string
	tmpl    *template.Template
}

func NewRenderer(baseURL string) (*Renderer, error) {
	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"datetime": func(t time.Time) string { return t.UTC().Format("Jan 2, 2006 3:04 PM MST") },
		"date":     func(t time.Time) string { return t.UTC().Format("January 2, 2006") },
		"inc":      func(i int) int { return i + 1 },
		"lines":    func(s string) []string { return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{baseURL: strings.TrimRight(baseURL, "/"), tmpl: tmpl}, nil
}

type viewData struct {
	HOA       *models.HOA
	Violation *models.Violation
	Message   string
	AdminURL  string
}

// ViolationNotification tells the HOA's notification addresses about a new
// report.
func (r *Renderer) ViolationNotification(hoa *models.HOA, v *models.Violation) (Message, error) {
	html, err := r.execute("violation_notification", viewData{HOA: hoa, Violation: v, AdminURL: r.adminURL(hoa)})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      hoa.NotificationEmails(),
		Subject: "New Violation Report - " + v.Type,
		HTML:    html,
	}, nil
}

func (r *Renderer) ResidentNotice(hoa *models.HOA, v *models.Violation, to, subject, message string) (Message, error) {
	html, err := r.execute("resident_notice", viewData{HOA: hoa, Violation: v, Message: message})
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: subject, HTML: html}, nil
}

// Subscription renders one of the account lifecycle emails, sent to the
// HOA's admin address.
func (r *Renderer) Subscription(hoa *models.HOA, kind string) (Message, error) {
	subject, ok := subscriptionSubjects[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown subscription email %q", kind)
	}
	html, err := r.execute(kind, viewData{HOA: hoa, AdminURL: r.adminURL(hoa)})
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{hoa.AdminEmail}, Subject: subject, HTML: html}, nil
}

func (r *Renderer) adminURL(hoa *models.HOA) string {
	return r.baseURL + "/" + hoa.Slug + "/admin"
}

func (r *Renderer) execute(name string, data viewData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
