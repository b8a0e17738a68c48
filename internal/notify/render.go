package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message готовое к отправке уведомление
type Message struct {
	Subject string
	HTML    string
	// Telegram текст в HTML-разметке Telegram
	Telegram string
}

// Renderer собирает письма и сообщения в часовом поясе бизнеса
type Renderer struct {
	templates   *template.Template
	location    *time.Location
	companyName string
	siteURL     string
}

func NewRenderer(location *time.Location, companyName, siteURL string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	if location == nil {
		location = time.UTC
	}
	return &Renderer{
		templates:   tmpl,
		location:    location,
		companyName: companyName,
		siteURL:     siteURL,
	}, nil
}

type emailData struct {
	CustomerName   string
	ServiceName    string
	TechnicianName string
	StartTime      string
	CompanyName    string
	SiteURL        string
	Year           int
}

func (r *Renderer) Render(customer *model.User, change StatusChange) (*Message, error) {
	data := emailData{
		CustomerName:   customer.Name,
		ServiceName:    change.ServiceName,
		TechnicianName: change.TechnicianName,
		StartTime:      FormatDateTime(change.StartTime.In(r.location)),
		CompanyName:    r.companyName,
		SiteURL:        r.siteURL,
		Year:           time.Now().In(r.location).Year(),
	}

	name := "canceled.html"
	if change.Status == model.AppointmentStatusConfirmed {
		name = "approved.html"
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}

	return &Message{
		Subject:  Subject(change.Status),
		HTML:     buf.String(),
		Telegram: r.telegramText(data, change.Status),
	}, nil
}

func (r *Renderer) telegramText(data emailData, status model.AppointmentStatus) string {
	display := GetStatusDisplay(status)

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", display.Emoji, html.EscapeString(Subject(status)))
	if data.ServiceName != "" {
		fmt.Fprintf(&b, "Service: %s\n", html.EscapeString(data.ServiceName))
	}
	fmt.Fprintf(&b, "Time: %s\n", data.StartTime)
	if data.TechnicianName != "" {
		fmt.Fprintf(&b, "Technician: %s\n", html.EscapeString(data.TechnicianName))
	}
	fmt.Fprintf(&b, "Status: %s", display.Text)
	return b.String()
}
