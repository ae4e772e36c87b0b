package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/illegalcall/thumbdesk/internal/models"
)

var (
	adminTemplate = template.Must(template.New("admin").Parse(`<h2>New thumbnail request</h2>
<p><strong>Title:</strong> {{.Title}}</p>
<p><strong>Submitted by:</strong> {{.Submitter}}</p>
{{if .Description}}<p><strong>Description:</strong> {{.Description}}</p>{{end}}
{{if .ReferenceURLs}}<p><strong>References:</strong></p>
<ul>{{range .ReferenceURLs}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>{{end}}
<p><strong>Request ID:</strong> {{.RequestID}}</p>
<p><strong>Submitted at:</strong> {{.SubmittedAt}}</p>
`))

	completedTemplate = template.Must(template.New("completed").Parse(`<h2>Your thumbnail is ready</h2>
<p>The thumbnail for <strong>{{.Title}}</strong> has been completed.</p>
<p><a href="{{.ResultURL}}">Download your thumbnail</a></p>
<p>Request ID: {{.RequestID}}</p>
`))
)

type adminView struct {
	Title         string
	Submitter     string
	Description   string
	ReferenceURLs []string
	RequestID     string
	SubmittedAt   string
}

func submitter(ev models.RequestEvent) string {
	if ev.UserEmail != "" {
		return ev.UserEmail
	}
	return ev.UserID
}

// AdminEmail renders the message sent to the admin when a request arrives.
func AdminEmail(to string, ev models.RequestEvent) (models.Email, error) {
	var body bytes.Buffer
	err := adminTemplate.Execute(&body, adminView{
		Title:         ev.Title,
		Submitter:     submitter(ev),
		Description:   ev.Description,
		ReferenceURLs: ev.ReferenceURLs,
		RequestID:     ev.RequestID,
		SubmittedAt:   ev.OccurredAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return models.Email{}, fmt.Errorf("render admin email: %w", err)
	}
	return models.Email{
		To:      []string{to},
		Subject: "New thumbnail request: " + ev.Title,
		HTML:    body.String(),
	}, nil
}

// CompletedEmail renders the message telling a requester the result is ready.
func CompletedEmail(ev models.RequestEvent) (models.Email, error) {
	var body bytes.Buffer
	if err := completedTemplate.Execute(&body, ev); err != nil {
		return models.Email{}, fmt.Errorf("render completed email: %w", err)
	}
	return models.Email{
		To:      []string{ev.UserEmail},
		Subject: "Your thumbnail is ready: " + ev.Title,
		HTML:    body.String(),
	}, nil
}

// WhatsAppLink builds a wa.me deep link that opens a chat with phone
// prefilled with a summary of the request. It returns "" for an empty phone.
func WhatsAppLink(phone string, ev models.RequestEvent) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return ""
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "New thumbnail request\nTitle: %s\nFrom: %s\n", ev.Title, submitter(ev))
	if ev.Description != "" {
		fmt.Fprintf(&msg, "Description: %s\n", ev.Description)
	}
	if len(ev.ReferenceURLs) > 0 {
		fmt.Fprintf(&msg, "References: %s\n", strings.Join(ev.ReferenceURLs, ", "))
	}
	fmt.Fprintf(&msg, "Request ID: %s", ev.RequestID)

	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(msg.String())
}
