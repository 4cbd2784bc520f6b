package alerts

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/disasterwatch/internal/models"
)

const (
	defaultEmailAdvice = "Stay safe and follow local guidelines."
	defaultSMSAdvice   = "Stay safe."
)

var emailTemplate = template.Must(template.New("alert").Parse(`<h2>{{.Title}}</h2>
<p>Severity: <strong>{{.Severity}}</strong></p>
{{- if .Magnitude}}
<p>Magnitude: {{.Magnitude}}</p>
{{- end}}
<p>Location: {{.Location}}</p>
<p>Time: {{.Time}}</p>
<p>{{.Advice}}</p>
`))

type emailView struct {
	Title     string
	Severity  string
	Magnitude string
	Location  string
	Time      string
	Advice    string
}

// Compose renders the alert once for every recipient of the event.
func Compose(event *models.DisasterEvent) models.Message {
	subject := "High-risk " + string(event.Type) + " near " + event.Location

	advice := defaultEmailAdvice
	smsAdvice := defaultSMSAdvice
	if event.Description != nil && strings.TrimSpace(*event.Description) != "" {
		advice = strings.TrimSpace(*event.Description)
		smsAdvice = advice
	}

	view := emailView{
		Title:    event.Title,
		Severity: string(event.Severity),
		Location: event.Location,
		Time:     event.Timestamp.UTC().Format(time.RFC1123),
		Advice:   advice,
	}
	if event.Magnitude != nil && *event.Magnitude != 0 {
		view.Magnitude = strconv.FormatFloat(*event.Magnitude, 'f', -1, 64)
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		buf.Reset()
		buf.WriteString("<p>" + template.HTMLEscapeString(event.Title) + "</p>")
	}

	return models.Message{
		Subject: subject,
		HTML:    buf.String(),
		SMS:     subject + ": " + event.Title + ". " + smsAdvice,
	}
}
