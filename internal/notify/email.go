package notify

import (
	"context"
	"net/http"
	"time"
)

// ResendProvider sends email through the Resend HTTP API.
type ResendProvider struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewResendProvider(apiKey, from string, timeout time.Duration) *ResendProvider {
	return &ResendProvider{
		apiKey:     apiKey,
		from:       from,
		baseURL:    "https://api.resend.com",
		httpClient: newHTTPClient(timeout),
	}
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) IsConfigured() bool { return p.apiKey != "" }

func (p *ResendProvider) Send(ctx context.Context, to, subject, html string) error {
	payload := resendEmail{
		From:    p.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	}
	return postJSON(ctx, p.httpClient, p.baseURL+"/emails", p.apiKey, payload)
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendGridProvider sends email through the SendGrid v3 mail API.
type SendGridProvider struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewSendGridProvider(apiKey, from string, timeout time.Duration) *SendGridProvider {
	return &SendGridProvider{
		apiKey:     apiKey,
		from:       from,
		baseURL:    "https://api.sendgrid.com",
		httpClient: newHTTPClient(timeout),
	}
}

func (p *SendGridProvider) Name() string { return "sendgrid" }

func (p *SendGridProvider) IsConfigured() bool { return p.apiKey != "" }

func (p *SendGridProvider) Send(ctx context.Context, to, subject, html string) error {
	payload := sendGridMail{
		Personalizations: []sendGridPersonalization{
			{To: []sendGridAddress{{Email: to}}},
		},
		From:    sendGridAddress{Email: p.from},
		Subject: subject,
		Content: []sendGridContent{{Type: "text/html", Value: html}},
	}
	return postJSON(ctx, p.httpClient, p.baseURL+"/v3/mail/send", p.apiKey, payload)
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
