package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioProvider sends SMS through the Twilio Messages API. It needs the
// account SID, auth token and a sender number; any one missing disables it.
type TwilioProvider struct {
	sid   string
	token string
	from  string
	api   messageCreator
}

func NewTwilioProvider(sid, token, from string, timeout time.Duration) *TwilioProvider {
	p := &TwilioProvider{
		sid:   sid,
		token: token,
		from:  from,
	}
	if p.IsConfigured() {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: sid,
			Password: token,
		})
		client.SetTimeout(timeout)
		p.api = client.Api
	}
	return p
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) IsConfigured() bool {
	return p.sid != "" && p.token != "" && p.from != ""
}

// Send checks ctx before the call; the Twilio client itself is bounded by its own timeout.
func (p *TwilioProvider) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.api == nil {
		return fmt.Errorf("twilio client not initialized")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(p.from)
	params.SetBody(body)

	if _, err := p.api.CreateMessage(params); err != nil {
		return fmt.Errorf("error creating twilio message: %w", err)
	}
	return nil
}
