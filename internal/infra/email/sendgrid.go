package email

import (
	"context"
	"fmt"
	"net/http"
	"time"

	domainEmail "learning_observer/internal/domain/email"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	defaultHost    = "https://api.sendgrid.com"
	endpoint       = "/v3/mail/send"
	requestTimeout = 15 * time.Second
)

// SendGridClient delivers plain-text mail through the SendGrid v3 API.
type SendGridClient struct {
	key  string
	host string
	from *sgmail.Email
	send func(ctx context.Context, req rest.Request) (*rest.Response, error)
}

var _ domainEmail.Client = (*SendGridClient)(nil)

func NewSendGridClient(key, fromName, fromEmail string) *SendGridClient {
	c := &SendGridClient{
		key:  key,
		host: defaultHost,
		from: sgmail.NewEmail(fromName, fromEmail),
	}
	c.send = doRequest(&rest.Client{HTTPClient: &http.Client{Timeout: requestTimeout}})
	return c
}

// doRequest sends through client with the request bound to ctx, so a cancelled tick aborts
// an in-flight call.
func doRequest(client *rest.Client) func(context.Context, rest.Request) (*rest.Response, error) {
	return func(ctx context.Context, req rest.Request) (*rest.Response, error) {
		httpReq, err := rest.BuildRequestObject(req)
		if err != nil {
			return nil, err
		}
		httpRes, err := client.MakeRequest(httpReq.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		return rest.BuildResponse(httpRes)
	}
}

func (c *SendGridClient) prepare(to, subject, body string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail("", to))

	m := sgmail.NewV3Mail()
	m.SetFrom(c.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", body))
	return m
}

func (c *SendGridClient) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(c.key, endpoint, c.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(c.prepare(to, subject, body))

	res, err := c.send(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
