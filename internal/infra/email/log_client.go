package email

import (
	"context"

	domainEmail "learning_observer/internal/domain/email"

	"github.com/sirupsen/logrus"
)

// LogClient writes outgoing mail to the log. Used when no SendGrid key is configured.
type LogClient struct {
	logger *logrus.Entry
}

var _ domainEmail.Client = (*LogClient)(nil)

func NewLogClient(logger *logrus.Entry) *LogClient {
	return &LogClient{logger: logger.WithField("component", "email_log")}
}

func (c *LogClient) SendEmail(_ context.Context, to, subject, body string) error {
	c.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info(body)
	return nil
}
