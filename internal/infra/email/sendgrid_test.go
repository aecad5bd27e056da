package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubbed(status int, err error, got *rest.Request) *SendGridClient {
	c := NewSendGridClient("SG.test", "Learning Observer", "noreply@example.com")
	c.send = func(_ context.Context, req rest.Request) (*rest.Response, error) {
		*got = req
		if err != nil {
			return nil, err
		}
		return &rest.Response{StatusCode: status, Body: "body"}, nil
	}
	return c
}

func TestSendGridClient_SendEmail(t *testing.T) {
	var req rest.Request
	c := stubbed(http.StatusAccepted, nil, &req)

	err := c.SendEmail(context.Background(), "alice@example.com", "Session Reminder", "hello")
	require.NoError(t, err)

	assert.Equal(t, rest.Method(http.MethodPost), req.Method)
	assert.Equal(t, "https://api.sendgrid.com/v3/mail/send", req.BaseURL)
	assert.Equal(t, "Bearer SG.test", req.Headers["Authorization"])

	var payload struct {
		From struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"from"`
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
			} `json:"to"`
			Subject string `json:"subject"`
		} `json:"personalizations"`
		Content []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &payload))
	assert.Equal(t, "noreply@example.com", payload.From.Email)
	require.Len(t, payload.Personalizations, 1)
	assert.Equal(t, "Session Reminder", payload.Personalizations[0].Subject)
	assert.Equal(t, "alice@example.com", payload.Personalizations[0].To[0].Email)
	require.Len(t, payload.Content, 1)
	assert.Equal(t, "text/plain", payload.Content[0].Type)
	assert.Equal(t, "hello", payload.Content[0].Value)
}

func TestSendGridClient_Failures(t *testing.T) {
	var req rest.Request

	err := stubbed(http.StatusUnauthorized, nil, &req).SendEmail(context.Background(), "a@example.com", "s", "b")
	assert.ErrorContains(t, err, "status 401")

	cause := errors.New("dial tcp: timeout")
	err = stubbed(0, cause, &req).SendEmail(context.Background(), "a@example.com", "s", "b")
	assert.ErrorIs(t, err, cause)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = stubbed(http.StatusAccepted, nil, &req).SendEmail(ctx, "a@example.com", "s", "b")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendGridClient_AbortsOnDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(3 * time.Second):
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	defer close(release)

	c := NewSendGridClient("SG.test", "Learning Observer", "noreply@example.com")
	c.host = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.SendEmail(ctx, "a@example.com", "s", "b")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestSendGridClient_PostsToServer(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewSendGridClient("SG.test", "Learning Observer", "noreply@example.com")
	c.host = srv.URL

	require.NoError(t, c.SendEmail(context.Background(), "a@example.com", "s", "b"))
	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, "Bearer SG.test", gotAuth)
}

func TestLogClient(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := NewLogClient(logrus.NewEntry(l))

	assert.NoError(t, c.SendEmail(context.Background(), "a@example.com", "s", "b"))
}
