package mail_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gyber/go-custody"
	"github.com/gyber/go-custody/mail"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Enqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}

	dispatcher := mail.NewDispatcher(opts)
	t.Cleanup(func() { _ = dispatcher.Close() })

	msg := custody.MailMessage{
		Template: custody.MailTemplateVerify,
		To:       "user@example.com",
		Vars:     map[string]string{"link": "http://localhost/users/profile/verify/abc"},
	}
	require.NoError(t, dispatcher.Enqueue(context.Background(), msg))

	inspector := asynq.NewInspector(opts)
	t.Cleanup(func() { _ = inspector.Close() })

	tasks, err := inspector.ListPendingTasks(mail.QueueMail)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	assert.Equal(t, mail.TaskTypeSend, tasks[0].Type)
	assert.Equal(t, mail.DefaultMaxRetry, tasks[0].MaxRetry)

	var got custody.MailMessage
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &got))
	assert.Equal(t, msg, got)
}

func TestNewSendTask_Invalid(t *testing.T) {
	_, err := mail.NewSendTask(custody.MailMessage{Template: custody.MailTemplateReset})
	assert.Error(t, err)

	_, err = mail.NewSendTask(custody.MailMessage{To: "user@example.com"})
	assert.Error(t, err)
}

func TestRenderer(t *testing.T) {
	renderer, err := mail.NewRenderer("GYBER")
	require.NoError(t, err)

	t.Run("verify", func(t *testing.T) {
		subject, body, err := renderer.Render(custody.MailMessage{
			Template: custody.MailTemplateVerify,
			To:       "user@example.com",
			Vars:     map[string]string{"link": "http://localhost/users/profile/verify/tok"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Verification Message", subject)
		assert.Contains(t, body, "http://localhost/users/profile/verify/tok")
		assert.Contains(t, body, "GYBER")
	})

	t.Run("reset", func(t *testing.T) {
		subject, body, err := renderer.Render(custody.MailMessage{
			Template: custody.MailTemplateReset,
			To:       "user@example.com",
			Vars:     map[string]string{"token": "reset-token-value"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Reset Password", subject)
		assert.Contains(t, body, "reset-token-value")
	})

	t.Run("unknown template", func(t *testing.T) {
		_, _, err := renderer.Render(custody.MailMessage{Template: "welcome"})
		assert.Error(t, err)
	})
}

func TestHandler_ProcessTask(t *testing.T) {
	renderer, err := mail.NewRenderer("")
	require.NoError(t, err)

	t.Run("renders and sends", func(t *testing.T) {
		var sent []mail.Envelope
		handler := mail.NewHandler(renderer, mail.SenderFunc(func(_ context.Context, env mail.Envelope) error {
			sent = append(sent, env)
			return nil
		}), nil)

		task, err := mail.NewSendTask(custody.MailMessage{
			Template: custody.MailTemplateVerify,
			To:       "user@example.com",
			Vars:     map[string]string{"link": "http://x/verify/1"},
		})
		require.NoError(t, err)

		require.NoError(t, handler.ProcessTask(context.Background(), task))
		require.Len(t, sent, 1)
		assert.Equal(t, "user@example.com", sent[0].To)
		assert.Equal(t, "Verification Message", sent[0].Subject)
		assert.Contains(t, sent[0].HTML, "http://x/verify/1")
	})

	t.Run("bad payload skips retry", func(t *testing.T) {
		handler := mail.NewHandler(renderer, mail.SenderFunc(func(context.Context, mail.Envelope) error {
			t.Fatal("sender must not be called")
			return nil
		}), nil)

		err := handler.ProcessTask(context.Background(), asynq.NewTask(mail.TaskTypeSend, []byte("{")))
		require.Error(t, err)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("unknown template skips retry", func(t *testing.T) {
		handler := mail.NewHandler(renderer, mail.SenderFunc(func(context.Context, mail.Envelope) error {
			return nil
		}), nil)

		payload, _ := json.Marshal(custody.MailMessage{Template: "nope", To: "user@example.com"})
		err := handler.ProcessTask(context.Background(), asynq.NewTask(mail.TaskTypeSend, payload))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("delivery errors are retried", func(t *testing.T) {
		handler := mail.NewHandler(renderer, mail.SenderFunc(func(context.Context, mail.Envelope) error {
			return errors.New("connection refused")
		}), nil)

		task, err := mail.NewSendTask(custody.MailMessage{Template: custody.MailTemplateReset, To: "user@example.com"})
		require.NoError(t, err)

		err = handler.ProcessTask(context.Background(), task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})
}
