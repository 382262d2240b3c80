package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gyber/go-custody"
	"github.com/hibiken/asynq"
)

const (
	// QueueMail is the queue mail tasks are published to
	QueueMail = "mail"
	// TaskTypeSend is the task type for templated transactional mail
	TaskTypeSend = "mail:send"
	// DefaultMaxRetry bounds redelivery of a failed send
	DefaultMaxRetry = 5
)

// NewSendTask wraps a mail command in an asynq task
func NewSendTask(msg custody.MailMessage, opts ...asynq.Option) (*asynq.Task, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("mail: recipient is required")
	}
	if strings.TrimSpace(msg.Template) == "" {
		return nil, fmt.Errorf("mail: template is required")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSend, data, opts...), nil
}

// Dispatcher publishes mail commands. It implements custody.MailDispatcher.
type Dispatcher struct {
	client   *asynq.Client
	maxRetry int
}

var _ custody.MailDispatcher = (*Dispatcher)(nil)

// NewDispatcher constructs an asynq backed dispatcher
func NewDispatcher(redisOpts asynq.RedisConnOpt) *Dispatcher {
	return &Dispatcher{
		client:   asynq.NewClient(redisOpts),
		maxRetry: DefaultMaxRetry,
	}
}

// WithMaxRetry overrides DefaultMaxRetry
func (d *Dispatcher) WithMaxRetry(n int) *Dispatcher {
	if n >= 0 {
		d.maxRetry = n
	}
	return d
}

// Enqueue publishes msg and returns as soon as the queue accepted it
func (d *Dispatcher) Enqueue(ctx context.Context, msg custody.MailMessage) error {
	task, err := NewSendTask(msg)
	if err != nil {
		return err
	}

	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueMail),
		asynq.MaxRetry(d.maxRetry),
	)
	if err != nil {
		return fmt.Errorf("mail: enqueue: %w", err)
	}
	return nil
}

// Close releases client resources
func (d *Dispatcher) Close() error {
	return d.client.Close()
}
