package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gyber/go-custody"
	"github.com/hibiken/asynq"
)

// Handler renders and delivers mail:send tasks
type Handler struct {
	renderer *Renderer
	sender   Sender
	logger   custody.Logger
}

func NewHandler(renderer *Renderer, sender Sender, logger custody.Logger) *Handler {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Handler{renderer: renderer, sender: sender, logger: logger}
}

// ProcessTask implements asynq.Handler. Payloads that can never succeed
// are dropped with asynq.SkipRetry, delivery errors are retried.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var msg custody.MailMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		h.logger.Error("mail payload decode", "error", err)
		return fmt.Errorf("mail: decode: %v: %w", err, asynq.SkipRetry)
	}

	subject, body, err := h.renderer.Render(msg)
	if err != nil {
		h.logger.Error("mail render", "template", msg.Template, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := h.sender.Send(ctx, Envelope{To: msg.To, Subject: subject, HTML: body}); err != nil {
		h.logger.Warn("mail send", "template", msg.Template, "error", err)
		return err
	}

	h.logger.Info("mail sent", "template", msg.Template)
	return nil
}

// WorkerConfig collects the dependencies of the mail worker
type WorkerConfig struct {
	RedisOpts   asynq.RedisConnOpt
	Handler     *Handler
	Concurrency int
	Logger      custody.Logger
}

// Worker consumes the mail queue
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger custody.Logger
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Handler == nil {
		return nil, errors.New("mail: worker handler is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueMail: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeSend, cfg.Handler)

	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run processes tasks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()

	w.logger.Info("mail worker started", "queue", QueueMail)

	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
