package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/provider-booking/internal/config"
	"github.com/hackgods/provider-booking/internal/logging"
	"github.com/hackgods/provider-booking/internal/mail"
	redisclient "github.com/hackgods/provider-booking/internal/redis"
)

// jobStore is the part of the mail queue the worker consumes.
type jobStore interface {
	Pop(ctx context.Context, timeout time.Duration) (*mail.Message, error)
}

type worker struct {
	queue    jobStore
	renderer *mail.Renderer
	sender   mail.Sender
	poll     time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("dev", "info", "mail-worker")
		l.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "mail-worker")
	logger.Info().
		Str("env", cfg.Env).
		Str("smtp_addr", cfg.SMTPAddr).
		Dur("poll_timeout", cfg.MailPollTimeout).
		Msg("mail-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the blocking pop must return before the client read deadline
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.MailPollTimeout+2*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	renderer, err := mail.NewRenderer()
	if err != nil {
		logger.Fatal().Err(err).Msg("load mail templates")
	}

	w := &worker{
		queue:    redisclient.NewMailQueue(rdb),
		renderer: renderer,
		sender:   mail.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom),
		poll:     cfg.MailPollTimeout,
		timeout:  cfg.NotifyTimeout,
		log:      logger,
	}
	w.run(rootCtx)

	logger.Info().Msg("shutdown signal received, mail worker stopped")
}

func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m, err := w.queue.Pop(ctx, w.poll)
		switch {
		case errors.Is(err, redisclient.ErrQueueEmpty):
			continue
		case ctx.Err() != nil:
			return
		case err != nil:
			w.log.Error().Err(err).Msg("dequeue mail")
			// back off so a broken connection does not spin
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.deliver(ctx, *m)
	}
}

func (w *worker) deliver(ctx context.Context, m mail.Message) {
	start := time.Now()

	body, err := w.renderer.Render(m)
	if err != nil {
		w.log.Error().Err(err).Str("template", m.Template).Msg("render mail, dropping job")
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	if err := w.sender.Send(sendCtx, m, body); err != nil {
		w.log.Error().Err(err).Str("to", m.ToEmail).Str("template", m.Template).Msg("send mail")
		return
	}
	w.log.Info().
		Str("to", m.ToEmail).
		Str("template", m.Template).
		Dur("duration", time.Since(start)).
		Msg("mail sent")
}
