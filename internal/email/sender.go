package email

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Message es un correo listo para renderizar y entregar.
type Message struct {
	To       string
	Subject  string
	Template Template
	Data     any
}

// Sender define la interfaz para envio de correos transaccionales.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _ Message) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

// LogSender renderiza el correo y lo escribe en el log. Solo para desarrollo.
type LogSender struct {
	logger   *zap.Logger
	renderer *Renderer
}

func NewLogSender(logger *zap.Logger, renderer *Renderer) *LogSender {
	return &LogSender{logger: logger, renderer: renderer}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	body, err := s.renderer.Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}
	s.logger.Info("email (dev mode, not delivered)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.Template.String()),
		zap.String("body", body),
	)
	return nil
}
