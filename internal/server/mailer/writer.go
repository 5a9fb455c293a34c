package mailer

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterMailer prints messages to w instead of sending them. It is the
// development delivery path and the default when no transport is configured.
type WriterMailer struct {
	mu   sync.Mutex
	w    io.Writer
	from string
}

func NewWriterMailer(w io.Writer, from string) *WriterMailer {
	return &WriterMailer{w: w, from: from}
}

func (m *WriterMailer) SendPasswordReset(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := fmt.Fprintf(m.w, "From: %s\nTo: %s\nSubject: %s\n\n%s\n", m.from, to, resetSubject, resetBody(token))
	return err
}
