package api

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/example/anon-chat-relay/domain/chat"
)

// sseWriter frames chat messages as server-sent events. Every frame is
// flushed so a dead connection surfaces as a write error.
type sseWriter struct {
	w *bufio.Writer
}

func newSSEWriter(w *bufio.Writer) *sseWriter {
	return &sseWriter{w: w}
}

// WriteMessage writes msg as a single data event.
func (s *sseWriter) WriteMessage(msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.w.Flush()
}

// WriteKeepalive writes a comment frame that clients ignore.
func (s *sseWriter) WriteKeepalive() error {
	if _, err := s.w.WriteString(": keepalive\n\n"); err != nil {
		return err
	}
	return s.w.Flush()
}
