package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogOutboxRecordsMessage(t *testing.T) {
	var buf bytes.Buffer
	outbox := NewLogOutbox(slog.New(slog.NewTextHandler(&buf, nil)))

	err := outbox.Send(context.Background(), Message{To: "ana@uni.br", Subject: "Confirme seu email", Body: "token"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(buf.String(), "to=ana@uni.br") {
		t.Fatalf("expected recipient in log, got %q", buf.String())
	}
}
