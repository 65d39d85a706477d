package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testSecret = "postgres://fieldmap:hunter2@db:5432/readings"

func TestSecretString_Redaction(t *testing.T) {
	s := SecretString(testSecret)

	for _, format := range []string{"%s", "%v", "%+v"} {
		got := fmt.Sprintf(format, s)
		if strings.Contains(got, "hunter2") {
			t.Errorf("fmt.Sprintf(%q) leaked the raw secret: %s", format, got)
		}
	}

	data, err := json.Marshal(struct {
		URL SecretString `json:"url"`
	}{URL: s})
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("json.Marshal leaked the raw secret: %s", data)
	}
}

func TestSecretString_SlogRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("connecting", "database_url", SecretString(testSecret))

	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("slog leaked the raw secret: %s", buf.String())
	}
	if !strings.Contains(buf.String(), redactedPlaceholder) {
		t.Errorf("slog output = %s, want redacted placeholder", buf.String())
	}
}

func TestSecretString_Unmask(t *testing.T) {
	s := SecretString(testSecret)
	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q, want %q", s.Unmask(), testSecret)
	}
	if s.IsZero() {
		t.Error("IsZero() = true for a configured secret")
	}
	if !SecretString("").IsZero() {
		t.Error("IsZero() = false for an empty secret")
	}
}
