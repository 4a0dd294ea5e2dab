package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	if got, want := stripANSI(in), "INFO plain ERR"; got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandlerLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false))
	log.With("component", "gate").WithGroup("req").Info("elevation.confirm.success",
		"user_id", "01HX", "note", "two words", "empty", "")

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{
		"[INFO] elevation.confirm.success",
		"component=gate",
		"req.user_id=01HX",
		`req.note="two words"`,
		`req.empty=""`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("colour codes with color=false: %q", line)
	}
}

func TestPrettyHandlerColorsStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true))
	log.Error("http.request", "status", 503, "result", "server_error")

	out := buf.String()
	if !strings.Contains(out, ansiRed+"503"+ansiReset) {
		t.Fatalf("status not red: %q", out)
	}
	if !strings.Contains(stripANSI(out), "[ERROR] http.request status=503 result=server_error") {
		t.Fatalf("unexpected plain line: %q", stripANSI(out))
	}
}

func TestPrettyHandlerLevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))
	log.Info("dropped")
	log.Warn("kept")

	if out := buf.String(); strings.Contains(out, "dropped") || !strings.Contains(out, "[WARN] kept") {
		t.Fatalf("level filter output=%q", out)
	}
}
