package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/five82/clanboard/internal/logging"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}
	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{name: "zero", maxLines: 0, expected: nil},
		{name: "last 3", maxLines: 3, expected: expectedAll[7:]},
		{name: "exactly all", maxLines: 10, expected: expectedAll},
		{name: "more than available", maxLines: 25, expected: expectedAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read returned error: %v", err)
			}
			if len(got) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("Read(%d) = %v, want %v", tt.maxLines, got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 5)
	if err != nil || got != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	e := Parse(`{"level":"warn","time":"2026-03-01T10:20:30.000Z","logger":"poller","caller":"app/poller.go:40","msg":"refresh failed","failures":2,"error":"timeout"}`)
	if e.Raw != "" {
		t.Fatalf("Parse returned raw entry %q", e.Raw)
	}
	if e.Level != zapcore.WarnLevel || e.Logger != "poller" || e.Msg != "refresh failed" {
		t.Fatalf("Parse = %+v", e)
	}
	if e.Time.Year() != 2026 || e.Time.Second() != 30 {
		t.Fatalf("Time = %v, want 2026-03-01 10:20:30", e.Time)
	}
	if _, ok := e.Fields["caller"]; ok {
		t.Fatal("caller should not be a field")
	}
	if e.Fields["error"] != "timeout" || e.Fields["failures"] != float64(2) {
		t.Fatalf("Fields = %v", e.Fields)
	}

	want := "2026-03-01 10:20:30 WARN  poller: refresh failed error=timeout failures=2"
	if got := Format(e); got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestParse_NotJSON(t *testing.T) {
	e := Parse("panic: boom")
	if e.Raw != "panic: boom" || e.Level != zapcore.InfoLevel {
		t.Fatalf("Parse(non-json) = %+v", e)
	}
	if Format(e) != "panic: boom" {
		t.Fatalf("Format(raw) = %q", Format(e))
	}
}

func TestTail_ReadsLoggingOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clanboard.log")
	logger, err := logging.New(logging.Options{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	logger.Named("store").Debug("persisted", zap.String("key", "clans"))
	logger.Named("rpc").Error("call failed", zap.String("op", "list_machines"))
	_ = logger.Sync()

	all, err := Tail(path, 10, zapcore.DebugLevel)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Tail(debug) returned %d entries, want 2", len(all))
	}

	errs, err := Tail(path, 10, zapcore.ErrorLevel)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(errs) != 1 || errs[0].Logger != "rpc" || errs[0].Fields["op"] != "list_machines" {
		t.Fatalf("Tail(error) = %+v", errs)
	}
	if errs[0].Time.IsZero() {
		t.Fatal("time was not decoded")
	}
}
