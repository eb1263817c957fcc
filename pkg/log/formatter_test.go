package log

import (
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// fixed timestamp used across tests for deterministic output.
var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func makeEntry(level LogLevel, msg string, fields map[string]interface{}) LogEntry {
	return LogEntry{
		Timestamp: testTime,
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
}

// ---------------------------------------------------------------------------
// LogLevel tests
// ---------------------------------------------------------------------------

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{FATAL, "FATAL"},
		{LogLevel(99), "LEVEL(99)"},
	}
	for _, tt := range tests {
		got := tt.level.String()
		if got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"DEBUG", DEBUG},
		{"debug", DEBUG},
		{"INFO", INFO},
		{"info", INFO},
		{"WARN", WARN},
		{"warn", WARN},
		{"WARNING", WARN},
		{"ERROR", ERROR},
		{"error", ERROR},
		{"FATAL", FATAL},
		{"fatal", FATAL},
		{"  INFO  ", INFO},
		{"unknown", INFO}, // default
		{"", INFO},        // default
	}
	for _, tt := range tests {
		got := LevelFromString(tt.input)
		if got != tt.want {
			t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TextFormatter tests
// ---------------------------------------------------------------------------

func TestTextFormatter_Basic(t *testing.T) {
	f := &TextFormatter{}
	entry := makeEntry(INFO, "server started", nil)
	out := f.Format(entry)

	if !strings.Contains(out, "[2024-01-01 12:00:00]") {
		t.Errorf("missing timestamp in output: %s", out)
	}
	if !strings.Contains(out, "INFO") {
		t.Errorf("missing level in output: %s", out)
	}
	if !strings.Contains(out, "server started") {
		t.Errorf("missing message in output: %s", out)
	}
}

func TestTextFormatter_WithFields(t *testing.T) {
	f := &TextFormatter{}
	fields := map[string]interface{}{
		"worker": 3,
		"batch":  1,
	}
	entry := makeEntry(INFO, "chunk traced", fields)
	out := f.Format(entry)

	// Fields are sorted alphabetically.
	if !strings.Contains(out, "batch=1") {
		t.Errorf("missing batch field: %s", out)
	}
	if !strings.Contains(out, "worker=3") {
		t.Errorf("missing worker field: %s", out)
	}
	// batch should come before worker (alphabetical).
	batchIdx := strings.Index(out, "batch=")
	workerIdx := strings.Index(out, "worker=")
	if batchIdx > workerIdx {
		t.Errorf("fields not sorted: batch at %d, worker at %d", batchIdx, workerIdx)
	}
}

func TestTextFormatter_CustomTimeFormat(t *testing.T) {
	f := &TextFormatter{TimeFormat: time.RFC822}
	entry := makeEntry(WARN, "slow", nil)
	out := f.Format(entry)

	expected := testTime.Format(time.RFC822)
	if !strings.Contains(out, expected) {
		t.Errorf("expected time format %q in output: %s", expected, out)
	}
}

func TestTextFormatter_LevelPadding(t *testing.T) {
	f := &TextFormatter{}
	// INFO is 4 chars, padded to 5 -> "INFO " with trailing space.
	entry := makeEntry(INFO, "msg", nil)
	out := f.Format(entry)
	if !strings.Contains(out, "INFO ") {
		t.Errorf("expected padded 'INFO ' in output: %s", out)
	}

	// ERROR is 5 chars, no extra padding needed.
	entry2 := makeEntry(ERROR, "msg", nil)
	out2 := f.Format(entry2)
	if !strings.Contains(out2, "ERROR") {
		t.Errorf("expected 'ERROR' in output: %s", out2)
	}
}

// ---------------------------------------------------------------------------
// JSONFormatter tests
// ---------------------------------------------------------------------------

func TestJSONFormatter_Basic(t *testing.T) {
	f := &JSONFormatter{}
	entry := makeEntry(ERROR, "disk full", nil)
	out := f.Format(entry)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v (raw: %s)", err, out)
	}
	if parsed["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", parsed["level"])
	}
	if parsed["msg"] != "disk full" {
		t.Errorf("msg = %v, want 'disk full'", parsed["msg"])
	}
	if _, ok := parsed["time"]; !ok {
		t.Error("missing 'time' field in JSON output")
	}
}

func TestJSONFormatter_WithFields(t *testing.T) {
	f := &JSONFormatter{}
	fields := map[string]interface{}{
		"chunk_index":    12345,
		"circuit_type": "main",
	}
	entry := makeEntry(INFO, "chunk committed", fields)
	out := f.Format(entry)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v (raw: %s)", err, out)
	}
	// JSON numbers are float64.
	if v, ok := parsed["chunk_index"].(float64); !ok || v != 12345 {
		t.Errorf("chunk_index = %v, want 12345", parsed["chunk_index"])
	}
	if parsed["circuit_type"] != "main" {
		t.Errorf("circuit_type = %v, want 'main'", parsed["circuit_type"])
	}
}

func TestJSONFormatter_CustomTimeFormat(t *testing.T) {
	f := &JSONFormatter{TimeFormat: "2006-01-02"}
	entry := makeEntry(DEBUG, "test", nil)
	out := f.Format(entry)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["time"] != "2024-01-01" {
		t.Errorf("time = %v, want '2024-01-01'", parsed["time"])
	}
}

// ---------------------------------------------------------------------------
// ColorFormatter tests
// ---------------------------------------------------------------------------

func TestColorFormatter_ContainsANSI(t *testing.T) {
	f := &ColorFormatter{}
	levels := []LogLevel{DEBUG, INFO, WARN, ERROR, FATAL}

	for _, lvl := range levels {
		entry := makeEntry(lvl, "test", nil)
		out := f.Format(entry)

		// Every colored output must contain the reset sequence.
		if !strings.Contains(out, ansiReset) {
			t.Errorf("level %v: missing ANSI reset in output: %s", lvl, out)
		}
		// Must contain the level name.
		if !strings.Contains(out, lvl.String()) {
			t.Errorf("level %v: missing level name in output: %s", lvl, out)
		}
	}
}

func TestColorFormatter_DifferentColors(t *testing.T) {
	// Verify that different levels produce different color codes.
	colors := make(map[string]LogLevel)
	for _, lvl := range []LogLevel{DEBUG, INFO, WARN, ERROR} {
		c := colorForLevel(lvl)
		if prev, exists := colors[c]; exists {
			t.Errorf("levels %v and %v share the same color code %q", prev, lvl, c)
		}
		colors[c] = lvl
	}
}

func TestColorFormatter_WithFields(t *testing.T) {
	f := &ColorFormatter{}
	fields := map[string]interface{}{"key": "value"}
	entry := makeEntry(INFO, "msg", fields)
	out := f.Format(entry)

	if !strings.Contains(out, "key=value") {
		t.Errorf("missing field in colored output: %s", out)
	}
}

// ---------------------------------------------------------------------------
// LogEntry tests
// ---------------------------------------------------------------------------

func TestLogEntry_NilFields(t *testing.T) {
	// Formatters must handle nil Fields gracefully.
	entry := LogEntry{
		Timestamp: testTime,
		Level:     INFO,
		Message:   "no fields",
		Fields:    nil,
	}

	text := (&TextFormatter{}).Format(entry)
	if !strings.Contains(text, "no fields") {
		t.Errorf("TextFormatter failed with nil fields: %s", text)
	}

	js := (&JSONFormatter{}).Format(entry)
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(js), &parsed); err != nil {
		t.Errorf("JSONFormatter produced invalid JSON with nil fields: %v", err)
	}

	color := (&ColorFormatter{}).Format(entry)
	if !strings.Contains(color, "no fields") {
		t.Errorf("ColorFormatter failed with nil fields: %s", color)
	}
}

// ---------------------------------------------------------------------------
// Interface compliance
// ---------------------------------------------------------------------------

func TestFormatterInterfaceCompliance(t *testing.T) {
	// Compile-time check that all formatters satisfy LogFormatter.
	var _ LogFormatter = (*TextFormatter)(nil)
	var _ LogFormatter = (*JSONFormatter)(nil)
	var _ LogFormatter = (*ColorFormatter)(nil)
}

// ---------------------------------------------------------------------------
// FormatterByName tests
// ---------------------------------------------------------------------------

func TestFormatterByName(t *testing.T) {
	tests := []struct {
		name string
		want LogFormatter
	}{
		{"text", &TextFormatter{}},
		{"TEXT", &TextFormatter{}},
		{"color", &ColorFormatter{}},
		{"json", &JSONFormatter{}},
		{"", &JSONFormatter{}},
		{"unknown", &JSONFormatter{}},
	}
	for _, tt := range tests {
		got := FormatterByName(tt.name)
		if got == nil {
			t.Fatalf("FormatterByName(%q) returned nil", tt.name)
		}
		gotType := formatterTypeName(got)
		wantType := formatterTypeName(tt.want)
		if gotType != wantType {
			t.Errorf("FormatterByName(%q) = %s, want %s", tt.name, gotType, wantType)
		}
	}
}

func formatterTypeName(f LogFormatter) string {
	switch f.(type) {
	case *TextFormatter:
		return "text"
	case *ColorFormatter:
		return "color"
	case *JSONFormatter:
		return "json"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// FormatterHandler tests -- proves real pipeline module/batch/worker
// attributes attached via Logger.Module/With flow through to the selected
// formatter, end to end through slog.
// ---------------------------------------------------------------------------

func TestFormatterHandler_RendersModuleAndWithAttrs(t *testing.T) {
	var buf strings.Builder
	logger := NewWithFormatter(slog.LevelInfo, &JSONFormatter{}, &buf)

	logger.Module("worker").With("batch", uint64(7), "worker", 2).Info("chunk traced", "chunk_index", 41)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed); err != nil {
		t.Fatalf("invalid JSON from FormatterHandler: %v (raw: %s)", err, buf.String())
	}
	if parsed["module"] != "worker" {
		t.Errorf("module = %v, want worker", parsed["module"])
	}
	if v, ok := parsed["batch"].(float64); !ok || v != 7 {
		t.Errorf("batch = %v, want 7", parsed["batch"])
	}
	if v, ok := parsed["chunk_index"].(float64); !ok || v != 41 {
		t.Errorf("chunk_index = %v, want 41", parsed["chunk_index"])
	}
	if parsed["msg"] != "chunk traced" {
		t.Errorf("msg = %v, want 'chunk traced'", parsed["msg"])
	}
}

func TestFormatterHandler_RespectsLevelFloor(t *testing.T) {
	var buf strings.Builder
	logger := NewWithFormatter(slog.LevelWarn, &TextFormatter{}, &buf)

	logger.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected INFO to be suppressed below a WARN floor, got: %s", buf.String())
	}

	logger.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected WARN line to be written, got: %s", buf.String())
	}
}

func TestLevelFromSlog(t *testing.T) {
	if levelFromSlog(slog.LevelDebug) != DEBUG {
		t.Errorf("expected DEBUG")
	}
	if levelFromSlog(slog.LevelInfo) != INFO {
		t.Errorf("expected INFO")
	}
	if levelFromSlog(slog.LevelWarn) != WARN {
		t.Errorf("expected WARN")
	}
	if levelFromSlog(slog.LevelError) != ERROR {
		t.Errorf("expected ERROR")
	}
}
