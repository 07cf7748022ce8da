package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(lvl) {
			t.Errorf("ValidLevel(%q) = false", lvl)
		}
		if parseLevel(lvl).String() != lvl {
			t.Errorf("parseLevel(%q) = %s", lvl, parseLevel(lvl))
		}
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel(verbose) = true")
	}
	if parseLevel("verbose").String() != "info" {
		t.Error("unknown level should fall back to info")
	}
}

func TestSetLogger_ComponentField(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewJSONLogger(&buf, "debug"))
	defer SetLogger(NewConsoleLogger(os.Stdout, "info"))

	Walker.Info().Uint64("block", 7).Msg("processed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "walker" {
		t.Errorf("component = %v, want walker", entry["component"])
	}
	if entry["block"] != float64(7) {
		t.Errorf("block = %v, want 7", entry["block"])
	}
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preparator.log")
	if err := Init("info", true, path); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer SetLogger(NewConsoleLogger(os.Stdout, "info"))

	Loader.Info().Msg("hello file")
	Loader.Debug().Msg("filtered")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file missing message: %s", data)
	}
	if strings.Contains(string(data), "filtered") {
		t.Error("debug message written at info level")
	}
}
