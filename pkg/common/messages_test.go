// Package common provides tests for message and logging functionality
package common

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestSetVerboseMode(t *testing.T) {
	// Test enabling verbose mode
	SetVerboseMode(true)
	if !VerboseMode {
		t.Error("SetVerboseMode(true) should enable verbose mode")
	}

	// Test disabling verbose mode
	SetVerboseMode(false)
	if VerboseMode {
		t.Error("SetVerboseMode(false) should disable verbose mode")
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogOutput(&buf)
	t.Cleanup(func() { SetLogOutput(os.Stderr) })
	return &buf
}

func TestLogDebug_VerboseEnabled(t *testing.T) {
	SetVerboseMode(true)
	defer SetVerboseMode(false)
	buf := captureLog(t)

	LogDebug("Test debug message with value: %d", 42)

	output := buf.String()
	if !strings.Contains(output, "Test debug message with value: 42") {
		t.Errorf("LogDebug output should contain formatted message, got: %q", output)
	}
}

func TestLogDebug_VerboseDisabled(t *testing.T) {
	SetVerboseMode(false)
	buf := captureLog(t)

	LogDebug("This should not appear", 42)

	if output := buf.String(); output != "" {
		t.Errorf("LogDebug should be silent when verbose mode is disabled, got: %q", output)
	}
}

func TestLogLevels(t *testing.T) {
	testCases := []struct {
		name  string
		log   func(string, ...interface{})
		level string
	}{
		{"info", LogInfo, "INF"},
		{"warn", LogWarn, "WRN"},
		{"error", LogError, "ERR"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLog(t)
			tc.log("Test %s message with value: %d", tc.name, 7)

			output := buf.String()
			want := fmt.Sprintf("Test %s message with value: 7", tc.name)
			if !strings.Contains(output, want) {
				t.Errorf("output should contain %q, got: %q", want, output)
			}
			if !strings.Contains(output, tc.level) {
				t.Errorf("output should contain level %q, got: %q", tc.level, output)
			}
		})
	}
}

func TestLogInfo_NoArgs(t *testing.T) {
	buf := captureLog(t)

	LogInfo("100% literal")

	if !strings.Contains(buf.String(), "100% literal") {
		t.Errorf("LogInfo without args must not interpret verbs, got: %q", buf.String())
	}
}

func TestWrapError(t *testing.T) {
	originalError := fmt.Errorf("original error")

	wrapped := WrapError("Base error message", originalError)

	expectedMessage := "Base error message: original error"
	if wrapped.Error() != expectedMessage {
		t.Errorf("WrapError() = %q, want %q", wrapped.Error(), expectedMessage)
	}
	if !strings.Contains(WrapError("base", 12).Error(), "base: 12") {
		t.Errorf("WrapError() should format non-error details")
	}
}
