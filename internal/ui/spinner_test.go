package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestSpinner_FailWritesToItsWriter(t *testing.T) {
	var buf bytes.Buffer
	sp := newSpinner(&buf, "Thinking...")
	sp.Fail("timed out")

	if out := buf.String(); !strings.Contains(out, "✗ timed out") {
		t.Errorf("output = %q, want failure line", out)
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	sp := newSpinner(&buf, "Thinking...")
	sp.Stop()

	if strings.Contains(buf.String(), "✗") {
		t.Errorf("Stop() wrote a failure line: %q", buf.String())
	}
}
