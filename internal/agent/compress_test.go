package agent

import (
	"strconv"
	"strings"
	"testing"

	"github.com/spark-corp/redshadow/internal/tools"
)

func TestCompressOutputPassesThroughFailedResult(t *testing.T) {
	got := compressOutput(tools.Result{Success: false, Error: "connection refused"}, 3000)
	if got != "connection refused" {
		t.Fatalf("got %q, want error string", got)
	}
}

func TestCompressOutputFailedWithNoErrorString(t *testing.T) {
	got := compressOutput(tools.Result{Success: false}, 3000)
	if got != "tool execution failed" {
		t.Fatalf("got %q", got)
	}
}

func TestCompressOutputPrettyPrintsJSON(t *testing.T) {
	got := compressOutput(tools.Result{Success: true, RawOutput: `{"port":22,"state":"open"}`}, 3000)
	if !strings.Contains(got, "\n") || !strings.Contains(got, "\"port\": 22") {
		t.Fatalf("expected indented JSON, got %q", got)
	}
}

func TestCompressOutputTruncatesOversizedJSON(t *testing.T) {
	big := `{"items":[`
	for i := 0; i < 500; i++ {
		if i > 0 {
			big += ","
		}
		big += strconv.Itoa(i)
	}
	big += `]}`
	got := compressOutput(tools.Result{Success: true, RawOutput: big}, 50)
	if !strings.Contains(got, "[JSON TRUNCATED") {
		t.Fatalf("expected a JSON truncation marker, got %q", got)
	}
}

func TestCompressOutputShortPlainTextPassesThrough(t *testing.T) {
	got := compressOutput(tools.Result{Success: true, RawOutput: "22/tcp open ssh"}, 3000)
	if got != "22/tcp open ssh" {
		t.Fatalf("got %q", got)
	}
}

func TestCompressOutputTruncatesLongPlainTextUnderLineLimit(t *testing.T) {
	raw := strings.Repeat("x", 5000)
	got := compressOutput(tools.Result{Tool: "nmap", Success: true, RawOutput: raw}, 100)
	if !strings.Contains(got, "[TRUNCATED: 5000 total chars]") {
		t.Fatalf("expected a char-count truncation marker, got %q", got)
	}
}

func TestCompressOutputHeadTailsManyLines(t *testing.T) {
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = "line " + strconv.Itoa(i)
	}
	raw := strings.Join(lines, "\n")
	got := compressOutput(tools.Result{Tool: "nuclei", Success: true, RawOutput: raw}, 100000)

	if !strings.Contains(got, "MIDDLE OMITTED") {
		t.Fatalf("expected a middle-omitted marker, got %q", got)
	}
	if !strings.Contains(got, "line 0") || !strings.Contains(got, "line 199") {
		t.Fatalf("expected both first and last lines present, got %q", got)
	}
	if strings.Contains(got, "line 100") {
		t.Fatalf("expected middle lines to be omitted, got %q", got)
	}
}

func TestCompressOutputEmptyRawOutput(t *testing.T) {
	got := compressOutput(tools.Result{Success: true, RawOutput: ""}, 3000)
	if got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
}
