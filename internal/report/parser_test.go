package report

import (
	"strings"
	"testing"
)

const pytestFailOutput = `============================= test session starts ==============================
collected 3 items

tests/test_models.py ..F                                                 [100%]

=========================== short test summary info ============================
FAILED tests/test_models.py::test_prepare_url_uppercase_scheme - MissingSchema
========================= 1 failed, 2 passed in 0.31s ==========================
`

const goTestFailOutput = `--- FAIL: TestPrepareURL (0.00s)
    models_test.go:18: scheme check rejected HTTP://example.com
--- PASS: TestPrepareURLLowercase (0.00s)
FAIL
FAIL	example.com/requests	0.012s
`

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   string
	}{
		{"pytest", pytestFailOutput, "pytest"},
		{"gotest", goTestFailOutput, "go test"},
		{"generic", "some random build output", "generic"},
	}
	for _, tt := range tests {
		s := Summarize(tt.stdout, "", 1)
		if s.Framework != tt.want {
			t.Errorf("%s: framework = %q, want %q", tt.name, s.Framework, tt.want)
		}
	}
}

func TestPytestParser_FailureSummary(t *testing.T) {
	s := (&PytestParser{}).Parse(pytestFailOutput, "", 1)
	if s.Passed {
		t.Error("expected Passed=false")
	}
	if !strings.Contains(s.Headline, "1 failed, 2 passed") {
		t.Errorf("headline = %q, want pytest summary line", s.Headline)
	}
	if !strings.Contains(s.Headline, "tests/test_models.py::test_prepare_url_uppercase_scheme") {
		t.Errorf("headline = %q, want failed test name", s.Headline)
	}
	if s.Detail == "" {
		t.Error("expected failure detail")
	}
}

func TestPytestParser_Pass(t *testing.T) {
	out := "===== test session starts =====\n.... \n===== 4 passed in 0.1s =====\n"
	s := (&PytestParser{}).Parse(out, "", 0)
	if !s.Passed {
		t.Error("expected Passed=true")
	}
	if s.Detail != "" {
		t.Errorf("passing run should carry no detail, got %q", s.Detail)
	}
}

func TestGoTestParser_CountsFailures(t *testing.T) {
	s := (&GoTestParser{}).Parse(goTestFailOutput, "", 1)
	if s.Passed {
		t.Error("expected Passed=false")
	}
	if !strings.Contains(s.Headline, "1 failed, 1 passed") {
		t.Errorf("headline = %q", s.Headline)
	}
	if !strings.Contains(s.Headline, "TestPrepareURL") {
		t.Errorf("headline = %q, want first failing test", s.Headline)
	}
}

func TestGenericParser_TruncatesTail(t *testing.T) {
	long := strings.Repeat("x", maxDetailLen+500) + "\nfinal error line"
	s := (&GenericParser{}).Parse(long, "boom", 2)
	if s.Passed {
		t.Error("expected Passed=false")
	}
	if len(s.Detail) > maxDetailLen+100 {
		t.Errorf("detail length %d exceeds cap", len(s.Detail))
	}
	if !strings.Contains(s.Detail, "final error line") || !strings.Contains(s.Detail, "boom") {
		t.Error("detail must keep the output tail including stderr")
	}
}

func TestGenericParser_PassIsQuiet(t *testing.T) {
	s := (&GenericParser{}).Parse("ok", "", 0)
	if !s.Passed || s.Detail != "" {
		t.Errorf("summary = %+v, want quiet pass", s)
	}
}
