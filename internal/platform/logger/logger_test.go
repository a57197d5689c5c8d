package logger

import (
	"bytes"
	"context"
	"testing"

	"stakegate/internal/platform/testkit"

	"github.com/rs/zerolog"
)

// Init is process-wide (sync.Once), so all output assertions share one buffer
var testBuf bytes.Buffer

func initTestLogger() {
	Init(Options{Level: "debug", Format: "json", Service: "stakegate-test", Writer: &testBuf})
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{" INFO ", zerolog.InfoLevel},
		{"nope", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, c := range cases {
		if got := parseLevel(c.in); got != c.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestContextFields(t *testing.T) {
	initTestLogger()
	testBuf.Reset()

	ctx := WithRequest(context.Background(), "req-1", "deliv-9")
	C(ctx).Info().Msg("hello")

	out := testBuf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"delivery_id":"deliv-9"`, `"service":"stakegate-test"`} {
		testkit.MustContain(t, out, want)
	}
}

func TestNamedAddsComponent(t *testing.T) {
	initTestLogger()
	testBuf.Reset()

	Named("outbox").Warn().Msg("tick failed")
	testkit.MustContain(t, testBuf.String(), `"component":"outbox"`)
}

func TestWithRequestEmptyValuesAreSkipped(t *testing.T) {
	ctx := WithRequest(context.Background(), "", "")
	if ctx != context.Background() {
		t.Fatalf("empty ids should not annotate the context")
	}
}
