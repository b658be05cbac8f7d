package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf)).With(String("origin", "abc"))

	l.Warn("save failed", Slice("counter"), Err(errors.New("boom")), Int("attempt", 2), Bool("paused", false))

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}

	want := map[string]interface{}{
		"level":   "warn",
		"message": "save failed",
		"slice":   "counter",
		"error":   "boom",
		"attempt": float64(2),
		"paused":  false,
		"origin":  "abc",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %q = %v, want %v", k, got[k], v)
		}
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Errorf("OrNoop(nil) should return NoopLogger")
	}
	z := NewZerologAdapter()
	if OrNoop(z) != Logger(z) {
		t.Errorf("OrNoop should return a non-nil logger unchanged")
	}
}
