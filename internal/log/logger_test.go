package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentRecurring, Output: &buf})

	logger.Info("Run completed", FieldTemplateID, "tpl-1")
	logger.WithComponent(ComponentBudget).Warn("Budget overspent")
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=recurring") || !strings.Contains(out, "template_id=tpl-1") {
		t.Errorf("Info output = %q", out)
	}
	if !strings.Contains(out, "component=budget") {
		t.Errorf("WithComponent output = %q", out)
	}
	if strings.Count(out, "component=") != 2 {
		t.Errorf("expected one component attribute per record, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentRates).
		WithOperation(OpRefresh).
		WithPair("EUR", "USD").
		WithMoney("12.50", "EUR").
		WithError(errors.New("boom")).
		WithError(nil)

	if len(f.ToSlice()) != 2*len(f) {
		t.Errorf("ToSlice() len = %d, want %d", len(f.ToSlice()), 2*len(f))
	}
	if f[FieldError] != "boom" || f[FieldBase] != "EUR" || f[FieldCurrency] != "EUR" {
		t.Errorf("fields = %v", f)
	}
}
