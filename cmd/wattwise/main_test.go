package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"wattwise/internal/models"
)

func TestRupees(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{470, "₹470"},
		{1234.5, "₹1,234.5"},
		{12345.678, "₹12,345.68"},
	}
	for _, tt := range tests {
		if got := rupees(tt.v); got != tt.want {
			t.Errorf("rupees(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf, []models.DailyUsage{
		{Date: models.NewDate(2024, 3, 1), ConsumptionKWh: 12, Cost: 30, ReadingsCount: 2, IsAnomaly: true},
		{Date: models.NewDate(2024, 3, 2), ReadingsCount: 1},
	})

	out := buf.String()
	if !strings.Contains(out, "2024-03-01") || !strings.Contains(out, "unusual") {
		t.Errorf("printUsage() missing anomalous day:\n%s", out)
	}
	if !strings.Contains(out, "incomplete") {
		t.Errorf("printUsage() missing incomplete marker:\n%s", out)
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("wattwise %s: %v\n%s", strings.Join(args, " "), err, buf.String())
	}
	return buf.String()
}

func TestCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	base := []string{"--db", db, "--user", "home"}
	with := func(args ...string) []string {
		return append(args, base...)
	}

	out := run(t, with("reading", "add", "2024-03-01", "morning", "1000")...)
	if !strings.Contains(out, "waiting for the other reading") {
		t.Errorf("reading add morning output = %q", out)
	}

	out = run(t, with("reading", "add", "2024-03-01", "night", "1010")...)
	if !strings.Contains(out, "10 kWh used") {
		t.Errorf("reading add night output = %q", out)
	}

	out = run(t, with("reading", "list")...)
	if !strings.Contains(out, "2 readings") {
		t.Errorf("reading list output = %q", out)
	}

	out = run(t, with("usage")...)
	if !strings.Contains(out, "2024-03-01") {
		t.Errorf("usage output = %q", out)
	}

	out = run(t, with("bill", "250", "--period", "bimonthly")...)
	if !strings.Contains(out, "Total: ₹470") {
		t.Errorf("bill output = %q", out)
	}

	out = run(t, with("cycle", "show")...)
	if !strings.Contains(out, "No bill imported yet") {
		t.Errorf("cycle show output = %q", out)
	}

	run(t, with("cycle", "import", "2024-03-01", "1000", "--amount", "850")...)
	out = run(t, with("cycle", "show")...)
	if !strings.Contains(out, "Last bill amount: ₹850") {
		t.Errorf("cycle show after import output = %q", out)
	}

	out = run(t, with("rebuild")...)
	if !strings.Contains(out, "Rebuilt 1 days") {
		t.Errorf("rebuild output = %q", out)
	}

	out = run(t, with("export")...)
	if !strings.Contains(out, "2024-03-01") {
		t.Errorf("export output = %q", out)
	}
}
