package main

import (
	"strings"
	"testing"

	"wattwise/internal/models"
)

func TestParseReadings(t *testing.T) {
	in := `user_id,date,time_of_day,reading_kwh
u1,2024-03-01,morning,1000.5
u1,2024-03-01,Night,1012
,2024-03-02,morning,1013
u2,2024-03-02,noon,5
u2,2024-03-02,night,-1
`
	jobs, rejected, err := parseReadings(strings.NewReader(in), "")
	if err != nil {
		t.Fatalf("parseReadings() error = %v", err)
	}

	if len(jobs) != 2 {
		t.Fatalf("parseReadings() jobs = %d, want 2", len(jobs))
	}
	if len(rejected) != 3 {
		t.Errorf("parseReadings() rejected = %d, want 3: %v", len(rejected), rejected)
	}

	second := jobs[1]
	if second.line != 3 || second.userID != "u1" {
		t.Errorf("parseReadings() second job = line %d user %s, want line 3 user u1", second.line, second.userID)
	}
	if second.reading.TimeOfDay != models.Night {
		t.Errorf("parseReadings() time of day = %v, want %v", second.reading.TimeOfDay, models.Night)
	}
	if !second.reading.Date.Equal(models.NewDate(2024, 3, 1)) {
		t.Errorf("parseReadings() date = %v, want 2024-03-01", second.reading.Date)
	}
}

func TestParseReadings_DefaultUser(t *testing.T) {
	in := "user_id,date,time_of_day,reading_kwh\n,2024-03-02,morning,1013\n"

	jobs, rejected, err := parseReadings(strings.NewReader(in), "household-7")
	if err != nil {
		t.Fatalf("parseReadings() error = %v", err)
	}
	if len(jobs) != 1 || len(rejected) != 0 {
		t.Fatalf("parseReadings() = %d jobs, %d rejected, want 1 and 0", len(jobs), len(rejected))
	}
	if jobs[0].userID != "household-7" {
		t.Errorf("parseReadings() user = %v, want household-7", jobs[0].userID)
	}
}

func TestParseReadings_BadDate(t *testing.T) {
	in := "user_id,date,time_of_day,reading_kwh\nu1,01/03/2024,morning,10\n"

	if _, _, err := parseReadings(strings.NewReader(in), ""); err == nil {
		t.Error("parseReadings() expected error for unparseable date")
	}
}
