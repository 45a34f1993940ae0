package model

import (
	"strings"
	"testing"
	"time"
)

// ==================== ApplicationID Tests ====================

func TestNewApplicationID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Valid ID", "APP001", "APP001", false},
		{"Trimmed ID", "  APP002 ", "APP002", false},
		{"Empty ID", "", "", true},
		{"Whitespace ID", "   ", "", true},
		{"Generated ID", "APP-01HX7ZK3Q2V8", "APP-01HX7ZK3Q2V8", false},
		{"Dots and underscores", "app_2024.07", "app_2024.07", false},
		{"Parent traversal", "../../escaped", "", true},
		{"Dot segment", "..", "", true},
		{"Leading dot", ".hidden", "", true},
		{"Forward slash", "APP/001", "", true},
		{"Backslash", `APP\001`, "", true},
		{"Control character", "APP\x00001", "", true},
		{"Inner space", "APP 001", "", true},
		{"Too long", strings.Repeat("A", 65), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewApplicationID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewApplicationID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && id.String() != tt.want {
				t.Errorf("Expected ID %s, got %s", tt.want, id.String())
			}
		})
	}
}

func TestApplicationID_Equals(t *testing.T) {
	id1, _ := NewApplicationID("APP001")
	id2, _ := NewApplicationID("APP001")
	id3, _ := NewApplicationID("APP002")

	if !id1.Equals(id2) {
		t.Error("Same IDs should be equal")
	}
	if id1.Equals(id3) {
		t.Error("Different IDs should not be equal")
	}
	if !(ApplicationID{}).IsZero() {
		t.Error("Zero value should report IsZero")
	}
}

// ==================== Timestamp Tests ====================

func TestTimestamp_Compare(t *testing.T) {
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	earlier := NewTimestampFromTime(base)
	later := NewTimestampFromTime(base.Add(time.Minute))

	if !earlier.Before(later) {
		t.Error("earlier should be before later")
	}
	if !later.After(earlier) {
		t.Error("later should be after earlier")
	}
	if earlier.String() != "2024-02-01T10:00:00Z" {
		t.Errorf("unexpected RFC3339 rendering: %s", earlier.String())
	}
}

func TestNewTimestampFromTime_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	ts := NewTimestampFromTime(time.Date(2024, 2, 1, 15, 30, 0, 0, loc))

	if ts.Value().Location() != time.UTC {
		t.Errorf("expected UTC, got %v", ts.Value().Location())
	}
	if ts.Value().Hour() != 10 {
		t.Errorf("expected hour 10 UTC, got %d", ts.Value().Hour())
	}
}
