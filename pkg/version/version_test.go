package version

import (
	"strings"
	"testing"
	"time"
)

func TestGetBuildInfo_Defaults(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should not be empty")
	}
	if info.Platform == "" {
		t.Error("Platform should not be empty")
	}
	if !info.BuildTime.IsZero() {
		t.Error("BuildTime should be zero for an unparseable build date")
	}
}

func TestGetBuildInfo_ParsesValidDate(t *testing.T) {
	originalBuildDate := BuildDate
	defer func() { BuildDate = originalBuildDate }()

	validDate := "2026-01-13T20:00:00Z"
	BuildDate = validDate

	info := GetBuildInfo()

	expectedTime, _ := time.Parse(time.RFC3339, validDate)
	if !info.BuildTime.Equal(expectedTime) {
		t.Errorf("BuildTime = %v, want %v", info.BuildTime, expectedTime)
	}
}

func TestBuildInfoStringAndUserAgent(t *testing.T) {
	originalVersion := Version
	defer func() { Version = originalVersion }()
	Version = "1.2.3"

	if got := GetBuildInfo().String(); !strings.HasPrefix(got, "forwarder 1.2.3 ") {
		t.Errorf("String() = %q", got)
	}
	if got := UserAgent(); got != "auditlog-forwarder/1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
}
