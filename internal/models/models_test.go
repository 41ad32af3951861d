package models

import (
	"testing"
	"time"
)

func TestCredentials_GoogleLinked(t *testing.T) {
	tests := []struct {
		name     string
		creds    *Credentials
		expected bool
	}{
		{"nil record", nil, false},
		{"no refresh token", &Credentials{UserID: "u1", GoogleAccessToken: "at"}, false},
		{"refresh token present", &Credentials{UserID: "u1", GoogleRefreshToken: "rt"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.GoogleLinked(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCredentials_GoogleTokenValid(t *testing.T) {
	future := time.Now().Add(time.Hour)
	soon := time.Now().Add(30 * time.Second)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name     string
		creds    *Credentials
		expected bool
	}{
		{"no access token", &Credentials{GoogleTokenExpiry: &future}, false},
		{"no expiry treated as invalid", &Credentials{GoogleAccessToken: "at"}, false},
		{"expiry well in future", &Credentials{GoogleAccessToken: "at", GoogleTokenExpiry: &future}, true},
		{"expiry inside safety margin", &Credentials{GoogleAccessToken: "at", GoogleTokenExpiry: &soon}, false},
		{"expired", &Credentials{GoogleAccessToken: "at", GoogleTokenExpiry: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.GoogleTokenValid(60 * time.Second); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCredentials_CanvasLinked(t *testing.T) {
	if (&Credentials{CanvasDomain: "school.instructure.com"}).CanvasLinked() {
		t.Error("domain without key should not count as linked")
	}
	if !(&Credentials{CanvasDomain: "school.instructure.com", CanvasAccessToken: "key"}).CanvasLinked() {
		t.Error("domain plus key should count as linked")
	}
}
