package cache

import (
	"testing"
	"time"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/2", false},
		{"wrong-scheme", "http://localhost:6379", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	ro, err := ClientOptions(Options{URL: "redis://localhost:6379/2", ReadTimeout: time.Second})
	if err != nil {
		t.Fatalf("ClientOptions() error = %v", err)
	}
	if ro.DB != 2 {
		t.Errorf("DB = %d, want 2", ro.DB)
	}
	if ro.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want 5s", ro.DialTimeout)
	}
	if ro.ReadTimeout != time.Second {
		t.Errorf("ReadTimeout = %v, want 1s", ro.ReadTimeout)
	}
	if ro.WriteTimeout != 3*time.Second {
		t.Errorf("WriteTimeout = %v, want 3s", ro.WriteTimeout)
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	_, err := New(t.Context(), Options{URL: "redis://localhost:59999", DialTimeout: 500 * time.Millisecond})
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}
