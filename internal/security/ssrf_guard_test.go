package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_Timeout(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(3 * time.Second)

	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want %v", client.Timeout, 3*time.Second)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected a custom Transport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(2 * time.Second)

	resp, err := client.Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("ループバックへのリクエストがブロックされなかった")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"neynar", "https://api.neynar.com/v2/farcaster", false},
		{"http", "http://example.com/channels.xml", false},
		{"empty", "", true},
		{"ftp", "ftp://example.com/feed", true},
		{"localhost", "http://localhost:8080", true},
		{"loopback", "http://127.0.0.1/", true},
		{"private", "https://10.1.2.3/api", true},
		{"metadata", "http://169.254.169.254/latest/meta-data", true},
		{"ipv6 loopback", "http://[::1]/", true},
		{"mapped loopback", "http://[::ffff:127.0.0.1]/", true},
		{"no host", "https:///path", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
