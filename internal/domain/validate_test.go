package domain

import (
	"errors"
	"testing"
	"time"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		url     string
		want    Input
		wantErr error
		wantMsg string
	}{
		{
			name:  "valid https",
			title: "Example",
			url:   "https://example.com",
			want:  Input{Title: "Example", URL: "https://example.com"},
		},
		{
			name:  "trims surrounding whitespace",
			title: "  Go docs \t",
			url:   "\n http://go.dev ",
			want:  Input{Title: "Go docs", URL: "http://go.dev"},
		},
		{
			name:    "empty title",
			title:   "",
			url:     "https://x.com",
			wantErr: ErrFieldsRequired,
			wantMsg: MsgFieldsRequired,
		},
		{
			name:    "whitespace only url",
			title:   "x",
			url:     "   ",
			wantErr: ErrFieldsRequired,
			wantMsg: MsgFieldsRequired,
		},
		{
			name:    "missing scheme",
			title:   "x",
			url:     "example.com",
			wantErr: ErrInvalidURL,
			wantMsg: MsgInvalidURL,
		},
		{
			name:    "ftp scheme",
			title:   "x",
			url:     "ftp://example.com",
			wantErr: ErrInvalidURL,
			wantMsg: MsgInvalidURL,
		},
		{
			name:    "uppercase scheme is not accepted",
			title:   "x",
			url:     "HTTPS://example.com",
			wantErr: ErrInvalidURL,
			wantMsg: MsgInvalidURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateInput(tt.title, tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateInput() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("ValidateInput() = %+v, want %+v", got, tt.want)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateInput() error = %v, want %v", err, tt.wantErr)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("ValidateInput() error type = %T, want *ValidationError", err)
			}
			if vErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", vErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestSessionValid(t *testing.T) {
	now := time.Now()

	var nilSession *Session
	if nilSession.Valid(now) {
		t.Error("nil session should not be valid")
	}

	s := &Session{UserID: "u1", AccessToken: "tok"}
	if !s.Valid(now) {
		t.Error("session without expiry should be valid")
	}

	s.ExpiresAt = now.Add(-time.Second)
	if s.Valid(now) {
		t.Error("expired session should not be valid")
	}

	c := s.Clone()
	c.UserID = "other"
	if s.UserID != "u1" {
		t.Error("Clone() should not share state")
	}
}
