package settings

import (
	"testing"

	"github.com/nhle/subnotify/internal/transport"
)

func TestSubmissionApplyGmailIgnoresHost(t *testing.T) {
	c := transport.Default("Office")
	sub := Submission{
		Mode:        transport.ModeGmail,
		Host:        "smtp.elsewhere.example",
		Port:        "25",
		User:        " office@gmail.com ",
		Password:    "abcdabcdabcdabcd",
		DisplayName: "Academic Affairs",
	}
	if err := sub.Apply(&c); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if c.Host != transport.GmailHost {
		t.Errorf("expected host %q, got %q", transport.GmailHost, c.Host)
	}
	if c.Port != transport.DefaultPort {
		t.Errorf("expected port %d, got %d", transport.DefaultPort, c.Port)
	}
	if c.SenderUser != "office@gmail.com" {
		t.Errorf("expected trimmed user, got %q", c.SenderUser)
	}
	if c.SenderDisplayName != "Academic Affairs" {
		t.Errorf("unexpected display name %q", c.SenderDisplayName)
	}
}

func TestSubmissionApplyCustom(t *testing.T) {
	c := transport.Default("Office")
	sub := Submission{
		Mode: transport.ModeCustom,
		Host: "mail.school.edu",
		Port: "465",
		User: "office",
	}
	if err := sub.Apply(&c); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if c.Host != "mail.school.edu" || c.Port != 465 {
		t.Errorf("unexpected server %s:%d", c.Host, c.Port)
	}
	if c.IsMock() {
		t.Error("custom mode must not be mock")
	}
}

func TestSubmissionApplyUnknownMode(t *testing.T) {
	c := transport.Default("Office")
	if err := (Submission{Mode: "pigeon"}).Apply(&c); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if c.Mode != transport.ModeMock {
		t.Errorf("mode changed to %q", c.Mode)
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"587", false},
		{" 2525 ", false},
		{"0", true},
		{"abc", true},
		{"", true},
	}
	for _, tt := range tests {
		err := validatePort(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("validatePort(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
