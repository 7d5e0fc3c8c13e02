package credential

import "testing"

func TestSMTPKey(t *testing.T) {
	tests := []struct {
		user string
		want string
	}{
		{"office@school.edu", "smtp:office@school.edu"},
		{"  Office@School.edu ", "smtp:office@school.edu"},
	}
	for _, tt := range tests {
		if got := SMTPKey(tt.user); got != tt.want {
			t.Errorf("SMTPKey(%q) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestSenderPasswordWithoutUser(t *testing.T) {
	pw, err := SenderPassword("  ")
	if err != nil || pw != "" {
		t.Errorf("SenderPassword(blank) = %q, %v; want empty without error", pw, err)
	}
}
