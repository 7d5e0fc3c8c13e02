package transport_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nhle/subnotify/internal/transport"
)

func TestSetModeAppliesPreset(t *testing.T) {
	tests := []struct {
		name     string
		start    transport.Config
		mode     transport.Mode
		wantHost string
		wantPort int
	}{
		{
			name:     "gmail overrides custom host and port",
			start:    transport.Config{Mode: transport.ModeCustom, Host: "mail.school.edu", Port: 2525},
			mode:     transport.ModeGmail,
			wantHost: "smtp.gmail.com",
			wantPort: 587,
		},
		{
			name:     "custom clears host",
			start:    transport.Config{Mode: transport.ModeGmail, Host: "smtp.gmail.com", Port: 587},
			mode:     transport.ModeCustom,
			wantHost: "",
			wantPort: 587,
		},
		{
			name:     "custom from mock resets port",
			start:    transport.Config{Mode: transport.ModeMock, Host: "mock", Port: 25},
			mode:     transport.ModeCustom,
			wantHost: "",
			wantPort: 587,
		},
		{
			name:     "mock keeps port",
			start:    transport.Config{Mode: transport.ModeCustom, Host: "mail.school.edu", Port: 2525},
			mode:     transport.ModeMock,
			wantHost: "mock",
			wantPort: 2525,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.start
			if err := cfg.SetMode(tt.mode); err != nil {
				t.Fatalf("SetMode(%s): %v", tt.mode, err)
			}
			if cfg.Mode != tt.mode {
				t.Errorf("Mode = %s, want %s", cfg.Mode, tt.mode)
			}
			if cfg.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", cfg.Host, tt.wantHost)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.wantPort)
			}
		})
	}
}

func TestSetModeRejectsUnknown(t *testing.T) {
	cfg := transport.Default("Office")
	err := cfg.SetMode("carrier-pigeon")
	if !errors.Is(err, transport.ErrUnknownMode) {
		t.Fatalf("err = %v, want ErrUnknownMode", err)
	}
	if cfg.Mode != transport.ModeMock || cfg.Host != "mock" {
		t.Errorf("config changed after rejected mode: %+v", cfg)
	}
}

func TestSetField(t *testing.T) {
	cfg := transport.Default("Office")

	if err := cfg.SetField(transport.FieldHost, "mail.example.com"); !errors.Is(err, transport.ErrHostLocked) {
		t.Errorf("host edit in mock mode err = %v, want ErrHostLocked", err)
	}

	if err := cfg.SetMode(transport.ModeGmail); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetField(transport.FieldHost, "mail.example.com"); !errors.Is(err, transport.ErrHostLocked) {
		t.Errorf("host edit in gmail mode err = %v, want ErrHostLocked", err)
	}
	if cfg.Host != "smtp.gmail.com" {
		t.Errorf("Host = %q after rejected edit", cfg.Host)
	}

	if err := cfg.SetMode(transport.ModeCustom); err != nil {
		t.Fatal(err)
	}
	fields := map[string]string{
		transport.FieldHost:              "mail.example.com",
		transport.FieldPort:              "2525",
		transport.FieldSenderUser:        "office@example.com",
		transport.FieldSenderPassword:    "secret",
		transport.FieldSenderDisplayName: "Academic Office",
	}
	for k, v := range fields {
		if err := cfg.SetField(k, v); err != nil {
			t.Fatalf("SetField(%s): %v", k, err)
		}
	}
	want := transport.Config{
		Mode:              transport.ModeCustom,
		Host:              "mail.example.com",
		Port:              2525,
		SenderUser:        "office@example.com",
		SenderPassword:    "secret",
		SenderDisplayName: "Academic Office",
	}
	if cfg != want {
		t.Errorf("config = %+v, want %+v", cfg, want)
	}

	if err := cfg.SetField("tls", "on"); !errors.Is(err, transport.ErrUnknownField) {
		t.Errorf("unknown field err = %v, want ErrUnknownField", err)
	}
}

func TestCoercePort(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"587", 587},
		{" 465 ", 465},
		{"25abc", 25},
		{"+2525", 2525},
		{"", 0},
		{"abc", 0},
		{"-25", 0},
		{"3.5", 3},
		{"99999999999999999999999", 0},
	}
	for _, tt := range tests {
		if got := transport.CoercePort(tt.in); got != tt.want {
			t.Errorf("CoercePort(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWireEnforcesPreset(t *testing.T) {
	cfg := transport.Config{
		Mode:              transport.ModeMock,
		Host:              "smtp.real.example",
		Port:              25,
		SenderUser:        "office@example.com",
		SenderPassword:    "pw",
		SenderDisplayName: "Office",
	}
	w := cfg.Wire()
	if w.Server != "mock" {
		t.Errorf("mock wire server = %q, want mock", w.Server)
	}
	if w.Port != 25 {
		t.Errorf("mock wire port = %d, want 25", w.Port)
	}

	cfg.Mode = transport.ModeGmail
	cfg.Port = 2525
	w = cfg.Wire()
	if w.Server != "smtp.gmail.com" || w.Port != 587 {
		t.Errorf("gmail wire = %s:%d, want smtp.gmail.com:587", w.Server, w.Port)
	}

	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"smtp_server", "smtp_port", "smtp_user", "smtp_password", "sender_name", "mode"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("wire JSON missing %q: %s", key, data)
		}
	}
}

func TestProblems(t *testing.T) {
	cfg := transport.Default("Office")
	if p := cfg.Problems(); len(p) != 0 {
		t.Errorf("mock config problems = %v, want none", p)
	}

	if err := cfg.SetMode(transport.ModeCustom); err != nil {
		t.Fatal(err)
	}
	if p := cfg.Problems(); len(p) != 3 {
		t.Errorf("empty custom config problems = %v, want host, sender and password", p)
	}

	cfg.Host = "mail.example.com"
	cfg.SenderUser = "office@example.com"
	cfg.SenderPassword = "pw"
	if p := cfg.Problems(); len(p) != 0 {
		t.Errorf("complete config problems = %v", p)
	}
}

func TestRedacted(t *testing.T) {
	cfg := transport.Config{SenderPassword: "hunter2"}
	if got := cfg.Redacted().SenderPassword; got == "hunter2" {
		t.Error("Redacted should mask the password")
	}
	if cfg.SenderPassword != "hunter2" {
		t.Error("Redacted must not modify the receiver")
	}
}
