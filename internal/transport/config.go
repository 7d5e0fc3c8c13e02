// Package transport models the mail transport settings handed to the
// Dispatch Service. A small preset table derives host and port from the
// selected mode so that Gmail and mock settings cannot drift.
package transport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how the Dispatch Service delivers notifications.
type Mode string

const (
	// ModeMock rehearses a dispatch; nothing is transmitted.
	ModeMock Mode = "mock"
	// ModeGmail delivers through Gmail using an app password.
	ModeGmail Mode = "gmail"
	// ModeCustom delivers through an arbitrary SMTP server.
	ModeCustom Mode = "custom"
)

// Modes lists every mode in the order offered to the user.
var Modes = []Mode{ModeMock, ModeGmail, ModeCustom}

const (
	// MockHost is the host value the Dispatch Service recognises as a
	// rehearsal.
	MockHost = "mock"
	// GmailHost is the fixed Gmail submission host.
	GmailHost = "smtp.gmail.com"
	// DefaultPort is the SMTP submission port.
	DefaultPort = 587
)

// Field names accepted by SetField.
const (
	FieldHost              = "host"
	FieldPort              = "port"
	FieldSenderUser        = "sender_user"
	FieldSenderPassword    = "sender_password"
	FieldSenderDisplayName = "sender_display_name"
)

var (
	// ErrUnknownMode is returned for a mode outside Modes.
	ErrUnknownMode = errors.New("unknown transport mode")
	// ErrUnknownField is returned by SetField for an unrecognised key.
	ErrUnknownField = errors.New("unknown transport field")
	// ErrHostLocked is returned when the host is edited outside custom mode.
	ErrHostLocked = errors.New("host is fixed by the selected mode")
)

// ParseMode converts s to a Mode, ignoring case and surrounding space.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Label returns the menu label for the mode.
func (m Mode) Label() string {
	switch m {
	case ModeMock:
		return "Mock (no email is sent)"
	case ModeGmail:
		return "Gmail"
	case ModeCustom:
		return "Custom SMTP"
	default:
		return string(m)
	}
}

// Preset is the host and port a mode imposes.
type Preset struct {
	Host string
	// Port is nil when the mode keeps the current port.
	Port *int
	// HostLocked means the host may not be edited while the mode is active.
	HostLocked bool
}

// PresetFor returns the preset for mode. Unknown modes report false.
func PresetFor(mode Mode) (Preset, bool) {
	port := DefaultPort
	switch mode {
	case ModeMock:
		return Preset{Host: MockHost, HostLocked: true}, true
	case ModeGmail:
		return Preset{Host: GmailHost, Port: &port, HostLocked: true}, true
	case ModeCustom:
		return Preset{Host: "", Port: &port}, true
	default:
		return Preset{}, false
	}
}

// Config holds the mutable transport settings for a session.
type Config struct {
	Mode              Mode
	Host              string
	Port              int
	SenderUser        string
	SenderPassword    string
	SenderDisplayName string
}

// Default returns the startup configuration: mock mode on the submission
// port with the given display name.
func Default(displayName string) Config {
	return Config{
		Mode:              ModeMock,
		Host:              MockHost,
		Port:              DefaultPort,
		SenderDisplayName: displayName,
	}
}

// SetMode switches mode and applies its preset in one step.
func (c *Config) SetMode(mode Mode) error {
	preset, ok := PresetFor(mode)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	c.Mode = mode
	c.Host = preset.Host
	if preset.Port != nil {
		c.Port = *preset.Port
	}
	return nil
}

// SetField overwrites a single field. The port is coerced with CoercePort.
func (c *Config) SetField(key, value string) error {
	switch key {
	case FieldHost:
		if c.HostLocked() {
			return fmt.Errorf("%w: %s", ErrHostLocked, c.Mode)
		}
		c.Host = value
	case FieldPort:
		c.Port = CoercePort(value)
	case FieldSenderUser:
		c.SenderUser = value
	case FieldSenderPassword:
		c.SenderPassword = value
	case FieldSenderDisplayName:
		c.SenderDisplayName = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return nil
}

// HostLocked reports whether the active mode fixes the host.
func (c Config) HostLocked() bool {
	preset, ok := PresetFor(c.Mode)
	return !ok || preset.HostLocked
}

// IsMock reports whether dispatching with c transmits nothing.
func (c Config) IsMock() bool {
	return c.Mode == ModeMock
}

// Address returns host:port.
func (c Config) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Problems lists settings that will probably make a real dispatch fail.
// They are advisory and never block a dispatch.
func (c Config) Problems() []string {
	if c.IsMock() {
		return nil
	}
	var problems []string
	if strings.TrimSpace(c.Host) == "" {
		problems = append(problems, "SMTP host is empty")
	}
	if c.Port == 0 {
		problems = append(problems, "SMTP port is 0")
	}
	if strings.TrimSpace(c.SenderUser) == "" {
		problems = append(problems, "sender account is empty")
	}
	if c.SenderPassword == "" {
		problems = append(problems, "sender password is empty")
	}
	return problems
}

// Redacted returns a copy with the password masked, for logging.
func (c Config) Redacted() Config {
	if c.SenderPassword != "" {
		c.SenderPassword = "********"
	}
	return c
}

// Wire is the transport config as the Dispatch Service reads it.
type Wire struct {
	Mode       Mode   `json:"mode"`
	Server     string `json:"smtp_server"`
	Port       int    `json:"smtp_port"`
	User       string `json:"smtp_user"`
	Password   string `json:"smtp_password"`
	SenderName string `json:"sender_name"`
}

// Wire converts c to its wire form. The preset host is enforced for mock
// and gmail so the service can never be pointed at a real server while a
// rehearsal is selected.
func (c Config) Wire() Wire {
	w := Wire{
		Mode:       c.Mode,
		Server:     c.Host,
		Port:       c.Port,
		User:       c.SenderUser,
		Password:   c.SenderPassword,
		SenderName: c.SenderDisplayName,
	}
	if preset, ok := PresetFor(c.Mode); ok && preset.HostLocked {
		w.Server = preset.Host
		if preset.Port != nil {
			w.Port = *preset.Port
		}
	}
	return w
}

// CoercePort parses the leading decimal digits of s. Empty, unparseable
// and negative input yields 0.
func CoercePort(s string) int {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
