package compose_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/subnotify/internal/compose"
	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/transport"
)

func sampleItem() model.PreviewItem {
	return model.PreviewItem{
		TeacherName: "Wang",
		Email:       model.StringPtr("wang@school.edu"),
		DataRows: []model.NotificationRow{
			{Date: "2024/01/01", Period: "1", Class: "801", Course: "Chinese", Type: "official leave", OriginalTeacher: "Wang", SubTeacher: "Li"},
			{Date: "2024/01/02", Period: "3", Class: "802", Course: "Math", Type: "swap", OriginalTeacher: "Chen", SubTeacher: "Wang",
				OriginalDate: model.StringPtr("2024/01/05"), OriginalPeriod: model.StringPtr("4")},
		},
	}
}

func TestBody(t *testing.T) {
	body := compose.Body(sampleItem(), "Academic Office")

	for _, want := range []string{
		"Dear Wang,",
		"801",
		"Chinese",
		"Wang / Li",
		"2024/01/05(4)",
		compose.Footer,
		"Academic Office",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestTableNonSwapShowsDash(t *testing.T) {
	out := compose.Table(sampleItem().DataRows[:1])
	if !strings.Contains(out, " - ") {
		t.Errorf("non-swap row should show '-' as original slot:\n%s", out)
	}
}

func TestWriteEML(t *testing.T) {
	cfg := transport.Default("Academic Office")
	cfg.SenderUser = "office@school.edu"
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := compose.WriteEML(&buf, sampleItem(), cfg, now); err != nil {
		t.Fatalf("WriteEML: %v", err)
	}

	mr, err := mail.CreateReader(&buf)
	if err != nil {
		t.Fatalf("reading message: %v", err)
	}
	subject, err := mr.Header.Subject()
	if err != nil || subject != compose.Subject("Wang") {
		t.Errorf("subject = %q (%v)", subject, err)
	}
	to, err := mr.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "wang@school.edu" {
		t.Errorf("to = %v (%v)", to, err)
	}
	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Name != "Academic Office" {
		t.Errorf("from = %v (%v)", from, err)
	}

	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("NextPart: %v", err)
	}
	body, _ := io.ReadAll(part.Body)
	if !strings.Contains(string(body), "Dear Wang,") {
		t.Errorf("body = %q", body)
	}
}

func TestExportEML(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	item := sampleItem()
	item.TeacherName = "Wang/Senior"

	path, err := compose.ExportEML(dir, item, transport.Default("Office"))
	if err != nil {
		t.Fatalf("ExportEML: %v", err)
	}
	if filepath.Base(path) != "Wang_Senior.eml" {
		t.Errorf("path = %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("exported file: %v", err)
	}
}
