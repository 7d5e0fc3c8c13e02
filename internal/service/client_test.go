package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/service"
	"github.com/nhle/subnotify/internal/slots"
	"github.com/nhle/subnotify/internal/transport"
)

func blobs() (*slots.Blob, *slots.Blob) {
	return &slots.Blob{Name: "roster.xlsx", Size: 6, Data: []byte("roster")},
		&slots.Blob{Name: "notices.xlsx", Size: 7, Data: []byte("notices")}
}

func TestPreviewSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/preview" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		for field, want := range map[string]string{
			"teacher_file": "roster",
			"sub_file":     "notices",
		} {
			f, hdr, err := r.FormFile(field)
			if err != nil {
				t.Errorf("FormFile(%s): %v", field, err)
				continue
			}
			data, _ := io.ReadAll(f)
			f.Close()
			if string(data) != want {
				t.Errorf("%s = %q, want %q", field, data, want)
			}
			if hdr.Filename == "" {
				t.Errorf("%s has no filename", field)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"teacher_name":"Wang","email":"w@school.edu","data_rows":[{"date":"3/4","period":"2","cls":"701","course":"Math","type":"sub","original_teacher":"Chen","sub_teacher":"Wang","original_date":null,"original_period":null}]},
			{"teacher_name":"Li","email":null,"data_rows":[{"date":"3/5","period":"1","cls":"702","course":"Art","type":"swap","original_teacher":"Li","sub_teacher":"Zhao","original_date":"3/8","original_period":"4"}]}
		]`)
	}))
	defer srv.Close()

	teacher, sub := blobs()
	items, err := service.NewClient(srv.URL+"/").Preview(context.Background(), teacher, sub)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].TeacherName != "Wang" || items[0].Address() != "w@school.edu" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Email != nil {
		t.Errorf("null email should decode to nil, got %q", *items[1].Email)
	}
	if got := items[1].DataRows[0].OriginalSlot(); got != "3/8(4)" {
		t.Errorf("OriginalSlot = %q, want 3/8(4)", got)
	}
	if items[0].DataRows[0].IsSwap() {
		t.Error("row with null original date should not be a swap")
	}
}

func TestPreviewErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantStatus bool
		wantDecode bool
	}{
		{name: "detail string", status: 400, body: `{"detail":"Missing column: Email"}`, wantDetail: "Missing column: Email", wantStatus: true},
		{name: "no detail", status: 500, body: `{"error":"boom"}`, wantStatus: true},
		{name: "detail not a string", status: 422, body: `{"detail":[{"loc":["body"],"msg":"field required"}]}`, wantStatus: true},
		{name: "html body", status: 502, body: `<html>Bad Gateway</html>`, wantStatus: true},
		{name: "malformed success", status: 200, body: `{"oops":`, wantDecode: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			teacher, sub := blobs()
			_, err := service.NewClient(srv.URL).Preview(context.Background(), teacher, sub)
			if err == nil {
				t.Fatal("expected error")
			}

			statusErr, ok := service.AsStatusError(err)
			if ok != tt.wantStatus {
				t.Fatalf("AsStatusError ok = %v, want %v (err %v)", ok, tt.wantStatus, err)
			}
			if ok {
				if statusErr.StatusCode != tt.status {
					t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, tt.status)
				}
				if statusErr.Detail != tt.wantDetail {
					t.Errorf("Detail = %q, want %q", statusErr.Detail, tt.wantDetail)
				}
			}
			if got := errors.Is(err, service.ErrMalformedResponse); got != tt.wantDecode {
				t.Errorf("ErrMalformedResponse = %v, want %v", got, tt.wantDecode)
			}
		})
	}
}

func TestPreviewConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	teacher, sub := blobs()
	_, err := service.NewClient(url).Preview(context.Background(), teacher, sub)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if _, ok := service.AsStatusError(err); ok {
		t.Error("connection failures must not be StatusErrors")
	}
}

func TestPreviewRejectsEmptySlot(t *testing.T) {
	teacher, _ := blobs()
	if _, err := service.NewClient("http://127.0.0.1:1").Preview(context.Background(), teacher, nil); err == nil {
		t.Fatal("expected error for missing sub file")
	}
}

func TestSendPostsConfigAndNotifications(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `[
			{"teacher_name":"Li","status":"no_email","message":"skipped"},
			{"teacher_name":"Wang","status":"success"}
		]`)
	}))
	defer srv.Close()

	cfg := transport.Default("Office")
	items := []model.PreviewItem{
		{TeacherName: "Li", DataRows: []model.NotificationRow{{Date: "3/4"}}},
		{TeacherName: "Wang", Email: model.StringPtr("w@school.edu"), DataRows: []model.NotificationRow{{Date: "3/5"}}},
	}

	results, err := service.NewClient(srv.URL).Send(context.Background(), cfg.Wire(), items)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(results) != 2 || results[0].Status != model.StatusNoEmail || results[1].Status != model.StatusSuccess {
		t.Errorf("results = %+v", results)
	}

	var wire transport.Wire
	if err := json.Unmarshal(got["config"], &wire); err != nil {
		t.Fatalf("config: %v", err)
	}
	if wire.Server != "mock" || wire.Port != 587 || wire.SenderName != "Office" {
		t.Errorf("config = %+v", wire)
	}

	var sent []map[string]json.RawMessage
	if err := json.Unmarshal(got["notifications"], &sent); err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("sent %d notifications, want the full dataset of 2", len(sent))
	}
	if string(sent[0]["email"]) != "null" {
		t.Errorf("absent email should be sent as null, got %s", sent[0]["email"])
	}
}

func TestSendNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := service.NewClient(srv.URL).Send(context.Background(), transport.Default("").Wire(), nil)
	statusErr, ok := service.AsStatusError(err)
	if !ok {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.Op != service.OpSend || statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusError = %+v", statusErr)
	}
}

func TestSendMalformedSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>gateway</html>"))
	}))
	defer srv.Close()

	results, err := service.NewClient(srv.URL).Send(context.Background(), transport.Default("").Wire(), nil)
	if !errors.Is(err, service.ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
	if _, ok := service.AsStatusError(err); ok {
		t.Error("a 200 response must not be reported as a StatusError")
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}
