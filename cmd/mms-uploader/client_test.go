package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tddf/ping" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "service": "tddf"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	result, err := c.Ping()
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if result.KeyValid {
		t.Error("KeyValid should be false without an API key")
	}
}

func TestClientPingValidatesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tddf/ping":
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		case "/tddf/batch-status":
			if r.Header.Get("X-API-Key") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true, "pending_lines": 0, "file_statuses": map[string]int{},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	valid := NewClient(srv.URL, "secret")
	result, err := valid.Ping()
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if !result.KeyValid {
		t.Error("KeyValid should be true for the correct key")
	}

	invalid := NewClient(srv.URL, "wrong")
	result, err = invalid.Ping()
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if result.KeyValid {
		t.Error("KeyValid should be false for a rejected key")
	}
}

func TestClientQueueStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":       true,
			"pending_lines": 42,
			"file_statuses": map[string]int{"queued": 2, "completed": 10},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	status, err := c.QueueStatus()
	if err != nil {
		t.Fatalf("QueueStatus failed: %v", err)
	}
	if status.PendingLines != 42 {
		t.Errorf("PendingLines = %d, want 42", status.PendingLines)
	}
	if status.FileStatuses["completed"] != 10 {
		t.Errorf("FileStatuses = %v", status.FileStatuses)
	}

	bad := NewClient(srv.URL, "wrong")
	if _, err := bad.QueueStatus(); err == nil {
		t.Error("QueueStatus should fail with a rejected key")
	}
}

func TestClientUploadFile(t *testing.T) {
	var gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tddf/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing multipart file field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "rows_stored": 3})
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "TDDF_20250115.txt.uploading")
	if err := os.WriteFile(path, []byte("line one\nline two\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewClient(srv.URL, "secret")
	// the claimed name carries the .uploading suffix; the display name must not
	if err := c.UploadFile(path, "TDDF_20250115.txt"); err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}
	if gotFilename != "TDDF_20250115.txt" {
		t.Errorf("uploaded filename = %q, want original name without claim suffix", gotFilename)
	}
}

func TestClientUploadFileDuplicateIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "dup.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewClient(srv.URL, "secret")
	if err := c.UploadFile(path, "dup.txt"); err != nil {
		t.Errorf("HTTP 409 should count as success, got %v", err)
	}
}

func TestClientUploadFileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewClient(srv.URL, "secret")
	if err := c.UploadFile(path, "bad.txt"); err == nil {
		t.Error("UploadFile should fail on HTTP 500")
	}
}
