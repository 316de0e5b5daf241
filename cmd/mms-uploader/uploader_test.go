package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestUploader(t *testing.T) *Uploader {
	t.Helper()
	u, err := NewUploader(NewClient("http://localhost:0", ""), t.TempDir(), 5, 0)
	if err != nil {
		t.Fatalf("NewUploader failed: %v", err)
	}
	return u
}

func writeInboxFile(t *testing.T, u *Uploader, name string) string {
	t.Helper()
	path := filepath.Join(u.inbox, name)
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanInbox(t *testing.T) {
	u := newTestUploader(t)
	writeInboxFile(t, u, "b_second.txt")
	writeInboxFile(t, u, "a_first.txt")
	writeInboxFile(t, u, ".DS_Store")
	writeInboxFile(t, u, "claimed.txt.uploading")
	if err := os.Mkdir(filepath.Join(u.inbox, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := u.scanInbox()
	if err != nil {
		t.Fatalf("scanInbox failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(files), files)
	}
	// sorted, dotfiles / claimed files / directories excluded
	if filepath.Base(files[0]) != "a_first.txt" || filepath.Base(files[1]) != "b_second.txt" {
		t.Errorf("unexpected order: %v", files)
	}
}

func TestClaimAndUnclaimFile(t *testing.T) {
	u := newTestUploader(t)
	path := writeInboxFile(t, u, "batch.txt")

	claimed := u.claimFile(path)
	if claimed != path+uploadingExtension {
		t.Fatalf("claimed = %q", claimed)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original should be gone after claim")
	}

	// a second claim of the same file loses the race
	if got := u.claimFile(path); got != "" {
		t.Errorf("second claim should return empty, got %q", got)
	}

	u.unclaimFile(claimed)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("original should be restored after unclaim: %v", err)
	}
}

func TestMoveToProcessed(t *testing.T) {
	u := newTestUploader(t)
	claimed := u.claimFile(writeInboxFile(t, u, "done.txt"))

	u.moveToProcessed(claimed)
	if _, err := os.Stat(filepath.Join(u.processed, "done.txt")); err != nil {
		t.Errorf("file should land in processed without claim suffix: %v", err)
	}
}

func TestUniqueDestination(t *testing.T) {
	dir := t.TempDir()

	first := uniqueDestination(dir, "report.txt")
	if first != filepath.Join(dir, "report.txt") {
		t.Errorf("first = %q", first)
	}
	if err := os.WriteFile(first, nil, 0644); err != nil {
		t.Fatal(err)
	}

	second := uniqueDestination(dir, "report.txt")
	if second != filepath.Join(dir, "report_1.txt") {
		t.Errorf("second = %q", second)
	}
	if err := os.WriteFile(second, nil, 0644); err != nil {
		t.Fatal(err)
	}

	third := uniqueDestination(dir, "report.txt")
	if third != filepath.Join(dir, "report_2.txt") {
		t.Errorf("third = %q", third)
	}
}

func TestInstanceLock(t *testing.T) {
	dir := t.TempDir()
	lock := newInstanceLock(filepath.Join(dir, lockFileName))

	if err := lock.Acquire(); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := lock.Acquire(); err == nil {
		t.Error("second Acquire should fail while lock is held")
	}
	lock.Release()
	if err := lock.Acquire(); err != nil {
		t.Errorf("Acquire after Release failed: %v", err)
	}
	lock.Release()
}

func TestInstanceLockBreaksStale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, lockFileName)
	stale := lockInfo{Hostname: "old-host", PID: 999, StartedAt: time.Now().Add(-time.Hour)}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	lock := newInstanceLock(path)
	if err := lock.Acquire(); err != nil {
		t.Errorf("stale lock should be broken, got %v", err)
	}
	lock.Release()
}

func TestSaveReport(t *testing.T) {
	u := newTestUploader(t)
	report := &Report{
		Successful: 2,
		Failed:     1,
		Files: []FileResult{
			{Name: "a.txt", Status: "success"},
			{Name: "b.txt", Status: "success"},
			{Name: "c.txt", Status: "failed"},
		},
	}
	u.saveReport(report)

	entries, err := os.ReadDir(u.logs)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d report files, want 1", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(u.logs, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	var loaded Report
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if loaded.Successful != 2 || loaded.Failed != 1 || len(loaded.Files) != 3 {
		t.Errorf("round-tripped report = %+v", loaded)
	}
}
