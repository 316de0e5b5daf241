package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	inboxFolder     = "inbox"
	logsFolder      = "logs"
	processedFolder = "processed"

	uploadingExtension = ".uploading"
)

// FileResult records the outcome for one inbox file.
type FileResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // success | failed | skipped
}

// Report summarizes one upload run; it is printed and saved as JSON in the
// logs folder.
type Report struct {
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Files      []FileResult `json:"files"`
	Error      string       `json:"error,omitempty"`
}

// Uploader drains the inbox folder into the server.
type Uploader struct {
	client          *Client
	baseFolder      string
	inbox           string
	logs            string
	processed       string
	batchSize       int
	pollingInterval time.Duration
	lock            *instanceLock
}

func NewUploader(client *Client, baseFolder string, batchSize, pollingIntervalSecs int) (*Uploader, error) {
	u := &Uploader{
		client:          client,
		baseFolder:      baseFolder,
		inbox:           filepath.Join(baseFolder, inboxFolder),
		logs:            filepath.Join(baseFolder, logsFolder),
		processed:       filepath.Join(baseFolder, processedFolder),
		batchSize:       batchSize,
		pollingInterval: time.Duration(pollingIntervalSecs) * time.Second,
	}
	for _, dir := range []string{u.inbox, u.logs, u.processed} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create folder %s: %w", dir, err)
		}
	}
	u.lock = newInstanceLock(filepath.Join(baseFolder, lockFileName))
	return u, nil
}

// scanInbox lists uploadable files, skipping dotfiles and files already
// claimed by another instance.
func (u *Uploader) scanInbox() ([]string, error) {
	entries, err := os.ReadDir(u.inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to scan inbox %s: %w", u.inbox, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, uploadingExtension) {
			continue
		}
		files = append(files, filepath.Join(u.inbox, name))
	}
	sort.Strings(files)
	return files, nil
}

// claimFile renames a file to <name>.uploading so concurrent runs do not pick
// it up. Returns "" when another instance claimed it first.
func (u *Uploader) claimFile(path string) string {
	claimed := path + uploadingExtension
	if err := os.Rename(path, claimed); err != nil {
		return ""
	}
	return claimed
}

func (u *Uploader) unclaimFile(claimed string) {
	original := strings.TrimSuffix(claimed, uploadingExtension)
	if err := os.Rename(claimed, original); err != nil {
		log.Printf("ERROR: Failed to unclaim %s: %v", claimed, err)
	}
}

// moveToProcessed moves an uploaded file out of the inbox, deduplicating the
// destination name when needed.
func (u *Uploader) moveToProcessed(claimed string) {
	name := strings.TrimSuffix(filepath.Base(claimed), uploadingExtension)
	dest := uniqueDestination(u.processed, name)
	if err := os.Rename(claimed, dest); err != nil {
		log.Printf("ERROR: Failed to move %s to processed: %v", claimed, err)
		u.unclaimFile(claimed)
	}
}

func uniqueDestination(folder, name string) string {
	dest := filepath.Join(folder, name)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(folder, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// uploadSingleFile uploads one claimed file with retries and exponential
// backoff between attempts.
func (u *Uploader) uploadSingleFile(claimed string, index, total int) bool {
	displayName := strings.TrimSuffix(filepath.Base(claimed), uploadingExtension)
	fmt.Printf("  [%d/%d] %s\n", index, total, displayName)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		start := time.Now()
		err := u.client.UploadFile(claimed, displayName)
		if err == nil {
			fmt.Printf("      uploaded in %s\n", time.Since(start).Round(time.Millisecond))
			return true
		}
		log.Printf("ERROR: Upload of %s failed (attempt %d/%d): %v", displayName, attempt, maxRetries, err)
		if attempt < maxRetries {
			wait := time.Duration(1<<attempt) * time.Second
			fmt.Printf("      retrying in %s...\n", wait)
			time.Sleep(wait)
		}
	}
	return false
}

// UploadBatch uploads every file in the inbox, moving successes to the
// processed folder and leaving failures behind for the next run.
func (u *Uploader) UploadBatch() *Report {
	fmt.Printf("MMS Batch Uploader v%s\n", version)

	report := &Report{Files: []FileResult{}}

	if err := u.lock.Acquire(); err != nil {
		report.Error = err.Error()
		fmt.Printf("Another uploader instance is running: %v\n", err)
		return report
	}
	defer u.lock.Release()

	files, err := u.scanInbox()
	if err != nil {
		report.Error = err.Error()
		return report
	}
	if len(files) == 0 {
		fmt.Printf("No files in inbox folder: %s\n", u.inbox)
		u.saveReport(report)
		return report
	}
	fmt.Printf("Found %d file(s) in %s\n", len(files), u.inbox)

	if !u.client.WakeupServer() {
		report.Error = "server unavailable"
		report.Failed = len(files)
		fmt.Println("Cannot proceed, server not responding")
		u.saveReport(report)
		return report
	}

	for i, path := range files {
		name := filepath.Base(path)
		claimed := u.claimFile(path)
		if claimed == "" {
			report.Skipped++
			report.Files = append(report.Files, FileResult{Name: name, Status: "skipped"})
			continue
		}
		if u.uploadSingleFile(claimed, i+1, len(files)) {
			u.moveToProcessed(claimed)
			report.Successful++
			report.Files = append(report.Files, FileResult{Name: name, Status: "success"})
		} else {
			u.unclaimFile(claimed)
			report.Failed++
			report.Files = append(report.Files, FileResult{Name: name, Status: "failed"})
		}

		// Pace batches so the server can drain its pending backlog.
		if u.batchSize > 0 && (i+1)%u.batchSize == 0 && i+1 < len(files) {
			time.Sleep(u.pollingInterval)
		}
	}

	fmt.Printf("Upload complete: %d successful, %d failed, %d skipped\n",
		report.Successful, report.Failed, report.Skipped)
	u.saveReport(report)
	return report
}

func (u *Uploader) saveReport(report *Report) {
	path := reportPath(u.logs, time.Now().Format("20060102-150405"))
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("ERROR: Failed to marshal upload report: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("ERROR: Failed to save upload report: %v", err)
		return
	}
	fmt.Printf("Report saved: %s\n", path)
}
