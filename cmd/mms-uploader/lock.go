package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	lockFileName     = "uploader.lock"
	lockStaleMinutes = 30
)

type lockInfo struct {
	Hostname  string    `json:"hostname"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// instanceLock prevents concurrent upload runs against the same folder. Locks
// older than lockStaleMinutes are treated as leftovers from a crashed run and
// broken.
type instanceLock struct {
	path string
}

func newInstanceLock(path string) *instanceLock {
	return &instanceLock{path: path}
}

func (l *instanceLock) readInfo() *lockInfo {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil
	}
	return &info
}

func (l *instanceLock) Acquire() error {
	if info := l.readInfo(); info != nil {
		if time.Since(info.StartedAt) < lockStaleMinutes*time.Minute {
			return fmt.Errorf("lock held by %s (pid %d) since %s",
				info.Hostname, info.PID, info.StartedAt.Format(time.RFC3339))
		}
		// Stale lock, previous run likely crashed.
		_ = os.Remove(l.path)
	}

	hostname, _ := os.Hostname()
	info := lockInfo{Hostname: hostname, PID: os.Getpid(), StartedAt: time.Now()}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return nil
}

func (l *instanceLock) Release() {
	_ = os.Remove(l.path)
}
