// mms-uploader pushes TDDF batch files from a local inbox folder to the MMS
// ingestion server.
//
// Actions:
//   - ping: test server connectivity (no API key required)
//   - status: check the upload queue (requires API key)
//   - upload: batch upload every file in the inbox folder (requires API key)
//
// Folder structure under --folder:
//
//	inbox/      files to upload
//	logs/       log files and upload reports
//	processed/  successfully uploaded files are moved here
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const version = "1.4.0"

const (
	defaultBatchSize       = 5
	defaultPollingInterval = 10
)

type fileConfig struct {
	URL             string `json:"url"`
	APIKey          string `json:"api_key"`
	Folder          string `json:"folder"`
	BatchSize       int    `json:"batch_size"`
	PollingInterval int    `json:"polling_interval"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg fileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

func main() {
	_ = godotenv.Load()

	var (
		doPing   = flag.Bool("ping", false, "Test server connectivity")
		doStatus = flag.Bool("status", false, "Check upload queue status")
		doUpload = flag.Bool("upload", false, "Upload files from inbox folder")

		urlFlag    = flag.String("url", "", "Server URL")
		keyFlag    = flag.String("key", "", "API key")
		folderFlag = flag.String("folder", "", "Base folder for inbox/logs/processed")
		configFlag = flag.String("config", "", "Path to JSON config file")

		batchSize       = flag.Int("batch-size", defaultBatchSize, "Number of files per batch")
		pollingInterval = flag.Int("polling-interval", defaultPollingInterval, "Seconds between status checks")
		showVersion     = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("MMS Batch Uploader v%s\n", version)
		return
	}

	actions := 0
	for _, a := range []bool{*doPing, *doStatus, *doUpload} {
		if a {
			actions++
		}
	}
	if actions != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of --ping, --status or --upload is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := &fileConfig{BatchSize: *batchSize, PollingInterval: *pollingInterval}
	if *configFlag != "" {
		loaded, err := loadConfigFile(*configFlag)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
		if cfg.BatchSize == 0 {
			cfg.BatchSize = *batchSize
		}
		if cfg.PollingInterval == 0 {
			cfg.PollingInterval = *pollingInterval
		}
	}

	// Flags beat the config file, env fills remaining gaps.
	if *urlFlag != "" {
		cfg.URL = *urlFlag
	}
	if *keyFlag != "" {
		cfg.APIKey = *keyFlag
	}
	if *folderFlag != "" {
		cfg.Folder = *folderFlag
	}
	if cfg.URL == "" {
		cfg.URL = os.Getenv("MMS_SERVER_URL")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("MMS_API_KEY")
	}

	if cfg.URL == "" {
		fmt.Fprintln(os.Stderr, "server URL is required (--url, config file or MMS_SERVER_URL)")
		os.Exit(2)
	}
	cfg.URL = strings.TrimSuffix(cfg.URL, "/")

	if (*doStatus || *doUpload) && cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "API key is required for this action (--key, config file or MMS_API_KEY)")
		os.Exit(2)
	}

	if *doUpload && cfg.Folder == "" {
		fmt.Fprintln(os.Stderr, "base folder is required for upload (--folder or config file)")
		os.Exit(2)
	}

	client := NewClient(cfg.URL, cfg.APIKey)

	switch {
	case *doPing:
		if !runPing(client) {
			os.Exit(1)
		}
	case *doStatus:
		if !runStatus(client) {
			os.Exit(1)
		}
	case *doUpload:
		uploader, err := NewUploader(client, cfg.Folder, cfg.BatchSize, cfg.PollingInterval)
		if err != nil {
			log.Fatal(err)
		}
		report := uploader.UploadBatch()
		if report.Failed > 0 || report.Error != "" {
			os.Exit(1)
		}
	}
}

func runPing(c *Client) bool {
	result, err := c.Ping()
	if err != nil {
		fmt.Printf("Ping failed: %v\n", err)
		return false
	}
	fmt.Printf("Server is up (%s) responded in %s\n", c.BaseURL, result.Elapsed)
	switch {
	case c.APIKey == "":
		fmt.Println("API key: not provided (optional for ping)")
	case result.KeyValid:
		fmt.Println("API key: valid")
	default:
		fmt.Println("API key: INVALID")
	}
	return true
}

func runStatus(c *Client) bool {
	status, err := c.QueueStatus()
	if err != nil {
		fmt.Printf("Status check failed: %v\n", err)
		return false
	}
	fmt.Println("Upload queue status:")
	fmt.Printf("  Pending lines: %d\n", status.PendingLines)
	for st, n := range status.FileStatuses {
		fmt.Printf("  Files %s: %d\n", st, n)
	}
	return true
}

// reportPath builds a timestamped report filename inside the logs folder.
func reportPath(logsFolder, timestamp string) string {
	return filepath.Join(logsFolder, fmt.Sprintf("upload-report-%s.json", timestamp))
}
