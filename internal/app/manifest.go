package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Summary describes one run. It is logged at the end of Run and written next
// to the dataset as a JSON sidecar.
type Summary struct {
	Source string   `json:"source"`
	Fields []string `json:"fields"`
	Output string   `json:"output"`
	// Seen counts listed IDs, including those skipped from earlier runs.
	Seen      int `json:"seen"`
	Skipped   int `json:"skipped"`
	Processed int `json:"processed"`
	// Rows counts rows appended by this run.
	Rows          int       `json:"rows"`
	NoPayload     int       `json:"no_payload"`
	Empty         int       `json:"empty"`
	Failed        int       `json:"failed"`
	LastProcessed string    `json:"last_processed"`
	Stopped       string    `json:"stopped,omitempty"`
	Version       string    `json:"version"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// deriveManifestSidecarPath returns "<output-without-ext>.manifest.json".
func deriveManifestSidecarPath(outputPath string) string {
	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	return base + ".manifest.json"
}

func writeRunManifest(path string, sum Summary) error {
	if sum.Version == "" {
		sum.Version = BuildVersion
	}
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
