package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crategate/crategate/types"
)

// LogEntry is one self-contained NDJSON row, suitable for streaming
// ingestion.
type LogEntry struct {
	Event string `json:"event"`
	TS    string `json:"ts"`
	types.Finding
}

// WriteSummary writes the JSON audit report, creating parent directories as
// needed.
func WriteSummary(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteLog writes the NDJSON finding log, one object per line.
func WriteLog(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := bufio.NewWriter(file)
	for _, f := range r.Findings {
		row := LogEntry{
			Event:   LogEvent,
			TS:      r.GeneratedAt,
			Finding: f,
		}
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal log entry: %w", err)
		}
		if _, err := writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write log entry: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush log: %w", err)
	}
	return file.Close()
}
