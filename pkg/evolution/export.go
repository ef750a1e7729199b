package evolution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportFormat is the serialization used when exporting a record
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// ParseExportFormat accepts "yaml", "yml" or "json" (case-insensitive)
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json", "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ExportRecord serializes a record for humans or other tools
func ExportRecord(record *BestSolutionRecord, format ExportFormat) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("record cannot be nil")
	}

	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		buf.WriteString("# Evolved strategy parameters\n")
		buf.WriteString(fmt.Sprintf("# Schema Version: %s\n", record.SchemaVersion))

		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(record); err != nil {
			return nil, fmt.Errorf("failed to encode record to YAML: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return nil, fmt.Errorf("failed to close YAML encoder: %w", err)
		}
		return buf.Bytes(), nil

	case FormatJSON:
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode record to JSON: %w", err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ImportRecord parses a record exported as JSON or YAML and checks its
// schema version.
func ImportRecord(data []byte) (*BestSolutionRecord, error) {
	var record BestSolutionRecord

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, fmt.Errorf("failed to parse record JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse record YAML: %w", err)
	}

	if err := record.CheckCompatibility(); err != nil {
		return nil, err
	}
	return &record, nil
}
