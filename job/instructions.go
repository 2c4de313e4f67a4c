package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const instructionsFile = "instructions.json"

// SourceFile is one uploaded photo stored in the job directory.
type SourceFile struct {
	Name     string `json:"name"`      // client supplied filename
	Stored   string `json:"stored"`    // filename inside the job directory
	MIMEType string `json:"mime_type"` // declared content type, may be empty
}

// JobInstructions describes a batch waiting to be compressed and written.
type JobInstructions struct {
	ID              string            `json:"id"`
	Dir             string            `json:"dir"`
	Files           []SourceFile      `json:"files"`
	Existing        int               `json:"existing"`     // photos the record already has
	StorageKeys     []string          `json:"storage_keys"` // credentials keys, empty means directServe
	SubDir          string            `json:"sub_dir,omitempty"`
	CallbackURL     string            `json:"callback_url,omitempty"`
	CallbackHeaders map[string]string `json:"callback_headers,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// WriteInstructions writes the job instructions to instructions.json in the given directory
func WriteInstructions(dir string, instr JobInstructions) error {
	path := filepath.Join(dir, instructionsFile)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create instructions file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(instr); err != nil {
		return fmt.Errorf("failed to encode instructions: %w", err)
	}
	return nil
}

// ReadInstructions reads job instructions from instructions.json in the given directory
func ReadInstructions(dir string) (JobInstructions, error) {
	path := filepath.Join(dir, instructionsFile)
	file, err := os.Open(path)
	if err != nil {
		return JobInstructions{}, fmt.Errorf("failed to open instructions file: %w", err)
	}
	defer file.Close()

	var instr JobInstructions
	if err := json.NewDecoder(file).Decode(&instr); err != nil {
		return JobInstructions{}, fmt.Errorf("failed to decode instructions: %w", err)
	}
	if instr.Dir == "" {
		instr.Dir = dir
	}
	if instr.ID == "" {
		instr.ID = filepath.Base(dir)
	}
	return instr, nil
}
