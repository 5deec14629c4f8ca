package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gemimg/pkg/logger"
	"gemimg/pkg/storage"
)

const version = 1

// Checkpoint records which prompts of a batch already produced an image
type Checkpoint struct {
	BatchID        string            `json:"batch_id"`
	Source         string            `json:"source"`
	TotalPrompts   int               `json:"total_prompts"`
	Generated      map[string]string `json:"generated"` // prompt key -> image path
	TotalGenerated int               `json:"total_generated"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Version        int               `json:"version"`
}

// Key identifies the prompt at position index. Repeated prompts in one
// file get separate keys.
func Key(index int, prompt string) string {
	return fmt.Sprintf("%d:%s", index, prompt)
}

// BatchID derives a stable id from the prompt source and its prompts, so an
// edited prompts file starts a fresh checkpoint.
func BatchID(source string, prompts []string) string {
	h := sha256.New()
	h.Write([]byte(source))
	for _, p := range prompts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// IsGenerated reports whether the prompt at index already has an image
func (cp *Checkpoint) IsGenerated(index int, prompt string) bool {
	_, ok := cp.Generated[Key(index, prompt)]
	return ok
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a manager storing batchID in the per-user data directory
func NewManager(batchID string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerIn(filepath.Join(dataDir, "checkpoints"), batchID)
}

// NewManagerIn creates a manager storing batchID in dir
func NewManagerIn(dir, batchID string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, batchID+".checkpoint.json"),
		logger:         logger.GetLogger().WithComponent("checkpoint"),
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a new checkpoint and writes it
func (m *Manager) Create(batchID, source string, totalPrompts int) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		BatchID:      batchID,
		Source:       source,
		TotalPrompts: totalPrompts,
		Generated:    make(map[string]string),
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      version,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"batch_id": batchID,
		"path":     m.checkpointPath,
	})

	return cp, nil
}

// Load reads the checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}
	if cp.Generated == nil {
		cp.Generated = make(map[string]string)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"batch_id":        cp.BatchID,
		"total_generated": cp.TotalGenerated,
		"updated_at":      cp.UpdatedAt,
	})

	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := storage.WriteAtomic(m.checkpointPath, bytes.NewReader(data), 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"batch_id":        cp.BatchID,
		"total_generated": cp.TotalGenerated,
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordGeneration marks the prompt at index as done and persists the checkpoint
func (m *Manager) RecordGeneration(cp *Checkpoint, index int, prompt, imagePath string) error {
	key := Key(index, prompt)
	if _, ok := cp.Generated[key]; !ok {
		cp.TotalGenerated++
	}
	cp.Generated[key] = imagePath
	return m.Save(cp)
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "gemimg")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "gemimg")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "gemimg")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "gemimg")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
