package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gemimg/pkg/storage"
)

// ImageMetadata describes one generated image. It is written next to the
// image as <image>.json.
type ImageMetadata struct {
	Prompt           string `json:"prompt"`
	SentPrompt       string `json:"sent_prompt,omitempty"`
	AspectRatio      string `json:"aspect_ratio,omitempty"`
	ImagePath        string `json:"image_path"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	FileSize         int64  `json:"file_size,omitempty"`
	WatermarkRemoved bool   `json:"watermark_removed"`

	// Timestamps
	GeneratedAt time.Time     `json:"generated_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// PathFor returns the sidecar path for an image
func PathFor(imagePath string) string {
	return imagePath + ".json"
}

// New builds metadata for an image already on disk. A missing file only
// leaves FileSize at zero.
func New(imagePath, prompt string) *ImageMetadata {
	meta := &ImageMetadata{
		Prompt:      prompt,
		ImagePath:   imagePath,
		GeneratedAt: time.Now().UTC(),
	}
	if info, err := os.Stat(imagePath); err == nil {
		meta.FileSize = info.Size()
	}
	return meta
}

// Save writes the metadata sidecar and returns its path
func (m *ImageMetadata) Save() (string, error) {
	metadataPath := PathFor(m.ImagePath)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := storage.WriteAtomic(metadataPath, bytes.NewReader(data), 0644); err != nil {
		return "", fmt.Errorf("failed to write metadata file: %w", err)
	}

	return metadataPath, nil
}

// Load reads metadata for an image
func Load(imagePath string) (*ImageMetadata, error) {
	data, err := os.ReadFile(PathFor(imagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta ImageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// GetAspectRatio returns the measured aspect ratio as a string
func (m *ImageMetadata) GetAspectRatio() string {
	if m.Width <= 0 || m.Height <= 0 {
		return "unknown"
	}

	ratio := float64(m.Width) / float64(m.Height)

	// Common aspect ratios
	switch {
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.55 && ratio < 0.57:
		return "9:16"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}
