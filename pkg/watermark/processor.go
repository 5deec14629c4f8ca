package watermark

import (
	"context"
	"errors"
	"os"

	"gemimg/pkg/logger"
	"gemimg/pkg/storage"
)

// availability is implemented by removers that may not be installed
type availability interface {
	Available() bool
}

// Processor applies a Remover in place, best effort
type Processor struct {
	remover Remover
	log     logger.Logger
}

// NewProcessor wraps remover
func NewProcessor(remover Remover, log logger.Logger) *Processor {
	return &Processor{
		remover: remover,
		log:     logger.OrDefault(log).WithComponent("watermark"),
	}
}

// RemoveWatermark replaces path with a cleaned copy and reports whether it
// did. It never fails: on any problem the original file is left as it was.
func (p *Processor) RemoveWatermark(ctx context.Context, path string) bool {
	if p == nil || p.remover == nil {
		return false
	}
	if a, ok := p.remover.(availability); ok && !a.Available() {
		p.log.Info("Watermark removal tool not installed, keeping original image")
		return false
	}

	l := p.log.WithField("path", path)
	tmp, err := p.remover.Clean(ctx, path)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			l.Info("Watermark removal tool not installed, keeping original image")
		} else {
			l.WithError(err).Warn("Watermark removal failed, keeping original image")
		}
		return false
	}

	if err := storage.Commit(tmp, path); err != nil {
		l.WithError(err).Warn("Failed to replace image with cleaned copy")
		os.Remove(tmp)
		return false
	}

	l.Info("Watermark removed")
	return true
}
