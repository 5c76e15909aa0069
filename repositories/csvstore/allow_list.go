package csvstore

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/upb/prompt-review/models"
	"github.com/upb/prompt-review/repositories"
	"github.com/upb/prompt-review/services"
	"go.uber.org/zap"
)

// AllowList appends approved prompts to the gateway allow-list file.
type AllowList struct {
	path   string
	logger *zap.Logger
}

// Ensure AllowList implements repositories.AllowListStore
var _ repositories.AllowListStore = (*AllowList)(nil)

// NewAllowList creates an allow-list store for a local file path
func NewAllowList(path string, logger *zap.Logger) (*AllowList, error) {
	if path == "" {
		return nil, fmt.Errorf("allow-list path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve allow-list path %s: %w", path, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllowList{path: abs, logger: logger}, nil
}

// Location returns the resolved file path
func (a *AllowList) Location() string {
	return a.path
}

// Append writes one line per entry, in order, opening the file in append mode
// only. The file is synced before returning. With no entries the file is not
// touched at all.
func (a *AllowList) Append(ctx context.Context, entries []models.AllowListEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, services.NewDomainError(services.ErrorTypeInterrupted, "review cancelled before allow-list write", err)
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, services.NewDomainError(services.ErrorTypeInternal, "failed to open allow-list", err).
			WithDetail("location", a.path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, entry := range entries {
		if _, err := w.WriteString(FormatAllowListLine(entry)); err != nil {
			return 0, services.NewDomainError(services.ErrorTypeInternal, "failed to write allow-list", err).
				WithDetail("location", a.path)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, services.NewDomainError(services.ErrorTypeInternal, "failed to write allow-list", err).
			WithDetail("location", a.path)
	}
	if err := f.Sync(); err != nil {
		return 0, services.NewDomainError(services.ErrorTypeInternal, "failed to sync allow-list", err).
			WithDetail("location", a.path)
	}
	if err := f.Close(); err != nil {
		return 0, services.NewDomainError(services.ErrorTypeInternal, "failed to close allow-list", err).
			WithDetail("location", a.path)
	}

	a.logger.Info("allow-list updated",
		zap.String("location", a.path),
		zap.Int("added", len(entries)))
	return len(entries), nil
}

// EscapeText doubles every double quote, the CSV quoting rule for a quoted field
func EscapeText(text string) string {
	return strings.ReplaceAll(text, `"`, `""`)
}

// FormatAllowListLine renders an entry as `"<escaped text>",<uses>` plus newline.
// The text field is always quoted, so embedded commas and newlines survive.
func FormatAllowListLine(entry models.AllowListEntry) string {
	return fmt.Sprintf("\"%s\",%d\n", EscapeText(entry.Text), entry.Uses)
}
