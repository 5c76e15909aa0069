package csvstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/upb/prompt-review/models"
	"github.com/upb/prompt-review/repositories"
	"github.com/upb/prompt-review/services"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"go.uber.org/zap"
)

// PendingLogHeader is the only line left after truncation.
const PendingLogHeader = "timestamp,text,result,threat_score\n"

const (
	columnTimestamp   = "timestamp"
	columnText        = "text"
	columnPrompt      = "prompt" // older gateways name the text column "prompt"
	columnResult      = "result"
	columnThreatScore = "threat_score"
)

const utf8BOM = "\ufeff"

// PendingLog reads and truncates the gateway's pending-review CSV through afs,
// so the log may live on local disk or any afs-supported storage.
type PendingLog struct {
	fs             afs.Service
	location       string
	atomicTruncate bool
	logger         *zap.Logger
}

// Ensure PendingLog implements repositories.PendingLogStore
var _ repositories.PendingLogStore = (*PendingLog)(nil)

// PendingLogOption customizes a PendingLog
type PendingLogOption func(*PendingLog)

// WithAtomicTruncate writes the header to a sibling object and moves it over the log
func WithAtomicTruncate(enabled bool) PendingLogOption {
	return func(p *PendingLog) {
		p.atomicTruncate = enabled
	}
}

// WithFileSystem overrides the afs service
func WithFileSystem(fs afs.Service) PendingLogOption {
	return func(p *PendingLog) {
		p.fs = fs
	}
}

// NewPendingLog creates a pending log store. Plain relative paths are resolved
// against the working directory.
func NewPendingLog(location string, logger *zap.Logger, opts ...PendingLogOption) (*PendingLog, error) {
	if location == "" {
		return nil, fmt.Errorf("pending log location cannot be empty")
	}
	if !strings.Contains(location, "://") {
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve pending log path %s: %w", location, err)
		}
		location = abs
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &PendingLog{
		fs:       afs.New(),
		location: location,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Location returns the resolved URL or path of the log
func (p *PendingLog) Location() string {
	return p.location
}

// Load reads every data row. Nothing is written, whatever the outcome.
func (p *PendingLog) Load(ctx context.Context) ([]models.ReviewItem, error) {
	exists, err := p.fs.Exists(ctx, p.location)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal, "failed to check pending log", err).
			WithDetail("location", p.location)
	}
	if !exists {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, "pending log not found", nil).
			WithDetail("location", p.location)
	}

	data, err := p.fs.DownloadWithURL(ctx, p.location)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal, "failed to read pending log", err).
			WithDetail("location", p.location)
	}

	items, err := ParsePendingLog(data)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeEmpty, "no prompts to review", nil).
			WithDetail("location", p.location)
	}

	p.logger.Debug("pending log loaded",
		zap.String("location", p.location),
		zap.Int("items", len(items)))
	return items, nil
}

// Truncate replaces the whole log with the header line. Rows appended by the
// gateway while the session was running are lost as well.
func (p *PendingLog) Truncate(ctx context.Context) error {
	var err error
	if p.atomicTruncate {
		err = p.replace(ctx)
	} else {
		err = p.fs.Upload(ctx, p.location, file.DefaultFileOsMode, strings.NewReader(PendingLogHeader))
		if err != nil {
			err = services.NewDomainError(services.ErrorTypeInternal, "failed to truncate pending log", err).
				WithDetail("location", p.location)
		}
	}
	if err != nil {
		return err
	}

	p.logger.Info("pending log truncated",
		zap.String("location", p.location),
		zap.Bool("atomic", p.atomicTruncate))
	return nil
}

// replace writes the header to a sibling temp object and moves it over the log.
// The temp object is removed when the move fails.
func (p *PendingLog) replace(ctx context.Context) error {
	tmp := p.location + ".tmp"
	if err := p.fs.Upload(ctx, tmp, file.DefaultFileOsMode, strings.NewReader(PendingLogHeader)); err != nil {
		return services.NewDomainError(services.ErrorTypeInternal, "failed to truncate pending log", err).
			WithDetail("location", tmp)
	}

	if err := p.move(ctx, tmp); err != nil {
		if delErr := p.fs.Delete(ctx, tmp); delErr != nil {
			p.logger.Warn("failed to remove temp pending log",
				zap.String("location", tmp),
				zap.Error(delErr))
		}
		return services.NewDomainError(services.ErrorTypeInternal, "failed to replace pending log", err).
			WithDetail("location", p.location)
	}
	return nil
}

// move renames tmp over the log. afs Move treats an existing local destination
// as a directory, so local files go through os.Rename and other schemes have
// the destination removed first.
func (p *PendingLog) move(ctx context.Context, tmp string) error {
	if isLocal(p.location) {
		return os.Rename(localPath(tmp), localPath(p.location))
	}
	if err := p.fs.Delete(ctx, p.location); err != nil {
		return err
	}
	return p.fs.Move(ctx, tmp, p.location)
}

func isLocal(location string) bool {
	return !strings.Contains(location, "://") || strings.HasPrefix(location, file.Scheme+"://")
}

func localPath(location string) string {
	if !strings.Contains(location, "://") {
		return location
	}
	return url.Path(location)
}

// ParsePendingLog decodes the CSV content of a pending log. The first record
// is the header; columns are matched by name. Zero data rows is not an error.
func ParsePendingLog(data []byte) ([]models.ReviewItem, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, malformedRow(1, err)
	}

	columns, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	var items []models.ReviewItem
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.StartLine
			}
			return nil, malformedRow(line, err)
		}
		line, _ := reader.FieldPos(0)

		if len(record) != len(header) {
			return nil, malformedRow(line, fmt.Errorf("expected %d fields, got %d", len(header), len(record)))
		}

		score, err := strconv.Atoi(record[columns[columnThreatScore]])
		if err != nil {
			return nil, malformedRow(line, fmt.Errorf("threat_score %q is not an integer", record[columns[columnThreatScore]]))
		}

		items = append(items, models.ReviewItem{
			Timestamp:      record[columns[columnTimestamp]],
			Text:           record[columns[columnText]],
			Classification: models.Classification(record[columns[columnResult]]),
			RiskScore:      score,
			Line:           line,
		})
	}

	return items, nil
}

// indexHeader maps required column names to record positions
func indexHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == columnPrompt {
			name = columnText
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	for _, required := range []string{columnTimestamp, columnText, columnResult, columnThreatScore} {
		if _, ok := columns[required]; !ok {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "malformed pending log header", nil).
				WithDetail("missing_column", required)
		}
	}
	return columns, nil
}

func malformedRow(line int, err error) error {
	return services.NewDomainError(services.ErrorTypeValidation,
		fmt.Sprintf("malformed pending log row at line %d", line), err).
		WithDetail("line", line)
}
