package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/allsafeASM/intel/internal/models"
	"github.com/allsafeASM/intel/internal/scan"
	"github.com/projectdiscovery/gologger"
)

// BlobPrefix is the folder exports are uploaded to
const BlobPrefix = "exports"

// Uploader stores a named blob
type Uploader interface {
	Upload(ctx context.Context, blobName string, data []byte) error
}

// NewDocument builds the export record for a finished scan
func NewDocument(report *scan.Report) (*models.ExportDocument, error) {
	if report == nil || report.Result == nil {
		return nil, fmt.Errorf("no scan result to export")
	}

	return &models.ExportDocument{
		ScanID:    report.ScanID,
		Target:    report.Target.Value,
		Kind:      report.Target.Kind,
		Demo:      report.Result.Demo,
		Data:      report.Result,
		Timestamp: report.StartedAt.Add(report.Duration).UTC(),
	}, nil
}

// Filename returns recon_<target>_<unix millis>.json. Characters that are
// not safe in file names (the colons of IPv6 addresses) become underscores.
func Filename(target string, ts time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, target)
	return fmt.Sprintf("recon_%s_%d.json", safe, ts.UnixMilli())
}

func marshal(doc *models.ExportDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return append(data, '\n'), nil
}

// Write writes the document as indented JSON
func Write(w io.Writer, doc *models.ExportDocument) error {
	data, err := marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes the document into dir and returns the file path
func WriteFile(dir string, doc *models.ExportDocument) (string, error) {
	data, err := marshal(doc)
	if err != nil {
		return "", err
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	filePath := filepath.Join(dir, Filename(doc.Target, doc.Timestamp))
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	gologger.Info().Msgf("Exported %s to %s", doc.Target, filePath)
	return filePath, nil
}

// Upload stores the document under exports/ and returns the blob name
func Upload(ctx context.Context, uploader Uploader, doc *models.ExportDocument) (string, error) {
	data, err := marshal(doc)
	if err != nil {
		return "", err
	}

	blobName := path.Join(BlobPrefix, Filename(doc.Target, doc.Timestamp))
	if err := uploader.Upload(ctx, blobName, data); err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	gologger.Info().Msgf("Uploaded export for %s to blob %s", doc.Target, blobName)
	return blobName, nil
}
