package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/allsafeASM/intel/internal/models"
	"github.com/allsafeASM/intel/internal/scan"
)

func testReport() *scan.Report {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &scan.Report{
		ScanID:    "scan-1",
		Target:    models.ScanTarget{Value: "example.com", Kind: models.KindDomain},
		Result:    scan.DemoResult(models.ScanTarget{Value: "example.com", Kind: models.KindDomain}),
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}
}

func TestFilename(t *testing.T) {
	ts := time.UnixMilli(1700000000123)

	tests := []struct {
		target string
		want   string
	}{
		{"example.com", "recon_example.com_1700000000123.json"},
		{"8.8.8.8", "recon_8.8.8.8_1700000000123.json"},
		{"2001:db8::1", "recon_2001_db8__1_1700000000123.json"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := Filename(tt.target, ts); got != tt.want {
				t.Errorf("Filename(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestNewDocument(t *testing.T) {
	doc, err := NewDocument(testReport())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if doc.Target != "example.com" || doc.Kind != models.KindDomain || !doc.Demo {
		t.Errorf("Unexpected document %+v", doc)
	}
	if want := time.Date(2026, 3, 1, 10, 0, 1, 500_000_000, time.UTC); !doc.Timestamp.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, doc.Timestamp)
	}

	if _, err := NewDocument(&scan.Report{}); err == nil {
		t.Error("Expected error for a report without result")
	}
}

func TestWriteFile(t *testing.T) {
	doc, _ := NewDocument(testReport())
	dir := filepath.Join(t.TempDir(), "out")

	filePath, err := WriteFile(dir, doc)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(filePath), "recon_example.com_") {
		t.Errorf("Unexpected file name %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Export is not valid JSON: %v", err)
	}
	for _, key := range []string{"scan_id", "target", "type", "demo", "data", "timestamp"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Export is missing %q", key)
		}
	}
	if !bytes.Contains(data, []byte("\n  \"target\"")) {
		t.Error("Expected indented JSON")
	}
}

type fakeUploader struct {
	blobs map[string][]byte
}

func (f *fakeUploader) Upload(_ context.Context, name string, data []byte) error {
	f.blobs[name] = data
	return nil
}

func TestUpload(t *testing.T) {
	doc, _ := NewDocument(testReport())
	uploader := &fakeUploader{blobs: map[string][]byte{}}

	name, err := Upload(context.Background(), uploader, doc)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !strings.HasPrefix(name, "exports/recon_example.com_") {
		t.Errorf("Unexpected blob name %s", name)
	}
	if len(uploader.blobs[name]) == 0 {
		t.Error("Expected uploaded data")
	}
}

func TestWrite(t *testing.T) {
	doc, _ := NewDocument(testReport())
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Error("Expected valid JSON output")
	}
}
