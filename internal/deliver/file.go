// Package deliver hands a rendered report to the operator, either as a
// local file or as an email.
package deliver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"

	logging "github.com/example/vmdisk-report/internal/log"
)

// DefaultFileName is the report file written to the temp directory.
const DefaultFileName = "VMDiskReport.html"

// FileDispatcher writes the report to Dir/Name and opens it.
type FileDispatcher struct {
	Dir  string
	Name string
	// Open is called with the written path; nil skips opening.
	Open func(path string) error
}

// NewFileDispatcher writes name into the system temp directory and opens it
// with the platform's default handler.
func NewFileDispatcher(name string) *FileDispatcher {
	if name == "" {
		name = DefaultFileName
	}
	return &FileDispatcher{Dir: os.TempDir(), Name: name, Open: browser.OpenFile}
}

// Path returns the file the report is written to.
func (d *FileDispatcher) Path() string {
	return filepath.Join(d.Dir, d.Name)
}

func (d *FileDispatcher) Deliver(ctx context.Context, doc []byte) error {
	log := logging.FromContext(ctx)
	path := d.Path()
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	log.Info().Str("path", path).Msg("Report written")

	if d.Open == nil {
		return nil
	}
	// Opening is best effort; the file is already written.
	if err := d.Open(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not open report")
	}
	return nil
}
