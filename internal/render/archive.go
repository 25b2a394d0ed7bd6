package render

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// CardSource renders the card document for one subject.
type CardSource func(ctx context.Context, subjectID string) ([]byte, error)

// ArchiveReport lists which subjects made it into an archive. Err combines
// the per-subject failures; it is nil when every subject was included.
type ArchiveReport struct {
	Included []string
	Skipped  []string
	Err      error
}

// Packager bundles rendered cards into a zip archive.
type Packager struct {
	now func() time.Time
}

// NewPackager returns a Packager stamping entries with the current time.
func NewPackager() *Packager {
	return &Packager{now: time.Now}
}

// Package writes one `<subject>-card.html` entry per subject to w. A subject
// whose card cannot be rendered is skipped and recorded in the report; only a
// failure writing the archive itself is returned as an error.
func (p *Packager) Package(ctx context.Context, w io.Writer, subjectIDs []string, source CardSource) (ArchiveReport, error) {
	var report ArchiveReport
	zw := zip.NewWriter(w)
	written := make(map[string]struct{}, len(subjectIDs))

	for _, subjectID := range subjectIDs {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return report, err
		}

		name := EntryName(subjectID)
		if _, dup := written[name]; dup {
			report.Skipped = append(report.Skipped, subjectID)
			report.Err = multierr.Append(report.Err, fmt.Errorf("%s: entry %s already written", subjectID, name))
			continue
		}

		doc, err := source(ctx, subjectID)
		if err != nil {
			report.Skipped = append(report.Skipped, subjectID)
			report.Err = multierr.Append(report.Err, fmt.Errorf("%s: %w", subjectID, err))
			continue
		}

		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: p.now(),
		}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return report, fmt.Errorf("archive: create entry: %w", err)
		}
		if _, err := entry.Write(doc); err != nil {
			return report, fmt.Errorf("archive: write entry: %w", err)
		}
		written[name] = struct{}{}
		report.Included = append(report.Included, subjectID)
	}

	if err := zw.Close(); err != nil {
		return report, fmt.Errorf("archive: close: %w", err)
	}
	return report, nil
}

// EntryName returns the archive file name for a subject's card. Ids that had
// to be rewritten to be file-safe get a short hash of the raw id, so distinct
// subjects never share a name.
func EntryName(subjectID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, subjectID)
	if safe == subjectID {
		return safe + "-card.html"
	}
	sum := sha256.Sum256([]byte(subjectID))
	return safe + "-" + hex.EncodeToString(sum[:4]) + "-card.html"
}
