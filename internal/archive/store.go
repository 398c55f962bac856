// Package archive exports audit rows to S3 as JSON Lines.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/charter-notify/internal/audit"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

const exportPageSize = 500

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// AuditSource lists audit rows.
type AuditSource interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// ManifestEntry is one line of a site's export manifest.
type ManifestEntry struct {
	SiteID     string `json:"site_id"`
	Day        string `json:"day"`
	S3Key      string `json:"s3_key"`
	Rows       int    `json:"rows"`
	ExportedAt string `json:"exported_at"`
}

// Store writes daily audit exports to S3.
type Store struct {
	bucket   string
	s3Client S3API
	source   AuditSource
	logger   *logging.Logger
	now      func() time.Time
}

// NewStore creates an export Store. If bucket is empty, Enabled reports false.
func NewStore(s3Client S3API, bucket string, source AuditSource, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, source: source, logger: logger, now: time.Now}
}

// Enabled returns true if export is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil && s.source != nil
}

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("archive: export not configured")

// ExportDay writes every audit row of the site created on the given UTC day.
func (s *Store) ExportDay(ctx context.Context, siteID string, day time.Time) (ManifestEntry, error) {
	if !s.Enabled() {
		return ManifestEntry{}, ErrDisabled
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	var buf bytes.Buffer
	rows := 0
	var after *audit.Cursor
	for {
		page, err := s.source.List(ctx, audit.Filter{
			SiteID: siteID,
			Since:  start,
			Until:  end,
			Limit:  exportPageSize,
			Oldest: true,
			After:  after,
		})
		if err != nil {
			return ManifestEntry{}, fmt.Errorf("archive: list audit rows: %w", err)
		}
		for _, e := range page {
			line, err := json.Marshal(e)
			if err != nil {
				return ManifestEntry{}, fmt.Errorf("archive: marshal audit row: %w", err)
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
		rows += len(page)
		if len(page) < exportPageSize {
			break
		}
		after = audit.CursorOf(page[len(page)-1])
	}

	key := fmt.Sprintf("audit/v1/sites/%s/%d/%02d/%02d.jsonl", siteID, start.Year(), start.Month(), start.Day())
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	entry := ManifestEntry{
		SiteID:     siteID,
		Day:        start.Format("2006-01-02"),
		S3Key:      key,
		Rows:       rows,
		ExportedAt: s.now().UTC().Format(time.RFC3339),
	}
	s.logger.Info("exported audit rows to S3", "site_id", siteID, "s3_key", key, "rows", rows)

	if err := s.appendManifest(ctx, entry); err != nil {
		// The export itself is already written.
		s.logger.Warn("failed to append export manifest", "error", err, "site_id", siteID)
	}
	return entry, nil
}

// appendManifest appends a JSONL line to the site's manifest. S3 has no
// append, so this is a read-modify-write.
func (s *Store) appendManifest(ctx context.Context, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	manifestKey := fmt.Sprintf("audit/v1/sites/%s/manifest.jsonl", entry.SiteID)

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if !errors.As(err, &nsk) {
			return fmt.Errorf("archive: s3 get manifest: %w", err)
		}
	} else {
		existing, err = io.ReadAll(getResp.Body)
		getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}
