package workorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"fulfill/internal/fulfillment"
	"fulfill/internal/logging"
	"fulfill/internal/services"
	"fulfill/internal/session"
)

const (
	exportPath    = "/index.php/Order/exportorder.html"
	defaultAgency = "114"
)

// Exporter downloads the completed-order CSV for a category.
type Exporter struct {
	session *session.Session
	agency  string
	logger  *slog.Logger
}

// NewExporter returns an Exporter using an authenticated session.
func NewExporter(sess *session.Session, agency string, logger *slog.Logger) *Exporter {
	agency = strings.TrimSpace(agency)
	if agency == "" {
		agency = defaultAgency
	}
	return &Exporter{
		session: sess,
		agency:  agency,
		logger:  logging.NewComponentLogger(logger, "export").With(logging.System(System)),
	}
}

// ExportQuery returns the fixed export filter for category.
func ExportQuery(category fulfillment.Category, agency string) url.Values {
	innerType := "1"
	if category == fulfillment.CategoryBoard {
		innerType = "2"
	}
	q := url.Values{}
	for _, key := range []string{
		"assign", "ordername", "brand", "machinetype", "ischangetime", "keyword",
		"startdate", "enddate", "day", "isremind", "iscomplain", "originname",
		"feedback", "overtime", "company", "vip",
	} {
		q.Set(key, "")
	}
	q.Set("status", "9")
	q.Set("keywordoption", "mobile")
	q.Set("datetype", "2")
	q.Set("isvip", "2")
	q.Set("agency", agency)
	q.Set("innertype", innerType)
	q.Set("charge", "0")
	q.Set("waitpartstatus", "0")
	return q
}

// Export writes the raw export body for category to dest. The file is
// replaced atomically so a failed download never leaves a truncated export.
func (e *Exporter) Export(ctx context.Context, category fulfillment.Category, dest string) error {
	if e.session == nil || !e.session.IsAuthenticated() {
		return services.Wrap(services.ErrAuth, System, "export", "session is not authenticated", nil)
	}
	logger := logging.WithContext(ctx, e.logger)

	resp, err := e.session.Open(ctx, exportPath, ExportQuery(category, e.agency))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.Wrap(services.ErrTransport, System, "export", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	written, err := writeAtomic(dest, resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransport, System, "export", "write export file", err)
	}
	logger.Info("work orders exported",
		logging.String(logging.FieldEventType, "export_completed"),
		logging.String("export_path", dest),
		logging.Int64("bytes", written),
	)
	return nil
}

func writeAtomic(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return written, err
	}
	if err := tmp.Close(); err != nil {
		return written, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return written, err
	}
	return written, nil
}
