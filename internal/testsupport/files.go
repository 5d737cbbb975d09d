package testsupport

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// ExportHeader is the header row the work-order tracker emits.
var ExportHeader = []string{"工单号", "客户姓名", "机号1(sn)", "状态"}

// ExportRow is one exported work order.
type ExportRow struct {
	OrderNo  string
	Customer string
	SN       string
}

// ExportCSV renders rows the way the tracker does: SNs wrapped as ="..." so
// spreadsheet tools keep leading zeros.
func ExportCSV(t testing.TB, rows ...ExportRow) string {
	t.Helper()
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(ExportHeader); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, r := range rows {
		if err := w.Write([]string{r.OrderNo, r.Customer, `="` + r.SN + `"`, "已完成"}); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush csv: %v", err)
	}
	return b.String()
}

// EncodeGBK converts UTF-8 text to GBK bytes.
func EncodeGBK(t testing.TB, text string) []byte {
	t.Helper()
	encoded, err := simplifiedchinese.GBK.NewEncoder().String(text)
	if err != nil {
		t.Fatalf("encode gbk: %v", err)
	}
	return []byte(encoded)
}

// WriteExport writes a GBK export file at path.
func WriteExport(t testing.TB, path string, rows ...ExportRow) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, EncodeGBK(t, ExportCSV(t, rows...)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
