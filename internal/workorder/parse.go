package workorder

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"fulfill/internal/fulfillment"
	"fulfill/internal/services"
)

// Export column headers.
const (
	ColumnSN       = "机号1(sn)"
	ColumnCustomer = "客户姓名"
	ColumnOrder    = "工单号"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseWorkItems reads an export file. The tracker emits GBK; UTF-8 with a BOM
// (or any valid UTF-8) is accepted too. The category is taken from the path.
// A file with no rows yields an empty list.
func ParseWorkItems(path string) ([]fulfillment.WorkItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer file.Close()

	reader, err := decodingReader(file)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return []fulfillment.WorkItem{}, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, System, "parse", "read header", err)
	}
	columns := indexColumns(header)
	snIdx, ok := columns[ColumnSN]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, System, "parse", fmt.Sprintf("column %q not found in %s", ColumnSN, path), nil)
	}
	customerIdx, hasCustomer := columns[ColumnCustomer]
	orderIdx, hasOrder := columns[ColumnOrder]

	category := CategoryFromPath(path)
	items := make([]fulfillment.WorkItem, 0, 64)
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, System, "parse", "read row", err)
		}
		sn := cleanValue(field(record, snIdx))
		if sn == "" {
			continue
		}
		item := fulfillment.WorkItem{
			SN:       sn,
			Category: category,
			Status:   fulfillment.StatusCompleted,
		}
		if hasCustomer {
			item.CustomerName = cleanValue(field(record, customerIdx))
		}
		if hasOrder {
			item.OrderNo = cleanValue(field(record, orderIdx))
		}
		items = append(items, item)
	}
	return items, nil
}

// CategoryFromPath returns board when the file name, or failing that its
// directory name, mentions 用户板 or board (case-insensitive), machine
// otherwise.
func CategoryFromPath(path string) fulfillment.Category {
	for _, name := range []string{filepath.Base(path), filepath.Base(filepath.Dir(path))} {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "用户板") || strings.Contains(lower, "board") {
			return fulfillment.CategoryBoard
		}
		if strings.Contains(lower, "用户机") || strings.Contains(lower, "machine") {
			return fulfillment.CategoryMachine
		}
	}
	return fulfillment.CategoryMachine
}

func decodingReader(r io.Reader) (io.Reader, error) {
	buffered := bufio.NewReaderSize(r, 64*1024)
	head, err := buffered.Peek(64 * 1024)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	if bytes.HasPrefix(head, utf8BOM) {
		if _, err := buffered.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
		return buffered, nil
	}
	if utf8.Valid(trimPartialRune(head)) {
		return buffered, nil
	}
	return transform.NewReader(buffered, simplifiedchinese.GBK.NewDecoder()), nil
}

// trimPartialRune drops a multi-byte sequence cut off by the peek window.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, ok := columns[name]; !ok {
			columns[name] = i
		}
	}
	return columns
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// cleanValue trims and unwraps values the tracker exports as ="..." or with
// doubled quotes, keeping the text between the first pair of quotes.
func cleanValue(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, `"`) {
		parts := strings.Split(value, `"`)
		if len(parts) > 1 {
			value = parts[1]
		}
	}
	return strings.TrimSpace(value)
}
