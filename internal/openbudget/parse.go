package openbudget

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Row is one raw record keyed by the column names the API returned.
type Row map[string]string

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseBody sniffs and parses a response body: HTML fails fast as
// maintenance, then CSV is tried, then a JSON envelope with a data array.
func ParseBody(body []byte) ([]Row, string, error) {
	text := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if isHTML(text) {
		return nil, "", &FetchError{Kind: KindMaintenance, BodyPrefix: truncate(text, maxBodyPrefix)}
	}
	if looksLikeCSV(text) {
		rows, err := parseCSV(text)
		if err != nil {
			return nil, "", &FetchError{Kind: KindFormat, BodyPrefix: truncate(text, maxBodyPrefix), Err: err}
		}
		return rows, FormatCSV, nil
	}
	rows, err := parseJSON(text)
	if err != nil {
		return nil, "", &FetchError{Kind: KindFormat, BodyPrefix: truncate(text, maxBodyPrefix), Err: err}
	}
	return rows, FormatJSON, nil
}

func isHTML(text []byte) bool {
	head := strings.ToLower(truncate(text, 64))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

// looksLikeCSV accepts a semicolon-separated header line that is not JSON.
func looksLikeCSV(text []byte) bool {
	if len(text) == 0 || text[0] == '{' || text[0] == '[' {
		return false
	}
	header, _, _ := bytes.Cut(text, []byte("\n"))
	return bytes.IndexByte(header, ';') >= 0
}

func parseCSV(text []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line: %w", err)
		}
		row := make(Row, len(header))
		empty := true
		for i, col := range header {
			v := ""
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			if v != "" {
				empty = false
			}
			row[col] = v
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseJSON(text []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, ErrUnrecognizedFormat
	}

	var items []any
	switch v := raw.(type) {
	case map[string]any:
		data, ok := v["data"].([]any)
		if !ok {
			return nil, ErrUnrecognizedFormat
		}
		items = data
	case []any:
		items = v
	default:
		return nil, ErrUnrecognizedFormat
	}

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row := make(Row, len(obj))
		for k, v := range obj {
			row[k] = stringify(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
