package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ReadRows returns the formatted cells of readRange (A1 notation, e.g.
// "'Budgets'!A1:J") as text. Short rows are not padded.
func (c *Client) ReadRows(ctx context.Context, readRange string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	readRange = strings.TrimSpace(readRange)
	if readRange == "" {
		return nil, errors.New("missing read range")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", readRange, err)
	}
	return valuesToRows(resp.Values), nil
}

func valuesToRows(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
