package results

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/sqlsense/internal/adapter"
)

func sampleResult() *adapter.QueryResult {
	return &adapter.QueryResult{
		Columns: []adapter.ColumnMeta{{Name: "id"}, {Name: "name"}},
		Rows: [][]string{
			{"1", "Alice"},
			{"2", "NULL"},
		},
		RowCount: 2,
		Duration: 12 * time.Millisecond,
		IsSelect: true,
	}
}

func TestWrite_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"ascii", []string{"id", "name", "Alice", "NULL", "2 rows in set"}},
		{"csv", []string{"id,name", "1,Alice", "2,NULL"}},
		{"tsv", []string{"id\tname", "1\tAlice"}},
		{"markdown", []string{"| id | name |", "| 1 | Alice |"}},
		{"html", []string{"<table", "<td>Alice</td>"}},
		{"vertical", []string{"1. row", "  id: 1", "name: Alice", "2. row"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, sampleResult(), tt.format); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleResult(), "json"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[0]["name"] != "Alice" || got[1]["id"] != "2" {
		t.Errorf("decoded = %v", got)
	}
}

func TestWrite_ShortRowPadsJSON(t *testing.T) {
	res := sampleResult()
	res.Rows = [][]string{{"3"}}

	var buf bytes.Buffer
	if err := Write(&buf, res, "json"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var got []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if v, ok := got[0]["name"]; !ok || v != "" {
		t.Errorf("missing column = %q, %v; want empty string", v, ok)
	}
}

func TestWrite_NonSelect(t *testing.T) {
	var buf bytes.Buffer
	res := &adapter.QueryResult{RowCount: 3, Duration: time.Millisecond}
	if err := Write(&buf, res, "csv"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), "3 rows affected") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	res.Message = "Database changed"
	if err := Write(&buf, res, "ascii"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "Database changed" {
		t.Errorf("output = %q, want message", buf.String())
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleResult(), "yaml"); err == nil {
		t.Fatal("Write(unknown format) error = nil")
	}
}

func TestWrite_Nil(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil, "ascii"); err != nil || buf.Len() != 0 {
		t.Errorf("Write(nil) = %v, %q", err, buf.String())
	}
}

func TestSupported(t *testing.T) {
	for _, f := range Formats {
		if !Supported(f) {
			t.Errorf("Supported(%q) = false", f)
		}
	}
	if Supported("yaml") {
		t.Error("Supported(yaml) = true")
	}
}
