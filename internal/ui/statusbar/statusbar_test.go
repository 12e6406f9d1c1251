package statusbar

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/sqlsense/internal/theme"
)

func init() {
	theme.Current = theme.Default()
}

func TestNew(t *testing.T) {
	m := New()

	if m.rowCount != -1 {
		t.Fatalf("expected rowCount=-1, got %d", m.rowCount)
	}
	if m.adapterName != "" {
		t.Fatalf("expected no adapter, got %q", m.adapterName)
	}
	if m.message != "" {
		t.Fatalf("expected empty message, got %q", m.message)
	}
}

func TestInit(t *testing.T) {
	if cmd := New().Init(); cmd != nil {
		t.Fatal("expected nil cmd from Init")
	}
}

func TestUpdate_ConnectedMsg(t *testing.T) {
	m, cmd := New().Update(ConnectedMsg{Adapter: "postgres", Database: "testdb"})
	if cmd != nil {
		t.Fatal("expected no command for ConnectedMsg")
	}
	if m.adapterName != "postgres" || m.databaseName != "testdb" {
		t.Fatalf("got %s://%s", m.adapterName, m.databaseName)
	}
}

func TestUpdate_ResultMsg(t *testing.T) {
	m, cmd := New().Update(ResultMsg{Duration: 42 * time.Millisecond, Rows: 100})
	if cmd == nil {
		t.Fatal("expected clear timer command")
	}
	if m.queryTime != 42*time.Millisecond {
		t.Fatalf("queryTime = %v", m.queryTime)
	}
	if m.rowCount != 100 {
		t.Fatalf("rowCount = %d", m.rowCount)
	}
	if m.isError {
		t.Fatal("expected isError=false")
	}
}

func TestUpdate_ResultMsg_Error(t *testing.T) {
	m := New()
	m, _ = m.Update(ResultMsg{Duration: time.Second, Rows: 3})
	m, _ = m.Update(ResultMsg{Err: errors.New("no such table: gone\ndetail")})

	if !m.isError {
		t.Fatal("expected isError=true")
	}
	if m.message != "no such table: gone" {
		t.Fatalf("message = %q, want the first line only", m.message)
	}
	if m.queryTime != 0 || m.rowCount != -1 {
		t.Fatalf("stale timing kept: %v %d", m.queryTime, m.rowCount)
	}
}

func TestUpdate_StatusMsg(t *testing.T) {
	m, cmd := New().Update(StatusMsg{Text: "schema reloaded"})
	if cmd == nil {
		t.Fatal("expected clear timer command")
	}
	if m.message != "schema reloaded" || m.isError {
		t.Fatalf("got message=%q isError=%v", m.message, m.isError)
	}

	m, _ = m.Update(StatusMsg{Text: "boom", IsError: true})
	if !m.isError {
		t.Fatal("expected isError=true")
	}
}

func TestUpdate_ClearStatusMsg_StaleIgnored(t *testing.T) {
	m := New()

	m, _ = m.Update(StatusMsg{Text: "first"})
	stale := ClearStatusMsg{gen: m.gen}
	m, _ = m.Update(StatusMsg{Text: "second"})
	fresh := ClearStatusMsg{gen: m.gen}
	if stale.gen == fresh.gen {
		t.Fatalf("expected different generations, got %d and %d", stale.gen, fresh.gen)
	}

	m, _ = m.Update(stale)
	if m.message != "second" {
		t.Fatalf("stale timer cleared newer message: got %q, want %q", m.message, "second")
	}

	m, _ = m.Update(fresh)
	if m.message != "" {
		t.Fatalf("fresh timer should clear message, got %q", m.message)
	}
	if m.rowCount != -1 {
		t.Fatalf("rowCount = %d, want -1", m.rowCount)
	}
}

func TestView_ZeroWidth(t *testing.T) {
	if view := New().View(); view != "" {
		t.Fatalf("expected empty view when width=0, got %q", view)
	}
}

func TestView_Disconnected(t *testing.T) {
	m := New()
	m.SetSize(120)

	view := m.View()
	if !strings.Contains(view, "disconnected") {
		t.Fatalf("expected disconnected, got %q", view)
	}
	if !strings.Contains(view, "Explain") {
		t.Fatalf("expected key hints when idle, got %q", view)
	}
}

func TestView_Connected(t *testing.T) {
	m := New()
	m.SetSize(120)
	m.SetFormat("csv")
	m.SetSchema(12, false)
	m, _ = m.Update(ConnectedMsg{Adapter: "mysql", Database: "shop"})

	view := m.View()
	for _, want := range []string{"mysql://shop", "12 tables", "csv"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q: %q", want, view)
		}
	}
}

func TestView_Loading(t *testing.T) {
	m := New()
	m.SetSize(120)
	m.SetSchema(0, true)

	if view := m.View(); !strings.Contains(view, "loading schema") {
		t.Fatalf("expected loading indicator, got %q", view)
	}
}

func TestView_WithQueryTime(t *testing.T) {
	m := New()
	m.SetSize(120)
	m, _ = m.Update(ResultMsg{Duration: 42 * time.Millisecond, Rows: 1500})

	view := m.View()
	if !strings.Contains(view, "42ms") || !strings.Contains(view, "1.5k rows") {
		t.Fatalf("expected timing and rows, got %q", view)
	}
}

func TestView_WithError(t *testing.T) {
	m := New()
	m.SetSize(120)
	m, _ = m.Update(ResultMsg{Err: errors.New("test error")})

	if view := m.View(); !strings.Contains(view, "test error") {
		t.Fatalf("expected error message, got %q", view)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "500µs"},
		{42 * time.Millisecond, "42ms"},
		{1500 * time.Millisecond, "1.5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1500, "1.5k"},
		{2_500_000, "2.5M"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.n); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 6); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
}
