package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/maxgio92/callident"
	"github.com/maxgio92/callident/lift"
)

func newTestReport(t *testing.T, withEdges bool) *report {
	t.Helper()

	// 0x1000: call 0x100a; 0x1005: ret; 0x1006: call rax; 0x1008: ret;
	// 0x1009: nop; 0x100a: ret
	code := []byte{
		0xE8, 0x05, 0x00, 0x00, 0x00,
		0xC3,
		0xFF, 0xD0,
		0xC3,
		0x90,
		0xC3,
	}
	m, err := lift.Lift(code, lift.Config{Arch: lift.ArchAMD64, BaseAddr: 0x1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := callident.NewPass()
	if err := p.Run(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return newReport("demo", m, p, withEdges)
}

func TestReport_JSON(t *testing.T) {
	rep := newTestReport(t, false)

	var buf bytes.Buffer
	if err := rep.write(&buf, formatJSON); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}

	want := []callReport{
		{Caller: "0x1000", Callee: "0x100a", Fallthrough: "0x1005", ReturnAddress: "0x1005"},
		{Caller: "0x1006", Fallthrough: "0x1008", ReturnAddress: "0x1008"},
	}
	if diff := cmp.Diff(want, got.Calls); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"0x1005", "0x1008"}, got.Fallthroughs); diff != "" {
		t.Errorf("unexpected fallthroughs (-want +got):\n%s", diff)
	}
	if got.Edges != nil {
		t.Errorf("expected no edges, got %v", got.Edges)
	}
}

func TestReport_Text(t *testing.T) {
	rep := newTestReport(t, true)

	var buf bytes.Buffer
	if err := rep.write(&buf, formatText); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"demo: ",
		"call 0x1000 -> 0x100a, returns to 0x1005 (0x1005)",
		"call 0x1006 -> indirect, returns to 0x1008 (0x1008)",
		"edge 0x1000 -> 0x1005 [fallthrough]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestReport_UnsupportedFormat(t *testing.T) {
	rep := newTestReport(t, false)

	if err := rep.write(&bytes.Buffer{}, "sarif"); err == nil {
		t.Fatal("expected error for unsupported format, got nil")
	}
}
