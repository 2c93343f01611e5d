package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/maxgio92/callident"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
)

type report struct {
	Binary       string       `json:"binary"`
	Blocks       int          `json:"blocks"`
	Calls        []callReport `json:"calls"`
	Fallthroughs []string     `json:"fallthroughs"`
	Edges        []edgeReport `json:"edges,omitempty"`
}

type callReport struct {
	Caller        string `json:"caller"`
	Callee        string `json:"callee,omitempty"`
	Fallthrough   string `json:"fallthrough"`
	ReturnAddress string `json:"return_address"`
}

type edgeReport struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

func newReport(binary string, m *callident.Module, p *callident.Pass, withEdges bool) *report {
	rep := &report{
		Binary:       binary,
		Calls:        []callReport{},
		Fallthroughs: []string{},
	}
	for _, fn := range m.Functions {
		rep.Blocks += len(fn.Blocks)
	}

	g := p.CFG()
	for _, site := range g.CallSites() {
		call := callReport{
			Caller:        site.Caller.Start.String(),
			Fallthrough:   site.Fallthrough.Start.String(),
			ReturnAddress: site.ReturnAddress.String(),
		}
		if site.Callee != nil {
			call.Callee = site.Callee.Start.String()
		}
		rep.Calls = append(rep.Calls, call)
	}
	for _, addr := range p.FallthroughAddresses() {
		rep.Fallthroughs = append(rep.Fallthroughs, addr.String())
	}
	if withEdges {
		for _, e := range g.Edges() {
			rep.Edges = append(rep.Edges, edgeReport{
				From: e.From.Start.String(),
				To:   e.To.Start.String(),
				Kind: e.Kind.String(),
			})
		}
	}

	return rep
}

func (r *report) write(w io.Writer, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case formatText:
		return r.writeText(w)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func (r *report) writeText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s: %d blocks, %d calls, %d fallthroughs\n",
		r.Binary, r.Blocks, len(r.Calls), len(r.Fallthroughs)); err != nil {
		return err
	}
	for _, c := range r.Calls {
		callee := c.Callee
		if callee == "" {
			callee = "indirect"
		}
		if _, err := fmt.Fprintf(w, "call %s -> %s, returns to %s (%s)\n",
			c.Caller, callee, c.Fallthrough, c.ReturnAddress); err != nil {
			return err
		}
	}
	for _, e := range r.Edges {
		if _, err := fmt.Fprintf(w, "edge %s -> %s [%s]\n", e.From, e.To, e.Kind); err != nil {
			return err
		}
	}
	return nil
}
