package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// printer serializes CLI output. Colour is used only when the writer is a terminal.
type printer struct {
	mu  sync.Mutex
	out io.Writer

	label *color.Color
	data  *color.Color
	event *color.Color
	warn  *color.Color
}

func newPrinter(out io.Writer) *printer {
	p := &printer{
		out:   out,
		label: color.New(color.FgCyan),
		data:  color.New(color.FgGreen),
		event: color.New(color.FgMagenta, color.Bold),
		warn:  color.New(color.FgYellow),
	}
	if !isTerminal(out) {
		for _, c := range []*color.Color{p.label, p.data, p.event, p.warn} {
			c.DisableColor()
		}
	} else {
		for _, c := range []*color.Color{p.label, p.data, p.event, p.warn} {
			c.EnableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// field prints an aligned "label: value" line
func (p *printer) field(label string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label.Fprintf(p.out, "%-12s", label+":")
	fmt.Fprintf(p.out, " %v\n", value)
}

func (p *printer) chunk(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label.Fprint(p.out, "<- ")
	p.data.Fprintf(p.out, "%s", formatHex(data))
	fmt.Fprintf(p.out, "  (%d bytes)\n", len(data))
}

func (p *printer) eventf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.event.Fprintf(p.out, "* "+format+"\n", args...)
}

func (p *printer) warnf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warn.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// formatHex renders bytes as space separated hex pairs
func formatHex(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

// parseHex accepts "12345678", "12 34 56 78", "12:34:56:78" and an optional 0x prefix
func parseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	if s == "" {
		return nil, fmt.Errorf("no data given")
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return data, nil
}
