package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"golang.org/x/term"
)

// terminalProgress renders a progress bar for copied members on a terminal
type terminalProgress struct {
	w     io.Writer
	bar   progress.Model
	total int
	done  int
}

// newTerminalProgress returns a progress bar writing to f, or nil if f is not a terminal.
func newTerminalProgress(f *os.File) *terminalProgress {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	width := 40
	if w, _, err := term.GetSize(fd); err == nil && w/3 > 10 {
		width = w / 3
	}
	return &terminalProgress{
		w:   f,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(width)),
	}
}

func (p *terminalProgress) Start(total int) {
	p.total = total
	p.done = 0
	p.render()
}

func (p *terminalProgress) Increment() {
	p.done++
	p.render()
}

func (p *terminalProgress) Finish() {
	p.render()
	fmt.Fprintln(p.w)
}

func (p *terminalProgress) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\rprocessing files %d", p.done)
		return
	}
	percent := float64(p.done) / float64(p.total)
	if percent > 1 {
		percent = 1
	}
	fmt.Fprintf(p.w, "\rprocessing files %s %d/%d", p.bar.ViewAs(percent), p.done, p.total)
}
