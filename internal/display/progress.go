package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// progressBar redraws a single terminal line.
type progressBar struct {
	w      io.Writer
	width  int
	style  lipgloss.Style
	failed bool
	drawn  bool
}

func (p *progressBar) update(done, total int, name string) {
	if total <= 0 {
		return
	}
	barWidth := max(p.width/3, 10)
	filled := barWidth * done / total

	bar := strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled)
	if p.failed {
		bar = p.style.Render(bar)
	}
	line := fmt.Sprintf("%3d%% [%s] %d/%d ", done*100/total, bar, done, total)

	used := len("100% [") + barWidth + len("] ") + len(fmt.Sprintf("%d/%d ", done, total))
	if rest := p.width - used - 1; rest > 3 {
		line += runewidth.Truncate(name, rest, "...")
	}

	fmt.Fprintf(p.w, "\r\x1b[K%s", line)
	p.drawn = true
}

func (p *progressBar) clear() {
	if !p.drawn {
		return
	}
	fmt.Fprint(p.w, "\r\x1b[K")
	p.drawn = false
}
