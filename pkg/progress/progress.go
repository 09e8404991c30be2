// Package progress рисует ASCII-индикатор выполнения загрузок.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	barWidth     = 32
	renderPeriod = 120 * time.Millisecond
)

// Bar рисует индикатор для одного файла. Безопасен для конкурентного использования.
type Bar struct {
	out           io.Writer
	prefix        string
	total         int64
	current       int64
	lastRender    time.Time
	lastLineWidth int
	finished      bool
	mu            sync.Mutex
}

// New создаёт индикатор; total <= 0 означает неизвестный размер.
func New(out io.Writer, prefix string, total int64) *Bar {
	return &Bar{
		out:    out,
		prefix: prefix,
		total:  total,
	}
}

// Set выставляет абсолютное значение прогресса. Сервер может откатить offset после resync,
// поэтому значение не обязано расти монотонно.
func (p *Bar) Set(current int64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.current = current
	p.mu.Unlock()
	p.render(false, "")
}

// Add увеличивает прогресс на n байт.
func (p *Bar) Add(n int64) {
	if p == nil || n <= 0 {
		return
	}
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.current += n
	p.mu.Unlock()
	p.render(false, "")
}

// Current возвращает текущее значение.
func (p *Bar) Current() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Start принудительно рисует начальное состояние.
func (p *Bar) Start() {
	p.render(true, "")
}

func (p *Bar) render(force bool, suffix string) {
	if p == nil || p.out == nil {
		return
	}
	p.mu.Lock()
	if p.finished && !force {
		p.mu.Unlock()
		return
	}
	now := time.Now()
	if !force && now.Sub(p.lastRender) < renderPeriod {
		p.mu.Unlock()
		return
	}

	line := p.lineLocked()
	prevWidth := p.lastLineWidth
	p.lastLineWidth = len(line) + len(suffix)
	p.lastRender = now
	p.mu.Unlock()

	padding := ""
	if prevWidth > len(line)+len(suffix) {
		padding = strings.Repeat(" ", prevWidth-len(line)-len(suffix))
	}
	fmt.Fprintf(p.out, "\r%s%s%s", line, suffix, padding)
}

func (p *Bar) lineLocked() string {
	var builder strings.Builder
	builder.Grow(len(p.prefix) + 64)
	builder.WriteString(p.prefix)
	builder.WriteByte(' ')

	if p.total > 0 {
		ratio := float64(p.current) / float64(p.total)
		if ratio > 1 {
			ratio = 1
		}
		if ratio < 0 {
			ratio = 0
		}
		filled := int(ratio*float64(barWidth) + 0.5)
		if filled > barWidth {
			filled = barWidth
		}
		builder.WriteByte('[')
		builder.WriteString(strings.Repeat("=", filled))
		builder.WriteString(strings.Repeat(" ", barWidth-filled))
		builder.WriteString("] ")
		builder.WriteString(fmt.Sprintf("%3d%% ", int(ratio*100+0.5)))
		builder.WriteString(humanBytes(p.current))
		builder.WriteByte('/')
		builder.WriteString(humanBytes(p.total))
	} else {
		builder.WriteString(humanBytes(p.current))
		builder.WriteString(" transferred")
	}

	return builder.String()
}

// Finish завершает индикатор успехом.
func (p *Bar) Finish() {
	p.complete(true, nil)
}

// Fail завершает индикатор ошибкой.
func (p *Bar) Fail(err error) {
	p.complete(false, err)
}

func (p *Bar) complete(success bool, err error) {
	if p == nil {
		return
	}

	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	line := p.lineLocked()
	prevWidth := p.lastLineWidth
	p.lastLineWidth = len(line)
	p.mu.Unlock()

	if p.out == nil {
		return
	}

	suffix := " ✓"
	if !success {
		if err != nil {
			suffix = fmt.Sprintf(" ✗ %v", err)
		} else {
			suffix = " ✗"
		}
	}

	padding := ""
	if prevWidth > len(line)+len(suffix) {
		padding = strings.Repeat(" ", prevWidth-len(line)-len(suffix))
	}

	fmt.Fprintf(p.out, "\r%s%s%s\n", line, suffix, padding)
}

func humanBytes(v int64) string {
	if v < 0 {
		v = 0
	}
	return humanize.IBytes(uint64(v))
}
