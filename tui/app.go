// Package tui shows a running benchmark in the terminal.
package tui

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/ChristianF88/pradix/bench"
)

var modeColors = map[bench.Mode]tcell.Color{
	bench.Sequential:   tcell.ColorWhite,
	bench.SharedMemory: tcell.ColorAqua,
	bench.Distributed:  tcell.ColorFuchsia,
	bench.Pargo:        tcell.ColorYellow,
	bench.Stdlib:       tcell.ColorSilver,
}

// App represents the TUI application
type App struct {
	app          *tview.Application
	pages        *tview.Pages
	progressView *tview.TextView
	table        *tview.Table
	summary      *tview.TextView
	statusBar    *tview.TextView

	opts bench.Options

	// Shared mutable state protected by mu (written by the benchmark goroutine)
	mu      sync.Mutex
	results []bench.Measurement
	done    int
	total   int
	err     error

	finished atomic.Bool
}

// NewApp builds the dashboard for a benchmark with opts.
func NewApp(opts bench.Options) *App {
	opts.Defaults()
	a := &App{
		app:   tview.NewApplication(),
		pages: tview.NewPages(),
		opts:  opts,
		total: len(opts.Sizes) * len(opts.Modes),
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.progressView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false).
		SetWrap(false)
	a.progressView.SetBorder(true).SetTitle(" pradix benchmark ").SetTitleAlign(tview.AlignCenter)

	a.table = tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0).
		SetSelectable(true, false)
	a.table.SetBorder(true).SetTitle(" Measurements ").SetTitleAlign(tview.AlignLeft)
	fillTable(a.table, nil)

	a.summary = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.summary.SetBorder(true).SetTitle(" Fastest per size ").SetTitleAlign(tview.AlignLeft)

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetText("[yellow]Benchmark running...[white] | 'r' results, 'p' progress, 'q' quit")

	progress := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.progressView, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	results := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(a.table, 0, 2, true).
			AddItem(a.summary, 0, 1, false), 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.AddPage("progress", progress, true, true)
	a.pages.AddPage("results", results, true, false)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			a.app.Stop()
			return nil
		case 'r', 'R':
			a.pages.SwitchToPage("results")
			a.app.SetFocus(a.table)
			return nil
		case 'p', 'P':
			a.pages.SwitchToPage("progress")
			return nil
		}
		return event
	})

	a.progressView.SetText(a.progressText())
	a.app.SetRoot(a.pages, true)
}

// Observe records a finished measurement; it matches bench.Observer and is
// safe to call from the benchmark goroutine.
func (a *App) Observe(done, total int, m bench.Measurement) {
	a.mu.Lock()
	a.results = append(a.results, m)
	a.done, a.total = done, total
	results := append([]bench.Measurement(nil), a.results...)
	text := a.progressTextLocked()
	a.mu.Unlock()

	a.app.QueueUpdateDraw(func() {
		a.progressView.SetText(text)
		fillTable(a.table, results)
		a.summary.SetText(summaryText(results))
	})
}

// Finish marks the benchmark complete and switches to the results page.
func (a *App) Finish(err error) {
	a.mu.Lock()
	a.err = err
	text := a.progressTextLocked()
	a.mu.Unlock()
	a.finished.Store(true)

	a.app.QueueUpdateDraw(func() {
		a.progressView.SetText(text)
		if err != nil {
			a.statusBar.SetText(fmt.Sprintf("[red]Benchmark failed: %v[white] | 'q' quit", err))
			return
		}
		a.statusBar.SetText("[green]Benchmark complete[white] | 'p' progress, 'q' quit")
		a.pages.SwitchToPage("results")
		a.app.SetFocus(a.table)
	})
}

// Run starts the TUI and blocks until the user quits.
func (a *App) Run() error {
	return a.app.Run()
}

func (a *App) progressText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progressTextLocked()
}

func (a *App) progressTextLocked() string {
	var b strings.Builder
	b.WriteString("\n[white::b]Radix sort benchmark[white::-]\n\n")
	fmt.Fprintf(&b, "%s %d/%d\n\n", progressBar(a.done, a.total, 40), a.done, a.total)
	fmt.Fprintf(&b, "[dim]Sizes:[white]   %v\n", a.opts.Sizes)
	fmt.Fprintf(&b, "[dim]Modes:[white]   %v\n", a.opts.Modes)
	fmt.Fprintf(&b, "[dim]Threads:[white] %d  [dim]Ranks:[white] %d  [dim]Repeat:[white] %d\n", a.opts.Threads, a.opts.Ranks, a.opts.Repeat)
	if n := len(a.results); n > 0 {
		last := a.results[n-1]
		fmt.Fprintf(&b, "\n[dim]Last:[white] %s n=%d in %s\n", last.Mode, last.Size, last.Elapsed)
	}
	if a.err != nil {
		fmt.Fprintf(&b, "\n[red]%v[white]\n", a.err)
	}
	return b.String()
}

func progressBar(done, total, width int) string {
	if total <= 0 {
		return "[" + strings.Repeat(" ", width) + "]"
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	return "[green]" + strings.Repeat("█", filled) + "[white]" + strings.Repeat("░", width-filled)
}

var headers = []string{"Size", "Mode", "Workers", "Time (s)", "Melem/s", "Passes", "Verified"}

// fillTable replaces the table contents with one row per measurement.
func fillTable(t *tview.Table, results []bench.Measurement) {
	t.Clear()
	for col, h := range headers {
		t.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	for i, m := range results {
		row := i + 1
		color, ok := modeColors[m.Mode]
		if !ok {
			color = tcell.ColorDefault
		}
		verified, vcolor := "yes", tcell.ColorGreen
		if !m.Verified {
			verified, vcolor = "NO", tcell.ColorRed
		}
		cells := []string{
			fmt.Sprint(m.Size),
			string(m.Mode),
			fmt.Sprint(m.Workers),
			fmt.Sprintf("%.6f", m.Elapsed.Seconds()),
			fmt.Sprintf("%.1f", m.Throughput()/1e6),
			fmt.Sprint(m.Passes),
		}
		for col, text := range cells {
			t.SetCell(row, col, tview.NewTableCell(text).SetTextColor(color).SetAlign(tview.AlignRight))
		}
		t.SetCell(row, len(cells), tview.NewTableCell(verified).SetTextColor(vcolor))
	}
}

// summaryText names the fastest mode for every size seen so far.
func summaryText(results []bench.Measurement) string {
	var sizes []int
	best := make(map[int]bench.Measurement)
	for _, m := range results {
		b, ok := best[m.Size]
		if !ok {
			sizes = append(sizes, m.Size)
		}
		if !ok || m.Elapsed < b.Elapsed {
			best[m.Size] = m
		}
	}
	var b strings.Builder
	for _, n := range sizes {
		m := best[n]
		fmt.Fprintf(&b, "[dim]n=%d[white]\n  [green]%s[white] %.6f s\n", n, m.Mode, m.Elapsed.Seconds())
	}
	return b.String()
}
