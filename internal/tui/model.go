package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mt4110/vsplit/internal/batch"
	"github.com/mt4110/vsplit/internal/config"
	"github.com/mt4110/vsplit/internal/watcher"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))
)

const maxHistory = 12

type Model struct {
	cfg  *config.Config
	stop func()
	sub  chan interface{}

	spinner spinner.Model

	current  string
	fileIdx  int
	total    int
	segDone  int
	segTotal int
	segments int
	stopping bool
	finished *batch.Report
	history  []string
}

// NewModel builds the progress view. stop is called when the user presses s.
func NewModel(cfg *config.Config, sub chan interface{}, stop func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		cfg:     cfg,
		stop:    stop,
		sub:     sub,
		spinner: s,
		history: []string{},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForActivity(m.sub),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.finished == nil && !m.stopping && m.stop != nil {
				m.stop()
			}
			return m, tea.Quit
		case "s":
			if m.finished == nil && !m.stopping && m.stop != nil {
				m.stopping = true
				m.stop()
				m.push("⏹ 停止要求を送信しました (現在のセグメント完了後に停止)")
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case watcher.FileFoundEvent:
		m.push("👀 検知: " + msg.Name)
		return m, waitForActivity(m.sub)

	case batch.FileStartEvent:
		m.finished = nil
		m.current = msg.Path
		m.fileIdx = msg.Index + 1
		m.total = msg.Total
		m.segDone = 0
		m.segTotal = 0
		m.push("🚀 処理開始: " + filepath.Base(msg.Path))
		return m, waitForActivity(m.sub)

	case batch.SegmentDoneEvent:
		m.segDone++
		m.segments++
		m.segTotal = msg.Planned
		return m, waitForActivity(m.sub)

	case batch.FileDoneEvent:
		if msg.Skipped {
			m.push("⏭ 短すぎるためスキップ: " + filepath.Base(msg.Path))
		} else {
			m.push(fmt.Sprintf("✅ 完了: %s (%d セグメント)", filepath.Base(msg.Path), msg.Segments))
		}
		m.current = ""
		return m, waitForActivity(m.sub)

	case batch.FileFailedEvent:
		m.push(errorStyle.Render(fmt.Sprintf("❌ 失敗: %s: %v", filepath.Base(msg.Path), msg.Err)))
		m.current = ""
		return m, waitForActivity(m.sub)

	case batch.FinishedEvent:
		m.finished = msg.Report
		m.current = ""
		m.stopping = false
		return m, waitForActivity(m.sub)
	}
	return m, nil
}

func (m *Model) push(line string) {
	m.history = append([]string{line}, m.history...)
	if len(m.history) > maxHistory {
		m.history = m.history[:maxHistory]
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("✂️ vsplit") + "\n\n")

	b.WriteString(fmt.Sprintf("入力: %s\n", m.cfg.InputDir))
	b.WriteString(fmt.Sprintf("チャンク: %d 秒 / %s\n\n", m.cfg.ChunkDuration, m.cfg.Segmenter))

	switch {
	case m.finished != nil:
		b.WriteString(m.finished.Status() + "\n")
	case m.current != "":
		progress := fmt.Sprintf("%d", m.segDone)
		if m.segTotal > 0 {
			progress = fmt.Sprintf("%d/%d", m.segDone, m.segTotal)
		}
		b.WriteString(fmt.Sprintf("%s [%d/%d] %s  セグメント %s\n",
			m.spinner.View(), m.fileIdx, m.total, filepath.Base(m.current), progress))
	default:
		b.WriteString(statusStyle.Render(m.spinner.View()+" 待機中") + "\n")
	}
	if m.stopping {
		b.WriteString(statusStyle.Render("  停止処理中...") + "\n")
	}
	b.WriteString(fmt.Sprintf("書き出し済み: %d セグメント\n", m.segments))

	b.WriteString("\n最近の履歴:\n")
	if len(m.history) == 0 {
		b.WriteString(statusStyle.Render("  (履歴なし)") + "\n")
	}
	for _, h := range m.history {
		b.WriteString("  " + h + "\n")
	}

	b.WriteString("\n操作: [s] 停止  [q] 終了\n")
	return b.String()
}

func waitForActivity(sub chan interface{}) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}
