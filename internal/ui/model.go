package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/cardshift/internal/converter"
	"github.com/nconklindev/cardshift/internal/types"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type state int

const (
	stateFilePicker state = iota
	stateOutputPath
	stateProcessing
	stateComplete
	stateError
)

const (
	msgNoInput  = "No input path!"
	msgNoOutput = "No output path!"
)

// Options seeds the model. Every field is optional.
type Options struct {
	StartDir   string
	OutputPath string
	Logger     *log.Logger
}

type Model struct {
	state        state
	filepicker   filepicker.Model
	output       textinput.Model
	selectedFile string
	fileData     *types.FileData
	preview      []types.Record
	missing      []string
	message      string
	result       *types.ConversionResult
	err          error
	width        int
	height       int
	progress     progress.Model
	progressChan chan float64
	logger       *log.Logger
}

type fileLoadedMsg struct {
	data *types.FileData
	err  error
}

type conversionCompleteMsg struct {
	result *types.ConversionResult
	err    error
}

type progressMsg float64

func InitialModel(opts Options) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".csv", ".xlsx"}
	fp.CurrentDirectory = opts.StartDir
	if fp.CurrentDirectory == "" {
		fp.CurrentDirectory, _ = os.Getwd()
	}

	// Set filepicker colors to match theme
	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(accent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(highlight)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(highlight)
	fp.Styles.File = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(muted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(accent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(muted)

	ti := textinput.New()
	ti.Placeholder = "path/to/collection.csv"
	ti.Width = 60
	ti.PromptStyle = lipgloss.NewStyle().Foreground(accent)
	ti.SetValue(opts.OutputPath)

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return Model{
		state:      stateFilePicker,
		filepicker: fp,
		output:     ti,
		progress:   progress.New(progress.WithGradient("#7C5CFF", "#A78BFA")),
		logger:     logger,
	}
}

func (m Model) Init() tea.Cmd {
	return m.filepicker.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Leave room for title, subtitle and help text
		height := msg.Height - 14
		if height < 5 {
			height = 5
		}
		m.filepicker.SetHeight(height)

		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateFilePicker:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			}

		case stateOutputPath:
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc":
				m.state = stateFilePicker
				m.message = ""
				return m, nil
			case "enter":
				return m.startConversion()
			}
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd

		case stateProcessing:
			// Conversion cannot be cancelled once started.
			return m, nil

		case stateComplete:
			switch msg.String() {
			case "ctrl+c", "q", "esc":
				return m, tea.Quit
			case "enter":
				m.state = stateFilePicker
				return m, nil
			}

		case stateError:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "enter", "esc":
				m.message = m.err.Error()
				m.err = nil
				if m.fileData != nil {
					m.state = stateOutputPath
					return m, m.output.Focus()
				}
				m.state = stateFilePicker
				return m, nil
			}
		}

	case fileLoadedMsg:
		if msg.err != nil {
			m.logger.Error("preview failed", "input", m.selectedFile, "err", msg.err)
			m.err = msg.err
			m.fileData = nil
			m.state = stateError
			return m, nil
		}
		m.fileData = msg.data
		m.missing = types.MissingColumns(msg.data.Headers)
		m.preview, _ = converter.PreviewRecords(msg.data)
		m.message = ""
		m.state = stateOutputPath
		return m, m.output.Focus()

	case conversionCompleteMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.result = msg.result
		m.message = fmt.Sprintf("Appended %d row(s) to %s", msg.result.RowsWritten, msg.result.OutputFile)
		m.state = stateComplete
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		if m.state == stateProcessing {
			cmd := m.progress.SetPercent(float64(msg))
			return m, tea.Batch(cmd, waitForProgress(m.progressChan))
		}
		return m, nil
	}

	// Handle filepicker updates
	if m.state == stateFilePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)

		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			return m, m.loadFile(path)
		}

		return m, cmd
	}

	if m.state == stateOutputPath {
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) loadFile(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := converter.Preview(converter.FromPath(path), converter.PreviewLimit)
		return fileLoadedMsg{data: data, err: err}
	}
}

func (m Model) outputPath() string {
	return strings.TrimSpace(m.output.Value())
}

// startConversion checks both paths and, if they look usable, runs the
// conversion in the background.
func (m Model) startConversion() (Model, tea.Cmd) {
	if m.selectedFile == "" {
		m.message = msgNoInput
		return m, nil
	}
	if _, err := os.Stat(m.selectedFile); err != nil {
		m.message = msgNoInput
		return m, nil
	}
	if m.outputPath() == "" {
		m.message = msgNoOutput
		return m, nil
	}

	m.state = stateProcessing
	m.message = ""
	m.progressChan = make(chan float64, 100)

	progressChan := m.progressChan
	in := converter.FromPath(m.selectedFile)
	outputFile := m.outputPath()
	logger := m.logger

	cmd := tea.Batch(
		func() tea.Msg {
			result, err := converter.Convert(in, outputFile, converter.Options{
				Logger:   logger,
				Progress: progressChan,
			})
			close(progressChan)
			return conversionCompleteMsg{result: result, err: err}
		},
		waitForProgress(progressChan),
		m.progress.SetPercent(0),
	)

	return m, cmd
}

func waitForProgress(progressChan chan float64) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			return nil
		}
		return progressMsg(p)
	}
}

func (m Model) View() string {
	switch m.state {
	case stateFilePicker:
		return m.viewFilePicker()
	case stateOutputPath:
		return m.viewOutputPath()
	case stateProcessing:
		return m.viewProcessing()
	case stateComplete:
		return m.viewComplete()
	case stateError:
		return m.viewError()
	}
	return ""
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("🃏 cardshift - DragonShield export converter"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Select the exported CSV (or XLSX) file"))
	s.WriteString("\n\n")
	s.WriteString(m.filepicker.View())
	if m.message != "" {
		s.WriteString("\n\n")
		s.WriteString(MessageStyle.Render("Messages: " + m.message))
	}
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("enter: select • q: quit"))

	return s.String()
}

func (m Model) viewOutputPath() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("🃏 Convert"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("Input: %s", m.truncate(m.selectedFile))))
	s.WriteString("\n\n")

	if len(m.missing) > 0 {
		s.WriteString(ErrorStyle.Render(fmt.Sprintf("✗ Missing column(s): %s", strings.Join(m.missing, ", "))))
		s.WriteString("\n\n")
	} else if m.fileData != nil {
		s.WriteString(SuccessStyle.Render(fmt.Sprintf("✓ Columns found, showing %d sample row(s)", len(m.preview))))
		s.WriteString("\n")
		for _, rec := range m.preview {
			s.WriteString(UnselectedStyle.Render(fmt.Sprintf("  %s × %s (%s #%s)", rec.Quantity, rec.CardName, rec.SetCode, rec.CardNumber)))
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	s.WriteString("Output path:\n")
	s.WriteString(m.output.View())
	s.WriteString("\n\n")
	s.WriteString(SubtitleStyle.Render("Rows are appended; a header is written only to an empty file."))
	s.WriteString("\n")
	s.WriteString(MessageStyle.Render("Messages: " + m.message))
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("enter: convert • esc: pick another file • ctrl+c: quit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewProcessing() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("🃏 Processing..."))
	s.WriteString("\n\n")
	s.WriteString("Renaming columns and appending rows...")
	s.WriteString("\n\n")
	s.WriteString(m.progress.View())

	return BoxStyle.Render(s.String())
}

func (m Model) viewComplete() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("✓ Conversion Complete!"))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Input:  %s\n", m.truncate(m.result.InputFile)))
	s.WriteString(SuccessStyle.Render(fmt.Sprintf("Output: %s\n", m.truncate(m.result.OutputFile))))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Rows appended: %d\n", m.result.RowsWritten))
	if m.result.HeaderWritten {
		s.WriteString("Header written: yes\n")
	}
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("enter: convert another file • q: quit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewError() string {
	var s strings.Builder

	s.WriteString(ErrorStyle.Render("✗ Error"))
	s.WriteString("\n\n")
	s.WriteString(m.err.Error())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("enter: back • q: quit"))

	return BoxStyle.Render(s.String())
}

// truncate shortens long paths to fit the current width.
func (m Model) truncate(path string) string {
	maxPathLen := m.width - 20
	if maxPathLen < 30 {
		maxPathLen = 30
	}
	if len(path) > maxPathLen {
		return "..." + path[len(path)-maxPathLen+3:]
	}
	return filepath.Clean(path)
}
