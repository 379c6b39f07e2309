// Package client drives an interview from the terminal over the gateway
// WebSocket.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// Speaker voices complete sentences.
type Speaker interface {
	Speak(sentence string) error
}

// Announcer is implemented by speakers that introduce who is asking.
type Announcer interface {
	Announce(agent string) error
}

// Listener yields the fragments of one answer and stops when the candidate
// is done. An answer with no fragments means input has ended.
type Listener interface {
	Listen(ctx context.Context) iter.Seq[string]
}

var (
	agentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	textStyle  = lipgloss.NewStyle().PaddingLeft(2)
	noteStyle  = lipgloss.NewStyle().Faint(true)
)

// TerminalSpeaker prints sentences with lipgloss styles.
type TerminalSpeaker struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminalSpeaker(out io.Writer) *TerminalSpeaker {
	return &TerminalSpeaker{out: out}
}

func (s *TerminalSpeaker) Announce(agent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, "\n"+agentStyle.Render(agent+":"))
	return err
}

func (s *TerminalSpeaker) Speak(sentence string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, textStyle.Render(sentence))
	return err
}

// Note prints a dimmed status line.
func (s *TerminalSpeaker) Note(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, noteStyle.Render(text))
}

// TerminalListener reads one line per answer. On a terminal it uses a
// promptui prompt, otherwise it scans the input line by line.
type TerminalListener struct {
	interactive bool
	scanner     *bufio.Scanner
}

// NewTerminalListener detects whether in is a terminal.
func NewTerminalListener(in *os.File) *TerminalListener {
	return &TerminalListener{
		interactive: term.IsTerminal(int(in.Fd())),
		scanner:     bufio.NewScanner(in),
	}
}

// NewLineListener reads answers from r without prompting.
func NewLineListener(r io.Reader) *TerminalListener {
	return &TerminalListener{scanner: bufio.NewScanner(r)}
}

func (l *TerminalListener) Listen(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		if ctx.Err() != nil {
			return
		}
		line, ok := l.readLine()
		if !ok {
			return
		}
		yield(line)
	}
}

func (l *TerminalListener) readLine() (string, bool) {
	if l.interactive {
		prompt := promptui.Prompt{Label: "Your answer"}
		line, err := prompt.Run()
		if err != nil {
			// ErrInterrupt and ErrEOF both end the interview.
			return "", false
		}
		return strings.TrimSpace(line), true
	}

	if !l.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(l.scanner.Text()), true
}
