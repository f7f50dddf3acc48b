// Package cliutil holds the small set of conventions shared across every
// flowctl subcommand: exit codes, the --json flag, and lipgloss styling.
package cliutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Exit codes shared across subcommands (spec.md §6).
const (
	ExitSuccess = 0
	ExitFailed  = 1
	ExitBreaking = 2
)

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Cause }

// HandleExitError prints err and exits with its code, defaulting to
// ExitFailed when err is not an *ExitError.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	os.Exit(ExitFailed)
}

var jsonFlag bool

// JSONFlagPtr returns the pointer bound to the root command's --json flag.
func JSONFlagPtr() *bool { return &jsonFlag }

// JSON reports whether --json was set.
func JSON() bool { return jsonFlag }

// EmitJSON writes v to stdout as indented JSON.
func EmitJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Styling, ported from the teacher's lipgloss palette.
var (
	StatusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	StatusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	Muted       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	Bold        = lipgloss.NewStyle().Bold(true)
	Header      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// RenderOK renders msg with a green checkmark.
func RenderOK(msg string) string { return StatusOK.Render("✓") + " " + msg }

// RenderWarn renders msg with an orange warning glyph.
func RenderWarn(msg string) string { return StatusWarn.Render("⚠") + " " + msg }

// RenderError renders msg with a red cross.
func RenderError(msg string) string { return StatusError.Render("✗") + " " + msg }
