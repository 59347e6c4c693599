package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/devflowkit/mrpilot/internal/workflow"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
	infoMark = color.New(color.FgCyan).Sprint("·")
)

// spinnerProgress renders pipeline activity with a spinner on a TTY and
// plain lines otherwise.
type spinnerProgress struct {
	isTTY   bool
	spinner *spinner.Spinner
}

func newProgress() *spinnerProgress {
	return &spinnerProgress{isTTY: term.IsTerminal(int(os.Stderr.Fd()))}
}

func (p *spinnerProgress) Start(message string) {
	if !p.isTTY {
		fmt.Fprintln(os.Stderr, message)
		return
	}
	p.stop()
	p.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	p.spinner.Writer = os.Stderr
	p.spinner.Suffix = " " + message
	p.spinner.Start()
}

func (p *spinnerProgress) Done(message string) {
	p.stop()
	fmt.Fprintf(os.Stderr, "%s %s\n", okMark, message)
}

func (p *spinnerProgress) Info(message string) {
	p.stop()
	fmt.Fprintf(os.Stderr, "%s %s\n", infoMark, message)
}

func (p *spinnerProgress) Warn(message string) {
	p.stop()
	fmt.Fprintf(os.Stderr, "%s %s\n", warnMark, message)
}

func (p *spinnerProgress) stop() {
	if p.spinner != nil {
		p.spinner.Stop()
		p.spinner = nil
	}
}

// surveyConfirm asks yes/no questions interactively.
type surveyConfirm struct {
	progress *spinnerProgress
}

func (c *surveyConfirm) Confirm(question string, defaultYes bool) (bool, error) {
	// The spinner and the prompt cannot share the terminal.
	if c.progress != nil {
		c.progress.stop()
	}
	answer := defaultYes
	err := survey.AskOne(&survey.Confirm{Message: question, Default: defaultYes}, &answer)
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	return answer, nil
}

var (
	_ workflow.Progress  = (*spinnerProgress)(nil)
	_ workflow.Confirmer = (*surveyConfirm)(nil)
)
