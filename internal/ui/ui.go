package ui

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
)

// UI is the command-line output surface shared by commands.
type UI struct {
	Verbose bool
	Quiet   bool
	spinner *Spinner
}

// NewUI creates a new UI instance
func NewUI(verbose, quiet bool) *UI {
	return &UI{
		Verbose: verbose,
		Quiet:   quiet,
	}
}

// Printf prints formatted output if not in quiet mode
func (u *UI) Printf(format string, args ...interface{}) {
	if !u.Quiet {
		fmt.Printf(format, args...)
	}
}

// Println prints a line if not in quiet mode
func (u *UI) Println(args ...interface{}) {
	if !u.Quiet {
		fmt.Println(args...)
	}
}

// StartProgress starts a spinner with a message
func (u *UI) StartProgress(message string) {
	if !u.Quiet {
		u.spinner = NewSpinner(message)
		u.spinner.Start()
	}
}

// StopProgress stops the spinner started by StartProgress
func (u *UI) StopProgress(success bool, message string) {
	if u.spinner != nil {
		u.spinner.Stop(success, message)
		u.spinner = nil
	}
}

// Warning prints a warning message
func (u *UI) Warning(message string) {
	if !u.Quiet {
		ShowWarning(message)
	}
}

// Info prints an information message
func (u *UI) Info(message string) {
	if !u.Quiet {
		ShowInfo(message)
	}
}

// Success prints a success message
func (u *UI) Success(message string) {
	if !u.Quiet {
		ShowSuccess(message)
	}
}

// Section prints a section header
func (u *UI) Section(title string) {
	if u.Quiet {
		return
	}
	fmt.Printf("\n%s %s\n", ColorBold("▶"), ColorBold(title))
	fmt.Println(strings.Repeat("─", 50))
}

// KeyValue prints a key-value pair in a formatted way
func (u *UI) KeyValue(key, value string) {
	if !u.Quiet {
		fmt.Printf("  %-20s %s\n", ColorDim(key+":"), truncate(value, 100))
	}
}

// Preview prints a dry-run preview block.
func (u *UI) Preview(title, content string) {
	if u.Quiet {
		return
	}
	heading := color.New(color.FgYellow, color.Bold)
	heading.Printf("\n--- %s (dry run) ---\n", title)
	fmt.Println(content)
	heading.Println("--- end of preview ---")
}

// Password displays a password input prompt
func Password(message, help string) (string, error) {
	var result string
	prompt := &survey.Password{
		Message: message,
		Help:    help,
	}
	err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required))
	return result, err
}

// Confirm shows a yes/no prompt
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	err := survey.AskOne(prompt, &result)
	return result, err
}

// ShowLogo displays the application logo
func ShowLogo() {
	logo := `
   __      _         _
  / _| ___| |__   __| |_ __ ___  _ __
 | |_ / _` + "`" + ` | '_ \ / _` + "`" + ` | '__/ _ \| '_ \
 |  _| (_| | |_) | (_| | | | (_) | |_) |
 |_|  \__,_|_.__/ \__,_|_|  \___/| .__/
                                 |_|
       Ship the monthly dataset to Fabric
`
	fmt.Println(ColorInfo(logo))
}
