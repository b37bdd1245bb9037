package ui

import (
	"errors"
	"fmt"

	"fabdrop/internal/lakehouse"
	apperrors "fabdrop/pkg/errors"
	"fabdrop/pkg/models"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// Asker runs survey prompts. The default implementation is the terminal.
type Asker interface {
	Ask(qs []*survey.Question, response interface{}) error
	AskOne(p survey.Prompt, response interface{}) error
}

type terminalAsker struct{}

func (terminalAsker) Ask(qs []*survey.Question, response interface{}) error {
	return survey.Ask(qs, response)
}

func (terminalAsker) AskOne(p survey.Prompt, response interface{}) error {
	return survey.AskOne(p, response)
}

// ConfigWizard walks the user through creating fabdrop.yaml.
type ConfigWizard struct {
	asker       Asker
	currentStep int
	totalSteps  int
}

// NewConfigWizard creates a wizard using the terminal
func NewConfigWizard() *ConfigWizard {
	return &ConfigWizard{asker: terminalAsker{}, currentStep: 1, totalSteps: 4}
}

type workspaceAnswers struct {
	Workspace  string `survey:"workspace"`
	DataFile   string `survey:"data_file"`
	FiscalYear string `survey:"fiscal_year"`
}

type reportAnswers struct {
	ModelName  string `survey:"model_name"`
	ReportName string `survey:"report_name"`
	Pusher     string `survey:"pusher"`
}

// Run asks for the settings that differ between teams, starting from
// base, and returns the new configuration.
func (w *ConfigWizard) Run(base *models.Config) (*models.Config, error) {
	ShowHeader("fabdrop configuration")

	config := *base
	steps := []func(*models.Config) error{
		w.workspaceStep,
		w.reportStep,
		w.authStep,
		w.review,
	}
	for _, step := range steps {
		if err := step(&config); err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "configuration cancelled")
			}
			return nil, err
		}
	}
	return &config, nil
}

func (w *ConfigWizard) workspaceStep(config *models.Config) error {
	w.showProgress("Workspace")

	questions := []*survey.Question{
		{
			Name: "workspace",
			Prompt: &survey.Input{
				Message: "Fabric workspace:",
				Default: config.Workspace,
				Help:    "Display name of the workspace holding the lakehouse and report",
			},
			Validate: survey.Required,
		},
		{
			Name: "data_file",
			Prompt: &survey.Input{
				Message: "Data file:",
				Default: config.DataFile,
				Help:    "JavaScript file declaring the dashboard dataset",
			},
			Validate: survey.Required,
		},
		{
			Name: "fiscal_year",
			Prompt: &survey.Input{
				Message: "Fiscal year:",
				Default: config.FiscalYear,
				Help:    "Label such as FY26; the year runs July 1 to June 30",
			},
			Validate: validateFiscalYear,
		},
	}

	answers := workspaceAnswers{}
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}
	config.Workspace = answers.Workspace
	config.DataFile = answers.DataFile
	config.FiscalYear = answers.FiscalYear
	return nil
}

func validateFiscalYear(val interface{}) error {
	s, ok := val.(string)
	if !ok {
		return fmt.Errorf("expected text, got %T", val)
	}
	_, err := lakehouse.FiscalYearEnd(s)
	return err
}

func (w *ConfigWizard) reportStep(config *models.Config) error {
	w.showProgress("Semantic model and report")

	questions := []*survey.Question{
		{
			Name:     "model_name",
			Prompt:   &survey.Input{Message: "Semantic model name:", Default: config.Report.ModelName},
			Validate: survey.Required,
		},
		{
			Name:     "report_name",
			Prompt:   &survey.Input{Message: "Report name:", Default: config.Report.ReportName},
			Validate: survey.Required,
		},
		{
			Name: "pusher",
			Prompt: &survey.Select{
				Message: "Push report files with:",
				Options: []string{"ado", "local"},
				Default: config.Report.Pusher,
				Help:    "ado pushes through the Azure DevOps REST API, local commits in a git clone",
			},
		},
	}

	answers := reportAnswers{}
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}
	config.Report.ModelName = answers.ModelName
	config.Report.ReportName = answers.ReportName
	config.Report.Pusher = answers.Pusher

	if answers.Pusher != "local" {
		return nil
	}
	repoPath := config.Report.RepoPath
	prompt := &survey.Input{
		Message: "Path of the local clone:",
		Default: repoPath,
		Help:    "Clone of the repository the workspace is connected to",
	}
	if err := w.asker.AskOne(prompt, &repoPath); err != nil {
		return err
	}
	if repoPath == "" {
		return apperrors.ConfigError("a local pusher needs a repository path", "report.repo_path")
	}
	config.Report.RepoPath = repoPath
	return nil
}

func (w *ConfigWizard) authStep(config *models.Config) error {
	w.showProgress("Authentication")

	provider := config.Auth.Provider
	prompt := &survey.Select{
		Message: "Token provider:",
		Options: []string{"chain", "azcli", "env", "keyring"},
		Default: provider,
		Help:    "chain tries environment variables, then the keyring, then 'az account get-access-token'",
	}
	if err := w.asker.AskOne(prompt, &provider); err != nil {
		return err
	}
	config.Auth.Provider = provider
	return nil
}

func (w *ConfigWizard) review(config *models.Config) error {
	w.showProgress("Review")

	fmt.Printf("  %-16s %s\n", "Workspace:", config.Workspace)
	fmt.Printf("  %-16s %s\n", "Data file:", config.DataFile)
	fmt.Printf("  %-16s %s\n", "Fiscal year:", config.FiscalYear)
	fmt.Printf("  %-16s %s\n", "Model:", config.Report.ModelName)
	fmt.Printf("  %-16s %s\n", "Report:", config.Report.ReportName)
	fmt.Printf("  %-16s %s\n", "Pusher:", config.Report.Pusher)
	fmt.Printf("  %-16s %s\n", "Auth:", config.Auth.Provider)

	confirm := true
	prompt := &survey.Confirm{Message: "Save this configuration?", Default: true}
	if err := w.asker.AskOne(prompt, &confirm); err != nil {
		return err
	}
	if !confirm {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "configuration cancelled")
	}
	return nil
}

func (w *ConfigWizard) showProgress(step string) {
	fmt.Printf("\n%s %s\n", ColorDim(fmt.Sprintf("[%d/%d]", w.currentStep, w.totalSteps)), ColorBold(step))
	w.currentStep++
}
