package ui

import (
	"fmt"
	"testing"

	"fabdrop/internal/testutil"
	apperrors "fabdrop/pkg/errors"
	"fabdrop/pkg/models"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAsker answers prompts from fixed values.
type fakeAsker struct {
	workspace workspaceAnswers
	report    reportAnswers
	repoPath  string
	provider  string
	confirm   bool
	err       error
	prompts   []string
}

func (f *fakeAsker) Ask(qs []*survey.Question, response interface{}) error {
	if f.err != nil {
		return f.err
	}
	for _, q := range qs {
		f.prompts = append(f.prompts, q.Name)
	}
	switch r := response.(type) {
	case *workspaceAnswers:
		*r = f.workspace
	case *reportAnswers:
		*r = f.report
	default:
		return fmt.Errorf("unexpected response %T", response)
	}
	return nil
}

func (f *fakeAsker) AskOne(p survey.Prompt, response interface{}) error {
	switch prompt := p.(type) {
	case *survey.Input:
		f.prompts = append(f.prompts, prompt.Message)
		*response.(*string) = f.repoPath
	case *survey.Select:
		f.prompts = append(f.prompts, prompt.Message)
		*response.(*string) = f.provider
	case *survey.Confirm:
		f.prompts = append(f.prompts, prompt.Message)
		*response.(*bool) = f.confirm
	}
	return nil
}

func answers() *fakeAsker {
	return &fakeAsker{
		workspace: workspaceAnswers{Workspace: "scm-prod", DataFile: "site/data.js", FiscalYear: "FY27"},
		report:    reportAnswers{ModelName: "SLS MBR", ReportName: "SLS MBR Report", Pusher: "ado"},
		provider:  "azcli",
		confirm:   true,
	}
}

func runWizard(t *testing.T, asker *fakeAsker) (*models.Config, error) {
	t.Helper()
	withoutColor(t)
	w := NewConfigWizard()
	w.asker = asker
	var config *models.Config
	var err error
	testutil.NewTestHelper(t).CaptureOutput(func() {
		config, err = w.Run(models.DefaultConfig())
	})
	return config, err
}

func TestConfigWizard(t *testing.T) {
	asker := answers()
	config, err := runWizard(t, asker)
	require.NoError(t, err)

	assert.Equal(t, "scm-prod", config.Workspace)
	assert.Equal(t, "site/data.js", config.DataFile)
	assert.Equal(t, "FY27", config.FiscalYear)
	assert.Equal(t, "ado", config.Report.Pusher)
	assert.Equal(t, "azcli", config.Auth.Provider)
	assert.Equal(t, "https://api.fabric.microsoft.com/v1", config.Fabric.APIURL)
	assert.NotContains(t, asker.prompts, "Path of the local clone:")
}

func TestConfigWizardLocalPusher(t *testing.T) {
	asker := answers()
	asker.report.Pusher = "local"
	asker.repoPath = "/src/sls-reports"
	config, err := runWizard(t, asker)
	require.NoError(t, err)
	assert.Equal(t, "/src/sls-reports", config.Report.RepoPath)

	asker = answers()
	asker.report.Pusher = "local"
	_, err = runWizard(t, asker)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestConfigWizardCancelled(t *testing.T) {
	asker := answers()
	asker.confirm = false
	_, err := runWizard(t, asker)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration cancelled")

	asker = answers()
	asker.err = terminal.InterruptErr
	_, err = runWizard(t, asker)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestValidateFiscalYear(t *testing.T) {
	assert.NoError(t, validateFiscalYear("FY26"))
	assert.NoError(t, validateFiscalYear("2027"))
	assert.Error(t, validateFiscalYear("next year"))
	assert.Error(t, validateFiscalYear(26))
}
