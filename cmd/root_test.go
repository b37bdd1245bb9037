package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"fabdrop/internal/testutil"
	apperrors "fabdrop/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns what it wrote.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile, verbose, current = "", false, nil
	importDryRun, importVersion, importMerge = false, "", false
	configTable = false
	var resetHelp func(*cobra.Command)
	resetHelp = func(c *cobra.Command) {
		if help := c.Flags().Lookup("help"); help != nil {
			_ = help.Value.Set("false")
		}
		for _, sub := range c.Commands() {
			resetHelp(sub)
		}
	}
	resetHelp(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// workspace writes a config file and the sample data file into a temp dir.
func workspace(t *testing.T) (config, data string) {
	t.Helper()
	h := testutil.NewTestHelper(t)
	dir := t.TempDir()
	data = h.WriteFile(dir, "data.js", testutil.SampleDataJS)
	config = h.WriteFile(dir, "fabdrop.yaml", `workspace: scm-test
data_file: `+data+`
fiscal_year: FY26
logging:
  level: debug
  file: `+filepath.Join(dir, "run.log")+`
`)
	return config, data
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
	for _, name := range []string{"import", "export", "load", "report", "deploy", "refresh", "kpis", "auth", "config"} {
		assert.Contains(t, out, name)
	}
}

func TestImportCSVHelpListsEncodings(t *testing.T) {
	out, err := execute(t, "import", "csv", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "utf-8-sig, utf-8, windows-1252, iso-8859-1")
	assert.NotContains(t, out, "UTF-16")
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "invalid-command")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fabdrop dev")
}

func TestConfigShow(t *testing.T) {
	config, data := workspace(t)

	out, err := execute(t, "--config", config, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# "+config)
	assert.Contains(t, out, "workspace: scm-test")
	assert.Contains(t, out, "data_file: "+data)

	out, err = execute(t, "--config", config, "--workspace", "scm-other", "config", "show", "--table")
	require.NoError(t, err)
	assert.Contains(t, out, "scm-other")
	assert.Contains(t, out, "FY26")
}

func TestConfigMissingFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.yaml")
}

func TestImportCSVDryRun(t *testing.T) {
	h := testutil.NewTestHelper(t)
	config, data := workspace(t)
	csv := h.WriteFile(t.TempDir(), "tracker.csv", testutil.SampleTrackerCSV)

	var out string
	var err error
	h.CaptureOutput(func() {
		out, err = execute(t, "--config", config, "import", "csv", csv, "--dry-run", "--version", "FY26_TEST")
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Records")
	assert.Contains(t, out, "kept from existing file")
	assert.Equal(t, testutil.SampleDataJS, h.ReadFile(data), "dry run must not modify the data file")
}

func TestLoadRejectsConflictingModes(t *testing.T) {
	config, _ := workspace(t)
	defer func() { loadOpts.UploadOnly, loadOpts.LoadOnly = false, false }()

	_, err := execute(t, "--config", config, "load", "--upload-only", "--load-only")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestWithTip(t *testing.T) {
	assert.NoError(t, withTip(nil))

	err := withTip(errors.New("dial tcp: lookup api.fabric.microsoft.com: no such host"))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"Check network access and the service URLs in fabdrop.yaml"}, appErr.Suggestions)

	annotated := apperrors.New(apperrors.ErrCodeAuth, "permission denied").WithSuggestions("Run fabdrop auth set")
	require.ErrorAs(t, withTip(annotated), &appErr)
	assert.Equal(t, []string{"Run fabdrop auth set"}, appErr.Suggestions)

	plain := errors.New("something else")
	assert.Equal(t, plain, withTip(plain))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", mask("abcd"))
	assert.Equal(t, "eyJ0********wxyz", mask("eyJ0eXAiOiJKV1QiLCJhbGciwxyz"))
}
