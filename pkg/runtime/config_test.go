package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, Config{Entry: "Demo.main", Verbosity: 1}.Validate())
	require.NoError(t, Config{Entry: "Demo.main", ShowGraphLevel: 2, ViewerCommand: "dot", Verbosity: 3}.Validate())
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	err := Config{ShowGraphLevel: 7, Verbosity: -1}.Validate()
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3)
	require.Contains(t, err.Error(), "entry function name")
	require.Contains(t, err.Error(), "show-graph level 7")
	require.Contains(t, err.Error(), "verbosity -1")
}

func TestConfigValidateViewerNeedsGraphs(t *testing.T) {
	err := Config{Entry: "Demo.main", ViewerCommand: "dot", Verbosity: 1}.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "viewer command")
}
