package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incident-search/internal/config"
	"incident-search/internal/domain"
	"incident-search/internal/insights"
)

const incidentsCSV = `Incident_ID,Date,Department,Model,Sub_Assembly,Incident_Description
101,2024-01-05,Assembly,X200,Frame,Bolt was loose on the frame
102,2024-01-19,Shipping,X200,Packaging,Box arrived damaged
103,2024-02-02,Warehouse,X100,Hardware,Wrong screws in the kit
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "incidents.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(incidentsCSV), 0o644))
	cfg := config.Default()
	cfg.Corpus.Path = csvPath
	cfg.Log.Level = "error"
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))
	return cfgPath
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommandWithIO(&out, &errOut)
	cmd.SetArgs(append([]string{"--config", writeConfig(t)}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestSearchCommand(t *testing.T) {
	out, _, err := run(t, "search", "-k", "1", "loose", "bolt")
	require.NoError(t, err)
	assert.Contains(t, out, "Incident ID 101")
	assert.Contains(t, out, "Improper tightening or missing fasteners during assembly.")
}

func TestSearchCommandJSON(t *testing.T) {
	out, _, err := run(t, "search", "--json", "-k", "2", "box damaged")
	require.NoError(t, err)
	var res []domain.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res, 2)
	assert.Equal(t, "102", res[0].Record.ID)
	assert.Equal(t, 1, res[0].Rank)
}

func TestSearchCommandEmptyQuery(t *testing.T) {
	_, _, err := run(t, "search", "   ")
	assert.EqualError(t, err, "please enter a description")
}

func TestRecordsCommand(t *testing.T) {
	out, errOut, err := run(t, "records", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "101\t2024-01-05\tAssembly\tX200\tFrame\tBolt was loose on the frame")
	assert.NotContains(t, out, "103")
	assert.Equal(t, "2 of 3 records\n", errOut)
}

func TestInsightsCommandJSON(t *testing.T) {
	out, _, err := run(t, "insights", "--json")
	require.NoError(t, err)
	var rep insights.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, insights.Count{Label: "X200", Count: 2}, rep.TopModels[0])
}

func TestInsightsCommandText(t *testing.T) {
	out, _, err := run(t, "insights")
	require.NoError(t, err)
	assert.Contains(t, out, "Top models")
	assert.Contains(t, out, "2024-01")
}

func TestMissingCorpusFails(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Corpus.Path = filepath.Join(dir, "none.csv")
	cfg.Log.Level = "error"
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	cmd := NewRootCommandWithIO(&bytes.Buffer{}, &bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "records"})
	assert.ErrorIs(t, cmd.Execute(), domain.ErrLoad)
}
