package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badmintontv/badmintontv/app/models"
)

const runMetadataFixture = `{
	"tournament_folder": "all_england_2024",
	"match_folder": "ms_final",
	"match_filename": "ms_final.mp4",
	"datetime": "2024-03-17 18:30:00",
	"version_to_metadata": {
		"3": {
			"duration_highlights": "00:41:12",
			"duration_filtered_highlights": "00:24:05"
		}
	},
	"tasks": {
		"Action Spotting": {
			"model_name": "resnet50_v3"
		}
	}
}`

const matchMetadataFixture = `{
	"tournament": "All England Open 2024",
	"date": "2024-03-17",
	"round": "Final",
	"discipline": "MS",
	"country1": "Denmark",
	"country2": "Japan",
	"team1": "Viktor Axelsen",
	"team2": "Kento Momota"
}`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadRunMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, MetadataRunFilename, runMetadataFixture)

	run, err := readRunMetadata(filepath.Join(dir, MetadataRunFilename))
	require.NoError(t, err)

	assert.Equal(t, "all_england_2024", run.TournamentFolder)
	assert.Equal(t, "ms_final", run.MatchFolder)
	assert.Equal(t, "ms_final.mp4", run.MatchFilename)
	assert.Equal(t, "resnet50_v3", run.Tasks[actionSpottingTask].ModelName)
}

func TestReadRunMetadataMissingFile(t *testing.T) {
	_, err := readRunMetadata(filepath.Join(t.TempDir(), MetadataRunFilename))
	assert.True(t, os.IsNotExist(err))
}

func TestReadMatchMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, MetadataMatchFilename, matchMetadataFixture)

	match, err := readMatchMetadata(filepath.Join(dir, MetadataMatchFilename))
	require.NoError(t, err)

	require.NotNil(t, match.Tournament)
	assert.Equal(t, "All England Open 2024", *match.Tournament)
	assert.Equal(t, "2024-03-17", match.Date)
	require.NotNil(t, match.Team1)
	assert.Equal(t, "Viktor Axelsen", *match.Team1)
}

func TestReadMatchMetadataNullFields(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, MetadataMatchFilename, `{"tournament": null, "date": "2024-03-17", "round": null}`)

	match, err := readMatchMetadata(filepath.Join(dir, MetadataMatchFilename))
	require.NoError(t, err)

	assert.Equal(t, notRecognized, orNotRecognized(match.Tournament))
	assert.Equal(t, notRecognized, orNotRecognized(match.Round))
}

func TestDurationPerHighlightsType(t *testing.T) {
	run := &RunMetadata{
		VersionToMetadata: map[string]VersionMetadata{
			"3": {
				DurationHighlights:         "00:41:12",
				DurationFilteredHighlights: "00:24:05",
			},
		},
	}

	assert.Equal(t, "00:24:05", run.Duration(models.HighlightsTypeStandard))
	assert.Equal(t, "00:41:12", run.Duration(models.HighlightsTypeExtended))
}

func TestHighlightsFilename(t *testing.T) {
	assert.Equal(t, "[Highlights] ms_final.mp4", HighlightsFilename(models.HighlightsTypeStandard, "ms_final.mp4"))
	assert.Equal(t, "[Extended Highlights] ms_final.mp4", HighlightsFilename(models.HighlightsTypeExtended, "ms_final.mp4"))
}

func TestSkipDir(t *testing.T) {
	assert.True(t, skipDir(".DS_Store"))
	assert.True(t, skipDir("@eaDir"))
	assert.False(t, skipDir("all_england_2024"))
}
