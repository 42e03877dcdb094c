package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/badmintontv/badmintontv/app/models"
	"github.com/badmintontv/badmintontv/app/repository"
)

const (
	MetadataRunFilename   = "metadata_run.json"
	MetadataMatchFilename = "metadata_match.json"

	// Pipeline version whose duration fields we read.
	metadataVersion    = "3"
	actionSpottingTask = "Action Spotting"

	// Placeholder for fields the pipeline could not extract.
	notRecognized = "Not Recognized"
)

// RunMetadata is the processing report the highlights pipeline writes next to
// each match folder.
type RunMetadata struct {
	TournamentFolder  string                     `json:"tournament_folder"`
	MatchFolder       string                     `json:"match_folder"`
	MatchFilename     string                     `json:"match_filename"`
	Datetime          string                     `json:"datetime"`
	VersionToMetadata map[string]VersionMetadata `json:"version_to_metadata"`
	Tasks             map[string]TaskMetadata    `json:"tasks"`
}

// VersionMetadata holds per-version durations of the generated cuts
type VersionMetadata struct {
	DurationHighlights         string `json:"duration_highlights"`
	DurationFilteredHighlights string `json:"duration_filtered_highlights"`
}

// TaskMetadata holds per-task pipeline details
type TaskMetadata struct {
	ModelName string `json:"model_name"`
}

// MatchMetadata describes the match itself. Fields are pointers because the
// pipeline emits null for anything it failed to recognize.
type MatchMetadata struct {
	Tournament *string `json:"tournament"`
	Date       string  `json:"date"`
	Round      *string `json:"round"`
	Discipline *string `json:"discipline"`
	Country1   *string `json:"country1"`
	Country2   *string `json:"country2"`
	Team1      *string `json:"team1"`
	Team2      *string `json:"team2"`
}

// Scanner ingests highlight videos from the video directory into the catalog.
// Layout on disk is <dir>/<tournament>/<match>/ with the two metadata files
// inside each match folder.
type Scanner struct {
	repos *repository.Repositories
	dir   string
}

// NewScanner creates a scanner over the given video directory
func NewScanner(repos *repository.Repositories, dir string) *Scanner {
	return &Scanner{repos: repos, dir: dir}
}

// Scan walks the video directory once and creates catalog entries for every
// match that is not in the database yet. Returns the number of new videos.
func (s *Scanner) Scan() (int, error) {
	tournaments, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read video directory %s: %w", s.dir, err)
	}

	added := 0
	for _, tournament := range tournaments {
		if !tournament.IsDir() || skipDir(tournament.Name()) {
			continue
		}

		tournamentDir := filepath.Join(s.dir, tournament.Name())
		matches, err := os.ReadDir(tournamentDir)
		if err != nil {
			log.Errorf("[Scanner] Failed to read %s: %v", tournamentDir, err)
			continue
		}

		for _, match := range matches {
			if !match.IsDir() || skipDir(match.Name()) {
				continue
			}

			n, err := s.ingestMatch(tournament.Name(), match.Name())
			if err != nil {
				log.Errorf("[Scanner] Failed to ingest %s/%s: %v", tournament.Name(), match.Name(), err)
				continue
			}
			added += n
		}
	}

	if added > 0 {
		log.Infof("[Scanner] Added %d new videos", added)
	}
	return added, nil
}

// ingestMatch creates one video per highlights type for a single match folder.
// Matches without both metadata files are silently skipped; the pipeline is
// still running on them.
func (s *Scanner) ingestMatch(tournamentFolder, matchFolder string) (int, error) {
	matchDir := filepath.Join(s.dir, tournamentFolder, matchFolder)

	run, err := readRunMetadata(filepath.Join(matchDir, MetadataRunFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	match, err := readMatchMetadata(filepath.Join(matchDir, MetadataMatchFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	date, err := time.Parse("2006-01-02", match.Date)
	if err != nil {
		return 0, fmt.Errorf("invalid match date %q: %w", match.Date, err)
	}

	highlightsDatetime, err := time.Parse("2006-01-02 15:04:05", run.Datetime)
	if err != nil {
		return 0, fmt.Errorf("invalid run datetime %q: %w", run.Datetime, err)
	}

	added := 0
	for _, highlightsType := range []string{models.HighlightsTypeStandard, models.HighlightsTypeExtended} {
		_, err := s.repos.Video.GetByFolderNameType(tournamentFolder, matchFolder, highlightsType)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return added, err
		}

		tournament, err := s.repos.Catalog.GetOrCreateTournament(orNotRecognized(match.Tournament), date, date)
		if err != nil {
			return added, err
		}

		team1, err := s.repos.Catalog.GetOrCreateTeam(orNotRecognized(match.Team1), orNotRecognized(match.Country1))
		if err != nil {
			return added, err
		}
		team2, err := s.repos.Catalog.GetOrCreateTeam(orNotRecognized(match.Team2), orNotRecognized(match.Country2))
		if err != nil {
			return added, err
		}

		video := &models.Video{
			Folder:   run.TournamentFolder,
			Name:     run.MatchFolder,
			Filename: run.MatchFilename,

			HighlightsType:     highlightsType,
			HighlightsFilename: HighlightsFilename(highlightsType, run.MatchFilename),
			HighlightsDuration: run.Duration(highlightsType),
			HighlightsDatetime: highlightsDatetime,

			Date:       date,
			Round:      orNotRecognized(match.Round),
			Discipline: orNotRecognized(match.Discipline),

			ModelName: run.Tasks[actionSpottingTask].ModelName,

			TournamentID: tournament.ID,
			Teams:        []models.Team{*team1, *team2},
		}

		if err := s.repos.Video.Create(video); err != nil {
			return added, err
		}
		log.Infof("[Scanner] Added video %s/%s (%s)", tournamentFolder, matchFolder, highlightsType)
		added++
	}

	return added, nil
}

// Watch rescans whenever the pipeline finishes writing metadata into the
// video directory. Tournament folders are watched as they appear. Blocks
// until ctx is cancelled.
func (s *Scanner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}
	tournaments, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read video directory %s: %w", s.dir, err)
	}
	for _, tournament := range tournaments {
		if tournament.IsDir() && !skipDir(tournament.Name()) {
			if err := watcher.Add(filepath.Join(s.dir, tournament.Name())); err != nil {
				log.Errorf("[Scanner] Failed to watch %s: %v", tournament.Name(), err)
			}
		}
	}

	log.Infof("[Scanner] Watching %s", s.dir)

	// Metadata files are written in bursts, so coalesce events into one scan.
	var rescan <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if filepath.Dir(event.Name) == s.dir && !skipDir(filepath.Base(event.Name)) {
						if err := watcher.Add(event.Name); err != nil {
							log.Errorf("[Scanner] Failed to watch %s: %v", event.Name, err)
						}
					}
					continue
				}
			}
			if isMetadataFile(event.Name) && (event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write)) {
				rescan = time.After(2 * time.Second)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("[Scanner] Watch error: %v", err)
		case <-rescan:
			rescan = nil
			if _, err := s.Scan(); err != nil {
				log.Errorf("[Scanner] Rescan failed: %v", err)
			}
		}
	}
}

// Duration returns the cut length for the given highlights type. The standard
// cut uses the filtered duration, the extended cut the full one.
func (r *RunMetadata) Duration(highlightsType string) string {
	version := r.VersionToMetadata[metadataVersion]
	if highlightsType == models.HighlightsTypeExtended {
		return version.DurationHighlights
	}
	return version.DurationFilteredHighlights
}

// HighlightsFilename builds the on-disk filename of a highlights cut
func HighlightsFilename(highlightsType, matchFilename string) string {
	return fmt.Sprintf("[%s] %s", highlightsType, matchFilename)
}

// skipDir reports whether a folder is system-generated and should be ignored
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "@")
}

func isMetadataFile(path string) bool {
	base := filepath.Base(path)
	return base == MetadataRunFilename || base == MetadataMatchFilename
}

func readRunMetadata(path string) (*RunMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var run RunMetadata
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", MetadataRunFilename, err)
	}
	return &run, nil
}

func readMatchMetadata(path string) (*MatchMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var match MatchMetadata
	if err := json.Unmarshal(data, &match); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", MetadataMatchFilename, err)
	}
	return &match, nil
}

func orNotRecognized(s *string) string {
	if s == nil || *s == "" {
		return notRecognized
	}
	return *s
}
