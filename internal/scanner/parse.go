package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/arcstream/arcstream/internal/domain"
)

// Movie title/year extraction works through a cascade of conventions, most
// reliable first: the release-folder convention "Title (Year)", the same
// convention on the filename, dotted scene names, and finally the filename
// prefix up to the first bracket.
var (
	folderTitleYearRe   = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)(?:\s.+)?\s*$`)
	fileTitleYearRe     = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)`)
	dottedTitleYearRe   = regexp.MustCompile(`^(.+?)[\.\s]+(\d{4})[\.\s]`)
	bracketRe           = regexp.MustCompile(`[\[\(\{]`)
	separatorReplacer   = strings.NewReplacer(".", " ", "_", " ", "-", " ")

	// episode markers, in order of confidence
	sxxExxRe    = regexp.MustCompile(`(?i)S(\d{1,2})\s*E(\d{1,3})`)
	nxnRe       = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	seasonDirRe = regexp.MustCompile(`(?i)^season[\s\._-]*(\d{1,3})$`)

	// optional provider hint conventions: "{tmdb-12345}" or "[tmdbid-12345]"
	tmdbHintRe = regexp.MustCompile(`(?i)[\[\{]tmdb(?:id)?-(\d+)[\]\}]`)
)

// ParseMovie derives (title, year) hints for a movie file, trying the
// folder name first because release folders are cleaner than filenames.
func ParseMovie(path string) (title string, year int) {
	folder := filepath.Base(filepath.Dir(path))
	if m := folderTitleYearRe.FindStringSubmatch(folder); m != nil {
		return cleanTitle(m[1]), atoi(m[2])
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if m := fileTitleYearRe.FindStringSubmatch(name); m != nil {
		return cleanTitle(m[1]), atoi(m[2])
	}
	if m := dottedTitleYearRe.FindStringSubmatch(name); m != nil {
		return cleanTitle(m[1]), atoi(m[2])
	}

	// prefix up to the first bracket, separators collapsed
	if loc := bracketRe.FindStringIndex(name); loc != nil {
		name = name[:loc[0]]
	}
	return cleanTitle(name), 0
}

// ParseEpisode derives (show, season, episode, episode title) from a file
// path laid out in the usual Show/Season NN/Show SxxExx Title.ext shape.
func ParseEpisode(path string) (show string, season, episode int, episodeTitle string, ok bool) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var m []string
	var markerEnd, markerStart int
	if m = sxxExxRe.FindStringSubmatch(name); m != nil {
		loc := sxxExxRe.FindStringIndex(name)
		markerStart, markerEnd = loc[0], loc[1]
	} else if m = nxnRe.FindStringSubmatch(name); m != nil {
		loc := nxnRe.FindStringIndex(name)
		markerStart, markerEnd = loc[0], loc[1]
	} else {
		return "", 0, 0, "", false
	}

	season = atoi(m[1])
	episode = atoi(m[2])

	show = cleanTitle(name[:markerStart])
	if show == "" {
		// filename carried only the marker; fall back to the series folder
		clues := FolderCluesFromPath(path)
		show = clues.Title
	}
	episodeTitle = cleanTitle(name[markerEnd:])
	return show, season, episode, episodeTitle, true
}

// SeriesFolderClues is what the directory layout says about the series an
// episode file belongs to.
type SeriesFolderClues struct {
	Title string
	Year  int
	// SeasonNumber is non-zero when the file sits under a "Season NN"
	// folder.
	SeasonNumber int
}

// FolderCluesFromPath walks up from the file: a "Season NN" folder means
// its parent names the series; otherwise the immediate parent does.
func FolderCluesFromPath(path string) SeriesFolderClues {
	clues := SeriesFolderClues{}

	dir := filepath.Dir(path)
	base := filepath.Base(dir)
	if m := seasonDirRe.FindStringSubmatch(base); m != nil {
		clues.SeasonNumber = atoi(m[1])
		dir = filepath.Dir(dir)
		base = filepath.Base(dir)
	}

	if m := folderTitleYearRe.FindStringSubmatch(base); m != nil {
		clues.Title = cleanTitle(m[1])
		clues.Year = atoi(m[2])
	} else {
		clues.Title = cleanTitle(base)
	}
	return clues
}

// ParseFile produces the ParsedInfo stored on a media file, branching on
// the owning library's kind.
func ParseFile(path string, kind domain.LibraryKind) *domain.ParsedInfo {
	if kind == domain.LibraryKindSeries {
		if show, season, episode, title, ok := ParseEpisode(path); ok {
			return &domain.ParsedInfo{
				Kind:          domain.MediaKindEpisode,
				ShowTitle:     show,
				SeasonNumber:  season,
				EpisodeNumber: episode,
				EpisodeTitle:  title,
			}
		}
		// unparseable file in a TV library: record the folder clues so
		// enrichment still has something to search with
		clues := FolderCluesFromPath(path)
		return &domain.ParsedInfo{
			Kind:      domain.MediaKindEpisode,
			ShowTitle: clues.Title,
		}
	}

	title, year := ParseMovie(path)
	return &domain.ParsedInfo{
		Kind:       domain.MediaKindMovie,
		MovieTitle: title,
		MovieYear:  year,
	}
}

// TMDBHint extracts an explicit tmdb id embedded in the filename, its
// folder, or the folder above that (a series folder over "Season NN"), if
// the naming convention carries one.
func TMDBHint(path string) int64 {
	dir := filepath.Dir(path)
	for _, candidate := range []string{filepath.Base(path), filepath.Base(dir), filepath.Base(filepath.Dir(dir))} {
		if m := tmdbHintRe.FindStringSubmatch(candidate); m != nil {
			if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}

func cleanTitle(s string) string {
	s = separatorReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
