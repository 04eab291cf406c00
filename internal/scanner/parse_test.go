package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcstream/arcstream/internal/domain"
)

func TestParseMovie(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantTitle string
		wantYear  int
	}{
		{
			name:      "folder with year",
			path:      "/movies/The Matrix (1999)/The.Matrix.1999.1080p.mkv",
			wantTitle: "The Matrix",
			wantYear:  1999,
		},
		{
			name:      "folder with year and release group suffix",
			path:      "/movies/Heat (1995) [Remastered]/heat.mkv",
			wantTitle: "Heat",
			wantYear:  1995,
		},
		{
			name:      "filename with parenthesized year",
			path:      "/movies/inbox/Alien (1979).mkv",
			wantTitle: "Alien",
			wantYear:  1979,
		},
		{
			name:      "dotted scene name",
			path:      "/movies/inbox/Blade.Runner.1982.2160p.HDR.mkv",
			wantTitle: "Blade Runner",
			wantYear:  1982,
		},
		{
			name:      "no year, bracket-prefixed junk",
			path:      "/movies/inbox/Primer [dvdrip].avi",
			wantTitle: "Primer",
			wantYear:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, year := ParseMovie(tt.path)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantYear, year)
		})
	}
}

func TestParseEpisode(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantShow    string
		wantSeason  int
		wantEpisode int
		wantTitle   string
		wantOK      bool
	}{
		{
			name:        "standard SxxExx",
			path:        "/tv/Severance/Season 01/Severance S01E03 In Perpetuity.mkv",
			wantShow:    "Severance",
			wantSeason:  1,
			wantEpisode: 3,
			wantTitle:   "In Perpetuity",
			wantOK:      true,
		},
		{
			name:        "dotted name with marker",
			path:        "/tv/The.Wire/Season 2/The.Wire.S02E11.mkv",
			wantShow:    "The Wire",
			wantSeason:  2,
			wantEpisode: 11,
			wantOK:      true,
		},
		{
			name:        "NxNN convention",
			path:        "/tv/Lost/Season 4/Lost 4x08.mkv",
			wantShow:    "Lost",
			wantSeason:  4,
			wantEpisode: 8,
			wantOK:      true,
		},
		{
			name:        "marker-only filename falls back to folder",
			path:        "/tv/Fargo (2014)/Season 01/S01E02.mkv",
			wantShow:    "Fargo",
			wantSeason:  1,
			wantEpisode: 2,
			wantOK:      true,
		},
		{
			name:   "no marker",
			path:   "/tv/Specials/behind-the-scenes.mkv",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			show, season, episode, title, ok := ParseEpisode(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantShow, show)
			assert.Equal(t, tt.wantSeason, season)
			assert.Equal(t, tt.wantEpisode, episode)
			if tt.wantTitle != "" {
				assert.Equal(t, tt.wantTitle, title)
			}
		})
	}
}

func TestFolderCluesFromPath(t *testing.T) {
	clues := FolderCluesFromPath("/tv/Fargo (2014)/Season 03/episode.mkv")
	assert.Equal(t, "Fargo", clues.Title)
	assert.Equal(t, 2014, clues.Year)
	assert.Equal(t, 3, clues.SeasonNumber)

	clues = FolderCluesFromPath("/tv/Deadwood/some-file.mkv")
	assert.Equal(t, "Deadwood", clues.Title)
	assert.Zero(t, clues.Year)
	assert.Zero(t, clues.SeasonNumber)
}

func TestParseFileBranchesOnLibraryKind(t *testing.T) {
	movie := ParseFile("/movies/Alien (1979)/alien.mkv", domain.LibraryKindMovies)
	assert.Equal(t, domain.MediaKindMovie, movie.Kind)
	assert.Equal(t, "Alien", movie.MovieTitle)
	assert.Equal(t, 1979, movie.MovieYear)

	episode := ParseFile("/tv/Severance/Season 01/Severance S01E01.mkv", domain.LibraryKindSeries)
	assert.Equal(t, domain.MediaKindEpisode, episode.Kind)
	assert.Equal(t, "Severance", episode.ShowTitle)
	assert.Equal(t, 1, episode.SeasonNumber)
	assert.Equal(t, 1, episode.EpisodeNumber)
}

func TestTMDBHint(t *testing.T) {
	assert.Equal(t, int64(603), TMDBHint("/movies/The Matrix (1999) {tmdb-603}/matrix.mkv"))
	assert.Equal(t, int64(95396), TMDBHint("/tv/Severance [tmdbid-95396]/Season 01/s01e01.mkv"))
	assert.Zero(t, TMDBHint("/movies/Unknown (2011)/unknown.mkv"))
}

func TestResolutionStringIsNotAnEpisodeMarker(t *testing.T) {
	_, _, _, _, ok := ParseEpisode("/tv/Docs/nature.720x480.mkv")
	assert.False(t, ok)
}
