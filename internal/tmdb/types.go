package tmdb

import "github.com/oapi-codegen/nullable"

// The response types mirror the provider's JSON. Fields the API documents
// as nullable (runtime is the common one) use nullable.Nullable so "absent"
// and "null" both decode without inventing a zero that looks real.

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SpokenLanguage struct {
	ISO6391     string `json:"iso_639_1"`
	Name        string `json:"name"`
	EnglishName string `json:"english_name"`
}

type ProductionCompany struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LogoPath      string `json:"logo_path"`
	OriginCountry string `json:"origin_country"`
}

type ProductionCountry struct {
	ISO31661 string `json:"iso_3166_1"`
	Name     string `json:"name"`
}

type Network struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Collection struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MovieCandidate is one movie search (or recommendation) result.
type MovieCandidate struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	PosterPath    string  `json:"poster_path"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Popularity    float64 `json:"popularity"`
}

type SearchMoviesResponse struct {
	Page         int              `json:"page"`
	Results      []MovieCandidate `json:"results"`
	TotalPages   int              `json:"total_pages"`
	TotalResults int              `json:"total_results"`
}

// TVCandidate is one series search result.
type TVCandidate struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
}

type SearchTVResponse struct {
	Page         int           `json:"page"`
	Results      []TVCandidate `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

type MovieDetailsResponse struct {
	ID                  int64                   `json:"id"`
	Title               string                  `json:"title"`
	OriginalTitle       string                  `json:"original_title"`
	Overview            string                  `json:"overview"`
	Tagline             string                  `json:"tagline"`
	ReleaseDate         string                  `json:"release_date"`
	Runtime             nullable.Nullable[int]  `json:"runtime"`
	VoteAverage         float64                 `json:"vote_average"`
	VoteCount           int                     `json:"vote_count"`
	Popularity          float64                 `json:"popularity"`
	Genres              []Genre                 `json:"genres"`
	SpokenLanguages     []SpokenLanguage        `json:"spoken_languages"`
	ProductionCompanies []ProductionCompany     `json:"production_companies"`
	ProductionCountries []ProductionCountry     `json:"production_countries"`
	BelongsToCollection *Collection             `json:"belongs_to_collection"`
	PosterPath          string                  `json:"poster_path"`
	BackdropPath        string                  `json:"backdrop_path"`
	Status              string                  `json:"status"`
}

// Release types as the provider numbers them.
const (
	ReleaseTypePremiere          = 1
	ReleaseTypeTheatricalLimited = 2
	ReleaseTypeTheatrical        = 3
	ReleaseTypeDigital           = 4
	ReleaseTypePhysical          = 5
	ReleaseTypeTV                = 6
)

type ReleaseDateEntry struct {
	Certification string `json:"certification"`
	ReleaseDate   string `json:"release_date"`
	Type          int    `json:"type"`
	Note          string `json:"note"`
}

type CountryReleaseDates struct {
	ISO31661     string             `json:"iso_3166_1"`
	ReleaseDates []ReleaseDateEntry `json:"release_dates"`
}

type ReleaseDatesResponse struct {
	ID      int64                 `json:"id"`
	Results []CountryReleaseDates `json:"results"`
}

type Keyword struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type KeywordsResponse struct {
	ID       int64     `json:"id"`
	Keywords []Keyword `json:"keywords"`
	// series keyword responses use "results" instead of "keywords"
	Results []Keyword `json:"results"`
}

// All returns whichever list the provider populated.
func (r KeywordsResponse) All() []Keyword {
	if len(r.Keywords) > 0 {
		return r.Keywords
	}
	return r.Results
}

type Video struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

type VideosResponse struct {
	ID      int64   `json:"id"`
	Results []Video `json:"results"`
}

type Translation struct {
	ISO31661    string `json:"iso_3166_1"`
	ISO6391     string `json:"iso_639_1"`
	Name        string `json:"name"`
	EnglishName string `json:"english_name"`
}

type TranslationsResponse struct {
	ID           int64         `json:"id"`
	Translations []Translation `json:"translations"`
}

type AlternativeTitle struct {
	ISO31661 string `json:"iso_3166_1"`
	Title    string `json:"title"`
	Type     string `json:"type"`
}

type AlternativeTitlesResponse struct {
	ID     int64              `json:"id"`
	Titles []AlternativeTitle `json:"titles"`
	// series alternative titles come back under "results"
	Results []AlternativeTitle `json:"results"`
}

func (r AlternativeTitlesResponse) All() []AlternativeTitle {
	if len(r.Titles) > 0 {
		return r.Titles
	}
	return r.Results
}

type ExternalIDsResponse struct {
	ID          int64                     `json:"id"`
	IMDBID      string                    `json:"imdb_id"`
	TVDBID      nullable.Nullable[int64]  `json:"tvdb_id"`
	FacebookID  string                    `json:"facebook_id"`
	InstagramID string                    `json:"instagram_id"`
	TwitterID   string                    `json:"twitter_id"`
}

type CastCredit struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Character          string `json:"character"`
	Order              int    `json:"order"`
	ProfilePath        string `json:"profile_path"`
	KnownForDepartment string `json:"known_for_department"`
}

type CrewCredit struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Job                string `json:"job"`
	Department         string `json:"department"`
	ProfilePath        string `json:"profile_path"`
	KnownForDepartment string `json:"known_for_department"`
}

type CreditsResponse struct {
	ID   int64        `json:"id"`
	Cast []CastCredit `json:"cast"`
	Crew []CrewCredit `json:"crew"`
}

type AggregateRole struct {
	Character    string `json:"character"`
	EpisodeCount int    `json:"episode_count"`
}

type AggregateJob struct {
	Job          string `json:"job"`
	EpisodeCount int    `json:"episode_count"`
}

type AggregateCastCredit struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Roles              []AggregateRole `json:"roles"`
	Order              int             `json:"order"`
	ProfilePath        string          `json:"profile_path"`
	KnownForDepartment string          `json:"known_for_department"`
	TotalEpisodeCount  int             `json:"total_episode_count"`
}

type AggregateCrewCredit struct {
	ID                 int64          `json:"id"`
	Name               string         `json:"name"`
	Jobs               []AggregateJob `json:"jobs"`
	Department         string         `json:"department"`
	ProfilePath        string         `json:"profile_path"`
	KnownForDepartment string         `json:"known_for_department"`
}

type AggregateCreditsResponse struct {
	ID   int64                 `json:"id"`
	Cast []AggregateCastCredit `json:"cast"`
	Crew []AggregateCrewCredit `json:"crew"`
}

type Image struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ISO6391     string  `json:"iso_639_1"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

type ImagesResponse struct {
	ID        int64   `json:"id"`
	Posters   []Image `json:"posters"`
	Backdrops []Image `json:"backdrops"`
	Stills    []Image `json:"stills"`
	Profiles  []Image `json:"profiles"`
}

type SeasonSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	PosterPath   string `json:"poster_path"`
	AirDate      string `json:"air_date"`
}

type TVDetailsResponse struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	OriginalName     string              `json:"original_name"`
	Overview         string              `json:"overview"`
	FirstAirDate     string              `json:"first_air_date"`
	LastAirDate      string              `json:"last_air_date"`
	Status           string              `json:"status"`
	NumberOfSeasons  int                 `json:"number_of_seasons"`
	NumberOfEpisodes int                 `json:"number_of_episodes"`
	VoteAverage      float64             `json:"vote_average"`
	VoteCount        int                 `json:"vote_count"`
	Popularity       float64             `json:"popularity"`
	Genres           []Genre             `json:"genres"`
	SpokenLanguages  []SpokenLanguage    `json:"spoken_languages"`
	Networks         []Network           `json:"networks"`
	ProductionCompanies []ProductionCompany `json:"production_companies"`
	ProductionCountries []ProductionCountry `json:"production_countries"`
	Seasons          []SeasonSummary     `json:"seasons"`
	PosterPath       string              `json:"poster_path"`
	BackdropPath     string              `json:"backdrop_path"`
}

type ContentRatingResult struct {
	ISO31661    string   `json:"iso_3166_1"`
	Rating      string   `json:"rating"`
	Descriptors []string `json:"descriptors"`
}

type ContentRatingsResponse struct {
	ID      int64                 `json:"id"`
	Results []ContentRatingResult `json:"results"`
}

type SeasonDetailsResponse struct {
	ID           int64                    `json:"id"`
	Name         string                   `json:"name"`
	Overview     string                   `json:"overview"`
	AirDate      string                   `json:"air_date"`
	SeasonNumber int                      `json:"season_number"`
	PosterPath   string                   `json:"poster_path"`
	Episodes     []EpisodeDetailsResponse `json:"episodes"`
}

type EpisodeDetailsResponse struct {
	ID            int64                  `json:"id"`
	Name          string                 `json:"name"`
	Overview      string                 `json:"overview"`
	AirDate       string                 `json:"air_date"`
	SeasonNumber  int                    `json:"season_number"`
	EpisodeNumber int                    `json:"episode_number"`
	Runtime       nullable.Nullable[int] `json:"runtime"`
	VoteAverage   float64                `json:"vote_average"`
	VoteCount     int                    `json:"vote_count"`
	StillPath     string                 `json:"still_path"`
	Crew          []CrewCredit           `json:"crew"`
	GuestStars    []CastCredit           `json:"guest_stars"`
}
