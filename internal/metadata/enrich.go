package metadata

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/tmdb"
)

// Actor is the MetadataEnrich stage.
type Actor struct {
	client  tmdb.Client
	catalog storage.CatalogStore
	files   storage.MediaFileStore
}

func NewActor(client tmdb.Client, catalog storage.CatalogStore, files storage.MediaFileStore) *Actor {
	return &Actor{client: client, catalog: catalog, files: files}
}

// Execute enriches one analyzed media file, branching on what the file
// parsed as.
func (a *Actor) Execute(ctx context.Context, cmd EnrichCommand) (Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.Int64("media_file_id", cmd.MediaFileID),
		zap.String("path", cmd.Path),
	)
	ctx = logger.WithCtx(ctx, log)

	file, err := a.files.GetMediaFile(ctx, cmd.MediaFileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, domain.NotFound("media file missing")
		}
		return Result{}, domain.DatabaseError(err)
	}
	if file.ParsedInfo == nil {
		return Result{}, domain.InvalidMedia("media file has no parsed info")
	}

	run := newEnrichRun(a, cmd)

	switch file.ParsedInfo.Kind {
	case domain.MediaKindMovie:
		return a.enrichMovie(ctx, run, cmd, file)
	case domain.MediaKindEpisode:
		return a.enrichEpisode(ctx, run, cmd, file)
	default:
		return Result{}, domain.InvalidMedia("unsupported media kind: " + string(file.ParsedInfo.Kind))
	}
}

// enrichRun carries the per-invocation caches: each person is upserted at
// most once per enrichment and each profile image resolves to one variant
// write, no matter how many credit lists mention them.
type enrichRun struct {
	actor *Actor

	personsSeen     map[int64]struct{}
	profileVariants map[int64]string

	imageJobs []ImageFetchJob
	cmd       EnrichCommand
}

func newEnrichRun(a *Actor, cmd EnrichCommand) *enrichRun {
	return &enrichRun{
		actor:           a,
		personsSeen:     make(map[int64]struct{}),
		profileVariants: make(map[int64]string),
		cmd:             cmd,
	}
}

// addPerson upserts the person row once per run.
func (r *enrichRun) addPerson(ctx context.Context, p domain.Person) {
	if p.TMDBID == 0 {
		return
	}
	if _, ok := r.personsSeen[p.TMDBID]; ok {
		return
	}
	r.personsSeen[p.TMDBID] = struct{}{}

	if err := r.actor.catalog.UpsertPerson(ctx, p); err != nil {
		logger.FromCtx(ctx).Warn("failed to upsert person", zap.Int64("person_id", p.TMDBID), zap.Error(err))
	}
}

// addProfileImage records a person's profile variant and queues its fetch,
// once per person per run.
func (r *enrichRun) addProfileImage(ctx context.Context, personID int64, profilePath string) {
	if personID == 0 || profilePath == "" {
		return
	}
	if _, ok := r.profileVariants[personID]; ok {
		return
	}

	variant := SingleVariant(domain.MediaTypePerson, personID, domain.ImageSizeClassProfile, profilePath)
	if err := r.actor.catalog.ReplaceImageVariants(ctx, personID, domain.MediaTypePerson, []domain.ImageVariant{variant}); err != nil {
		logger.FromCtx(ctx).Warn("failed to record profile variant", zap.Int64("person_id", personID), zap.Error(err))
		return
	}
	r.profileVariants[personID] = variant.IID
	r.queueImage(variant.IID, domain.ImageSizeClassProfile)
}

// queueImage appends one artwork fetch at the run's priority.
func (r *enrichRun) queueImage(iid string, sizeClass domain.ImageSizeClass) {
	if iid == "" {
		return
	}
	r.imageJobs = append(r.imageJobs, ImageFetchJob{
		LibraryID:    r.cmd.LibraryID,
		IID:          iid,
		SizeClass:    sizeClass,
		PriorityHint: r.cmd.ScanReason.Priority(),
	})
}

// addCredits records the people behind cast and crew lists.
func (r *enrichRun) addCredits(ctx context.Context, cast []domain.CastMember, crew []domain.CrewMember) {
	for _, c := range cast {
		r.addPerson(ctx, domain.Person{TMDBID: c.PersonID, Name: c.Name, ProfilePath: c.ProfilePath})
		r.addProfileImage(ctx, c.PersonID, c.ProfilePath)
	}
	for _, c := range crew {
		r.addPerson(ctx, domain.Person{TMDBID: c.PersonID, Name: c.Name, KnownForDepartment: c.Department, ProfilePath: c.ProfilePath})
		r.addProfileImage(ctx, c.PersonID, c.ProfilePath)
	}
}
