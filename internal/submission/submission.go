// Package submission turns an uploaded set of photos into one stored
// observation: it classifies every image, keeps the most confident species,
// resolves it, stores the location with its images and credits achievements.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/flyaway/internal/achievement"
	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/internal/config"
	"github.com/garnizeh/flyaway/internal/metrics"
	"github.com/garnizeh/flyaway/internal/species"
	"github.com/garnizeh/flyaway/pkg/classifier"
	"github.com/garnizeh/flyaway/pkg/geo"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

// ImageFolder is the storage folder of observation images.
const ImageFolder = "locations"

type Classifier interface {
	Classify(ctx context.Context, img models.Upload, kingdom models.Kingdom) (*classifier.Result, error)
}

type FileStore interface {
	Save(folder, contentType string, data []byte) (string, error)
	Remove(paths ...string) error
}

type FunFacts interface {
	FunFact(ctx context.Context, scientificName string) string
}

type Request struct {
	Images  []models.Upload
	Lat     float64
	Lng     float64
	Kingdom string
}

type Result struct {
	Location *models.Location `json:"location"`
	FunFact  string           `json:"fun_fact"`
}

type Options struct {
	// Concurrency bounds the classifier calls in flight per submission.
	Concurrency   int
	MinConfidence float64
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

type Orchestrator struct {
	store      repository.TxStore
	classifier Classifier
	files      FileStore
	funFacts   FunFacts
	resolver   *species.Resolver
	engine     *achievement.Engine

	concurrency   int
	minConfidence float64
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

func New(store repository.TxStore, c Classifier, files FileStore, facts FunFacts, resolver *species.Resolver, engine *achievement.Engine, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = config.MinConfidence
	}
	if resolver == nil {
		resolver = species.NewResolver(opts.Logger, opts.Metrics)
	}
	if engine == nil {
		engine = achievement.NewEngine(opts.Logger, opts.Metrics)
	}

	return &Orchestrator{
		store:         store,
		classifier:    c,
		files:         files,
		funFacts:      facts,
		resolver:      resolver,
		engine:        engine,
		concurrency:   opts.Concurrency,
		minConfidence: opts.MinConfidence,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
}

// group collects the images that classified as one species.
type group struct {
	name       string
	images     []int
	best       int
	confidence float64
}

// Submit stores one observation for userID. Once started, a submission runs
// to completion even if ctx is cancelled; the classifier timeout bounds it.
func (o *Orchestrator) Submit(ctx context.Context, userID int64, req Request) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	kingdom, err := o.validate(userID, req)
	if err != nil {
		o.metrics.Submission(metrics.OutcomeInvalid)
		return nil, err
	}

	results, err := o.classify(ctx, req.Images, kingdom)
	if err != nil {
		o.metrics.Submission(metrics.OutcomeUnavailable)
		o.logger.Error("submission aborted: classifier unavailable", slog.Int64("user_id", userID), slog.Any("err", err))
		return nil, apperr.Unavailable("AI server down", err)
	}

	winner := pickWinner(groupResults(results, o.minConfidence))
	if winner == nil {
		o.metrics.Submission(metrics.OutcomeNoSpecies)
		return nil, apperr.NotFound("No species with confidence above threshold")
	}

	loc, err := o.persist(ctx, userID, kingdom, req, winner)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			o.metrics.Submission(metrics.OutcomeError)
		} else {
			o.metrics.Submission(metrics.OutcomeInvalid)
		}
		return nil, err
	}

	o.metrics.Submission(metrics.OutcomeCreated)
	o.logger.Info("observation stored",
		slog.Int64("user_id", userID),
		slog.Int64("location_id", loc.ID),
		slog.String("species", winner.name),
		slog.Float64("confidence", winner.confidence),
		slog.Int("images", len(winner.images)))

	return &Result{Location: loc, FunFact: o.funFacts.FunFact(ctx, winner.name)}, nil
}

func (o *Orchestrator) validate(userID int64, req Request) (models.Kingdom, error) {
	if userID <= 0 {
		return "", apperr.Unauthorized("authentication required")
	}
	if err := (geo.Point{Lat: req.Lat, Lng: req.Lng}).Validate(); err != nil {
		return "", apperr.Validation("%s", err.Error())
	}
	kingdom, err := models.ParseKingdom(req.Kingdom)
	if err != nil {
		return "", apperr.Validation("%s", err.Error())
	}
	if len(req.Images) == 0 {
		return "", apperr.Validation("at least one image is required")
	}
	for i, img := range req.Images {
		if len(img.Data) == 0 {
			return "", apperr.Validation("image %d is empty", i+1)
		}
	}
	return kingdom, nil
}

// classify runs the classifier over every image. A nil entry means the image
// was skipped. The first ErrUnavailable cancels the remaining calls and is
// returned.
func (o *Orchestrator) classify(ctx context.Context, images []models.Upload, kingdom models.Kingdom) ([]*classifier.Result, error) {
	results := make([]*classifier.Result, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, img := range images {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			start := time.Now()
			res, err := o.classifier.Classify(gctx, img, kingdom)
			switch {
			case err == nil:
				o.metrics.ClassifierRequest(string(kingdom), "ok", time.Since(start))
				results[i] = res
			case errors.Is(err, classifier.ErrUnavailable):
				o.metrics.ClassifierRequest(string(kingdom), "unavailable", time.Since(start))
				return err
			case gctx.Err() != nil:
				// cancelled because another image hit ErrUnavailable
			default:
				o.metrics.ClassifierRequest(string(kingdom), "skipped", time.Since(start))
				o.logger.Warn("classification skipped", slog.String("file", img.Filename), slog.Any("err", err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// groupResults drops results under threshold and groups the rest by species name
// in image order.
func groupResults(results []*classifier.Result, threshold float64) []*group {
	var groups []*group
	byName := make(map[string]*group)

	for i, r := range results {
		if r == nil || r.Confidence < threshold {
			continue
		}
		g, ok := byName[r.SpeciesName]
		if !ok {
			g = &group{name: r.SpeciesName, best: i, confidence: r.Confidence}
			byName[r.SpeciesName] = g
			groups = append(groups, g)
		}
		g.images = append(g.images, i)
		if r.Confidence > g.confidence {
			g.confidence = r.Confidence
			g.best = i
		}
	}
	return groups
}

// pickWinner returns the group with the highest confidence; the earliest
// group wins a tie.
func pickWinner(groups []*group) *group {
	var winner *group
	for _, g := range groups {
		if winner == nil || g.confidence > winner.confidence {
			winner = g
		}
	}
	return winner
}

// persist runs the write phase in one transaction. Files written before a
// failure are removed again.
func (o *Orchestrator) persist(ctx context.Context, userID int64, kingdom models.Kingdom, req Request, winner *group) (*models.Location, error) {
	rec := &recorder{files: o.files}

	var loc *models.Location
	err := o.store.WithTx(ctx, func(tx repository.Store) error {
		sp, err := o.resolver.Resolve(ctx, tx, rec, species.Candidate{
			ScientificName: winner.name,
			Kingdom:        kingdom,
			BestImage:      req.Images[winner.best],
			UserID:         userID,
		})
		if err != nil {
			return err
		}

		id, err := tx.CreateLocation(ctx, &models.Location{
			UserID:      userID,
			SpeciesID:   sp.ID,
			Lat:         req.Lat,
			Lng:         req.Lng,
			Confidence:  winner.confidence,
			SpeciesName: winner.name,
		})
		if err != nil {
			return fmt.Errorf("create location: %w", err)
		}

		for _, i := range winner.images {
			img := req.Images[i]
			path, err := rec.Save(ImageFolder, img.ContentType, img.Data)
			if err != nil {
				return fmt.Errorf("store image %s: %w", img.Filename, err)
			}
			if _, err := tx.CreateFile(ctx, &models.FileRecord{
				Path:         path,
				OriginalName: img.Filename,
				ContentType:  img.ContentType,
				OwnerType:    models.OwnerLocation,
				OwnerID:      id,
			}); err != nil {
				return fmt.Errorf("record image %s: %w", img.Filename, err)
			}
		}

		if err := o.engine.Apply(ctx, tx, userID, sp); err != nil {
			return err
		}

		loc, err = tx.GetLocation(ctx, id)
		if err != nil {
			return fmt.Errorf("load location %d: %w", id, err)
		}
		if loc == nil {
			return fmt.Errorf("location %d vanished", id)
		}
		return nil
	})
	if err != nil {
		if rmErr := o.files.Remove(rec.paths...); rmErr != nil {
			o.logger.Error("remove files of failed submission", slog.Any("err", rmErr))
		}
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperr.Internal("could not store observation", err)
	}
	return loc, nil
}

// recorder remembers every path it saved so a failed transaction can clean up.
type recorder struct {
	files FileStore
	paths []string
}

func (r *recorder) Save(folder, contentType string, data []byte) (string, error) {
	p, err := r.files.Save(folder, contentType, data)
	if err != nil {
		return "", err
	}
	r.paths = append(r.paths, p)
	return p, nil
}
