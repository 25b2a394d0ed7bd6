package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/render"
	apperrors "github.com/LACC-DEVLINK/checkin-exercito-api/pkg/errors"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/metrics"
)

// ErrProfileNotFound is returned when a card is requested for a subject the
// directory does not know.
var ErrProfileNotFound = apperrors.New("card.profile_not_found", "Subject profile not found")

// ActiveCredentialFinder looks up the credential a subject currently holds.
type ActiveCredentialFinder interface {
	FindActiveBySubject(ctx context.Context, subjectID string) (*models.Credential, error)
}

// ProfileLookup resolves display attributes for a subject.
type ProfileLookup interface {
	Lookup(subjectID string) (render.Profile, bool)
}

// SheetReport lists the subjects left off a printed sheet.
type SheetReport struct {
	Included []string
	Skipped  []string
}

// CardServiceOption customises the CardService.
type CardServiceOption func(*CardService)

// WithProfiles attaches a subject directory. Without one, cards carry only
// the subject id.
func WithProfiles(profiles ProfileLookup) CardServiceOption {
	return func(s *CardService) {
		s.profiles = profiles
	}
}

// WithPackager overrides the archive packager.
func WithPackager(p *render.Packager) CardServiceOption {
	return func(s *CardService) {
		if p != nil {
			s.packager = p
		}
	}
}

// CardService renders QR images, printable cards and archives for the
// credentials subjects currently hold.
type CardService struct {
	creds    ActiveCredentialFinder
	encoder  credential.Encoder
	renderer *render.CardRenderer
	packager *render.Packager
	profiles ProfileLookup
	log      *zap.Logger
}

// NewCardService constructs a CardService.
func NewCardService(creds ActiveCredentialFinder, encoder credential.Encoder, renderer *render.CardRenderer, opts ...CardServiceOption) (*CardService, error) {
	if creds == nil {
		return nil, errors.New("card service: credential finder is required")
	}
	if encoder == nil {
		return nil, errors.New("card service: encoder is required")
	}
	if renderer == nil {
		return nil, errors.New("card service: renderer is required")
	}

	svc := &CardService{
		creds:    creds,
		encoder:  encoder,
		renderer: renderer,
		packager: render.NewPackager(),
		log:      logger.WithModule("card"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// QRImage renders the PNG of the subject's active credential.
func (s *CardService) QRImage(ctx context.Context, subjectID string) ([]byte, *models.Credential, error) {
	ctx = ensureContext(ctx)

	cred, err := s.creds.FindActiveBySubject(ctx, subjectID)
	if err != nil {
		return nil, nil, err
	}

	png, err := s.encoder.Encode(cred.RenderedPayload)
	if err != nil {
		return nil, nil, credential.ErrRenderFailed.WithInternal(err)
	}
	return png, cred, nil
}

// Card renders the printable card for one subject.
func (s *CardService) Card(ctx context.Context, subjectID string) ([]byte, error) {
	card, err := s.card(ctx, subjectID)
	if err != nil {
		metrics.CardsRendered.WithLabelValues("failure").Inc()
		return nil, err
	}

	doc, err := s.renderer.RenderCard(card)
	if err != nil {
		metrics.CardsRendered.WithLabelValues("failure").Inc()
		return nil, credential.ErrRenderFailed.WithInternal(err)
	}

	metrics.CardsRendered.WithLabelValues("success").Inc()
	return doc, nil
}

// Sheet renders every resolvable subject on one page. Subjects without a
// profile or an active credential are skipped and reported.
func (s *CardService) Sheet(ctx context.Context, subjectIDs []string) ([]byte, SheetReport, error) {
	var (
		report SheetReport
		cards  []render.Card
	)

	for _, subjectID := range normaliseIDs(subjectIDs) {
		card, err := s.card(ctx, subjectID)
		if err != nil {
			s.log.Warn("subject skipped from sheet", zap.String("subject_id", subjectID), zap.Error(err))
			report.Skipped = append(report.Skipped, subjectID)
			continue
		}
		cards = append(cards, card)
		report.Included = append(report.Included, subjectID)
	}

	if len(cards) == 0 {
		return nil, report, apperrors.NewBadRequest("No subject could be rendered")
	}

	doc, err := s.renderer.RenderSheet(cards)
	if err != nil {
		return nil, report, credential.ErrRenderFailed.WithInternal(err)
	}
	metrics.CardsRendered.WithLabelValues("success").Add(float64(len(cards)))
	return doc, report, nil
}

// Archive writes a zip of per-subject cards to w. Failing subjects are
// skipped; their errors are combined in the report.
func (s *CardService) Archive(ctx context.Context, w io.Writer, subjectIDs []string) (render.ArchiveReport, error) {
	ctx = ensureContext(ctx)

	report, err := s.packager.Package(ctx, w, normaliseIDs(subjectIDs), s.Card)
	if err != nil {
		return report, fmt.Errorf("card service: archive: %w", err)
	}
	if report.Err != nil {
		s.log.Warn("archive completed with skipped subjects",
			zap.Int("included", len(report.Included)),
			zap.Strings("skipped", report.Skipped),
			zap.Error(report.Err),
		)
	}
	return report, nil
}

func (s *CardService) card(ctx context.Context, subjectID string) (render.Card, error) {
	profile := render.Profile{SubjectID: subjectID}
	if s.profiles != nil {
		found, ok := s.profiles.Lookup(subjectID)
		if !ok {
			return render.Card{}, ErrProfileNotFound.WithInternal(fmt.Errorf("subject %s", subjectID))
		}
		profile = found
	}

	png, cred, err := s.QRImage(ctx, subjectID)
	if err != nil {
		return render.Card{}, err
	}

	return render.Card{
		Profile: profile,
		QR:      png,
		EventID: cred.EventIDValue(),
	}, nil
}
