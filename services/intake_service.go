package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/camden-git/foodlens/catalog"
	"github.com/camden-git/foodlens/intake"
	"github.com/camden-git/foodlens/media"
	"github.com/camden-git/foodlens/nutrition"
	"github.com/camden-git/foodlens/realtime"
	"github.com/camden-git/foodlens/workers"
)

// PreviewAllocator hands out preview handles for uploads.
type PreviewAllocator interface {
	Acquire(owner string, up media.Upload, data io.Reader) (intake.StagedImage, error)
	Transfer(h intake.Handle, owner string) error
	Retain(h intake.Handle, owner string) error
	Release(h intake.Handle) error
}

// RecognitionRunner runs recognitions in the background.
type RecognitionRunner interface {
	Submit(job workers.RecognitionJob) error
	Cancel(sessionID string) bool
}

type Broadcaster interface {
	Broadcast(event realtime.Event)
}

// ImageUpload is one file of an upload batch.
type ImageUpload struct {
	media.Upload
	Data io.Reader
}

// ManualSubmission is the outcome of a manual submit. Issues lists the
// validation problems that were tolerated.
type ManualSubmission struct {
	Product nutrition.Product      `json:"product"`
	Issues  []nutrition.FieldIssue `json:"issues,omitempty"`
}

// IntakeService connects intake sessions to previews, evaluation, the
// catalog and background recognition.
type IntakeService struct {
	sessions     *intake.Registry
	catalog      *catalog.Catalog
	evaluator    *nutrition.Evaluator
	previews     PreviewAllocator
	recognitions RecognitionRunner
	events       Broadcaster
	strict       bool
}

func NewIntakeService(
	sessions *intake.Registry,
	cat *catalog.Catalog,
	evaluator *nutrition.Evaluator,
	previews PreviewAllocator,
	recognitions RecognitionRunner,
	events Broadcaster,
	strictValidation bool,
) *IntakeService {
	return &IntakeService{
		sessions:     sessions,
		catalog:      cat,
		evaluator:    evaluator,
		previews:     previews,
		recognitions: recognitions,
		events:       events,
		strict:       strictValidation,
	}
}

// pendingOwner holds a preview between leaving its session and its product
// getting an id.
const pendingOwner = "catalog"

func catalogOwner(productID uint) string {
	return fmt.Sprintf("catalog:%d", productID)
}

// store appends product and moves img, if any, from the session to the new
// product. While the append runs the preview is recorded under pendingOwner.
func (s *IntakeService) store(ctx context.Context, sessionID string, product nutrition.Product, img *intake.StagedImage) (nutrition.Product, error) {
	if img != nil {
		if err := s.previews.Transfer(img.Preview, pendingOwner); err != nil {
			return nutrition.Product{}, fmt.Errorf("failed to detach preview %s from session %s: %w", img.Preview.Key, sessionID, err)
		}
	}

	saved, err := s.catalog.Append(ctx, product)
	if err != nil {
		if img != nil {
			if terr := s.previews.Transfer(img.Preview, sessionID); terr != nil {
				log.Printf("services: failed to return preview %s to session %s: %v", img.Preview.Key, sessionID, terr)
			}
		}
		return nutrition.Product{}, err
	}

	if img != nil {
		if err := s.previews.Retain(img.Preview, catalogOwner(saved.ID)); err != nil {
			log.Printf("services: preview %s kept by product %d with errors: %v", img.Preview.Key, saved.ID, err)
		}
	}
	return saved, nil
}

func (s *IntakeService) broadcast(ev realtime.Event) {
	if s.events != nil {
		s.events.Broadcast(ev)
	}
}

func (s *IntakeService) CreateSession() intake.State {
	return s.sessions.Create().State()
}

func (s *IntakeService) State(id string) (intake.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return intake.State{}, err
	}
	return sess.State(), nil
}

// CloseSession cancels the session's recognition, if any, and releases
// its staged images.
func (s *IntakeService) CloseSession(id string) error {
	if _, err := s.sessions.Get(id); err != nil {
		return err
	}
	s.recognitions.Cancel(id)
	_, err := s.sessions.Remove(id)
	return err
}

// Update runs fn against the session and returns the resulting state.
func (s *IntakeService) Update(id string, fn func(sess *intake.Session) error) (intake.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return intake.State{}, err
	}
	if err := fn(sess); err != nil {
		return intake.State{}, err
	}
	return sess.State(), nil
}

// AddImages stages a batch of uploads. The batch is all or nothing: if one
// file cannot be staged the previews already made for the others are
// released.
func (s *IntakeService) AddImages(id string, uploads []ImageUpload) (intake.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return intake.State{}, err
	}
	if sess.IsLoading() {
		return intake.State{}, intake.ErrRecognitionInFlight
	}

	staged := make([]intake.StagedImage, 0, len(uploads))
	for _, up := range uploads {
		img, err := s.previews.Acquire(id, up.Upload, up.Data)
		if err != nil {
			for _, done := range staged {
				if relErr := s.previews.Release(done.Preview); relErr != nil {
					log.Printf("services: failed to release preview %s: %v", done.Preview.Key, relErr)
				}
			}
			return intake.State{}, err
		}
		staged = append(staged, img)
	}

	if err := sess.AddImages(staged...); err != nil {
		return intake.State{}, err
	}
	return sess.State(), nil
}

// SubmitManual evaluates the form, appends the product and resets the
// session. In strict mode validation issues reject the submit.
func (s *IntakeService) SubmitManual(ctx context.Context, id string) (ManualSubmission, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return ManualSubmission{}, err
	}

	var issues []nutrition.FieldIssue
	product, err := sess.SubmitManual(func(fields nutrition.ManualEntryFields, first *intake.StagedImage) (nutrition.Product, error) {
		if verr := nutrition.Validate(fields); verr != nil {
			var ve *nutrition.ValidationError
			if s.strict || !errors.As(verr, &ve) {
				return nutrition.Product{}, verr
			}
			issues = ve.Issues
		}

		return s.store(ctx, id, s.evaluator.Evaluate(fields), first)
	})
	if err != nil {
		return ManualSubmission{}, err
	}

	log.Printf("services: session %s submitted product %d (%s)", id, product.ID, product.Name)
	s.broadcast(realtime.Event{Type: realtime.EventCatalogAppended, SessionID: id, ProductID: product.ID, Status: nutrition.SourceManual})
	return ManualSubmission{Product: product, Issues: issues}, nil
}

// StartRecognition queues recognition of the session's first image. The
// result is appended to the catalog when the job completes.
func (s *IntakeService) StartRecognition(id string) (intake.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return intake.State{}, err
	}
	img, details, err := sess.BeginRecognition()
	if err != nil {
		return intake.State{}, err
	}

	job := workers.RecognitionJob{
		Input: workers.RecognitionInput{SessionID: id, Image: img, Details: details},
		OnDone: func(product nutrition.Product, err error) {
			s.completeRecognition(sess, img, product, err)
		},
	}
	if err := s.recognitions.Submit(job); err != nil {
		sess.FinishRecognition(nil)
		return intake.State{}, err
	}
	// CloseSession may have run before the job was queued; its cancel
	// found nothing then.
	if sess.Closed() {
		s.recognitions.Cancel(id)
		return intake.State{}, intake.ErrSessionClosed
	}

	s.broadcast(realtime.Event{Type: realtime.EventRecognitionStarted, SessionID: id, Status: "loading"})
	return sess.State(), nil
}

func (s *IntakeService) completeRecognition(sess *intake.Session, img intake.StagedImage, product nutrition.Product, err error) {
	if err != nil {
		sess.FinishRecognition(nil)
		if errors.Is(err, context.Canceled) {
			s.broadcast(realtime.Event{Type: realtime.EventRecognitionCancelled, SessionID: sess.ID, Status: "cancelled"})
			return
		}
		s.broadcast(realtime.Event{Type: realtime.EventRecognitionFailed, SessionID: sess.ID, Status: "failed", Error: err.Error()})
		return
	}

	saved, err := sess.FinishRecognition(func() (nutrition.Product, error) {
		return s.store(context.Background(), sess.ID, product, &img)
	})
	if errors.Is(err, intake.ErrSessionClosed) {
		log.Printf("services: session %s closed before its recognition was stored", sess.ID)
		s.broadcast(realtime.Event{Type: realtime.EventRecognitionCancelled, SessionID: sess.ID, Status: "cancelled"})
		return
	}
	if err != nil {
		log.Printf("services: failed to store recognized product for session %s: %v", sess.ID, err)
		s.broadcast(realtime.Event{Type: realtime.EventRecognitionFailed, SessionID: sess.ID, Status: "failed", Error: err.Error()})
		return
	}

	log.Printf("services: session %s recognized product %d (%s)", sess.ID, saved.ID, saved.Name)
	s.broadcast(realtime.Event{Type: realtime.EventRecognitionCompleted, SessionID: sess.ID, ProductID: saved.ID, Status: "done"})
	s.broadcast(realtime.Event{Type: realtime.EventCatalogAppended, SessionID: sess.ID, ProductID: saved.ID, Status: nutrition.SourceRecognition})
}

// CancelRecognition reports whether a recognition was running.
func (s *IntakeService) CancelRecognition(id string) (bool, error) {
	if _, err := s.sessions.Get(id); err != nil {
		return false, err
	}
	return s.recognitions.Cancel(id), nil
}

func (s *IntakeService) Products(ctx context.Context) ([]nutrition.Product, error) {
	return s.catalog.List(ctx)
}

// Product returns one catalog entry, or catalog.ErrProductNotFound.
func (s *IntakeService) Product(ctx context.Context, id uint) (nutrition.Product, error) {
	return s.catalog.Get(ctx, id)
}

func (s *IntakeService) Summary(ctx context.Context) ([]catalog.SummaryRow, error) {
	return s.catalog.Summarize(ctx)
}

func (s *IntakeService) Shutdown() {
	s.sessions.CloseAll()
}
