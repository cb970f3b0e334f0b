package intake

import (
	"errors"
	"sync"
	"time"

	"github.com/camden-git/foodlens/nutrition"
)

var (
	ErrSessionNotFound     = errors.New("intake session not found")
	ErrSessionClosed       = errors.New("intake session closed")
	ErrRecognitionInFlight = errors.New("recognition already in progress for this session")
	ErrNoImages            = errors.New("no staged images")
)

// DetailsPatch updates only the non-nil fields.
type DetailsPatch struct {
	Weight          *string `json:"weight,omitempty"`
	ServingSize     *string `json:"serving_size,omitempty"`
	AdditionalNotes *string `json:"additional_notes,omitempty"`
}

// EntryPatch updates only the non-nil manual entry fields.
type EntryPatch struct {
	ProductName   *string `json:"product_name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Calories      *string `json:"calories,omitempty"`
	Protein       *string `json:"protein,omitempty"`
	Carbohydrates *string `json:"carbohydrates,omitempty"`
	Fat           *string `json:"fat,omitempty"`
	Potassium     *string `json:"potassium,omitempty"`
	Sodium        *string `json:"sodium,omitempty"`
}

// State is a read-only snapshot of a session. LastProductID is the catalog
// id of the product the session last produced.
type State struct {
	ID            string                      `json:"id"`
	Images        []StagedImage               `json:"images"`
	CurrentIndex  *int                        `json:"current_index"`
	Details       ProductDetails              `json:"details"`
	Entry         nutrition.ManualEntryFields `json:"entry"`
	IsLoading     bool                        `json:"is_loading"`
	LastProductID *uint                       `json:"last_product_id"`
	CreatedAt     int64                       `json:"created_at"`
}

// Session is one form instance: staged images, upload details, the manual
// entry form and the loading flag of its single recognition slot.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	manager *Manager
	entry   *Entry
	loading bool
	closed  bool
	last    *uint
}

func NewSession(id string, releaser HandleReleaser) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		manager:   NewManager(releaser),
		entry:     NewEntry(),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:        s.ID,
		Images:    s.manager.Images(),
		Details:   s.manager.Details(),
		Entry:     s.entry.Fields(s.manager.PreviewURLs()),
		IsLoading: s.loading,
		CreatedAt: s.CreatedAt.Unix(),
	}
	if idx, ok := s.manager.CurrentIndex(); ok {
		st.CurrentIndex = &idx
	}
	if s.last != nil {
		id := *s.last
		st.LastProductID = &id
	}
	return st
}

func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// commit must be called with mu held.
func (s *Session) commit(p nutrition.Product) {
	s.manager.Commit()
	s.entry.Reset()
	id := p.ID
	s.last = &id
}

// checkMutable must be called with mu held.
func (s *Session) checkMutable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.loading {
		return ErrRecognitionInFlight
	}
	return nil
}

// AddImages stages images. When the session cannot take them their
// previews are released before the error is returned.
func (s *Session) AddImages(images ...StagedImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		for _, img := range images {
			s.manager.release(img)
		}
		return err
	}
	s.manager.AddImages(images...)
	return nil
}

func (s *Session) RemoveImage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	s.manager.RemoveImage(index)
	return nil
}

func (s *Session) Navigate(d Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.manager.Navigate(d)
	return nil
}

func (s *Session) Select(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.manager.Select(index)
	return nil
}

func (s *Session) UpdateDetails(p DetailsPatch) (ProductDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ProductDetails{}, ErrSessionClosed
	}
	if p.Weight != nil {
		s.manager.SetWeight(*p.Weight)
	}
	if p.ServingSize != nil {
		s.manager.SetServingSize(*p.ServingSize)
	}
	if p.AdditionalNotes != nil {
		s.manager.SetAdditionalNotes(*p.AdditionalNotes)
	}
	return s.manager.Details(), nil
}

func (s *Session) UpdateEntry(p EntryPatch) (nutrition.ManualEntryFields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nutrition.ManualEntryFields{}, ErrSessionClosed
	}
	setters := []struct {
		val *string
		set func(string)
	}{
		{p.ProductName, s.entry.SetProductName},
		{p.Description, s.entry.SetDescription},
		{p.Calories, s.entry.SetCalories},
		{p.Protein, s.entry.SetProtein},
		{p.Carbohydrates, s.entry.SetCarbohydrates},
		{p.Fat, s.entry.SetFat},
		{p.Potassium, s.entry.SetPotassium},
		{p.Sodium, s.entry.SetSodium},
	}
	for _, st := range setters {
		if st.val != nil {
			st.set(*st.val)
		}
	}
	return s.entry.Fields(s.manager.PreviewURLs()), nil
}

func (s *Session) ToggleAllergen(name string, checked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.entry.ToggleAllergen(name, checked)
}

// FinalizeFunc turns the submitted form into a stored product. first is the
// staged image that will stay alive with the product, or nil.
type FinalizeFunc func(fields nutrition.ManualEntryFields, first *StagedImage) (nutrition.Product, error)

// SubmitManual hands the current form to finalize. If finalize succeeds the
// first staged image goes with the product and the form is reset; on error
// nothing changes.
func (s *Session) SubmitManual(finalize FinalizeFunc) (nutrition.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return nutrition.Product{}, err
	}

	var first *StagedImage
	if img, ok := s.manager.First(); ok {
		first = &img
	}
	product, err := finalize(s.entry.Fields(s.manager.PreviewURLs()), first)
	if err != nil {
		return nutrition.Product{}, err
	}
	s.commit(product)
	return product, nil
}

// BeginRecognition takes the session's recognition slot and returns the
// recognizer input. Image mutations are refused until FinishRecognition.
func (s *Session) BeginRecognition() (StagedImage, ProductDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return StagedImage{}, ProductDetails{}, err
	}
	first, ok := s.manager.First()
	if !ok {
		return StagedImage{}, ProductDetails{}, ErrNoImages
	}
	s.loading = true
	return first, s.manager.Details(), nil
}

// CommitFunc stores the recognized product.
type CommitFunc func() (nutrition.Product, error)

// FinishRecognition frees the recognition slot. A nil commit means the
// recognition produced nothing. Otherwise commit runs with the session
// locked, so a session closed in the meantime gets ErrSessionClosed and
// nothing is stored. When commit succeeds the first image stays alive with
// the product and the form is reset.
func (s *Session) FinishRecognition(commit CommitFunc) (nutrition.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.closed {
		s.manager.Reset()
		if commit != nil {
			return nutrition.Product{}, ErrSessionClosed
		}
		return nutrition.Product{}, nil
	}
	if commit == nil {
		return nutrition.Product{}, nil
	}
	product, err := commit()
	if err != nil {
		return nutrition.Product{}, err
	}
	s.commit(product)
	return product, nil
}

// Close tears the session down. While a recognition is running the release
// is left to FinishRecognition so the recognized image is not freed early.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if !s.loading {
		s.manager.Reset()
	}
}
