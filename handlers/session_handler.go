package handlers

import (
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/camden-git/foodlens/intake"
	"github.com/camden-git/foodlens/media"
	"github.com/camden-git/foodlens/services"
	"github.com/go-chi/chi/v5"
)

const uploadFormField = "images"

type SessionHandler struct {
	Service        *services.IntakeService
	MaxUploadBytes int64
}

func NewSessionHandler(svc *services.IntakeService, maxUploadBytes int64) *SessionHandler {
	return &SessionHandler{Service: svc, MaxUploadBytes: maxUploadBytes}
}

// Routes mounts the per-session endpoints below /api/sessions/{session_id}.
func (h *SessionHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateSession)
	r.Route("/{session_id}", func(r chi.Router) {
		r.Use(SessionMiddleware(h.Service))
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Post("/images", h.UploadImages)
		r.Delete("/images/{index}", h.RemoveImage)
		r.Post("/navigate", h.Navigate)
		r.Put("/current", h.SelectImage)
		r.Patch("/details", h.UpdateDetails)
		r.Patch("/entry", h.UpdateEntry)
		r.Put("/allergens", h.ToggleAllergen)
		r.Post("/submit/manual", h.SubmitManual)
		r.Post("/submit/recognition", h.SubmitRecognition)
		r.Delete("/recognition", h.CancelRecognition)
	})
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.Service.CreateSession())
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.State(sessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, "load session")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.CloseSession(sessionIDFromContext(r.Context())); err != nil {
		writeServiceError(w, err, "close session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFromContext(r.Context())
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Invalid multipart upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadFormField]
	if len(headers) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "no_files", "Expected one or more files in the '"+uploadFormField+"' field")
		return
	}

	uploads := make([]services.ImageUpload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			log.Printf("handlers: failed to open uploaded file '%s': %v", fh.Filename, err)
			WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Could not read uploaded file '"+fh.Filename+"'")
			return
		}
		files = append(files, f)
		uploads = append(uploads, services.ImageUpload{
			Upload: media.Upload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
			},
			Data: f,
		})
	}

	st, err := h.Service.AddImages(id, uploads)
	if err != nil {
		writeServiceError(w, err, "stage images")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SessionHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_index", "Image index must be an integer")
		return
	}
	h.update(w, r, "remove image", func(s *intake.Session) error {
		return s.RemoveImage(index)
	})
}

func (h *SessionHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	dir, err := intake.ParseDirection(req.Direction)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_direction", err.Error())
		return
	}
	h.update(w, r, "navigate", func(s *intake.Session) error {
		return s.Navigate(dir)
	})
}

func (h *SessionHandler) SelectImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Index == nil {
		WriteAPIError(w, http.StatusBadRequest, "missing_index", "Missing required field: index")
		return
	}
	h.update(w, r, "select image", func(s *intake.Session) error {
		return s.Select(*req.Index)
	})
}

func (h *SessionHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	var patch intake.DetailsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	h.update(w, r, "update details", func(s *intake.Session) error {
		_, err := s.UpdateDetails(patch)
		return err
	})
}

func (h *SessionHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var patch intake.EntryPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	h.update(w, r, "update entry", func(s *intake.Session) error {
		_, err := s.UpdateEntry(patch)
		return err
	})
}

func (h *SessionHandler) ToggleAllergen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Allergen string `json:"allergen"`
		Checked  bool   `json:"checked"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.update(w, r, "toggle allergen", func(s *intake.Session) error {
		return s.ToggleAllergen(req.Allergen, req.Checked)
	})
}

func (h *SessionHandler) update(w http.ResponseWriter, r *http.Request, action string, fn func(s *intake.Session) error) {
	st, err := h.Service.Update(sessionIDFromContext(r.Context()), fn)
	if err != nil {
		writeServiceError(w, err, action)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SessionHandler) SubmitManual(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.SubmitManual(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, "submit product")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *SessionHandler) SubmitRecognition(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.StartRecognition(sessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, "start recognition")
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (h *SessionHandler) CancelRecognition(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.Service.CancelRecognition(sessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, "cancel recognition")
		return
	}
	if !cancelled {
		WriteAPIError(w, http.StatusNotFound, "no_recognition", "No recognition is running for this session")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
