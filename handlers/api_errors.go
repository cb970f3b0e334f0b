package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/camden-git/foodlens/catalog"
	"github.com/camden-git/foodlens/intake"
	"github.com/camden-git/foodlens/media"
	"github.com/camden-git/foodlens/nutrition"
	"github.com/camden-git/foodlens/workers"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	writeAPIErrors(w, httpStatus, []APIErrorDetail{{
		Code:   code,
		Status: strconv.Itoa(httpStatus),
		Detail: detail,
	}})
}

// WriteValidationError reports every field issue as its own error entry.
func WriteValidationError(w http.ResponseWriter, verr *nutrition.ValidationError) {
	status := strconv.Itoa(http.StatusUnprocessableEntity)
	details := make([]APIErrorDetail, 0, len(verr.Issues))
	for _, issue := range verr.Issues {
		details = append(details, APIErrorDetail{
			Code:   "validation_failed",
			Status: status,
			Detail: issue.Problem,
			Field:  issue.Field,
		})
	}
	writeAPIErrors(w, http.StatusUnprocessableEntity, details)
}

func writeAPIErrors(w http.ResponseWriter, httpStatus int, details []APIErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(APIErrorResponse{Errors: details})
}

// writeServiceError maps the domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error, action string) {
	var verr *nutrition.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteValidationError(w, verr)
	case errors.Is(err, intake.ErrSessionNotFound):
		WriteAPIError(w, http.StatusNotFound, "session_not_found", "Intake session not found")
	case errors.Is(err, catalog.ErrProductNotFound):
		WriteAPIError(w, http.StatusNotFound, "product_not_found", "Product not found")
	case errors.Is(err, intake.ErrSessionClosed):
		WriteAPIError(w, http.StatusGone, "session_closed", "Intake session is closed")
	case errors.Is(err, intake.ErrRecognitionInFlight), errors.Is(err, workers.ErrAlreadyPending):
		WriteAPIError(w, http.StatusConflict, "recognition_in_flight", "A recognition is already running for this session")
	case errors.Is(err, intake.ErrNoImages):
		WriteAPIError(w, http.StatusBadRequest, "no_images", "Upload at least one image before requesting recognition")
	case errors.Is(err, nutrition.ErrUnknownAllergen):
		WriteAPIError(w, http.StatusBadRequest, "unknown_allergen", err.Error())
	case errors.Is(err, media.ErrUnsupportedImage):
		WriteAPIError(w, http.StatusUnsupportedMediaType, "unsupported_image", err.Error())
	case errors.Is(err, workers.ErrQueueFull), errors.Is(err, workers.ErrQueueStopped):
		WriteAPIError(w, http.StatusServiceUnavailable, "recognition_unavailable", "Recognition is busy, try again shortly")
	default:
		log.Printf("handlers: failed to %s: %v", action, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to "+action)
	}
}
