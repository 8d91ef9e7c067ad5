package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/onboarding"
)

type OnboardingHandler struct {
	orchestrator *onboarding.Orchestrator
}

func NewOnboardingHandler(o *onboarding.Orchestrator) *OnboardingHandler {
	return &OnboardingHandler{orchestrator: o}
}

func (h *OnboardingHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	var form onboarding.Form
	if !decodeJSON(w, r, &form) {
		return
	}

	res, err := h.orchestrator.Provision(r.Context(), form)
	if err != nil {
		writeOnboardingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func writeOnboardingError(w http.ResponseWriter, err error) {
	var oe *onboarding.Error
	if !errors.As(err, &oe) {
		slog.Error("onboarding failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch oe.Kind {
	case onboarding.KindInvalidInput, onboarding.KindWeakSecret, onboarding.KindInvalidEmail:
		status = http.StatusBadRequest
	case onboarding.KindEmailAlreadyInUse:
		status = http.StatusConflict
	case onboarding.KindSlugResolutionFailed, onboarding.KindWriteFailed, onboarding.KindUnknown:
		slog.Error("onboarding failed", "kind", oe.Kind, "stage", oe.Stage, "reached", oe.Reached, "error", oe.Err)
	}
	writeJSON(w, status, map[string]string{"error": oe.Message, "code": string(oe.Kind)})
}
