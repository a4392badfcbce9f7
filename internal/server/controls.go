package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/lingolens/internal/annotation"
	"github.com/ayusman/lingolens/internal/app"
	"github.com/ayusman/lingolens/internal/mode"
	"github.com/ayusman/lingolens/internal/server/api"
)

// controls serves the pipeline control endpoints.
type controls struct {
	pipeline Pipeline
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type modeResponse struct {
	Mode  string `json:"mode"`
	Epoch uint64 `json:"epoch"`
}

type languageRequest struct {
	Target string `json:"target"`
}

type languageResponse struct {
	Target string `json:"target"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type enabledResponse struct {
	Enabled bool `json:"enabled"`
}

type annotationsResponse struct {
	Version     uint64                  `json:"version"`
	Annotations []annotation.Annotation `json:"annotations"`
}

func transitionResponse(tr mode.Transition) modeResponse {
	return modeResponse{Mode: tr.To.String(), Epoch: tr.Tag.Epoch}
}

func (c *controls) getMode(w http.ResponseWriter, r *http.Request) {
	st := c.pipeline.Status()
	api.WriteJSON(w, http.StatusOK, modeResponse{Mode: st.Mode, Epoch: st.Epoch})
}

func (c *controls) putMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	m, err := mode.Parse(req.Mode)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	api.WriteJSON(w, http.StatusOK, transitionResponse(c.pipeline.SetMode(m)))
}

func (c *controls) toggleMode(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, transitionResponse(c.pipeline.ToggleMode()))
}

func (c *controls) getLanguage(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, languageResponse{Target: c.pipeline.TargetLanguage()})
}

func (c *controls) putLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := c.pipeline.SetTargetLanguage(req.Target); err != nil {
		if errors.Is(err, app.ErrInvalidLanguage) {
			api.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		api.WriteError(w, http.StatusInternalServerError, "failed to set language")
		return
	}

	api.WriteJSON(w, http.StatusOK, languageResponse{Target: c.pipeline.TargetLanguage()})
}

func (c *controls) getEnabled(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, enabledResponse{Enabled: c.pipeline.IsEnabled()})
}

func (c *controls) putEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		api.WriteError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	c.pipeline.SetEnabled(*req.Enabled)
	api.WriteJSON(w, http.StatusOK, enabledResponse{Enabled: c.pipeline.IsEnabled()})
}

func (c *controls) getAnnotations(w http.ResponseWriter, r *http.Request) {
	m := c.pipeline.Annotations()
	api.WriteJSON(w, http.StatusOK, annotationsResponse{
		Version:     m.Version(),
		Annotations: m.Snapshot(),
	})
}
