package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

// skillManifest describes the push API in a form agents can ingest directly.
type skillManifest struct {
	Name        string           `yaml:"name"`
	Version     string           `yaml:"version"`
	Description string           `yaml:"description"`
	Auth        skillAuth        `yaml:"auth"`
	Operations  []skillOperation `yaml:"operations"`
}

type skillAuth struct {
	Scheme string `yaml:"scheme"`
	Header string `yaml:"header"`
}

type skillOperation struct {
	Name        string `yaml:"name"`
	Method      string `yaml:"method"`
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

var pushSkill = skillManifest{
	Name:        "calagent-push",
	Version:     "1.0",
	Description: "Push calendar subscriptions and events; each subscription is served back as an iCalendar feed.",
	Auth: skillAuth{
		Scheme: "bearer",
		Header: "Authorization: Bearer <api key>",
	},
	Operations: []skillOperation{
		{
			Name:        "push",
			Method:      "POST",
			Path:        "/api/v1/subscriptions",
			Description: "Create or refresh a subscription and upsert a batch of events. Returns the public feed URL.",
		},
		{
			Name:        "append_events",
			Method:      "POST",
			Path:        "/api/v1/subscriptions/{id}/events",
			Description: "Upsert events into an existing subscription.",
		},
		{
			Name:        "list",
			Method:      "GET",
			Path:        "/api/v1/subscriptions",
			Description: "List subscriptions with their feed URLs.",
		},
		{
			Name:        "delete",
			Method:      "DELETE",
			Path:        "/api/v1/subscriptions/{id}",
			Description: "Delete a subscription and its events.",
		},
	},
}

// @Summary      Download the agent skill manifest
// @Tags         skill
// @Produce      plain
// @Success      200  {string}  string  "YAML manifest"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/skill [get]
// @Security     BearerAuth
func (h *Handler) downloadSkill(c *gin.Context) {
	out, err := yaml.Marshal(pushSkill)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to render manifest", "skill_render_failed", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="calagent-skill.yml"`)
	c.Data(http.StatusOK, "application/yaml", out)
}
