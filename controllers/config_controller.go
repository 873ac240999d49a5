package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/utils"
)

// ClientSettings are the deployment rules the client needs to render its UI.
type ClientSettings struct {
	TimeZone                     string `json:"time_zone"`
	SelfCheckinRequiresRecording bool   `json:"self_checkin_requires_recording"`
	AllowStudentSelfCheckin      bool   `json:"allow_student_self_checkin"`
	MaxUploadMB                  int    `json:"max_upload_mb"`
}

// ConfigController serves client-facing configuration.
type ConfigController struct {
	settings ClientSettings
	svc      *services.CheckinService
}

func NewConfigController(settings ClientSettings, svc *services.CheckinService) *ConfigController {
	return &ConfigController{settings: settings, svc: svc}
}

// GetSettings returns the check-in rules and the server's current local date.
func (c *ConfigController) GetSettings(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"settings": c.settings,
		"today":    c.svc.Today(),
	})
}
