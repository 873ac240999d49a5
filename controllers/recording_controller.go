package controllers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bible-memorize/server/blob"
	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/store"
	"github.com/bible-memorize/server/utils"
)

// RecordingController handles audio uploads and playback.
type RecordingController struct {
	svc      *services.CheckinService
	maxBytes int64
}

func NewRecordingController(svc *services.CheckinService, maxBytes int64) *RecordingController {
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return &RecordingController{svc: svc, maxBytes: maxBytes}
}

type recordingItem struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	UserName  string    `json:"user_name"`
	Filename  string    `json:"filename"`
	AudioURL  string    `json:"audio_url"`
	CreatedAt time.Time `json:"created_at"`
}

func toRecordingItem(v store.RecordingView) recordingItem {
	return recordingItem{
		ID:        v.ID,
		UserID:    v.UserID,
		UserName:  v.UserName,
		Filename:  v.Filename,
		AudioURL:  "/storage/" + v.Filename,
		CreatedAt: v.CreatedAt,
	}
}

// Upload accepts one webm file in the multipart field "audio".
func (r *RecordingController) Upload(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, r.maxBytes+1<<20)

	fh, err := ctx.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41300, "recording too large")
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40020, "missing audio file")
		return
	}
	if fh.Size > r.maxBytes {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41300, "recording too large")
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	mime := strings.ToLower(fh.Header.Get("Content-Type"))
	if ext != ".webm" && !strings.HasPrefix(mime, "audio/webm") {
		utils.Error(ctx, http.StatusBadRequest, 40021, "only webm audio is accepted")
		return
	}

	f, err := fh.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "unreadable upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, r.maxBytes+1))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "unreadable upload")
		return
	}
	if int64(len(data)) > r.maxBytes {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41300, "recording too large")
		return
	}

	rec, err := r.svc.SubmitRecording(ctx.Request.Context(), p.ID, data, ".webm")
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, recordingItem{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Filename:  rec.Filename,
		AudioURL:  "/storage/" + rec.Filename,
		CreatedAt: rec.CreatedAt,
	})
}

// List returns recordings, optionally filtered by ?userId=.
func (r *RecordingController) List(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	userID, ok := intQuery(ctx, "userId")
	if !ok {
		return
	}
	if userID < 0 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid userId")
		return
	}
	views, err := r.svc.ListRecordings(ctx.Request.Context(), p, uint(userID))
	if err != nil {
		respondError(ctx, err)
		return
	}
	out := make([]recordingItem, 0, len(views))
	for _, v := range views {
		out = append(out, toRecordingItem(v))
	}
	utils.Success(ctx, out)
}

// Delete removes one recording; owner or admin.
func (r *RecordingController) Delete(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	if err := r.svc.DeleteRecording(ctx.Request.Context(), p, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"ok": true})
}

// Stream serves the audio behind /storage/:filename.
func (r *RecordingController) Stream(ctx *gin.Context) {
	ref := ctx.Param("filename")
	data, err := r.svc.Audio(ctx.Request.Context(), ref)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Header("Cache-Control", "private, max-age=3600")
	ctx.Data(http.StatusOK, blob.ContentType(ref), data)
}
