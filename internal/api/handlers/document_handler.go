package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mohammadjaf013/findlanqbot/internal/services"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

type DocumentHandler struct {
	svc          services.IngestService
	maxBytes     int64
	asyncDefault bool
}

func NewDocumentHandler(svc services.IngestService, maxBytes int64, asyncDefault bool) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &DocumentHandler{svc: svc, maxBytes: maxBytes, asyncDefault: asyncDefault}
}

type UploadTextRequest struct {
	FileName string `json:"file_name" binding:"required"`
	Text     string `json:"text"`
}

// Upload takes a multipart "file" or a JSON body. ?async=true queues the work.
func (h *DocumentHandler) Upload(c *gin.Context) {
	const op = "DocumentHandler.Upload"

	async := h.asyncDefault
	if raw := c.Query("async"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, op, "async must be true or false", err)
			return
		}
		async = v
	}

	var (
		res *services.IngestResult
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		name, data, ok := h.readUpload(c, op)
		if !ok {
			return
		}
		if async {
			res, err = h.svc.EnqueueDocument(c.Request.Context(), name, data)
		} else {
			res, err = h.svc.IngestDocument(c.Request.Context(), name, data)
		}
	} else {
		var req UploadTextRequest
		if berr := c.ShouldBindJSON(&req); berr != nil {
			badRequest(c, op, "expected a multipart file or a JSON body with file_name and text", berr)
			return
		}
		if int64(len(req.Text)) > h.maxBytes {
			writeError(c, utils.E(utils.CodeTooLarge, op, "text is too large", nil))
			return
		}
		if async {
			res, err = h.svc.EnqueueText(c.Request.Context(), req.FileName, req.Text)
		} else {
			res, err = h.svc.IngestText(c.Request.Context(), req.FileName, req.Text)
		}
	}
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	switch res.Status {
	case services.IngestStatusIngested:
		status = http.StatusCreated
	case services.IngestStatusQueued:
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

func (h *DocumentHandler) readUpload(c *gin.Context, op string) (string, []byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, op, "file is required", err)
		return "", nil, false
	}
	if fh.Size > h.maxBytes {
		writeError(c, utils.E(utils.CodeTooLarge, op, "file is too large", nil))
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, op, "failed to read file", err)
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		badRequest(c, op, "failed to read file", err)
		return "", nil, false
	}
	name := fh.Filename
	if v := c.PostForm("file_name"); v != "" {
		name = v
	}
	return name, data, true
}

func (h *DocumentHandler) List(c *gin.Context) {
	files, err := h.svc.ListFiles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteFile(c.Request.Context(), c.Param("file_name")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
