package webserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/chunkd/internal/database"
	"github.com/mdouchement/chunkd/internal/model"
	"github.com/mdouchement/chunkd/internal/webserver/serializer"
	"github.com/mdouchement/chunkd/internal/webserver/service"
	"github.com/mdouchement/chunkd/internal/xpath"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
)

type upload struct {
	logger   logger.Logger
	db       database.Client
	receiver *service.ChunkReceiver
	checker  *service.CompletenessChecker
	cleanup  *service.SessionCleanup
	handoff  *service.HandOff
}

// chunkForm is the multipart form of a chunk upload, the binary part excepted.
type chunkForm struct {
	SessionID   string `form:"sessionId"   validate:"required"`
	FileName    string `form:"fileName"    validate:"required"`
	FileSize    string `form:"fileSize"    validate:"omitempty,number"`
	MimeType    string `form:"mimeType"`
	ChunkIndex  string `form:"chunkIndex"  validate:"required,number"`
	TotalChunks string `form:"totalChunks" validate:"required,number"`
	IsLastChunk string `form:"isLastChunk" validate:"omitempty,oneof=true false 1 0"`
	Checksum    string `form:"checksum"    validate:"omitempty,len=64,hexadecimal"`
}

func (h *upload) Upload(c echo.Context) error {
	c.Set("handler_method", "upload.Upload")

	var form chunkForm
	if err := c.Bind(&form); err != nil {
		h.logger.Errorf("upload.Upload: %s", errors.Wrap(err, "could not bind form"))
		return service.NewInvalidFieldsError("form")
	}

	fh, ferr := c.FormFile("chunk")
	if err := c.Validate(&form); err != nil {
		var verr *service.ValidationError
		if ferr != nil && errors.As(err, &verr) && verr.Reason() == service.ReasonMissingFields {
			verr.Fields = append(verr.Fields, "chunk")
		}
		return err
	}
	if ferr != nil {
		return service.NewMissingFieldsError("chunk")
	}

	request, err := form.request()
	if err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return &service.StorageError{Op: "open chunk part", Err: err}
	}
	defer f.Close()
	request.Body = f

	//

	receipt, err := h.receiver.Receive(request)
	if err != nil {
		return err
	}

	var artifact *model.Artifact
	if receipt.File != nil && h.handoff.Enabled() {
		artifact, err = h.handoff.Forward(c.Request().Context(), receipt.File)
		if err != nil {
			return err
		}
	}

	return c.JSON(http.StatusOK, serializer.Receipt(receipt, artifact))
}

func (h *upload) Status(c echo.Context) error {
	c.Set("handler_method", "upload.Status")

	sessionID := c.Param("session")
	if !xpath.ValidSession(sessionID) {
		return service.NewInvalidFieldsError("sessionId")
	}

	var total int
	if v := c.QueryParam("totalChunks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return service.NewInvalidFieldsError("totalChunks")
		}
		total = n
	} else {
		session, err := h.db.FindSession(sessionID)
		if err != nil && !h.db.IsNotFound(err) {
			return &service.StorageError{Op: "find session", Err: err}
		}
		if err == nil {
			total = session.TotalChunks
		}
	}

	completeness, err := h.checker.Check(sessionID, total)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, completeness)
}

func (h *upload) Abandon(c echo.Context) error {
	c.Set("handler_method", "upload.Abandon")

	sessionID := c.Param("session")
	if !xpath.ValidSession(sessionID) {
		return service.NewInvalidFieldsError("sessionId")
	}

	n := h.cleanup.Cleanup(sessionID)
	h.logger.Debugf("upload.Abandon: %s: %d chunks removed", sessionID, n)

	return c.NoContent(http.StatusNoContent)
}

func (h *upload) Artifacts(c echo.Context) error {
	c.Set("handler_method", "upload.Artifacts")

	artifacts, err := h.db.AllArtifacts()
	if err != nil {
		return &service.StorageError{Op: "list artifacts", Err: err}
	}

	return c.JSON(http.StatusOK, serializer.Artifacts(artifacts))
}

// request converts the validated form into a service.ChunkRequest.
func (f chunkForm) request() (service.ChunkRequest, error) {
	r := service.ChunkRequest{
		SessionID:   f.SessionID,
		FileName:    f.FileName,
		FileSize:    -1,
		ContentType: f.MimeType,
		IsLastChunk: f.IsLastChunk == "true" || f.IsLastChunk == "1",
		Checksum:    f.Checksum,
	}

	var invalid []string
	var err error

	if r.ChunkIndex, err = strconv.Atoi(f.ChunkIndex); err != nil {
		invalid = append(invalid, "chunkIndex")
	}
	if r.TotalChunks, err = strconv.Atoi(f.TotalChunks); err != nil {
		invalid = append(invalid, "totalChunks")
	}
	if f.FileSize != "" {
		if r.FileSize, err = strconv.ParseInt(f.FileSize, 10, 64); err != nil {
			invalid = append(invalid, "fileSize")
		}
	}

	if len(invalid) > 0 {
		return r, service.NewInvalidFieldsError(invalid...)
	}
	return r, nil
}
