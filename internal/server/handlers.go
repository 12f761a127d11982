package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/five82/slingshot/internal/slingshot"
	"github.com/five82/slingshot/internal/storage"
)

type fileBody struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type"`
	Size int64  `json:"size" binding:"gte=0"`
}

type authorizationBody struct {
	File fileBody       `json:"file"`
	Meta slingshot.Meta `json:"meta"`
}

func (s *Server) handleRequest(c *gin.Context) {
	profile, ok := s.profiles[c.Param("profile")]
	if !ok {
		respondError(c, http.StatusNotFound, "Unknown profile")
		return
	}

	var body authorizationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := body.Meta.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "Meta must be an object with string or number values")
		return
	}
	file := slingshot.FileDescriptor{Name: body.File.Name, Type: body.File.Type, Size: body.File.Size}

	if s.authorize != nil {
		if err := s.authorize(c.Request.Context(), profile, file, body.Meta); err != nil {
			_ = c.Error(err)
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if key := missingMeta(body.Meta, profile.RequiredMeta); key != "" {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("Missing meta: %s", key))
		return
	}
	if !CheckFileType(file.Type, profile.AllowedTypes) {
		respondError(c, http.StatusBadRequest, "File type not allowed")
		return
	}
	if !CheckFileSize(file.Size, profile.MaxSize) {
		respondError(c, http.StatusBadRequest, "File size too large")
		return
	}

	key := objectKey(profile, file.Name)
	signed, err := s.adapter.SignURL(c.Request.Context(), key, http.MethodPut, s.cfg.ExpiresIn)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info("upload authorized",
		"request_id", requestIDFrom(c),
		"profile", profile.Name,
		"key", key,
		"type", file.Type,
		"size", file.Size,
	)
	c.JSON(http.StatusOK, slingshot.Authorization{Key: key, URL: signed})
}

func (s *Server) handleResolve(c *gin.Context) {
	name := c.Param("profile")
	if _, ok := s.profiles[name]; !ok {
		respondError(c, http.StatusNotFound, "Unknown profile")
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !strings.HasPrefix(key, name+"/") {
		respondError(c, http.StatusNotFound, "Not found")
		return
	}

	exists, err := s.adapter.Exists(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			respondError(c, http.StatusNotFound, "Not found")
			return
		}
		_ = c.Error(err)
		respondError(c, http.StatusBadGateway, "Storage unavailable")
		return
	}
	if !exists {
		respondError(c, http.StatusNotFound, "Not found")
		return
	}

	signed, err := s.adapter.SignURL(c.Request.Context(), key, http.MethodGet, s.cfg.ExpiresIn)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusBadGateway, "Storage unavailable")
		return
	}
	c.Redirect(http.StatusFound, signed)
}

// Blob handlers answer in plain text like an object store would; the client
// reports the body of a failed PUT as the file's error.

func (s *Server) handleBlobPut(c *gin.Context) {
	key, ok := s.verifyBlob(c, http.MethodPut)
	if !ok {
		return
	}

	var limit int64
	if profile, found := s.profiles[strings.SplitN(key, "/", 2)[0]]; found {
		limit = profile.MaxSize
	}
	if limit > 0 && c.Request.ContentLength > limit {
		c.String(http.StatusRequestEntityTooLarge, "EntityTooLarge")
		return
	}

	n, err := s.local.Write(key, c.Request.Body, limit)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		c.String(http.StatusRequestEntityTooLarge, "EntityTooLarge")
		return
	case err != nil:
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "InternalError")
		return
	}

	s.log.Info("blob stored", "request_id", requestIDFrom(c), "key", key, "bytes", n)
	c.Status(http.StatusOK)
}

func (s *Server) handleBlobGet(c *gin.Context) {
	key, ok := s.verifyBlob(c, http.MethodGet)
	if !ok {
		return
	}

	f, err := s.local.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.String(http.StatusNotFound, "NoSuchKey")
			return
		}
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "InternalError")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		c.String(http.StatusNotFound, "NoSuchKey")
		return
	}
	mt, err := mimetype.DetectReader(f)
	if err == nil {
		c.Header("Content-Type", mt.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "InternalError")
		return
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

// verifyBlob checks the signature of a local blob URL. HEAD is signed as GET.
func (s *Server) verifyBlob(c *gin.Context, method string) (string, bool) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	err := s.local.Verify(method, key, c.Query("expires"), c.Query("signature"))
	switch {
	case err == nil:
		return key, true
	case errors.Is(err, storage.ErrSignatureExpired):
		c.String(http.StatusForbidden, "Request has expired")
	case errors.Is(err, storage.ErrInvalidKey):
		c.String(http.StatusBadRequest, "InvalidKey")
	default:
		c.String(http.StatusForbidden, "SignatureDoesNotMatch")
	}
	return "", false
}
