// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/huddle/internal/auth"
	"github.com/tomtom215/huddle/internal/files"
	"github.com/tomtom215/huddle/internal/models"
)

// handleUploadFile stores a file in the group. The blob goes to the
// blob store under the group's storage folder; metadata goes to
// PostgreSQL. Anonymous uploads are allowed, matching group creation;
// the uploader is recorded when a session is present.
//
// POST /api/v1/groups/{id}/files  (multipart, field "file")
func (h *Handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	maxBytes := h.cfg.Files.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, models.ErrCodePayloadTooBig,
				"file exceeds the upload limit of "+strconv.FormatInt(maxBytes, 10)+" bytes", nil)
			return
		}
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation,
			`multipart field "file" is required`, nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, models.ErrCodePayloadTooBig,
				"file exceeds the upload limit", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"read upload", err)
		return
	}

	meta := &models.GroupFile{
		ID:          uuid.New().String(),
		GroupID:     g.ID,
		Name:        header.Filename,
		Size:        int64(len(data)),
		ContentType: header.Header.Get("Content-Type"),
		CreatedAt:   time.Now(),
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}

	actor := auth.ActorFromContext(r.Context())
	if sess, ok := actor.Session(); ok {
		user, err := h.users.Ensure(r.Context(), sess.UserID, sess.DisplayName)
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
				"resolve uploader", err)
			return
		}
		meta.UploaderID = &user.ID
	}

	if err := h.blobs.Put(g.StorageFolder, meta.ID, data); err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"store file", err)
		return
	}
	if err := h.fileMeta.Create(r.Context(), meta); err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"store file metadata", err)
		return
	}

	if h.metrics != nil {
		h.metrics.FilesUploadedTotal.Inc()
	}
	if h.events != nil {
		h.events.PublishFileUploaded(r.Context(), g.ID, meta.ID, meta.Name, actor.UserID())
	}

	respondJSON(w, http.StatusCreated, meta)
}

// handleListFiles lists a group's files, newest first.
//
// GET /api/v1/groups/{id}/files
func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	list, err := h.fileMeta.ListForGroup(r.Context(), g.ID)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"list files", err)
		return
	}

	respondList(w, http.StatusOK, list, len(list))
}

// handleDownloadFile streams the file bytes.
//
// GET /api/v1/groups/{id}/files/{fileId}
func (h *Handler) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	meta, err := h.fileMeta.Get(r.Context(), chi.URLParam(r, "fileId"))
	if err != nil || meta.GroupID != g.ID {
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "file not found", nil)
		return
	}

	data, err := h.blobs.Get(g.StorageFolder, meta.ID)
	if err != nil {
		if errors.Is(err, files.ErrBlobNotFound) {
			respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "file not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"read file", err)
		return
	}

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+meta.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	//nolint:errcheck
	w.Write(data)
}
