package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/bookstore/services/items/internal/events"
	"github.com/bookstore/services/items/internal/model"
	"github.com/bookstore/services/items/internal/repo"
)

const (
	detailIDNotFound   = "Item ID not found."
	detailNameNotFound = "Item name not found."
	detailIDExists     = "Item ID already exists."
	detailInternal     = "internal error"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.log.Info("Home endpoint accessed")
	respondJSON(w, http.StatusOK, map[string]string{"Data": "Testing"})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"Data": "About"})
}

func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.List(r.Context())
	if err != nil {
		s.respondStoreError(w, r, err, detailIDNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]map[int]model.Item{"Data": items})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "item_id", 1)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	item, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err, detailIDNotFound)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleGetItemWithMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "item_id", minUnbounded)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	message := r.PathValue("message")

	item, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err, detailIDNotFound)
		return
	}

	respondJSON(w, http.StatusOK, fmt.Sprintf("input id= %d, name= %s, price= %s, brand= %s, message=%s",
		id, item.Name, model.FormatPrice(item.Price), item.BrandOrNone(), message))
}

func (s *Server) handleGetItemByName(w http.ResponseWriter, r *http.Request) {
	s.findByName(w, r)
}

func (s *Server) handleGetByNameWithMessage(w http.ResponseWriter, r *http.Request) {
	s.log.Info("Name lookup message", zap.String("message", r.PathValue("message")))
	s.findByName(w, r)
}

func (s *Server) findByName(w http.ResponseWriter, r *http.Request) {
	addQuery, err := queryInt(r, "add_query")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.log.Info("Additional query", zap.Int("add_query", addQuery))

	var name *string
	if query := r.URL.Query(); query.Has("item_name") {
		value := query.Get("item_name")
		name = &value
	}

	_, item, err := s.store.FindByName(r.Context(), name)
	if err != nil {
		s.respondStoreError(w, r, err, detailNameNotFound)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "item_id", 1)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var input model.ItemInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	item, err := input.Item()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	stored, err := s.store.Create(r.Context(), id, item)
	if err != nil {
		if errors.Is(err, repo.ErrItemAlreadyExists) {
			s.observeMutation("create", "conflict")
			respondError(w, http.StatusBadRequest, detailIDExists)
			return
		}
		s.observeMutation("create", "error")
		s.respondStoreError(w, r, err, detailIDNotFound)
		return
	}
	s.observeMutation("create", "ok")

	s.publishAsync(r, events.EventTypeItemCreated, id, func(ctx context.Context) error {
		return s.publisher.PublishItemCreated(ctx, id, stored)
	})

	respondJSON(w, http.StatusOK, stored)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "item_id", minUnbounded)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var patch model.UpdateItem
	if err := decodeBody(r, &patch); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := patch.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updated, changed, err := s.store.Update(r.Context(), id, patch)
	if err != nil {
		s.observeMutation("update", outcome(err))
		s.respondStoreError(w, r, err, detailIDNotFound)
		return
	}
	s.observeMutation("update", "ok")

	if len(changed) > 0 {
		s.publishAsync(r, events.EventTypeItemUpdated, id, func(ctx context.Context) error {
			return s.publisher.PublishItemUpdated(ctx, id, changed, updated)
		})
	}

	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt(r, "item_id")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	deleted, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.observeMutation("delete", outcome(err))
		s.respondStoreError(w, r, err, detailIDNotFound)
		return
	}
	s.observeMutation("delete", "ok")

	s.publishAsync(r, events.EventTypeItemDeleted, id, func(ctx context.Context) error {
		return s.publisher.PublishItemDeleted(ctx, id, deleted)
	})

	respondJSON(w, http.StatusOK, map[string]string{"Success": deleted.String() + " deleted."})
}

// respondStoreError maps store errors onto status codes; notFound is the detail used for misses
func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, repo.ErrItemNotFound):
		respondError(w, http.StatusNotFound, notFound)
	case errors.Is(err, repo.ErrItemAlreadyExists):
		respondError(w, http.StatusBadRequest, detailIDExists)
	default:
		s.log.Error("Store operation failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, detailInternal)
	}
}

func outcome(err error) string {
	if errors.Is(err, repo.ErrItemNotFound) {
		return "not_found"
	}
	return "error"
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}
