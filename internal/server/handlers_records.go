package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"keepsake/internal/api"
	"keepsake/internal/blobstore"
	"keepsake/internal/models"
	"keepsake/internal/store"
)

// heroImageTitle names the gallery image the home page uses as its hero.
const heroImageTitle = "mj_smile"

func (s *Server) handleListPoems(w http.ResponseWriter, r *http.Request) {
	poems, err := s.stores.Poems.ListPoems(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PoemListResponse{Success: true, Message: "Poems fetched successfully", Data: poems})
}

func (s *Server) handleCreatePoem(w http.ResponseWriter, r *http.Request) {
	var req api.PoemCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	poem := models.Poem{Title: strings.TrimSpace(req.Title), Lines: normalizeLines(req.Lines)}
	if poem.Title == "" || len(poem.Lines) == 0 {
		s.writeServiceError(w, r, badRequestCode(fmt.Errorf("title and at least one line are required"), ErrCodeMissingRequired))
		return
	}
	if err := s.stores.Poems.CreatePoem(r.Context(), &poem); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.PoemResponse{Success: true, Message: "Poem created successfully", Data: poem})
}

func (s *Server) handleUpdatePoem(w http.ResponseWriter, r *http.Request) {
	var req api.PoemUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.ID)
	if err := requireID(id, validatePoemID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	update := store.PoemUpdate{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			s.writeServiceError(w, r, badRequestCode(fmt.Errorf("title must not be empty"), ErrCodeMissingRequired))
			return
		}
		update.Title = &title
	}
	if req.Lines != nil {
		lines := normalizeLines(*req.Lines)
		if len(lines) == 0 {
			s.writeServiceError(w, r, badRequestCode(fmt.Errorf("at least one line is required"), ErrCodeMissingRequired))
			return
		}
		update.Lines = &lines
	}

	poem, err := s.stores.Poems.UpdatePoem(r.Context(), id, update)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if poem == nil {
		s.writeServiceError(w, r, notFoundCode(fmt.Errorf("poem not found"), ErrCodePoemNotFound))
		return
	}
	s.writeJSON(w, http.StatusOK, api.PoemResponse{Success: true, Message: "Poem updated successfully", Data: *poem})
}

func (s *Server) handleDeletePoem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIDReq(w, r, validatePoemID)
	if !ok {
		return
	}
	deleted, err := s.stores.Poems.DeletePoems(r.Context(), []string{id})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if deleted == 0 {
		s.writeServiceError(w, r, notFoundCode(fmt.Errorf("poem not found"), ErrCodePoemNotFound))
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Success: true, Message: "Poem deleted successfully"})
}

func (s *Server) handleDeleteManyPoems(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.decodeIDsReq(w, r, validatePoemID)
	if !ok {
		return
	}
	deleted, err := s.stores.Poems.DeletePoems(r.Context(), uniqueIDs(ids))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Success: true, Message: "Poems deleted successfully", Count: &deleted})
}

func (s *Server) handleListGallery(w http.ResponseWriter, r *http.Request) {
	var req api.GalleryListRequest
	if !s.decodeOptionalJSONReq(w, r, &req) {
		return
	}
	limit, err := strconv.Atoi(strings.TrimSpace(req.Limit.Value))
	if err != nil || limit < 0 {
		limit = 0
	}

	images, err := s.stores.Gallery.ListGalleryImages(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.GalleryListResponse{Success: true, Count: len(images), Data: images})
}

func (s *Server) handleCreateGalleryImage(w http.ResponseWriter, r *http.Request) {
	var req api.GalleryCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	image := models.GalleryImage{
		Src:     strings.TrimSpace(req.Src),
		Title:   strings.TrimSpace(req.Title),
		Caption: strings.TrimSpace(req.Caption),
	}
	if image.Src == "" || image.Title == "" || image.Caption == "" {
		s.writeServiceError(w, r, badRequestCode(fmt.Errorf("src, title and caption are required"), ErrCodeMissingRequired))
		return
	}
	if err := s.stores.Gallery.CreateGalleryImage(r.Context(), &image); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.GalleryImageResponse{Success: true, Data: image})
}

func (s *Server) handleUpdateGalleryImage(w http.ResponseWriter, r *http.Request) {
	var req api.GalleryUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.ID)
	if err := requireID(id, validateGalleryID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	update := store.GalleryUpdate{
		Src:     trimmedOrNil(req.Src),
		Title:   trimmedOrNil(req.Title),
		Caption: trimmedOrNil(req.Caption),
	}
	image, err := s.stores.Gallery.UpdateGalleryImage(r.Context(), id, update)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if image == nil {
		s.writeServiceError(w, r, notFoundCode(fmt.Errorf("image not found"), ErrCodeGalleryImageNotFound))
		return
	}
	s.writeJSON(w, http.StatusOK, api.GalleryImageResponse{Success: true, Data: *image})
}

func (s *Server) handleDeleteGalleryImage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIDReq(w, r, validateGalleryID)
	if !ok {
		return
	}
	image, err := s.stores.Gallery.DeleteGalleryImage(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if image == nil {
		s.writeServiceError(w, r, notFoundCode(fmt.Errorf("image not found"), ErrCodeGalleryImageNotFound))
		return
	}
	s.writeJSON(w, http.StatusOK, api.GalleryImageResponse{Success: true, Message: "Image deleted", Data: *image})
}

func (s *Server) handleDeleteManyGalleryImages(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.decodeIDsReq(w, r, validateGalleryID)
	if !ok {
		return
	}
	deleted, err := s.stores.Gallery.DeleteGalleryImages(r.Context(), uniqueIDs(ids))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{
		Success: true,
		Message: fmt.Sprintf("%d images deleted", deleted),
		Count:   &deleted,
	})
}

func (s *Server) handleListHomeCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.stores.HomeCards.ListHomeCards(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if cards == nil {
		cards = []models.HomeCard{}
	}
	s.writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleCreateHomeCard(w http.ResponseWriter, r *http.Request) {
	var req api.HomeCardCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	card := models.HomeCard{
		Href:  strings.TrimSpace(req.Href),
		Title: strings.TrimSpace(req.Title),
		Desc:  strings.TrimSpace(req.Desc),
		Icon:  strings.TrimSpace(req.Icon),
	}
	if card.Href == "" || card.Title == "" || card.Desc == "" || card.Icon == "" {
		s.writeServiceError(w, r, badRequestCode(fmt.Errorf("href, title, desc and icon are required"), ErrCodeMissingRequired))
		return
	}
	if err := s.stores.HomeCards.CreateHomeCard(r.Context(), &card); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, card)
}

// handleCounts gathers the dashboard totals concurrently.
func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	var resp api.CountsResponse
	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() (err error) {
		resp.Poems, err = s.stores.Poems.CountPoems(ctx)
		return err
	})
	g.Go(func() (err error) {
		resp.Galleries, err = s.stores.Gallery.CountGalleryImages(ctx)
		return err
	})
	g.Go(func() (err error) {
		resp.Moments, err = s.stores.Moments.CountMoments(ctx, store.MomentFilter{})
		return err
	})
	g.Go(func() error {
		bucket, err := s.blobs.Bucket(models.BucketVideos)
		if err != nil {
			return err
		}
		_, resp.Videos, err = bucket.ListMetadata(ctx, blobstore.ListOptions{Limit: 1})
		return err
	})
	g.Go(func() error {
		hero, err := s.stores.Gallery.FindGalleryImageByTitle(ctx, heroImageTitle)
		if err != nil {
			return err
		}
		if hero != nil {
			resp.HeroImg = &hero.Src
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	resp.Success = true
	s.writeJSON(w, http.StatusOK, resp)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
