package server

import (
	"net/http"
	"testing"

	"keepsake/internal/api"
	"keepsake/internal/models"
)

func TestPoemLifecycle(t *testing.T) {
	env := newTestServer(t)

	w := env.postJSON(t, "/poems/create", map[string]any{"title": "  Dawn ", "lines": []string{" first ", "", "second"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	poem := decodeJSONBody[api.PoemResponse](t, w).Data
	if poem.Title != "Dawn" || len(poem.Lines) != 2 || poem.Lines[0] != "first" {
		t.Fatalf("unexpected poem: %+v", poem)
	}

	w = env.postJSON(t, "/poems/create", map[string]any{"title": "Empty", "lines": []string{" "}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for no lines, got %d", w.Code)
	}

	w = env.postJSON(t, "/poems/update", map[string]any{"id": poem.ID, "title": "Dusk"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	updated := decodeJSONBody[api.PoemResponse](t, w).Data
	if updated.Title != "Dusk" || len(updated.Lines) != 2 {
		t.Fatalf("unexpected update: %+v", updated)
	}

	w = env.postJSON(t, "/poems/update", map[string]any{"id": "po-zzzzzz", "title": "x"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = env.postJSON(t, "/poems/list", nil)
	list := decodeJSONBody[api.PoemListResponse](t, w)
	if len(list.Data) != 1 {
		t.Fatalf("expected 1 poem, got %d", len(list.Data))
	}

	w = env.postJSON(t, "/poems/delete", map[string]any{"id": poem.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = env.postJSON(t, "/poems/delete", map[string]any{"id": poem.ID})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPoemDeleteMany(t *testing.T) {
	env := newTestServer(t)
	ids := []string{}
	for _, title := range []string{"a", "b"} {
		w := env.postJSON(t, "/poems/create", map[string]any{"title": title, "lines": []string{"l"}})
		ids = append(ids, decodeJSONBody[api.PoemResponse](t, w).Data.ID)
	}
	ids = append(ids, "po-zzzzzz")

	w := env.postJSON(t, "/poems/deleteMany", map[string]any{"ids": ids})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if count := decodeJSONBody[api.MessageResponse](t, w).Count; count == nil || *count != 2 {
		t.Fatalf("expected 2 deleted, got %v", count)
	}
}

func TestGalleryLifecycle(t *testing.T) {
	env := newTestServer(t)

	var ids []string
	for _, title := range []string{"mj_smile", "sunset", "forest"} {
		w := env.postJSON(t, "/gallery/create", map[string]any{"src": "https://img/" + title, "title": title, "caption": "c"})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
		}
		ids = append(ids, decodeJSONBody[api.GalleryImageResponse](t, w).Data.ID)
	}

	w := env.postJSON(t, "/gallery/create", map[string]any{"src": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", w.Code)
	}

	w = env.postJSON(t, "/gallery/list", map[string]any{"limit": 2})
	list := decodeJSONBody[api.GalleryListResponse](t, w)
	if list.Count != 2 || len(list.Data) != 2 {
		t.Fatalf("expected limited list, got %d", list.Count)
	}
	w = env.postJSON(t, "/gallery/list", nil)
	if list = decodeJSONBody[api.GalleryListResponse](t, w); list.Count != 3 {
		t.Fatalf("expected full list, got %d", list.Count)
	}

	w = env.postJSON(t, "/gallery/update", map[string]any{"id": ids[1], "caption": "golden"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if img := decodeJSONBody[api.GalleryImageResponse](t, w).Data; img.Caption != "golden" || img.Title != "sunset" {
		t.Fatalf("unexpected update: %+v", img)
	}

	w = env.postJSON(t, "/gallery/delete", map[string]any{"id": ids[1]})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if deleted := decodeJSONBody[api.GalleryImageResponse](t, w).Data; deleted.ID != ids[1] {
		t.Fatalf("expected deleted image in response, got %+v", deleted)
	}
	w = env.postJSON(t, "/gallery/delete", map[string]any{"id": ids[1]})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = env.postJSON(t, "/gallery/delete-many", map[string]any{"ids": []string{ids[2]}})
	if count := decodeJSONBody[api.MessageResponse](t, w).Count; count == nil || *count != 1 {
		t.Fatalf("expected 1 deleted, got %v", count)
	}
}

func TestHomeCards(t *testing.T) {
	env := newTestServer(t)

	w := env.postJSON(t, "/homecards/create", map[string]any{"href": "/poems", "title": "Poems", "desc": "words", "icon": "feather"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	w = env.postJSON(t, "/homecards/create", map[string]any{"href": "/x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = env.serve(streamRequest("/homecards/list", nil))
	cards := decodeJSONBody[[]models.HomeCard](t, w)
	if len(cards) != 1 || cards[0].Icon != "feather" {
		t.Fatalf("unexpected cards: %+v", cards)
	}
}

func TestCounts(t *testing.T) {
	env := newTestServer(t)

	w := env.postJSON(t, "/counts/list", nil)
	counts := decodeJSONBody[api.CountsResponse](t, w)
	if counts.HeroImg != nil || counts.Poems != 0 || counts.Videos != 0 {
		t.Fatalf("unexpected empty counts: %+v", counts)
	}

	env.postJSON(t, "/poems/create", map[string]any{"title": "p", "lines": []string{"l"}})
	env.postJSON(t, "/gallery/create", map[string]any{"src": "https://img/hero.png", "title": heroImageTitle, "caption": "c"})
	env.postJSON(t, "/moments/create", map[string]any{"type": "note", "title": "n", "date": "2024-01-01"})
	createVideo(t, env, "v.mp4", testPayload(3))
	createVideo(t, env, "w.mp4", testPayload(3))

	w = env.postJSON(t, "/counts/list", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	counts = decodeJSONBody[api.CountsResponse](t, w)
	if counts.Poems != 1 || counts.Galleries != 1 || counts.Moments != 1 || counts.Videos != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if counts.HeroImg == nil || *counts.HeroImg != "https://img/hero.png" {
		t.Fatalf("unexpected hero image: %v", counts.HeroImg)
	}
}
