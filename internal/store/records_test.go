package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"keepsake/internal/models"
)

func TestPoemCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	poem := &models.Poem{Title: "Rain", Lines: []string{"one", "two"}}
	if err := st.CreatePoem(ctx, poem); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(poem.ID, "po-") {
		t.Fatalf("expected po- id, got %q", poem.ID)
	}

	title := "Storm"
	updated, err := st.UpdatePoem(ctx, poem.ID, PoemUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Storm" || len(updated.Lines) != 2 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	missing, err := st.UpdatePoem(ctx, "po-none00", PoemUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing poem")
	}

	poems, err := st.ListPoems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(poems) != 1 || poems[0].Title != "Storm" {
		t.Fatalf("unexpected list: %+v", poems)
	}

	n, err := st.DeletePoems(ctx, []string{poem.ID, "po-none00"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if count, _ := st.CountPoems(ctx); count != 0 {
		t.Fatalf("expected 0 poems, got %d", count)
	}
}

func TestGalleryCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	first := &models.GalleryImage{Src: "/a.png", Title: "mj_smile", Caption: "hi", CreatedAt: time.Now().Add(-time.Hour)}
	second := &models.GalleryImage{Src: "/b.png", Title: "other"}
	for _, img := range []*models.GalleryImage{first, second} {
		if err := st.CreateGalleryImage(ctx, img); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	limited, err := st.ListGalleryImages(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != second.ID {
		t.Fatalf("expected newest image first, got %+v", limited)
	}

	hero, err := st.FindGalleryImageByTitle(ctx, "mj_smile")
	if err != nil {
		t.Fatalf("find by title: %v", err)
	}
	if hero == nil || hero.Src != "/a.png" {
		t.Fatalf("unexpected hero: %+v", hero)
	}

	caption := "updated"
	updated, err := st.UpdateGalleryImage(ctx, first.ID, GalleryUpdate{Caption: &caption})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Caption != "updated" || updated.Src != "/a.png" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	deleted, err := st.DeleteGalleryImage(ctx, first.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted == nil || deleted.ID != first.ID {
		t.Fatalf("expected deleted image, got %+v", deleted)
	}
	again, err := st.DeleteGalleryImage(ctx, first.ID)
	if err != nil {
		t.Fatalf("delete again: %v", err)
	}
	if again != nil {
		t.Fatal("expected nil on second delete")
	}

	n, err := st.DeleteGalleryImages(ctx, []string{second.ID})
	if err != nil {
		t.Fatalf("delete many: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
}

func TestHomeCards(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	card := &models.HomeCard{Href: "/poems", Title: "Poems", Desc: "words", Icon: "feather"}
	if err := st.CreateHomeCard(ctx, card); err != nil {
		t.Fatalf("create: %v", err)
	}
	cards, err := st.ListHomeCards(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cards) != 1 || cards[0].Desc != "words" || !strings.HasPrefix(cards[0].ID, "hc-") {
		t.Fatalf("unexpected cards: %+v", cards)
	}
}

func TestLegacyVideosPaging(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	created := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"v1", "v2", "v3"} {
		video := models.LegacyVideo{ID: id, Filename: id + ".mp4", Data: []byte(id), CreatedAt: &created}
		if err := st.InsertLegacyVideo(ctx, video); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	page, err := st.LegacyVideosAfter(ctx, "", 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page) != 2 || page[0].ID != "v1" || page[1].ID != "v2" {
		t.Fatalf("unexpected page 1: %+v", page)
	}
	if page[0].CreatedAt == nil || !page[0].CreatedAt.Equal(created) {
		t.Fatalf("expected created_at to round-trip, got %v", page[0].CreatedAt)
	}
	if page[0].UpdatedAt != nil {
		t.Fatal("expected nil updated_at")
	}

	page, err = st.LegacyVideosAfter(ctx, "v2", 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page) != 1 || string(page[0].Data) != "v3" {
		t.Fatalf("unexpected page 2: %+v", page)
	}

	count, err := st.CountLegacyVideos(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}
