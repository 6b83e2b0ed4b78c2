package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"keepsake/internal/api"
	"keepsake/internal/models"
	"keepsake/internal/store"
)

func createImageMoment(t *testing.T, env *testEnv, title string, content []byte) api.Moment {
	t.Helper()
	req := multipartRequest(t, "/moments/create", map[string]string{
		"type":  "image",
		"title": title,
		"date":  "2024-05-01",
		"tags":  `["trip","sea"]`,
		"meta":  `{"camera":"x100"}`,
	}, &filePart{field: "file", filename: "shot.png", contentType: "image/png", content: content})
	w := env.serve(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	return decodeJSONBody[api.MomentResponse](t, w).Data
}

func countMoments(t *testing.T, env *testEnv) int {
	t.Helper()
	n, err := env.store.CountMoments(context.Background(), store.MomentFilter{})
	if err != nil {
		t.Fatalf("count moments: %v", err)
	}
	return n
}

func TestCreateImageMomentRoundTrip(t *testing.T) {
	env := newTestServer(t)
	content := testPayload(70)

	created := createImageMoment(t, env, "Beach", content)
	if created.Media == nil {
		t.Fatal("expected media reference")
	}
	if created.Body != nil {
		t.Fatalf("media moment must not expose a body, got %q", *created.Body)
	}
	if created.Media.Bucket != models.BucketImages || created.Media.Length != int64(len(content)) {
		t.Fatalf("unexpected media reference: %+v", created.Media)
	}
	wantURL := "/moments/media/images/" + created.Media.ObjectID
	if created.MediaURL != wantURL {
		t.Fatalf("expected media url %q, got %q", wantURL, created.MediaURL)
	}
	if created.MediaURLAbsolute != "http://example.com"+wantURL {
		t.Fatalf("unexpected absolute url %q", created.MediaURLAbsolute)
	}
	if len(created.Tags) != 2 || created.Meta["camera"] != "x100" {
		t.Fatalf("unexpected tags/meta: %v %v", created.Tags, created.Meta)
	}

	w := env.serve(streamRequest(created.MediaURL, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from media url, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), content) {
		t.Fatal("media bytes differ from upload")
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestCreateMomentDerivesTypeFromFile(t *testing.T) {
	env := newTestServer(t)
	req := multipartRequest(t, "/moments/create", map[string]string{
		"title": "Clip",
		"date":  "2024-05-01T10:00:00Z",
	}, &filePart{field: "file", filename: "clip.webm", contentType: "video/webm", content: testPayload(20)})
	w := env.serve(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	created := decodeJSONBody[api.MomentResponse](t, w).Data
	if created.Type != "video" || created.Media == nil || created.Media.Bucket != models.BucketMomentVideo {
		t.Fatalf("expected video in mVideos, got %+v", created)
	}
}

func TestCreateTextMomentIgnoresFile(t *testing.T) {
	env := newTestServer(t)
	req := multipartRequest(t, "/moments/create", map[string]string{
		"type":  "poem",
		"title": "Rain",
		"date":  "2024-05-01",
		"body":  "drops on glass",
	}, &filePart{field: "file", filename: "stray.png", contentType: "image/png", content: testPayload(32)})
	w := env.serve(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	created := decodeJSONBody[api.MomentResponse](t, w).Data
	if created.Media != nil || created.MediaURL != "" {
		t.Fatalf("poem must not carry media, got %+v", created.Media)
	}
	if created.Body == nil || *created.Body != "drops on glass" {
		t.Fatalf("unexpected body: %v", created.Body)
	}

	_, total, err := env.bucket(models.BucketImages).ListMetadata(context.Background(), blobstoreAll())
	if err != nil {
		t.Fatalf("list images: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no blob side effects, found %d objects", total)
	}
}

func TestCreateTextMomentFromJSON(t *testing.T) {
	env := newTestServer(t)
	w := env.postJSON(t, "/moments/create", map[string]any{
		"type":  "note",
		"title": "Todo",
		"date":  "2024-06-01",
		"body":  "buy film",
		"tags":  []string{"errand", "errand", " "},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	created := decodeJSONBody[api.MomentResponse](t, w).Data
	if len(created.Tags) != 1 || created.Tags[0] != "errand" {
		t.Fatalf("expected de-duplicated tags, got %v", created.Tags)
	}
}

func TestCreateMediaMomentValidation(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		name     string
		fields   map[string]string
		file     *filePart
		wantCode int
	}{
		{
			name:     "image without file",
			fields:   map[string]string{"type": "image", "title": "Missing", "date": "2024-01-01"},
			wantCode: ErrCodeMissingRequired,
		},
		{
			name:     "unsupported content type",
			fields:   map[string]string{"type": "image", "title": "Doc", "date": "2024-01-01"},
			file:     &filePart{field: "file", filename: "doc.pdf", contentType: "application/pdf", content: testPayload(8)},
			wantCode: ErrCodeUnsupportedMediaType,
		},
		{
			name:     "type mismatch",
			fields:   map[string]string{"type": "image", "title": "Clip", "date": "2024-01-01"},
			file:     &filePart{field: "file", filename: "clip.mp4", contentType: "video/mp4", content: testPayload(8)},
			wantCode: ErrCodeInvalidType,
		},
		{
			name:     "unknown type",
			fields:   map[string]string{"type": "sculpture", "title": "Bust", "date": "2024-01-01"},
			wantCode: ErrCodeInvalidType,
		},
		{
			name:     "missing title",
			fields:   map[string]string{"type": "note", "date": "2024-01-01"},
			wantCode: ErrCodeMissingRequired,
		},
		{
			name:     "missing date",
			fields:   map[string]string{"type": "note", "title": "Undated"},
			wantCode: ErrCodeMissingRequired,
		},
		{
			name:     "bad date",
			fields:   map[string]string{"type": "note", "title": "Bad", "date": "yesterday"},
			wantCode: ErrCodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.serve(multipartRequest(t, "/moments/create", tt.fields, tt.file))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
			}
			errResp := decodeJSONBody[api.ErrorResponse](t, w)
			if errResp.ErrorCode != tt.wantCode {
				t.Fatalf("expected error_code %d, got %d (%s)", tt.wantCode, errResp.ErrorCode, errResp.Message)
			}
			if errResp.Success {
				t.Fatal("expected success=false")
			}
		})
	}

	if n := countMoments(t, env); n != 0 {
		t.Fatalf("expected no persisted moments, got %d", n)
	}
	for _, bucket := range []string{models.BucketImages, models.BucketMomentVideo} {
		if _, total, _ := env.bucket(bucket).ListMetadata(context.Background(), blobstoreAll()); total != 0 {
			t.Fatalf("expected no orphan blobs in %s, found %d", bucket, total)
		}
	}
}

func TestUpdateMomentSwapsMedia(t *testing.T) {
	env := newTestServer(t)
	created := createImageMoment(t, env, "Before", testPayload(40))
	oldID := created.Media.ObjectID

	replacement := bytes.Repeat([]byte("z"), 33)
	req := multipartRequest(t, "/moments/update", map[string]string{"id": created.ID, "title": "After"},
		&filePart{field: "file", filename: "new.png", contentType: "image/png", content: replacement})
	w := env.serve(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	updated := decodeJSONBody[api.MomentResponse](t, w).Data
	if updated.Title != "After" || updated.Media == nil || updated.Media.ObjectID == oldID {
		t.Fatalf("expected a new media reference, got %+v", updated)
	}

	info, err := env.bucket(models.BucketImages).FindMetadata(context.Background(), oldID)
	if err != nil {
		t.Fatalf("find old: %v", err)
	}
	if info != nil {
		t.Fatal("expected old blob to be removed")
	}

	stream := env.serve(streamRequest(updated.MediaURL, nil))
	if !bytes.Equal(stream.Body.Bytes(), replacement) {
		t.Fatalf("expected replacement bytes, got %q", stream.Body.String())
	}
}

func TestUpdateMomentSucceedsWhenOldBlobDeleteFails(t *testing.T) {
	env := newTestServer(t)
	created := createImageMoment(t, env, "Before", testPayload(40))
	oldID := created.Media.ObjectID
	env.blobs.failDelete(oldID)

	req := multipartRequest(t, "/moments/update", map[string]string{"id": created.ID},
		&filePart{field: "file", filename: "new.png", contentType: "image/png", content: testPayload(12)})
	w := env.serve(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 despite cleanup failure, got %d (%s)", w.Code, w.Body.String())
	}
	updated := decodeJSONBody[api.MomentResponse](t, w).Data
	if updated.Media == nil || updated.Media.ObjectID == oldID {
		t.Fatalf("expected new reference, got %+v", updated.Media)
	}
	if !env.blobs.deleted(oldID) {
		t.Fatal("expected a delete attempt on the old blob")
	}

	stored, err := env.store.GetMoment(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get moment: %v", err)
	}
	if stored.Media().ObjectID != updated.Media.ObjectID {
		t.Fatalf("record should point at the new blob, got %s", stored.Media().ObjectID)
	}
}

func TestUpdateMomentMediaToText(t *testing.T) {
	env := newTestServer(t)
	created := createImageMoment(t, env, "Photo", testPayload(20))

	w := env.postJSON(t, "/moments/update", map[string]any{"id": created.ID, "type": "note", "body": "now words"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	updated := decodeJSONBody[api.MomentResponse](t, w).Data
	if updated.Media != nil || updated.Body == nil || *updated.Body != "now words" {
		t.Fatalf("expected text moment, got %+v", updated)
	}
	if !env.blobs.deleted(created.Media.ObjectID) {
		t.Fatal("expected the orphaned blob to be deleted")
	}
}

func TestUpdateMomentTextToMediaNeedsFile(t *testing.T) {
	env := newTestServer(t)
	w := env.postJSON(t, "/moments/create", map[string]any{"type": "note", "title": "n", "date": "2024-01-01", "body": "b"})
	created := decodeJSONBody[api.MomentResponse](t, w).Data

	w = env.postJSON(t, "/moments/update", map[string]any{"id": created.ID, "type": "image"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}

	req := multipartRequest(t, "/moments/update", map[string]string{"id": created.ID},
		&filePart{field: "file", filename: "p.png", contentType: "image/png", content: testPayload(5)})
	w = env.serve(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	updated := decodeJSONBody[api.MomentResponse](t, w).Data
	if updated.Type != "image" || updated.Media == nil || updated.Body != nil {
		t.Fatalf("expected image moment without body, got %+v", updated)
	}
}

func TestUpdateMomentMergesMeta(t *testing.T) {
	env := newTestServer(t)
	created := createImageMoment(t, env, "Meta", testPayload(4))

	w := env.postJSON(t, "/moments/update", map[string]any{"id": created.ID, "meta": map[string]any{"lens": "23mm"}, "tags": []string{"solo"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	updated := decodeJSONBody[api.MomentResponse](t, w).Data
	if updated.Meta["camera"] != "x100" || updated.Meta["lens"] != "23mm" {
		t.Fatalf("expected merged meta, got %v", updated.Meta)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "solo" {
		t.Fatalf("expected replaced tags, got %v", updated.Tags)
	}
	if updated.Media == nil || updated.Media.ObjectID != created.Media.ObjectID {
		t.Fatal("media should be untouched without a file")
	}
}

func TestUpdateMomentNotFound(t *testing.T) {
	env := newTestServer(t)
	w := env.postJSON(t, "/moments/update", map[string]any{"id": "mo-zzzzzz", "title": "x"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w = env.postJSON(t, "/moments/update", map[string]any{"id": "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}
}

func TestDeleteMomentRemovesBlob(t *testing.T) {
	env := newTestServer(t)
	created := createImageMoment(t, env, "Gone", testPayload(20))

	w := env.postJSON(t, "/moments/delete", map[string]any{"id": created.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if countMoments(t, env) != 0 {
		t.Fatal("expected moment to be deleted")
	}
	if w := env.serve(streamRequest(created.MediaURL, nil)); w.Code != http.StatusNotFound {
		t.Fatalf("expected media 404 after delete, got %d", w.Code)
	}

	w = env.postJSON(t, "/moments/delete", map[string]any{"id": created.ID})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestDeleteMomentToleratesCleanupFailure(t *testing.T) {
	env := newTestServer(t)
	created := createImageMoment(t, env, "Stuck", testPayload(20))
	env.blobs.failDelete(created.Media.ObjectID)

	w := env.postJSON(t, "/moments/delete", map[string]any{"id": created.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	resp := decodeJSONBody[api.MessageResponse](t, w)
	if resp.CleanupFailures != 1 {
		t.Fatalf("expected one cleanup failure, got %d", resp.CleanupFailures)
	}
	if countMoments(t, env) != 0 {
		t.Fatal("parent record must be deleted")
	}
}

func TestDeleteManyMomentsPartialCleanup(t *testing.T) {
	env := newTestServer(t)
	ids := make([]string, 0, 3)
	for i := range 3 {
		created := createImageMoment(t, env, fmt.Sprintf("m%d", i), testPayload(10+i))
		ids = append(ids, created.ID)
		if i == 1 {
			env.blobs.failDelete(created.Media.ObjectID)
		}
	}

	w := env.postJSON(t, "/moments/deleteMany", map[string]any{"ids": ids})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	resp := decodeJSONBody[api.MessageResponse](t, w)
	if resp.Count == nil || *resp.Count != 3 {
		t.Fatalf("expected 3 deleted, got %v", resp.Count)
	}
	if resp.CleanupFailures != 1 {
		t.Fatalf("expected one cleanup failure, got %d", resp.CleanupFailures)
	}
	if countMoments(t, env) != 0 {
		t.Fatal("expected every parent record to be deleted")
	}
	_, total, err := env.bucket(models.BucketImages).ListMetadata(context.Background(), blobstoreAll())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected only the failing blob to remain, found %d", total)
	}
}

func TestDeleteManyMomentsValidation(t *testing.T) {
	env := newTestServer(t)
	w := env.postJSON(t, "/moments/deleteMany", map[string]any{"ids": []string{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", w.Code)
	}
	w = env.postJSON(t, "/moments/deleteMany", map[string]any{"ids": []string{"mo-aaaaaa", "nope"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}
}

func seedNotes(t *testing.T, env *testEnv, n int) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		moment := &models.Moment{
			Type:    models.MomentNote,
			Title:   fmt.Sprintf("note %02d", i),
			Date:    base.AddDate(0, 0, i),
			Payload: models.TextBody{Text: "body"},
		}
		if err := env.store.CreateMoment(context.Background(), moment); err != nil {
			t.Fatalf("seed moment: %v", err)
		}
	}
}

func TestListMomentsPagination(t *testing.T) {
	env := newTestServer(t)
	seedNotes(t, env, 15)

	tests := []struct {
		name         string
		body         map[string]any
		wantPage     int
		wantPageSize int
		wantHasNext  bool
	}{
		{"absent limit is unpaginated", map[string]any{"page": 3}, 1, 15, false},
		{"all is unpaginated", map[string]any{"page": 2, "limit": "all"}, 1, 15, false},
		{"empty string is unpaginated", map[string]any{"limit": ""}, 1, 15, false},
		{"zero falls back to default", map[string]any{"limit": 0}, 1, defaultPageSize, true},
		{"negative falls back to default", map[string]any{"limit": -4}, 1, defaultPageSize, true},
		{"garbage falls back to default", map[string]any{"limit": "many"}, 1, defaultPageSize, true},
		{"second page", map[string]any{"page": 2, "limit": 10}, 2, 5, false},
		{"cap", map[string]any{"limit": 1000}, 1, 15, false},
		{"numeric string", map[string]any{"page": "1", "limit": "5"}, 1, 5, true},
		{"page below one", map[string]any{"page": 0, "limit": 5}, 1, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postJSON(t, "/moments/list", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
			}
			resp := decodeJSONBody[api.MomentListResponse](t, w)
			if resp.Page != tt.wantPage || resp.PageSize != tt.wantPageSize || resp.HasNext != tt.wantHasNext || resp.Total != 15 {
				t.Fatalf("got page=%d pageSize=%d hasNext=%v total=%d", resp.Page, resp.PageSize, resp.HasNext, resp.Total)
			}
			if len(resp.Data) != resp.PageSize {
				t.Fatalf("pageSize %d does not match %d items", resp.PageSize, len(resp.Data))
			}
		})
	}
}

func TestListMomentsFiltersAndSort(t *testing.T) {
	env := newTestServer(t)
	seedNotes(t, env, 5)
	createImageMoment(t, env, "Photo", testPayload(3))

	w := env.postJSON(t, "/moments/list", map[string]any{"type": "note", "sort": "asc"})
	resp := decodeJSONBody[api.MomentListResponse](t, w)
	if resp.Total != 5 || resp.Data[0].Title != "note 00" {
		t.Fatalf("expected ascending notes, got total=%d first=%q", resp.Total, resp.Data[0].Title)
	}
	for _, m := range resp.Data {
		if m.Body == nil {
			t.Fatalf("text moment %s should carry its body", m.ID)
		}
	}

	w = env.postJSON(t, "/moments/list", map[string]any{"type": "note"})
	resp = decodeJSONBody[api.MomentListResponse](t, w)
	if resp.Data[0].Title != "note 04" {
		t.Fatalf("expected newest first by default, got %q", resp.Data[0].Title)
	}

	w = env.postJSON(t, "/moments/list", map[string]any{"type": "note", "from": "2024-01-02", "to": "2024-01-04"})
	resp = decodeJSONBody[api.MomentListResponse](t, w)
	if resp.Total != 3 {
		t.Fatalf("expected 3 moments in window, got %d", resp.Total)
	}

	w = env.postJSON(t, "/moments/list", map[string]any{"type": "image"})
	resp = decodeJSONBody[api.MomentListResponse](t, w)
	if resp.Total != 1 || resp.Data[0].MediaURL == "" || resp.Data[0].Body != nil {
		t.Fatalf("expected one image with a media url, got %+v", resp.Data)
	}

	w = env.postJSON(t, "/moments/list", map[string]any{"from": "not a date"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", w.Code)
	}
}

func TestListMomentsEmptyBody(t *testing.T) {
	env := newTestServer(t)
	w := env.serve(httptest.NewRequest(http.MethodPost, "/moments/list", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestAbsoluteMediaURL(t *testing.T) {
	env := newTestEnv(t, Options{PublicBaseURL: "https://media.example.org/"})
	created := createImageMoment(t, env, "Public", testPayload(3))
	if created.MediaURLAbsolute != "https://media.example.org"+created.MediaURL {
		t.Fatalf("unexpected absolute url %q", created.MediaURLAbsolute)
	}

	env = newTestServer(t)
	req := multipartRequest(t, "/moments/create", map[string]string{"type": "image", "title": "p", "date": "2024-01-01"},
		&filePart{field: "file", filename: "p.png", contentType: "image/png", content: testPayload(3)})
	req.Header.Set("X-Forwarded-Proto", "https")
	w := env.serve(req)
	fwd := decodeJSONBody[api.MomentResponse](t, w).Data
	if fwd.MediaURLAbsolute != "https://example.com"+fwd.MediaURL {
		t.Fatalf("expected forwarded scheme, got %q", fwd.MediaURLAbsolute)
	}
}

func TestCreateMomentGuessesTypeFromFilename(t *testing.T) {
	env := newTestServer(t)
	req := multipartRequest(t, "/moments/create", map[string]string{
		"type":  "image",
		"title": "Beach",
		"date":  "2024-05-01",
	}, &filePart{field: "file", filename: "beach.jpg", contentType: "application/octet-stream", content: testPayload(9)})
	w := env.serve(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	created := decodeJSONBody[api.MomentResponse](t, w).Data
	if created.Media == nil || created.Media.Bucket != models.BucketImages || created.Media.ContentType != "image/jpeg" {
		t.Fatalf("unexpected media reference: %+v", created.Media)
	}
}

func TestListMomentsFarPageIsEmpty(t *testing.T) {
	env := newTestServer(t)
	seedNotes(t, env, 3)

	w := env.postJSON(t, "/moments/list", map[string]any{"page": "922337203685477580", "limit": 100})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	resp := decodeJSONBody[api.MomentListResponse](t, w)
	if resp.Total != 3 || resp.PageSize != 0 || len(resp.Data) != 0 || resp.HasNext {
		t.Fatalf("expected an empty final page, got %+v", resp)
	}
}
