package server

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// gzipMinSize skips compression for bodies too small to benefit.
const gzipMinSize = 1024

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	// Listing bodies are compressed. Media routes stay raw so byte ranges line up.
	gz := jsonCompressor()
	list := func(h http.HandlerFunc) http.Handler { return gz(h) }

	// Health check.
	mux.HandleFunc("GET /health", s.handleHealth)

	// Moments.
	mux.HandleFunc("POST /moments/create", s.handleCreateMoment)
	mux.HandleFunc("POST /moments/update", s.handleUpdateMoment)
	mux.HandleFunc("POST /moments/delete", s.handleDeleteMoment)
	mux.HandleFunc("POST /moments/deleteMany", s.handleDeleteManyMoments)
	mux.Handle("POST /moments/list", list(s.handleListMoments))
	// GET patterns also match HEAD.
	mux.HandleFunc("GET /moments/media/{bucket}/{id}", s.handleMomentMedia)

	// Videos.
	mux.HandleFunc("POST /videos/create", s.handleCreateVideo)
	mux.HandleFunc("POST /videos/update", s.handleUpdateVideo)
	mux.HandleFunc("POST /videos/delete", s.handleDeleteVideo)
	mux.HandleFunc("POST /videos/deleteMany", s.handleDeleteManyVideos)
	mux.Handle("POST /videos/list", list(s.handleListVideos))
	mux.HandleFunc("GET /videos/stream/{id}", s.handleStreamVideo)

	// Poems.
	mux.Handle("POST /poems/list", list(s.handleListPoems))
	mux.HandleFunc("POST /poems/create", s.handleCreatePoem)
	mux.HandleFunc("POST /poems/update", s.handleUpdatePoem)
	mux.HandleFunc("POST /poems/delete", s.handleDeletePoem)
	mux.HandleFunc("POST /poems/deleteMany", s.handleDeleteManyPoems)

	// Gallery.
	mux.Handle("POST /gallery/list", list(s.handleListGallery))
	mux.HandleFunc("POST /gallery/create", s.handleCreateGalleryImage)
	mux.HandleFunc("POST /gallery/update", s.handleUpdateGalleryImage)
	mux.HandleFunc("POST /gallery/delete", s.handleDeleteGalleryImage)
	mux.HandleFunc("POST /gallery/delete-many", s.handleDeleteManyGalleryImages)

	// Home cards.
	mux.Handle("POST /homecards/list", list(s.handleListHomeCards))
	mux.Handle("GET /homecards/list", list(s.handleListHomeCards))
	mux.HandleFunc("POST /homecards/create", s.handleCreateHomeCard)

	// Dashboard.
	mux.Handle("POST /counts/list", list(s.handleCounts))

	return mux
}

func jsonCompressor() func(http.Handler) http.HandlerFunc {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(gzipMinSize),
		gzhttp.ContentTypes([]string{"application/json"}),
	)
	if err != nil {
		panic(err)
	}
	return wrap
}
