package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"sipstore/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type mockBannersStore struct {
	banners    map[uuid.UUID]*store.Banner
	failUpdate error
}

func newMockBannersStore() *mockBannersStore {
	return &mockBannersStore{banners: make(map[uuid.UUID]*store.Banner)}
}

func (m *mockBannersStore) Create(ctx context.Context, b *store.Banner) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	cp := *b
	m.banners[b.ID] = &cp
	return nil
}

func (m *mockBannersStore) GetByID(ctx context.Context, id uuid.UUID) (*store.Banner, error) {
	b, ok := m.banners[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBannersStore) List(ctx context.Context, bannerType, page string, limit int) ([]*store.Banner, error) {
	var list []*store.Banner
	for _, b := range m.banners {
		if !b.IsActive {
			continue
		}
		if bannerType != "" && b.BannerType != bannerType {
			continue
		}
		if page != "" && (b.Page == nil || *b.Page != page) {
			continue
		}
		cp := *b
		list = append(list, &cp)
		if limit > 0 && len(list) == limit {
			break
		}
	}
	return list, nil
}

func (m *mockBannersStore) Update(ctx context.Context, b *store.Banner) error {
	if m.failUpdate != nil {
		return m.failUpdate
	}
	if _, ok := m.banners[b.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *b
	m.banners[b.ID] = &cp
	return nil
}

func (m *mockBannersStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.banners[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.banners, id)
	return nil
}

func newBannerTestApp(t *testing.T) (*application, *mockBannersStore) {
	t.Helper()

	app, _ := newTestApp(t)
	mock := newMockBannersStore()
	app.store = store.Storage{Banners: mock}
	return app, mock
}

func bannerRoutes(app *application) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/banners", app.getBannersHandler)
	r.Post("/api/banners", app.createBannerHandler)
	r.Put("/api/banners/{bannerID}", app.updateBannerHandler)
	r.Delete("/api/banners/{bannerID}", app.deleteBannerHandler)
	return r
}

func TestUpdateBannerCleansUpFilesOnStoreFailure(t *testing.T) {
	app, mock := newBannerTestApp(t)

	b := &store.Banner{Title: "Hero", Image: "uploads/hero.png", BannerType: "home_slider", IsActive: true}
	if err := mock.Create(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	mock.failUpdate = errors.New("connection reset")

	req := multipartFileRequest(t, http.MethodPut, "/api/banners/"+b.ID.String(),
		nil, "image", "new.png", pngBytes)
	rec := httptest.NewRecorder()
	bannerRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500", rec.Code)
	}

	entries, err := os.ReadDir(app.uploads.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed update left %d files in the upload dir", len(entries))
	}

	stored, err := mock.GetByID(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Image != "uploads/hero.png" {
		t.Errorf("stored image = %q, want untouched", stored.Image)
	}
}
