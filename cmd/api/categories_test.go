package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sipstore/internal/store"
	"sipstore/internal/uploads"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type mockCategoriesStore struct {
	categories map[uuid.UUID]*store.Category
}

func newMockCategoriesStore() *mockCategoriesStore {
	return &mockCategoriesStore{categories: make(map[uuid.UUID]*store.Category)}
}

func (m *mockCategoriesStore) Create(ctx context.Context, c *store.Category) error {
	for _, other := range m.categories {
		if other.Name == c.Name {
			return store.ErrConflict
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *mockCategoriesStore) GetByID(ctx context.Context, id uuid.UUID) (*store.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCategoriesStore) List(ctx context.Context, selectedPage string) ([]*store.Category, error) {
	var list []*store.Category
	for _, c := range m.categories {
		if selectedPage != "" {
			found := false
			for _, page := range c.SelectedPages {
				if page == selectedPage {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		cp := *c
		list = append(list, &cp)
	}
	return list, nil
}

func (m *mockCategoriesStore) Update(ctx context.Context, c *store.Category) error {
	if _, ok := m.categories[c.ID]; !ok {
		return store.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *mockCategoriesStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *mockCategoriesStore) NameExists(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	for id, c := range m.categories {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCategoriesStore) ProductPages(ctx context.Context) ([]store.ProductPage, error) {
	var pages []store.ProductPage
	for _, c := range m.categories {
		pages = append(pages, c.ProductPages...)
	}
	return pages, nil
}

func newCategoryTestApp(t *testing.T) (*application, *mockCategoriesStore) {
	t.Helper()

	app, _ := newTestApp(t)
	mock := newMockCategoriesStore()
	app.store = store.Storage{Categories: mock}
	return app, mock
}

func categoryRoutes(app *application) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/categories", app.getCategoriesHandler)
	r.Post("/api/categories", app.createCategoryHandler)
	r.Get("/api/categories/{categoryID}", app.getCategoryByIDHandler)
	r.Put("/api/categories/{categoryID}", app.updateCategoryHandler)
	r.Delete("/api/categories/{categoryID}", app.deleteCategoryHandler)
	return r
}

// seedCategoryImage writes a real file into the upload dir and returns its
// stored relative path.
func seedCategoryImage(t *testing.T, app *application) string {
	t.Helper()
	name := "images-1-1.png"
	if err := os.WriteFile(filepath.Join(app.uploads.Dir(), name), pngBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	return uploads.PathPrefix + "/" + name
}

func TestUpdateCategoryRemoveImage(t *testing.T) {
	app, mock := newCategoryTestApp(t)

	img := seedCategoryImage(t, app)
	c := &store.Category{Name: "Smoothies", Image: &img, IsActive: true}
	if err := mock.Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	req := multipartRequest(t, http.MethodPut, "/api/categories/"+c.ID.String(), map[string]string{
		"removeImage": "true",
	})
	rec := httptest.NewRecorder()
	categoryRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Image *string `json:"image"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Image != nil {
		t.Errorf("response image = %q, want absent", *got.Image)
	}

	stored, err := mock.GetByID(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Image != nil {
		t.Errorf("stored image = %q, want cleared", *stored.Image)
	}

	if _, err := os.Stat(filepath.Join(app.uploads.Dir(), filepath.Base(img))); !os.IsNotExist(err) {
		t.Errorf("old image file still on disk (stat err %v)", err)
	}
}

func TestUpdateCategoryRemoveImageIgnoredWithUpload(t *testing.T) {
	app, mock := newCategoryTestApp(t)

	img := seedCategoryImage(t, app)
	c := &store.Category{Name: "Smoothies", Image: &img, IsActive: true}
	if err := mock.Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	req := multipartFileRequest(t, http.MethodPut, "/api/categories/"+c.ID.String(),
		map[string]string{"removeImage": "true"}, "image", "new.png", pngBytes)
	rec := httptest.NewRecorder()
	categoryRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	stored, err := mock.GetByID(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Image == nil {
		t.Fatal("stored image cleared, want the new upload to win")
	}
	if *stored.Image == img {
		t.Errorf("stored image = %q, want a fresh path", *stored.Image)
	}
}
