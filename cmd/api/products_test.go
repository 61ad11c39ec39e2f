package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"sipstore/internal/domain/products"
	"sipstore/internal/params"
	"sipstore/internal/uploads"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mockProductStore is an in-memory products.Store with the same uniqueness
// and referential rules as the real repository.
type mockProductStore struct {
	products   map[uuid.UUID]*products.Product
	categories map[uuid.UUID]string
	order      []uuid.UUID
}

func newMockProductStore() *mockProductStore {
	return &mockProductStore{
		products:   make(map[uuid.UUID]*products.Product),
		categories: make(map[uuid.UUID]string),
	}
}

func (m *mockProductStore) addCategory(name string) uuid.UUID {
	id := uuid.New()
	m.categories[id] = name
	return id
}

func (m *mockProductStore) Create(ctx context.Context, p *products.Product) (*products.Product, error) {
	name, ok := m.categories[p.CategoryID]
	if !ok {
		return nil, products.ErrCategoryNotFound
	}
	for _, existing := range m.products {
		if existing.Name == p.Name {
			return nil, products.ErrDuplicateName
		}
		if existing.SKU == p.SKU {
			return nil, products.ErrDuplicateSKU
		}
		if existing.Barcode != nil && p.Barcode != nil && *existing.Barcode == *p.Barcode {
			return nil, products.ErrDuplicateBarcode
		}
	}

	cp := *p
	cp.ID = uuid.New()
	cp.CategoryName = name
	cp.CreatedAt = time.Now().Add(time.Duration(len(m.order)) * time.Millisecond)
	cp.UpdatedAt = cp.CreatedAt
	m.products[cp.ID] = &cp
	m.order = append(m.order, cp.ID)
	out := cp
	return &out, nil
}

func (m *mockProductStore) GetByID(ctx context.Context, id uuid.UUID) (*products.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, products.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductStore) List(ctx context.Context, f products.Filter, keys []params.SortKey, limit, offset int) ([]*products.Product, int, error) {
	var matched []*products.Product
	for _, id := range m.order {
		p := m.products[id]
		if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
			continue
		}
		if f.IsActive != nil && p.IsActive != *f.IsActive {
			continue
		}
		if f.SelectedPage != "" {
			found := false
			for _, page := range p.SelectedPages {
				if page == f.SelectedPage {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if f.Search != "" && !matchesSearch(p, f.Search) {
			continue
		}
		matched = append(matched, p)
	}

	// newest first, like the repository default
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]*products.Product, 0, end-offset)
	for _, p := range matched[offset:end] {
		cp := *p
		page = append(page, &cp)
	}
	return page, total, nil
}

// matchesSearch mirrors the repository's OR-search surface: name,
// description, tags and every recipe text field.
func matchesSearch(p *products.Product, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	for _, rec := range p.Recipes {
		if strings.Contains(strings.ToLower(rec.Name), needle) ||
			strings.Contains(strings.ToLower(rec.Ingredients), needle) ||
			strings.Contains(strings.ToLower(rec.Instructions), needle) {
			return true
		}
	}
	return false
}

func (m *mockProductStore) Update(ctx context.Context, p *products.Product) (*products.Product, error) {
	existing, ok := m.products[p.ID]
	if !ok {
		return nil, products.ErrProductNotFound
	}
	name, ok := m.categories[p.CategoryID]
	if !ok {
		return nil, products.ErrCategoryNotFound
	}
	for id, other := range m.products {
		if id == p.ID {
			continue
		}
		if other.Name == p.Name {
			return nil, products.ErrDuplicateName
		}
		if other.SKU == p.SKU {
			return nil, products.ErrDuplicateSKU
		}
	}

	cp := *p
	cp.CategoryName = name
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	m.products[p.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return products.ErrProductNotFound
	}
	delete(m.products, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockProductStore) NameExists(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	for id, p := range m.products {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProductStore) SKUExists(ctx context.Context, sku string, excludeID *uuid.UUID) (bool, error) {
	for id, p := range m.products {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if p.SKU == sku {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProductStore) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.categories[id]
	return ok, nil
}

func newTestApp(t *testing.T) (*application, *mockProductStore) {
	t.Helper()

	up, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	mock := newMockProductStore()
	app := &application{
		logger:   zap.NewNop().Sugar(),
		products: mock,
		uploads:  up,
	}
	return app, mock
}

// productRoutes mounts the product handlers without the auth gate.
func productRoutes(app *application) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/products", app.getProductsHandler)
	r.Post("/api/products", app.createProductHandler)
	r.Get("/api/products/{productID}", app.getProductByIDHandler)
	r.Put("/api/products/{productID}", app.updateProductHandler)
	r.Delete("/api/products/{productID}", app.deleteProductHandler)
	return r
}

// pngBytes is enough of a real PNG for content sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func multipartRequest(t *testing.T, method, target string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func multipartFileRequest(t *testing.T, method, target string, fields map[string]string, fileField, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	part, err := w.CreateFormFile(fileField, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	w.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

type productBody struct {
	ID             string   `json:"_id"`
	Name           string   `json:"name"`
	SKU            string   `json:"sku"`
	Price          float64  `json:"price"`
	Stock          int      `json:"stock"`
	IsActive       bool     `json:"isActive"`
	Tags           []string `json:"tags"`
	Images         []string `json:"images"`
	FormattedPrice string   `json:"formattedPrice"`
	Category       struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	} `json:"category"`
}

func seedProduct(t *testing.T, mock *mockProductStore, categoryID uuid.UUID, name, sku string, price float64, active bool) *products.Product {
	t.Helper()
	p, err := mock.Create(context.Background(), &products.Product{
		Name:       name,
		SKU:        sku,
		Price:      price,
		CategoryID: categoryID,
		Stock:      5,
		IsActive:   active,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCreateProduct(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Smoothies")

	req := multipartRequest(t, http.MethodPost, "/api/products", map[string]string{
		"name":     "Mango Madness",
		"sku":      "SMO-001",
		"price":    "9.99",
		"category": catID.String(),
		"stock":    "12",
		"tags":     "mango, fruit, ,summer",
		"recipes":  `[{"name":"Classic","ingredients":"mango, ice","instructions":"blend"}]`,
	})
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	var got productBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "Mango Madness" || got.SKU != "SMO-001" {
		t.Errorf("unexpected identity fields: %+v", got)
	}
	if got.FormattedPrice != "$9.99" {
		t.Errorf("formattedPrice = %q, want $9.99", got.FormattedPrice)
	}
	if got.Category.ID != catID.String() || got.Category.Name != "Smoothies" {
		t.Errorf("category = %+v, want flattened %s/Smoothies", got.Category, catID)
	}
	if len(got.Tags) != 3 {
		t.Errorf("tags = %v, want 3 trimmed entries", got.Tags)
	}
	if !got.IsActive {
		t.Error("product should default to active")
	}
}

func TestCreateProductMissingRequired(t *testing.T) {
	app, _ := newTestApp(t)

	req := multipartRequest(t, http.MethodPost, "/api/products", map[string]string{
		"name": "Lonely",
	})
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "required fields missing") {
		t.Fatalf("body %q missing required-fields message", rec.Body.String())
	}
}

func TestCreateProductRejectsBadNumber(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Juices")

	req := multipartRequest(t, http.MethodPost, "/api/products", map[string]string{
		"name":     "Orange Press",
		"sku":      "JUI-001",
		"price":    "not-a-price",
		"category": catID.String(),
		"stock":    "3",
	})
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid number for field price") {
		t.Fatalf("body %q missing strict-parse message", rec.Body.String())
	}
}

func TestCreateProductRejectsNegativeNumbers(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Juices")

	base := map[string]string{
		"name":     "Beet Blast",
		"sku":      "JUI-009",
		"price":    "4.00",
		"category": catID.String(),
		"stock":    "3",
	}

	for field, value := range map[string]string{
		"price":     "-1",
		"stock":     "-2",
		"costPrice": "-3.50",
		"weight":    "-2",
		"volume":    "-1",
	} {
		fields := map[string]string{}
		for k, v := range base {
			fields[k] = v
		}
		fields[field] = value

		req := multipartRequest(t, http.MethodPost, "/api/products", fields)
		rec := httptest.NewRecorder()
		productRoutes(app).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s=%s: got status %d, want 400", field, value, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "must not be negative") {
			t.Errorf("%s=%s: body %q missing negativity message", field, value, rec.Body.String())
		}
	}

	if len(mock.products) != 0 {
		t.Fatalf("negative input persisted %d products", len(mock.products))
	}
}

func TestUpdateProductRejectsNegativeNumbers(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Juices")
	p := seedProduct(t, mock, catID, "Beet Blast", "JUI-009", 4, true)

	req := multipartRequest(t, http.MethodPut, "/api/products/"+p.ID.String(), map[string]string{
		"costPrice": "-3.50",
	})
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}

	stored, err := mock.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.CostPrice != nil {
		t.Fatalf("costPrice = %v, want untouched nil", *stored.CostPrice)
	}
}

func TestCreateProductDuplicateName(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Juices")
	seedProduct(t, mock, catID, "Orange Press", "JUI-001", 5, true)

	req := multipartRequest(t, http.MethodPost, "/api/products", map[string]string{
		"name":     "Orange Press",
		"sku":      "JUI-002",
		"price":    "6.50",
		"category": catID.String(),
		"stock":    "3",
	})
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	// duplicates surface as plain client errors
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}

	var envelope struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Success {
		t.Error("error envelope should have success=false")
	}
}

func TestCreateProductUnknownCategory(t *testing.T) {
	app, _ := newTestApp(t)

	req := multipartRequest(t, http.MethodPost, "/api/products", map[string]string{
		"name":     "Ghost",
		"sku":      "GHO-001",
		"price":    "1.00",
		"category": uuid.NewString(),
		"stock":    "1",
	})
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestListProductsPagination(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Smoothies")
	for i := 0; i < 25; i++ {
		seedProduct(t, mock, catID, fmt.Sprintf("Product %02d", i), fmt.Sprintf("SKU-%02d", i), 4, true)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/products?limit=10&page=3", nil)
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Total    int           `json:"total"`
		Page     int           `json:"page"`
		Pages    int           `json:"pages"`
		Limit    int           `json:"limit"`
		Products []productBody `json:"products"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 25 || resp.Pages != 3 || resp.Page != 3 || resp.Limit != 10 {
		t.Errorf("meta = %+v, want total=25 pages=3 page=3 limit=10", resp)
	}
	if len(resp.Products) != 5 {
		t.Errorf("got %d products on last page, want 5", len(resp.Products))
	}
}

func TestListProductsActiveFilter(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Smoothies")
	seedProduct(t, mock, catID, "Visible", "SKU-A", 4, true)
	seedProduct(t, mock, catID, "Hidden", "SKU-B", 4, false)

	var resp struct {
		Total    int           `json:"total"`
		Products []productBody `json:"products"`
	}

	req := httptest.NewRequest(http.MethodGet, "/api/products?active=false", nil)
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Products[0].Name != "Hidden" {
		t.Errorf("active=false: got %+v, want only the inactive product", resp)
	}

	// anything but the literals true/false means no filter
	req = httptest.NewRequest(http.MethodGet, "/api/products?active=banana", nil)
	rec = httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Errorf("active=banana: got total=%d, want 2", resp.Total)
	}
}

func TestListProductsSearchTagsAndRecipes(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Smoothies")

	tagged, err := mock.Create(context.Background(), &products.Product{
		Name:       "Island Mix",
		SKU:        "SKU-T",
		Price:      4,
		CategoryID: catID,
		IsActive:   true,
		Tags:       []string{"tropical", "fruit"},
	})
	if err != nil {
		t.Fatal(err)
	}
	withRecipe, err := mock.Create(context.Background(), &products.Product{
		Name:       "Morning Shot",
		SKU:        "SKU-R",
		Price:      3,
		CategoryID: catID,
		IsActive:   true,
		Recipes:    []products.Recipe{{Name: "Wake-up", Ingredients: "ginger, lemon", Instructions: "press"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	seedProduct(t, mock, catID, "Plain Water", "SKU-W", 1, true)

	cases := map[string]string{
		"tropical": tagged.Name,
		"ginger":   withRecipe.Name,
	}
	for search, wantName := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/products?search="+search, nil)
		rec := httptest.NewRecorder()
		productRoutes(app).ServeHTTP(rec, req)

		var resp struct {
			Total    int           `json:"total"`
			Products []productBody `json:"products"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Total != 1 || resp.Products[0].Name != wantName {
			t.Errorf("search=%q: got %+v, want only %q", search, resp, wantName)
		}
	}
}

func TestGetProductNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/products/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestGetProductRewritesImageURLs(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Smoothies")
	p := seedProduct(t, mock, catID, "Pictured", "SKU-P", 4, true)
	p.Images = []string{"uploads/images-1-2.png", "https://cdn.example.com/external.png"}
	if _, err := mock.Update(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/products/"+p.ID.String(), nil)
	req.Host = "shop.example.com"
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	var got productBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Images) != 2 {
		t.Fatalf("got %d images, want 2", len(got.Images))
	}
	if got.Images[0] != "http://shop.example.com/uploads/images-1-2.png" {
		t.Errorf("local image = %q, want host-rewritten URL", got.Images[0])
	}
	if got.Images[1] != "https://cdn.example.com/external.png" {
		t.Errorf("absolute image = %q, want passthrough", got.Images[1])
	}
}

func TestUpdateProductPartial(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Smoothies")
	p := seedProduct(t, mock, catID, "Keeper", "SKU-K", 4, true)

	req := multipartRequest(t, http.MethodPut, "/api/products/"+p.ID.String(), map[string]string{
		"price": "7.25",
	})
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	var got productBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Price != 7.25 {
		t.Errorf("price = %v, want 7.25", got.Price)
	}
	if got.Name != "Keeper" || got.SKU != "SKU-K" || got.Stock != 5 {
		t.Errorf("absent fields changed: %+v", got)
	}
}

func TestUpdateProductExistingImagesOverride(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Smoothies")
	p := seedProduct(t, mock, catID, "Pictured", "SKU-P", 4, true)
	p.Images = []string{"uploads/a.png", "uploads/b.png"}
	if _, err := mock.Update(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	req := multipartRequest(t, http.MethodPut, "/api/products/"+p.ID.String(), map[string]string{
		"existingImages": `["http://shop.example.com/uploads/a.png"]`,
	})
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	stored, err := mock.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Images) != 1 || stored.Images[0] != "uploads/a.png" {
		t.Errorf("images = %v, want the echoed URL mapped back to uploads/a.png", stored.Images)
	}
}

func TestDeleteProduct(t *testing.T) {
	app, mock := newTestApp(t)
	catID := mock.addCategory("Smoothies")
	p := seedProduct(t, mock, catID, "Doomed", "SKU-D", 4, true)

	req := httptest.NewRequest(http.MethodDelete, "/api/products/"+p.ID.String(), nil)
	rec := httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("delete wrote a body: %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/products/"+p.ID.String(), nil)
	rec = httptest.NewRecorder()
	productRoutes(app).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: got status %d, want 404", rec.Code)
	}
}
