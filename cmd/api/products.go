package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"

	"sipstore/internal/domain/products"
	"sipstore/internal/params"
	"sipstore/internal/uploads"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxProductFormSize = 32 << 20 // 32MB, covers 5 images plus fields

// productResponse is the wire shape of a product: category flattened,
// image paths rewritten to URLs, price pre-formatted for display.
type productResponse struct {
	*products.Product
	Category       products.CategoryRef `json:"category"`
	Images         []string             `json:"images"`
	FormattedPrice string               `json:"formattedPrice"`
}

type productListResponse struct {
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	Pages    int                `json:"pages"`
	Limit    int                `json:"limit"`
	Products []*productResponse `json:"products"`
}

func (app *application) newProductResponse(r *http.Request, p *products.Product) *productResponse {
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, imageURL(r, img))
	}

	return &productResponse{
		Product:        p,
		Category:       p.Category(),
		Images:         urls,
		FormattedPrice: p.FormattedPrice(),
	}
}

// imageURL turns a stored relative path into an absolute URL on this host.
// Paths that are already absolute http(s) URLs pass through untouched.
func imageURL(r *http.Request, stored string) string {
	if strings.HasPrefix(stored, "http://") || strings.HasPrefix(stored, "https://") {
		return stored
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, r.Host, uploads.PathPrefix, path.Base(stored))
}

// normalizeImageRef maps a client-echoed image URL back to its stored
// relative path. Foreign absolute URLs are kept as-is.
func normalizeImageRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if !strings.Contains(ref, "/"+uploads.PathPrefix+"/") {
			return ref
		}
	}
	return uploads.PathPrefix + "/" + path.Base(ref)
}

// getProductsHandler godoc
//
//	@Summary		List products
//	@Description	Lists products with filtering, compound sorting and pagination
//	@Tags			products
//	@Produce		json
//	@Param			category		query		string	false	"Category ID"
//	@Param			active			query		string	false	"Filter by active flag (true/false)"
//	@Param			productPageUrl	query		string	false	"Selected page membership"
//	@Param			search			query		string	false	"Substring search"
//	@Param			sort			query		string	false	"field:dir,field:dir"
//	@Param			page			query		int		false	"Page number"
//	@Param			limit			query		int		false	"Page size"
//	@Success		200				{object}	productListResponse
//	@Failure		400				{object}	error
//	@Router			/products [get]
func (app *application) getProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter products.Filter
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			app.badRequestResponse(w, r, fmt.Errorf("invalid category id %q", raw))
			return
		}
		filter.CategoryID = &id
	}
	// Only the literals "true" and "false" filter; anything else means all.
	switch q.Get("active") {
	case "true":
		active := true
		filter.IsActive = &active
	case "false":
		active := false
		filter.IsActive = &active
	}
	filter.SelectedPage = strings.TrimSpace(q.Get("productPageUrl"))
	filter.Search = strings.TrimSpace(q.Get("search"))

	sort := params.ParseSort(q.Get("sort"))
	pg := params.ParsePagination(q)

	list, total, err := app.products.List(r.Context(), filter, sort, pg.Limit, pg.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	pg.ComputeMeta(total)

	resp := productListResponse{
		Total:    pg.Total,
		Page:     pg.Page,
		Pages:    pg.TotalPages,
		Limit:    pg.Limit,
		Products: make([]*productResponse, 0, len(list)),
	}
	for _, p := range list {
		resp.Products = append(resp.Products, app.newProductResponse(r, p))
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getProductByIDHandler godoc
//
//	@Summary		Get product
//	@Tags			products
//	@Produce		json
//	@Param			id	path		string	true	"Product ID"
//	@Success		200	{object}	productResponse
//	@Failure		404	{object}	error
//	@Router			/products/{id} [get]
func (app *application) getProductByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid product id"))
		return
	}

	if app.cache != nil {
		cached, err := app.cache.GetProduct(r.Context(), id)
		if err != nil {
			app.logger.Warnw("product cache read failed", "id", id, "error", err)
		} else if cached != nil {
			if err := app.jsonResponse(w, http.StatusOK, app.newProductResponse(r, cached)); err != nil {
				app.internalServerError(w, r, err)
			}
			return
		}
	}

	p, err := app.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if app.cache != nil {
		if err := app.cache.SetProduct(r.Context(), p); err != nil {
			app.logger.Warnw("product cache write failed", "id", id, "error", err)
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, app.newProductResponse(r, p)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createProductHandler godoc
//
//	@Summary		Create product
//	@Description	Creates a product from a multipart form with up to 5 images
//	@Tags			products
//	@Accept			mpfd
//	@Produce		json
//	@Success		201	{object}	productResponse
//	@Failure		400	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products [post]
func (app *application) createProductHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProductFormSize)
	if err := r.ParseMultipartForm(maxProductFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	p, err := parseProductForm(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	saved, err := app.saveUploadedImages(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	p.Images = saved

	created, err := app.products.Create(r.Context(), p)
	if err != nil {
		app.removeImageFiles(saved)
		app.mapProductStoreError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, app.newProductResponse(r, created)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateProductHandler godoc
//
//	@Summary		Update product
//	@Description	Partially updates a product; absent form fields keep their value
//	@Tags			products
//	@Accept			mpfd
//	@Produce		json
//	@Param			id	path		string	true	"Product ID"
//	@Success		200	{object}	productResponse
//	@Failure		400	{object}	error
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{id} [put]
func (app *application) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid product id"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProductFormSize)
	if err := r.ParseMultipartForm(maxProductFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	p, err := app.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := applyProductForm(r, p); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	// New uploads replace the image set wholesale; otherwise an explicit
	// existingImages field overrides, and absence preserves.
	oldImages := p.Images
	var saved []string
	if files := r.MultipartForm.File["images"]; len(files) > 0 {
		saved, err = app.saveUploadedImages(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
		p.Images = saved
	} else if raw, ok := formField(r, "existingImages"); ok {
		var refs []string
		if err := parseJSONField("existingImages", raw, &refs); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
		imgs := make([]string, 0, len(refs))
		for _, ref := range refs {
			imgs = append(imgs, normalizeImageRef(ref))
		}
		p.Images = imgs
	}

	updated, err := app.products.Update(r.Context(), p)
	if err != nil {
		app.removeImageFiles(saved)
		app.mapProductStoreError(w, r, err)
		return
	}

	if len(saved) > 0 {
		app.removeImageFiles(oldImages)
	}

	if app.cache != nil {
		if err := app.cache.Invalidate(r.Context(), id); err != nil {
			app.logger.Warnw("product cache invalidate failed", "id", id, "error", err)
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, app.newProductResponse(r, updated)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteProductHandler godoc
//
//	@Summary		Delete product
//	@Tags			products
//	@Param			id	path	string	true	"Product ID"
//	@Success		204
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{id} [delete]
func (app *application) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid product id"))
		return
	}

	p, err := app.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.products.Delete(r.Context(), id); err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.removeImageFiles(p.Images)

	if app.cache != nil {
		if err := app.cache.Invalidate(r.Context(), id); err != nil {
			app.logger.Warnw("product cache invalidate failed", "id", id, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// mapProductStoreError translates domain errors into HTTP responses.
// Uniqueness and referential failures are client errors, not conflicts.
func (app *application) mapProductStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, products.ErrDuplicateName),
		errors.Is(err, products.ErrDuplicateSKU),
		errors.Is(err, products.ErrDuplicateBarcode),
		errors.Is(err, products.ErrDuplicateProduct):
		app.conflictResponse(w, r, err)
	case errors.Is(err, products.ErrCategoryNotFound):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, products.ErrProductNotFound):
		app.notFoundResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

// saveUploadedImages persists the "images" file array to the upload store.
// On any failure the files written so far are removed again.
func (app *application) saveUploadedImages(r *http.Request) ([]string, error) {
	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > uploads.MaxFilesPerUpload {
		return nil, fmt.Errorf("too many images: at most %d allowed", uploads.MaxFilesPerUpload)
	}

	saved := make([]string, 0, len(files))
	for _, fh := range files {
		rel, err := app.uploads.Save(fh)
		if err != nil {
			app.removeImageFiles(saved)
			return nil, err
		}
		saved = append(saved, rel)
	}
	return saved, nil
}

// removeImageFiles is best-effort cleanup of locally stored images. Missing
// files are fine; anything else is logged and otherwise ignored. Foreign
// absolute URLs are skipped.
func (app *application) removeImageFiles(paths []string) {
	for _, p := range paths {
		if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
			continue
		}
		if err := app.uploads.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			app.logger.Warnw("failed to remove image file", "path", p, "error", err)
		}
	}
}

// --- form mapping -----------------------------------------------------------

// formField returns the first value of a multipart form field and whether the
// field was present at all. Presence drives partial updates.
func formField(r *http.Request, name string) (string, bool) {
	vals, ok := r.MultipartForm.Value[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return strings.TrimSpace(vals[0]), true
}

func parseFloatField(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for field %s", name)
	}
	return v, nil
}

func parseIntField(name, raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid number for field %s", name)
	}
	return v, nil
}

func parseJSONField(name, raw string, dst any) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("invalid format for field %s", name)
	}
	return nil
}

// parseTags splits a comma-separated tag list, dropping empties.
func parseTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func validVolumeUnit(unit string) bool {
	switch unit {
	case "mL", "L", "oz":
		return true
	}
	return false
}

// parseProductForm maps a create request's multipart form onto a new product
// document. Numeric fields parse strictly; embedded JSON fields must decode.
func parseProductForm(r *http.Request) (*products.Product, error) {
	var missing []string
	for _, f := range []string{"name", "sku", "price", "category", "stock"} {
		if v, ok := formField(r, f); !ok || v == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required fields missing: %s", strings.Join(missing, ", "))
	}

	p := &products.Product{IsActive: true}
	if err := applyProductForm(r, p); err != nil {
		return nil, err
	}
	return p, nil
}

// applyProductForm copies every present form field onto p, leaving absent
// fields untouched. Used directly for partial updates.
func applyProductForm(r *http.Request, p *products.Product) error {
	if v, ok := formField(r, "name"); ok {
		p.Name = v
	}
	if v, ok := formField(r, "sku"); ok {
		p.SKU = v
	}
	if v, ok := formField(r, "description"); ok {
		p.Description = v
	}

	// A blank barcode means "no barcode": stored as NULL so the sparse unique
	// index never sees it.
	if v, ok := formField(r, "barcode"); ok {
		if v == "" {
			p.Barcode = nil
		} else {
			p.Barcode = &v
		}
	}

	if v, ok := formField(r, "category"); ok {
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid category id %q", v)
		}
		p.CategoryID = id
	}

	if v, ok := formField(r, "price"); ok {
		price, err := parseFloatField("price", v)
		if err != nil {
			return err
		}
		if price < 0 {
			return errors.New("price must not be negative")
		}
		p.Price = price
	}
	if v, ok := formField(r, "costPrice"); ok {
		if v == "" {
			p.CostPrice = nil
		} else {
			cost, err := parseFloatField("costPrice", v)
			if err != nil {
				return err
			}
			if cost < 0 {
				return errors.New("costPrice must not be negative")
			}
			p.CostPrice = &cost
		}
	}
	if v, ok := formField(r, "stock"); ok {
		stock, err := parseIntField("stock", v)
		if err != nil {
			return err
		}
		if stock < 0 {
			return errors.New("stock must not be negative")
		}
		p.Stock = stock
	}
	if v, ok := formField(r, "weight"); ok {
		if v == "" {
			p.Weight = nil
		} else {
			weight, err := parseFloatField("weight", v)
			if err != nil {
				return err
			}
			if weight < 0 {
				return errors.New("weight must not be negative")
			}
			p.Weight = &weight
		}
	}

	if v, ok := formField(r, "volume"); ok {
		if v == "" {
			p.Volume = nil
			p.VolumeUnit = nil
		} else {
			volume, err := parseFloatField("volume", v)
			if err != nil {
				return err
			}
			if volume < 0 {
				return errors.New("volume must not be negative")
			}
			p.Volume = &volume
			if p.VolumeUnit == nil {
				unit := "L"
				p.VolumeUnit = &unit
			}
		}
	}
	if v, ok := formField(r, "volumeUnit"); ok && v != "" {
		if !validVolumeUnit(v) {
			return fmt.Errorf("invalid volumeUnit %q: must be one of mL, L, oz", v)
		}
		p.VolumeUnit = &v
	}

	if v, ok := formField(r, "dimensions"); ok && v != "" {
		var dims products.Dimensions
		if err := parseJSONField("dimensions", v, &dims); err != nil {
			return err
		}
		if err := Validate.Struct(dims); err != nil {
			return fmt.Errorf("invalid dimensions: %w", err)
		}
		p.Dimensions = &dims
	}
	if v, ok := formField(r, "recipes"); ok && v != "" {
		var recipes []products.Recipe
		if err := parseJSONField("recipes", v, &recipes); err != nil {
			return err
		}
		p.Recipes = recipes
	}
	if v, ok := formField(r, "selectedPages"); ok && v != "" {
		var pages []string
		if err := parseJSONField("selectedPages", v, &pages); err != nil {
			return err
		}
		p.SelectedPages = pages
	}
	if v, ok := formField(r, "tags"); ok {
		p.Tags = parseTags(v)
	}

	// Matches the storefront convention: anything but the literal "false"
	// keeps the product active.
	if v, ok := formField(r, "isActive"); ok {
		p.IsActive = v != "false"
	}

	return nil
}
