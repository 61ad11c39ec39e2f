package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"sipstore/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxCategoryFormSize = 8 << 20

type categoryResponse struct {
	*store.Category
	Image *string `json:"image,omitempty"`
}

func (app *application) newCategoryResponse(r *http.Request, c *store.Category) *categoryResponse {
	resp := &categoryResponse{Category: c}
	if c.Image != nil {
		url := imageURL(r, *c.Image)
		resp.Image = &url
	}
	return resp
}

// getCategoriesHandler godoc
//
//	@Summary		List categories
//	@Tags			categories
//	@Produce		json
//	@Param			productPageUrl	query		string	false	"Selected page membership"
//	@Success		200				{array}		categoryResponse
//	@Failure		404				{object}	error
//	@Router			/categories [get]
func (app *application) getCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	selectedPage := strings.TrimSpace(r.URL.Query().Get("productPageUrl"))

	list, err := app.store.Categories.List(r.Context(), selectedPage)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	// The storefront treats an empty filtered page as missing content.
	if selectedPage != "" && len(list) == 0 {
		app.notFoundResponse(w, r, fmt.Errorf("no categories for page %q", selectedPage))
		return
	}

	resp := make([]*categoryResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, app.newCategoryResponse(r, c))
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getCategoryByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid category id"))
		return
	}

	c, err := app.store.Categories.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.newCategoryResponse(r, c)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createCategoryHandler godoc
//
//	@Summary	Create category
//	@Tags		categories
//	@Accept		mpfd
//	@Produce	json
//	@Success	201	{object}	categoryResponse
//	@Failure	400	{object}	error
//	@Security	ApiKeyAuth
//	@Router		/categories [post]
func (app *application) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCategoryFormSize)
	if err := r.ParseMultipartForm(maxCategoryFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	c := &store.Category{IsActive: true}
	if err := applyCategoryForm(r, c); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if c.Name == "" {
		app.badRequestResponse(w, r, errors.New("required fields missing: name"))
		return
	}

	exists, err := app.store.Categories.NameExists(r.Context(), c.Name, nil)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if exists {
		app.conflictResponse(w, r, fmt.Errorf("category %q already exists", c.Name))
		return
	}

	saved, err := app.saveSingleImage(r, "image")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if saved != "" {
		c.Image = &saved
	}

	if err := app.store.Categories.Create(r.Context(), c); err != nil {
		if saved != "" {
			app.removeImageFiles([]string{saved})
		}
		if errors.Is(err, store.ErrConflict) {
			app.conflictResponse(w, r, fmt.Errorf("category %q already exists", c.Name))
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, app.newCategoryResponse(r, c)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) updateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid category id"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCategoryFormSize)
	if err := r.ParseMultipartForm(maxCategoryFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	c, err := app.store.Categories.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := applyCategoryForm(r, c); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if _, ok := formField(r, "name"); ok {
		exists, err := app.store.Categories.NameExists(r.Context(), c.Name, &id)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		if exists {
			app.conflictResponse(w, r, fmt.Errorf("category %q already exists", c.Name))
			return
		}
	}

	oldImage := c.Image
	saved, err := app.saveSingleImage(r, "image")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	removeImage := false
	if v, ok := formField(r, "removeImage"); ok && v == "true" {
		removeImage = true
	}
	switch {
	case saved != "":
		c.Image = &saved
	case removeImage:
		c.Image = nil
	}

	if err := app.store.Categories.Update(r.Context(), c); err != nil {
		if saved != "" {
			app.removeImageFiles([]string{saved})
		}
		if errors.Is(err, store.ErrConflict) {
			app.conflictResponse(w, r, fmt.Errorf("category %q already exists", c.Name))
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if (saved != "" || removeImage) && oldImage != nil {
		app.removeImageFiles([]string{*oldImage})
	}

	if err := app.jsonResponse(w, http.StatusOK, app.newCategoryResponse(r, c)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid category id"))
		return
	}

	c, err := app.store.Categories.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Categories.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if c.Image != nil {
		app.removeImageFiles([]string{*c.Image})
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "category deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getProductPagesHandler godoc
//
//	@Summary		List product pages
//	@Description	Deduplicated union of every category's product pages
//	@Tags			categories
//	@Produce		json
//	@Success		200	{array}	store.ProductPage
//	@Router			/product-pages [get]
func (app *application) getProductPagesHandler(w http.ResponseWriter, r *http.Request) {
	pages, err := app.store.Categories.ProductPages(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if err := app.jsonResponse(w, http.StatusOK, pages); err != nil {
		app.internalServerError(w, r, err)
	}
}

type addProductPagesPayload struct {
	ProductPages []store.ProductPage `json:"productPages" validate:"required,min=1,dive"`
}

// addCategoryProductPagesHandler appends pages a category does not already
// list; already-present pages are silently skipped.
func (app *application) addCategoryProductPagesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid category id"))
		return
	}

	var payload addProductPagesPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	for _, p := range payload.ProductPages {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.URL) == "" {
			app.badRequestResponse(w, r, errors.New("each product page requires name and url"))
			return
		}
	}

	c, err := app.store.Categories.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	seen := make(map[string]bool, len(c.ProductPages))
	for _, p := range c.ProductPages {
		seen[p.Name+":"+p.URL] = true
	}
	for _, p := range payload.ProductPages {
		if key := p.Name + ":" + p.URL; !seen[key] {
			seen[key] = true
			c.ProductPages = append(c.ProductPages, p)
		}
	}

	if err := app.store.Categories.Update(r.Context(), c); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.newCategoryResponse(r, c)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// saveSingleImage stores the first file of a single-image form field, or
// returns "" when the field is empty.
func (app *application) saveSingleImage(r *http.Request, field string) (string, error) {
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return "", nil
	}
	return app.uploads.Save(files[0])
}

// applyCategoryForm copies present form fields onto c; absent fields keep
// their value.
func applyCategoryForm(r *http.Request, c *store.Category) error {
	if v, ok := formField(r, "name"); ok {
		c.Name = v
	}
	if v, ok := formField(r, "description"); ok {
		c.Description = v
	}
	if v, ok := formField(r, "productPages"); ok && v != "" {
		var pages []store.ProductPage
		if err := parseJSONField("productPages", v, &pages); err != nil {
			return err
		}
		for _, p := range pages {
			if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.URL) == "" {
				return errors.New("each product page requires name and url")
			}
		}
		c.ProductPages = pages
	}
	if v, ok := formField(r, "selectedPages"); ok && v != "" {
		var pages []string
		if err := parseJSONField("selectedPages", v, &pages); err != nil {
			return err
		}
		c.SelectedPages = pages
	}
	if v, ok := formField(r, "isActive"); ok {
		c.IsActive = v != "false"
	}
	return nil
}
