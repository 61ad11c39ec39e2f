package main

import (
	"errors"
	"fmt"
	"net/http"

	"sipstore/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// homeSliderLimit caps the hero carousel on the landing page.
const homeSliderLimit = 2

type bannerResponse struct {
	*store.Banner
	Image       string                   `json:"image"`
	MobileImage *string                  `json:"mobileImage,omitempty"`
	Ingredients []store.BannerIngredient `json:"ingredients"`
}

func (app *application) newBannerResponse(r *http.Request, b *store.Banner) *bannerResponse {
	resp := &bannerResponse{
		Banner:      b,
		Image:       imageURL(r, b.Image),
		Ingredients: make([]store.BannerIngredient, 0, len(b.Ingredients)),
	}
	if b.MobileImage != nil {
		url := imageURL(r, *b.MobileImage)
		resp.MobileImage = &url
	}
	for _, ing := range b.Ingredients {
		if ing.Image != nil {
			url := imageURL(r, *ing.Image)
			ing.Image = &url
		}
		resp.Ingredients = append(resp.Ingredients, ing)
	}
	return resp
}

// getBannersHandler godoc
//
//	@Summary		List banners
//	@Description	Lists active banners for a type and page, in display order
//	@Tags			banners
//	@Produce		json
//	@Param			type	query	string	false	"Banner type"
//	@Param			page	query	string	false	"Storefront page"
//	@Success		200		{array}	bannerResponse
//	@Router			/banners [get]
func (app *application) getBannersHandler(w http.ResponseWriter, r *http.Request) {
	bannerType := r.URL.Query().Get("type")
	page := r.URL.Query().Get("page")

	if bannerType != "" && !store.BannerTypes[bannerType] {
		app.badRequestResponse(w, r, fmt.Errorf("invalid banner type %q", bannerType))
		return
	}
	if page != "" && !store.BannerPages[page] {
		app.badRequestResponse(w, r, fmt.Errorf("invalid page %q", page))
		return
	}

	list, err := app.store.Banners.List(r.Context(), bannerType, page, 0)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := make([]*bannerResponse, 0, len(list))
	for _, b := range list {
		resp = append(resp, app.newBannerResponse(r, b))
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getHomeSlidersHandler(w http.ResponseWriter, r *http.Request) {
	list, err := app.store.Banners.List(r.Context(), "home_slider", "", homeSliderLimit)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := make([]*bannerResponse, 0, len(list))
	for _, b := range list {
		resp = append(resp, app.newBannerResponse(r, b))
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createBannerHandler godoc
//
//	@Summary	Create banner
//	@Tags		banners
//	@Accept		mpfd
//	@Produce	json
//	@Success	201	{object}	bannerResponse
//	@Failure	400	{object}	error
//	@Security	ApiKeyAuth
//	@Router		/banners [post]
func (app *application) createBannerHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCategoryFormSize)
	if err := r.ParseMultipartForm(maxCategoryFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	b := &store.Banner{IsActive: true}
	if err := applyBannerForm(r, b); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if b.Title == "" {
		app.badRequestResponse(w, r, errors.New("required fields missing: title"))
		return
	}

	image, err := app.saveSingleImage(r, "image")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if image == "" {
		app.badRequestResponse(w, r, errors.New("required fields missing: image"))
		return
	}
	b.Image = image

	mobileImage, err := app.saveSingleImage(r, "mobileImage")
	if err != nil {
		app.removeImageFiles([]string{image})
		app.badRequestResponse(w, r, err)
		return
	}
	if mobileImage != "" {
		b.MobileImage = &mobileImage
	}

	if err := app.store.Banners.Create(r.Context(), b); err != nil {
		app.removeImageFiles([]string{image})
		if mobileImage != "" {
			app.removeImageFiles([]string{mobileImage})
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, app.newBannerResponse(r, b)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) updateBannerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bannerID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid banner id"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCategoryFormSize)
	if err := r.ParseMultipartForm(maxCategoryFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	b, err := app.store.Banners.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := applyBannerForm(r, b); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	oldImage := b.Image
	oldMobile := b.MobileImage

	image, err := app.saveSingleImage(r, "image")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if image != "" {
		b.Image = image
	}
	mobileImage, err := app.saveSingleImage(r, "mobileImage")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if mobileImage != "" {
		b.MobileImage = &mobileImage
	}

	if err := app.store.Banners.Update(r.Context(), b); err != nil {
		var saved []string
		if image != "" {
			saved = append(saved, image)
		}
		if mobileImage != "" {
			saved = append(saved, mobileImage)
		}
		app.removeImageFiles(saved)
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if image != "" {
		app.removeImageFiles([]string{oldImage})
	}
	if mobileImage != "" && oldMobile != nil {
		app.removeImageFiles([]string{*oldMobile})
	}

	if err := app.jsonResponse(w, http.StatusOK, app.newBannerResponse(r, b)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteBannerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bannerID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid banner id"))
		return
	}

	b, err := app.store.Banners.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Banners.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.removeImageFiles([]string{b.Image})
	if b.MobileImage != nil {
		app.removeImageFiles([]string{*b.MobileImage})
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "banner deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func applyBannerForm(r *http.Request, b *store.Banner) error {
	if v, ok := formField(r, "title"); ok {
		b.Title = v
	}
	if v, ok := formField(r, "subtitle"); ok {
		b.Subtitle = v
	}
	if v, ok := formField(r, "link"); ok {
		b.Link = v
	}
	if v, ok := formField(r, "bannerType"); ok {
		if !store.BannerTypes[v] {
			return fmt.Errorf("invalid banner type %q", v)
		}
		b.BannerType = v
	}
	if v, ok := formField(r, "page"); ok {
		if v == "" {
			b.Page = nil
		} else {
			if !store.BannerPages[v] {
				return fmt.Errorf("invalid page %q", v)
			}
			b.Page = &v
		}
	}
	if v, ok := formField(r, "displayOrder"); ok && v != "" {
		order, err := parseIntField("displayOrder", v)
		if err != nil {
			return err
		}
		b.DisplayOrder = order
	}
	if v, ok := formField(r, "ingredients"); ok && v != "" {
		var raw []string
		if err := parseJSONField("ingredients", v, &raw); err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(raw))
		for _, s := range raw {
			id, err := uuid.Parse(s)
			if err != nil {
				return fmt.Errorf("invalid ingredient id %q", s)
			}
			ids = append(ids, id)
		}
		b.IngredientIDs = ids
	}
	if v, ok := formField(r, "isActive"); ok {
		b.IsActive = v != "false"
	}
	return nil
}
