package main

import (
	"errors"
	"fmt"
	"net/http"

	"sipstore/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ingredientResponse struct {
	*store.Ingredient
	Image *string `json:"image,omitempty"`
}

func (app *application) newIngredientResponse(r *http.Request, i *store.Ingredient) *ingredientResponse {
	resp := &ingredientResponse{Ingredient: i}
	if i.Image != nil {
		url := imageURL(r, *i.Image)
		resp.Image = &url
	}
	return resp
}

// getIngredientsHandler godoc
//
//	@Summary	List ingredients
//	@Tags		ingredients
//	@Produce	json
//	@Success	200	{array}	ingredientResponse
//	@Router		/ingredients [get]
func (app *application) getIngredientsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := app.store.Ingredients.List(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := make([]*ingredientResponse, 0, len(list))
	for _, i := range list {
		resp = append(resp, app.newIngredientResponse(r, i))
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getIngredientByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "ingredientID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid ingredient id"))
		return
	}

	i, err := app.store.Ingredients.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.newIngredientResponse(r, i)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createIngredientHandler godoc
//
//	@Summary	Create ingredient
//	@Tags		ingredients
//	@Accept		mpfd
//	@Produce	json
//	@Success	201	{object}	ingredientResponse
//	@Failure	400	{object}	error
//	@Security	ApiKeyAuth
//	@Router		/ingredients [post]
func (app *application) createIngredientHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCategoryFormSize)
	if err := r.ParseMultipartForm(maxCategoryFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	i := &store.Ingredient{IsActive: true}
	if err := applyIngredientForm(r, i); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if i.Name == "" {
		app.badRequestResponse(w, r, errors.New("required fields missing: name"))
		return
	}

	saved, err := app.saveSingleImage(r, "image")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if saved != "" {
		i.Image = &saved
	}

	if err := app.store.Ingredients.Create(r.Context(), i); err != nil {
		if saved != "" {
			app.removeImageFiles([]string{saved})
		}
		if errors.Is(err, store.ErrConflict) {
			app.conflictResponse(w, r, fmt.Errorf("ingredient %q already exists", i.Name))
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, app.newIngredientResponse(r, i)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) updateIngredientHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "ingredientID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid ingredient id"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCategoryFormSize)
	if err := r.ParseMultipartForm(maxCategoryFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	i, err := app.store.Ingredients.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := applyIngredientForm(r, i); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	oldImage := i.Image
	saved, err := app.saveSingleImage(r, "image")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if saved != "" {
		i.Image = &saved
	}

	if err := app.store.Ingredients.Update(r.Context(), i); err != nil {
		if saved != "" {
			app.removeImageFiles([]string{saved})
		}
		switch {
		case errors.Is(err, store.ErrConflict):
			app.conflictResponse(w, r, fmt.Errorf("ingredient %q already exists", i.Name))
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if saved != "" && oldImage != nil {
		app.removeImageFiles([]string{*oldImage})
	}

	if err := app.jsonResponse(w, http.StatusOK, app.newIngredientResponse(r, i)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteIngredientHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "ingredientID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid ingredient id"))
		return
	}

	i, err := app.store.Ingredients.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Ingredients.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if i.Image != nil {
		app.removeImageFiles([]string{*i.Image})
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "ingredient deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func applyIngredientForm(r *http.Request, i *store.Ingredient) error {
	if v, ok := formField(r, "name"); ok {
		i.Name = v
	}
	if v, ok := formField(r, "description"); ok {
		i.Description = v
	}
	if v, ok := formField(r, "nutritionalInfo"); ok && v != "" {
		var info store.NutritionalInfo
		if err := parseJSONField("nutritionalInfo", v, &info); err != nil {
			return err
		}
		i.NutritionalInfo = &info
	}
	if v, ok := formField(r, "isActive"); ok {
		i.IsActive = v != "false"
	}
	return nil
}
