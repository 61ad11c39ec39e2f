package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"sipstore/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// getBlogsHandler godoc
//
//	@Summary	List blogs
//	@Tags		blogs
//	@Produce	json
//	@Success	200	{array}	store.Blog
//	@Router		/blogs [get]
func (app *application) getBlogsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := app.store.Blogs.List(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if err := app.jsonResponse(w, http.StatusOK, list); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getBlogByIDHandler resolves either an id or a slug, so storefront URLs can
// use the readable form.
func (app *application) getBlogByIDHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "blogID")

	var (
		b   *store.Blog
		err error
	)
	if id, parseErr := uuid.Parse(key); parseErr == nil {
		b, err = app.store.Blogs.GetByID(r.Context(), id)
	} else {
		b, err = app.store.Blogs.GetBySlug(r.Context(), key)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, b); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createBlogHandler godoc
//
//	@Summary		Create blog post
//	@Description	Creates a blog post; the featured image is stored on Cloudinary
//	@Tags			blogs
//	@Accept			mpfd
//	@Produce		json
//	@Success		201	{object}	store.Blog
//	@Failure		400	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/blogs [post]
func (app *application) createBlogHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCategoryFormSize)
	if err := r.ParseMultipartForm(maxCategoryFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	b := &store.Blog{}
	if err := applyBlogForm(r, b); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if b.Title == "" || b.Content == "" {
		app.badRequestResponse(w, r, errors.New("required fields missing: title, content"))
		return
	}

	adminID, ok := adminIDFromContext(r.Context())
	if !ok {
		app.unauthorizedErrorResponse(w, r, errors.New("missing admin identity"))
		return
	}
	b.AuthorID = adminID
	b.Slug = slugify(b.Title)

	if b.IsPublished {
		now := time.Now()
		b.PublishedAt = &now
	}

	if files := r.MultipartForm.File["featuredImage"]; len(files) > 0 {
		url, err := app.uploadBlogImage(r.Context(), files[0])
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		b.FeaturedImage = &url
	}

	err := app.store.Blogs.Create(r.Context(), b)
	if errors.Is(err, store.ErrConflict) {
		// Slug collision: retry once with a disambiguating suffix.
		b.Slug = fmt.Sprintf("%s-%d", b.Slug, time.Now().Unix())
		err = app.store.Blogs.Create(r.Context(), b)
	}
	if err != nil {
		if b.FeaturedImage != nil {
			if delErr := app.deleteBlogImage(r.Context(), *b.FeaturedImage); delErr != nil {
				app.logger.Warnw("failed to remove blog image", "url", *b.FeaturedImage, "error", delErr)
			}
		}
		if errors.Is(err, store.ErrConflict) {
			app.conflictResponse(w, r, fmt.Errorf("blog slug %q already exists", b.Slug))
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, b); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) updateBlogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "blogID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid blog id"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCategoryFormSize)
	if err := r.ParseMultipartForm(maxCategoryFormSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	b, err := app.store.Blogs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	wasPublished := b.IsPublished
	if err := applyBlogForm(r, b); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if _, ok := formField(r, "title"); ok {
		b.Slug = slugify(b.Title)
	}
	// publishedAt is set once, on the first transition to published.
	if b.IsPublished && !wasPublished && b.PublishedAt == nil {
		now := time.Now()
		b.PublishedAt = &now
	}

	oldImage := b.FeaturedImage
	if files := r.MultipartForm.File["featuredImage"]; len(files) > 0 {
		url, err := app.uploadBlogImage(r.Context(), files[0])
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		b.FeaturedImage = &url
	}

	if err := app.store.Blogs.Update(r.Context(), b); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, store.ErrConflict):
			app.conflictResponse(w, r, fmt.Errorf("blog slug %q already exists", b.Slug))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if oldImage != nil && b.FeaturedImage != oldImage && *oldImage != "" {
		if err := app.deleteBlogImage(r.Context(), *oldImage); err != nil {
			app.logger.Warnw("failed to remove blog image", "url", *oldImage, "error", err)
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, b); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteBlogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "blogID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid blog id"))
		return
	}

	b, err := app.store.Blogs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Blogs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if b.FeaturedImage != nil {
		if err := app.deleteBlogImage(r.Context(), *b.FeaturedImage); err != nil {
			app.logger.Warnw("failed to remove blog image", "url", *b.FeaturedImage, "error", err)
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "blog deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func applyBlogForm(r *http.Request, b *store.Blog) error {
	if v, ok := formField(r, "title"); ok {
		b.Title = v
	}
	if v, ok := formField(r, "content"); ok {
		b.Content = v
	}
	if v, ok := formField(r, "excerpt"); ok {
		b.Excerpt = v
	}
	if v, ok := formField(r, "categories"); ok && v != "" {
		var raw []string
		if err := parseJSONField("categories", v, &raw); err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(raw))
		for _, s := range raw {
			id, err := uuid.Parse(s)
			if err != nil {
				return fmt.Errorf("invalid category id %q", s)
			}
			ids = append(ids, id)
		}
		b.CategoryIDs = ids
	}
	if v, ok := formField(r, "isPublished"); ok {
		b.IsPublished = v == "true"
	}
	return nil
}

// slugify turns a title into a lowercase hyphenated URL slug.
func slugify(title string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			sb.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(sb.String(), "-")
}
