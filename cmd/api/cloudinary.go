package main

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// uploadBlogImage pushes a blog featured image to Cloudinary and returns its
// secure URL. Blog images live on the CDN rather than local disk because the
// storefront renders them on externally cached pages.
func (app *application) uploadBlogImage(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if app.cld == nil {
		return "", errors.New("cloudinary is not configured")
	}

	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	publicID := fmt.Sprintf("blog_%d", time.Now().UnixNano())
	resp, err := app.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:    "blogs",
		PublicID:  publicID,
		Overwrite: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}

	return resp.SecureURL, nil
}

// deleteBlogImage removes a previously uploaded featured image. Failures are
// reported but callers treat them as best-effort cleanup.
func (app *application) deleteBlogImage(ctx context.Context, imageURL string) error {
	if app.cld == nil {
		return nil
	}

	publicID, err := extractPublicIDFromURL(imageURL)
	if err != nil {
		return fmt.Errorf("failed to extract public ID: %w", err)
	}

	_, err = app.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID: publicID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete image from Cloudinary: %w", err)
	}

	return nil
}

func extractPublicIDFromURL(imageURL string) (string, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	pathParts := strings.Split(parsedURL.Path, "/")
	for i, part := range pathParts {
		if part == "upload" && i+1 < len(pathParts) {
			return strings.Join(pathParts[i+1:], "/"), nil
		}
	}

	return "", errors.New("failed to extract public ID from URL")
}
