package uploads

import (
	"bytes"
	"errors"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// pngHeader is enough of a real PNG for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("images", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatal(err)
	}
	return req.MultipartForm.File["images"][0]
}

func TestSaveAndRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	rel, err := store.Save(fileHeader(t, "photo.png", pngHeader))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rel, PathPrefix+"/") {
		t.Fatalf("relative path %q missing %q prefix", rel, PathPrefix)
	}
	if ext := filepath.Ext(rel); ext != ".png" {
		t.Errorf("got extension %q, want .png", ext)
	}

	if _, err := os.Stat(filepath.Join(store.Dir(), filepath.Base(rel))); err != nil {
		t.Fatalf("saved file not on disk: %v", err)
	}

	if err := store.Remove(rel); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(rel); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("second remove: got %v, want fs.ErrNotExist", err)
	}
}

func TestSaveRejectsNonImage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = store.Save(fileHeader(t, "notes.txt", []byte("just some text content here")))
	if err == nil {
		t.Fatal("expected MIME rejection")
	}
	if !strings.Contains(err.Error(), "invalid file type") {
		t.Fatalf("got %v, want invalid file type error", err)
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected upload left %d files behind", len(entries))
	}
}

func TestSaveRejectsOversized(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	fh := fileHeader(t, "big.png", pngHeader)
	fh.Size = MaxFileSize + 1
	if _, err := store.Save(fh); err == nil {
		t.Fatal("expected size rejection")
	}
}

func TestRemoveIgnoresDirectoryComponents(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	outside := filepath.Join(filepath.Dir(dir), "victim.txt")
	if err := os.WriteFile(outside, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Only the basename counts, so this resolves inside the store dir and
	// simply does not exist there.
	err = store.Remove("../victim.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("got %v, want fs.ErrNotExist", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("file outside the store dir was touched: %v", err)
	}
}

func TestUniqueNamesDiffer(t *testing.T) {
	a := uniqueName("x.png")
	b := uniqueName("x.png")
	if a == b {
		t.Fatalf("two generated names collided: %q", a)
	}
	if !strings.HasPrefix(a, "images-") {
		t.Errorf("name %q missing images- prefix", a)
	}
}
