package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smms/internal/clock"
)

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestUploadService_SaveImage(t *testing.T) {
	dir := t.TempDir()
	svc := NewUploadService(UploadOptions{Dir: dir, URLPath: "uploads"}, clock.NewFixed(clock.MustParse("2024-06-01T00:00:00")))

	url, err := svc.SaveImage(buildFileHeader(t, "photo.gif", pngBytes(t)))
	if err != nil {
		t.Fatalf("save image: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/20240601-") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected url %q", url)
	}

	name := strings.TrimPrefix(url, "/uploads/")
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Fatalf("expected stored file: %v", err)
	}

	if err := svc.Remove(url); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
	if err := svc.Remove("/elsewhere/../../etc/passwd"); err != nil {
		t.Fatalf("foreign paths should be ignored, got %v", err)
	}
}

func TestUploadService_RejectsInvalidImages(t *testing.T) {
	dir := t.TempDir()
	svc := NewUploadService(UploadOptions{Dir: dir, MaxSize: 64}, nil)

	if _, err := svc.SaveImage(buildFileHeader(t, "fake.png", []byte("definitely not an image"))); !errors.Is(err, ErrImageUnsupported) {
		t.Fatalf("expected ErrImageUnsupported, got %v", err)
	}
	if _, err := svc.SaveImage(buildFileHeader(t, "big.png", bytes.Repeat([]byte{0}, 128))); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}

	restricted := NewUploadService(UploadOptions{Dir: dir, AllowedTypes: []string{"image/jpeg"}}, nil)
	if _, err := restricted.SaveImage(buildFileHeader(t, "photo.png", pngBytes(t))); !errors.Is(err, ErrImageUnsupported) {
		t.Fatalf("expected png rejected by allow list, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected uploads must not be stored, found %d files", len(entries))
	}
}
