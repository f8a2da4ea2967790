package service

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/smms/internal/clock"
	_ "golang.org/x/image/webp"
)

var (
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrImageUnsupported = errors.New("only jpeg, png, gif and webp images are allowed")
)

// imageFormats 将 image 包识别出的格式映射为 MIME 类型与扩展名
var imageFormats = map[string]struct {
	mime string
	ext  string
}{
	"jpeg": {mime: "image/jpeg", ext: ".jpg"},
	"png":  {mime: "image/png", ext: ".png"},
	"gif":  {mime: "image/gif", ext: ".gif"},
	"webp": {mime: "image/webp", ext: ".webp"},
}

// UploadOptions 上传目录与限制
type UploadOptions struct {
	Dir          string
	URLPath      string
	MaxSize      int64
	AllowedTypes []string
}

// UploadService 保存文章配图。文件内容必须能被解码为图片，扩展名由实际格式决定。
type UploadService struct {
	dir     string
	urlPath string
	maxSize int64
	allowed map[string]bool
	clock   clock.Clock
}

// NewUploadService 创建 UploadService
func NewUploadService(options UploadOptions, clk clock.Clock) *UploadService {
	dir := strings.TrimSpace(options.Dir)
	if dir == "" {
		dir = "public/uploads"
	}
	urlPath := "/" + strings.Trim(strings.TrimSpace(options.URLPath), "/")
	if urlPath == "/" {
		urlPath = "/uploads"
	}
	maxSize := options.MaxSize
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	allowed := make(map[string]bool)
	for _, t := range options.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	if len(allowed) == 0 {
		for _, format := range imageFormats {
			allowed[format.mime] = true
		}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &UploadService{dir: dir, urlPath: urlPath, maxSize: maxSize, allowed: allowed, clock: clk}
}

// Dir 返回上传目录
func (s *UploadService) Dir() string {
	return s.dir
}

// URLPath 返回上传文件的访问前缀
func (s *UploadService) URLPath() string {
	return s.urlPath
}

// MaxSize 返回单个文件大小上限
func (s *UploadService) MaxSize() int64 {
	return s.maxSize
}

// SaveImage 校验并保存上传图片，返回可访问的 URL 路径
func (s *UploadService) SaveImage(file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", ErrImageUnsupported
	}
	if file.Size > s.maxSize {
		return "", ErrImageTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	_, format, err := image.DecodeConfig(src)
	if err != nil {
		return "", ErrImageUnsupported
	}
	meta, ok := imageFormats[format]
	if !ok || !s.allowed[meta.mime] {
		return "", ErrImageUnsupported
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s%s", s.clock.Now().Format("20060102"), uuid.New().String(), meta.ext)
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	written, copyErr := io.Copy(dst, io.LimitReader(src, s.maxSize+1))
	closeErr := dst.Close()
	if copyErr != nil || closeErr != nil || written > s.maxSize {
		_ = os.Remove(filepath.Join(s.dir, name))
		if written > s.maxSize {
			return "", ErrImageTooLarge
		}
		if copyErr != nil {
			return "", fmt.Errorf("save upload: %w", copyErr)
		}
		return "", fmt.Errorf("save upload: %w", closeErr)
	}

	return path.Join(s.urlPath, name), nil
}

// Remove 删除之前保存的图片，非本服务生成的路径会被忽略
func (s *UploadService) Remove(imagePath string) error {
	imagePath = strings.TrimSpace(imagePath)
	prefix := s.urlPath + "/"
	if !strings.HasPrefix(imagePath, prefix) {
		return nil
	}
	name := strings.TrimPrefix(imagePath, prefix)
	if name == "" || filepath.Base(name) != name {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
