package service

import (
	"bytes"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const (
	maxTitleLength   = 200
	maxContentLength = 5000

	maxSanitizePasses = 8
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithXHTML()),
	)
	outputPolicy = bluemonday.UGCPolicy()
	inputPolicy  = bluemonday.StrictPolicy()
)

// SanitizeText 去除用户输入中的全部 HTML 标签并裁剪首尾空白。
// 实体编码的标签解码后会再次净化，直到结果不再变化；
// 多层编码超过 maxSanitizePasses 时保留转义后的文本。
func SanitizeText(input string) string {
	text := input
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(inputPolicy.Sanitize(text))
		if next == text {
			return strings.TrimSpace(next)
		}
		text = next
	}
	return strings.TrimSpace(inputPolicy.Sanitize(text))
}

// RenderMarkdown 将文章正文渲染为经过净化的 HTML。
func RenderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return string(outputPolicy.SanitizeBytes(buf.Bytes())), nil
}

func validateTitle(title string) (string, error) {
	cleaned := SanitizeText(title)
	if utf8.RuneCountInString(cleaned) > maxTitleLength {
		return "", ErrTitleTooLong
	}
	return cleaned, nil
}

func validateContent(content string) (string, error) {
	cleaned := SanitizeText(content)
	if cleaned == "" {
		return "", ErrContentRequired
	}
	if utf8.RuneCountInString(cleaned) > maxContentLength {
		return "", ErrContentTooLong
	}
	return cleaned, nil
}
