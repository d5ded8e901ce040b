package corpus

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// loadManuals parses every .pdf file in dir into a KB article. The filename
// (without extension) becomes the title. A missing directory is not an error;
// an unreadable PDF is skipped with a warning so one bad manual cannot block
// startup.
func loadManuals(dir string) ([]Article, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manuals directory: %w", err)
	}

	var articles []Article
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		text, err := extractPDFText(path)
		if err != nil {
			slog.Warn("skipping unreadable PDF manual", "path", path, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			slog.Warn("skipping PDF manual with no extractable text", "path", path)
			continue
		}
		title := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		articles = append(articles, Article{
			Title:     title,
			URL:       "file://" + path,
			Category:  "Manuals",
			Content:   collapseSpace(text),
			ScrapedAt: time.Now().UTC(),
		})
	}
	return articles, nil
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return string(data), nil
}
