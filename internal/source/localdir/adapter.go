package localdir

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/imageguard/internal/source"
)

// ManifestFileName is the optional JSONL manifest naming content ids.
const ManifestFileName = "manifest.jsonl"

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// ManifestItem represents a line of manifest.jsonl.
type ManifestItem struct {
	ContentID string `json:"content_id"`
	Filename  string `json:"filename"`
	URL       string `json:"url"`
}

// Adapter implements source.Source for a local directory. With a manifest
// the listed entries are used; otherwise every image file in the directory.
type Adapter struct {
	dir    string
	items  []source.ImageItem
	loaded bool
}

// NewAdapter creates a new directory adapter.
func NewAdapter(dir string) *Adapter {
	return &Adapter{dir: dir}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "localdir:" + filepath.Base(a.dir)
}

// FetchBatch returns up to limit items after cursor, an index string.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.ImageItem, string, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to load items: %w", err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
	}
	if startIndex >= len(a.items) {
		return []source.ImageItem{}, "", nil
	}

	endIndex := startIndex + limit
	if endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}
	return a.items[startIndex:endIndex], nextCursor, nil
}

func (a *Adapter) loadItems() error {
	manifestPath := filepath.Join(a.dir, ManifestFileName)
	if _, err := os.Stat(manifestPath); err == nil {
		return a.loadManifest(manifestPath)
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return err
	}
	a.items = []source.ImageItem{}
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		a.items = append(a.items, source.ImageItem{LocalPath: filepath.Join(a.dir, e.Name())})
	}
	return nil
}

func (a *Adapter) loadManifest(manifestPath string) error {
	file, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	a.items = []source.ImageItem{}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			// Skip malformed lines
			continue
		}

		img := source.ImageItem{ContentID: item.ContentID, URL: item.URL}
		if item.Filename != "" {
			path := filepath.Join(a.dir, filepath.Base(item.Filename))
			if _, err := os.Stat(path); err == nil {
				img.LocalPath = path
			}
		}
		if img.LocalPath == "" && img.URL == "" {
			continue
		}
		a.items = append(a.items, img)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading manifest: %w", err)
	}

	sort.SliceStable(a.items, func(i, j int) bool {
		return a.items[i].ContentID < a.items[j].ContentID
	})
	return nil
}
