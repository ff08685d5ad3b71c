package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultModel is the model used when a submission names none.
const DefaultModel = "base"

// DefaultBaseURL is the upstream location for official whisper.cpp models.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// KnownModels lists the catalog names accepted by `models download --all`,
// smallest first.
var KnownModels = []string{
	"tiny.en", "tiny",
	"base.en", "base",
	"small.en", "small",
	"medium.en", "medium",
	"large-v1", "large-v2", "large-v3",
	"large-v3-turbo",
}

// DownloadResult describes the state of the ensured model file.
type DownloadResult struct {
	Path    string
	Existed bool
}

// Downloader retrieves whisper.cpp ggml models into a local cache
// directory.
type Downloader struct {
	dest    string
	baseURL string
	client  *http.Client
}

// NewDownloader initialises a Downloader targeting the provided destination directory.
func NewDownloader(dest string) *Downloader {
	return &Downloader{
		dest:    dest,
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Minute,
		},
	}
}

// ModelPath returns the local file path a model name resolves to, whether
// or not the file exists yet.
func (d *Downloader) ModelPath(modelName string) string {
	return filepath.Join(d.dest, NormalizeModelName(modelName))
}

// EnsureModel guarantees the named model exists locally and returns its location.
func (d *Downloader) EnsureModel(ctx context.Context, modelName string) (DownloadResult, error) {
	if err := os.MkdirAll(d.dest, 0o755); err != nil {
		return DownloadResult{}, err
	}

	localPath := d.ModelPath(modelName)
	if info, err := os.Stat(localPath); err == nil && info.Size() > 0 {
		return DownloadResult{Path: localPath, Existed: true}, nil
	}

	url := d.baseURL + filepath.Base(localPath)
	tmpPath := localPath + ".downloading"

	if err := d.download(ctx, url, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return DownloadResult{}, err
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		return DownloadResult{}, err
	}

	return DownloadResult{Path: localPath, Existed: false}, nil
}

// ListLocal returns the model files already present in the cache
// directory, sorted by name.
func (d *Downloader) ListLocal() ([]string, error) {
	entries, err := os.ReadDir(d.dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var models []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".bin") {
			continue
		}
		models = append(models, entry.Name())
	}
	sort.Strings(models)
	return models, nil
}

func (d *Downloader) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model: %s", resp.Status)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return err
	}

	log.Info().Str("url", url).Str("path", destPath).Int64("bytes", written).Msg("downloaded whisper model")
	return nil
}

// NormalizeModelName maps a bare catalog name like "base" to the on-disk
// ggml file name "ggml-base.bin".
func NormalizeModelName(name string) string {
	normalized := strings.TrimSpace(name)
	if normalized == "" {
		normalized = DefaultModel
	}
	if !strings.HasSuffix(normalized, ".bin") {
		normalized += ".bin"
	}
	if !strings.HasPrefix(normalized, "ggml-") {
		normalized = "ggml-" + normalized
	}
	return normalized
}
