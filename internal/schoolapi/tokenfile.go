package schoolapi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileTokenProvider reads the access token from a file and hot reloads it
// when the file changes, so credentials can rotate without a restart.
type FileTokenProvider struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	token string
}

func NewFileTokenProvider(path string, logger *slog.Logger) (*FileTokenProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	provider := &FileTokenProvider{
		path:    path,
		logger:  logger,
		watcher: fileWatcher,
	}
	if err := provider.reload(); err != nil {
		fileWatcher.Close()
		return nil, err
	}
	return provider, nil
}

func (p *FileTokenProvider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Start watches the token file's directory until ctx is cancelled. Watching
// the directory rather than the file survives the rename-and-replace writes
// most secret managers do.
func (p *FileTokenProvider) Start(ctx context.Context) error {
	defer p.watcher.Close()

	if err := p.watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("watch token directory: %w", err)
	}
	p.logger.Info("token watcher started", "path", p.path)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("token watcher stopped")
			return nil
		case event := <-p.watcher.Events:
			p.handleEvent(event)
		case err := <-p.watcher.Errors:
			if err != nil {
				p.logger.Error("token watcher error", "error", err)
			}
		}
	}
}

func (p *FileTokenProvider) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(p.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if err := p.reload(); err != nil {
		p.logger.Error("token reload failed", "path", p.path, "error", err)
		return
	}
	p.logger.Info("access token reloaded", "path", p.path)
}

func (p *FileTokenProvider) reload() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(raw))

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	return nil
}
