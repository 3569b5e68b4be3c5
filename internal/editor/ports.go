package editor

import (
	"context"
	"os"
	"sync"

	"github.com/easelkit/easel/pkg/schema"
)

// ClipboardPort carries serialized graphs between copy and paste. Two
// implementations are chosen at construction; the editor only sees the
// interface.
type ClipboardPort interface {
	Write(ctx context.Context, text string) error
	Read(ctx context.Context) (string, error)
}

// MemoryClipboard is the in-process clipboard used by the panel bridge and
// tests. Safe for concurrent use.
type MemoryClipboard struct {
	mu   sync.Mutex
	text string
	set  bool
}

// NewMemoryClipboard returns an empty in-memory clipboard.
func NewMemoryClipboard() *MemoryClipboard {
	return &MemoryClipboard{}
}

func (c *MemoryClipboard) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return schema.NewError(schema.ErrCodeClipboard, "clipboard write canceled").WithCause(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	c.set = true
	return nil
}

func (c *MemoryClipboard) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", schema.NewError(schema.ErrCodeClipboard, "clipboard read canceled").WithCause(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return "", schema.NewError(schema.ErrCodeClipboard, "clipboard is empty")
	}
	return c.text, nil
}

// FileClipboard shares a clipboard across processes through a file. Used
// when several easel commands cooperate on one machine.
type FileClipboard struct {
	path string
}

// NewFileClipboard returns a clipboard backed by path.
func NewFileClipboard(path string) *FileClipboard {
	return &FileClipboard{path: path}
}

func (c *FileClipboard) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return schema.NewError(schema.ErrCodeClipboard, "clipboard write canceled").WithCause(err)
	}
	if err := os.WriteFile(c.path, []byte(text), 0o600); err != nil {
		return schema.NewError(schema.ErrCodeClipboard, "clipboard file is not writable").WithCause(err)
	}
	return nil
}

func (c *FileClipboard) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", schema.NewError(schema.ErrCodeClipboard, "clipboard read canceled").WithCause(err)
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeClipboard, "clipboard file is not readable").WithCause(err)
	}
	return string(data), nil
}

// CanvasHost is the viewport surface the canvas frontend exposes to the
// editor: point projection into model space plus the last known transform
// and container size for the geometric fallback.
type CanvasHost interface {
	// ProjectToModel converts a screen point into model coordinates.
	ProjectToModel(p schema.Position) (schema.Position, bool)
	// ViewportTransform returns the current pan offset and zoom.
	ViewportTransform() (x, y, zoom float64, ok bool)
	// ContainerSize returns the canvas container size in screen pixels.
	ContainerSize() (width, height float64, ok bool)
}

// StaticCanvas is a CanvasHost fed by explicit updates, used by the panel
// bridge (the browser reports viewport changes) and by tests.
type StaticCanvas struct {
	mu           sync.RWMutex
	x, y, zoom   float64
	w, h         float64
	hasTransform bool
	hasSize      bool
}

// NewStaticCanvas returns a canvas with no known viewport.
func NewStaticCanvas() *StaticCanvas {
	return &StaticCanvas{}
}

// SetViewport records the current pan offset and zoom.
func (c *StaticCanvas) SetViewport(x, y, zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x, c.y, c.zoom = x, y, zoom
	c.hasTransform = true
}

// SetContainerSize records the canvas container size.
func (c *StaticCanvas) SetContainerSize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w, c.h = width, height
	c.hasSize = true
}

func (c *StaticCanvas) ProjectToModel(p schema.Position) (schema.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasTransform || c.zoom == 0 {
		return schema.Position{}, false
	}
	return schema.Position{X: (p.X - c.x) / c.zoom, Y: (p.Y - c.y) / c.zoom}, true
}

func (c *StaticCanvas) ViewportTransform() (float64, float64, float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.x, c.y, c.zoom, c.hasTransform
}

func (c *StaticCanvas) ContainerSize() (float64, float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.w, c.h, c.hasSize
}

// Confirmer approves destructive operations before they run. The panel
// forwards the browser's answer; the CLI prompts on the terminal.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, prompt string) bool

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}
