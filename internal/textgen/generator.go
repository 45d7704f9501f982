// Package textgen produces titles, descriptions, and thumbnails for clips
// and compilations. The pipeline only depends on the Generator interface;
// the OpenAI implementation lives in openai.go.
package textgen

import "context"

type Generator interface {
	// Title writes a short video title from a combo prompt.
	Title(ctx context.Context, prompt string) (string, error)
	// Description expands a title into an upload description body.
	Description(ctx context.Context, title string) (string, error)
	// CompilationTitle writes a title covering all the given clip titles.
	CompilationTitle(ctx context.Context, titles []string) (string, error)
	// Thumbnail renders a thumbnail image for the title into destDir and
	// returns its path, or "" when generation is unavailable.
	Thumbnail(ctx context.Context, title, destDir string) (string, error)
}
