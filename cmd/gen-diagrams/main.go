// gen-diagrams renders every example project's flow.json into docs/assets.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/flowcode/internal/diagram"
	"github.com/rendis/flowcode/pkg/schema"
)

func main() {
	flows, err := filepath.Glob(filepath.Join("examples", "*", "flow.json"))
	if err != nil || len(flows) == 0 {
		fmt.Fprintln(os.Stderr, "no examples/*/flow.json found; run from the repository root")
		os.Exit(1)
	}

	outDir := filepath.Join("docs", "assets")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", outDir, err)
		os.Exit(1)
	}

	for _, path := range flows {
		name := filepath.Base(filepath.Dir(path))
		if err := render(context.Background(), path, name, outDir); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			os.Exit(1)
		}
	}
}

func render(ctx context.Context, path, name, outDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := schema.ParseGraphDocument(data)
	if err != nil {
		return err
	}
	model, err := diagram.Build(doc, name)
	if err != nil {
		return err
	}

	ascii := diagram.RenderASCII(model)
	if err := os.WriteFile(filepath.Join(outDir, name+"-ascii.txt"), []byte(ascii), 0o644); err != nil {
		return err
	}
	fmt.Printf("=== %s (ASCII) ===\n%s\n", name, ascii)

	mermaid := diagram.RenderMermaid(model)
	if err := os.WriteFile(filepath.Join(outDir, name+"-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"), 0o644); err != nil {
		return err
	}

	// PNG needs the embedded graphviz runtime; a failure there is reported, not fatal.
	png, err := diagram.RenderImage(ctx, model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: image: %v\n", name, err)
		return nil
	}
	pngPath := filepath.Join(outDir, name+".png")
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		return err
	}
	fmt.Printf("Written: %s (%d bytes)\n", pngPath, len(png))
	return nil
}
