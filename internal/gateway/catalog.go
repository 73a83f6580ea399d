// ABOUTME: Human-readable tool catalog rendered from registered descriptors
// ABOUTME: Builds markdown per pack and converts it to HTML with goldmark for GET /tools

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/repairdesk-gateway/internal/packs"
)

var catalogMarkdown = goldmark.New(goldmark.WithExtensions(extension.Table))

var catalogPage = template.Must(template.New("tools").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
table { border-collapse: collapse; margin: 0.5rem 0 1.5rem; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
code { background: #f4f4f4; padding: 0 0.2rem; }
</style>
</head>
<body>
{{.Content}}
</body>
</html>
`))

// inputSchema is the subset of JSON Schema the catalog displays.
type inputSchema struct {
	Properties map[string]struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"properties"`
	Required []string `json:"required"`
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// CatalogMarkdown renders the registered tools as a markdown document.
func CatalogMarkdown(infos []packs.BuiltinPackInfo, endpoint string) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Repair desk tools\n\n")
	if endpoint != "" {
		fmt.Fprintf(&buf, "JSON-RPC endpoint: `%s`\n\n", endpoint)
	}

	for _, info := range infos {
		fmt.Fprintf(&buf, "## Pack `%s`\n\n", info.ID)
		for _, def := range info.Tools {
			fmt.Fprintf(&buf, "### `%s`\n\n%s\n\n", def.Name, strings.TrimSpace(def.Description))
			writeParams(&buf, def.InputSchema)
		}
	}
	return buf.Bytes()
}

func writeParams(buf *bytes.Buffer, raw json.RawMessage) {
	var schema inputSchema
	if len(raw) == 0 || json.Unmarshal(raw, &schema) != nil || len(schema.Properties) == 0 {
		buf.WriteString("_No parameters._\n\n")
		return
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	buf.WriteString("| Parameter | Type | Required | Description |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, name := range names {
		prop := schema.Properties[name]
		required := ""
		if slices.Contains(schema.Required, name) {
			required = "yes"
		}
		fmt.Fprintf(buf, "| `%s` | %s | %s | %s |\n", name, escapeCell(prop.Type), required, escapeCell(prop.Description))
	}
	buf.WriteString("\n")
}

// RenderCatalogHTML converts catalog markdown into a standalone HTML page.
func RenderCatalogHTML(md []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := catalogMarkdown.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	var page bytes.Buffer
	err := catalogPage.Execute(&page, struct {
		Title   string
		Content template.HTML
	}{
		Title:   ServiceName + " tools",
		Content: template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return page.Bytes(), nil
}

// handleTools serves the catalog as HTML, or markdown when asked for it.
func (g *Gateway) handleTools(w http.ResponseWriter, r *http.Request) {
	md := CatalogMarkdown(g.registry.ListBuiltinPacks(), g.mcpEndpoint)

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write(md)
		return
	}

	page, err := RenderCatalogHTML(md)
	if err != nil {
		g.logger.Error("failed to render tool catalog", "error", err)
		http.Error(w, "failed to render tool catalog", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
