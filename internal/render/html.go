package render

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dshills/contractcheck/internal/schema"
)

// md converts report Markdown to HTML. Raw HTML in the source is dropped, so
// model text cannot inject markup.
var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

const htmlStyle = `body{font-family:-apple-system,"Segoe UI",Helvetica,Arial,sans-serif;max-width:52rem;margin:2rem auto;padding:0 1rem;color:#1f2937;line-height:1.5}
h1{color:#1f2937}h2{color:#374151;border-bottom:1px solid #e5e7eb;padding-bottom:.3rem}h3{color:#4b5563}
table{border-collapse:collapse}th,td{border:1px solid #d1d5db;padding:.3rem .8rem}
blockquote{border-left:4px solid #f59e0b;margin:0;padding:.2rem 1rem;background:#fffbeb}
pre{background:#f3f4f6;padding:.8rem;overflow-x:auto}`

// RenderHTML produces a standalone HTML page of the Markdown report.
func RenderHTML(env *schema.Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("render: nil envelope")
	}
	var body bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(env)), &body); err != nil {
		return nil, fmt.Errorf("render: html convert: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(pageTitle(env)))
	fmt.Fprintf(&out, "<style>%s</style>\n</head>\n<body>\n", htmlStyle)
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

func pageTitle(env *schema.Envelope) string {
	if t := env.ContractType.ContractType; t != "" && !env.ContractType.Degraded() {
		return "Contract Analysis Report: " + t
	}
	return "Contract Analysis Report"
}
