package view

import (
	"bytes"
	"html/template"
)

// WarningPageData feeds the interstitial shown before links flagged with a warning.
type WarningPageData struct {
	Slug        string
	TargetURL   string
	ContinueURL string
	// ExpiresIn is the lifetime of the continue link in whole seconds.
	ExpiresIn int
}

var warningPageTmpl = template.Must(template.New("warning_page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>Check this link before you continue</title>
	<style>
		:root {
			--bg: #0b0d12;
			--card: #151922;
			--border: #2a3140;
			--text: #e8ebf2;
			--muted: #9aa3b5;
			--warn: #fbbf24;
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: var(--bg);
			color: var(--text);
		}
		.card {
			width: min(520px, 92vw);
			padding: 32px;
			border-radius: 16px;
			background: var(--card);
			border: 1px solid var(--border);
		}
		h1 { font-size: 1.4rem; margin: 0 0 8px; color: var(--warn); }
		p { color: var(--muted); }
		.target {
			margin: 20px 0;
			padding: 16px;
			border-radius: 12px;
			border: 1px solid var(--border);
			word-break: break-all;
		}
		a.button {
			display: inline-block;
			padding: 12px 24px;
			border-radius: 999px;
			background: var(--warn);
			color: #111;
			font-weight: 600;
			text-decoration: none;
		}
		.hint { font-size: 0.85rem; margin-top: 16px; }
	</style>
</head>
<body>
	<main class="card">
		<h1>Heads up</h1>
		<p>The owner of <strong>/{{.Slug}}</strong> marked its destination as something you may want to review first.</p>
		<div class="target">{{.TargetURL}}</div>
		<a class="button" href="{{.ContinueURL}}" rel="noopener noreferrer">Continue to destination</a>
		{{if gt .ExpiresIn 0}}<p class="hint">This button stays valid for {{.ExpiresIn}} seconds. Reload the page if it expires.</p>{{end}}
	</main>
</body>
</html>
`))

// RenderWarningPage expands the warning interstitial.
func RenderWarningPage(data WarningPageData) (string, error) {
	var buf bytes.Buffer
	if err := warningPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
