package web

import (
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Page.Title}}</title>
<style>
body{margin:0;font-family:sans-serif;background:#0d1117;color:#fff;text-align:center}
.container{min-height:100vh;display:flex;flex-direction:column;justify-content:space-between}
.title{font-size:48px;font-weight:bold;margin-top:80px}
.subtitle{font-size:24px}
.button{padding:12px 28px;border:0;border-radius:6px;font-size:18px;font-weight:bold;cursor:pointer;background:linear-gradient(to right,#ff8867,#ff52ff);color:#fff}
.notice{margin:24px auto;max-width:480px;padding:12px;border-radius:6px;background:#6e2a2a}
.account{color:#8b949e}
.footer{padding:24px}
.footer a{color:#fff}
</style>
</head>
<body>
<div class="container">
<header>
<p class="title">🧠 {{.Page.Title}}</p>
<p class="subtitle">{{.Page.Subtitle}}</p>
{{- if .Page.Notice}}
<div class="notice" role="alert">{{.Page.Notice}}</div>
{{- end}}
{{- if eq .Page.Action "connect"}}
<form method="post" action="/connect"><button class="button" type="submit">{{.Page.Button}}</button></form>
{{- else if eq .Page.Action "join"}}
<form method="post" action="/join"><button class="button" type="submit">{{.Page.Button}}</button></form>
{{- else}}
<button class="button" disabled>{{.Page.Button}}</button>
{{- end}}
{{- if .Page.Account}}
<p class="account">{{.Page.Account}} on {{.Page.Network}}</p>
{{- end}}
</header>
<div class="footer"><a href="{{.Page.FooterURL}}" target="_blank" rel="noreferrer">{{.Page.Footer}} {{.Page.FooterHandle}}</a></div>
</div>
</body>
</html>
`

// templateRenderer adapts html/template to echo.Renderer.
type templateRenderer struct {
	templates *template.Template
}

func newTemplateRenderer() *templateRenderer {
	return &templateRenderer{
		templates: template.Must(template.New("page").Parse(pageTemplate)),
	}
}

// Render implements echo.Renderer.
func (r *templateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
