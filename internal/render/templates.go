package render

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{margin:0;font-family:Inter,Roboto,sans-serif;color:#1f2933}
.mk-section{padding:32px 48px}
.mk-columns{display:flex;gap:32px}
.mk-column{flex:1}
.mk-layout-main-sidebar .mk-column-sidebar{flex:0 0 30%}
.mk-watermark{position:fixed;bottom:16px;right:16px;opacity:.4;font-size:12px}
</style>
</head>
<body class="mk-theme-{{.Theme}}">
{{template "body" .}}
</body>
</html>
{{define "body"}}<main class="mk-kit">
{{range .Sections}}<section id="{{.ID}}" class="mk-section mk-section-{{.Type}} mk-layout-{{.Layout}}">
<div class="mk-columns">{{range .Columns}}
<div class="mk-column mk-column-{{.Name}}">{{range .Components}}
{{.}}{{end}}
</div>{{end}}
</div>
</section>
{{end}}{{if .Watermark}}<div class="mk-watermark">Created with Media Kit Builder</div>
{{end}}</main>{{end}}`

const componentTemplates = `
{{define "component/hero"}}<header class="mk-hero" id="{{.ID}}">
{{with .Data.image}}<img src="{{text .}}" alt="">{{end}}
{{with .Data.name}}<h1>{{text .}}</h1>{{end}}
{{with .Data.title}}<h2>{{text .}}</h2>{{end}}
{{with .Data.tagline}}<p class="mk-tagline">{{text .}}</p>{{end}}
</header>{{end}}

{{define "component/biography"}}<article class="mk-biography" id="{{.ID}}">{{markdown .Data.content}}</article>{{end}}

{{define "component/guest-intro"}}<article class="mk-guest-intro" id="{{.ID}}">{{markdown .Data.intro}}</article>{{end}}

{{define "component/topics"}}<ul class="mk-topics" id="{{.ID}}">{{range list .Data.topics}}<li>{{.}}</li>{{end}}</ul>{{end}}

{{define "component/questions"}}<ol class="mk-questions" id="{{.ID}}">{{range list .Data.questions}}<li>{{.}}</li>{{end}}</ol>{{end}}

{{define "component/social"}}<ul class="mk-social" id="{{.ID}}">{{range list .Data.links}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>{{end}}

{{define "component/contact"}}<div class="mk-contact" id="{{.ID}}">
{{with .Data.email}}<a href="mailto:{{text .}}">{{text .}}</a>{{end}}
{{with .Data.website}}<a href="{{text .}}">{{text .}}</a>{{end}}
</div>{{end}}

{{define "component/call-to-action"}}<a class="mk-cta" id="{{.ID}}" href="{{text .Data.url}}">{{text .Data.label}}</a>{{end}}

{{define "component/video-intro"}}<div class="mk-video" id="{{.ID}}"><a href="{{text .Data.url}}">{{text .Data.url}}</a></div>{{end}}

{{define "component/podcast-player"}}<div class="mk-podcast" id="{{.ID}}"><a href="{{text .Data.feed}}">{{text .Data.feed}}</a></div>{{end}}

{{define "component/generic"}}<div class="mk-component mk-{{.Type}}" id="{{.ID}}"><dl>{{$data := .Data}}{{range .Keys}}
<dt>{{.}}</dt><dd>{{with list (index $data .)}}{{range .}}{{.}} {{end}}{{else}}{{text (index $data .)}}{{end}}</dd>{{end}}
</dl></div>{{end}}
`
