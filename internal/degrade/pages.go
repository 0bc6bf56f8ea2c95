package degrade

import (
	"html/template"

	"github.com/eventhub/edge-gateway/internal/templates"
)

// Template store keys. Operators can override any theme by placing a file
// with the same name in the template directory.
const (
	keyStandard = "error_standard.html"
	keyKiosk    = "error_kiosk.html"
	keyNotFound = "error_notfound.html"
)

// pageData is the data exposed to error page templates.
type pageData struct {
	Title          string
	Heading        string
	Message        string
	CorrID         string
	Retryable      bool
	Routes         []string
	RefreshSeconds int
}

const standardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#f6f7f9;color:#1f2430;margin:0;
display:flex;min-height:100vh;align-items:center;justify-content:center}
.card{background:#fff;border-radius:12px;box-shadow:0 4px 16px rgba(0,0,0,.08);
padding:2.5rem 3rem;max-width:34rem;text-align:center}
h1{font-size:1.4rem;margin:0 0 .75rem}
p{margin:.5rem 0;line-height:1.5}
.corr{font-family:monospace;font-size:.85rem;color:#7a8194;margin-top:1.5rem}
button{margin-top:1.25rem;padding:.6rem 1.6rem;border:0;border-radius:8px;
background:#3b6ef6;color:#fff;font-size:1rem;cursor:pointer}
</style>
</head>
<body>
<div class="card">
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
{{if .Retryable}}<button onclick="location.reload()">Try again</button>{{end}}
<p class="corr">Reference: {{.CorrID}}</p>
</div>
</body>
</html>`

const kioskHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta http-equiv="refresh" content="{{.RefreshSeconds}}">
<style>
body{font-family:system-ui,sans-serif;background:#101418;color:#e8ecf1;margin:0;
display:flex;min-height:100vh;align-items:center;justify-content:center;text-align:center}
h1{font-size:2.4rem;margin:0 0 1rem}
p{font-size:1.3rem;margin:.5rem 0}
.count{font-size:1.1rem;color:#8fa3b8;margin-top:2rem}
.corr{font-family:monospace;font-size:.9rem;color:#55636f;margin-top:1rem}
</style>
</head>
<body>
<div>
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
<p class="count">Reloading in <span id="n">{{.RefreshSeconds}}</span>s&hellip;</p>
<p class="corr">{{.CorrID}}</p>
</div>
<script>
var n={{.RefreshSeconds}},el=document.getElementById("n");
setInterval(function(){if(n>0){n--;el.textContent=n;}},1000);
</script>
</body>
</html>`

const notFoundHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#f6f7f9;color:#1f2430;margin:0;
display:flex;min-height:100vh;align-items:center;justify-content:center}
.card{background:#fff;border-radius:12px;box-shadow:0 4px 16px rgba(0,0,0,.08);
padding:2.5rem 3rem;max-width:34rem}
h1{font-size:1.4rem;margin:0 0 .75rem}
ul{columns:2;padding-left:1.2rem}
li a{color:#3b6ef6;text-decoration:none}
.corr{font-family:monospace;font-size:.85rem;color:#7a8194;margin-top:1.5rem}
</style>
</head>
<body>
<div class="card">
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
<p>Available pages:</p>
<ul>
{{range .Routes}}<li><a href="/{{.}}">{{.}}</a></li>
{{end}}</ul>
<p class="corr">Reference: {{.CorrID}}</p>
</div>
</body>
</html>`

// loadTemplates compiles the three themes, preferring store overrides over
// the embedded defaults. A broken override falls back to the default.
func loadTemplates(store *templates.Store) map[string]*template.Template {
	compiled := make(map[string]*template.Template, 3)
	defaults := map[string]string{
		keyStandard: standardHTML,
		keyKiosk:    kioskHTML,
		keyNotFound: notFoundHTML,
	}
	for key, fallback := range defaults {
		text := fallback
		if override, ok := store.Get(key); ok {
			text = override
		}
		tmpl, err := template.New(key).Parse(text)
		if err != nil {
			tmpl = template.Must(template.New(key).Parse(fallback))
		}
		compiled[key] = tmpl
	}
	return compiled
}
