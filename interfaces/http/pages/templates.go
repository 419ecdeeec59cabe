package pages

const pickerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Blueprints</title>
</head>
<body>
<h1>Blueprints</h1>
<form method="post" action="/api/v2/blueprints" enctype="multipart/form-data">
<input type="file" name="file" accept=".png,.jpg,.jpeg">
<button type="submit">Upload</button>
</form>
<h2>Drawings</h2>
{{if .Diagrams}}<ul class="diagrams">
{{range .Diagrams}}<li><a href="/drawing/{{.ID}}">{{.Title}}</a> <span class="node-count">{{.NodeCount}} nodes</span></li>
{{end}}</ul>{{else}}<p>No drawings yet.</p>{{end}}
<h2>Uploaded files</h2>
{{if .Blueprints}}<ul class="blueprints">
{{range .Blueprints}}<li><a href="/board?blueprintUrl={{.URL}}">{{.Pathname}}</a></li>
{{end}}</ul>{{else}}<p>No blueprints uploaded.</p>{{end}}
</body>
</html>
`

const drawingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body data-api="/api/v2"{{if .DiagramID}} data-diagram-id="{{.DiagramID}}"{{end}} data-blueprint-url="{{.BlueprintURL}}">
<header>
<a href="/">All blueprints</a>
<h1>{{.Title}}</h1>
{{if .Transient}}<p class="transient">This board is not saved.</p>{{end}}
</header>
<nav class="tools">
<button data-tool="move">Move</button>
<button data-tool="symbol-placement">Place symbol</button>
</nav>
<aside class="palette">
<ul>
{{range .Symbols}}<li data-symbol-id="{{.ID}}" title="{{.Description}}">{{.Name}}</li>
{{end}}</ul>
</aside>
<main>
<object class="canvas" type="image/svg+xml" data="{{.CanvasURL}}"></object>
</main>
</body>
</html>
`

const notFoundHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Not found</title>
</head>
<body>
<h1>Not found</h1>
<p>{{.Message}}</p>
<p><a href="/">All blueprints</a></p>
</body>
</html>
`
