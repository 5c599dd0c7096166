package server

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// PageData configures the demo page.
type PageData struct {
	Title       string
	SocketPath  string
	RootTag     string
	Placeholder string
}

// Page renders the editor page. The inline script forwards edits over
// the websocket and swaps in the normalized markup it receives.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if data.RootTag == "" {
			data.RootTag = "div"
		}
		_, err := fmt.Fprintf(w, pageTemplate,
			templ.EscapeString(data.Title),
			templ.EscapeString(data.RootTag),
			templ.EscapeString(data.Placeholder),
			templ.EscapeString(data.RootTag),
			templ.EscapeString(data.SocketPath),
		)
		return err
	})
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
.editor { max-width: 48rem; margin: 2rem auto; font-family: sans-serif; }
.placeholder::before { content: attr(data-placeholder); color: #999; }
.overlays { position: fixed; right: 1rem; top: 1rem; }
.slash-menu-item { cursor: pointer; padding: .25rem .5rem; }
</style>
</head>
<body>
<%s id="editor" class="editor" contenteditable="true" data-placeholder="%s"></%s>
<div id="overlays" class="overlays"></div>
<pre id="report"></pre>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "%s");
  var editor = document.getElementById("editor");
  var overlays = document.getElementById("overlays");
  var report = document.getElementById("report");
  function send(msg) { ws.send(JSON.stringify(msg)); }
  function blockIndex() {
    var sel = window.getSelection();
    var n = sel && sel.anchorNode;
    while (n && n.parentNode !== editor) { n = n.parentNode; }
    return n ? Array.prototype.indexOf.call(editor.children, n) : 0;
  }
  ws.onopen = function () { send({type: "load", html: editor.innerHTML}); };
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    if (msg.type === "error") { report.textContent = msg.message; return; }
    if (editor.innerHTML !== msg.html) { editor.innerHTML = msg.html; }
    overlays.innerHTML = msg.overlay || "";
    report.textContent = msg.corrections ? JSON.stringify(msg.report, null, 2) : "";
  };
  editor.addEventListener("keydown", function (ev) {
    if (ev.key === "/") { send({type: "slash", index: blockIndex()}); }
    if (ev.key === "Escape") { send({type: "key", key: "Escape"}); }
  });
  editor.addEventListener("input", function () { send({type: "load", html: editor.innerHTML}); });
  overlays.addEventListener("click", function (ev) {
    var item = ev.target.closest("[data-item]");
    if (item) { send({type: "apply", index: blockIndex(), item: item.dataset.item}); }
  });
})();
</script>
</body>
</html>
`
