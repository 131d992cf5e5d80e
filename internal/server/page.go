package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/Zachdehooge/lsr-dashboard/internal/settings"
	"github.com/Zachdehooge/lsr-dashboard/internal/state"
	"github.com/Zachdehooge/lsr-dashboard/internal/urlcodec"
)

type pageLayer struct {
	Name string
	On   bool
}

type pageData struct {
	State  state.Snapshot
	Query  string
	Layers []pageLayer
}

func parsePage() (*template.Template, error) {
	tmpl, err := template.New("dashboard").Funcs(template.FuncMap{
		"toJSON": toJSON,
	}).Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	return tmpl, nil
}

func (s *Server) renderPage(w io.Writer, snap state.Snapshot) error {
	layers := settings.Decode(snap.LayerSettings, settings.Vector{})
	data := pageData{
		State: snap,
		Query: urlcodec.EncodeQuery(snap),
	}
	for f := settings.Flag(0); int(f) < settings.Count; f++ {
		data.Layers = append(data.Layers, pageLayer{Name: f.String(), On: layers[f]})
	}
	return s.page.Execute(w, data)
}

func toJSON(v interface{}) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Local Storm Reports</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #1a1a1a; color: #e0e0e0; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 20px; }
        .panel { background-color: #2a2a2a; border-radius: 5px; padding: 15px; margin-bottom: 15px; }
        .panel h2 { margin-top: 0; font-size: 1.1em; }
        label { margin-right: 12px; }
        .status { font-size: 0.9em; color: #aaa; }
        code { color: #8fd18f; word-break: break-all; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Local Storm Reports</h1>
        <span class="status" id="status">Reloads: 0</span>
    </div>

    <div class="panel">
        <h2>Time window</h2>
        <label>Start <input type="text" id="sts" value="{{.State.STS.Format "2006-01-02T15:04Z"}}"></label>
        <label>End <input type="text" id="ets" value="{{.State.ETS.Format "2006-01-02T15:04Z"}}"></label>
        <label><input type="checkbox" id="realtime" {{if .State.Realtime}}checked{{end}}> Realtime</label>
        <label>Seconds <input type="number" id="seconds" min="1" value="{{.State.Seconds}}"></label>
    </div>

    <div class="panel">
        <h2>Layers</h2>
        {{range .Layers}}<label><input type="checkbox" class="layer" data-layer="{{.Name}}" {{if .On}}checked{{end}}> {{.Name}}</label>
        {{end}}
    </div>

    <div class="panel">
        <h2>Link</h2>
        <code id="link">?{{.Query}}</code>
    </div>

    <script>
        let state = {{toJSON .State}};
        let query = {{.Query}};

        function replaceURL(q) {
            query = q;
            const href = q ? "?" + q : location.pathname;
            history.replaceState(null, "", href);
            document.getElementById("link").textContent = "?" + q;
        }

        function render(s) {
            state = s;
            document.getElementById("sts").value = s.sts.slice(0, 16) + "Z";
            document.getElementById("ets").value = s.ets.slice(0, 16) + "Z";
            document.getElementById("realtime").checked = s.realtime;
            document.getElementById("sts").disabled = s.realtime;
            document.getElementById("ets").disabled = s.realtime;
            if (s.seconds > 0) {
                document.getElementById("seconds").value = s.seconds;
            }
        }

        async function patch(body) {
            const resp = await fetch("/api/state", {
                method: "POST",
                headers: { "Content-Type": "application/json" },
                body: JSON.stringify(body),
            });
            if (!resp.ok) {
                console.warn("state update rejected:", await resp.text());
                return;
            }
            const data = await resp.json();
            render(data.state);
            replaceURL(data.query);
        }

        async function migrate() {
            if (location.hash.split("/").length < 2) {
                return false;
            }
            const resp = await fetch("/api/migrate", {
                method: "POST",
                headers: { "Content-Type": "application/json" },
                body: JSON.stringify({ href: location.href }),
            });
            if (!resp.ok) {
                return false;
            }
            const data = await resp.json();
            if (!data.migrated) {
                return false;
            }
            history.replaceState(null, "", data.href);
            render(data.state);
            replaceURL(data.query);
            return true;
        }

        function layerSettings() {
            let out = "";
            document.querySelectorAll(".layer").forEach(function(el) {
                out += el.checked ? "1" : "0";
            });
            return out;
        }

        function windowFromInputs() {
            return {
                sts: new Date(document.getElementById("sts").value).toISOString(),
                ets: new Date(document.getElementById("ets").value).toISOString(),
            };
        }

        document.getElementById("sts").addEventListener("change", function() { patch(windowFromInputs()); });
        document.getElementById("ets").addEventListener("change", function() { patch(windowFromInputs()); });
        document.getElementById("realtime").addEventListener("change", function(e) {
            const body = { realtime: e.target.checked };
            const seconds = parseInt(document.getElementById("seconds").value, 10);
            if (e.target.checked && seconds > 0) {
                body.seconds = seconds;
            }
            patch(body);
        });
        document.getElementById("seconds").addEventListener("change", function(e) {
            const seconds = parseInt(e.target.value, 10);
            if (seconds > 0) {
                patch({ seconds: seconds });
            }
        });
        document.querySelectorAll(".layer").forEach(function(el) {
            el.addEventListener("change", function() { patch({ layerSettings: layerSettings() }); });
        });

        migrate().then(function(done) {
            if (!done && location.search !== (query ? "?" + query : "")) {
                replaceURL(query);
            }
            render(state);
        });

        let reloads = 0;
        const events = new EventSource("/events");
        events.addEventListener("url", function(e) { replaceURL(JSON.parse(e.data).query); });
        events.addEventListener("state", function(e) { render(JSON.parse(e.data).state); });
        events.addEventListener("reload", function() {
            reloads++;
            document.getElementById("status").textContent = "Reloads: " + reloads;
        });
    </script>
</body>
</html>
`
