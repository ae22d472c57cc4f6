// Package viewer serves the interactive page of the stream client: a count
// form, start and stop actions, a progress readout, the rendered surface and
// the log panel, with live updates over a websocket.
package viewer

import (
	"html/template"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"pointstream/api"
	"pointstream/consumer"
	"pointstream/generator"
	"pointstream/render"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Viewer struct {
	consumer      *consumer.Consumer
	surface       *render.Surface
	hub           *Hub
	defaultInput  string
	fallbackCount int
}

// New builds a viewer. hub must be the one the consumer publishes to.
func New(c *consumer.Consumer, surface *render.Surface, hub *Hub, defaultCount, fallbackCount int) *Viewer {
	return &Viewer{
		consumer:      c,
		surface:       surface,
		hub:           hub,
		defaultInput:  strconv.Itoa(defaultCount),
		fallbackCount: fallbackCount,
	}
}

func (v *Viewer) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.New("index").Parse(indexHTML)))

	router.GET(api.EndPointViewerIndex, v.Index)
	router.POST(api.EndPointViewerSubmit, v.Submit)
	router.POST(api.EndPointViewerStop, v.Stop)
	router.GET(api.EndPointViewerStatus, v.Status)
	router.GET(api.EndPointViewerCanvas, v.Canvas)
	router.GET(api.EndPointViewerListen, v.Listen)
	return router
}

func (v *Viewer) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index", gin.H{
		"DefaultCount": v.defaultInput,
		"Width":        v.surface.Width(),
		"Height":       v.surface.Height(),
	})
}

// Submit starts a generation for the submitted count.
func (v *Viewer) Submit(c *gin.Context) {
	var args api.SubmitArgs
	if err := c.ShouldBind(&args); err != nil {
		log.Warnf("Invalid submit request: %v", err)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request format"})
		return
	}
	count, _ := generator.ParseCount(args.Count, v.fallbackCount)
	v.consumer.Submit(count)
	c.JSON(http.StatusAccepted, v.consumer.Status())
}

func (v *Viewer) Stop(c *gin.Context) {
	stopped := v.consumer.Stop()
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

func (v *Viewer) Status(c *gin.Context) {
	c.JSON(http.StatusOK, v.consumer.Snapshot())
}

// Canvas returns the surface as PNG, optionally scaled down with ?scale=.
func (v *Viewer) Canvas(c *gin.Context) {
	scale := 1.0
	if raw := c.Query("scale"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid scale"})
			return
		}
		scale = f
	}
	img := v.surface.Scaled(scale)

	c.Header("Content-Type", "image/png")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, img); err != nil {
		log.Errorf("Failed to encode canvas: %v", err)
	}
}

// Listen upgrades to a websocket that receives every status update.
func (v *Viewer) Listen(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	initial := api.BroadcastMessage{
		Type:      "status",
		Data:      v.consumer.Snapshot(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := conn.WriteJSON(initial); err != nil {
		conn.Close()
		return
	}

	client := NewClient(v.hub, conn)
	if !v.hub.Register(client) {
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Point stream</title>
<style>
body { font-family: sans-serif; padding: 1rem; }
#canvas { border: 1px solid black; margin-top: 1rem; display: block; }
#log { margin-top: 1rem; color: gray; }
#log p { margin: 0.2rem 0; }
</style>
</head>
<body>
<form id="form">
  <label>Number of points:
    <input id="count" type="number" value="{{.DefaultCount}}" style="margin-left: 0.5rem">
  </label>
  <button type="submit" style="margin-left: 0.5rem">Generate Points</button>
  <button id="stop" type="button" style="margin-left: 0.5rem">Stop</button>
</form>
<p id="progress" hidden></p>
<img id="canvas" width="{{.Width}}" height="{{.Height}}" src="/canvas.png" alt="">
<div id="log"></div>
<script>
const progress = document.getElementById("progress");
const canvas = document.getElementById("canvas");
const logPanel = document.getElementById("log");
let refreshing = false;
let pending = false;

function refreshCanvas() {
  if (refreshing) { pending = true; return; }
  refreshing = true;
  const img = new Image();
  img.onload = img.onerror = () => {
    canvas.src = img.src;
    refreshing = false;
    if (pending) { pending = false; refreshCanvas(); }
  };
  img.src = "/canvas.png?t=" + Date.now();
}

function show(state) {
  const s = state.status;
  progress.hidden = !s.loading;
  progress.textContent = "Loading..." + s.progress_display + "%";
  logPanel.replaceChildren(...(state.messages || []).map(m => {
    const p = document.createElement("p");
    p.textContent = m.text;
    p.title = m.time;
    return p;
  }));
  refreshCanvas();
}

function connect() {
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = ev => {
    const msg = JSON.parse(ev.data);
    if (msg.type === "status") show(msg.data);
  };
  ws.onclose = () => setTimeout(connect, 1000);
}

document.getElementById("form").addEventListener("submit", ev => {
  ev.preventDefault();
  fetch("/api/submit", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({count: document.getElementById("count").value}),
  });
});
document.getElementById("stop").addEventListener("click", () => {
  fetch("/api/stop", {method: "POST"});
});
connect();
</script>
</body>
</html>`
