// Stream client: fetches points from the server, renders them and either
// writes the result to a PNG or serves it through the interactive viewer.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pointstream/common"
	"pointstream/config"
	"pointstream/consumer"
	"pointstream/render"
	"pointstream/viewer"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug(".env file not found, using system environment variables")
	}
	cfg := config.LoadClient()

	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "stream server base URL")
	flag.IntVar(&cfg.Count, "count", cfg.Count, "number of points to request")
	flag.IntVar(&cfg.ChunkPoints, "chunk-points", cfg.ChunkPoints, "points per chunk, must match the server")
	flag.IntVar(&cfg.CanvasWidth, "width", cfg.CanvasWidth, "surface width")
	flag.IntVar(&cfg.CanvasHeight, "height", cfg.CanvasHeight, "surface height")
	flag.StringVar(&cfg.Output, "out", cfg.Output, "PNG file written in one-shot mode")
	flag.StringVar(&cfg.ViewerPort, "viewer", cfg.ViewerPort, "serve the interactive viewer on this port")
	flag.Parse()

	common.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	if cfg.ViewerPort != "" {
		if err := serveViewer(cfg); err != nil {
			log.Fatalf("Viewer failed: %v", err)
		}
		return
	}
	if err := runOnce(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

// runOnce streams cfg.Count points, stops on SIGINT and writes the surface.
func runOnce(cfg *config.ClientConfig) error {
	surface := render.NewSurface(cfg.CanvasWidth, cfg.CanvasHeight)
	c := consumer.New(consumer.Options{
		ServerURL:   cfg.ServerURL,
		ChunkPoints: cfg.ChunkPoints,
		QueueSize:   cfg.DecodeQueue,
		Echo:        common.LogHandler(cfg.LogFormat, os.Stderr),
	}, surface)
	c.Start()
	defer c.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	session := c.Submit(cfg.Count)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-session.Settled():
			break wait
		case <-quit:
			c.Stop()
		case <-ticker.C:
			st := c.Status()
			log.Infof("Loading...%s%%", st.ProgressDisplay)
		}
	}

	st := c.Status()
	log.WithFields(log.Fields{
		"received": st.Received,
		"total":    st.Total,
		"chunks":   st.Chunks,
	}).Info("client.done")

	f, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	if err := surface.EncodePNG(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Infof("Wrote %s", cfg.Output)
	return nil
}

// serveViewer runs the interactive viewer until SIGINT or SIGTERM.
func serveViewer(cfg *config.ClientConfig) error {
	hub := viewer.NewHub()
	go hub.Run()
	defer hub.Stop()

	surface := render.NewSurface(cfg.CanvasWidth, cfg.CanvasHeight)
	c := consumer.New(consumer.Options{
		ServerURL:   cfg.ServerURL,
		ChunkPoints: cfg.ChunkPoints,
		QueueSize:   cfg.DecodeQueue,
		Echo:        common.LogHandler(cfg.LogFormat, os.Stderr),
		OnUpdate:    hub.Publish,
	}, surface)
	c.Start()
	defer c.Close()

	v := viewer.New(c, surface, hub, cfg.Count, cfg.FallbackCount)
	srv := &http.Server{
		Addr:    ":" + cfg.ViewerPort,
		Handler: v.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Viewer is running on http://localhost:%s", cfg.ViewerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info("Shutting down viewer...")
	c.Stop()
	return srv.Close()
}
