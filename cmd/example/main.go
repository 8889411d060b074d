// Command example wires every package in this module into a small
// embedding program: routes, static files, a WebSocket echo endpoint,
// and the optional middleware stack, then serves until SIGINT/SIGTERM.
//
// Grounded on bolt/examples/hello/main.go's route registration shape and
// bolt/core/app.go's signal.Notify-based graceful shutdown (Run's
// sigChan/errChan select), adapted from bolt's app.Run(addr) one-liner to
// this module's explicit Application/ListenAndServe/Shutdown split.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/logging"
	"github.com/miraimindz/embercore/middleware"
	"github.com/miraimindz/embercore/router"
	"github.com/miraimindz/embercore/server"
	"github.com/miraimindz/embercore/staticfile"
	"github.com/miraimindz/embercore/wsocket"
)

func main() {
	logger := logging.New(logging.Options{Stdout: true, Level: logging.LevelInfo})
	defer logger.Sync()

	cfg := server.DefaultConfig()
	cfg.Addr = ":8080"
	cfg.Logger = logger
	app := server.New(cfg)

	if err := app.Use(&middleware.RequestID{}); err != nil {
		log.Fatalf("register request-id middleware: %v", err)
	}
	if err := app.Use(middleware.NewAccessLog(logger, "/healthz")); err != nil {
		log.Fatalf("register access-log middleware: %v", err)
	}
	if err := app.Use(middleware.NewCORS(middleware.DefaultCORSConfig())); err != nil {
		log.Fatalf("register cors middleware: %v", err)
	}
	if err := app.Use(middleware.NewCompression(middleware.DefaultCompressionConfig())); err != nil {
		log.Fatalf("register compression middleware: %v", err)
	}

	app.Router().Handle(httpcore.MethodGET, "/healthz", func(req *httpcore.Request, resp *httpcore.Response, _ *router.Params) {
		resp.Status = 200
		resp.SetBody([]byte("ok"))
	})

	app.Router().Handle(httpcore.MethodGET, "/hello/:name", func(req *httpcore.Request, resp *httpcore.Response, params *router.Params) {
		name, _ := params.Get("name")
		_ = resp.JSON(map[string]string{"message": "hello, " + string(name)})
	})

	staticHandler := staticfile.New("./public", 30*time.Second)
	app.Router().Static(httpcore.MethodGET, "/static/*path", staticHandler.ServeRoute)

	wsMux := wsocket.NewMux(&wsocket.Upgrader{})
	wsMux.Handle("/ws/echo", func(c *wsocket.Conn) {
		for {
			opcode, payload, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(opcode, payload); err != nil {
				return
			}
		}
	})
	app.SetUpgradeHandler(wsMux.UpgradeHandler())

	errChan := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errChan <- app.ListenAndServe(context.Background())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case <-sigChan:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.Shutdown(ctx); err != nil {
			log.Fatalf("shutdown error: %v", err)
		}
	}
}
