package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"wclink/internal/relay"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	srv := relay.NewServer(logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)

	logger.Info("relay listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}
