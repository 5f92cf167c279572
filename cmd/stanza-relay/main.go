package main

import (
	"flag"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/stanza-md/stanza"
	"github.com/stanza-md/stanza/channel"
)

func main() {
	addr := flag.String("addr", ":8990", "listen address")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	http.Handle("/ws", channel.NewRelay(log))
	log.Info("relay listening", zap.String("addr", *addr), zap.String("version", stanza.VersionTag()))
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
