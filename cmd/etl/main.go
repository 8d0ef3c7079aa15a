// Command etl loads exported JSON documents into a relational database. A
// collection mapping decides which attributes land in which columns; every
// document leaves an audit record behind.
//
// Usage:
//
//	etl run --config app.yaml --mapping mapping.yaml --input export.json
//	etl validate --config app.yaml --mapping mapping.yaml
//	etl plan --config app.yaml --mapping mapping.yaml
//	etl scaffold --input export.json > mapping.yaml
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
