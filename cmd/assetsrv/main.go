package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"

	"certassets.dev/internal/assetstore"
	"certassets.dev/internal/config"
	"certassets.dev/internal/host"
	"certassets.dev/internal/httpapi"
)

func main() {
	shutdownOtel := configureOtel()
	defer shutdownOtel()

	kvpath := flag.String("kv-path", "", "Consul KV path")
	consulAddress := flag.String("consul-address", "localhost:8500", "Consul agent address")
	fsBaseDir := flag.String("fs-base-dir", "", "local directory to persist snapshots under, when no S3 bucket is configured")
	flag.Parse()

	if *kvpath == "" {
		fmt.Println("Error: -kv-path flag must be set")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*kvpath, *consulAddress)
	if err != nil {
		log.Fatalf("assetsrv: load config: %v", err)
	}

	keyPEM, err := os.ReadFile(cfg.Config.KeyPath)
	if err != nil {
		log.Fatalf("assetsrv: read signing key %s: %v", cfg.Config.KeyPath, err)
	}
	signingHost, err := host.LoadSigningHost(keyPEM)
	if err != nil {
		log.Fatalf("assetsrv: load signing host: %v", err)
	}

	storage := buildStorage(cfg.Config, *fsBaseDir)
	store := assetstore.New(signingHost)

	ctx := context.Background()
	if cfg.Config.PersistKey != "" {
		if err := store.LoadSnapshot(ctx, storage, cfg.Config.PersistKey); err != nil {
			log.Fatalf("assetsrv: load snapshot %s: %v", cfg.Config.PersistKey, err)
		}
	}
	for _, p := range cfg.Config.AuthorizedPrincipals {
		store.Bootstrap(assetstore.Principal(p))
	}

	server := httpapi.New(store, signingHost, cfg.Config.ListenAddress)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Println("assetsrv: interrupted, saving snapshot")
		if cfg.Config.PersistKey != "" {
			if err := store.SaveSnapshot(ctx, storage, cfg.Config.PersistKey); err != nil {
				log.Printf("assetsrv: save snapshot: %v", err)
			}
		}
		cfg.Release()
		os.Exit(0)
	}()

	log.Printf("assetsrv: listening on %s", cfg.Config.ListenAddress)
	if err := server.Start(); err != nil {
		log.Fatalf("assetsrv: serve: %v", err)
	}
}

func buildStorage(gc config.GlobalConfig, fsBaseDir string) assetstore.Storage {
	if gc.S3Bucket != "" {
		return assetstore.NewS3Storage(gc.S3Region, gc.S3Bucket, gc.S3EndpointUrl, gc.S3StaticCredentialUserName, gc.S3StaticCredentialPassword)
	}
	return assetstore.NewFsStorage(fsBaseDir)
}

func configureOtel() func() {
	ctx := context.Background()

	client := otlptracegrpc.NewClient()
	exp, err := otlptrace.New(ctx, client)
	if err != nil {
		log.Fatalf("assetsrv: failed to initialize exporter: %v", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return func() {
		_ = exp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
	}
}
