// Package config loads the asset store's operating parameters from
// Consul's KV store and holds the distributed lock that makes exactly
// one process the active writer for a given store instance, the same
// bootstrap shape the teacher's log process uses.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"

	consul "github.com/hashicorp/consul/api"
)

// GlobalConfig is the JSON document stored at "<kvpath>/config" in
// Consul. AuthorizedPrincipals seeds the authorization allowlist
// spec.md's init() populates with the deploying principal.
type GlobalConfig struct {
	Name          string `json:"name"`
	KeyPath       string `json:"keyPath"`
	ListenAddress string `json:"listenAddress"`

	S3Bucket                   string `json:"s3Bucket"`
	S3Region                   string `json:"s3Region"`
	S3EndpointUrl              string `json:"s3EndpointUrl"`
	S3StaticCredentialUserName string `json:"s3StaticCredentialUserName"`
	S3StaticCredentialPassword string `json:"s3StaticCredentialPassword"`

	PersistKey           string   `json:"persistKey"`
	AuthorizedPrincipals []string `json:"authorizedPrincipals"`
}

// Handle bundles the loaded configuration with the Consul lock backing
// it. Callers must hold the lock for the lifetime of the process; on
// lock loss the eStop channel fires and the process should exit.
type Handle struct {
	Config GlobalConfig
	lock   *consul.Lock
}

// Load acquires the exclusive lock at "<kvpath>/lock" and then reads
// "<kvpath>/config". Losing the lock after acquisition is fatal: only
// the lock holder is allowed to mutate certified state, so continuing
// without it risks two processes certifying conflicting roots.
func Load(kvpath, consulAddress string) (*Handle, error) {
	lockpath := kvpath + "/lock"
	configpath := kvpath + "/config"

	cfg := consul.DefaultConfig()
	cfg.Address = consulAddress
	client, err := consul.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: new consul client: %w", err)
	}

	lock, err := client.LockKey(lockpath)
	if err != nil {
		return nil, fmt.Errorf("config: lock key %s: %w", lockpath, err)
	}

	eStopChan, err := lock.Lock(nil)
	if err != nil {
		return nil, fmt.Errorf("config: acquire lock: %w", err)
	}

	go func(eStopChan <-chan struct{}) {
		<-eStopChan
		log.Fatal("config: consul lock lost, exiting now")
	}(eStopChan)

	interruptChan := make(chan os.Signal, 1)
	signal.Notify(interruptChan, os.Interrupt)
	go func(interruptChan chan os.Signal, lock *consul.Lock) {
		<-interruptChan
		log.Println("config: interrupted, releasing lock")
		lock.Unlock()
	}(interruptChan, lock)

	kv := client.KV()
	raw, _, err := kv.Get(configpath, &consul.QueryOptions{RequireConsistent: true})
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("config: read %s: %w", configpath, err)
	}
	if raw == nil {
		lock.Unlock()
		return nil, fmt.Errorf("config: no configuration found at %s", configpath)
	}

	var gc GlobalConfig
	if err := json.Unmarshal(raw.Value, &gc); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("config: unmarshal %s: %w", configpath, err)
	}

	return &Handle{Config: gc, lock: lock}, nil
}

// Release unlocks the Consul lock, e.g. during graceful shutdown.
func (h *Handle) Release() {
	h.lock.Unlock()
}
