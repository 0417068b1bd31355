package config

import (
	"os"
	"sync"
)

// dockerHostAlias reaches services published on the host from inside a container.
const dockerHostAlias = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveDatabaseHost rewrites loopback database hosts to the Docker host alias when
// ekaya-guard itself runs in a container. Every DSN builder passes its host through here.
func ResolveDatabaseHost(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if !inDocker {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return dockerHostAlias
	}
	return host
}
