// Package config holds the protocol constants and operator-tunable
// defaults for the mesh session layer: player-id sizing, discovery/join
// timeouts, the default network port, and the default-gamename alphabet.
package config

import (
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// PlayerID is a small integer identifying a mesh participant, or one of
// the two reserved pseudo-addresses below.
type PlayerID uint8

const (
	// MaxPlayers is the size of the peer table. It is a protocol
	// constant, not an operator-tunable value: packet wire fields and
	// array sizing both depend on it staying fixed.
	MaxPlayers PlayerID = 4

	// PlrMaster addresses "whoever is currently master"; resolved by the
	// recipient on receive, never by the sender.
	PlrMaster PlayerID = MaxPlayers + 1

	// PlrBroadcast addresses every connected player. It also doubles as
	// plr_self's initial value, meaning "not yet joined".
	PlrBroadcast PlayerID = MaxPlayers + 2
)

// DefaultPort is the well-known TCP+UDP port bound on the overlay
// interface.
const DefaultPort = 6112

// GamenameAlphabet is the consonant-heavy alphabet used to generate a
// default game name when the caller doesn't supply one.
const GamenameAlphabet = "abcdefghkopqrstuvwxyz"

// GamenameLength is the length of a generated default game name.
const GamenameLength = 5

// Config holds the operator-tunable knobs. The zero value is not directly
// usable; call Default() or Load() to get one with sane defaults filled
// in.
type Config struct {
	// Port is the TCP+UDP port bound on the overlay interface.
	Port int `yaml:"port"`

	// WaitIterations bounds each of the three wait_* loops (network,
	// firstpeer, join) — WaitIterations * WaitInterval must total ~5s.
	WaitIterations int `yaml:"wait_iterations"`

	// WaitIntervalMS is the sleep, in milliseconds, between polls in a
	// wait_* loop.
	WaitIntervalMS int `yaml:"wait_interval_ms"`

	// AcceptBacklog is loaded and defaulted but not applied: NetTransport
	// listens with the operating system's default backlog.
	AcceptBacklog int `yaml:"accept_backlog"`
}

// Default returns a Config with the values spec.md names explicitly:
// port 6112, 500 iterations of a 10ms sleep (5s total), backlog 10.
func Default() Config {
	return Config{
		Port:           DefaultPort,
		WaitIterations: 500,
		WaitIntervalMS: 10,
		AcceptBacklog:  10,
	}
}

// Load reads a YAML config file and overlays it onto Default(). An empty
// file yields Default(); a file that cannot be read (including a missing
// one) is returned as an error alongside Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
