// Package config provides helper functionality to read the service
// configuration from a JSON config file or OS ENV variables.
// The default configuration is overriden first by:
//
// - a valid JSON config file (see cmd/conf.json for a sample) and then by
//
// - OS ENV variables: prefixed with ANTHEM_ (ie. ANTHEM_PORT, ANTHEM_LOG_LEVEL,
// ...). Per-network upstream hosts use ANTHEM_<NETWORK>_HOST (ie.
// ANTHEM_COSMOS_HOST). All OS ENV variables should be valid strings, except
// for ANTHEM_HOSTS which should be a string with a valid JSON object mapping
// network names to base URLs.
package config

import (
	"encoding/json"
	"log"
	"os"
)

// Default configuration variables
var (
	EndpointDefault = ""
	PortDefault     = "3030"
	LogLevelDefault = "info"
	HostsDefault    = map[string]string{
		"COSMOS": "https://lcd.cosmos.network",
		"TERRA":  "https://lcd.terra.dev",
		"KAVA":   "https://lcd.kava.io",
		"OASIS":  "https://oasis-extractor.chorus.one",
		"CELO":   "https://celo-extractor.chorus.one",
	}
	PriceAPIDefault    = "https://min-api.cryptocompare.com"
	RetryBudgetDefault = 3
)

// ServiceConfig contains the required fields for the aggregation service:
// REST endpoint and port, logging verbosity, per-network upstream base URLs,
// the price provider URL and API key, and the optional redis cache and mongo
// ledger connections. Mock/record mode is a development aid: record saves
// every upstream response to FixtureDir, mock serves them back without
// network access.
type ServiceConfig struct {
	RestfulEndpoint string            `json:"endpoint"`
	Port            string            `json:"port"`
	LogLevel        string            `json:"logLevel"`
	Hosts           map[string]string `json:"hosts"`
	PriceAPI        string            `json:"priceApi"`
	PriceAPIKey     string            `json:"priceApiKey"`
	RedisAddr       string            `json:"redisAddr"`
	LedgerConn      string            `json:"ledgerConn"`
	LedgerDB        string            `json:"ledgerDb"`
	RetryBudget     int               `json:"retryBudget"`
	MockMode        string            `json:"mockMode"` // "", "record" or "mock"
	FixtureDir      string            `json:"fixtureDir"`
}

// ExtractConfiguration reads from the given JSON filename and returns the
// ServiceConfig or an error otherwise.
func ExtractConfiguration(filename string) (ServiceConfig, error) {
	hosts := make(map[string]string, len(HostsDefault))
	for name, u := range HostsDefault {
		hosts[name] = u
	}

	conf := ServiceConfig{
		RestfulEndpoint: EndpointDefault,
		Port:            PortDefault,
		LogLevel:        LogLevelDefault,
		Hosts:           hosts,
		PriceAPI:        PriceAPIDefault,
		LedgerDB:        "anthem",
		RetryBudget:     RetryBudgetDefault,
		FixtureDir:      "fixtures",
	}
	// read from config file first
	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			log.Println("Configuration file not found.")

			return conf, err
		}

		if err = json.NewDecoder(file).Decode(&conf); err != nil {
			return conf, err
		}
	}
	// then override config values with OS ENV variables
	var tmp string
	if tmp = os.Getenv("ANTHEM_ENDPOINT"); tmp != "" {
		conf.RestfulEndpoint = tmp
	}

	if tmp = os.Getenv("ANTHEM_PORT"); tmp != "" {
		conf.Port = tmp
	}

	if tmp = os.Getenv("ANTHEM_LOG_LEVEL"); tmp != "" {
		conf.LogLevel = tmp
	}

	if tmp = os.Getenv("ANTHEM_HOSTS"); tmp != "" {
		if err := json.Unmarshal([]byte(tmp), &conf.Hosts); err != nil {
			log.Println("Error reading hosts from OS ENV ANTHEM_HOSTS.")

			return conf, err
		}
	}

	for _, name := range []string{"COSMOS", "TERRA", "KAVA", "OASIS", "CELO"} {
		if tmp = os.Getenv("ANTHEM_" + name + "_HOST"); tmp != "" {
			conf.Hosts[name] = tmp
		}
	}

	if tmp = os.Getenv("ANTHEM_PRICE_API"); tmp != "" {
		conf.PriceAPI = tmp
	}

	if tmp = os.Getenv("ANTHEM_PRICE_API_KEY"); tmp != "" {
		conf.PriceAPIKey = tmp
	}

	if tmp = os.Getenv("ANTHEM_REDIS_ADDR"); tmp != "" {
		conf.RedisAddr = tmp
	}

	if tmp = os.Getenv("ANTHEM_LEDGER_CONN"); tmp != "" {
		conf.LedgerConn = tmp
	}

	if tmp = os.Getenv("ANTHEM_LEDGER_DB"); tmp != "" {
		conf.LedgerDB = tmp
	}

	if tmp = os.Getenv("ANTHEM_MOCK_MODE"); tmp != "" {
		conf.MockMode = tmp
	}

	if tmp = os.Getenv("ANTHEM_FIXTURE_DIR"); tmp != "" {
		conf.FixtureDir = tmp
	}

	return conf, nil
}
