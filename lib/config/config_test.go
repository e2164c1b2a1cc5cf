// config_test.go tests config files
package config

import (
	"testing"
)

// fileToTest is a relative path to the configuration file to test (ie. cmd/conf.json)
var fileToTest string = "../../cmd/conf.json"

// TestConfig extracts config from a file and checks values loaded
func TestConfig(t *testing.T) {
	// extract configuration
	conf, err := ExtractConfiguration(fileToTest)
	if err != nil {
		t.Errorf("Error reading config file:%v\n", err)

		return
	}
	// lets check the port
	if conf.Port != "3030" {
		t.Errorf("config port is not the expected %s", conf.Port)
	}
	// and the upstream hosts
	for _, name := range []string{"COSMOS", "TERRA", "KAVA", "OASIS", "CELO"} {
		if conf.Hosts[name] == "" {
			t.Errorf("no upstream host configured for %s", name)
		}
	}

	if conf.RetryBudget != 3 {
		t.Errorf("retry budget is not the expected %d", conf.RetryBudget)
	}
}

// TestConfigEnvOverride checks OS ENV variables take precedence over defaults.
func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("ANTHEM_PORT", "4040")
	t.Setenv("ANTHEM_COSMOS_HOST", "http://localhost:1317")

	conf, err := ExtractConfiguration("")
	if err != nil {
		t.Fatalf("Error extracting config:%v", err)
	}

	if conf.Port != "4040" {
		t.Errorf("env override for port not applied, got %s", conf.Port)
	}

	if conf.Hosts["COSMOS"] != "http://localhost:1317" {
		t.Errorf("env override for COSMOS host not applied, got %s", conf.Hosts["COSMOS"])
	}
}
