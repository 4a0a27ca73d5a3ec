// Package config handles loading and validating the IoT core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (and a local .env file)
//   - Validation of required fields and the device catalogue
//   - Default value handling
//
// Sensitive values (MQTT and ClickHouse passwords, the InfluxDB token) should
// be supplied via environment variables rather than committed to the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
