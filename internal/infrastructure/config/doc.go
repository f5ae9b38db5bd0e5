// Package config handles loading and validating the servo mount bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The defaults describe the stock two-axis camera mount: a PWM controller at
// address 0x40 on /dev/i2c-1 with servos on the 0x08 and 0x0c OFF registers,
// served on port 8888. A config file only needs to list what differs.
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
//     set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Thing.Title)
package config
