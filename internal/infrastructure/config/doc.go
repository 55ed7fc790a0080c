// Package config loads and validates the bridge configuration.
//
// Configuration layers, later wins:
//
//  1. compiled-in defaults
//  2. the YAML file (configs/config.yaml by default)
//  3. DOMOBRIDGE_* environment variables
//
// The environment layer exists for secrets: panel credentials, MQTT
// credentials and the InfluxDB token belong there rather than in the
// file, and the file itself should be chmod 0600 when they end up in
// it anyway.
//
// Load validates the merged result and fails fast on anything the
// daemon cannot run with (missing panel host, out-of-range QoS, poll
// interval under the panel's tolerance). Everything after Load can
// trust the config; the Get* helpers hand out durations and
// per-element settings in their useful types.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	client := domo.New(domo.Config{Host: cfg.Panel.Host, ...}, log)
package config
