// Package config loads huddle configuration.
//
// The configuration is stored in huddle.yaml or huddle.json. HUDDLE_SERVER,
// HUDDLE_PORT, HUDDLE_TYPE, HUDDLE_REDIS_URL and HUDDLE_LOG_LEVEL override
// file values, and command-line flags override both.
//
// # Configuration File Structure
//
//	server: localhost
//	port: 4461
//	type: socket
//	session: StockSession
//	registry:
//	  redisUrl: redis://localhost:6379/0
//	  ttl: 30s
//	  metrics: true
//	client:
//	  connectTimeout: 10s
//	log:
//	  level: debug
//	  format: json
//	stocks:
//	  symbols: [AAPL, IBM]
//	  interval: 15s
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Session:", cfg.URL(""))
package config
