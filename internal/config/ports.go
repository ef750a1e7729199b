package config

// Default ports used by the evolver and the infrastructure it talks to.
//
//	8080-8099: API servers and scorers
const (
	// APIServerPort is the port for the REST API and websocket stream
	APIServerPort = 8080

	// BacktestScorerPort is the conventional port of a remote backtest scorer
	BacktestScorerPort = 8090
)

// Infrastructure Service Ports
const (
	PostgresPort = 5432
	RedisPort    = 6379
	NATSPort     = 4222
)
