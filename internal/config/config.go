package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var errEnvVarNotFound error = errors.New("environment variable not found")

const (
	apiPortEnvKey     = "API_PORT"
	dbConnEnvKey      = "DB_CONNECTION_URL"
	jwtSecretEnvKey   = "JWT_SECRET"
	nodeURLsEnvKey    = "NODE_ENDPOINTS"
	workerIndexEnvKey = "WORKER_INDEX"
)

type App struct {
	Port            string
	DBConnectionURL string
	JWTSecret       string
	// NodeEndpoints maps "chain/network" to its candidate RPC endpoints.
	NodeEndpoints map[string][]string
	WorkerIndex   int
}

func NewApp() (App, error) {

	port, ok := os.LookupEnv(apiPortEnvKey)
	if !ok {
		return App{}, fmt.Errorf("%w: %s", errEnvVarNotFound, apiPortEnvKey)
	}

	dbConn, ok := os.LookupEnv(dbConnEnvKey)
	if !ok {
		return App{}, fmt.Errorf("%w: %s", errEnvVarNotFound, dbConnEnvKey)
	}

	jwtSecret, ok := os.LookupEnv(jwtSecretEnvKey)
	if !ok {
		return App{}, fmt.Errorf("%w: %s", errEnvVarNotFound, jwtSecretEnvKey)
	}

	nodeURLs, ok := os.LookupEnv(nodeURLsEnvKey)
	if !ok {
		return App{}, fmt.Errorf("%w: %s", errEnvVarNotFound, nodeURLsEnvKey)
	}

	endpoints, err := parseNodeEndpoints(nodeURLs)
	if err != nil {
		return App{}, fmt.Errorf("parse %s: %w", nodeURLsEnvKey, err)
	}

	workerIndex := 0
	if raw, ok := os.LookupEnv(workerIndexEnvKey); ok {
		workerIndex, err = strconv.Atoi(raw)
		if err != nil {
			return App{}, fmt.Errorf("parse %s: %w", workerIndexEnvKey, err)
		}
	}

	return App{
		Port:            port,
		DBConnectionURL: dbConn,
		JWTSecret:       jwtSecret,
		NodeEndpoints:   endpoints,
		WorkerIndex:     workerIndex,
	}, nil
}

// parseNodeEndpoints reads entries of the form
// "ETH/mainnet=https://a|https://b;ETH/sepolia=https://c".
func parseNodeEndpoints(raw string) (map[string][]string, error) {
	endpoints := make(map[string][]string)

	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		key, urls, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("malformed endpoint entry %q", entry)
		}

		key = strings.TrimSpace(key)
		if !strings.Contains(key, "/") {
			return nil, fmt.Errorf("endpoint key %q must be chain/network", key)
		}

		var candidates []string
		for _, url := range strings.Split(urls, "|") {
			url = strings.TrimSpace(url)
			if url != "" {
				candidates = append(candidates, url)
			}
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("no endpoint urls for %q", key)
		}

		endpoints[key] = candidates
	}

	if len(endpoints) == 0 {
		return nil, errors.New("no node endpoints configured")
	}

	return endpoints, nil
}
