/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import "encoding/json"

// Config is the routing granted by a mediator.
type Config struct {
	routerEndpoint string
	routingKeys    []string
}

// NewConfig creates new config instance.
func NewConfig(endpoint string, keys []string) *Config {
	return &Config{
		routerEndpoint: endpoint,
		routingKeys:    keys,
	}
}

// Endpoint returns router endpoint.
func (c *Config) Endpoint() string {
	return c.routerEndpoint
}

// Keys returns routing keys.
func (c *Config) Keys() []string {
	return c.routingKeys
}

type configJSON struct {
	Endpoint    string   `json:"endpoint"`
	RoutingKeys []string `json:"routing_keys"`
}

// MarshalJSON stores the config of a mediator connection.
func (c *Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(&configJSON{Endpoint: c.routerEndpoint, RoutingKeys: c.routingKeys})
}

// UnmarshalJSON reads a stored config.
func (c *Config) UnmarshalJSON(data []byte) error {
	var v configJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	c.routerEndpoint, c.routingKeys = v.Endpoint, v.RoutingKeys

	return nil
}
