// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

// Config mirrors config.yaml. Zero values fall back to the same defaults the
// server applies.
type Config struct {
	Server struct {
		Port             int    `yaml:"port"`
		ReasoningBackend string `yaml:"reasoning_backend"`
		WeaviateURL      string `yaml:"weaviate_url"`
		OTelEndpoint     string `yaml:"otel_endpoint"`
		DataDir          string `yaml:"data_dir"`
		APIToken         string `yaml:"api_token"`
	} `yaml:"server"`

	Client struct {
		BaseURL  string `yaml:"base_url"`
		APIToken string `yaml:"api_token"`
	} `yaml:"client"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// BaseURL returns the client base URL with a localhost default.
func (c *Config) BaseURL() string {
	if c.Client.BaseURL != "" {
		return c.Client.BaseURL
	}
	return "http://localhost:12310"
}
