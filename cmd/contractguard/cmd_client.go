// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 5 * time.Minute}

func runHealth(cmd *cobra.Command, args []string) {
	resp, err := doRequest(http.MethodGet, "/health", nil)
	if err != nil {
		log.Fatalf("Server unreachable: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Server unhealthy: %s", resp.Status)
	}
	fmt.Println("Server is healthy.")
}

func runContractCreate(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Error reading %s: %v", args[0], err)
	}
	// Validate before shipping it to the server.
	if !json.Valid(data) {
		log.Fatalf("%s is not valid JSON", args[0])
	}

	resp, err := doRequest(http.MethodPost, "/v1/contracts", bytes.NewReader(data))
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	printResponse(resp, http.StatusCreated)
}

func runContractAnalyze(cmd *cobra.Command, args []string) {
	resp, err := doRequest(http.MethodPost, "/v1/contracts/"+args[0]+"/analyze", nil)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	printResponse(resp, http.StatusOK)
}

func doRequest(method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, config.BaseURL()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if config.Client.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+config.Client.APIToken)
	}
	return httpClient.Do(req)
}

// printResponse pretty-prints the JSON body and exits non-zero on an
// unexpected status.
func printResponse(resp *http.Response, wantStatus int) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response: %v", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		pretty.Write(data)
	}
	fmt.Println(pretty.String())

	if resp.StatusCode != wantStatus {
		log.Fatalf("Server returned %s", resp.Status)
	}
}
