package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultURL = "http://127.0.0.1:14007"

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", defaultURL, "agent base url")
	_ = fs.Parse(args)
	call(http.MethodGet, *baseURL, "/admin/v1/state", nil)
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	baseURL := fs.String("url", defaultURL, "agent base url")
	_ = fs.Parse(args)
	call(http.MethodGet, *baseURL, "/reportUtility", nil)
}

func startCmd(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	baseURL := fs.String("url", defaultURL, "agent base url")
	duration := fs.Float64("duration", 0, "round duration seconds (0 keeps the agent default)")
	round := fs.Int("round", 0, "round number (optional)")
	_ = fs.Parse(args)

	req := map[string]any{}
	if *duration > 0 {
		req["roundDuration"] = *duration
	}
	if *round > 0 {
		req["roundNumber"] = *round
	}
	body, _ := json.Marshal(req)
	call(http.MethodPost, *baseURL, "/startRound", body)
}

func endCmd(args []string) {
	fs := flag.NewFlagSet("end", flag.ExitOnError)
	baseURL := fs.String("url", defaultURL, "agent base url")
	_ = fs.Parse(args)
	call(http.MethodPost, *baseURL, "/endRound", nil)
}

func setUtilityCmd(args []string) {
	fs := flag.NewFlagSet("set-utility", flag.ExitOnError)
	baseURL := fs.String("url", defaultURL, "agent base url")
	file := fs.String("f", "", "utility document (.json, .yaml or .yml)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "missing -f")
		os.Exit(2)
	}
	body, err := loadUtilityFile(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read utility:", err)
		os.Exit(1)
	}
	call(http.MethodPost, *baseURL, "/setUtility", body)
}

// loadUtilityFile returns the JSON body for /setUtility; YAML input is converted.
func loadUtilityFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return json.Marshal(doc)
	default:
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%s: invalid json", path)
		}
		return raw, nil
	}
}

func call(method, baseURL, path string, body []byte) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
