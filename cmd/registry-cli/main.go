package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultServer = "http://localhost:8080"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "push":
		cmdPush(args)
	case "pull":
		cmdPull(args)
	case "list":
		cmdList(args)
	case "search":
		cmdSearch(args)
	case "info":
		cmdInfo(args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Gem Hutch Registry CLI

Usage:
  registry push <name> <version> <file> [options]
  registry pull <name> <version> [options]
  registry list [options]
  registry search <query> [options]
  registry info <name> [options]

Options:
  --server <url>      Server URL (default: http://localhost:8080)
  --token <token>     Authentication token (push only)
  --platform <plat>   Gem platform (default: ruby)
  --summary <text>    Short description
  --deps <list>       Dependencies as "name:req;name:req"
  --output <file>     Output file path (for pull)`)
}

// parseFlags extracts --key value pairs from args.
func parseFlags(args []string) (positional []string, flags map[string]string) {
	flags = make(map[string]string)
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "--") && i+1 < len(args) {
			flags[strings.TrimPrefix(args[i], "--")] = args[i+1]
			i++
		} else {
			positional = append(positional, args[i])
		}
	}
	return
}

func getFlag(flags map[string]string, key, def string) string {
	if v, ok := flags[key]; ok {
		return v
	}
	return def
}

func requireToken(flags map[string]string) string {
	token := getFlag(flags, "token", "")
	if token == "" {
		fmt.Fprintln(os.Stderr, "error: --token is required")
		os.Exit(1)
	}
	return token
}

// parseDeps parses "name:req;name:req" into dependency entries. The
// requirement may itself contain commas (">= 1.0, < 2.0"), so entries
// are separated by semicolons and split on the first colon.
func parseDeps(s string) []map[string]string {
	var deps []map[string]string
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, req, ok := strings.Cut(entry, ":")
		if !ok {
			fmt.Fprintf(os.Stderr, "error: bad dependency %q, want name:requirement\n", entry)
			os.Exit(1)
		}
		deps = append(deps, map[string]string{
			"name":        strings.TrimSpace(name),
			"requirement": strings.TrimSpace(req),
		})
	}
	return deps
}

func cmdPush(args []string) {
	pos, flags := parseFlags(args)
	if len(pos) < 3 {
		fmt.Fprintln(os.Stderr, "usage: registry push <name> <version> <file> [--server URL] [--token TOKEN] [--platform PLAT] [--summary TEXT] [--deps LIST]")
		os.Exit(1)
	}

	name, version, filePath := pos[0], pos[1], pos[2]
	server := getFlag(flags, "server", defaultServer)
	token := requireToken(flags)

	archive, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading gem file: %v\n", err)
		os.Exit(1)
	}

	metadata := map[string]any{
		"name":     name,
		"version":  version,
		"platform": getFlag(flags, "platform", "ruby"),
		"summary":  getFlag(flags, "summary", ""),
	}
	if deps := getFlag(flags, "deps", ""); deps != "" {
		metadata["dependencies"] = parseDeps(deps)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error encoding metadata: %v\n", err)
		os.Exit(1)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("metadata", string(metaJSON)); err != nil {
		fmt.Fprintf(os.Stderr, "error building request: %v\n", err)
		os.Exit(1)
	}
	part, err := mw.CreateFormFile("gem", filepath.Base(filePath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building request: %v\n", err)
		os.Exit(1)
	}
	part.Write(archive)
	mw.Close()

	req, err := http.NewRequest("POST", server+"/api/v1/gems", &body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		fmt.Fprintln(os.Stderr, formatHTTPError(resp))
		os.Exit(1)
	}

	var result struct {
		Hash string `json:"hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "error decoding response: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	fmt.Printf("Pushed %s@%s\n", name, version)
	fmt.Printf("  Hash:     %s\n", result.Hash)
	fmt.Printf("  Size:     %s\n", formatBytes(int64(len(archive))))
	fmt.Printf("  Duration: %v\n", elapsed.Round(time.Millisecond))
}

func cmdPull(args []string) {
	pos, flags := parseFlags(args)
	if len(pos) < 2 {
		fmt.Fprintln(os.Stderr, "usage: registry pull <name> <version> [--server URL] [--output FILE]")
		os.Exit(1)
	}

	name, version := pos[0], pos[1]
	server := getFlag(flags, "server", defaultServer)
	filename := fmt.Sprintf("%s-%s.gem", name, version)
	output := getFlag(flags, "output", filename)

	resp, err := http.Get(server + "/gems/" + url.PathEscape(filename))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, formatHTTPError(resp))
		os.Exit(1)
	}

	outputDir := filepath.Dir(output)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output directory: %v\n", err)
		os.Exit(1)
	}

	tmpOutput := output + ".part"
	file, err := os.Create(tmpOutput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating output file: %v\n", err)
		os.Exit(1)
	}
	success := false
	defer func() {
		file.Close()
		if !success {
			_ = os.Remove(tmpOutput)
		}
	}()

	pw := &progressWriter{
		writer: file,
		total:  resp.ContentLength,
		label:  "Downloading",
	}

	start := time.Now()
	n, err := io.Copy(pw, resp.Body)
	fmt.Println() // newline after progress
	if err != nil {
		fmt.Fprintf(os.Stderr, "error downloading: %v\n", err)
		os.Exit(1)
	}
	if err := file.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing downloaded file: %v\n", err)
		os.Exit(1)
	}
	if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error replacing output file: %v\n", err)
		os.Exit(1)
	}
	if err := os.Rename(tmpOutput, output); err != nil {
		fmt.Fprintf(os.Stderr, "error finalizing output file: %v\n", err)
		os.Exit(1)
	}
	success = true

	elapsed := time.Since(start)
	fmt.Printf("Pulled %s@%s -> %s\n", name, version, output)
	fmt.Printf("  Size:     %s\n", formatBytes(n))
	fmt.Printf("  Duration: %v\n", elapsed.Round(time.Millisecond))
}

func cmdList(args []string) {
	_, flags := parseFlags(args)
	server := getFlag(flags, "server", defaultServer)
	printGemList(server+"/api/v1/gems", "No gems found.")
}

func cmdSearch(args []string) {
	pos, flags := parseFlags(args)
	if len(pos) < 1 {
		fmt.Fprintln(os.Stderr, "usage: registry search <query> [--server URL]")
		os.Exit(1)
	}

	query := pos[0]
	server := getFlag(flags, "server", defaultServer)
	printGemList(server+"/api/v1/gems?search="+url.QueryEscape(query),
		fmt.Sprintf("No gems matching '%s'.", query))
}

func printGemList(listURL, emptyMsg string) {
	resp, err := http.Get(listURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, formatHTTPError(resp))
		os.Exit(1)
	}

	var gems []struct {
		Name          string `json:"name"`
		LatestVersion string `json:"latest_version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&gems); err != nil {
		fmt.Fprintf(os.Stderr, "error decoding response: %v\n", err)
		os.Exit(1)
	}

	if len(gems) == 0 {
		fmt.Println(emptyMsg)
		return
	}

	fmt.Println("Gems:")
	for _, g := range gems {
		fmt.Printf("  - %s (%s)\n", g.Name, g.LatestVersion)
	}
}

func cmdInfo(args []string) {
	pos, flags := parseFlags(args)
	if len(pos) < 1 {
		fmt.Fprintln(os.Stderr, "usage: registry info <name> [--server URL]")
		os.Exit(1)
	}

	name := pos[0]
	server := getFlag(flags, "server", defaultServer)

	resp, err := http.Get(server + "/api/v1/gems/" + url.PathEscape(name))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, formatHTTPError(resp))
		os.Exit(1)
	}

	var info struct {
		Name     string `json:"name"`
		Versions []struct {
			Version       string `json:"version"`
			Platform      string `json:"platform"`
			Summary       string `json:"summary"`
			DownloadCount int64  `json:"download_count"`
		} `json:"versions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		fmt.Fprintf(os.Stderr, "error decoding response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", info.Name)
	for _, v := range info.Versions {
		fmt.Printf("  %s (%s)  downloads: %d\n", v.Version, v.Platform, v.DownloadCount)
		if v.Summary != "" {
			fmt.Printf("    %s\n", v.Summary)
		}
	}
}

func formatHTTPError(resp *http.Response) string {
	var errResp struct {
		Message string `json:"message"`
	}
	body, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		return fmt.Sprintf("error: %s (%d)", errResp.Message, resp.StatusCode)
	}
	return fmt.Sprintf("error: server returned %d", resp.StatusCode)
}

// progressWriter wraps a writer and prints progress.
type progressWriter struct {
	writer  io.Writer
	total   int64
	current int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.current += int64(n)
	pw.printProgress()
	return n, err
}

func (pw *progressWriter) printProgress() {
	if pw.total <= 0 {
		fmt.Fprintf(os.Stderr, "\r%s: %s", pw.label, formatBytes(pw.current))
		return
	}
	pct := float64(pw.current) / float64(pw.total) * 100
	barLen := 30
	filled := int(pct / 100 * float64(barLen))
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barLen-filled)
	fmt.Fprintf(os.Stderr, "\r%s: [%s] %.1f%% %s/%s", pw.label, bar, pct, formatBytes(pw.current), formatBytes(pw.total))
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
