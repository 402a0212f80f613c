// Package main provides a web scraper that extracts the Snowflake reserved
// keyword list from the Snowflake documentation and regenerates the dialect
// package's keyword table.
//
// Usage:
//
//	go run ./scripts/genkeywords
//	go run ./scripts/genkeywords -out=internal/dialect/keywords_snowflake_gen.go
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"go/format"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const keywordsURL = "https://docs.snowflake.com/en/sql-reference/reserved-keywords"

var outFlag = flag.String("out", "internal/dialect/keywords_snowflake_gen.go", "output file path")

func main() {
	flag.Parse()

	log.Printf("Fetching keywords from %s", keywordsURL)

	body, err := fetchURL(keywordsURL)
	if err != nil {
		log.Fatalf("failed to fetch keywords page: %v", err)
	}

	reserved, err := parseKeywordsPage(body)
	if err != nil {
		log.Fatalf("failed to parse keywords page: %v", err)
	}

	log.Printf("Extracted %d reserved words", len(reserved))

	code := generateKeywordsCode(reserved)
	writeFormattedCode(*outFlag, code)
}

func fetchURL(url string) ([]byte, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(context.Background(), "GET", url, nil)
	if err != nil {
		return nil, err
	}

	// Set headers to appear as a browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Quarry/1.0; +https://github.com/quarrylabs/quarry)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

func parseKeywordsPage(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	reservedSet := make(map[string]bool)

	// Snowflake keywords page: single table with 2 columns (Keyword, Comment).
	// Letter headers (A-Z) are single char rows to skip.
	var inTable bool
	var findKeywords func(*html.Node)
	findKeywords = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			inTable = true
		}

		if inTable && n.Type == html.ElementNode && n.Data == "tr" {
			kw := extractKeywordFromRow(n)
			if kw != "" {
				if len(kw) == 1 && kw >= "A" && kw <= "Z" {
					return
				}
				reservedSet[strings.ToUpper(kw)] = true
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findKeywords(c)
		}

		if n.Type == html.ElementNode && n.Data == "table" {
			inTable = false
		}
	}

	findKeywords(doc)

	return mapToSortedSlice(reservedSet), nil
}

// extractKeywordFromRow extracts the keyword from the first cell of a table row.
func extractKeywordFromRow(tr *html.Node) string {
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "td" {
			return strings.TrimSpace(extractText(c))
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	var buf bytes.Buffer
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func mapToSortedSlice(m map[string]bool) []string {
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

func generateKeywordsCode(reserved []string) string {
	var buf bytes.Buffer

	buf.WriteString("// Code generated by scripts/genkeywords. DO NOT EDIT.\n")
	buf.WriteString("// Source: https://docs.snowflake.com/en/sql-reference/reserved-keywords\n")
	fmt.Fprintf(&buf, "// Generated: %s\n\n", time.Now().Format("2006-01-02"))
	buf.WriteString("package dialect\n\n")

	buf.WriteString("// snowflakeReservedWords contains words that need quoting when used as identifiers.\n")
	buf.WriteString("var snowflakeReservedWords = []string{\n")
	writeStringSlice(&buf, reserved)
	buf.WriteString("}\n")

	return buf.String()
}

func writeStringSlice(buf *bytes.Buffer, items []string) {
	const itemsPerLine = 5
	for i, item := range items {
		if i%itemsPerLine == 0 {
			buf.WriteString("\t")
		}
		fmt.Fprintf(buf, "%q, ", item)
		if (i+1)%itemsPerLine == 0 {
			buf.WriteString("\n")
		}
	}
	if len(items)%itemsPerLine != 0 {
		buf.WriteString("\n")
	}
}

func writeFormattedCode(outPath, code string) {
	// Format the code
	formatted, err := format.Source([]byte(code))
	if err != nil {
		log.Printf("Warning: failed to format generated code: %v", err)
		formatted = []byte(code)
	}

	// Write output
	if err := os.WriteFile(outPath, formatted, 0o600); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}

	log.Printf("Generated %s", outPath)
}
