// fetchstory bulk-downloads every z-code story from the IF Archive into a
// local directory, for offline play via zvm's -story flag.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const archiveURL = "https://www.ifarchive.org/indexes/if-archive/games/zcode/"

var zcodeFileRe = regexp.MustCompile(`\.z[12345678]$`)

func main() {
	outputDir := flag.String("dir", "stories", "directory to download stories into")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "fetchstory: failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	c := &http.Client{Timeout: 30 * time.Second}
	res, err := c.Get(archiveURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetchstory: failed to fetch index: %v\n", err)
		os.Exit(1)
	}
	defer res.Body.Close()

	if res.StatusCode != 200 {
		fmt.Fprintf(os.Stderr, "fetchstory: bad status code: %d\n", res.StatusCode)
		os.Exit(1)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetchstory: failed to parse index HTML: %v\n", err)
		os.Exit(1)
	}

	type game struct{ name, url string }
	var games []game

	doc.Find("dl dt").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Find("a").Attr("href")
		if !exists || !zcodeFileRe.MatchString(href) {
			return
		}
		games = append(games, game{
			name: filepath.Base(href),
			url:  "https://www.ifarchive.org" + href,
		})
	})

	fmt.Printf("found %d stories to download\n", len(games))

	var downloaded, skipped, failed int

	for i, g := range games {
		destPath := filepath.Join(*outputDir, g.name)

		if _, err := os.Stat(destPath); err == nil {
			fmt.Printf("[%d/%d] skipping %s (already exists)\n", i+1, len(games), g.name)
			skipped++
			continue
		}

		fmt.Printf("[%d/%d] downloading %s... ", i+1, len(games), g.name)

		resp, err := c.Get(g.url)
		if err != nil {
			fmt.Printf("failed: %v\n", err)
			failed++
			continue
		}

		if resp.StatusCode != 200 {
			fmt.Printf("failed: status %d\n", resp.StatusCode)
			resp.Body.Close()
			failed++
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			fmt.Printf("failed: %v\n", err)
			failed++
			continue
		}

		if err := os.WriteFile(destPath, data, 0644); err != nil {
			fmt.Printf("failed: %v\n", err)
			failed++
			continue
		}

		fmt.Printf("ok (%d bytes)\n", len(data))
		downloaded++

		time.Sleep(100 * time.Millisecond)
	}

	fmt.Printf("\ndone: downloaded %d, skipped %d, failed %d\n", downloaded, skipped, failed)

	manifestPath := filepath.Join(*outputDir, "manifest.txt")
	var manifest strings.Builder
	for _, g := range games {
		manifest.WriteString(g.name + "\n")
	}
	if err := os.WriteFile(manifestPath, []byte(manifest.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "fetchstory: failed to write manifest: %v\n", err)
		return
	}
	fmt.Printf("wrote manifest to %s\n", manifestPath)
}
