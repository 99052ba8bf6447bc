// Package storypicker implements a Bubble Tea list view over the IF
// Archive's z-code directory: scrape the index with goquery, let the
// player pick a title, download it (through a disk cache keyed by URL),
// and hand the raw story bytes back to the caller.
package storypicker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const archiveURL = "https://www.ifarchive.org/indexes/if-archive/games/zcode/"
const cacheDuration = 7 * 24 * time.Hour

var docStyle = lipgloss.NewStyle().Margin(1, 2)

type pickerState int

const (
	loadingList pickerState = iota
	choosing
	downloading
)

type story struct {
	name        string
	releaseDate time.Time
	url         string
	description string
	ifdbEntry   string
	ifwiki      string
}

func (s story) Title() string       { return s.name }
func (s story) Description() string { return s.description }
func (s story) FilterValue() string { return s.name + s.description }

// Selection is delivered once the player has picked and downloaded a
// story: the raw story file bytes and the display name it was listed
// under, suitable for passing straight to zmachine.LoadStory.
type Selection struct {
	Name string
	Data []byte
}

// SelectedMsg wraps a Selection as a tea.Msg so the embedding program can
// switch away from the picker once it arrives.
type SelectedMsg Selection

type storiesDownloadedMsg []list.Item
type downloadedStoryMsg []byte
type errMsg struct{ error }

// Model is the picker's Bubble Tea model. Embed it in a parent model and
// forward messages to Update; watch for SelectedMsg to know when to hand
// off to the interpreter.
type Model struct {
	state             pickerState
	storyList         list.Model
	spinner           spinner.Model
	err               error
	cacheDir          string
	selectedStoryName string
}

// New builds a picker model. cacheDir, if non-empty, is used to cache the
// scraped index and downloaded story files for cacheDuration.
func New(cacheDir string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		state:     loadingList,
		storyList: list.New(make([]list.Item, 0), list.NewDefaultDelegate(), 0, 0),
		spinner:   s,
		cacheDir:  cacheDir,
	}
}

func (m Model) Init() tea.Cmd {
	m.storyList.SetShowTitle(false)
	return downloadStoryList(m.cacheDir)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.state != choosing {
				break
			}
			s, ok := m.storyList.SelectedItem().(story)
			if ok {
				m.state = downloading
				m.selectedStoryName = s.name
				return m, downloadStory(s, m.cacheDir)
			}
		}

	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.storyList.SetSize(msg.Width-h, msg.Height-v)

	case storiesDownloadedMsg:
		m.state = choosing
		m.storyList.SetShowStatusBar(false)
		m.storyList.SetShowTitle(false)
		return m, m.storyList.SetItems([]list.Item(msg))

	case downloadedStoryMsg:
		sel := Selection{Name: m.selectedStoryName, Data: []byte(msg)}
		return m, func() tea.Msg { return SelectedMsg(sel) }

	case errMsg:
		m.err = msg
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.storyList, cmd = m.storyList.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.err != nil {
		return docStyle.Render(m.err.Error())
	}
	switch m.state {
	case loadingList:
		return fmt.Sprintf("\n\n   %s Loading stories...\n\n", m.spinner.View())
	case choosing:
		return docStyle.Render(m.storyList.View())
	case downloading:
		return fmt.Sprintf("\n\n   %s Downloading story...\n\n", m.spinner.View())
	default:
		return ""
	}
}

func cacheFilePath(cacheDir, key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(cacheDir, hex.EncodeToString(hash[:]))
}

func isCacheValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < cacheDuration
}

type cachedStoryList struct {
	Stories []cachedStory `json:"stories"`
}

type cachedStory struct {
	Name        string    `json:"name"`
	ReleaseDate time.Time `json:"release_date"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	IFDBEntry   string    `json:"ifdb_entry"`
	IFWiki      string    `json:"ifwiki"`
}

func downloadStory(s story, cacheDir string) tea.Cmd {
	return func() tea.Msg {
		if cacheDir != "" {
			cachePath := cacheFilePath(cacheDir, s.url)
			if isCacheValid(cachePath) {
				if data, err := os.ReadFile(cachePath); err == nil {
					return downloadedStoryMsg(data)
				}
			}
		}

		c := &http.Client{Timeout: 60 * time.Second}
		res, err := c.Get(s.url)
		if err != nil {
			return errMsg{err}
		}
		defer res.Body.Close()

		storyBytes, err := io.ReadAll(res.Body)
		if err != nil {
			return errMsg{err}
		}

		if cacheDir != "" {
			if err := os.MkdirAll(cacheDir, 0755); err == nil {
				os.WriteFile(cacheFilePath(cacheDir, s.url), storyBytes, 0644)
			}
		}

		return downloadedStoryMsg(storyBytes)
	}
}

var releaseFileRe = regexp.MustCompile(`\.z[12345678]$`)
var releaseDateRe = regexp.MustCompile(`\d{2}-\w{3}-\d{4}`)

func downloadStoryList(cacheDir string) tea.Cmd {
	return func() tea.Msg {
		if cacheDir != "" {
			cachePath := cacheFilePath(cacheDir, "storylist")
			if isCacheValid(cachePath) {
				if data, err := os.ReadFile(cachePath); err == nil {
					var cached cachedStoryList
					if json.Unmarshal(data, &cached) == nil {
						return storiesDownloadedMsg(toItems(cached))
					}
				}
			}
		}

		c := &http.Client{Timeout: 10 * time.Second}
		res, err := c.Get(archiveURL)
		if err != nil {
			return errMsg{err}
		}
		defer res.Body.Close()
		if res.StatusCode != 200 {
			return errMsg{fmt.Errorf("storypicker: unexpected status %d fetching index", res.StatusCode)}
		}

		doc, err := goquery.NewDocumentFromReader(res.Body)
		if err != nil {
			return errMsg{err}
		}

		var stories []story
		doc.Find("dl dt").Each(func(i int, s *goquery.Selection) {
			title := strings.Replace(s.Find("a").Text(), "◆", "", 1)
			href, _ := s.Find("a").Attr("href")
			if !releaseFileRe.MatchString(href) {
				return
			}

			rawTimeString := s.Find("span").Text()
			releaseDate, _ := time.Parse("02-Jan-2006", releaseDateRe.FindString(rawTimeString))

			var description, ifdbEntry, ifwiki string
			s.NextUntil("dt").Each(func(j int, s2 *goquery.Selection) {
				switch {
				case strings.Contains(s2.Text(), "IFDB"):
					ifdbEntry, _ = s2.Find("a").Attr("href")
				case strings.Contains(s2.Text(), "IFWiki"):
					ifwiki, _ = s2.Find("a").Attr("href")
				case len(s2.ChildrenFiltered("p").Nodes) == 1:
					description = s2.Find("p").Text()
				}
			})

			stories = append(stories, story{
				name:        title,
				releaseDate: releaseDate,
				url:         "https://www.ifarchive.org" + href,
				description: description,
				ifwiki:      ifwiki,
				ifdbEntry:   ifdbEntry,
			})
		})

		if cacheDir != "" {
			if err := os.MkdirAll(cacheDir, 0755); err == nil {
				var cached cachedStoryList
				for _, s := range stories {
					cached.Stories = append(cached.Stories, cachedStory{
						Name: s.name, ReleaseDate: s.releaseDate, URL: s.url,
						Description: s.description, IFDBEntry: s.ifdbEntry, IFWiki: s.ifwiki,
					})
				}
				if data, err := json.Marshal(cached); err == nil {
					os.WriteFile(cacheFilePath(cacheDir, "storylist"), data, 0644)
				}
			}
		}

		items := make([]list.Item, len(stories))
		for i, s := range stories {
			items[i] = s
		}
		return storiesDownloadedMsg(items)
	}
}

func toItems(cached cachedStoryList) []list.Item {
	items := make([]list.Item, len(cached.Stories))
	for i, cs := range cached.Stories {
		items[i] = story{
			name: cs.Name, releaseDate: cs.ReleaseDate, url: cs.URL,
			description: cs.Description, ifdbEntry: cs.IFDBEntry, ifwiki: cs.IFWiki,
		}
	}
	return items
}
