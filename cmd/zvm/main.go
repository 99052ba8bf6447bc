// zvm is the playable terminal front end: point it at a story file, or
// leave it to browse and download one from the IF Archive, then play
// through a Bubble Tea terminal UI.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kestrelvm/zmachine/storypicker"
	"github.com/kestrelvm/zmachine/termui"
	"github.com/kestrelvm/zmachine/zmachine"
)

var (
	storyPath string
	saveDir   string
	cacheDir  string
)

func init() {
	flag.StringVar(&storyPath, "story", "", "path to a .z3/.z5/.z8 story file; omit to browse the IF Archive")
	flag.StringVar(&saveDir, "savedir", ".", "directory save games are read from and written to")
	flag.StringVar(&cacheDir, "cachedir", "", "directory to cache the IF Archive index and downloads in")
	flag.Parse()
}

// diskStorage implements zmachine.Storage against a directory of .sav
// files, each named after the save name it is given (the VM always passes
// "default") with .sav appended.
type diskStorage struct {
	dir string
}

func (s diskStorage) OpenStory(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, name))
}

func (s diskStorage) OpenSaveForRead(name string) ([]byte, error) {
	return os.ReadFile(s.path(name))
}

func (s diskStorage) OpenSaveForWrite(name string) (zmachine.WriteCloser, error) {
	return os.Create(s.path(name))
}

func (s diskStorage) ListSaves() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sav") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s diskStorage) path(name string) string {
	if !strings.HasSuffix(name, ".sav") {
		name += ".sav"
	}
	return filepath.Join(s.dir, name)
}

// programHolder lets a model reach the *tea.Program that owns it, even
// though Bubble Tea holds its own copy of the model by value: every copy
// shares this one pointer, and main fills it in right after NewProgram
// returns, before the event loop (and so before any Update call) starts.
type programHolder struct {
	p *tea.Program
}

// rootModel switches between the story picker and the playing view.
type rootModel struct {
	picker  *storypicker.Model
	playing tea.Model
	holder  *programHolder
	saveDir string
}

func (m rootModel) Init() tea.Cmd {
	if m.playing != nil {
		return m.playing.Init()
	}
	return m.picker.Init()
}

func (m rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if sel, ok := msg.(storypicker.SelectedMsg); ok {
		play, cmd := startPlaying(storypicker.Selection(sel).Data, storypicker.Selection(sel).Name, m.holder, m.saveDir)
		m.playing = play
		return m, cmd
	}

	if m.playing != nil {
		var cmd tea.Cmd
		m.playing, cmd = m.playing.Update(msg)
		return m, cmd
	}

	updated, cmd := m.picker.Update(msg)
	m.picker = &updated
	return m, cmd
}

func (m rootModel) View() string {
	if m.playing != nil {
		return m.playing.View()
	}
	return m.picker.View()
}

// startPlaying wires a freshly loaded story into a termui adapter and VM,
// attaches the adapter to the owning program (via holder, since the
// program may not exist yet at call time for the -story flag's direct
// path), and returns the playing-mode model plus a command that starts
// the VM's run loop on its own goroutine once the program is live.
func startPlaying(storyBytes []byte, name string, holder *programHolder, saveDir string) (tea.Model, tea.Cmd) {
	adapter := termui.NewAdapter()
	storage := diskStorage{dir: saveDir}

	vm, err := zmachine.LoadStory(storyBytes, adapter, adapter, storage, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zvm: failed to load %s: %v\n", name, err)
		os.Exit(1)
	}

	model := termui.NewModel(adapter)
	return model, func() tea.Msg {
		adapter.Attach(holder.p)
		go func() {
			if err := vm.Run(); err != nil {
				adapter.PrintText(fmt.Sprintf("\n[fatal: %v]\n", err))
			}
		}()
		return nil
	}
}

func main() {
	holder := &programHolder{}
	var model tea.Model

	if storyPath != "" {
		data, err := os.ReadFile(storyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "zvm: %v\n", err)
			os.Exit(1)
		}
		play, cmd := startPlaying(data, filepath.Base(storyPath), holder, saveDir)
		model = rootModel{playing: play, holder: holder, saveDir: saveDir}
		// cmd fires from Init via the playing model's own Init, but the
		// playing model here has no Init of its own that runs it, so wrap
		// it in a one-shot model that issues cmd on first Init.
		model = withInitCmd{Model: model, cmd: cmd}
	} else {
		picker := storypicker.New(cacheDir)
		model = rootModel{picker: &picker, holder: holder, saveDir: saveDir}
	}

	p := tea.NewProgram(model)
	holder.p = p

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "zvm:", err)
		os.Exit(1)
	}
}

// withInitCmd runs an extra tea.Cmd the first time Init is called,
// alongside the wrapped model's own Init command.
type withInitCmd struct {
	tea.Model
	cmd tea.Cmd
}

func (w withInitCmd) Init() tea.Cmd {
	return tea.Batch(w.Model.Init(), w.cmd)
}
