package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/stanza-md/stanza"
	"github.com/stanza-md/stanza/channel"
	"github.com/stanza-md/stanza/engine"
	"github.com/stanza-md/stanza/store"
)

const debugLogPath = "stanza-debug.log"

const sampleDoc = `# Stanza

Stanza keeps a markdown document in sync block by block. The paragraphs
on this screen are separate blocks; an edit re-chunks only the part of
the document it touched.

- arrow keys or tab move between blocks
- enter edits the block under the cursor, esc leaves it
- ctrl+s saves now, ctrl+q quits

` + "```go\nfunc main() {\n\tfmt.Println(\"stanza\")\n}\n```" + `

Run a second copy with -connect pointed at stanza-relay to watch
concurrent edits merge.`

func main() {
	var (
		fileFlag    = flag.String("file", "", "markdown file to edit")
		configFlag  = flag.String("config", "", "yaml config file")
		dbFlag      = flag.String("db", "", "bolt database path")
		docFlag     = flag.String("doc", "", "document id within the database")
		connectFlag = flag.String("connect", "", "relay websocket url, e.g. ws://localhost:8990/ws")
		debugFlag   = flag.Bool("debug", false, "write debug logs to "+debugLogPath)
	)
	flag.Parse()

	cfg := defaultConfig()
	if *configFlag != "" {
		if err := cfg.loadFile(*configFlag); err != nil {
			fail(err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "file":
			cfg.File = *fileFlag
		case "db":
			cfg.DB = *dbFlag
		case "doc":
			cfg.DocID = *docFlag
		case "connect":
			cfg.Connect = *connectFlag
		}
	})
	if cfg.DocID == "" {
		cfg.DocID = "scratch"
	}

	if err := run(cfg, *debugFlag); err != nil {
		fail(err)
	}
}

func run(cfg config, debug bool) error {
	log, err := newLogger(debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var st *store.Bolt
	if cfg.DB != "" {
		st, err = store.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	text, name, err := initialText(cfg, st)
	if err != nil {
		return err
	}
	log.Debug("starting", zap.String("version", stanza.VersionTag()), zap.String("doc", name))

	var remote *channel.WSClient
	if cfg.Connect != "" {
		remote, err = channel.DialWS(cfg.Connect, log)
		if err != nil {
			return err
		}
		defer remote.Close()
	}

	win := newWindow()
	opts := engine.Options{
		ChunkTarget:             cfg.ChunkTarget,
		IdleThreshold:           millis(cfg.IdleMillis),
		SaveDebounce:            millis(cfg.SaveMillis),
		AllowRemoteWhileFocused: cfg.AllowRemoteWhileFocused,
		Window:                  win,
		Logger:                  log,
		Commit:                  commitChain(cfg, st, remote),
	}

	// The program does not exist yet when the session is built; OnChange
	// reads it through this variable once assigned below.
	var program *tea.Program
	opts.OnChange = func() {
		if program != nil {
			program.Send(remoteAppliedMsg{})
		}
	}

	sess := engine.NewSession(text, opts)
	defer sess.Close()

	program = tea.NewProgram(newUI(sess, win, name, log), tea.WithAltScreen())
	if remote != nil {
		remote.OnRemoteChange(sess.HandleRemoteText)
	}
	if _, err := program.Run(); err != nil {
		return err
	}
	sess.Flush()
	return nil
}

// initialText resolves the starting document: the backing file when one
// is named, else the saved copy in the store, else the built-in sample.
func initialText(cfg config, st *store.Bolt) (string, string, error) {
	if cfg.File != "" {
		name := filepath.Base(cfg.File)
		data, err := os.ReadFile(cfg.File)
		if os.IsNotExist(err) {
			return "", name, nil
		}
		if err != nil {
			return "", "", fmt.Errorf("read %s: %w", cfg.File, err)
		}
		return string(data), name, nil
	}
	if st != nil {
		text, ok, err := st.Get(cfg.DocID)
		if err != nil {
			return "", "", err
		}
		if ok {
			return text, cfg.DocID, nil
		}
	}
	return sampleDoc, cfg.DocID, nil
}

// commitChain fans a committed document out to every configured sink:
// the bolt store, the backing file, and the relay.
func commitChain(cfg config, st *store.Bolt, remote *channel.WSClient) func(string) error {
	var sinks []func(string) error
	if st != nil {
		sinks = append(sinks, st.CommitFunc(cfg.DocID))
	}
	if cfg.File != "" {
		path := cfg.File
		sinks = append(sinks, func(text string) error {
			return os.WriteFile(path, []byte(text), 0o644)
		})
	}
	if remote != nil {
		sinks = append(sinks, remote.Commit)
	}
	if len(sinks) == 0 {
		return nil
	}
	return func(text string) error {
		for _, commit := range sinks {
			if err := commit(text); err != nil {
				return err
			}
		}
		return nil
	}
}

// newLogger builds the -debug development logger. It writes to a file;
// stderr would fight the alt screen.
func newLogger(debug bool) (*zap.Logger, error) {
	if !debug {
		return zap.NewNop(), nil
	}
	c := zap.NewDevelopmentConfig()
	c.OutputPaths = []string{debugLogPath}
	c.ErrorOutputPaths = []string{debugLogPath}
	log, err := c.Build()
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	return log, nil
}

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func fail(err error) {
	_, _ = os.Stderr.WriteString(err.Error() + "\n")
	os.Exit(1)
}
