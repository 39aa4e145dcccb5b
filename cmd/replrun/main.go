package main

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"

	"github.com/replrun/replrun/session"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultURL = "wss://repl.online-cpp.com/socket.io/?type=script&lang=python3&EIO=3&transport=websocket"

func main() {
	app := &cli.App{
		Name:      "replrun",
		Usage:     "run source files on a remote execution backend",
		ArgsUsage: "file [file ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log",
				Usage: "Enable debug logging to the specified file path.",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "The backend WebSocket endpoint.",
			},
			&cli.StringFlag{
				Name:  "lang",
				Usage: "Language selector substituted into the endpoint query.",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a TOML config file providing url/lang/log defaults.",
			},
			&cli.StringSliceFlag{
				Name:  "run",
				Usage: "Entry file followed by its arguments. Positional files become auxiliary files.",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	runArgs := c.StringSlice("run")
	if c.NArg() == 0 && len(runArgs) == 0 {
		return fmt.Errorf("no input files")
	}

	cfg := defaults{url: defaultURL}
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = loadFileConfig(path, cfg)
		if err != nil {
			return err
		}
	}
	if v := c.String("url"); v != "" {
		cfg.url = v
	}
	if v := c.String("lang"); v != "" {
		cfg.lang = v
	}
	if v := c.String("log"); v != "" {
		cfg.logPath = v
	}

	endpoint, err := buildEndpoint(cfg.url, cfg.lang)
	if err != nil {
		return err
	}

	// The --run entry file is prepended; the remaining --run values become
	// the remote process's arguments.
	paths := c.Args().Slice()
	var args []string
	if len(runArgs) > 0 {
		paths = append([]string{runArgs[0]}, paths...)
		args = runArgs[1:]
	}

	files, err := readFiles(paths)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.logPath)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	sess, err := session.New(session.Config{
		URL:   endpoint,
		Files: files,
		Args:  args,
	}, session.WithLogger(logger))
	if err != nil {
		return err
	}

	status, err := sess.Run(c.Context)
	if err != nil {
		return err
	}
	if status != 0 {
		return cli.Exit("", status)
	}
	return nil
}

// readFiles loads file contents keyed by base name, preserving first-seen
// order. A repeated name keeps its position but takes the later contents.
func readFiles(paths []string) ([]session.File, error) {
	files := make([]session.File, 0, len(paths))
	seen := map[string]int{}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		name := filepath.Base(p)
		if i, ok := seen[name]; ok {
			files[i].Code = string(b)
			continue
		}
		seen[name] = len(files)
		files = append(files, session.File{Name: name, Code: string(b)})
	}
	return files, nil
}

func buildEndpoint(raw, lang string) (string, error) {
	if lang == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing backend URL: %w", err)
	}
	q := u.Query()
	q.Set("lang", lang)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func buildLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if path != "" {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}
	return cfg.Build()
}
