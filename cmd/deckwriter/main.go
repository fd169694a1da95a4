/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deckwriter/internal/config"
	"deckwriter/internal/crash"
	applog "deckwriter/internal/log"
	"deckwriter/internal/storage"
	"deckwriter/internal/telemetry"
	"deckwriter/internal/version"
)

// errUsage makes main print the usage text and exit 2.
var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "deckwriter - slide deck writer")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  deckwriter version                                   Show version")
	fmt.Fprintln(w, "  deckwriter init <dir> <title>                        Create a deck folder")
	fmt.Fprintln(w, "  deckwriter open <dir>                                Print the deck outline with ids")
	fmt.Fprintln(w, "  deckwriter outline <dir> <prompt> [ref files...]     Generate topics and slides")
	fmt.Fprintln(w, "  deckwriter draft <dir> <slideID>                     Draft bullets for one slide")
	fmt.Fprintln(w, "  deckwriter notes <dir> <slideID>                     Draft speaker notes")
	fmt.Fprintln(w, "  deckwriter image <dir> <slideID> <prompt>            Generate an image for a slide")
	fmt.Fprintln(w, "  deckwriter add-topic <dir> <title>")
	fmt.Fprintln(w, "  deckwriter add-slide <dir> <topicID> <title>")
	fmt.Fprintln(w, "  deckwriter delete-slide <dir> <topicID> <slideID>")
	fmt.Fprintln(w, "  deckwriter gesture <dir> <slideID> <text|media> <move|resize:HANDLE> <dx> <dy> [<w> <h>]")
	fmt.Fprintln(w, "  deckwriter edit-image <dir> <slideID> <index> <rotate> <filter>")
	fmt.Fprintln(w, "  deckwriter export <dir> <pdf|png|web|print> [out]")
	fmt.Fprintln(w, "  deckwriter repo save <dir> [name] | list | load <id> <dir> | delete <id> | search <text>")
	fmt.Fprintln(w, "  deckwriter serve                                     Run the HTTP API")
	fmt.Fprintln(w, "  deckwriter tui <dir>                                 Terminal outline editor")
	fmt.Fprintln(w, "  deckwriter ui [<dir>]                                Desktop editor (build with -tags fyne)")
}

func main() {
	_ = config.LoadDotEnv("")
	cfg, sec, err := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", err))
	}

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	tel := telemetry.New(tcfg)
	telemetry.SetDefault(tel)

	h := &storage.Handle{}
	defer crash.Recover(crash.Target{Handle: h})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := &cli{cfg: cfg, sec: sec, out: os.Stdout, log: l, handle: h}
	l.Debug("start", slog.Int("args", len(os.Args)))
	err = c.run(ctx, os.Args[1:])
	stop()

	fctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	tel.Flush(fctx)
	cancel()
	tel.Close()

	switch {
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Println(err)
		}
		usage(os.Stdout)
		os.Exit(2)
	case err != nil:
		l.Error("command failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
