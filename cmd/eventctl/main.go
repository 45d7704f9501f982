package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/you/flippi-shorts/internal/config"
	"github.com/you/flippi-shorts/internal/event"
)

// eventctl creates and inspects event directories without touching the
// uploader itself.
func main() {
	log.SetFlags(0)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("eventctl: .env: %v", err)
	}

	var (
		baseDir  string
		title    string
		listOnly bool
	)
	flag.StringVar(&baseDir, "base", "", "Events base directory (defaults to configured base)")
	flag.StringVar(&title, "title", "", "Display title seeded into the new event")
	flag.BoolVar(&listOnly, "list", false, "List existing events and exit")
	flag.Parse()

	cfg := config.Load()
	if strings.TrimSpace(baseDir) != "" {
		cfg.BaseDir = strings.TrimSpace(baseDir)
	}

	if listOnly {
		events, err := event.List(cfg.BaseDir)
		if err != nil {
			log.Fatalf("eventctl: %v", err)
		}
		if len(events) == 0 {
			fmt.Println("no events found")
			return
		}
		for _, ev := range events {
			fmt.Printf("%s\t%s\n", ev.Name, ev.Title())
		}
		return
	}

	raw := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if raw == "" {
		log.Fatalf("eventctl: usage: eventctl [-base DIR] [-title TITLE] EVENT NAME (or -list)")
	}
	name := event.SanitizeName(raw)
	if name == "" {
		log.Fatalf("eventctl: %q contains no usable characters", raw)
	}

	ev, err := event.Bootstrap(cfg.BaseDir, name, title)
	if err != nil {
		log.Fatalf("eventctl: %v", err)
	}
	fmt.Printf("created %s\n", ev.Root())
	fmt.Printf("drop replays into %s\n", ev.ClipsDir())
}
