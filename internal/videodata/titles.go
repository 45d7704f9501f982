package videodata

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/you/flippi-shorts/internal/combo"
	"github.com/you/flippi-shorts/internal/store"
	"github.com/you/flippi-shorts/internal/timestamp"
)

// TitleGenerator produces a short video title from a combo prompt.
type TitleGenerator interface {
	Title(ctx context.Context, prompt string) (string, error)
}

// DescriptionGenerator expands a title into a longer description.
type DescriptionGenerator interface {
	Description(ctx context.Context, title string) (string, error)
}

// GenerateTitles creates one VideoRecord per combo that has no record with a
// matching timestamp yet. New rows are appended; existing rows are never
// touched. A title-generation failure skips that combo for this run.
func GenerateTitles(ctx context.Context, comboPath, videoPath string, gen TitleGenerator, tables combo.Tables) (int, error) {
	combos, err := combo.ParseEventLog(comboPath)
	if err != nil {
		return 0, err
	}
	existing, err := store.ReadAll[VideoRecord](videoPath)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[v.Timestamp] = struct{}{}
	}

	var added []VideoRecord
	for i := range combos {
		c := &combos[i]
		norm := timestamp.Normalize(c.Timestamp)
		if _, ok := seen[norm]; ok {
			continue
		}

		prompt := combo.BuildPrompt(c, tables)
		title, err := gen.Title(ctx, prompt)
		if err != nil {
			log.Printf("videodata: title generation failed for %s: %v", norm, err)
			continue
		}
		title = strings.Trim(strings.TrimSpace(title), `"`)
		if title == "" {
			log.Printf("videodata: empty title for %s, skipping", norm)
			continue
		}

		rec := VideoRecord{
			Timestamp: norm,
			Title:     title,
			Prompt:    StringPtr(prompt),
		}
		if attacker, ok := c.Attacker(); ok {
			rec.Nametag = attacker.Nametag
		}
		if stageID, ok := c.StageID(); ok {
			id := stageID
			rec.StageID = &id
		}
		if raw, err := json.Marshal(c); err == nil {
			rec.Combo = raw
		}

		added = append(added, rec)
		seen[norm] = struct{}{}
	}

	if len(added) == 0 {
		log.Printf("videodata: no new titles to generate")
		return 0, nil
	}
	if err := store.AppendRows(videoPath, added); err != nil {
		return 0, err
	}
	log.Printf("videodata: appended %d new titled records to %s", len(added), videoPath)
	return len(added), nil
}

// FillDescriptions generates a description for every record still marked
// pending. The stored value is the promo line, the original prompt, and the
// generated text separated by blank lines. The full file is rewritten
// atomically only when something changed.
func FillDescriptions(ctx context.Context, videoPath string, gen DescriptionGenerator, promoLine string) (int, error) {
	records, err := store.ReadAll[VideoRecord](videoPath)
	if err != nil {
		return 0, err
	}

	filled := 0
	for i := range records {
		if records[i].HasDescription() {
			continue
		}
		desc, err := gen.Description(ctx, records[i].Title)
		if err != nil {
			log.Printf("videodata: description generation failed for %q: %v", records[i].Title, err)
			continue
		}
		desc = strings.Trim(strings.TrimSpace(desc), `"`)

		parts := make([]string, 0, 3)
		if promoLine != "" {
			parts = append(parts, promoLine)
		}
		if p := records[i].PromptText(); p != "" {
			parts = append(parts, p)
		}
		parts = append(parts, desc)
		records[i].Description = StringPtr(strings.Join(parts, "\n\n"))
		filled++
	}

	if filled == 0 {
		return 0, nil
	}
	if err := store.RewriteAll(videoPath, records); err != nil {
		return 0, err
	}
	log.Printf("videodata: filled %d descriptions in %s", filled, videoPath)
	return filled, nil
}
